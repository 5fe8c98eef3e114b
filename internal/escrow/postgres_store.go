package escrow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/pagination"
)

// PostgresStore persists escrow transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an escrow store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	if t.ID == "" {
		t.ID = idgen.WithPrefix("esc")
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	historyJSON, addressJSON, deliveryJSON, disputeJSON, err := marshalBlobs(t)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO escrow_transactions (
			id, code, buyer_id, seller_id, product_id, offer_id,
			product_price, shipping_cost, sales_tax, total_amount,
			platform_fee_pct, platform_fee_amount, gateway_fee_amount,
			gateway_fee_paid_by, seller_payout,
			currency, original_currency, original_amount, exchange_rate,
			shipping_address, gateway, gateway_txn_id, gateway_response,
			status, status_history, delivery_details,
			payout_method, payout_reference, payout_amount, payout_processed_at,
			dispute_details, auto_release_enabled, auto_release_days, auto_release_at,
			archived, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
			$31, $32, $33, $34, $35, $36, $37
		)`,
		t.ID, t.Code, t.BuyerID, t.SellerID, t.ProductID, nullString(t.OfferID),
		t.ProductPrice, t.ShippingCost, t.SalesTax, t.TotalAmount,
		t.PlatformFeePercentage, t.PlatformFeeAmount, t.GatewayFeeAmount,
		string(t.GatewayFeePaidBy), t.SellerPayout,
		t.Currency, nullString(t.OriginalCurrency), nullString(t.OriginalAmount), nullFloat(t.ExchangeRate),
		addressJSON, nullString(t.Gateway), nullString(t.GatewayTransactionID), nullBytes(t.GatewayResponse),
		string(t.Status), historyJSON, deliveryJSON,
		nullString(t.PayoutDetails.Method), nullString(t.PayoutDetails.Reference),
		nullString(t.PayoutDetails.Amount), nullTimePtr(t.PayoutDetails.ProcessedAt),
		disputeJSON, t.AutoReleaseEnabled, t.AutoReleaseDays, nullTimePtr(t.AutoReleaseAt),
		t.Archived, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert escrow transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx, selectTransaction+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Transaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx, selectTransaction+` WHERE code = $1`, code))
}

func (s *PostgresStore) Update(ctx context.Context, t *Transaction) error {
	t.UpdatedAt = time.Now()

	historyJSON, addressJSON, deliveryJSON, disputeJSON, err := marshalBlobs(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE escrow_transactions SET
			total_amount = $2, gateway = $3, gateway_txn_id = $4, gateway_response = $5,
			status = $6, status_history = $7, delivery_details = $8,
			dispute_details = $9, shipping_address = $10,
			auto_release_enabled = $11, auto_release_at = $12,
			archived = $13, updated_at = $14
		WHERE id = $1`,
		t.ID, t.TotalAmount, nullString(t.Gateway), nullString(t.GatewayTransactionID),
		nullBytes(t.GatewayResponse), string(t.Status), historyJSON, deliveryJSON,
		disputeJSON, addressJSON,
		t.AutoReleaseEnabled, nullTimePtr(t.AutoReleaseAt),
		t.Archived, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update escrow transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByBuyer(ctx context.Context, buyerID string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	return s.listParty(ctx, "buyer_id", buyerID, before, limit)
}

func (s *PostgresStore) ListBySeller(ctx context.Context, sellerID string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	return s.listParty(ctx, "seller_id", sellerID, before, limit)
}

func (s *PostgresStore) listParty(ctx context.Context, column, party string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	if before != nil {
		return s.listWhere(ctx, column+` = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC LIMIT $4`,
			party, before.CreatedAt, before.ID, capLimit(limit))
	}
	return s.listWhere(ctx, column+` = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		party, capLimit(limit))
}

// ClaimPayout is a compare-and-swap on payout_processed_at, safe across
// multiple instances without a distributed lock.
func (s *PostgresStore) ClaimPayout(ctx context.Context, id string, details PayoutDetails) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE escrow_transactions SET
			payout_method = $2, payout_reference = $3,
			payout_amount = $4, payout_processed_at = $5, updated_at = $6
		WHERE id = $1 AND payout_processed_at IS NULL`,
		id, nullString(details.Method), nullString(details.Reference),
		nullString(details.Amount), nullTimePtr(details.ProcessedAt), time.Now())
	if err != nil {
		return fmt.Errorf("claim payout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM escrow_transactions WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyPaidOut
	}
	return nil
}

func (s *PostgresStore) ListAutoReleasable(ctx context.Context, now time.Time, limit int) ([]*Transaction, error) {
	return s.listWhere(ctx, `status = 'funds_held'
		AND auto_release_enabled
		AND auto_release_at IS NOT NULL AND auto_release_at < $1
		ORDER BY auto_release_at LIMIT $2`, now, capLimit(limit))
}

func (s *PostgresStore) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error) {
	return s.listWhere(ctx, `status IN ('payment_failed', 'cancelled')
		AND updated_at < $1 ORDER BY updated_at LIMIT $2`, cutoff, capLimit(limit))
}

func (s *PostgresStore) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error) {
	return s.listWhere(ctx, `status = 'completed' AND NOT archived
		AND updated_at < $1 ORDER BY updated_at LIMIT $2`, cutoff, capLimit(limit))
}

func (s *PostgresStore) MarkArchived(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE escrow_transactions SET archived = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now())
	if err != nil {
		return fmt.Errorf("archive escrow transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM escrow_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete escrow transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectTransaction = `
	SELECT id, code, buyer_id, seller_id, product_id, offer_id,
	       product_price, shipping_cost, sales_tax, total_amount,
	       platform_fee_pct, platform_fee_amount, gateway_fee_amount,
	       gateway_fee_paid_by, seller_payout,
	       currency, original_currency, original_amount, exchange_rate,
	       shipping_address, gateway, gateway_txn_id, gateway_response,
	       status, status_history, delivery_details,
	       payout_method, payout_reference, payout_amount, payout_processed_at,
	       dispute_details, auto_release_enabled, auto_release_days, auto_release_at,
	       archived, created_at, updated_at
	FROM escrow_transactions`

func (s *PostgresStore) listWhere(ctx context.Context, where string, args ...any) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectTransaction+` WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list escrow transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	var offerID, origCurrency, origAmount, gatewayName, gatewayTxnID sql.NullString
	var payoutMethod, payoutReference, payoutAmount sql.NullString
	var rate sql.NullFloat64
	var feePaidBy, status string
	var addressJSON, historyJSON, deliveryJSON, disputeJSON, gatewayResponse []byte
	var payoutProcessedAt, autoReleaseAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Code, &t.BuyerID, &t.SellerID, &t.ProductID, &offerID,
		&t.ProductPrice, &t.ShippingCost, &t.SalesTax, &t.TotalAmount,
		&t.PlatformFeePercentage, &t.PlatformFeeAmount, &t.GatewayFeeAmount,
		&feePaidBy, &t.SellerPayout,
		&t.Currency, &origCurrency, &origAmount, &rate,
		&addressJSON, &gatewayName, &gatewayTxnID, &gatewayResponse,
		&status, &historyJSON, &deliveryJSON,
		&payoutMethod, &payoutReference, &payoutAmount, &payoutProcessedAt,
		&disputeJSON, &t.AutoReleaseEnabled, &t.AutoReleaseDays, &autoReleaseAt,
		&t.Archived, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan escrow transaction: %w", err)
	}

	t.OfferID = offerID.String
	t.GatewayFeePaidBy = GatewayFeePayer(feePaidBy)
	t.OriginalCurrency = origCurrency.String
	t.OriginalAmount = origAmount.String
	t.ExchangeRate = rate.Float64
	t.Gateway = gatewayName.String
	t.GatewayTransactionID = gatewayTxnID.String
	t.GatewayResponse = gatewayResponse
	t.Status = Status(status)
	t.PayoutDetails.Method = payoutMethod.String
	t.PayoutDetails.Reference = payoutReference.String
	t.PayoutDetails.Amount = payoutAmount.String
	if payoutProcessedAt.Valid {
		at := payoutProcessedAt.Time
		t.PayoutDetails.ProcessedAt = &at
	}
	if autoReleaseAt.Valid {
		at := autoReleaseAt.Time
		t.AutoReleaseAt = &at
	}

	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &t.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &t.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}
	if len(deliveryJSON) > 0 {
		if err := json.Unmarshal(deliveryJSON, &t.DeliveryDetails); err != nil {
			return nil, fmt.Errorf("unmarshal delivery details: %w", err)
		}
	}
	if len(disputeJSON) > 0 {
		if err := json.Unmarshal(disputeJSON, &t.DisputeDetails); err != nil {
			return nil, fmt.Errorf("unmarshal dispute details: %w", err)
		}
	}
	return &t, nil
}

func marshalBlobs(t *Transaction) (history, address, delivery, dispute []byte, err error) {
	if history, err = json.Marshal(t.StatusHistory); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal status history: %w", err)
	}
	if address, err = json.Marshal(t.ShippingAddress); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	if delivery, err = json.Marshal(t.DeliveryDetails); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal delivery details: %w", err)
	}
	if dispute, err = json.Marshal(t.DisputeDetails); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal dispute details: %w", err)
	}
	return history, address, delivery, dispute, nil
}

func capLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
