package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists payment records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a payment record store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *PaymentRecord) error {
	if rec.ID == "" {
		rec.ID = idgen.WithPrefix("pay")
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_records (
			id, transaction_code, gateway, gateway_txn_id,
			amount, currency, original_amount, original_currency, exchange_rate,
			status, payment_url, failure_reason,
			created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.TransactionCode, rec.Gateway, rec.GatewayTransactionID,
		rec.Amount, rec.Currency,
		nullString(rec.OriginalAmount), nullString(rec.OriginalCurrency), nullFloat(rec.ExchangeRate),
		string(rec.Status), nullString(rec.PaymentURL), nullString(rec.FailureReason),
		rec.CreatedAt, rec.UpdatedAt, nullTimePtr(rec.CompletedAt))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*PaymentRecord, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectRecord+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetByTransactionCode(ctx context.Context, code string) (*PaymentRecord, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, selectRecord+` WHERE transaction_code = $1`, code))
}

func (s *PostgresStore) GetByGatewayTxnID(ctx context.Context, gatewayName, gatewayTxnID string) (*PaymentRecord, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		selectRecord+` WHERE gateway = $1 AND gateway_txn_id = $2`, gatewayName, gatewayTxnID))
}

func (s *PostgresStore) Update(ctx context.Context, rec *PaymentRecord) error {
	rec.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_records SET
			gateway = $2, gateway_txn_id = $3,
			amount = $4, currency = $5,
			original_amount = $6, original_currency = $7, exchange_rate = $8,
			status = $9, payment_url = $10, failure_reason = $11,
			updated_at = $12, completed_at = $13
		WHERE id = $1`,
		rec.ID, rec.Gateway, rec.GatewayTransactionID,
		rec.Amount, rec.Currency,
		nullString(rec.OriginalAmount), nullString(rec.OriginalCurrency), nullFloat(rec.ExchangeRate),
		string(rec.Status), nullString(rec.PaymentURL), nullString(rec.FailureReason),
		rec.UpdatedAt, nullTimePtr(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("update payment record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

const selectRecord = `
	SELECT id, transaction_code, gateway, gateway_txn_id,
	       amount, currency, original_amount, original_currency, exchange_rate,
	       status, payment_url, failure_reason,
	       created_at, updated_at, completed_at
	FROM payment_records`

func (s *PostgresStore) scanOne(row *sql.Row) (*PaymentRecord, error) {
	var rec PaymentRecord
	var status string
	var origAmount, origCurrency, paymentURL, failureReason sql.NullString
	var rate sql.NullFloat64
	var completedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.TransactionCode, &rec.Gateway, &rec.GatewayTransactionID,
		&rec.Amount, &rec.Currency, &origAmount, &origCurrency, &rate,
		&status, &paymentURL, &failureReason,
		&rec.CreatedAt, &rec.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment record: %w", err)
	}

	rec.Status = PaymentStatus(status)
	rec.OriginalAmount = origAmount.String
	rec.OriginalCurrency = origCurrency.String
	rec.ExchangeRate = rate.Float64
	rec.PaymentURL = paymentURL.String
	rec.FailureReason = failureReason.String
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
