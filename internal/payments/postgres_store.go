package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists direct payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a payment store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, p *Payment) error {
	if p.ID == "" {
		p.ID = idgen.WithPrefix("dpay")
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	historyJSON, err := json.Marshal(p.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO direct_payments (
			id, code, buyer_id, seller_id, product_id,
			amount, currency, gateway, gateway_txn_id,
			status, status_history, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Code, p.BuyerID, p.SellerID, p.ProductID,
		p.Amount, p.Currency, nullString(p.Gateway), nullString(p.GatewayTransactionID),
		string(p.Status), historyJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert direct payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Payment, error) {
	return scanPayment(s.db.QueryRowContext(ctx, selectPayment+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Payment, error) {
	return scanPayment(s.db.QueryRowContext(ctx, selectPayment+` WHERE code = $1`, code))
}

func (s *PostgresStore) Update(ctx context.Context, p *Payment) error {
	p.UpdatedAt = time.Now()

	historyJSON, err := json.Marshal(p.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE direct_payments SET
			gateway = $2, gateway_txn_id = $3,
			status = $4, status_history = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, nullString(p.Gateway), nullString(p.GatewayTransactionID),
		string(p.Status), historyJSON, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update direct payment: %w", err)
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

const selectPayment = `
	SELECT id, code, buyer_id, seller_id, product_id,
	       amount, currency, gateway, gateway_txn_id,
	       status, status_history, created_at, updated_at
	FROM direct_payments`

func scanPayment(row *sql.Row) (*Payment, error) {
	var p Payment
	var gatewayName, gatewayTxnID sql.NullString
	var status string
	var historyJSON []byte

	err := row.Scan(&p.ID, &p.Code, &p.BuyerID, &p.SellerID, &p.ProductID,
		&p.Amount, &p.Currency, &gatewayName, &gatewayTxnID,
		&status, &historyJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan direct payment: %w", err)
	}

	p.Gateway = gatewayName.String
	p.GatewayTransactionID = gatewayTxnID.String
	p.Status = escrow.Status(status)
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &p.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*PostgresStore)(nil)
