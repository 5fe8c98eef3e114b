package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists orders in PostgreSQL. The unique index on
// transaction_code backs the idempotent create-if-absent contract.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an order store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = idgen.WithPrefix("ord")
	}
	o.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, transaction_code, buyer_id, seller_id, product_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (transaction_code) DO NOTHING`,
		o.ID, o.TransactionCode, o.BuyerID, o.SellerID, o.ProductID,
		o.Amount, o.Currency, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByTransactionCode(ctx context.Context, code string) (*Order, error) {
	var o Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, transaction_code, buyer_id, seller_id, product_id, amount, currency, created_at
		FROM orders WHERE transaction_code = $1`, code,
	).Scan(&o.ID, &o.TransactionCode, &o.BuyerID, &o.SellerID, &o.ProductID,
		&o.Amount, &o.Currency, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

var _ Store = (*PostgresStore)(nil)
