package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists catalog records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a catalog store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, category, price, currency, active, created_at, updated_at
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.SellerID, &p.Title, &p.Category, &p.Price, &p.Currency,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) PutProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = idgen.WithPrefix("prod")
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, title, category, price, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			seller_id = EXCLUDED.seller_id,
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.SellerID, p.Title, p.Category, p.Price, p.Currency,
		p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSeller(ctx context.Context, id string) (*Seller, error) {
	var sl Seller
	var destination sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, payout_method, payout_destination, created_at, updated_at
		FROM sellers WHERE id = $1`, id,
	).Scan(&sl.ID, &sl.Name, &sl.Payout.Method, &destination, &sl.CreatedAt, &sl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSellerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seller: %w", err)
	}
	sl.Payout.Destination = destination.String
	return &sl, nil
}

func (s *PostgresStore) PutSeller(ctx context.Context, sl *Seller) error {
	if sl.ID == "" {
		sl.ID = idgen.WithPrefix("seller")
	}
	now := time.Now()
	if sl.CreatedAt.IsZero() {
		sl.CreatedAt = now
	}
	sl.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sellers (id, name, payout_method, payout_destination, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			payout_method = EXCLUDED.payout_method,
			payout_destination = EXCLUDED.payout_destination,
			updated_at = EXCLUDED.updated_at`,
		sl.ID, sl.Name, sl.Payout.Method, nullString(sl.Payout.Destination),
		sl.CreatedAt, sl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put seller: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*PostgresStore)(nil)
