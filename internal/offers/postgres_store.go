package offers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists offers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an offer store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, o *Offer) error {
	if o.ID == "" {
		o.ID = idgen.WithPrefix("offer")
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offers (id, product_id, buyer_id, seller_id, amount, currency,
			status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.ProductID, o.BuyerID, o.SellerID, o.Amount, o.Currency,
		string(o.Status), nullTime(o.ExpiresAt), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Offer, error) {
	o, err := scanOffer(s.db.QueryRowContext(ctx, selectOffer+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *PostgresStore) Update(ctx context.Context, o *Offer) error {
	o.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers SET status = $2, expires_at = $3, updated_at = $4
		WHERE id = $1`,
		o.ID, string(o.Status), nullTime(o.ExpiresAt), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
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

func (s *PostgresStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Offer, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		selectOffer+` WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2
		ORDER BY expires_at LIMIT $3`,
		string(StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable offers: %w", err)
	}
	defer rows.Close()

	var out []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const selectOffer = `
	SELECT id, product_id, buyer_id, seller_id, amount, currency,
	       status, expires_at, created_at, updated_at
	FROM offers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*Offer, error) {
	var o Offer
	var status string
	var expiresAt sql.NullTime

	err := row.Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.SellerID, &o.Amount,
		&o.Currency, &status, &expiresAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.ExpiresAt = expiresAt.Time
	return &o, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ Store = (*PostgresStore)(nil)
