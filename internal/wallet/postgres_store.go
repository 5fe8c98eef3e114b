package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists the ledger in PostgreSQL. A unique index on
// (seller_id, reference) for credits enforces idempotence at the storage
// layer.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a ledger store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = idgen.WithPrefix("wtx")
	}
	e.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_entries (id, seller_id, entry_type, amount, currency, reference, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.SellerID, string(e.Type), e.Amount, e.Currency, e.Reference,
		sql.NullString{String: e.Note, Valid: e.Note != ""}, e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert wallet entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, sellerID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seller_id, entry_type, amount, currency, reference, note, created_at
		FROM wallet_entries WHERE seller_id = $1
		ORDER BY created_at DESC LIMIT $2`, sellerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var entryType string
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.SellerID, &entryType, &e.Amount, &e.Currency,
			&e.Reference, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet entry: %w", err)
		}
		e.Type = EntryType(entryType)
		e.Note = note.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
