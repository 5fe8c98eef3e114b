package fees

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// PostgresStore persists fee configurations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a fee store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if cfg.ID == "" {
		cfg.ID = idgen.WithPrefix("fee")
	}
	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if cfg.Active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE fee_configs SET active = FALSE, updated_at = $1 WHERE active`, now,
		); err != nil {
			return fmt.Errorf("deactivate previous config: %w", err)
		}
	}

	categoryJSON, err := json.Marshal(cfg.CategoryOverrides)
	if err != nil {
		return fmt.Errorf("marshal category overrides: %w", err)
	}
	sellerJSON, err := json.Marshal(cfg.SellerOverrides)
	if err != nil {
		return fmt.Errorf("marshal seller overrides: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO fee_configs (
			id, version, active, default_percent,
			category_overrides, seller_overrides, gateway_fee_paid_by,
			created_at, updated_at
		) VALUES (
			$1, (SELECT COALESCE(MAX(version), 0) + 1 FROM fee_configs),
			$2, $3, $4, $5, $6, $7, $8
		) RETURNING version`,
		cfg.ID, cfg.Active, cfg.DefaultPercent,
		categoryJSON, sellerJSON, string(cfg.GatewayFeePaidBy),
		cfg.CreatedAt, cfg.UpdatedAt,
	).Scan(&cfg.Version)
	if err != nil {
		return fmt.Errorf("insert fee config: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) GetActive(ctx context.Context) (*Config, error) {
	cfg, err := s.scanOne(s.db.QueryRowContext(ctx,
		selectConfig+` WHERE active LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, ErrNoActiveConfig
	}
	return cfg, err
}

func (s *PostgresStore) GetVersion(ctx context.Context, version int) (*Config, error) {
	cfg, err := s.scanOne(s.db.QueryRowContext(ctx,
		selectConfig+` WHERE version = $1`, version))
	if err == sql.ErrNoRows {
		return nil, ErrConfigNotFound
	}
	return cfg, err
}

const selectConfig = `
	SELECT id, version, active, default_percent,
	       category_overrides, seller_overrides, gateway_fee_paid_by,
	       created_at, updated_at
	FROM fee_configs`

func (s *PostgresStore) scanOne(row *sql.Row) (*Config, error) {
	var cfg Config
	var categoryJSON, sellerJSON []byte
	var payer string

	err := row.Scan(
		&cfg.ID, &cfg.Version, &cfg.Active, &cfg.DefaultPercent,
		&categoryJSON, &sellerJSON, &payer,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.GatewayFeePaidBy = GatewayFeePayer(payer)
	if len(categoryJSON) > 0 {
		if err := json.Unmarshal(categoryJSON, &cfg.CategoryOverrides); err != nil {
			return nil, fmt.Errorf("unmarshal category overrides: %w", err)
		}
	}
	if len(sellerJSON) > 0 {
		if err := json.Unmarshal(sellerJSON, &cfg.SellerOverrides); err != nil {
			return nil, fmt.Errorf("unmarshal seller overrides: %w", err)
		}
	}
	return &cfg, nil
}

var _ Store = (*PostgresStore)(nil)
