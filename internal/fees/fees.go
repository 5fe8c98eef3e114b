// Package fees computes platform commission from a versioned fee
// configuration.
//
// Configurations are read-mostly: the active version is resolved per quote
// and the most specific override wins (seller > category > default). The
// quote itself is pure — same config, same inputs, same cents out.
package fees

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

var (
	ErrNoActiveConfig = errors.New("fees: no active fee configuration")
	ErrConfigNotFound = errors.New("fees: configuration not found")
	ErrInvalidPercent = errors.New("fees: percentage must be between 0 and 100")
)

// GatewayFeePayer identifies who absorbs the gateway processing fee.
type GatewayFeePayer string

const (
	PayerBuyer  GatewayFeePayer = "buyer"
	PayerSeller GatewayFeePayer = "seller"
)

// Config is one version of the platform fee schedule.
type Config struct {
	ID                string             `json:"id"`
	Version           int                `json:"version"`
	Active            bool               `json:"active"`
	DefaultPercent    float64            `json:"defaultPercent"`
	CategoryOverrides map[string]float64 `json:"categoryOverrides,omitempty"` // category slug -> percent
	SellerOverrides   map[string]float64 `json:"sellerOverrides,omitempty"`   // seller ID -> percent
	GatewayFeePaidBy  GatewayFeePayer    `json:"gatewayFeePaidBy"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Quote is the outcome of a fee calculation.
type Quote struct {
	Percent       float64 `json:"feePercentage"`
	Amount        string  `json:"feeAmount"`
	Source        string  `json:"source"` // "seller", "category" or "default"
	ConfigVersion int     `json:"configVersion"`
}

// Store persists fee configurations.
type Store interface {
	// Create stores a new version. An active config deactivates any
	// previously active version.
	Create(ctx context.Context, cfg *Config) error
	GetActive(ctx context.Context) (*Config, error)
	GetVersion(ctx context.Context, version int) (*Config, error)
}

// Engine resolves the active configuration and computes quotes.
type Engine struct {
	store Store
}

// NewEngine creates a fee engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Quote computes the platform fee for a transaction amount. The most
// specific override applies: a seller override beats a category override
// beats the default percentage.
func (e *Engine) Quote(ctx context.Context, amount, category, sellerID string) (*Quote, error) {
	if !money.IsValid(amount) {
		return nil, errors.New("fees: invalid amount")
	}

	cfg, err := e.store.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	percent, source := cfg.Resolve(category, sellerID)
	return &Quote{
		Percent:       percent,
		Amount:        money.Percent(amount, percent),
		Source:        source,
		ConfigVersion: cfg.Version,
	}, nil
}

// GatewayFeePayer returns who pays the gateway fee under the active config,
// falling back to the buyer when no config is active.
func (e *Engine) GatewayFeePayer(ctx context.Context) GatewayFeePayer {
	cfg, err := e.store.GetActive(ctx)
	if err != nil || cfg.GatewayFeePaidBy == "" {
		return PayerBuyer
	}
	return cfg.GatewayFeePaidBy
}

// Resolve returns the applicable percentage and which override supplied it.
func (c *Config) Resolve(category, sellerID string) (float64, string) {
	if sellerID != "" {
		if pct, ok := c.SellerOverrides[sellerID]; ok {
			return pct, "seller"
		}
	}
	if category != "" {
		if pct, ok := c.CategoryOverrides[strings.ToLower(category)]; ok {
			return pct, "category"
		}
	}
	return c.DefaultPercent, "default"
}

// Validate checks all percentages are within bounds.
func (c *Config) Validate() error {
	check := func(pct float64) error {
		if pct < 0 || pct > 100 {
			return ErrInvalidPercent
		}
		return nil
	}
	if err := check(c.DefaultPercent); err != nil {
		return err
	}
	for _, pct := range c.CategoryOverrides {
		if err := check(pct); err != nil {
			return err
		}
	}
	for _, pct := range c.SellerOverrides {
		if err := check(pct); err != nil {
			return err
		}
	}
	if c.GatewayFeePaidBy != PayerBuyer && c.GatewayFeePaidBy != PayerSeller {
		return errors.New("fees: gatewayFeePaidBy must be buyer or seller")
	}
	return nil
}
