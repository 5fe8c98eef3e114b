// Package currency converts amounts between currencies from a periodically
// refreshed rate snapshot.
//
// The snapshot maps currency codes to their rate against a base currency.
// Conversion is pure given a snapshot: the same (amount, from, to) always
// yields the same result until the snapshot changes. An unsupported pair
// fails closed — there is no silent 1:1 fallback.
package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

var (
	ErrUnsupportedCurrency = errors.New("currency: unsupported currency pair")
	ErrNoRates             = errors.New("currency: no rate snapshot available")
	ErrInvalidAmount       = errors.New("currency: invalid amount")
)

// Result is the outcome of a conversion against one snapshot.
type Result struct {
	ConvertedAmount string    `json:"convertedAmount"`
	ExchangeRate    float64   `json:"exchangeRate"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// RateSource supplies a fresh rate snapshot.
type RateSource interface {
	Fetch(ctx context.Context) (base string, rates map[string]float64, err error)
}

// Converter holds the current rate snapshot and refreshes it from a source.
type Converter struct {
	source   RateSource
	maxStale time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	base      string
	rates     map[string]float64
	fetchedAt time.Time
}

// NewConverter creates a converter backed by the given source. The first
// snapshot is fetched lazily on the first conversion (or via Refresh).
func NewConverter(source RateSource, maxStale time.Duration, logger *slog.Logger) *Converter {
	if maxStale <= 0 {
		maxStale = 6 * time.Hour
	}
	return &Converter{
		source:   source,
		maxStale: maxStale,
		logger:   logger,
	}
}

// Refresh replaces the snapshot from the source.
func (c *Converter) Refresh(ctx context.Context) error {
	base, rates, err := c.source.Fetch(ctx)
	if err != nil {
		metrics.FXRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch rates: %w", err)
	}
	if len(rates) == 0 {
		metrics.FXRefreshes.WithLabelValues("empty").Inc()
		return ErrNoRates
	}

	base = strings.ToUpper(base)
	normalized := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		if rate > 0 {
			normalized[strings.ToUpper(code)] = rate
		}
	}
	normalized[base] = 1.0

	c.mu.Lock()
	c.base = base
	c.rates = normalized
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	metrics.FXRefreshes.WithLabelValues("ok").Inc()
	return nil
}

// ensureFresh opportunistically refreshes a stale snapshot before a
// conversion-sensitive operation. A failed refresh keeps the old snapshot:
// staleness is bounded best-effort, missing pairs are what fail closed.
func (c *Converter) ensureFresh(ctx context.Context) {
	c.mu.RLock()
	stale := c.rates == nil || time.Since(c.fetchedAt) > c.maxStale
	c.mu.RUnlock()

	if !stale {
		return
	}
	if err := c.Refresh(ctx); err != nil && c.logger != nil {
		c.logger.Warn("fx refresh failed, keeping previous snapshot", "error", err)
	}
}

// Supports reports whether both currencies are present in the snapshot.
func (c *Converter) Supports(from, to string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.rates == nil {
		return false
	}
	_, okFrom := c.rates[strings.ToUpper(from)]
	_, okTo := c.rates[strings.ToUpper(to)]
	return okFrom && okTo
}

// SupportedCurrencies returns the codes in the current snapshot.
func (c *Converter) SupportedCurrencies() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]string, 0, len(c.rates))
	for code := range c.rates {
		codes = append(codes, code)
	}
	return codes
}

// LastUpdated returns when the snapshot was fetched.
func (c *Converter) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Convert converts a decimal amount from one currency to another using the
// current snapshot, refreshing it first when stale. Rounds half-up to the
// cent. Converting to the same currency is the identity.
func (c *Converter) Convert(ctx context.Context, amount, from, to string) (*Result, error) {
	cents, ok := money.Parse(amount)
	if !ok || cents == nil {
		return nil, ErrInvalidAmount
	}

	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return &Result{
			ConvertedAmount: money.Format(cents),
			ExchangeRate:    1.0,
			From:            from,
			To:              to,
			LastUpdated:     c.LastUpdated(),
		}, nil
	}

	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.rates == nil {
		return nil, ErrNoRates
	}
	fromRate, okFrom := c.rates[from]
	toRate, okTo := c.rates[to]
	if !okFrom || !okTo || fromRate <= 0 {
		return nil, fmt.Errorf("%w: %s->%s", ErrUnsupportedCurrency, from, to)
	}

	rate := toRate / fromRate

	// cents * rate, half-up at cent precision
	product := new(big.Float).SetPrec(128).SetInt(cents)
	product.Mul(product, big.NewFloat(rate))
	product.Add(product, big.NewFloat(0.5))
	converted, _ := product.Int(nil)

	return &Result{
		ConvertedAmount: money.Format(converted),
		ExchangeRate:    rate,
		From:            from,
		To:              to,
		LastUpdated:     c.fetchedAt,
	}, nil
}
