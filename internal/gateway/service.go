package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/circuitbreaker"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/currency"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/traces"
)

// Service starts payments through a resolved provider and keeps the stored
// payment record in sync with provider-side state.
//
// A per-provider circuit breaker trips after repeated provider failures so
// a down provider fails fast instead of stalling every checkout behind its
// timeout.
type Service struct {
	factory     *Factory
	store       Store
	converter   *currency.Converter
	breaker     *circuitbreaker.Breaker
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewService creates a gateway service. callTimeout bounds each provider
// call; zero or negative applies the 30s default.
func NewService(factory *Factory, store Store, converter *currency.Converter, callTimeout time.Duration, logger *slog.Logger) *Service {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Service{
		factory:     factory,
		store:       store,
		converter:   converter,
		breaker:     circuitbreaker.New(5, 30*time.Second),
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Factory exposes the provider registry for enumeration endpoints.
func (s *Service) Factory() *Factory {
	return s.factory
}

// Store exposes the payment record store for read paths.
func (s *Service) Store() Store {
	return s.store
}

// Initialize starts a payment for a transaction through the named provider.
//
// When the provider does not settle in the requested currency, the charge
// is converted to the provider's first supported currency and the record
// keeps the original amount, currency and rate. A provider with no usable
// conversion path fails closed.
func (s *Service) Initialize(ctx context.Context, gatewayName string, req InitializeRequest) (*PaymentRecord, error) {
	ctx, span := traces.StartSpan(ctx, "gateway.Initialize",
		traces.Gateway(gatewayName),
		traces.TransactionCode(req.TransactionCode),
		traces.Amount(req.Amount),
		traces.Currency(req.Currency),
	)
	defer span.End()

	gw, err := s.factory.Resolve(gatewayName)
	if err != nil {
		return nil, err
	}
	cfg := gw.Config()
	if !cfg.IsActive {
		return nil, ErrNotConfigured
	}

	var retryOf *PaymentRecord
	if existing, err := s.store.GetByTransactionCode(ctx, req.TransactionCode); err == nil {
		if !existing.Status.Terminal() || existing.Status == StatusSucceeded {
			return nil, ErrDuplicatePayment
		}
		// A failed or cancelled attempt may be retried; the record is reused
		// so the transaction code stays unique.
		retryOf = existing
	} else if !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	rec := &PaymentRecord{
		TransactionCode: req.TransactionCode,
		Gateway:         cfg.Name,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          StatusPending,
	}
	if retryOf != nil {
		// Only the identity and creation time survive from the failed
		// attempt; amount, currency and any conversion fields describe the
		// new charge.
		rec.ID = retryOf.ID
		rec.CreatedAt = retryOf.CreatedAt
	}

	if !cfg.SupportsCurrency(req.Currency) {
		target, result, err := s.fallbackConvert(ctx, cfg, req.Amount, req.Currency)
		if err != nil {
			return nil, err
		}
		s.logger.Info("gateway currency fallback",
			"gateway", cfg.Name,
			"from", req.Currency,
			"to", target,
			"originalAmount", req.Amount,
			"chargedAmount", result.ConvertedAmount,
		)
		rec.OriginalAmount = req.Amount
		rec.OriginalCurrency = req.Currency
		rec.ExchangeRate = result.ExchangeRate
		rec.Amount = result.ConvertedAmount
		rec.Currency = target
		req.Amount = result.ConvertedAmount
		req.Currency = target
	}

	if !s.breaker.Allow(cfg.Name) {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, cfg.Name)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	init, err := gw.InitializePayment(callCtx, req)
	cancel()
	if err != nil {
		s.breaker.RecordFailure(cfg.Name)
		return nil, err
	}
	s.breaker.RecordSuccess(cfg.Name)

	rec.GatewayTransactionID = init.GatewayTransactionID
	rec.PaymentURL = init.PaymentURL
	rec.Status = init.Status
	rec.FailureReason = ""
	if init.Status == StatusSucceeded {
		now := time.Now()
		rec.CompletedAt = &now
	}
	if retryOf != nil {
		if err := s.store.Update(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Poll asks the provider for the payment's current state and persists any
// change. Returns the refreshed record.
func (s *Service) Poll(ctx context.Context, transactionCode string) (*PaymentRecord, error) {
	rec, err := s.store.GetByTransactionCode(ctx, transactionCode)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	gw, err := s.factory.Resolve(rec.Gateway)
	if err != nil {
		return nil, err
	}
	if !s.breaker.Allow(rec.Gateway) {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, rec.Gateway)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	status, err := gw.CheckStatus(callCtx, rec.GatewayTransactionID)
	cancel()
	if err != nil {
		s.breaker.RecordFailure(rec.Gateway)
		return nil, err
	}
	s.breaker.RecordSuccess(rec.Gateway)
	return s.apply(ctx, rec, status.Status, status.FailureReason)
}

// ApplyStatus records a provider-reported state change, typically from a
// webhook. Applying the current status again is a no-op.
func (s *Service) ApplyStatus(ctx context.Context, gatewayName, gatewayTxnID string, status PaymentStatus, failureReason string) (*PaymentRecord, error) {
	rec, err := s.store.GetByGatewayTxnID(ctx, gatewayName, gatewayTxnID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, rec, status, failureReason)
}

func (s *Service) apply(ctx context.Context, rec *PaymentRecord, status PaymentStatus, failureReason string) (*PaymentRecord, error) {
	if rec.Status == status {
		return rec, nil
	}
	// A terminal record never regresses; a duplicate or late webhook is noise.
	if rec.Status.Terminal() {
		return rec, nil
	}

	rec.Status = status
	rec.FailureReason = failureReason
	if status.Terminal() && rec.CompletedAt == nil {
		now := time.Now()
		rec.CompletedAt = &now
	}
	if err := s.store.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) fallbackConvert(ctx context.Context, cfg Config, amount, from string) (string, *currency.Result, error) {
	if s.converter == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	for _, target := range cfg.SupportedCurrencies {
		if !s.converter.Supports(from, target) {
			continue
		}
		result, err := s.converter.Convert(ctx, amount, from, target)
		if err != nil {
			continue
		}
		return target, result, nil
	}
	return "", nil, fmt.Errorf("%w: no conversion path from %s for %s", ErrUnsupportedCurrency, from, cfg.Name)
}
