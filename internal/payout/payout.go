// Package payout disburses the seller's net proceeds after delivery.
//
// Process is the single entry point and is idempotent: a per-transaction
// lock rejects concurrent re-entry, and the persisted processedAt field is
// written exactly once, so a retried or racing call is a no-op. The payout
// amount always comes from the fee fields stored at creation time, never
// from re-reading prices.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/catalog"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/traces"
)

var (
	ErrInProgress     = errors.New("payout: payout already in progress for this transaction")
	ErrUnknownMethod  = errors.New("payout: no adapter for payout method")
	ErrDisburseFailed = errors.New("payout: disbursement failed")
)

// Disburser is one payout-method adapter.
type Disburser interface {
	Method() string
	// Disburse moves the amount to the seller and returns a reference
	// identifying the disbursement at the destination.
	Disburse(ctx context.Context, sellerID, destination, amount, currency, transactionCode string) (string, error)
}

// Service processes payouts.
type Service struct {
	store      escrow.Store
	sellers    catalog.Store
	disbursers map[string]Disburser
	sink       events.Sink
	logger     *slog.Logger

	locks sync.Map // transaction ID -> *sync.Mutex
}

// NewService creates a payout service with the given method adapters.
func NewService(store escrow.Store, sellers catalog.Store, sink events.Sink, logger *slog.Logger, disbursers ...Disburser) *Service {
	m := make(map[string]Disburser, len(disbursers))
	for _, d := range disbursers {
		m[d.Method()] = d
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Service{
		store:      store,
		sellers:    sellers,
		disbursers: m,
		sink:       sink,
		logger:     logger,
	}
}

// Process disburses the seller payout for a delivered transaction and
// completes it. Safe to call repeatedly; only the first call moves money.
func (s *Service) Process(ctx context.Context, transactionID string) (*escrow.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "payout.Process")
	defer span.End()

	muAny, _ := s.locks.LoadOrStore(transactionID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	if !mu.TryLock() {
		metrics.PayoutsTotal.WithLabelValues("locked").Inc()
		return nil, ErrInProgress
	}
	defer mu.Unlock()

	t, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(traces.TransactionCode(t.Code), traces.Amount(t.SellerPayout))

	if t.Status != escrow.StatusDelivered {
		metrics.PayoutsTotal.WithLabelValues("wrong_status").Inc()
		return nil, fmt.Errorf("%w: status %s", escrow.ErrNotDelivered, t.Status)
	}
	if t.PaidOut() {
		metrics.PayoutsTotal.WithLabelValues("duplicate").Inc()
		return nil, escrow.ErrAlreadyPaidOut
	}

	method, destination := s.resolveMethod(ctx, t.SellerID)
	d, ok := s.disbursers[method]
	if !ok {
		metrics.PayoutsTotal.WithLabelValues("no_adapter").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	span.SetAttributes(traces.PayoutMethod(method))

	reference, err := d.Disburse(ctx, t.SellerID, destination, t.SellerPayout, t.Currency, t.Code)
	if err != nil {
		metrics.PayoutsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("payout disbursement failed",
			"transactionCode", t.Code, "method", method, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDisburseFailed, err)
	}

	now := time.Now()
	details := escrow.PayoutDetails{
		Method:      method,
		Reference:   reference,
		Amount:      t.SellerPayout,
		ProcessedAt: &now,
	}
	if err := s.store.ClaimPayout(ctx, t.ID, details); err != nil {
		if errors.Is(err, escrow.ErrAlreadyPaidOut) {
			// Funds left but another actor recorded first. Needs manual
			// reconciliation against reference.
			s.logger.Error("CRITICAL: disbursed but payout already claimed",
				"transactionCode", t.Code, "method", method, "reference", reference)
		}
		metrics.PayoutsTotal.WithLabelValues("claim_failed").Inc()
		return nil, err
	}

	t, err = s.store.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	prev := t.Status
	if err := t.Transition(escrow.StatusCompleted, fmt.Sprintf("payout %s via %s", reference, method), "system"); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, t); err != nil {
		s.logger.Error("CRITICAL: payout recorded but completion not persisted",
			"transactionCode", t.Code, "error", err)
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues("ok").Inc()
	if cents, ok := money.Parse(t.PlatformFeeAmount); ok {
		// Advisory revenue counter; payout correctness never depends on it.
		metrics.PlatformFeeCents.Add(float64(cents.Int64()))
	}

	s.logger.Info("payout processed",
		"transactionCode", t.Code,
		"seller", t.SellerID,
		"method", method,
		"amount", details.Amount,
		"reference", reference,
	)
	s.sink.Emit(ctx, events.Event{
		TransactionCode: t.Code,
		Status:          string(t.Status),
		PreviousStatus:  string(prev),
		BuyerID:         t.BuyerID,
		SellerID:        t.SellerID,
		Amount:          details.Amount,
		Currency:        t.Currency,
		Note:            "seller payout processed",
		OccurredAt:      now,
	})
	return t, nil
}

// resolveMethod looks up the seller's payout preference, defaulting to the
// internal wallet when the seller or preference is missing.
func (s *Service) resolveMethod(ctx context.Context, sellerID string) (string, string) {
	seller, err := s.sellers.GetSeller(ctx, sellerID)
	if err != nil || seller.Payout.Method == "" {
		return MethodWallet, ""
	}
	if _, ok := s.disbursers[seller.Payout.Method]; !ok {
		return MethodWallet, ""
	}
	return seller.Payout.Method, seller.Payout.Destination
}
