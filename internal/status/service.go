package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/gateway"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/orders"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payments"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/traces"
)

// PayoutProcessor settles a delivered escrow transaction: it disburses the
// seller's funds, records the payout and completes the transaction.
type PayoutProcessor interface {
	Process(ctx context.Context, transactionID string) (*escrow.Transaction, error)
}

// Service resolves transactions and drives their status transitions.
type Service struct {
	escrows   escrow.Store
	standards payments.Store
	gateways  *gateway.Service
	orders    *orders.Service
	payouts   PayoutProcessor
	sink      events.Sink
	logger    *slog.Logger
}

// NewService creates a status service.
func NewService(
	escrows escrow.Store,
	standards payments.Store,
	gateways *gateway.Service,
	orderSvc *orders.Service,
	payouts PayoutProcessor,
	sink events.Sink,
	logger *slog.Logger,
) *Service {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Service{
		escrows:   escrows,
		standards: standards,
		gateways:  gateways,
		orders:    orderSvc,
		payouts:   payouts,
		sink:      sink,
		logger:    logger,
	}
}

// Resolve looks a transaction up by external code, trying the escrow family
// first, then the direct family, and attaches the linked gateway payment
// record when present.
func (s *Service) Resolve(ctx context.Context, code string) (*Resolution, error) {
	if t, err := s.escrows.GetByCode(ctx, code); err == nil {
		return s.attachPayment(ctx, &Resolution{Kind: KindEscrow, Escrow: t}), nil
	} else if !errors.Is(err, escrow.ErrNotFound) {
		return nil, err
	}

	if p, err := s.standards.GetByCode(ctx, code); err == nil {
		return s.attachPayment(ctx, &Resolution{Kind: KindStandard, Standard: p}), nil
	} else if !errors.Is(err, payments.ErrNotFound) {
		return nil, err
	}

	return &Resolution{Kind: KindNotFound}, nil
}

func (s *Service) attachPayment(ctx context.Context, r *Resolution) *Resolution {
	if s.gateways == nil {
		return r
	}
	if rec, err := s.gateways.Store().GetByTransactionCode(ctx, r.Code()); err == nil {
		r.Payment = rec
	}
	return r
}

// ResolveFor resolves a transaction and checks the requester is a party.
// Not-found and forbidden are distinct: not-found when no family has the
// code, forbidden when it exists but the requester is neither buyer nor
// seller.
func (s *Service) ResolveFor(ctx context.Context, code, requesterID string) (*Resolution, Role, error) {
	r, err := s.Resolve(ctx, code)
	if err != nil {
		return nil, "", err
	}
	if r.Kind == KindNotFound {
		return nil, "", ErrNotFound
	}
	buyerID, sellerID := r.parties()
	switch requesterID {
	case buyerID:
		return r, RoleBuyer, nil
	case sellerID:
		return r, RoleSeller, nil
	}
	return nil, "", ErrForbidden
}

// NextStatuses enumerates the statuses the requester may move the resolved
// transaction to: the family's adjacency edges filtered by role.
func (s *Service) NextStatuses(r *Resolution, role Role) []escrow.Status {
	from := r.Status()
	var edges []escrow.Status
	switch r.Kind {
	case KindEscrow:
		edges = escrow.NextStatuses(from)
	case KindStandard:
		edges = payments.NextStatuses(from)
	default:
		return nil
	}

	out := edges[:0]
	for _, to := range edges {
		if allowedForRole(from, to, role) {
			out = append(out, to)
		}
	}
	return out
}

// Execute performs a status transition on behalf of a requester. The
// adjacency table decides whether the edge exists; the role gates decide
// whether this requester may use it; a same-state request is a conflict so
// a retried call cannot duplicate side effects.
func (s *Service) Execute(ctx context.Context, code, requesterID string, to escrow.Status, note string) (*Resolution, error) {
	r, role, err := s.ResolveFor(ctx, code, requesterID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, r, role, requesterID, to, note)
}

// ExecuteAsSystem performs a transition on behalf of the scheduler or
// webhook pipeline, bypassing the party gates.
func (s *Service) ExecuteAsSystem(ctx context.Context, code string, to escrow.Status, note string) (*Resolution, error) {
	r, err := s.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if r.Kind == KindNotFound {
		return nil, ErrNotFound
	}
	return s.execute(ctx, r, RoleSystem, "system", to, note)
}

func (s *Service) execute(ctx context.Context, r *Resolution, role Role, actor string, to escrow.Status, note string) (*Resolution, error) {
	ctx, span := traces.StartSpan(ctx, "status.Execute",
		traces.TransactionCode(r.Code()), traces.Status(string(to)))
	defer span.End()

	from := r.Status()
	if edgeExists(r.Kind, from, to) && !allowedForRole(from, to, role) {
		metrics.TransitionsRejected.WithLabelValues("role").Inc()
		return nil, fmt.Errorf("%w: %s may not move %s -> %s", ErrRoleDenied, role, from, to)
	}

	// Completing a delivered escrow releases the held funds, so the edge
	// runs through the payout service: disbursement, the payout record and
	// the completed transition land together. Confirmation can never reach
	// the terminal state with the money still held.
	if r.Kind == KindEscrow && from == escrow.StatusDelivered && to == escrow.StatusCompleted {
		t, err := s.payouts.Process(ctx, r.Escrow.ID)
		if err != nil {
			return nil, err
		}
		r.Escrow = t
		s.syncPaymentProjection(ctx, r, to)
		return r, nil
	}

	switch r.Kind {
	case KindEscrow:
		if err := r.Escrow.Transition(to, note, actor); err != nil {
			metrics.TransitionsRejected.WithLabelValues(rejectionReason(err)).Inc()
			return nil, err
		}
		if err := s.escrows.Update(ctx, r.Escrow); err != nil {
			return nil, err
		}
	case KindStandard:
		if err := r.Standard.Transition(to, note, actor); err != nil {
			metrics.TransitionsRejected.WithLabelValues(rejectionReason(err)).Inc()
			return nil, err
		}
		if err := s.standards.Update(ctx, r.Standard); err != nil {
			return nil, err
		}
	}

	metrics.TransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("status transition",
		"transactionCode", r.Code(),
		"from", from,
		"to", to,
		"actor", actor,
	)

	s.syncPaymentProjection(ctx, r, to)
	s.runSideEffects(ctx, r, to)

	buyerID, sellerID := r.parties()
	s.sink.Emit(ctx, events.Event{
		TransactionCode: r.Code(),
		Status:          string(to),
		PreviousStatus:  string(from),
		BuyerID:         buyerID,
		SellerID:        sellerID,
		Note:            note,
	})
	return r, nil
}

// syncPaymentProjection keeps the gateway payment record consistent with
// the aggregate. The aggregate is the source of truth; a projection write
// failure is logged and reconciled later, never rolled back into the
// status change.
func (s *Service) syncPaymentProjection(ctx context.Context, r *Resolution, to escrow.Status) {
	if s.gateways == nil || r.Payment == nil {
		return
	}
	var target gateway.PaymentStatus
	switch to {
	case escrow.StatusFundsHeld, escrow.StatusCompleted:
		target = gateway.StatusSucceeded
	case escrow.StatusPaymentFailed:
		target = gateway.StatusFailed
	case escrow.StatusCancelled:
		target = gateway.StatusCancelled
	case escrow.StatusRefunded:
		target = gateway.StatusRefunded
	default:
		return
	}
	if _, err := s.gateways.ApplyStatus(ctx, r.Payment.Gateway, r.Payment.GatewayTransactionID, target, ""); err != nil {
		s.logger.Warn("failed to sync payment record projection",
			"transactionCode", r.Code(), "target", target, "error", err)
	}
}

// runSideEffects triggers the downstream effects of a transition. They are
// independently retryable and never roll back the transition.
func (s *Service) runSideEffects(ctx context.Context, r *Resolution, to escrow.Status) {
	if to != escrow.StatusFundsHeld || r.Kind != KindEscrow || s.orders == nil {
		return
	}
	t := r.Escrow
	_, created, err := s.orders.CreateForTransaction(ctx, &orders.Order{
		TransactionCode: t.Code,
		BuyerID:         t.BuyerID,
		SellerID:        t.SellerID,
		ProductID:       t.ProductID,
		Amount:          t.TotalAmount,
		Currency:        t.Currency,
	})
	if err != nil {
		s.logger.Error("order creation failed after funds_held",
			"transactionCode", t.Code, "error", err)
		return
	}
	if created {
		s.logger.Info("order created", "transactionCode", t.Code)
	}
}

// ApplyGatewayStatus maps a provider-reported payment state onto the
// transaction's lifecycle. Used by webhooks and status polls; duplicate
// delivery of the same state is a silent no-op.
func (s *Service) ApplyGatewayStatus(ctx context.Context, gatewayName, gatewayTxnID string, payStatus gateway.PaymentStatus, failureReason string) (*Resolution, error) {
	rec, err := s.gateways.ApplyStatus(ctx, gatewayName, gatewayTxnID, payStatus, failureReason)
	if err != nil {
		return nil, err
	}

	r, err := s.Resolve(ctx, rec.TransactionCode)
	if err != nil {
		return nil, err
	}
	if r.Kind == KindNotFound {
		return nil, ErrNotFound
	}

	var target escrow.Status
	switch payStatus {
	case gateway.StatusSucceeded:
		if r.Kind == KindEscrow {
			target = escrow.StatusFundsHeld
		} else {
			target = escrow.StatusCompleted
		}
	case gateway.StatusFailed:
		target = escrow.StatusPaymentFailed
	case gateway.StatusCancelled:
		target = escrow.StatusCancelled
	case gateway.StatusRefunded:
		target = escrow.StatusRefunded
	default:
		// processing/pending keeps the transaction where it is
		return r, nil
	}

	if r.Status() == target {
		return r, nil
	}
	res, err := s.execute(ctx, r, RoleSystem, "gateway:"+gatewayName, target,
		fmt.Sprintf("gateway reported %s", payStatus))
	if err != nil {
		if errors.Is(err, escrow.ErrSameStatus) || errors.Is(err, payments.ErrSameStatus) {
			return r, nil
		}
		return nil, err
	}
	return res, nil
}

// edgeExists reports whether the family's adjacency table has from -> to.
// The role gate only applies to real edges; a nonexistent edge falls
// through to Transition so the caller sees the family's invalid-transition
// error rather than a role denial.
func edgeExists(kind Kind, from, to escrow.Status) bool {
	switch kind {
	case KindEscrow:
		return escrow.CanTransition(from, to)
	case KindStandard:
		return payments.CanTransition(from, to)
	}
	return false
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, escrow.ErrSameStatus), errors.Is(err, payments.ErrSameStatus):
		return "same_status"
	case errors.Is(err, escrow.ErrInvalidTransition), errors.Is(err, payments.ErrInvalidTransition):
		return "invalid_edge"
	default:
		return "other"
	}
}
