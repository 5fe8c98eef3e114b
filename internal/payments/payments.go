// Package payments implements the direct payment family: purchases charged
// and settled immediately, without an escrow hold.
//
// Direct payments share the escrow status vocabulary so one status service
// can drive both families, but their lifecycle is shorter: a successful
// charge completes the transaction, there is no funds_held stage.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
)

var (
	ErrNotFound          = errors.New("payments: payment not found")
	ErrInvalidTransition = errors.New("payments: status transition not permitted")
	ErrSameStatus        = errors.New("payments: payment already in this status")
	ErrDuplicateCode     = errors.New("payments: payment code already exists")
)

// transitions is the direct-payment adjacency table. Same vocabulary as
// escrow, shorter lifecycle: success completes immediately.
var transitions = map[escrow.Status][]escrow.Status{
	escrow.StatusPendingPayment:    {escrow.StatusPaymentProcessing, escrow.StatusCancelled},
	escrow.StatusPaymentProcessing: {escrow.StatusCompleted, escrow.StatusPaymentFailed, escrow.StatusCancelled},
	escrow.StatusPaymentFailed:     {escrow.StatusPaymentProcessing, escrow.StatusCancelled},
	escrow.StatusCompleted:         {escrow.StatusRefunded},
	escrow.StatusCancelled:         nil,
	escrow.StatusRefunded:          nil,
}

// CanTransition reports whether from -> to is a direct-payment edge.
func CanTransition(from, to escrow.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from the given status.
func NextStatuses(from escrow.Status) []escrow.Status {
	next := transitions[from]
	out := make([]escrow.Status, len(next))
	copy(out, next)
	return out
}

// Payment is a direct purchase record.
type Payment struct {
	ID   string `json:"id"`
	Code string `json:"transactionCode"`

	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	ProductID string `json:"productId"`

	Amount   string `json:"amount"`
	Currency string `json:"currency"`

	Gateway              string `json:"gateway,omitempty"`
	GatewayTransactionID string `json:"gatewayTransactionId,omitempty"`

	Status        escrow.Status               `json:"status"`
	StatusHistory []escrow.StatusHistoryEntry `json:"statusHistory"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transition moves the payment to a new status, appending one history entry.
func (p *Payment) Transition(to escrow.Status, note, actor string) error {
	if to == p.Status {
		return ErrSameStatus
	}
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, to)
	}
	now := time.Now()
	p.Status = to
	p.StatusHistory = append(p.StatusHistory, escrow.StatusHistoryEntry{
		Status:    to,
		Note:      note,
		Actor:     actor,
		Timestamp: now,
	})
	p.UpdatedAt = now
	return nil
}

// Store persists direct payments.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByCode(ctx context.Context, code string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}
