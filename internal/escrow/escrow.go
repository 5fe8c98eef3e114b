// Package escrow implements the escrow transaction aggregate: the persisted
// purchase record, its money math, and the status state machine.
//
// The aggregate is the source of truth for a transaction's state. Status
// only changes through Transition, which consults the adjacency table and
// appends exactly one history entry per accepted change. The linked gateway
// payment record is a derived projection and never drives the aggregate.
package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/pagination"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/validation"
)

// Errors
var (
	ErrNotFound          = errors.New("escrow: transaction not found")
	ErrInvalidTransition = errors.New("escrow: status transition not permitted")
	ErrSameStatus        = errors.New("escrow: transaction already in this status")
	ErrBuyerIsSeller     = errors.New("escrow: buyer and seller must differ")
	ErrAlreadyPaidOut    = errors.New("escrow: payout already processed")
	ErrNotDelivered      = errors.New("escrow: transaction is not in delivered state")
	ErrNegativeAmount    = errors.New("escrow: computed amount is negative")
	ErrPaymentNotAllowed = errors.New("escrow: payment cannot be initialized in current status")
	ErrDuplicateCode     = errors.New("escrow: transaction code already exists")
)

// Status is a lifecycle state of an escrow transaction.
type Status string

const (
	StatusPendingPayment    Status = "pending_payment"
	StatusPaymentProcessing Status = "payment_processing"
	StatusFundsHeld         Status = "funds_held"
	StatusPaymentFailed     Status = "payment_failed"
	StatusShipped           Status = "shipped"
	StatusDelivered         Status = "delivered"
	StatusCompleted         Status = "completed"
	StatusDisputed          Status = "disputed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
)

// transitions is the adjacency table. A transition absent from this table
// is rejected no matter who asks. Any pre-completion state may branch to
// disputed, cancelled or refunded; payment_failed may retry processing.
var transitions = map[Status][]Status{
	StatusPendingPayment:    {StatusPaymentProcessing, StatusDisputed, StatusCancelled, StatusRefunded},
	StatusPaymentProcessing: {StatusFundsHeld, StatusPaymentFailed, StatusDisputed, StatusCancelled, StatusRefunded},
	StatusFundsHeld:         {StatusShipped, StatusDisputed, StatusCancelled, StatusRefunded},
	StatusShipped:           {StatusDelivered, StatusDisputed, StatusCancelled, StatusRefunded},
	StatusDelivered:         {StatusCompleted, StatusDisputed, StatusCancelled, StatusRefunded},
	StatusPaymentFailed:     {StatusPaymentProcessing, StatusCancelled},
	StatusDisputed:          {StatusRefunded, StatusCompleted, StatusCancelled},
	StatusCompleted:         nil,
	StatusCancelled:         nil,
	StatusRefunded:          nil,
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is an edge in the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from the given status.
func NextStatuses(from Status) []Status {
	next := transitions[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// GatewayFeePayer identifies who absorbs the gateway fee on a transaction.
type GatewayFeePayer string

const (
	FeePaidByBuyer  GatewayFeePayer = "buyer"
	FeePaidBySeller GatewayFeePayer = "seller"
)

// StatusHistoryEntry is one accepted transition. History is append-only.
type StatusHistoryEntry struct {
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryDetails records shipment and delivery evidence.
type DeliveryDetails struct {
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}

// PayoutDetails records the disbursement to the seller. ProcessedAt is the
// sole idempotency guard: it is written exactly once per transaction.
type PayoutDetails struct {
	Method      string     `json:"method,omitempty"`
	Reference   string     `json:"reference,omitempty"`
	Amount      string     `json:"amount,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// DisputeDetails records an open or resolved dispute.
type DisputeDetails struct {
	Reason     string     `json:"reason,omitempty"`
	OpenedBy   string     `json:"openedBy,omitempty"`
	OpenedAt   *time.Time `json:"openedAt,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Transaction is the escrow aggregate.
type Transaction struct {
	ID   string `json:"id"`
	Code string `json:"transactionCode"` // globally unique, immutable

	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	ProductID string `json:"productId"`
	OfferID   string `json:"offerId,omitempty"`

	ProductPrice          string          `json:"productPrice"`
	ShippingCost          string          `json:"shippingCost"`
	SalesTax              string          `json:"salesTax"`
	TotalAmount           string          `json:"totalAmount"`
	PlatformFeePercentage float64         `json:"platformFeePercentage"`
	PlatformFeeAmount     string          `json:"platformFeeAmount"`
	GatewayFeeAmount      string          `json:"gatewayFeeAmount"`
	GatewayFeePaidBy      GatewayFeePayer `json:"gatewayFeePaidBy"`
	SellerPayout          string          `json:"sellerPayout"`

	Currency         string  `json:"currency"`
	OriginalCurrency string  `json:"originalCurrency,omitempty"`
	OriginalAmount   string  `json:"originalAmount,omitempty"`
	ExchangeRate     float64 `json:"exchangeRate,omitempty"`

	ShippingAddress validation.ShippingAddress `json:"shippingAddress"`

	Gateway              string          `json:"gateway,omitempty"`
	GatewayTransactionID string          `json:"gatewayTransactionId,omitempty"`
	GatewayResponse      json.RawMessage `json:"gatewayResponse,omitempty"`

	Status          Status               `json:"status"`
	StatusHistory   []StatusHistoryEntry `json:"statusHistory"`
	DeliveryDetails DeliveryDetails      `json:"deliveryDetails"`
	PayoutDetails   PayoutDetails        `json:"payoutDetails"`
	DisputeDetails  DisputeDetails       `json:"disputeDetails"`

	AutoReleaseEnabled bool       `json:"autoReleaseEnabled"`
	AutoReleaseDays    int        `json:"autoReleaseDays"`
	AutoReleaseAt      *time.Time `json:"autoReleaseAt,omitempty"`

	Archived  bool      `json:"archived,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Transition moves the aggregate to a new status, appending exactly one
// history entry. Asking for the current status is an explicit error so
// retried calls cannot re-trigger side effects. Status-coupled fields
// (shipped/delivered timestamps, the auto-release deadline) are set here
// so no caller can forget them.
func (t *Transaction) Transition(to Status, note, actor string) error {
	if to == t.Status {
		return ErrSameStatus
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}

	now := time.Now()
	t.Status = to
	t.StatusHistory = append(t.StatusHistory, StatusHistoryEntry{
		Status:    to,
		Note:      note,
		Actor:     actor,
		Timestamp: now,
	})
	t.UpdatedAt = now

	switch to {
	case StatusFundsHeld:
		if t.AutoReleaseEnabled && t.AutoReleaseAt == nil {
			at := now.AddDate(0, 0, t.AutoReleaseDays)
			t.AutoReleaseAt = &at
		}
	case StatusShipped:
		if t.DeliveryDetails.ShippedAt == nil {
			t.DeliveryDetails.ShippedAt = &now
		}
	case StatusDelivered:
		if t.DeliveryDetails.DeliveredAt == nil {
			t.DeliveryDetails.DeliveredAt = &now
		}
	}
	return nil
}

// PaidOut reports whether the payout was already processed.
func (t *Transaction) PaidOut() bool {
	return t.PayoutDetails.ProcessedAt != nil
}

// Store persists escrow transactions.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	GetByCode(ctx context.Context, code string) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) error
	// ListByBuyer and ListBySeller page newest-first; a non-nil cursor
	// returns transactions strictly older than the cursor position.
	ListByBuyer(ctx context.Context, buyerID string, before *pagination.Cursor, limit int) ([]*Transaction, error)
	ListBySeller(ctx context.Context, sellerID string, before *pagination.Cursor, limit int) ([]*Transaction, error)

	// ClaimPayout atomically records payout details on a transaction whose
	// payout is still unclaimed. Returns ErrAlreadyPaidOut if another actor
	// claimed it first. This conditional write is the multi-instance
	// correctness boundary for payout idempotence.
	ClaimPayout(ctx context.Context, id string, details PayoutDetails) error

	// ListAutoReleasable returns funds_held transactions with auto-release
	// enabled whose deadline has passed.
	ListAutoReleasable(ctx context.Context, now time.Time, limit int) ([]*Transaction, error)
	// ListPurgeable returns failed or cancelled transactions older than cutoff.
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)
	// ListArchivable returns completed, unarchived transactions older than cutoff.
	ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)
	MarkArchived(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
