// Package status validates and executes transaction status transitions
// across both transaction families.
//
// It exists apart from the aggregates because escrow and direct payments
// share one status vocabulary and one external-code namespace: a lookup
// must try both families and answer with a single tagged result, and a
// transition must be gated by the same role rules wherever the record
// lives.
package status

import (
	"errors"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/gateway"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payments"
)

var (
	ErrNotFound   = errors.New("status: transaction not found")
	ErrForbidden  = errors.New("status: requester is not a party to this transaction")
	ErrRoleDenied = errors.New("status: role may not perform this transition")
)

// Kind tags which family a lookup resolved to.
type Kind int

const (
	KindNotFound Kind = iota
	KindEscrow
	KindStandard
)

// Resolution is the single tagged answer to a transaction lookup. Exactly
// one of Escrow or Standard is set for a found transaction; Payment is the
// linked gateway record when one exists.
type Resolution struct {
	Kind     Kind
	Escrow   *escrow.Transaction
	Standard *payments.Payment
	Payment  *gateway.PaymentRecord
}

// Code returns the resolved transaction's external code.
func (r *Resolution) Code() string {
	switch r.Kind {
	case KindEscrow:
		return r.Escrow.Code
	case KindStandard:
		return r.Standard.Code
	}
	return ""
}

// Status returns the resolved transaction's current status.
func (r *Resolution) Status() escrow.Status {
	switch r.Kind {
	case KindEscrow:
		return r.Escrow.Status
	case KindStandard:
		return r.Standard.Status
	}
	return ""
}

func (r *Resolution) parties() (buyerID, sellerID string) {
	switch r.Kind {
	case KindEscrow:
		return r.Escrow.BuyerID, r.Escrow.SellerID
	case KindStandard:
		return r.Standard.BuyerID, r.Standard.SellerID
	}
	return "", ""
}

// Role is the requester's relationship to a transaction.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	// RoleSystem is the scheduler and webhook pipeline; it bypasses the
	// party gates but never the adjacency table.
	RoleSystem Role = "system"
)

// partyEdges enumerates every transition a buyer or seller may execute
// directly: the seller ships, the buyer confirms delivery or starts and
// retries their own payment, either party may cancel an unfunded deal or
// open a dispute once money is held. Edges absent from this list are
// reserved for the system role: payment confirmations and failures come
// from gateway responses, refunds and dispute resolutions from admin
// tooling, auto-release from the scheduler.
var partyEdges = map[[2]escrow.Status][]Role{
	{escrow.StatusPendingPayment, escrow.StatusPaymentProcessing}: {RoleBuyer},
	{escrow.StatusPendingPayment, escrow.StatusCancelled}:         {RoleBuyer, RoleSeller},
	{escrow.StatusPaymentFailed, escrow.StatusPaymentProcessing}:  {RoleBuyer},
	{escrow.StatusPaymentFailed, escrow.StatusCancelled}:          {RoleBuyer, RoleSeller},
	{escrow.StatusFundsHeld, escrow.StatusShipped}:                {RoleSeller},
	{escrow.StatusFundsHeld, escrow.StatusDisputed}:               {RoleBuyer, RoleSeller},
	{escrow.StatusShipped, escrow.StatusDisputed}:                 {RoleBuyer, RoleSeller},
	{escrow.StatusDelivered, escrow.StatusCompleted}:              {RoleBuyer},
	{escrow.StatusDelivered, escrow.StatusDisputed}:               {RoleBuyer, RoleSeller},
}

// allowedForRole reports whether the role may perform from -> to. The
// system role may use any edge in the adjacency table; parties only the
// ones listed for them.
func allowedForRole(from, to escrow.Status, role Role) bool {
	if role == RoleSystem {
		return true
	}
	for _, allowed := range partyEdges[[2]escrow.Status{from, to}] {
		if allowed == role {
			return true
		}
	}
	return false
}
