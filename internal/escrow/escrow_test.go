package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeldTransaction() *Transaction {
	t := &Transaction{
		ID:                 "esc_1",
		Code:               "TXN-TEST-1",
		BuyerID:            "buyer_1",
		SellerID:           "seller_1",
		Status:             StatusPendingPayment,
		AutoReleaseEnabled: true,
		AutoReleaseDays:    3,
		StatusHistory: []StatusHistoryEntry{
			{Status: StatusPendingPayment, Note: "transaction created"},
		},
	}
	return t
}

func TestTransitionHappyPath(t *testing.T) {
	txn := newHeldTransaction()

	path := []Status{
		StatusPaymentProcessing,
		StatusFundsHeld,
		StatusShipped,
		StatusDelivered,
		StatusCompleted,
	}
	for _, next := range path {
		require.NoError(t, txn.Transition(next, "", "test"), "to %s", next)
	}
	assert.Equal(t, StatusCompleted, txn.Status)
	// One seeded entry plus exactly one per accepted transition.
	assert.Len(t, txn.StatusHistory, 1+len(path))
}

func TestTransitionRejectedEdgeLeavesHistoryUnchanged(t *testing.T) {
	txn := newHeldTransaction()
	require.NoError(t, txn.Transition(StatusPaymentProcessing, "", "test"))
	require.NoError(t, txn.Transition(StatusFundsHeld, "", "test"))
	before := len(txn.StatusHistory)

	err := txn.Transition(StatusPendingPayment, "", "test")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusFundsHeld, txn.Status)
	assert.Len(t, txn.StatusHistory, before, "rejected transition must not append history")

	err = txn.Transition(StatusCompleted, "", "test")
	assert.ErrorIs(t, err, ErrInvalidTransition, "funds_held cannot skip to completed")
	assert.Len(t, txn.StatusHistory, before)
}

func TestTransitionSameStatusIsExplicitError(t *testing.T) {
	txn := newHeldTransaction()
	err := txn.Transition(StatusPendingPayment, "", "test")
	assert.ErrorIs(t, err, ErrSameStatus)
	assert.Len(t, txn.StatusHistory, 1)
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusRefunded, StatusCancelled} {
		txn := newHeldTransaction()
		txn.Status = terminal
		for _, next := range []Status{
			StatusPendingPayment, StatusFundsHeld, StatusShipped,
			StatusDelivered, StatusDisputed, StatusRefunded, StatusCancelled,
		} {
			if next == terminal {
				continue
			}
			err := txn.Transition(next, "", "test")
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", terminal, next)
		}
		assert.True(t, terminal.Terminal())
	}
}

func TestDisputeReachableFromActiveStates(t *testing.T) {
	for _, from := range []Status{
		StatusPendingPayment, StatusPaymentProcessing, StatusFundsHeld,
		StatusShipped, StatusDelivered,
	} {
		assert.True(t, CanTransition(from, StatusDisputed), "%s should allow dispute", from)
		assert.True(t, CanTransition(from, StatusCancelled), "%s should allow cancel", from)
		assert.True(t, CanTransition(from, StatusRefunded), "%s should allow refund", from)
	}
	assert.False(t, CanTransition(StatusCompleted, StatusDisputed))
}

func TestPaymentFailedCanRetry(t *testing.T) {
	txn := newHeldTransaction()
	require.NoError(t, txn.Transition(StatusPaymentProcessing, "", "test"))
	require.NoError(t, txn.Transition(StatusPaymentFailed, "gateway declined", "system"))
	require.NoError(t, txn.Transition(StatusPaymentProcessing, "retry", "buyer_1"))
	require.NoError(t, txn.Transition(StatusFundsHeld, "", "system"))
	assert.Equal(t, StatusFundsHeld, txn.Status)
}

func TestFundsHeldSetsAutoReleaseDeadline(t *testing.T) {
	txn := newHeldTransaction()
	require.NoError(t, txn.Transition(StatusPaymentProcessing, "", "test"))
	require.Nil(t, txn.AutoReleaseAt)

	require.NoError(t, txn.Transition(StatusFundsHeld, "", "system"))
	require.NotNil(t, txn.AutoReleaseAt)
	assert.WithinDuration(t, txn.UpdatedAt.AddDate(0, 0, 3), *txn.AutoReleaseAt, 0)
}

func TestAutoReleaseDisabled(t *testing.T) {
	txn := newHeldTransaction()
	txn.AutoReleaseEnabled = false
	require.NoError(t, txn.Transition(StatusPaymentProcessing, "", "test"))
	require.NoError(t, txn.Transition(StatusFundsHeld, "", "system"))
	assert.Nil(t, txn.AutoReleaseAt)
}

func TestShippedAndDeliveredTimestamps(t *testing.T) {
	txn := newHeldTransaction()
	require.NoError(t, txn.Transition(StatusPaymentProcessing, "", "test"))
	require.NoError(t, txn.Transition(StatusFundsHeld, "", "system"))
	require.NoError(t, txn.Transition(StatusShipped, "", "seller_1"))
	require.NotNil(t, txn.DeliveryDetails.ShippedAt)
	require.NoError(t, txn.Transition(StatusDelivered, "", "buyer_1"))
	require.NotNil(t, txn.DeliveryDetails.DeliveredAt)
}

func TestValid(t *testing.T) {
	assert.True(t, StatusFundsHeld.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, Status("garbage").Valid())
}
