package offers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingOffer(id string, expiresIn time.Duration) *Offer {
	return &Offer{
		ID:        id,
		ProductID: "prod_1",
		BuyerID:   "buyer_1",
		SellerID:  "seller_1",
		Amount:    "80.00",
		Currency:  "USD",
		Status:    StatusPending,
		ExpiresAt: time.Now().Add(expiresIn),
	}
}

func TestAcceptDecline(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)

	require.NoError(t, store.Create(ctx, pendingOffer("offer_1", time.Hour)))
	require.NoError(t, store.Create(ctx, pendingOffer("offer_2", time.Hour)))

	accepted, err := svc.Accept(ctx, "offer_1")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)

	declined, err := svc.Decline(ctx, "offer_2")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)

	// An answered offer cannot be answered again.
	_, err = svc.Decline(ctx, "offer_1")
	assert.ErrorIs(t, err, ErrNotActionable)
}

func TestAnswerExpiredOffer(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)
	require.NoError(t, store.Create(ctx, pendingOffer("offer_1", -time.Minute)))

	_, err := svc.Accept(ctx, "offer_1")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestResolveAccepted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)

	o := pendingOffer("offer_1", time.Hour)
	o.Status = StatusAccepted
	require.NoError(t, store.Create(ctx, o))

	got, err := svc.ResolveAccepted(ctx, "offer_1", "prod_1", "buyer_1")
	require.NoError(t, err)
	assert.Equal(t, "80.00", got.Amount)

	_, err = svc.ResolveAccepted(ctx, "offer_1", "prod_other", "buyer_1")
	assert.ErrorIs(t, err, ErrWrongProduct)

	_, err = svc.ResolveAccepted(ctx, "offer_1", "prod_1", "buyer_other")
	assert.ErrorIs(t, err, ErrWrongBuyer)

	_, err = svc.ResolveAccepted(ctx, "offer_nope", "prod_1", "buyer_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAcceptedRejectsPendingAndStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store)

	require.NoError(t, store.Create(ctx, pendingOffer("offer_pending", time.Hour)))
	_, err := svc.ResolveAccepted(ctx, "offer_pending", "prod_1", "buyer_1")
	assert.ErrorIs(t, err, ErrNotAccepted)

	stale := pendingOffer("offer_stale", -time.Minute)
	stale.Status = StatusAccepted
	require.NoError(t, store.Create(ctx, stale))
	_, err = svc.ResolveAccepted(ctx, "offer_stale", "prod_1", "buyer_1")
	assert.ErrorIs(t, err, ErrExpired, "an accepted price cannot be exercised after expiry")
}

func TestExpirePending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	timer := NewTimer(store, time.Minute, slog.Default())

	require.NoError(t, store.Create(ctx, pendingOffer("offer_overdue", -time.Minute)))
	require.NoError(t, store.Create(ctx, pendingOffer("offer_fresh", time.Hour)))
	answered := pendingOffer("offer_answered", -time.Minute)
	answered.Status = StatusAccepted
	require.NoError(t, store.Create(ctx, answered))

	timer.ExpirePending(ctx)

	overdue, err := store.Get(ctx, "offer_overdue")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, overdue.Status)

	fresh, err := store.Get(ctx, "offer_fresh")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, fresh.Status)

	// Only pending offers expire; answered ones keep their status.
	kept, err := store.Get(ctx, "offer_answered")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, kept.Status)

	// A second pass finds nothing to do.
	timer.ExpirePending(ctx)
	overdue, err = store.Get(ctx, "offer_overdue")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, overdue.Status)
}
