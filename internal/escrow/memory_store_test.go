package escrow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/pagination"
)

func TestMemoryStoreCopiesOut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	txn := newHeldTransaction()
	require.NoError(t, store.Create(ctx, txn))

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)

	// Mutating the returned value must not leak into the store.
	got.Status = StatusCompleted
	got.StatusHistory = append(got.StatusHistory, StatusHistoryEntry{Status: StatusCompleted})

	fresh, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, fresh.Status)
	assert.Len(t, fresh.StatusHistory, 1)
}

func TestMemoryStoreDuplicateCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newHeldTransaction()))

	dup := newHeldTransaction()
	dup.ID = "esc_2"
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicateCode)
}

func TestMemoryStoreGetByCode(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	txn := newHeldTransaction()
	require.NoError(t, store.Create(ctx, txn))

	got, err := store.GetByCode(ctx, txn.Code)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	_, err = store.GetByCode(ctx, "TXN-NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimPayoutExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	txn := newHeldTransaction()
	require.NoError(t, store.Create(ctx, txn))

	now := time.Now()
	details := PayoutDetails{Method: "wallet", Reference: "wtx_1", Amount: "90.00", ProcessedAt: &now}

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.ClaimPayout(ctx, txn.ID, details)
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyPaidOut)
		}
	}
	assert.Equal(t, 1, ok, "exactly one claim wins")

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PayoutDetails.ProcessedAt)
	assert.Equal(t, "wtx_1", got.PayoutDetails.Reference)
}

func TestListAutoReleasable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := newHeldTransaction()
	due.ID, due.Code = "esc_due", "TXN-due"
	due.Status = StatusFundsHeld
	due.AutoReleaseAt = &past
	require.NoError(t, store.Create(ctx, due))

	notDue := newHeldTransaction()
	notDue.ID, notDue.Code = "esc_notdue", "TXN-notdue"
	notDue.Status = StatusFundsHeld
	notDue.AutoReleaseAt = &future
	require.NoError(t, store.Create(ctx, notDue))

	wrongStatus := newHeldTransaction()
	wrongStatus.ID, wrongStatus.Code = "esc_shipped", "TXN-shipped"
	wrongStatus.Status = StatusShipped
	wrongStatus.AutoReleaseAt = &past
	require.NoError(t, store.Create(ctx, wrongStatus))

	got, err := store.ListAutoReleasable(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "esc_due", got[0].ID)
}

func TestListByParty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i, buyer := range []string{"buyer_1", "buyer_1", "buyer_2"} {
		txn := newHeldTransaction()
		txn.ID = txn.ID + string(rune('a'+i))
		txn.Code = txn.Code + string(rune('a'+i))
		txn.BuyerID = buyer
		require.NoError(t, store.Create(ctx, txn))
	}

	mine, err := store.ListByBuyer(ctx, "buyer_1", nil, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	sellers, err := store.ListBySeller(ctx, "seller_1", nil, 2)
	require.NoError(t, err)
	assert.Len(t, sellers, 2, "limit applies")
}

func TestListByBuyerCursorPaging(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		txn := newHeldTransaction()
		txn.ID = fmt.Sprintf("esc_%d", i)
		txn.Code = fmt.Sprintf("TXN-PAGE-%d", i)
		txn.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		txn.UpdatedAt = txn.CreatedAt
		require.NoError(t, store.Create(ctx, txn))
	}

	first, err := store.ListByBuyer(ctx, "buyer_1", nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "esc_4", first[0].ID, "newest first")
	assert.Equal(t, "esc_3", first[1].ID)

	cursor := &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	second, err := store.ListByBuyer(ctx, "buyer_1", cursor, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "esc_2", second[0].ID)
	assert.Equal(t, "esc_1", second[1].ID)

	cursor = &pagination.Cursor{CreatedAt: second[1].CreatedAt, ID: second[1].ID}
	last, err := store.ListByBuyer(ctx, "buyer_1", cursor, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "esc_0", last[0].ID)
}
