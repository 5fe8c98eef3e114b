package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/catalog"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/orders"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payments"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payout"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/status"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/wallet"
)

type fixture struct {
	timer   *Timer
	escrows escrow.Store
	wallets *wallet.Service
	orders  orders.Store
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger := slog.Default()
	escrows := escrow.NewMemoryStore()
	orderStore := orders.NewMemoryStore()
	wallets := wallet.NewService(wallet.NewMemoryStore())
	payouts := payout.NewService(escrows, catalog.NewMemoryStore(), events.NopSink{}, logger,
		payout.NewWalletDisburser(wallets))
	statuses := status.NewService(escrows, payments.NewMemoryStore(), nil,
		orders.NewService(orderStore), payouts, events.NopSink{}, logger)
	return &fixture{
		timer:   NewTimer(escrows, statuses, payouts, opts, logger),
		escrows: escrows,
		wallets: wallets,
		orders:  orderStore,
	}
}

func (f *fixture) seed(t *testing.T, txn *escrow.Transaction) *escrow.Transaction {
	t.Helper()
	require.NoError(t, f.escrows.Create(context.Background(), txn))
	return txn
}

func overdueHeld(id string) *escrow.Transaction {
	past := time.Now().Add(-time.Hour)
	return &escrow.Transaction{
		ID:                 id,
		Code:               "TXN-" + id,
		BuyerID:            "buyer_1",
		SellerID:           "seller_1",
		Currency:           "USD",
		ProductPrice:       "100.00",
		SellerPayout:       "90.00",
		Status:             escrow.StatusFundsHeld,
		AutoReleaseEnabled: true,
		AutoReleaseAt:      &past,
		StatusHistory: []escrow.StatusHistoryEntry{
			{Status: escrow.StatusFundsHeld, Note: "seeded", Timestamp: past},
		},
	}
}

func TestAutoReleaseCompletesAndPaysOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	txn := f.seed(t, overdueHeld("ar1"))

	f.timer.AutoRelease(ctx)

	done, err := f.escrows.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCompleted, done.Status)
	require.NotNil(t, done.PayoutDetails.ProcessedAt)

	balance, err := f.wallets.Balance(ctx, "seller_1", "USD")
	require.NoError(t, err)
	assert.Equal(t, "90.00", balance)

	// shipped, delivered, completed appended to the seeded entry
	assert.Len(t, done.StatusHistory, 4)
}

func TestAutoReleaseSecondPassIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	txn := f.seed(t, overdueHeld("ar1"))

	f.timer.AutoRelease(ctx)
	f.timer.AutoRelease(ctx)

	done, err := f.escrows.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Len(t, done.StatusHistory, 4, "a second pass must not touch the transaction")

	balance, err := f.wallets.Balance(ctx, "seller_1", "USD")
	require.NoError(t, err)
	assert.Equal(t, "90.00", balance, "a second pass must not double-credit")
}

func TestAutoReleaseSkipsUndueAndDisabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	future := time.Now().Add(time.Hour)
	notDue := overdueHeld("nd1")
	notDue.Code = "TXN-nd1"
	notDue.AutoReleaseAt = &future
	f.seed(t, notDue)

	disabled := overdueHeld("dis1")
	disabled.Code = "TXN-dis1"
	disabled.AutoReleaseEnabled = false
	f.seed(t, disabled)

	f.timer.AutoRelease(ctx)

	for _, id := range []string{"nd1", "dis1"} {
		got, err := f.escrows.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, escrow.StatusFundsHeld, got.Status, "transaction %s", id)
	}
}

func TestAutoReleaseDisputedIsLeftAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	// Disputed before the deadline fired; the lister only returns funds_held.
	past := time.Now().Add(-time.Hour)
	disputed := overdueHeld("disp1")
	disputed.Status = escrow.StatusDisputed
	disputed.AutoReleaseAt = &past
	f.seed(t, disputed)

	f.timer.AutoRelease(ctx)

	got, err := f.escrows.Get(ctx, "disp1")
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusDisputed, got.Status)
}

func TestCleanupPurgesOldFailedAndCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{RetentionDays: 30, ArchiveAfterDays: 90})

	old := time.Now().AddDate(0, 0, -31)
	f.seed(t, &escrow.Transaction{
		ID: "p1", Code: "TXN-p1", Status: escrow.StatusPaymentFailed, UpdatedAt: old, CreatedAt: old,
	})
	f.seed(t, &escrow.Transaction{
		ID: "p2", Code: "TXN-p2", Status: escrow.StatusCancelled, UpdatedAt: old, CreatedAt: old,
	})
	// Recent failure stays within retention.
	f.seed(t, &escrow.Transaction{
		ID: "p3", Code: "TXN-p3", Status: escrow.StatusPaymentFailed,
	})

	f.timer.Cleanup(ctx)

	_, err := f.escrows.Get(ctx, "p1")
	assert.ErrorIs(t, err, escrow.ErrNotFound)
	_, err = f.escrows.Get(ctx, "p2")
	assert.ErrorIs(t, err, escrow.ErrNotFound)
	_, err = f.escrows.Get(ctx, "p3")
	assert.NoError(t, err)
}

func TestCleanupArchivesOldCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{RetentionDays: 30, ArchiveAfterDays: 90})

	old := time.Now().AddDate(0, 0, -91)
	f.seed(t, &escrow.Transaction{
		ID: "a1", Code: "TXN-a1", Status: escrow.StatusCompleted, UpdatedAt: old, CreatedAt: old,
	})
	f.seed(t, &escrow.Transaction{
		ID: "a2", Code: "TXN-a2", Status: escrow.StatusCompleted,
	})

	f.timer.Cleanup(ctx)

	archived, err := f.escrows.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	recent, err := f.escrows.Get(ctx, "a2")
	require.NoError(t, err)
	assert.False(t, recent.Archived)

	// Archiving is one-way and a second pass changes nothing else.
	f.timer.Cleanup(ctx)
	again, err := f.escrows.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, again.Archived)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, Options{AutoReleaseInterval: time.Hour, CleanupInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go f.timer.Start(ctx)
	require.Eventually(t, f.timer.Running, time.Second, 5*time.Millisecond)

	f.timer.Stop()
	require.Eventually(t, func() bool { return !f.timer.Running() }, time.Second, 5*time.Millisecond)
}
