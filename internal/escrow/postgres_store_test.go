package escrow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/pagination"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/testutil"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/validation"
)

func pgTransaction(n int) *Transaction {
	return &Transaction{
		ID:                    fmt.Sprintf("esc_pg_%d", n),
		Code:                  fmt.Sprintf("TXN-PG-%d", n),
		BuyerID:               "buyer_pg",
		SellerID:              "seller_pg",
		ProductID:             "prod_pg",
		ProductPrice:          "100.00",
		ShippingCost:          "5.00",
		SalesTax:              "0.00",
		TotalAmount:           "118.20",
		PlatformFeePercentage: 10,
		PlatformFeeAmount:     "10.00",
		GatewayFeeAmount:      "3.20",
		GatewayFeePaidBy:      FeePaidByBuyer,
		SellerPayout:          "90.00",
		Currency:              "USD",
		ShippingAddress: validation.ShippingAddress{
			FullName: "Test Buyer", Street: "1 Main St", City: "Dubai",
			PostalCode: "00000", Country: "AE",
		},
		Status:             StatusPendingPayment,
		AutoReleaseEnabled: true,
		AutoReleaseDays:    3,
		StatusHistory: []StatusHistoryEntry{
			{Status: StatusPendingPayment, Note: "transaction created", Timestamp: time.Now().UTC()},
		},
	}
}

func TestPostgresRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	txn := pgTransaction(1)
	require.NoError(t, store.Create(ctx, txn))

	got, err := store.GetByCode(ctx, txn.Code)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, "118.20", got.TotalAmount)
	assert.Equal(t, "90.00", got.SellerPayout)
	assert.Equal(t, FeePaidByBuyer, got.GatewayFeePaidBy)
	assert.Equal(t, "Dubai", got.ShippingAddress.City)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, StatusPendingPayment, got.StatusHistory[0].Status)
}

func TestPostgresDuplicateCode(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pgTransaction(2)))

	dup := pgTransaction(2)
	dup.ID = "esc_pg_2_dup"
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicateCode)
}

func TestPostgresUpdatePersistsStatusAndHistory(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	txn := pgTransaction(3)
	require.NoError(t, store.Create(ctx, txn))

	require.NoError(t, txn.Transition(StatusPaymentProcessing, "", "buyer_pg"))
	require.NoError(t, store.Update(ctx, txn))

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentProcessing, got.Status)
	assert.Len(t, got.StatusHistory, 2)

	missing := pgTransaction(999)
	missing.ID = "esc_pg_missing"
	missing.Code = "TXN-PG-MISSING"
	assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
}

func TestPostgresClaimPayoutOnce(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	txn := pgTransaction(4)
	require.NoError(t, store.Create(ctx, txn))

	now := time.Now().UTC()
	details := PayoutDetails{Method: "wallet", Reference: "ref_1", Amount: "90.00", ProcessedAt: &now}

	require.NoError(t, store.ClaimPayout(ctx, txn.ID, details))
	assert.ErrorIs(t, store.ClaimPayout(ctx, txn.ID, details), ErrAlreadyPaidOut)
	assert.ErrorIs(t, store.ClaimPayout(ctx, "esc_pg_nope", details), ErrNotFound)

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PayoutDetails.ProcessedAt)
	assert.Equal(t, "wallet", got.PayoutDetails.Method)
}

func TestPostgresListByBuyerPages(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		txn := pgTransaction(10 + i)
		txn.BuyerID = "buyer_paging"
		txn.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		txn.UpdatedAt = txn.CreatedAt
		require.NoError(t, store.Create(ctx, txn))
	}

	first, err := store.ListByBuyer(ctx, "buyer_paging", nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "esc_pg_12", first[0].ID, "newest first")
	assert.Equal(t, "esc_pg_11", first[1].ID)

	cursor := &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	rest, err := store.ListByBuyer(ctx, "buyer_paging", cursor, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "esc_pg_10", rest[0].ID)
}

func TestPostgresAutoReleaseAndArchiveQueries(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)

	due := pgTransaction(20)
	due.Status = StatusFundsHeld
	due.AutoReleaseAt = &past
	require.NoError(t, store.Create(ctx, due))

	notDue := pgTransaction(21)
	notDue.Status = StatusFundsHeld
	future := time.Now().UTC().Add(time.Hour)
	notDue.AutoReleaseAt = &future
	require.NoError(t, store.Create(ctx, notDue))

	releasable, err := store.ListAutoReleasable(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, releasable, 1)
	assert.Equal(t, due.ID, releasable[0].ID)

	done := pgTransaction(22)
	done.Status = StatusCompleted
	done.CreatedAt = past
	done.UpdatedAt = past
	require.NoError(t, store.Create(ctx, done))

	archivable, err := store.ListArchivable(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, archivable, 1)

	require.NoError(t, store.MarkArchived(ctx, done.ID))
	archivable, err = store.ListArchivable(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Empty(t, archivable)
}
