package gateway

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/currency"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

type stubGateway struct {
	cfg        Config
	initErr    error
	initStatus PaymentStatus
	pollStatus PaymentStatus
	pollReason string
}

func (g *stubGateway) Config() Config { return g.cfg }

func (g *stubGateway) Fee(amount string) string {
	return money.Percent(amount, g.cfg.FeePercent)
}

func (g *stubGateway) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	status := g.initStatus
	if status == "" {
		status = StatusProcessing
	}
	return &InitializeResult{
		GatewayTransactionID: "stub_" + req.TransactionCode,
		Status:               status,
	}, nil
}

func (g *stubGateway) CheckStatus(ctx context.Context, gatewayTxnID string) (*StatusResult, error) {
	status := g.pollStatus
	if status == "" {
		status = StatusProcessing
	}
	return &StatusResult{GatewayTransactionID: gatewayTxnID, Status: status, FailureReason: g.pollReason}, nil
}

func activeStub(name string, currencies ...string) *stubGateway {
	return &stubGateway{cfg: Config{
		Name:                name,
		DisplayName:         name,
		SupportedCurrencies: currencies,
		FeePercent:          2.9,
		IsActive:            true,
	}}
}

func newTestService(t *testing.T, gws ...Gateway) (*Service, *MemoryStore) {
	t.Helper()
	factory := NewFactory()
	for _, gw := range gws {
		factory.Register(gw)
	}
	converter := currency.NewConverter(currency.DefaultStaticSource(), time.Hour, slog.Default())
	require.NoError(t, converter.Refresh(context.Background()))
	store := NewMemoryStore()
	return NewService(factory, store, converter, 0, slog.Default()), store
}

func TestFactoryResolve(t *testing.T) {
	f := NewFactory()
	f.Register(activeStub("stripe", "USD"))

	gw, err := f.Resolve("stripe")
	require.NoError(t, err)
	assert.Equal(t, "stripe", gw.Config().Name)

	// Name matching is case-insensitive and trims whitespace.
	_, err = f.Resolve("  Stripe ")
	assert.NoError(t, err)

	_, err = f.Resolve("square")
	assert.ErrorIs(t, err, ErrUnknownGateway)
}

func TestFactoryEnumerateSkipsInactive(t *testing.T) {
	f := NewFactory()
	f.Register(activeStub("paytabs", "AED"))
	f.Register(activeStub("cod", "USD", "AED"))
	inactive := activeStub("stripe", "USD")
	inactive.cfg.IsActive = false
	f.Register(inactive)

	cfgs := f.Enumerate()
	require.Len(t, cfgs, 2)
	assert.Equal(t, "cod", cfgs[0].Name, "sorted by name")
	assert.Equal(t, "paytabs", cfgs[1].Name)
}

func TestFactorySupportingCurrency(t *testing.T) {
	f := NewFactory()
	f.Register(activeStub("paytabs", "AED", "SAR"))
	f.Register(activeStub("cod", "USD", "AED"))

	cfgs := f.SupportingCurrency("aed")
	require.Len(t, cfgs, 2)
	cfgs = f.SupportingCurrency("USD")
	require.Len(t, cfgs, 1)
	assert.Equal(t, "cod", cfgs[0].Name)
	assert.Empty(t, f.SupportingCurrency("JPY"))
}

func TestInitializeCreatesRecord(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, activeStub("stripe", "USD"))

	rec, err := svc.Initialize(ctx, "stripe", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "118.20", Currency: "USD", BuyerID: "buyer_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "stub_TXN-1", rec.GatewayTransactionID)
	assert.Equal(t, StatusProcessing, rec.Status)
	assert.Equal(t, "118.20", rec.Amount)
	assert.Empty(t, rec.OriginalAmount, "no conversion, nothing to record")
}

func TestInitializeRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, activeStub("stripe", "USD"))
	req := InitializeRequest{TransactionCode: "TXN-1", Amount: "10.00", Currency: "USD"}

	_, err := svc.Initialize(ctx, "stripe", req)
	require.NoError(t, err)

	_, err = svc.Initialize(ctx, "stripe", req)
	assert.ErrorIs(t, err, ErrDuplicatePayment)
}

func TestInitializeRetryAfterFailureReusesRecord(t *testing.T) {
	ctx := context.Background()
	gw := activeStub("stripe", "USD")
	svc, store := newTestService(t, gw)
	req := InitializeRequest{TransactionCode: "TXN-1", Amount: "10.00", Currency: "USD"}

	first, err := svc.Initialize(ctx, "stripe", req)
	require.NoError(t, err)

	_, err = svc.ApplyStatus(ctx, "stripe", first.GatewayTransactionID, StatusFailed, "declined")
	require.NoError(t, err)

	second, err := svc.Initialize(ctx, "stripe", req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "retry reuses the record")
	assert.Equal(t, StatusProcessing, second.Status)
	assert.Empty(t, second.FailureReason)

	stored, err := store.GetByTransactionCode(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, stored.Status)
}

func TestInitializeCurrencyFallback(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, activeStub("paytabs", "AED"))

	rec, err := svc.Initialize(ctx, "paytabs", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "100.00", Currency: "USD",
	})
	require.NoError(t, err)

	assert.Equal(t, "AED", rec.Currency, "charged in a supported currency")
	assert.Equal(t, "367.25", rec.Amount)
	assert.Equal(t, "USD", rec.OriginalCurrency)
	assert.Equal(t, "100.00", rec.OriginalAmount)
	assert.InDelta(t, 3.6725, rec.ExchangeRate, 1e-9)
}

func TestInitializeNoConversionPathFailsClosed(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, activeStub("paytabs", "XXX"))

	_, err := svc.Initialize(ctx, "paytabs", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "100.00", Currency: "USD",
	})
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = store.GetByTransactionCode(ctx, "TXN-1")
	assert.ErrorIs(t, err, ErrPaymentNotFound, "nothing persisted on rejection")
}

func TestInitializeInactiveGateway(t *testing.T) {
	ctx := context.Background()
	gw := activeStub("stripe", "USD")
	gw.cfg.IsActive = false
	svc, _ := newTestService(t, gw)

	_, err := svc.Initialize(ctx, "stripe", InitializeRequest{TransactionCode: "TXN-1", Amount: "1.00", Currency: "USD"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPollPersistsProviderState(t *testing.T) {
	ctx := context.Background()
	gw := activeStub("stripe", "USD")
	svc, store := newTestService(t, gw)

	rec, err := svc.Initialize(ctx, "stripe", InitializeRequest{TransactionCode: "TXN-1", Amount: "5.00", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, rec.Status)

	gw.pollStatus = StatusSucceeded
	polled, err := svc.Poll(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, polled.Status)
	require.NotNil(t, polled.CompletedAt)

	stored, err := store.GetByTransactionCode(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, stored.Status)

	// Terminal records are served without asking the provider again.
	gw.pollStatus = StatusFailed
	again, err := svc.Poll(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, again.Status)
}

func TestApplyStatusTerminalNeverRegresses(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, activeStub("stripe", "USD"))

	rec, err := svc.Initialize(ctx, "stripe", InitializeRequest{TransactionCode: "TXN-1", Amount: "5.00", Currency: "USD"})
	require.NoError(t, err)

	_, err = svc.ApplyStatus(ctx, "stripe", rec.GatewayTransactionID, StatusSucceeded, "")
	require.NoError(t, err)

	// A late or duplicate webhook is noise.
	after, err := svc.ApplyStatus(ctx, "stripe", rec.GatewayTransactionID, StatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, after.Status)
}

func TestApplyStatusSameStatusNoOp(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, activeStub("stripe", "USD"))

	rec, err := svc.Initialize(ctx, "stripe", InitializeRequest{TransactionCode: "TXN-1", Amount: "5.00", Currency: "USD"})
	require.NoError(t, err)

	before, err := store.GetByTransactionCode(ctx, "TXN-1")
	require.NoError(t, err)

	after, err := svc.ApplyStatus(ctx, "stripe", rec.GatewayTransactionID, StatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "no write for a repeated status")
}

func TestApplyStatusUnknownPayment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, activeStub("stripe", "USD"))
	_, err := svc.ApplyStatus(ctx, "stripe", "pi_nope", StatusSucceeded, "")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
}

func TestSupportsCurrency(t *testing.T) {
	cfg := Config{SupportedCurrencies: []string{"USD", "AED"}}
	assert.True(t, cfg.SupportsCurrency("usd"))
	assert.True(t, cfg.SupportsCurrency("AED"))
	assert.False(t, cfg.SupportsCurrency("EUR"))
}

func TestInitializeRetryKeepsCreationTimeAndRepricesCharge(t *testing.T) {
	ctx := context.Background()
	gw := activeStub("paytabs", "AED")
	svc, store := newTestService(t, gw)

	// First attempt settles in the gateway's own currency.
	first, err := svc.Initialize(ctx, "paytabs", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "50.00", Currency: "AED",
	})
	require.NoError(t, err)
	require.False(t, first.CreatedAt.IsZero())

	_, err = svc.ApplyStatus(ctx, "paytabs", first.GatewayTransactionID, StatusFailed, "declined")
	require.NoError(t, err)

	// The retry is priced in USD, which forces the AED fallback conversion.
	second, err := svc.Initialize(ctx, "paytabs", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "100.00", Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "retry keeps the original creation time")

	stored, err := store.GetByTransactionCode(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, stored.CreatedAt)
	assert.Equal(t, "367.25", stored.Amount, "the new charge replaces the failed one")
	assert.Equal(t, "AED", stored.Currency)
	assert.Equal(t, "100.00", stored.OriginalAmount)
	assert.Equal(t, "USD", stored.OriginalCurrency)
	assert.InDelta(t, 3.6725, stored.ExchangeRate, 1e-9)

	_, err = svc.ApplyStatus(ctx, "paytabs", second.GatewayTransactionID, StatusFailed, "declined again")
	require.NoError(t, err)

	// A direct retry clears the previous attempt's conversion trail.
	third, err := svc.Initialize(ctx, "paytabs", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "50.00", Currency: "AED",
	})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, third.CreatedAt)

	stored, err = store.GetByTransactionCode(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, "50.00", stored.Amount)
	assert.Equal(t, "AED", stored.Currency)
	assert.Empty(t, stored.OriginalCurrency)
	assert.Empty(t, stored.OriginalAmount)
	assert.Zero(t, stored.ExchangeRate)
}

type hangingGateway struct {
	stubGateway
}

func (g *hangingGateway) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInitializeBoundsProviderCallTime(t *testing.T) {
	ctx := context.Background()
	gw := &hangingGateway{}
	gw.cfg = Config{Name: "stripe", SupportedCurrencies: []string{"USD"}, IsActive: true}
	factory := NewFactory()
	factory.Register(gw)
	svc := NewService(factory, NewMemoryStore(), nil, 25*time.Millisecond, slog.Default())

	start := time.Now()
	_, err := svc.Initialize(ctx, "stripe", InitializeRequest{
		TransactionCode: "TXN-1", Amount: "5.00", Currency: "USD",
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "a stalled provider must not hold the request")
}

var errNetwork = errors.New("network down")

func TestInitializeProviderErrorLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	gw := activeStub("stripe", "USD")
	gw.initErr = errNetwork
	svc, store := newTestService(t, gw)

	_, err := svc.Initialize(ctx, "stripe", InitializeRequest{TransactionCode: "TXN-1", Amount: "5.00", Currency: "USD"})
	require.ErrorIs(t, err, errNetwork)

	_, err = store.GetByTransactionCode(ctx, "TXN-1")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
