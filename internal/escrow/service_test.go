package escrow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/catalog"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/currency"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/fees"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/gateway"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/offers"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/validation"
)

// fakeGateway is a controllable payment provider for tests.
type fakeGateway struct {
	cfg      gateway.Config
	initErr  error
	lastInit gateway.InitializeRequest
}

func (g *fakeGateway) Config() gateway.Config { return g.cfg }

func (g *fakeGateway) Fee(amount string) string {
	return money.Percent(amount, g.cfg.FeePercent)
}

func (g *fakeGateway) InitializePayment(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.lastInit = req
	return &gateway.InitializeResult{
		GatewayTransactionID: "fake_" + req.TransactionCode,
		PaymentURL:           "https://pay.example/" + req.TransactionCode,
		Status:               gateway.StatusProcessing,
	}, nil
}

func (g *fakeGateway) CheckStatus(ctx context.Context, gatewayTxnID string) (*gateway.StatusResult, error) {
	return &gateway.StatusResult{GatewayTransactionID: gatewayTxnID, Status: gateway.StatusProcessing}, nil
}

type fixture struct {
	svc      *Service
	store    Store
	products catalog.Store
	offers   offers.Store
	gw       *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.Default()

	products := catalog.NewMemoryStore()
	require.NoError(t, products.PutSeller(ctx, &catalog.Seller{ID: "seller_1", Name: "Seller One"}))
	require.NoError(t, products.PutProduct(ctx, &catalog.Product{
		ID:       "prod_1",
		SellerID: "seller_1",
		Title:    "Vintage Camera",
		Category: "electronics",
		Price:    "100.00",
		Currency: "USD",
		Active:   true,
	}))

	feeStore := fees.NewMemoryStore()
	require.NoError(t, feeStore.Create(ctx, &fees.Config{
		Active:           true,
		DefaultPercent:   10,
		GatewayFeePaidBy: fees.PayerBuyer,
	}))

	converter := currency.NewConverter(currency.DefaultStaticSource(), time.Hour, logger)
	require.NoError(t, converter.Refresh(ctx))

	gw := &fakeGateway{cfg: gateway.Config{
		Name:                "testpay",
		DisplayName:         "TestPay",
		SupportedCurrencies: []string{"USD", "AED"},
		FeePercent:          3.2,
		IsActive:            true,
	}}
	factory := gateway.NewFactory()
	factory.Register(gw)
	gateways := gateway.NewService(factory, gateway.NewMemoryStore(), converter, 0, logger)

	offerStore := offers.NewMemoryStore()
	store := NewMemoryStore()
	svc := NewService(store, products, offers.NewService(offerStore), fees.NewEngine(feeStore),
		converter, gateways, events.NopSink{}, Options{DefaultCurrency: "USD"}, logger)

	return &fixture{svc: svc, store: store, products: products, offers: offerStore, gw: gw}
}

func baseRequest() CreateRequest {
	return CreateRequest{
		ProductID:    "prod_1",
		BuyerID:      "buyer_1",
		Gateway:      "testpay",
		ShippingCost: "5.00",
		ShippingAddress: validation.ShippingAddress{
			FullName:   "Pat Doe",
			Street:     "1 Main St",
			City:       "Dubai",
			PostalCode: "00000",
			Country:    "AE",
		},
	}
}

func TestCreateBuyerPaysGatewayFee(t *testing.T) {
	f := newFixture(t)

	txn, err := f.svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, "100.00", txn.ProductPrice)
	assert.Equal(t, "10.00", txn.PlatformFeeAmount)
	assert.Equal(t, "5.00", txn.ShippingCost)
	assert.Equal(t, "0.00", txn.SalesTax)
	assert.Equal(t, "3.20", txn.GatewayFeeAmount)
	assert.Equal(t, FeePaidByBuyer, txn.GatewayFeePaidBy)
	assert.Equal(t, "118.20", txn.TotalAmount)
	assert.Equal(t, "90.00", txn.SellerPayout)

	assert.Equal(t, StatusPendingPayment, txn.Status)
	require.Len(t, txn.StatusHistory, 1)
	assert.True(t, strings.HasPrefix(txn.Code, "TXN"))
}

func TestCreateSellerPaysGatewayFee(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.GatewayFeePaidBy = "seller"

	txn, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, FeePaidBySeller, txn.GatewayFeePaidBy)
	assert.Equal(t, "115.00", txn.TotalAmount, "gateway fee excluded from buyer total")
	assert.Equal(t, "86.80", txn.SellerPayout, "gateway fee deducted from seller payout")
}

func TestCreateTotalInvariant(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.SalesTax = "2.50"

	txn, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	want := money.Add(money.Add(money.Add(money.Add(
		txn.ProductPrice, txn.PlatformFeeAmount), txn.ShippingCost), txn.SalesTax), txn.GatewayFeeAmount)
	assert.Equal(t, want, txn.TotalAmount)
}

func TestCreateClientTotalWithinBand(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.ClientTotal = "120.00" // within 10% of 118.20

	txn, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "120.00", txn.TotalAmount, "client figure stands inside the band")
}

func TestCreateClientTotalOutsideBandSilentlyReplaced(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.ClientTotal = "150.00" // far outside 10% of 118.20

	txn, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err, "an out-of-band client total must not block checkout")
	assert.Equal(t, "118.20", txn.TotalAmount, "server figure substituted")
}

func TestCreateBuyerIsSeller(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.BuyerID = "seller_1"

	_, err := f.svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, ErrBuyerIsSeller)
}

func TestCreateInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.products.PutProduct(ctx, &catalog.Product{
		ID: "prod_2", SellerID: "seller_1", Price: "10.00", Currency: "USD", Active: false,
	}))
	req := baseRequest()
	req.ProductID = "prod_2"

	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, catalog.ErrProductInactive)
}

func TestCreateUnsupportedGatewayCurrencyNamesSupportedSet(t *testing.T) {
	f := newFixture(t)
	// EGP is convertible, so restrict the gateway to a currency with no
	// conversion path at all.
	f.gw.cfg.SupportedCurrencies = []string{"XXX"}

	_, err := f.svc.Create(context.Background(), baseRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrUnsupportedCurrency)
	assert.Contains(t, err.Error(), "XXX", "rejection names the supported currencies")
}

func TestCreateGatewayCurrencyFallbackViaConversion(t *testing.T) {
	f := newFixture(t)
	// Gateway settles only in AED; USD converts, so checkout proceeds.
	f.gw.cfg.SupportedCurrencies = []string{"AED"}

	txn, err := f.svc.Create(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "USD", txn.Currency, "transaction stays in the requested currency")
}

func TestCreateConvertsListingCurrency(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.Currency = "AED"

	txn, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "AED", txn.Currency)
	assert.Equal(t, "USD", txn.OriginalCurrency)
	assert.Equal(t, "100.00", txn.OriginalAmount)
	assert.Equal(t, "367.25", txn.ProductPrice)
	assert.InDelta(t, 3.6725, txn.ExchangeRate, 1e-9)
}

func TestCreateWithAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	offer := &offers.Offer{
		ID:        "offer_1",
		ProductID: "prod_1",
		BuyerID:   "buyer_1",
		SellerID:  "seller_1",
		Amount:    "80.00",
		Currency:  "USD",
		Status:    offers.StatusAccepted,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, f.offers.Create(ctx, offer))

	req := baseRequest()
	req.OfferID = "offer_1"

	txn, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "80.00", txn.ProductPrice, "accepted offer price replaces listing price")
	assert.Equal(t, "8.00", txn.PlatformFeeAmount)
}

func TestCreateWithForeignOfferRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.offers.Create(ctx, &offers.Offer{
		ID: "offer_2", ProductID: "prod_1", BuyerID: "someone_else", SellerID: "seller_1",
		Amount: "80.00", Currency: "USD", Status: offers.StatusAccepted,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	req := baseRequest()
	req.OfferID = "offer_2"
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, offers.ErrWrongBuyer)
}

func TestInitializePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	txn, err := f.svc.Create(ctx, baseRequest())
	require.NoError(t, err)

	updated, rec, err := f.svc.InitializePayment(ctx, txn.Code, "buyer_1")
	require.NoError(t, err)

	assert.Equal(t, StatusPaymentProcessing, updated.Status)
	assert.Equal(t, "fake_"+txn.Code, updated.GatewayTransactionID)
	assert.NotEmpty(t, updated.GatewayResponse)
	assert.Equal(t, gateway.StatusProcessing, rec.Status)
	assert.Equal(t, "118.20", f.gw.lastInit.Amount, "gateway charges the full total")
}

func TestInitializePaymentOnlyBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, baseRequest())
	require.NoError(t, err)

	_, _, err = f.svc.InitializePayment(ctx, txn.Code, "seller_1")
	assert.Error(t, err)

	fresh, err := f.store.GetByCode(ctx, txn.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, fresh.Status)
}

func TestInitializePaymentGatewayFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, baseRequest())
	require.NoError(t, err)

	f.gw.initErr = errors.New("card network unreachable")
	_, _, err = f.svc.InitializePayment(ctx, txn.Code, "buyer_1")
	require.Error(t, err)

	failed, err := f.store.GetByCode(ctx, txn.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentFailed, failed.Status)
	last := failed.StatusHistory[len(failed.StatusHistory)-1]
	assert.Contains(t, last.Note, "card network unreachable", "gateway error captured in history")

	// payment_failed may retry.
	f.gw.initErr = nil
	retried, _, err := f.svc.InitializePayment(ctx, txn.Code, "buyer_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaymentProcessing, retried.Status)
}

func TestInitializePaymentWrongStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txn, err := f.svc.Create(ctx, baseRequest())
	require.NoError(t, err)

	_, _, err = f.svc.InitializePayment(ctx, txn.Code, "buyer_1")
	require.NoError(t, err)

	// Already processing; a second init is refused before touching the gateway.
	_, _, err = f.svc.InitializePayment(ctx, txn.Code, "buyer_1")
	assert.ErrorIs(t, err, ErrPaymentNotAllowed)
}
