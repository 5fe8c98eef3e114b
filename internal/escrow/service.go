package escrow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/catalog"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/currency"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/fees"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/gateway"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/offers"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/syncutil"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/traces"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/validation"
)

// Options tune checkout behavior.
type Options struct {
	// DefaultCurrency is used when a checkout names no currency.
	DefaultCurrency string
	// ClientTotalBandPct is the tolerance, in percent, within which a
	// client-supplied total is accepted verbatim.
	ClientTotalBandPct float64
	// AutoReleaseDays is the default funds-held hold before auto-release.
	AutoReleaseDays int
}

// Service orchestrates escrow transaction creation and payment start.
type Service struct {
	store     Store
	products  catalog.Store
	offers    *offers.Service
	fees      *fees.Engine
	converter *currency.Converter
	gateways  *gateway.Service
	sink      events.Sink
	opts      Options
	logger    *slog.Logger

	// locks serializes payment initialization per transaction. The lock is
	// held across the gateway call, so acquisition respects the request
	// context.
	locks *syncutil.KeyMutex
}

// NewService creates an escrow service.
func NewService(
	store Store,
	products catalog.Store,
	offerSvc *offers.Service,
	feeEngine *fees.Engine,
	converter *currency.Converter,
	gateways *gateway.Service,
	sink events.Sink,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.ClientTotalBandPct <= 0 {
		opts.ClientTotalBandPct = 10.0
	}
	if opts.AutoReleaseDays <= 0 {
		opts.AutoReleaseDays = 3
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Service{
		store:     store,
		products:  products,
		offers:    offerSvc,
		fees:      feeEngine,
		converter: converter,
		gateways:  gateways,
		sink:      sink,
		opts:      opts,
		logger:    logger,
		locks:     syncutil.NewKeyMutex(),
	}
}

// Store exposes the transaction store for read paths and the scheduler.
func (s *Service) Store() Store {
	return s.store
}

// CreateRequest starts a checkout.
type CreateRequest struct {
	ProductID          string                     `json:"productId" binding:"required"`
	BuyerID            string                     `json:"-"`
	OfferID            string                     `json:"offerId,omitempty"`
	Currency           string                     `json:"currency,omitempty"`
	Gateway            string                     `json:"gateway" binding:"required"`
	GatewayFeePaidBy   string                     `json:"gatewayFeePaidBy,omitempty"`
	ShippingCost       string                     `json:"shippingCost,omitempty"`
	SalesTax           string                     `json:"salesTax,omitempty"`
	ClientTotal        string                     `json:"clientTotal,omitempty"`
	ShippingAddress    validation.ShippingAddress `json:"shippingAddress"`
	AutoReleaseEnabled *bool                      `json:"autoReleaseEnabled,omitempty"`
}

func (r *CreateRequest) validate() error {
	errs := validation.Validate(
		validation.Required("productId", r.ProductID),
		validation.Required("gateway", r.Gateway),
		func() *validation.ValidationError {
			if r.Currency == "" {
				return nil
			}
			return validation.ValidCurrency("currency", r.Currency)()
		},
		func() *validation.ValidationError {
			if r.ShippingCost == "" {
				return nil
			}
			return validation.ValidAmount("shippingCost", r.ShippingCost)()
		},
		func() *validation.ValidationError {
			if r.SalesTax == "" {
				return nil
			}
			return validation.ValidAmount("salesTax", r.SalesTax)()
		},
		validation.ValidAddress("shippingAddress", r.ShippingAddress),
	)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Create runs the checkout pricing pipeline and persists the transaction in
// pending_payment.
//
// Price resolution order: accepted offer owned by this buyer, else listing
// price. All money math happens after conversion into the transaction
// currency so every stored field shares one unit. A client-supplied total
// within the tolerance band is kept verbatim; outside the band the server
// figure silently replaces it so cosmetic drift never blocks checkout.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.Create", traces.Gateway(req.Gateway))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, catalog.ErrProductInactive
	}
	if product.SellerID == req.BuyerID {
		return nil, ErrBuyerIsSeller
	}

	price := product.Price
	priceCurrency := strings.ToUpper(product.Currency)
	if req.OfferID != "" {
		offer, err := s.offers.ResolveAccepted(ctx, req.OfferID, req.ProductID, req.BuyerID)
		if err != nil {
			return nil, err
		}
		price = offer.Amount
		priceCurrency = strings.ToUpper(offer.Currency)
	}

	txnCurrency := strings.ToUpper(req.Currency)
	if txnCurrency == "" {
		txnCurrency = s.opts.DefaultCurrency
	}

	t := &Transaction{
		ID:        idgen.WithPrefix("esc"),
		Code:      idgen.TransactionCode("TXN"),
		BuyerID:   req.BuyerID,
		SellerID:  product.SellerID,
		ProductID: product.ID,
		OfferID:   req.OfferID,
		Currency:  txnCurrency,
	}

	if priceCurrency != txnCurrency {
		converted, err := s.converter.Convert(ctx, price, priceCurrency, txnCurrency)
		if err != nil {
			return nil, err
		}
		t.OriginalCurrency = priceCurrency
		t.OriginalAmount = price
		t.ExchangeRate = converted.ExchangeRate
		price = converted.ConvertedAmount
	}
	t.ProductPrice = price

	quote, err := s.fees.Quote(ctx, price, product.Category, product.SellerID)
	if err != nil {
		return nil, err
	}
	t.PlatformFeePercentage = quote.Percent
	t.PlatformFeeAmount = quote.Amount

	gw, err := s.resolveGateway(req.Gateway, txnCurrency)
	if err != nil {
		return nil, err
	}
	t.Gateway = gw.Config().Name
	t.GatewayFeeAmount = gw.Fee(price)

	t.GatewayFeePaidBy = s.resolveFeePayer(ctx, req.GatewayFeePaidBy)

	t.ShippingCost = normalizeAmount(req.ShippingCost)
	t.SalesTax = normalizeAmount(req.SalesTax)
	t.ShippingAddress = req.ShippingAddress

	serverTotal := money.Add(money.Add(money.Add(price, t.PlatformFeeAmount), t.ShippingCost), t.SalesTax)
	if t.GatewayFeePaidBy == FeePaidByBuyer {
		serverTotal = money.Add(serverTotal, t.GatewayFeeAmount)
	}
	t.TotalAmount = serverTotal
	if req.ClientTotal != "" && money.IsValid(req.ClientTotal) {
		if money.WithinPercent(req.ClientTotal, serverTotal, s.opts.ClientTotalBandPct) {
			t.TotalAmount = normalizeAmount(req.ClientTotal)
		} else {
			s.logger.Warn("client total outside tolerance band, using server total",
				"transactionCode", t.Code,
				"clientTotal", req.ClientTotal,
				"serverTotal", serverTotal,
			)
		}
	}

	payout := money.Sub(price, t.PlatformFeeAmount)
	if t.GatewayFeePaidBy == FeePaidBySeller {
		payout = money.Sub(payout, t.GatewayFeeAmount)
	}
	t.SellerPayout = payout

	t.AutoReleaseEnabled = true
	if req.AutoReleaseEnabled != nil {
		t.AutoReleaseEnabled = *req.AutoReleaseEnabled
	}
	t.AutoReleaseDays = s.opts.AutoReleaseDays

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Status = StatusPendingPayment
	t.StatusHistory = []StatusHistoryEntry{{
		Status:    StatusPendingPayment,
		Note:      "transaction created",
		Actor:     req.BuyerID,
		Timestamp: now,
	}}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("escrow transaction created",
		"transactionCode", t.Code,
		"buyer", t.BuyerID,
		"seller", t.SellerID,
		"total", t.TotalAmount,
		"currency", t.Currency,
		"sellerPayout", t.SellerPayout,
	)
	s.emit(ctx, t, "", "transaction created")
	return t, nil
}

// resolveGateway rejects an unknown gateway, and a gateway that neither
// supports the transaction currency nor has a conversion path into one of
// its supported currencies. The rejection names the supported set so the
// client can re-offer valid choices.
func (s *Service) resolveGateway(name, txnCurrency string) (gateway.Gateway, error) {
	gw, err := s.gateways.Factory().Resolve(name)
	if err != nil {
		available := s.gateways.Factory().Enumerate()
		names := make([]string, len(available))
		for i, cfg := range available {
			names[i] = cfg.Name
		}
		return nil, fmt.Errorf("%w: %q (available: %s)", gateway.ErrUnknownGateway, name, strings.Join(names, ", "))
	}
	cfg := gw.Config()
	if !cfg.IsActive {
		return nil, gateway.ErrNotConfigured
	}
	if cfg.SupportsCurrency(txnCurrency) {
		return gw, nil
	}
	for _, supported := range cfg.SupportedCurrencies {
		if s.converter != nil && s.converter.Supports(txnCurrency, supported) {
			return gw, nil
		}
	}
	return nil, fmt.Errorf("%w: %s does not accept %s (supported: %s)",
		gateway.ErrUnsupportedCurrency, cfg.Name, txnCurrency,
		strings.Join(cfg.SupportedCurrencies, ", "))
}

func (s *Service) resolveFeePayer(ctx context.Context, requested string) GatewayFeePayer {
	switch strings.ToLower(requested) {
	case string(FeePaidByBuyer):
		return FeePaidByBuyer
	case string(FeePaidBySeller):
		return FeePaidBySeller
	}
	if s.fees.GatewayFeePayer(ctx) == fees.PayerSeller {
		return FeePaidBySeller
	}
	return FeePaidByBuyer
}

// InitializePayment starts the gateway charge for a pending transaction and
// moves it to payment_processing. A definitive gateway failure moves it to
// payment_failed with the error captured; the status is never written
// before the gateway answers.
func (s *Service) InitializePayment(ctx context.Context, code, buyerID string) (*Transaction, *gateway.PaymentRecord, error) {
	t, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := s.locks.Lock(ctx, t.ID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	// Re-read under the lock.
	t, err = s.store.Get(ctx, t.ID)
	if err != nil {
		return nil, nil, err
	}
	if t.BuyerID != buyerID {
		return nil, nil, fmt.Errorf("escrow: only the buyer may start payment")
	}
	if t.Status != StatusPendingPayment && t.Status != StatusPaymentFailed {
		return nil, nil, fmt.Errorf("%w: status %s", ErrPaymentNotAllowed, t.Status)
	}

	prev := t.Status
	if err := t.Transition(StatusPaymentProcessing, "payment initialization started", buyerID); err != nil {
		return nil, nil, err
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, nil, err
	}
	s.emit(ctx, t, string(prev), "payment initialization started")

	rec, err := s.gateways.Initialize(ctx, t.Gateway, gateway.InitializeRequest{
		TransactionCode: t.Code,
		Amount:          t.TotalAmount,
		Currency:        t.Currency,
		BuyerID:         t.BuyerID,
		Description:     fmt.Sprintf("Escrow purchase %s", t.Code),
	})
	if err != nil {
		s.logger.Error("payment initialization failed",
			"transactionCode", t.Code, "gateway", t.Gateway, "error", err)
		if terr := t.Transition(StatusPaymentFailed, fmt.Sprintf("gateway error: %v", err), "system"); terr == nil {
			if uerr := s.store.Update(ctx, t); uerr != nil {
				s.logger.Error("CRITICAL: failed to persist payment_failed status",
					"transactionCode", t.Code, "error", uerr)
			}
			s.emit(ctx, t, string(StatusPaymentProcessing), "payment initialization failed")
		}
		return nil, nil, err
	}

	t.GatewayTransactionID = rec.GatewayTransactionID
	if raw, merr := json.Marshal(rec); merr == nil {
		t.GatewayResponse = raw
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, nil, err
	}
	return t, rec, nil
}

func (s *Service) emit(ctx context.Context, t *Transaction, prev, note string) {
	s.sink.Emit(ctx, events.Event{
		TransactionCode: t.Code,
		Status:          string(t.Status),
		PreviousStatus:  prev,
		BuyerID:         t.BuyerID,
		SellerID:        t.SellerID,
		Amount:          t.TotalAmount,
		Currency:        t.Currency,
		Note:            note,
		OccurredAt:      t.UpdatedAt,
	})
}

func normalizeAmount(s string) string {
	if s == "" {
		return "0.00"
	}
	cents, ok := money.Parse(s)
	if !ok {
		return "0.00"
	}
	return money.Format(cents)
}

// IsNotFound reports whether err means the transaction does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
