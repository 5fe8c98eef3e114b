package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v81"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/catalog"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/currency"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/fees"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/gateway"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/logging"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/offers"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/orders"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/pagination"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payments"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payout"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/status"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/validation"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/wallet"
)

// registerRoutes attaches all API routes to the versioned group.
//
// Identity comes from the X-User-ID header, set by the authenticating
// reverse proxy in front of this service. Admin endpoints additionally
// require the X-Admin-Secret header.
func (s *Server) registerRoutes(v1 *gin.RouterGroup) {
	// Transactions
	v1.POST("/transactions", s.handleCheckout)
	v1.GET("/transactions", s.handleListTransactions)
	v1.GET("/transactions/:code", s.handleGetTransaction)
	v1.POST("/transactions/:code/pay", s.handleInitializePayment)
	v1.GET("/transactions/:code/payment", s.handlePollPayment)
	v1.GET("/transactions/:code/status", s.handleGetStatus)
	v1.POST("/transactions/:code/status", s.handleTransition)
	v1.POST("/transactions/:code/payout", s.handlePayout)

	// Gateways and pricing
	v1.GET("/gateways", s.handleListGateways)
	v1.GET("/fees/quote", s.handleFeeQuote)
	v1.GET("/currency/convert", s.handleConvert)
	v1.GET("/currency/rates", s.handleRates)

	// Offers
	v1.POST("/offers", s.handleCreateOffer)
	v1.GET("/offers/:id", s.handleGetOffer)
	v1.POST("/offers/:id/accept", s.handleAcceptOffer)
	v1.POST("/offers/:id/decline", s.handleDeclineOffer)

	// Wallet and orders
	v1.GET("/wallet/balance", s.handleWalletBalance)
	v1.GET("/orders/:code", s.handleGetOrder)

	// Provider callbacks
	v1.POST("/webhooks/stripe", s.handleStripeWebhook)
	v1.POST("/webhooks/paytabs", s.handlePayTabsWebhook)

	// Admin
	admin := v1.Group("/admin")
	admin.Use(s.requireAdmin())
	admin.POST("/products", s.handlePutProduct)
	admin.POST("/sellers", s.handlePutSeller)
	admin.POST("/fees", s.handleCreateFeeConfig)
	admin.GET("/fees/active", s.handleActiveFeeConfig)
	admin.GET("/stats", s.handleStats)
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.adminAuthorized(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "admin credentials required",
			})
			return
		}
		c.Next()
	}
}

// userID extracts the authenticated user from the request, aborting with
// 401 when absent.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "X-User-ID header is required",
		})
		return "", false
	}
	return id, true
}

// --- Transactions ---

func (s *Server) handleCheckout(c *gin.Context) {
	buyerID, ok := userID(c)
	if !ok {
		return
	}

	var req escrow.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	req.BuyerID = buyerID

	txn, err := s.escrows.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (s *Server) handleListTransactions(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	limit := 20
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}

	store := s.escrows.Store()
	var txns []*escrow.Transaction
	if c.Query("role") == "seller" {
		txns, err = store.ListBySeller(c.Request.Context(), uid, cursor, limit+1)
	} else {
		txns, err = store.ListByBuyer(c.Request.Context(), uid, cursor, limit+1)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	txns, next, hasMore := pagination.ComputePage(txns, limit, func(t *escrow.Transaction) (time.Time, string) {
		return t.CreatedAt, t.ID
	})
	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"count":        len(txns),
		"nextCursor":   next,
		"hasMore":      hasMore,
	})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	r, role, err := s.statuses.ResolveFor(c.Request.Context(), c.Param("code"), uid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolutionBody(r, role))
}

func (s *Server) handleInitializePayment(c *gin.Context) {
	buyerID, ok := userID(c)
	if !ok {
		return
	}

	txn, rec, err := s.escrows.InitializePayment(c.Request.Context(), c.Param("code"), buyerID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn, "payment": rec})
}

func (s *Server) handlePollPayment(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	code := c.Param("code")
	if _, _, err := s.statuses.ResolveFor(c.Request.Context(), code, uid); err != nil {
		s.respondError(c, err)
		return
	}

	rec, err := s.gateways.Poll(c.Request.Context(), code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	// A provider-reported terminal state folds back into the lifecycle the
	// same way a webhook would.
	if rec.Status.Terminal() || rec.Status == gateway.StatusSucceeded {
		if _, err := s.statuses.ApplyGatewayStatus(c.Request.Context(),
			rec.Gateway, rec.GatewayTransactionID, rec.Status, rec.FailureReason); err != nil {
			s.logger.Warn("applying polled gateway status failed", "transactionCode", code, "error", err)
		}
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleGetStatus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	r, role, err := s.statuses.ResolveFor(c.Request.Context(), c.Param("code"), uid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactionCode": r.Code(),
		"status":          r.Status(),
		"role":            role,
		"nextStatuses":    s.statuses.NextStatuses(r, role),
	})
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note,omitempty"`
}

func (s *Server) handleTransition(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	to := escrow.Status(req.Status)
	if !to.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status " + req.Status})
		return
	}

	r, err := s.statuses.Execute(c.Request.Context(), c.Param("code"), uid, to, req.Note)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resolutionBody(r, ""))
}

func (s *Server) handlePayout(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	r, role, err := s.statuses.ResolveFor(c.Request.Context(), c.Param("code"), uid)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if r.Kind != status.KindEscrow {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not_escrow", "message": "payouts apply to escrow transactions only"})
		return
	}
	if role != status.RoleSeller {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "only the seller may request a payout"})
		return
	}

	txn, err := s.payouts.Process(c.Request.Context(), r.Escrow.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// resolutionBody shapes a tagged resolution for the wire.
func resolutionBody(r *status.Resolution, role status.Role) gin.H {
	body := gin.H{}
	switch r.Kind {
	case status.KindEscrow:
		body["type"] = "escrow"
		body["transaction"] = r.Escrow
	case status.KindStandard:
		body["type"] = "standard"
		body["transaction"] = r.Standard
	}
	if r.Payment != nil {
		body["payment"] = r.Payment
	}
	if role != "" {
		body["role"] = role
	}
	return body
}

// --- Gateways and pricing ---

func (s *Server) handleListGateways(c *gin.Context) {
	var configs []gateway.Config
	if cur := c.Query("currency"); cur != "" {
		configs = s.factory.SupportingCurrency(cur)
	} else {
		configs = s.factory.Enumerate()
	}
	c.JSON(http.StatusOK, gin.H{"gateways": configs})
}

func (s *Server) handleFeeQuote(c *gin.Context) {
	amount := c.Query("amount")
	if verr := validation.ValidAmount("amount", amount)(); verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": validation.ValidationErrors{*verr}.Error()})
		return
	}
	quote, err := s.feeEngine.Quote(c.Request.Context(), amount, c.Query("category"), c.Query("sellerId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) handleConvert(c *gin.Context) {
	amount, from, to := c.Query("amount"), c.Query("from"), c.Query("to")
	if amount == "" || from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "amount, from, and to are required"})
		return
	}
	res, err := s.converter.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleRates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currencies":  s.converter.SupportedCurrencies(),
		"lastUpdated": s.converter.LastUpdated(),
	})
}

// --- Offers ---

type createOfferRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Currency  string `json:"currency,omitempty"`
	ExpiresIn string `json:"expiresIn,omitempty"` // Go duration, default 48h
}

func (s *Server) handleCreateOffer(c *gin.Context) {
	buyerID, ok := userID(c)
	if !ok {
		return
	}

	var req createOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if verr := validation.ValidAmount("amount", req.Amount)(); verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": validation.ValidationErrors{*verr}.Error()})
		return
	}

	product, err := s.products.GetProduct(c.Request.Context(), req.ProductID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if product.SellerID == buyerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "cannot make an offer on your own listing"})
		return
	}

	ttl := 48 * time.Hour
	if req.ExpiresIn != "" {
		if d, err := time.ParseDuration(req.ExpiresIn); err == nil && d > 0 {
			ttl = d
		}
	}
	cur := req.Currency
	if cur == "" {
		cur = product.Currency
	}

	offer := &offers.Offer{
		ID:        idgen.WithPrefix("offer"),
		ProductID: product.ID,
		BuyerID:   buyerID,
		SellerID:  product.SellerID,
		Amount:    req.Amount,
		Currency:  cur,
		Status:    offers.StatusPending,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.offerSt.Create(c.Request.Context(), offer); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (s *Server) handleGetOffer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	offer, err := s.offerSt.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if offer.BuyerID != uid && offer.SellerID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not a party to this offer"})
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (s *Server) handleAcceptOffer(c *gin.Context) {
	s.answerOffer(c, true)
}

func (s *Server) handleDeclineOffer(c *gin.Context) {
	s.answerOffer(c, false)
}

func (s *Server) answerOffer(c *gin.Context, accept bool) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	offer, err := s.offerSt.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if offer.SellerID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "only the seller may answer an offer"})
		return
	}

	if accept {
		offer, err = s.offerSvc.Accept(c.Request.Context(), offer.ID)
	} else {
		offer, err = s.offerSvc.Decline(c.Request.Context(), offer.ID)
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

// --- Wallet and orders ---

func (s *Server) handleWalletBalance(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	cur := c.Query("currency")
	if cur == "" {
		cur = s.cfg.DefaultCurrency
	}
	balance, err := s.wallets.Balance(c.Request.Context(), uid, cur)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sellerId": uid, "currency": cur, "balance": balance})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	order, err := s.orders.Store().GetByTransactionCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if order.BuyerID != uid && order.SellerID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "not a party to this order"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- Webhooks ---

// handleStripeWebhook verifies the event signature and folds payment
// intent outcomes into the transaction lifecycle. Always answers 200 for
// verified events Stripe should not redeliver.
func (s *Server) handleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	event, err := s.stripeGW.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("stripe webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	var target gateway.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		target = gateway.StatusSucceeded
	case "payment_intent.payment_failed":
		target = gateway.StatusFailed
	case "payment_intent.canceled":
		target = gateway.StatusCancelled
	case "charge.refunded":
		target = gateway.StatusRefunded
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": string(event.Type)})
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil || pi.ID == "" {
		s.logger.Warn("stripe webhook payload missing payment intent", "type", event.Type)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	var reason string
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Msg
	}

	if _, err := s.statuses.ApplyGatewayStatus(c.Request.Context(), "stripe", pi.ID, target, reason); err != nil {
		if errors.Is(err, gateway.ErrPaymentNotFound) || errors.Is(err, status.ErrNotFound) {
			// Not ours; acknowledge so Stripe stops retrying.
			c.JSON(http.StatusOK, gin.H{"received": true, "ignored": "unknown payment"})
			return
		}
		s.logger.Error("stripe webhook processing failed", "paymentIntent", pi.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) handlePayTabsWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	ptGW, err := s.factory.Resolve("paytabs")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway_unavailable"})
		return
	}
	tranRef, payStatus, reason, err := ptGW.(*gateway.PayTabsGateway).ParseWebhook(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": err.Error()})
		return
	}

	if _, err := s.statuses.ApplyGatewayStatus(c.Request.Context(), "paytabs", tranRef, payStatus, reason); err != nil {
		if errors.Is(err, gateway.ErrPaymentNotFound) || errors.Is(err, status.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"received": true, "ignored": "unknown payment"})
			return
		}
		s.logger.Error("paytabs webhook processing failed", "tranRef", tranRef, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// --- Admin ---

func (s *Server) handlePutProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if p.ID == "" {
		p.ID = idgen.WithPrefix("prod")
	}
	if err := s.products.PutProduct(c.Request.Context(), &p); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handlePutSeller(c *gin.Context) {
	var seller catalog.Seller
	if err := c.ShouldBindJSON(&seller); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if seller.ID == "" {
		seller.ID = idgen.WithPrefix("seller")
	}
	if err := s.products.PutSeller(c.Request.Context(), &seller); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seller)
}

func (s *Server) handleCreateFeeConfig(c *gin.Context) {
	var cfg fees.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if cfg.ID == "" {
		cfg.ID = idgen.WithPrefix("feecfg")
	}
	cfg.Active = true
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_config", "message": err.Error()})
		return
	}
	if err := s.feeStore.Create(c.Request.Context(), &cfg); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) handleActiveFeeConfig(c *gin.Context) {
	cfg, err := s.feeStore.GetActive(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": s.hub.Stats(),
		"scheduler": gin.H{"running": s.sched.Running()},
	})
}

// --- Error mapping ---

// respondError maps domain errors to HTTP responses.
func (s *Server) respondError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": verrs.Error(), "fields": verrs})
		return
	}

	code, label := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, payments.ErrNotFound),
		errors.Is(err, status.ErrNotFound),
		errors.Is(err, offers.ErrNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrSellerNotFound),
		errors.Is(err, gateway.ErrPaymentNotFound),
		errors.Is(err, fees.ErrConfigNotFound):
		code, label = http.StatusNotFound, "not_found"

	case errors.Is(err, status.ErrForbidden),
		errors.Is(err, status.ErrRoleDenied):
		code, label = http.StatusForbidden, "forbidden"

	case errors.Is(err, escrow.ErrSameStatus),
		errors.Is(err, payments.ErrSameStatus),
		errors.Is(err, escrow.ErrInvalidTransition),
		errors.Is(err, payments.ErrInvalidTransition),
		errors.Is(err, escrow.ErrAlreadyPaidOut),
		errors.Is(err, escrow.ErrNotDelivered),
		errors.Is(err, escrow.ErrDuplicateCode),
		errors.Is(err, gateway.ErrDuplicatePayment),
		errors.Is(err, wallet.ErrDuplicateReference),
		errors.Is(err, payout.ErrInProgress),
		errors.Is(err, offers.ErrNotActionable),
		errors.Is(err, offers.ErrNotAccepted):
		code, label = http.StatusConflict, "conflict"

	case errors.Is(err, escrow.ErrBuyerIsSeller),
		errors.Is(err, escrow.ErrPaymentNotAllowed),
		errors.Is(err, catalog.ErrProductInactive),
		errors.Is(err, gateway.ErrUnknownGateway),
		errors.Is(err, gateway.ErrUnsupportedCurrency),
		errors.Is(err, offers.ErrExpired),
		errors.Is(err, offers.ErrWrongProduct),
		errors.Is(err, offers.ErrWrongBuyer),
		errors.Is(err, fees.ErrInvalidPercent),
		errors.Is(err, fees.ErrNoActiveConfig),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, currency.ErrUnsupportedCurrency),
		errors.Is(err, currency.ErrInvalidAmount):
		code, label = http.StatusUnprocessableEntity, "unprocessable"

	case errors.Is(err, currency.ErrNoRates):
		code, label = http.StatusServiceUnavailable, "rates_unavailable"

	case errors.Is(err, gateway.ErrGatewayUnavailable):
		code, label = http.StatusServiceUnavailable, "gateway_unavailable"

	case errors.Is(err, gateway.ErrInitializationFailed),
		errors.Is(err, gateway.ErrNotConfigured),
		errors.Is(err, payout.ErrDisburseFailed):
		code, label = http.StatusBadGateway, "gateway_error"
	}

	if code == http.StatusInternalServerError {
		logging.L(c.Request.Context()).Error("unhandled error", "path", c.Request.URL.Path, "error", err)
		c.JSON(code, gin.H{
			"error":     label,
			"message":   "An internal error occurred",
			"requestId": logging.RequestID(c.Request.Context()),
		})
		return
	}
	c.JSON(code, gin.H{"error": label, "message": err.Error()})
}
