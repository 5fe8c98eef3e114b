// Package server wires the stores, services, and HTTP surface of the
// escrow payments service together.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/catalog"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/config"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/currency"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/events"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/fees"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/gateway"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/health"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/logging"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/offers"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/orders"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payments"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payout"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/ratelimit"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/realtime"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/scheduler"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/security"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/status"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/wallet"
)

// Server is the composed application.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *gin.Engine
	db     *sql.DB

	products  catalog.Store
	feeStore  fees.Store
	offerSt   offers.Store
	converter *currency.Converter
	factory   *gateway.Factory
	gateways  *gateway.Service
	escrows   *escrow.Service
	standards payments.Store
	wallets   *wallet.Service
	orders    *orders.Service
	statuses  *status.Service
	payouts   *payout.Service
	feeEngine *fees.Engine
	offerSvc  *offers.Service

	hub        *realtime.Hub
	sched      *scheduler.Timer
	offerTimer *offers.Timer
	limiter    *ratelimit.Limiter
	checks     *health.Registry
	stripeGW   *gateway.StripeGateway

	ready   atomic.Bool
	healthy atomic.Bool

	cancelRun context.CancelFunc
}

// New builds the server: stores backed by Postgres when DatabaseURL is set,
// in-memory otherwise, and every service wired on top of them.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		checks: health.NewRegistry(),
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		s.db = db
		logger.Info("connected to postgres", "dsn", maskDSN(cfg.DatabaseURL))

		s.products = catalog.NewPostgresStore(db)
		s.feeStore = fees.NewPostgresStore(db)
		s.offerSt = offers.NewPostgresStore(db)
		s.standards = payments.NewPostgresStore(db)
	} else {
		logger.Info("no DATABASE_URL set, using in-memory stores")
		s.products = catalog.NewMemoryStore()
		s.feeStore = fees.NewMemoryStore()
		s.offerSt = offers.NewMemoryStore()
		s.standards = payments.NewMemoryStore()
	}

	var escrowStore escrow.Store
	var gwStore gateway.Store
	var walletStore wallet.Store
	var orderStore orders.Store
	if s.db != nil {
		escrowStore = escrow.NewPostgresStore(s.db)
		gwStore = gateway.NewPostgresStore(s.db)
		walletStore = wallet.NewPostgresStore(s.db)
		orderStore = orders.NewPostgresStore(s.db)
	} else {
		escrowStore = escrow.NewMemoryStore()
		gwStore = gateway.NewMemoryStore()
		walletStore = wallet.NewMemoryStore()
		orderStore = orders.NewMemoryStore()
	}

	// Currency conversion: static table unless a live source is configured.
	var rates currency.RateSource
	if cfg.FXRateURL != "" {
		rates = currency.NewHTTPSource(cfg.FXRateURL)
	} else {
		rates = currency.DefaultStaticSource()
	}
	s.converter = currency.NewConverter(rates, cfg.FXMaxStaleness, logger)

	// Fee engine; seed a default config so quoting works out of the box.
	s.feeEngine = fees.NewEngine(s.feeStore)
	if err := seedDefaultFeeConfig(s.feeStore, cfg); err != nil {
		return nil, fmt.Errorf("seed fee config: %w", err)
	}

	// Payment gateways. Inactive gateways (missing credentials) still
	// register so discovery can report them as unavailable.
	s.factory = gateway.NewFactory()
	s.stripeGW = gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	s.factory.Register(s.stripeGW)
	s.factory.Register(gateway.NewPayTabsGateway(cfg.PayTabsProfileID, cfg.PayTabsServerKey, cfg.PayTabsBaseURL))
	s.factory.Register(gateway.NewCODGateway([]string{"USD", "AED", "SAR"}))

	s.gateways = gateway.NewService(s.factory, gwStore, s.converter, cfg.GatewayTimeout, logger)

	// Event fanout: structured log always, WebSocket hub for clients.
	s.hub = realtime.NewHub(logger)
	sink := events.MultiSink{events.LogSink{Logger: logger}, s.hub}

	s.offerSvc = offers.NewService(s.offerSt)
	s.wallets = wallet.NewService(walletStore)
	s.orders = orders.NewService(orderStore)

	s.escrows = escrow.NewService(
		escrowStore,
		s.products,
		s.offerSvc,
		s.feeEngine,
		s.converter,
		s.gateways,
		sink,
		escrow.Options{
			DefaultCurrency:    cfg.DefaultCurrency,
			ClientTotalBandPct: cfg.ClientTotalBandPct,
			AutoReleaseDays:    cfg.AutoReleaseDays,
		},
		logger,
	)

	disbursers := []payout.Disburser{
		payout.NewWalletDisburser(s.wallets),
		payout.NewBankTransferDisburser(),
		payout.NewPayPalDisburser(),
	}
	if sd := payout.NewStripeDisburser(cfg.StripeSecretKey); sd != nil {
		disbursers = append(disbursers, sd)
	}
	s.payouts = payout.NewService(escrowStore, s.products, sink, logger, disbursers...)

	s.statuses = status.NewService(escrowStore, s.standards, s.gateways, s.orders, s.payouts, sink, logger)

	s.sched = scheduler.NewTimer(escrowStore, s.statuses, s.payouts, scheduler.Options{
		RetentionDays:    cfg.RetentionDays,
		ArchiveAfterDays: cfg.ArchiveAfterDays,
	}, logger)
	s.offerTimer = offers.NewTimer(s.offerSt, 5*time.Minute, logger)

	s.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitRPS,
		BurstSize:         max(10, cfg.RateLimitRPS/5),
		CleanupInterval:   time.Minute,
	})

	s.registerHealthChecks()
	s.setupRouter()
	s.healthy.Store(true)
	return s, nil
}

// seedDefaultFeeConfig installs a baseline fee configuration when none is
// active yet, so a fresh deployment can quote fees immediately.
func seedDefaultFeeConfig(store fees.Store, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := store.GetActive(ctx); err == nil {
		return nil
	} else if !errors.Is(err, fees.ErrNoActiveConfig) {
		return err
	}

	payer := fees.PayerBuyer
	if cfg.GatewayFeePayer == "seller" {
		payer = fees.PayerSeller
	}
	return store.Create(ctx, &fees.Config{
		ID:               idgen.WithPrefix("feecfg"),
		Active:           true,
		DefaultPercent:   cfg.DefaultFeePercent,
		GatewayFeePaidBy: payer,
	})
}

func (s *Server) registerHealthChecks() {
	s.checks.Register("database", func(ctx context.Context) (string, error) {
		if s.db == nil {
			return "in-memory", nil
		}
		return "", s.db.PingContext(ctx)
	})
	s.checks.Register("fx_rates", func(ctx context.Context) (string, error) {
		last := s.converter.LastUpdated()
		if last.IsZero() {
			return "", errors.New("no rate snapshot loaded")
		}
		return "updated " + last.Format(time.RFC3339), nil
	})
	s.checks.Register("scheduler", func(ctx context.Context) (string, error) {
		return fmt.Sprintf("running=%v", s.sched.Running()), nil
	})
}

func (s *Server) setupRouter() {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", fmt.Sprint(recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An internal error occurred",
		})
	}))
	router.Use(security.HeadersMiddleware())
	router.Use(security.CORSMiddleware(nil))
	router.Use(s.limiter.Middleware())
	router.Use(metrics.Middleware())
	router.Use(s.requestLogger())

	router.GET("/health", s.handleHealth)
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	router.GET("/health/ready", s.handleReady)
	router.GET("/metrics", metrics.Handler())
	router.GET("/ws", gin.WrapF(s.hub.HandleWebSocket))

	v1 := router.Group("/api/v1")
	s.registerRoutes(v1)

	s.router = router
}

// requestLogger logs each request with its latency and resolved user.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.WithPrefix("req")
		}
		c.Header("X-Request-ID", requestID)
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"requestId", requestID,
		)
	}
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and background workers, blocking until the
// context is cancelled or a shutdown signal arrives.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel

	// Warm the FX snapshot so the first checkout never waits on a fetch.
	if err := s.converter.Refresh(runCtx); err != nil {
		s.logger.Warn("initial FX refresh failed, conversions fail closed until rates load", "error", err)
	}

	go s.hub.Run(runCtx)
	go s.sched.Start(runCtx)
	go s.offerTimer.Start(runCtx)
	go s.refreshRatesLoop(runCtx)
	if s.db != nil {
		go metrics.WatchDBPool(runCtx, s.db, 15*time.Second)
	}

	httpSrv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	s.ready.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(httpSrv)
}

// refreshRatesLoop refreshes the FX snapshot on the configured cadence. A
// failed refresh keeps the previous snapshot; conversions past the staleness
// bound fail closed inside the converter.
func (s *Server) refreshRatesLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FXRefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.converter.Refresh(ctx); err != nil {
				s.logger.Warn("FX refresh failed, keeping previous snapshot", "error", err)
			}
		}
	}
}

// Shutdown drains in-flight requests and stops background workers.
func (s *Server) Shutdown(httpSrv *http.Server) error {
	s.ready.Store(false)

	// Give load balancers a moment to observe the readiness flip.
	if s.cfg.IsProduction() {
		time.Sleep(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown error", "error", err)
	}

	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.sched.Stop()
	s.offerTimer.Stop()
	s.limiter.Stop()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  map[bool]string{true: "healthy", false: "unhealthy"}[healthy],
		"checks":  statuses,
		"version": "1.0.0",
	})
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// maskDSN hides credentials in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// adminAuthorized checks the admin secret header for config endpoints.
func (s *Server) adminAuthorized(c *gin.Context) bool {
	if s.cfg.AdminSecret == "" {
		return s.cfg.IsDevelopment()
	}
	return strings.TrimSpace(c.GetHeader("X-Admin-Secret")) == s.cfg.AdminSecret
}
