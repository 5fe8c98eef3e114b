// Package metrics provides Prometheus instrumentation for the payment core.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "souq",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransitionsTotal counts accepted status transitions by target status.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "status_transitions_total",
			Help:      "Total accepted transaction status transitions by new status.",
		},
		[]string{"status"},
	)

	// TransitionsRejected counts rejected transition attempts by reason.
	TransitionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "status_transitions_rejected_total",
			Help:      "Total rejected transition attempts by reason.",
		},
		[]string{"reason"},
	)

	// PayoutsTotal counts payout attempts by result.
	PayoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "payouts_total",
			Help:      "Total payout attempts by result.",
		},
		[]string{"result"},
	)

	// PlatformFeeCents accumulates collected platform fees in cents.
	// Advisory only: payout correctness never depends on this counter.
	PlatformFeeCents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "platform_fee_cents_total",
			Help:      "Accumulated platform fees in cents (advisory).",
		},
	)

	// GatewayCalls counts gateway API calls by gateway and operation.
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "gateway_calls_total",
			Help:      "Total payment gateway calls by gateway, operation and result.",
		},
		[]string{"gateway", "op", "result"},
	)

	// FXRefreshes counts rate snapshot refreshes by result.
	FXRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "fx_refreshes_total",
			Help:      "Total FX rate snapshot refreshes by result.",
		},
		[]string{"result"},
	)

	// SchedulerRuns counts scheduler job executions by job and result.
	SchedulerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "souq",
			Name:      "scheduler_runs_total",
			Help:      "Total scheduler job runs by job name and result.",
		},
		[]string{"job", "result"},
	)

	// ActiveWebSocketClients tracks connected status-feed clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "souq",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "souq", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "souq", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "souq", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransitionsTotal,
		TransitionsRejected,
		PayoutsTotal,
		PlatformFeeCents,
		GatewayCalls,
		FXRefreshes,
		SchedulerRuns,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
	)
}

// Middleware records request counts and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()

		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, httpStatusLabel(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// WatchDBPool samples database pool stats until ctx is cancelled.
func WatchDBPool(ctx context.Context, db *sql.DB, every time.Duration) {
	if db == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
		}
	}
}

func httpStatusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
