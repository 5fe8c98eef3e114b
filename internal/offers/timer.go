package offers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
)

// Timer periodically expires pending offers whose deadline has passed.
type Timer struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates an offer expiry timer.
func NewTimer(store Store, interval time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Timer{
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the expiry loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeExpire(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeExpire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in offer expiry timer", "panic", fmt.Sprint(r))
		}
	}()
	t.ExpirePending(ctx)
}

// ExpirePending marks every overdue pending offer expired. Exposed so tests
// and the scheduler can run a pass directly.
func (t *Timer) ExpirePending(ctx context.Context) {
	now := time.Now()

	overdue, err := t.store.ListExpirable(ctx, now, 100)
	if err != nil {
		t.logger.Warn("failed to list expirable offers", "error", err)
		metrics.SchedulerRuns.WithLabelValues("offer_expiry", "error").Inc()
		return
	}

	for _, o := range overdue {
		o.Status = StatusExpired
		if err := t.store.Update(ctx, o); err != nil {
			t.logger.Warn("failed to expire offer", "offerId", o.ID, "error", err)
			continue
		}
		t.logger.Info("expired offer",
			"offerId", o.ID,
			"productId", o.ProductID,
			"amount", o.Amount,
		)
	}
	metrics.SchedulerRuns.WithLabelValues("offer_expiry", "ok").Inc()
}
