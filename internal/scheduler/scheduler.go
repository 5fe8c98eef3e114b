// Package scheduler drives the timer-based jobs that advance transactions
// without user action: auto-release of held funds, and retention cleanup.
//
// Every job is idempotent against overlapping runs: auto-release re-lists
// only funds_held records, and the payout service's processedAt guard makes
// a second pass over an in-flight transaction a no-op.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/payout"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/status"
)

// Options tune job intervals and retention windows.
type Options struct {
	AutoReleaseInterval time.Duration // default 1h
	CleanupInterval     time.Duration // default 24h
	RetentionDays       int           // purge failed/cancelled after this many days
	ArchiveAfterDays    int           // archive completed after this many days
}

// Timer runs the scheduled jobs.
type Timer struct {
	store    escrow.Store
	statuses *status.Service
	payouts  *payout.Service
	opts     Options
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates the scheduler.
func NewTimer(store escrow.Store, statuses *status.Service, payouts *payout.Service, opts Options, logger *slog.Logger) *Timer {
	if opts.AutoReleaseInterval <= 0 {
		opts.AutoReleaseInterval = time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 24 * time.Hour
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	if opts.ArchiveAfterDays <= 0 {
		opts.ArchiveAfterDays = 90
	}
	return &Timer{
		store:    store,
		statuses: statuses,
		payouts:  payouts,
		opts:     opts,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the scheduler loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the job loops. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	release := time.NewTicker(t.opts.AutoReleaseInterval)
	defer release.Stop()
	cleanup := time.NewTicker(t.opts.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-release.C:
			t.safeRun(ctx, "auto_release", t.AutoRelease)
		case <-cleanup.C:
			t.safeRun(ctx, "cleanup", t.Cleanup)
		}
	}
}

// Stop signals the scheduler to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeRun(ctx context.Context, name string, job func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in scheduler job", "job", name, "panic", fmt.Sprint(r))
			metrics.SchedulerRuns.WithLabelValues(name, "panic").Inc()
		}
	}()
	job(ctx)
}

// AutoRelease advances overdue funds_held transactions to delivered and
// triggers their payout. Exposed so tests and operators can run a pass
// directly.
func (t *Timer) AutoRelease(ctx context.Context) {
	now := time.Now()

	due, err := t.store.ListAutoReleasable(ctx, now, 100)
	if err != nil {
		t.logger.Warn("failed to list auto-releasable transactions", "error", err)
		metrics.SchedulerRuns.WithLabelValues("auto_release", "error").Inc()
		return
	}

	for _, txn := range due {
		if _, err := t.statuses.ExecuteAsSystem(ctx, txn.Code, escrow.StatusShipped,
			"auto-release: hold period elapsed"); err != nil {
			t.logger.Warn("auto-release shipment step failed",
				"transactionCode", txn.Code, "error", err)
			continue
		}
		if _, err := t.statuses.ExecuteAsSystem(ctx, txn.Code, escrow.StatusDelivered,
			"auto-release: delivery assumed"); err != nil {
			t.logger.Warn("auto-release delivery step failed",
				"transactionCode", txn.Code, "error", err)
			continue
		}
		if _, err := t.payouts.Process(ctx, txn.ID); err != nil {
			t.logger.Warn("auto-release payout failed",
				"transactionCode", txn.Code, "error", err)
			continue
		}
		t.logger.Info("auto-released transaction",
			"transactionCode", txn.Code,
			"seller", txn.SellerID,
			"amount", txn.SellerPayout,
		)
	}
	metrics.SchedulerRuns.WithLabelValues("auto_release", "ok").Inc()
}

// Cleanup purges old failed and cancelled transactions and archives old
// completed ones.
func (t *Timer) Cleanup(ctx context.Context) {
	now := time.Now()

	purgeCutoff := now.AddDate(0, 0, -t.opts.RetentionDays)
	purgeable, err := t.store.ListPurgeable(ctx, purgeCutoff, 500)
	if err != nil {
		t.logger.Warn("failed to list purgeable transactions", "error", err)
		metrics.SchedulerRuns.WithLabelValues("cleanup", "error").Inc()
		return
	}
	for _, txn := range purgeable {
		if err := t.store.Delete(ctx, txn.ID); err != nil {
			t.logger.Warn("failed to purge transaction", "transactionCode", txn.Code, "error", err)
			continue
		}
		t.logger.Debug("purged transaction", "transactionCode", txn.Code, "status", txn.Status)
	}

	archiveCutoff := now.AddDate(0, 0, -t.opts.ArchiveAfterDays)
	archivable, err := t.store.ListArchivable(ctx, archiveCutoff, 500)
	if err != nil {
		t.logger.Warn("failed to list archivable transactions", "error", err)
		metrics.SchedulerRuns.WithLabelValues("cleanup", "error").Inc()
		return
	}
	for _, txn := range archivable {
		if err := t.store.MarkArchived(ctx, txn.ID); err != nil {
			t.logger.Warn("failed to archive transaction", "transactionCode", txn.Code, "error", err)
			continue
		}
		t.logger.Debug("archived transaction", "transactionCode", txn.Code)
	}
	metrics.SchedulerRuns.WithLabelValues("cleanup", "ok").Inc()
}
