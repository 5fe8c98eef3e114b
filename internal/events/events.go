// Package events carries transaction lifecycle notifications to interested
// collaborators.
//
// Emission is fire-and-forget by design: a failed or slow sink must never
// roll back or delay the status change that produced the event. Sinks are
// injected, never global.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Event is one transaction lifecycle notification.
type Event struct {
	TransactionCode string    `json:"transactionCode"`
	Status          string    `json:"status"`
	PreviousStatus  string    `json:"previousStatus,omitempty"`
	BuyerID         string    `json:"buyerId,omitempty"`
	SellerID        string    `json:"sellerId,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	Note            string    `json:"note,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// Sink receives lifecycle events. Implementations must not block the caller
// beyond trivial bookkeeping.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(ctx context.Context, ev Event) {
	s.Logger.Info("transaction event",
		"transactionCode", ev.TransactionCode,
		"status", ev.Status,
		"previousStatus", ev.PreviousStatus,
		"amount", ev.Amount,
		"currency", ev.Currency,
	)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// NopSink discards events. Useful in tests.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, ev Event) {}
