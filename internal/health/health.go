// Package health runs named readiness probes for the payment service's
// dependencies (database, FX rate snapshot, scheduler) and aggregates
// them into a single ready/not-ready answer for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// checkTimeout bounds each individual probe so one hung dependency
// cannot stall the whole health endpoint.
const checkTimeout = 2 * time.Second

// Status is the outcome of one probe.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes one dependency. A nil error means healthy; the detail
// string is surfaced either way (e.g. "in-memory", "updated 2026-08-28").
type Checker func(ctx context.Context) (detail string, err error)

// Registry holds named probes and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	probes []probe
}

type probe struct {
	name  string
	check Checker
}

// NewRegistry creates an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a probe under the given name. Probes run in
// registration order.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.probes = append(r.probes, probe{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every registered probe, each under its own timeout, and
// reports the aggregate readiness plus the individual results. An empty
// registry is healthy.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	probes := make([]probe, len(r.probes))
	copy(probes, r.probes)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(probes))

	for i, p := range probes {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		detail, err := p.check(checkCtx)
		cancel()

		statuses[i] = Status{Name: p.name, Healthy: err == nil, Detail: detail}
		if err != nil {
			statuses[i].Detail = err.Error()
			healthy = false
		}
	}

	return healthy, statuses
}
