package ossim

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/runtime/master"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/stats"
)

// Runtime is the handle over a wired simulator: it runs the event loop and
// exposes the read side of the run.
type Runtime struct {
	service *Service
	master  *master.Service
}

// Run drives the event loop to completion and closes the journal.
func (r *Runtime) Run(ctx context.Context) error {
	defer func() { _ = r.service.journal.Close() }()
	return r.master.Run(ctx)
}

// Shutdown asks a running loop to exit; Run returns after reaping survivors.
func (r *Runtime) Shutdown() {
	r.master.Shutdown()
}

// Stats returns the current run counters.
func (r *Runtime) Stats() stats.Totals {
	return r.service.stats.Totals()
}

// Collector exposes the run counters for prometheus registration.
func (r *Runtime) Collector() prometheus.Collector {
	return r.service.stats
}

// Now returns the current simulated time.
func (r *Runtime) Now() clock.Time {
	return r.service.clock.Now()
}

// Journal returns the event log service.
func (r *Runtime) Journal() *journal.Service {
	return r.service.journal
}
