package master

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/service/arbiter"
	"github.com/SwatiShah2000/ossim/service/detector"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/launcher"
	"github.com/SwatiShah2000/ossim/service/ledger"
	"github.com/SwatiShah2000/ossim/service/messaging"
	"github.com/SwatiShah2000/ossim/service/proctable"
	"github.com/SwatiShah2000/ossim/service/stats"
	"github.com/SwatiShah2000/ossim/tracing"
)

// Config represents event-loop scheduling, all in simulated time except the
// wall-clock budget that bounds a runaway run.
type Config struct {
	// SnapshotInterval is the resource-table snapshot cadence
	SnapshotInterval time.Duration `json:"snapshotInterval" yaml:"snapshotInterval"`

	// DetectInterval is the deadlock-detection cadence
	DetectInterval time.Duration `json:"detectInterval" yaml:"detectInterval"`

	// WallClockBudget bounds the real elapsed time of a run
	WallClockBudget time.Duration `json:"wallClockBudget" yaml:"wallClockBudget"`

	// Seed feeds the clock tick source
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the standard loop schedule.
func DefaultConfig() Config {
	return Config{
		SnapshotInterval: 500 * time.Millisecond,
		DetectInterval:   time.Second,
		WallClockBudget:  5 * time.Second,
		Seed:             1,
	}
}

// Service drives the whole simulation from a single goroutine: it advances
// the clock, launches and reaps workers, feeds the arbiter one message per
// iteration and fires the periodic snapshot and detection tasks on simulated
// boundaries.
type Service struct {
	config   Config
	clock    *clock.Clock
	ticks    *clock.TickSource
	queue    messaging.Queue[model.Message]
	arbiter  *arbiter.Service
	detector *detector.Service
	launcher *launcher.Service
	table    *proctable.Service
	ledger   *ledger.Service
	journal  *journal.Service
	stats    *stats.Service

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// Option configures the master service.
type Option func(*Service)

// WithConfig sets the loop schedule.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithQueue sets the inbound message queue.
func WithQueue(queue messaging.Queue[model.Message]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithArbiter sets the request arbiter.
func WithArbiter(arb *arbiter.Service) Option {
	return func(s *Service) { s.arbiter = arb }
}

// WithDetector sets the deadlock engine.
func WithDetector(det *detector.Service) Option {
	return func(s *Service) { s.detector = det }
}

// WithLauncher sets the worker launcher.
func WithLauncher(l *launcher.Service) Option {
	return func(s *Service) { s.launcher = l }
}

// WithState sets the shared clock, ledger and process table.
func WithState(clk *clock.Clock, led *ledger.Service, table *proctable.Service) Option {
	return func(s *Service) {
		s.clock = clk
		s.ledger = led
		s.table = table
	}
}

// WithJournal sets the event log.
func WithJournal(jrn *journal.Service) Option {
	return func(s *Service) { s.journal = jrn }
}

// WithStats sets the counter set.
func WithStats(st *stats.Service) Option {
	return func(s *Service) { s.stats = st }
}

// New creates the event loop service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	switch {
	case s.clock == nil || s.ledger == nil || s.table == nil:
		return nil, fmt.Errorf("shared state is required")
	case s.queue == nil:
		return nil, fmt.Errorf("message queue is required")
	case s.arbiter == nil:
		return nil, fmt.Errorf("arbiter is required")
	case s.detector == nil:
		return nil, fmt.Errorf("detector is required")
	case s.launcher == nil:
		return nil, fmt.Errorf("launcher is required")
	case s.journal == nil:
		return nil, fmt.Errorf("journal is required")
	case s.stats == nil:
		return nil, fmt.Errorf("stats is required")
	}
	s.ticks = clock.NewTickSource(s.config.Seed)
	return s, nil
}

// Run executes the event loop until the worker quota is exhausted and every
// slot is free, the wall-clock budget runs out, ctx is cancelled or Shutdown
// is called. Survivors are reaped and the final statistics block is written
// on every exit path.
func (s *Service) Run(ctx context.Context) error {
	start := time.Now()
	s.journal.Eventf("OSS: Resource Management System Started")

	snapNS := uint64(s.config.SnapshotInterval.Nanoseconds())
	detectNS := uint64(s.config.DetectInterval.Nanoseconds())
	var lastSnap, lastDetect uint64

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-s.shutdownCh:
			break loop
		default:
		}

		now := s.clock.Advance(s.ticks.Next())

		s.launcher.MaybeLaunch(ctx)

		for _, i := range s.launcher.ReapExited() {
			// a no-op when the exit was announced by a terminate message
			if err := s.arbiter.Terminate(i, arbiter.TerminateNormal); err != nil {
				runErr = err
				break loop
			}
		}

		if err := s.dispatchOne(ctx); err != nil {
			runErr = err
			break loop
		}

		if ns := now.TotalNanos(); ns/snapNS > lastSnap {
			lastSnap = ns / snapNS
			s.snapshot(now)
		}
		if ns := now.TotalNanos(); ns/detectNS > lastDetect {
			lastDetect = ns / detectNS
			if err := s.detector.Run(ctx); err != nil {
				runErr = err
				break loop
			}
		}

		if s.launcher.QuotaReached() && s.table.Active() == 0 {
			break loop
		}
		if time.Since(start) > s.config.WallClockBudget {
			log.Info("wall-clock budget exceeded, shutting down")
			break loop
		}
	}

	s.shutdown()
	return runErr
}

// Shutdown asks a running loop to exit. Safe to call more than once.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// dispatchOne polls the queue and hands at most one message to the arbiter.
// Protocol violations are already logged and acknowledged away; any other
// arbiter error aborts the run.
func (s *Service) dispatchOne(ctx context.Context) error {
	msg, err := s.queue.Poll(ctx)
	if err != nil || msg == nil {
		return nil
	}
	_, span := tracing.StartSpan(ctx, "master.dispatch")
	payload := msg.T()
	span.WithAttributes(map[string]string{"kind": payload.Kind.String()}).WithInt("slot", payload.Slot)

	handleErr := s.arbiter.Handle(ctx, payload)
	var pe *arbiter.ProtocolError
	if handleErr != nil && !errors.As(handleErr, &pe) {
		_ = msg.Nack(handleErr)
		tracing.EndSpan(span, handleErr)
		return handleErr
	}
	_ = msg.Ack()
	tracing.EndSpan(span, nil)
	return nil
}

func (s *Service) snapshot(now clock.Time) {
	var rows []journal.SnapshotRow
	available := make([]int, s.ledger.Resources())
	for r := range available {
		available[r] = s.ledger.Available(r)
	}
	for _, i := range s.table.Occupied() {
		row := journal.SnapshotRow{Slot: i, Allocated: make([]int, s.ledger.Resources())}
		for r := range row.Allocated {
			row.Allocated[r] = s.ledger.Allocated(i, r)
		}
		rows = append(rows, row)
	}
	s.journal.Snapshot(now, rows, available)
}

// shutdown kills surviving workers, returns their resources and writes the
// final statistics block.
func (s *Service) shutdown() {
	s.launcher.StopAll()
	for _, i := range s.table.Occupied() {
		if err := s.arbiter.Terminate(i, arbiter.TerminateShutdown); err != nil {
			log.WithError(err).WithField("slot", i).Error("shutdown reap failed")
		}
	}
	s.journal.Stats(s.stats.Totals())
}
