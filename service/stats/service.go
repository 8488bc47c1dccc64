package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Totals is a plain copy of the run counters, used by the journal's final
// statistics block.
type Totals struct {
	GrantsImmediate      uint64
	GrantsAfterWait      uint64
	TerminationsNormal   uint64
	TerminationsDeadlock uint64
	DeadlockRuns         uint64
	ProcessesInDeadlock  uint64
	WorkersLaunched      uint64
}

// Service accumulates the run counters. The master increments them from its
// single thread; atomics keep concurrent prometheus scrapes safe.
type Service struct {
	grantsImmediate      atomic.Uint64
	grantsAfterWait      atomic.Uint64
	terminationsNormal   atomic.Uint64
	terminationsDeadlock atomic.Uint64
	deadlockRuns         atomic.Uint64
	processesInDeadlock  atomic.Uint64
	workersLaunched      atomic.Uint64

	descGrantsImmediate      *prometheus.Desc
	descGrantsAfterWait      *prometheus.Desc
	descTerminationsNormal   *prometheus.Desc
	descTerminationsDeadlock *prometheus.Desc
	descDeadlockRuns         *prometheus.Desc
	descProcessesInDeadlock  *prometheus.Desc
	descWorkersLaunched      *prometheus.Desc
}

// New returns a zeroed counter set.
func New() *Service {
	return &Service{
		descGrantsImmediate: prometheus.NewDesc(
			"ossim_grants_immediate_total",
			"Requests granted synchronously on arrival", nil, nil),
		descGrantsAfterWait: prometheus.NewDesc(
			"ossim_grants_after_wait_total",
			"Requests granted from the wait queue by a re-grant sweep", nil, nil),
		descTerminationsNormal: prometheus.NewDesc(
			"ossim_terminations_normal_total",
			"Workers terminated other than by deadlock recovery (voluntary exit, reap or shutdown)", nil, nil),
		descTerminationsDeadlock: prometheus.NewDesc(
			"ossim_terminations_deadlock_total",
			"Workers terminated by deadlock recovery", nil, nil),
		descDeadlockRuns: prometheus.NewDesc(
			"ossim_deadlock_detection_runs_total",
			"Deadlock detection invocations", nil, nil),
		descProcessesInDeadlock: prometheus.NewDesc(
			"ossim_processes_in_deadlock_total",
			"Cumulative size of initial deadlocked sets", nil, nil),
		descWorkersLaunched: prometheus.NewDesc(
			"ossim_workers_launched_total",
			"Workers activated over the run", nil, nil),
	}
}

// IncGrantImmediate counts a synchronous grant.
func (s *Service) IncGrantImmediate() { s.grantsImmediate.Add(1) }

// IncGrantAfterWait counts a grant issued by a re-grant sweep.
func (s *Service) IncGrantAfterWait() { s.grantsAfterWait.Add(1) }

// IncTerminationNormal counts a termination that is not a deadlock kill: a
// voluntary exit, a reap or a shutdown reap.
func (s *Service) IncTerminationNormal() { s.terminationsNormal.Add(1) }

// IncTerminationDeadlock counts a deadlock victim.
func (s *Service) IncTerminationDeadlock() { s.terminationsDeadlock.Add(1) }

// IncDeadlockRun counts a detection invocation.
func (s *Service) IncDeadlockRun() { s.deadlockRuns.Add(1) }

// AddProcessesInDeadlock accumulates the size of an initial deadlocked set.
func (s *Service) AddProcessesInDeadlock(n int) { s.processesInDeadlock.Add(uint64(n)) }

// IncWorkersLaunched counts a worker activation.
func (s *Service) IncWorkersLaunched() { s.workersLaunched.Add(1) }

// Totals returns a snapshot of all counters.
func (s *Service) Totals() Totals {
	return Totals{
		GrantsImmediate:      s.grantsImmediate.Load(),
		GrantsAfterWait:      s.grantsAfterWait.Load(),
		TerminationsNormal:   s.terminationsNormal.Load(),
		TerminationsDeadlock: s.terminationsDeadlock.Load(),
		DeadlockRuns:         s.deadlockRuns.Load(),
		ProcessesInDeadlock:  s.processesInDeadlock.Load(),
		WorkersLaunched:      s.workersLaunched.Load(),
	}
}

// Describe implements prometheus.Collector.
func (s *Service) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.descGrantsImmediate
	ch <- s.descGrantsAfterWait
	ch <- s.descTerminationsNormal
	ch <- s.descTerminationsDeadlock
	ch <- s.descDeadlockRuns
	ch <- s.descProcessesInDeadlock
	ch <- s.descWorkersLaunched
}

// Collect implements prometheus.Collector.
func (s *Service) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(s.descGrantsImmediate, prometheus.CounterValue, float64(s.grantsImmediate.Load()))
	ch <- prometheus.MustNewConstMetric(s.descGrantsAfterWait, prometheus.CounterValue, float64(s.grantsAfterWait.Load()))
	ch <- prometheus.MustNewConstMetric(s.descTerminationsNormal, prometheus.CounterValue, float64(s.terminationsNormal.Load()))
	ch <- prometheus.MustNewConstMetric(s.descTerminationsDeadlock, prometheus.CounterValue, float64(s.terminationsDeadlock.Load()))
	ch <- prometheus.MustNewConstMetric(s.descDeadlockRuns, prometheus.CounterValue, float64(s.deadlockRuns.Load()))
	ch <- prometheus.MustNewConstMetric(s.descProcessesInDeadlock, prometheus.CounterValue, float64(s.processesInDeadlock.Load()))
	ch <- prometheus.MustNewConstMetric(s.descWorkersLaunched, prometheus.CounterValue, float64(s.workersLaunched.Load()))
}

var _ prometheus.Collector = (*Service)(nil)
