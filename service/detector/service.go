package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/service/arbiter"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/ledger"
	"github.com/SwatiShah2000/ossim/service/proctable"
	"github.com/SwatiShah2000/ossim/service/stats"
	"github.com/SwatiShah2000/ossim/tracing"
)

// Service is the deadlock engine: a multi-instance safety check over the
// ledger snapshot plus the victim-at-a-time recovery policy.
type Service struct {
	clock   *clock.Clock
	ledger  *ledger.Service
	table   *proctable.Service
	arbiter *arbiter.Service
	journal *journal.Service
	stats   *stats.Service
}

// New creates a detector over the shared master state.
func New(clk *clock.Clock, led *ledger.Service, table *proctable.Service,
	arb *arbiter.Service, jrn *journal.Service, st *stats.Service) *Service {
	return &Service{
		clock:   clk,
		ledger:  led,
		table:   table,
		arbiter: arb,
		journal: jrn,
		stats:   st,
	}
}

// Detect classifies every occupied slot as finishable or deadlocked and
// returns the deadlocked slot indices in ascending order. A slot is
// finishable when its outstanding request fits into the work vector; its
// holdings then join the work vector and may finish others.
func (s *Service) Detect() []int {
	snap := s.ledger.Snapshot()
	n := s.table.Len()

	finish := make([]bool, n)
	for i := 0; i < n; i++ {
		state := s.table.State(i)
		finish[i] = state == proctable.StateUnused || state == proctable.StateTerminated
	}
	work := append([]int(nil), snap.Available...)

	for progress := true; progress; {
		progress = false
		for i := 0; i < n; i++ {
			if finish[i] || !fits(snap.Request[i], work) {
				continue
			}
			for r := range work {
				work[r] += snap.Allocated[i][r]
			}
			finish[i] = true
			progress = true
		}
	}

	var deadlocked []int
	for i := 0; i < n; i++ {
		if !finish[i] {
			deadlocked = append(deadlocked, i)
		}
	}
	return deadlocked
}

// Run executes one detection episode and, when a deadlock exists, terminates
// victims in ascending slot order until the residual set is empty. Detection
// is re-run after every kill so workers freed by an earlier victim's
// resources are spared.
func (s *Service) Run(ctx context.Context) error {
	_, span := tracing.StartSpan(ctx, "deadlock.detect")
	var runErr error
	defer func() { tracing.EndSpan(span, runErr) }()

	s.stats.IncDeadlockRun()
	now := s.clock.Now()

	victims := s.Detect()
	if len(victims) == 0 {
		s.journal.Verbosef("Master running deadlock detection at time %s: No deadlocks detected", now)
		return nil
	}

	s.journal.Eventf("Master running deadlock detection at time %s:", now)
	s.journal.Eventf("Processes %s deadlocked", processList(victims))
	s.stats.AddProcessesInDeadlock(len(victims))
	span.WithInt("deadlocked", len(victims))

	killed := 0
	remaining := victims
	for _, v := range victims {
		if !contains(remaining, v) {
			continue
		}
		s.journal.Eventf("Master terminating P%d to remove deadlock", v)
		if err := s.arbiter.Terminate(v, arbiter.TerminateDeadlock); err != nil {
			runErr = err
			return err
		}
		killed++
		remaining = s.Detect()
		if len(remaining) == 0 {
			s.journal.Eventf("Deadlock resolved after terminating %d processes", killed)
			break
		}
	}
	span.WithInt("terminated", killed)
	return nil
}

func fits(request, work []int) bool {
	for r := range work {
		if request[r] > work[r] {
			return false
		}
	}
	return true
}

func contains(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

func processList(slots []int) string {
	parts := make([]string, len(slots))
	for i, v := range slots {
		parts[i] = fmt.Sprintf("P%d", v)
	}
	return strings.Join(parts, ", ")
}
