package arbiter

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/ledger"
	"github.com/SwatiShah2000/ossim/service/messaging"
	"github.com/SwatiShah2000/ossim/service/proctable"
	"github.com/SwatiShah2000/ossim/service/stats"
)

// TerminationReason distinguishes the paths into Terminate for counting and
// logging.
type TerminationReason int

const (
	// TerminateNormal is a voluntary or reaped exit.
	TerminateNormal TerminationReason = iota
	// TerminateDeadlock is a deadlock-recovery victim kill.
	TerminateDeadlock
	// TerminateShutdown reaps a survivor during master shutdown.
	TerminateShutdown
)

// ProtocolError marks a malformed or out-of-order worker message. The ledger
// is never touched on this path; the message is logged and dropped.
type ProtocolError struct {
	Slot   int
	Reason string
}

// Error implements error.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation by P%d: %s", e.Slot, e.Reason)
}

// Service is the request arbiter. It consumes one protocol message at a
// time, grants or blocks requests, runs the re-grant sweep when instances
// come back, and owns the terminate path shared with the deadlock engine.
type Service struct {
	clock   *clock.Clock
	ledger  *ledger.Service
	table   *proctable.Service
	grants  *messaging.Mailbox[model.Message]
	journal *journal.Service
	stats   *stats.Service
	kill    func(slot int)
}

// New creates an arbiter over the shared master state.
func New(clk *clock.Clock, led *ledger.Service, table *proctable.Service,
	grants *messaging.Mailbox[model.Message], jrn *journal.Service, st *stats.Service) *Service {
	return &Service{
		clock:   clk,
		ledger:  led,
		table:   table,
		grants:  grants,
		journal: jrn,
		stats:   st,
	}
}

// SetKiller installs the hook that forces a worker down when the master
// terminates it, the moral equivalent of the signal a real master would send
// a victim process. Voluntary exits never trigger it.
func (s *Service) SetKiller(kill func(slot int)) {
	s.kill = kill
}

// Handle dispatches one inbound message. A returned *ProtocolError has
// already been logged and left the ledger untouched; the caller just moves
// on. Any other error is a bug.
func (s *Service) Handle(ctx context.Context, msg *model.Message) error {
	switch msg.Kind {
	case model.KindRequest:
		return s.handleRequest(msg)
	case model.KindRelease:
		return s.handleRelease(msg)
	case model.KindTerminate:
		return s.handleTerminate(msg)
	default:
		return s.violation(msg.Slot, fmt.Sprintf("unexpected message kind %s", msg.Kind))
	}
}

func (s *Service) handleRequest(msg *model.Message) error {
	if err := s.checkSender(msg); err != nil {
		return err
	}
	i, r, q := msg.Slot, msg.Resource, msg.Quantity
	if r < 0 || r >= s.ledger.Resources() {
		return s.violation(i, fmt.Sprintf("resource %d out of range", r))
	}
	if state := s.table.State(i); state != proctable.StateReady {
		return s.violation(i, fmt.Sprintf("request from %s slot", state))
	}
	if _, _, outstanding := s.ledger.OutstandingRequest(i); outstanding {
		return s.violation(i, "second outstanding request")
	}
	if q < 1 {
		return s.violation(i, fmt.Sprintf("request quantity %d", q))
	}
	if !s.ledger.Feasible(i, r, q) {
		return s.violation(i, fmt.Sprintf("request R%d:%d exceeds resource total", r, q))
	}

	now := s.clock.Now()
	s.journal.Verbosef("Master has detected Process P%d requesting R%d at time %s", i, r, now)

	if q <= s.ledger.Available(r) {
		if err := s.ledger.Allocate(i, r, q); err != nil {
			return err
		}
		s.emitGrant(i, r, q)
		s.journal.Verbosef("Master granting P%d request R%d at time %s", i, r, now)
		s.stats.IncGrantImmediate()
		return nil
	}

	if _, err := s.table.Block(i); err != nil {
		return err
	}
	if err := s.ledger.AddRequest(i, r, q); err != nil {
		return err
	}
	s.journal.Verbosef("Master: no instances of R%d available, P%d added to wait queue at time %s", r, i, now)
	return nil
}

func (s *Service) handleRelease(msg *model.Message) error {
	if err := s.checkSender(msg); err != nil {
		return err
	}
	i, r, q := msg.Slot, msg.Resource, msg.Quantity
	if r < 0 || r >= s.ledger.Resources() {
		return s.violation(i, fmt.Sprintf("resource %d out of range", r))
	}
	if state := s.table.State(i); state != proctable.StateReady {
		return s.violation(i, fmt.Sprintf("release from %s slot", state))
	}
	if q < 1 || q > s.ledger.Allocated(i, r) {
		return s.violation(i, fmt.Sprintf("release R%d:%d exceeds holding %d", r, q, s.ledger.Allocated(i, r)))
	}

	now := s.clock.Now()
	s.journal.Verbosef("Master has acknowledged Process P%d releasing R%d at time %s", i, r, now)
	s.journal.Verbosef("Resources released: R%d:%d", r, q)

	if err := s.ledger.Release(i, r, q); err != nil {
		return err
	}
	return s.sweep(r)
}

func (s *Service) handleTerminate(msg *model.Message) error {
	if err := s.checkSender(msg); err != nil {
		return err
	}
	// a reap may already have cleared the slot; terminating again is a no-op
	if s.table.State(msg.Slot) == proctable.StateUnused {
		return nil
	}
	s.journal.Eventf("Process P%d is terminating at time %s", msg.Slot, s.clock.Now())
	return s.Terminate(msg.Slot, TerminateNormal)
}

// Terminate releases everything slot i holds, frees the slot and lets the
// released instances flow to waiters. Idempotent: terminating an unused slot
// is a no-op. Shared by the worker terminate path, the reaper, deadlock
// recovery and shutdown.
func (s *Service) Terminate(i int, reason TerminationReason) error {
	if i < 0 || i >= s.table.Len() {
		return s.violation(i, "terminate slot out of range")
	}
	slot := s.table.Slot(i)
	if slot.State == proctable.StateUnused {
		return nil
	}

	now := s.clock.Now()
	switch reason {
	case TerminateDeadlock:
		s.journal.Eventf("Process P%d terminated due to deadlock at time %s", i, now)
		s.stats.IncTerminationDeadlock()
	default:
		s.journal.Eventf("Process P%d terminated normally at time %s", i, now)
		s.stats.IncTerminationNormal()
	}

	freed := s.ledger.ReleaseAll(i)
	s.logFreed(i, freed)
	s.table.Deactivate(i)
	s.grants.Unregister(slot.ExternalID)
	if reason != TerminateNormal && s.kill != nil {
		s.kill(i)
	}

	for r, n := range freed {
		if n == 0 {
			continue
		}
		if err := s.sweep(r); err != nil {
			return err
		}
	}
	return nil
}

// sweep walks the blocked waiters on resource r in block order and satisfies
// every request that now fits, in full or not at all.
func (s *Service) sweep(r int) error {
	type waiter struct {
		slot  int
		order uint64
	}
	var waiters []waiter
	for _, i := range s.table.Occupied() {
		if s.table.State(i) == proctable.StateBlocked && s.ledger.Request(i, r) > 0 {
			waiters = append(waiters, waiter{slot: i, order: s.table.Slot(i).BlockOrder})
		}
	}
	sort.Slice(waiters, func(a, b int) bool { return waiters[a].order < waiters[b].order })

	for _, w := range waiters {
		q := s.ledger.Request(w.slot, r)
		if q > s.ledger.Available(r) {
			continue
		}
		if err := s.ledger.Allocate(w.slot, r, q); err != nil {
			return err
		}
		s.ledger.ClearRequest(w.slot, r)
		if err := s.table.Unblock(w.slot); err != nil {
			return err
		}
		s.emitGrant(w.slot, r, q)
		s.journal.Verbosef("Master granting P%d previously blocked request R%d:%d at time %s",
			w.slot, r, q, s.clock.Now())
		s.stats.IncGrantAfterWait()
	}
	return nil
}

// emitGrant delivers the grant to the slot owner's mailbox. Delivery failure
// is reported but never rolled back; the allocation stands and the worker is
// expected to recover on its side.
func (s *Service) emitGrant(i, r, q int) {
	id := s.table.Slot(i).ExternalID
	grant := model.NewGrant(i, id, r, q)
	if err := s.grants.Send(id, grant); err != nil {
		log.WithError(err).WithField("slot", i).Warn("grant delivery failed")
	}
}

func (s *Service) checkSender(msg *model.Message) error {
	i := msg.Slot
	if i < 0 || i >= s.table.Len() {
		return s.violation(i, "slot out of range")
	}
	slot := s.table.Slot(i)
	if slot.State != proctable.StateUnused && msg.ExternalID != slot.ExternalID {
		return s.violation(i, "external id does not own slot")
	}
	return nil
}

func (s *Service) violation(slot int, reason string) error {
	err := &ProtocolError{Slot: slot, Reason: reason}
	log.WithField("slot", slot).Warn(err.Error())
	return err
}

func (s *Service) logFreed(i int, freed []int) {
	line := fmt.Sprintf("Resources released by P%d: ", i)
	any := false
	for r, n := range freed {
		if n > 0 {
			line += fmt.Sprintf("R%d:%d ", r, n)
			any = true
		}
	}
	if any {
		s.journal.Eventf("%s", line)
	}
}
