package proctable

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/SwatiShah2000/ossim/internal/clock"
)

// State is the lifecycle state of a process table slot.
type State int

const (
	// StateUnused marks a free slot.
	StateUnused State = iota
	// StateReady marks an active worker with no outstanding request.
	StateReady
	// StateBlocked marks a worker waiting on an unsatisfied request.
	StateBlocked
	// StateTerminated marks a worker on its way out of the table.
	StateTerminated
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUnused:
		return "unused"
	case StateReady:
		return "ready"
	case StateBlocked:
		return "blocked"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Slot is one process table entry. BlockOrder is non-zero only while the
// slot is blocked and defines FIFO order among waiters on a resource.
type Slot struct {
	State      State
	ExternalID uuid.UUID
	StartTime  clock.Time
	BlockOrder uint64
}

// Service is the fixed-size process table. No slot is ever allocated
// dynamically; activation claims an unused index and deactivation returns it.
type Service struct {
	slots    []Slot
	blockSeq uint64
}

// New creates a table with n unused slots.
func New(n int) *Service {
	return &Service{slots: make([]Slot, n)}
}

// Len returns the table size.
func (s *Service) Len() int { return len(s.slots) }

// FindUnused returns the lowest unused slot index.
func (s *Service) FindUnused() (int, bool) {
	for i := range s.slots {
		if s.slots[i].State == StateUnused {
			return i, true
		}
	}
	return 0, false
}

// Activate claims slot i for the worker identified by id.
func (s *Service) Activate(i int, id uuid.UUID, now clock.Time) error {
	if err := s.check(i); err != nil {
		return err
	}
	if s.slots[i].State != StateUnused {
		return fmt.Errorf("slot %d is %s, not unused", i, s.slots[i].State)
	}
	s.slots[i] = Slot{State: StateReady, ExternalID: id, StartTime: now}
	return nil
}

// Deactivate returns slot i to the unused pool. Idempotent: deactivating an
// unused slot changes nothing.
func (s *Service) Deactivate(i int) {
	if i < 0 || i >= len(s.slots) {
		return
	}
	s.slots[i] = Slot{}
}

// Block transitions slot i to blocked and assigns its FIFO sequence number.
func (s *Service) Block(i int) (uint64, error) {
	if err := s.check(i); err != nil {
		return 0, err
	}
	if s.slots[i].State != StateReady {
		return 0, fmt.Errorf("slot %d is %s, cannot block", i, s.slots[i].State)
	}
	s.blockSeq++
	s.slots[i].State = StateBlocked
	s.slots[i].BlockOrder = s.blockSeq
	return s.blockSeq, nil
}

// Unblock returns slot i to ready and clears its FIFO sequence number.
func (s *Service) Unblock(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	if s.slots[i].State != StateBlocked {
		return fmt.Errorf("slot %d is %s, cannot unblock", i, s.slots[i].State)
	}
	s.slots[i].State = StateReady
	s.slots[i].BlockOrder = 0
	return nil
}

// Slot returns a copy of entry i.
func (s *Service) Slot(i int) Slot {
	if i < 0 || i >= len(s.slots) {
		return Slot{}
	}
	return s.slots[i]
}

// State returns the state of slot i.
func (s *Service) State(i int) State {
	return s.Slot(i).State
}

// Active returns the number of occupied slots.
func (s *Service) Active() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].State != StateUnused {
			n++
		}
	}
	return n
}

// Occupied returns the occupied slot indices in ascending order.
func (s *Service) Occupied() []int {
	var out []int
	for i := range s.slots {
		if s.slots[i].State != StateUnused {
			out = append(out, i)
		}
	}
	return out
}

// FindByExternalID returns the slot index owned by id.
func (s *Service) FindByExternalID(id uuid.UUID) (int, bool) {
	for i := range s.slots {
		if s.slots[i].State != StateUnused && s.slots[i].ExternalID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Service) check(i int) error {
	if i < 0 || i >= len(s.slots) {
		return fmt.Errorf("slot %d out of range [0, %d)", i, len(s.slots))
	}
	return nil
}
