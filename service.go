package ossim

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/viant/afs"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/runtime/master"
	"github.com/SwatiShah2000/ossim/service/arbiter"
	"github.com/SwatiShah2000/ossim/service/detector"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/launcher"
	"github.com/SwatiShah2000/ossim/service/ledger"
	"github.com/SwatiShah2000/ossim/service/messaging"
	mfs "github.com/SwatiShah2000/ossim/service/messaging/fs"
	mmemory "github.com/SwatiShah2000/ossim/service/messaging/memory"
	"github.com/SwatiShah2000/ossim/service/proctable"
	"github.com/SwatiShah2000/ossim/service/stats"
	"github.com/SwatiShah2000/ossim/service/worker"
)

// Service assembles the simulator: shared state, transports and the five
// engine components, wired the same way regardless of whether the binary,
// a test or an embedder drives it.
type Service struct {
	config        *Config
	seed          int64
	queue         messaging.Queue[model.Message]
	journalWriter io.Writer
	spawn         launcher.SpawnFunc

	clock    *clock.Clock
	ledger   *ledger.Service
	table    *proctable.Service
	grants   *messaging.Mailbox[model.Message]
	journal  *journal.Service
	stats    *stats.Service
	arbiter  *arbiter.Service
	detector *detector.Service
	launcher *launcher.Service

	runtime *Runtime

	workerSeq atomic.Int64
}

// New builds a fully wired simulator.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	if s.seed != 0 {
		s.config.Master.Seed = s.seed
	} else {
		s.seed = s.config.Master.Seed
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	s.clock = clock.New()
	s.ledger = ledger.New(s.config.Ledger)
	s.table = proctable.New(s.config.Ledger.Slots)
	s.grants = messaging.NewMailbox[model.Message](4)
	s.stats = stats.New()

	if s.queue == nil {
		switch s.config.Queue.Vendor {
		case messaging.VendorFS:
			queue, err := mfs.NewQueue[model.Message](afs.New(), mfs.Config{BasePath: s.config.Queue.BasePath})
			if err != nil {
				return err
			}
			s.queue = queue
		default:
			s.queue = mmemory.NewQueue[model.Message](mmemory.DefaultConfig())
		}
	}

	if s.journalWriter != nil {
		s.journal = journal.NewWithWriter(s.journalWriter, s.config.Journal)
	} else {
		jrn, err := journal.New(s.config.Journal)
		if err != nil {
			return err
		}
		s.journal = jrn
	}

	s.arbiter = arbiter.New(s.clock, s.ledger, s.table, s.grants, s.journal, s.stats)
	s.detector = detector.New(s.clock, s.ledger, s.table, s.arbiter, s.journal, s.stats)

	if s.spawn == nil {
		s.spawn = s.spawnSimulated
	}
	s.launcher = launcher.New(s.config.Launcher, s.clock, s.table, s.grants, s.journal, s.stats, s.spawn)
	s.arbiter.SetKiller(s.launcher.KillSlot)

	loop, err := master.New(
		master.WithConfig(s.config.Master),
		master.WithState(s.clock, s.ledger, s.table),
		master.WithQueue(s.queue),
		master.WithArbiter(s.arbiter),
		master.WithDetector(s.detector),
		master.WithLauncher(s.launcher),
		master.WithJournal(s.journal),
		master.WithStats(s.stats),
	)
	if err != nil {
		return err
	}
	s.runtime = &Runtime{service: s, master: loop}
	return nil
}

// spawnSimulated runs the built-in random-walk worker as a goroutine and
// reports its exit to the launcher.
func (s *Service) spawnSimulated(ctx context.Context, slot int, id uuid.UUID) (func(), error) {
	wctx, cancel := context.WithCancel(ctx)
	w := worker.New(slot, id, s.clock, s.config.Ledger.Resources, s.config.Ledger.Instances,
		s.queue, s.grants, s.seed+s.workerSeq.Add(1), s.config.Worker)
	go func() {
		defer cancel()
		_ = w.Run(wctx)
		s.launcher.NotifyExit(slot)
	}()
	return cancel, nil
}

// Runtime returns the run handle.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}
