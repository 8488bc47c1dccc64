package launcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/messaging"
	"github.com/SwatiShah2000/ossim/service/proctable"
	"github.com/SwatiShah2000/ossim/service/stats"
)

// SpawnFunc starts the external worker bound to a slot and returns a stop
// function that forces it down. The default spawn runs the simulated worker
// from service/worker; embedders may substitute real process launching.
type SpawnFunc func(ctx context.Context, slot int, id uuid.UUID) (stop func(), err error)

// Config represents launcher policy.
type Config struct {
	// MaxTotal is the lifetime worker quota
	MaxTotal int `json:"maxTotal" yaml:"maxTotal"`

	// MaxConcurrent caps simultaneously active workers
	MaxConcurrent int `json:"maxConcurrent" yaml:"maxConcurrent"`

	// LaunchInterval is the minimum simulated time between activations
	LaunchInterval time.Duration `json:"launchInterval" yaml:"launchInterval"`
}

// DefaultConfig returns the standard launch policy.
func DefaultConfig() Config {
	return Config{
		MaxTotal:       5,
		MaxConcurrent:  5,
		LaunchInterval: 100 * time.Millisecond,
	}
}

// Validate returns an error describing invalid policy or nil.
func (c Config) Validate() error {
	if c.MaxTotal <= 0 {
		return errors.New("maxTotal must be > 0")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("maxConcurrent must be > 0")
	}
	if c.LaunchInterval < 0 {
		return errors.New("launchInterval must be >= 0")
	}
	return nil
}

// Service activates worker slots according to the pacing policy, tracks the
// stop handle of every live worker and collects exit notifications for the
// master's reap step.
type Service struct {
	config  Config
	clock   *clock.Clock
	table   *proctable.Service
	grants  *messaging.Mailbox[model.Message]
	journal *journal.Service
	stats   *stats.Service
	spawn   SpawnFunc

	mu           sync.Mutex
	launched     int
	nextLaunchMS uint64
	stops        map[int]func()
	exits        chan int
}

// New creates a launcher. spawn must not be nil.
func New(config Config, clk *clock.Clock, table *proctable.Service,
	grants *messaging.Mailbox[model.Message], jrn *journal.Service, st *stats.Service,
	spawn SpawnFunc) *Service {
	return &Service{
		config:       config,
		clock:        clk,
		table:        table,
		grants:       grants,
		journal:      jrn,
		stats:        st,
		spawn:        spawn,
		nextLaunchMS: uint64(config.LaunchInterval.Milliseconds()),
		stops:        make(map[int]func()),
		exits:        make(chan int, config.MaxTotal+1),
	}
}

// MaybeLaunch activates one worker when the quota, the concurrency cap and
// the pacing interval all permit. A spawn failure leaves the slot unused.
func (s *Service) MaybeLaunch(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.launched >= s.config.MaxTotal {
		return
	}
	if s.table.Active() >= s.config.MaxConcurrent {
		return
	}
	now := s.clock.Now()
	if now.Milliseconds() < s.nextLaunchMS {
		return
	}
	i, ok := s.table.FindUnused()
	if !ok {
		return
	}

	id := uuid.New()
	s.grants.Register(id)
	if err := s.table.Activate(i, id, now); err != nil {
		s.grants.Unregister(id)
		log.WithError(err).Error("slot activation failed")
		return
	}
	stop, err := s.spawn(ctx, i, id)
	if err != nil {
		s.table.Deactivate(i)
		s.grants.Unregister(id)
		log.WithError(errors.Wrapf(err, "failed to spawn worker for slot %d", i)).Error("worker launch failed")
		return
	}
	s.stops[i] = stop
	s.launched++
	s.stats.IncWorkersLaunched()
	s.journal.Eventf("OSS: Process P%d created at time %s", i, now)
	s.nextLaunchMS = now.Milliseconds() + uint64(s.config.LaunchInterval.Milliseconds())
}

// NotifyExit records that the worker bound to slot has finished. Safe to
// call from worker goroutines; never blocks.
func (s *Service) NotifyExit(slot int) {
	select {
	case s.exits <- slot:
	default:
		log.WithField("slot", slot).Warn("exit notification dropped")
	}
}

// ReapExited drains pending exit notifications.
func (s *Service) ReapExited() []int {
	var out []int
	for {
		select {
		case i := <-s.exits:
			s.mu.Lock()
			delete(s.stops, i)
			s.mu.Unlock()
			out = append(out, i)
		default:
			return out
		}
	}
}

// Kill forces down the worker owning id, if it is still running.
func (s *Service) Kill(id uuid.UUID) {
	i, ok := s.table.FindByExternalID(id)
	if !ok {
		return
	}
	s.KillSlot(i)
}

// KillSlot forces down the worker bound to slot i.
func (s *Service) KillSlot(i int) {
	s.mu.Lock()
	stop := s.stops[i]
	delete(s.stops, i)
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// StopAll forces down every live worker.
func (s *Service) StopAll() {
	s.mu.Lock()
	stops := s.stops
	s.stops = make(map[int]func())
	s.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// Launched returns how many workers have been activated.
func (s *Service) Launched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launched
}

// QuotaReached reports whether the lifetime quota is exhausted.
func (s *Service) QuotaReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launched >= s.config.MaxTotal
}
