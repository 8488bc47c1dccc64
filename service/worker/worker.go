package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/service/messaging"
)

// Config tunes the random walk. All durations are simulated time.
type Config struct {
	// RequestBound is the upper bound on the delay before the next
	// request-or-release decision
	RequestBound time.Duration `json:"requestBound" yaml:"requestBound"`

	// TerminateCheck is the cadence of voluntary-exit checks
	TerminateCheck time.Duration `json:"terminateCheck" yaml:"terminateCheck"`

	// MinRuntime is the simulated age below which a worker never exits
	MinRuntime time.Duration `json:"minRuntime" yaml:"minRuntime"`

	// RequestProbability biases the walk toward requesting over releasing
	RequestProbability float64 `json:"requestProbability" yaml:"requestProbability"`

	// TerminateProbability is the exit chance at each check
	TerminateProbability float64 `json:"terminateProbability" yaml:"terminateProbability"`

	// PollInterval is the wall-clock pause between looks at the simulated
	// clock, keeping the walk from spinning a core
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// DefaultConfig returns the standard walk parameters.
func DefaultConfig() Config {
	return Config{
		RequestBound:         250 * time.Millisecond,
		TerminateCheck:       250 * time.Millisecond,
		MinRuntime:           time.Second,
		RequestProbability:   0.85,
		TerminateProbability: 0.10,
		PollInterval:         50 * time.Microsecond,
	}
}

// Worker is the simulated user process: it walks between requesting and
// releasing instances on its own schedule, blocks on its grant mailbox after
// every request, and eventually terminates voluntarily. It holds no master
// state; everything goes through messages.
type Worker struct {
	slot      int
	id        uuid.UUID
	clock     *clock.Clock
	resources int
	instances int
	out       messaging.Queue[model.Message]
	grants    *messaging.Mailbox[model.Message]
	rnd       *rand.Rand
	config    Config
	held      []int
	totalHeld int
}

// New creates a worker bound to slot with identity id.
func New(slot int, id uuid.UUID, clk *clock.Clock, resources, instances int,
	out messaging.Queue[model.Message], grants *messaging.Mailbox[model.Message],
	seed int64, config Config) *Worker {
	return &Worker{
		slot:      slot,
		id:        id,
		clock:     clk,
		resources: resources,
		instances: instances,
		out:       out,
		grants:    grants,
		rnd:       rand.New(rand.NewSource(seed)),
		config:    config,
		held:      make([]int, resources),
	}
}

// Run walks until the worker decides to terminate or ctx is cancelled. The
// deadlock engine cancels a victim's context; a voluntary exit returns nil.
func (w *Worker) Run(ctx context.Context) error {
	start := w.clock.Now()
	nextAction := start.Add(w.delay(w.config.RequestBound))
	nextCheck := start.Add(uint32(w.config.TerminateCheck.Nanoseconds()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		now := w.clock.Now()

		if now.Compare(nextAction) >= 0 {
			if err := w.step(ctx); err != nil {
				return err
			}
			now = w.clock.Now()
			nextAction = now.Add(w.delay(w.config.RequestBound))
		}

		if now.Compare(nextCheck) >= 0 {
			elapsed := now.Sub(start)
			if elapsed.TotalNanos() >= uint64(w.config.MinRuntime.Nanoseconds()) &&
				w.rnd.Float64() < w.config.TerminateProbability {
				return w.terminate(ctx)
			}
			nextCheck = now.Add(uint32(w.config.TerminateCheck.Nanoseconds()))
		}

		time.Sleep(w.config.PollInterval)
	}
}

// step performs one request-or-release decision.
func (w *Worker) step(ctx context.Context) error {
	if w.totalHeld == 0 || w.rnd.Float64() < w.config.RequestProbability {
		return w.request(ctx)
	}
	return w.release(ctx)
}

func (w *Worker) request(ctx context.Context) error {
	r := w.rnd.Intn(w.resources)
	if w.held[r] >= w.instances {
		return nil
	}
	const quantity = 1
	if err := w.out.Publish(ctx, model.NewRequest(w.slot, w.id, r, quantity)); err != nil {
		return err
	}
	grant, err := w.grants.Receive(ctx, w.id)
	if err != nil {
		return err
	}
	w.held[grant.Resource] += grant.Quantity
	w.totalHeld += grant.Quantity
	return nil
}

func (w *Worker) release(ctx context.Context) error {
	for r := 0; r < w.resources; r++ {
		if w.held[r] == 0 {
			continue
		}
		quantity := w.held[r]
		if err := w.out.Publish(ctx, model.NewRelease(w.slot, w.id, r, quantity)); err != nil {
			return err
		}
		w.held[r] = 0
		w.totalHeld -= quantity
		return nil
	}
	return nil
}

// terminate gives everything back and announces the exit.
func (w *Worker) terminate(ctx context.Context) error {
	for r := 0; r < w.resources; r++ {
		if w.held[r] == 0 {
			continue
		}
		if err := w.out.Publish(ctx, model.NewRelease(w.slot, w.id, r, w.held[r])); err != nil {
			log.WithError(err).WithField("slot", w.slot).Warn("release on exit failed")
		}
		w.held[r] = 0
	}
	w.totalHeld = 0
	return w.out.Publish(ctx, model.NewTerminate(w.slot, w.id))
}

// delay draws a uniform simulated delay in [0, bound).
func (w *Worker) delay(bound time.Duration) uint32 {
	if bound <= 0 {
		return 0
	}
	return uint32(w.rnd.Int63n(bound.Nanoseconds()))
}
