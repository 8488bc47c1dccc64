package ossim

import (
	"io"

	"github.com/SwatiShah2000/ossim/model"
	"github.com/SwatiShah2000/ossim/service/launcher"
	"github.com/SwatiShah2000/ossim/service/messaging"
)

// Option configures the simulator service.
type Option func(*Service)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithQueue sets a custom inbound message queue, overriding the configured
// vendor.
func WithQueue(queue messaging.Queue[model.Message]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithJournalWriter directs the event log to w instead of the configured
// log file. Used by tests and embedders that manage output themselves.
func WithJournalWriter(w io.Writer) Option {
	return func(s *Service) { s.journalWriter = w }
}

// WithSpawnFunc replaces the built-in simulated worker with a custom
// launcher, e.g. one forking real processes.
func WithSpawnFunc(spawn launcher.SpawnFunc) Option {
	return func(s *Service) { s.spawn = spawn }
}

// WithSeed seeds both the clock tick source and the worker walks.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.config.Master.Seed = seed
		s.seed = seed
	}
}
