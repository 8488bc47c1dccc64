package ossim

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/SwatiShah2000/ossim/runtime/master"
	"github.com/SwatiShah2000/ossim/service/journal"
	"github.com/SwatiShah2000/ossim/service/launcher"
	"github.com/SwatiShah2000/ossim/service/ledger"
	"github.com/SwatiShah2000/ossim/service/messaging"
	"github.com/SwatiShah2000/ossim/service/worker"
)

// QueueConfig selects the inbound message transport.
type QueueConfig struct {
	// Vendor is "memory" or "fs"
	Vendor messaging.Vendor `json:"vendor" yaml:"vendor"`

	// BasePath is the queue directory for the fs vendor
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// Config is a serialisable representation of the simulator configuration.
// It can be populated from JSON, YAML or flag binding. LoadConfig starts from
// DefaultConfig, so fields a file omits keep their defaults; a Config built
// by hand is validated as given, and zero-valued sections are rejected.
type Config struct {
	Ledger   ledger.Config   `json:"ledger" yaml:"ledger"`
	Launcher launcher.Config `json:"launcher" yaml:"launcher"`
	Journal  journal.Config  `json:"journal" yaml:"journal"`
	Worker   worker.Config   `json:"worker" yaml:"worker"`
	Master   master.Config   `json:"master" yaml:"master"`
	Queue    QueueConfig     `json:"queue" yaml:"queue"`
}

// DefaultConfig returns a Config populated with the standard simulation
// parameters.
func DefaultConfig() *Config {
	return &Config{
		Ledger:   ledger.DefaultConfig(),
		Launcher: launcher.DefaultConfig(),
		Journal:  journal.DefaultConfig(),
		Worker:   worker.DefaultConfig(),
		Master:   master.DefaultConfig(),
		Queue:    QueueConfig{Vendor: messaging.VendorMemory},
	}
}

// Validate returns an error describing the first invalid setting found, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Ledger.Validate(); err != nil {
		return errors.Wrap(err, "ledger")
	}
	if err := c.Launcher.Validate(); err != nil {
		return errors.Wrap(err, "launcher")
	}
	if c.Launcher.MaxConcurrent > c.Ledger.Slots {
		return errors.Errorf("launcher.maxConcurrent %d exceeds %d slots", c.Launcher.MaxConcurrent, c.Ledger.Slots)
	}
	switch c.Queue.Vendor {
	case messaging.VendorMemory:
	case messaging.VendorFS:
		if c.Queue.BasePath == "" {
			return errors.New("queue.basePath is required for the fs vendor")
		}
	default:
		return errors.Errorf("unsupported queue vendor: %s", c.Queue.Vendor)
	}
	return nil
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
