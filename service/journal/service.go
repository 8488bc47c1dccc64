package journal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/service/stats"
)

// Config represents journal configuration.
type Config struct {
	// Path is the event log file location
	Path string `json:"path" yaml:"path"`

	// Verbose controls whether per-request entries are written; termination,
	// snapshot and deadlock entries are always written
	Verbose bool `json:"verbose" yaml:"verbose"`

	// MaxLines caps the log; further entries are silently dropped
	MaxLines int `json:"maxLines" yaml:"maxLines"`
}

// DefaultConfig returns the standard journal configuration.
func DefaultConfig() Config {
	return Config{
		Path:     "oss.log",
		Verbose:  true,
		MaxLines: 10_000,
	}
}

// SnapshotRow is one occupied slot's holdings in a resource table snapshot.
type SnapshotRow struct {
	Slot      int
	Allocated []int
}

// Service writes the protocol event log: request/grant/release lines,
// resource table snapshots, deadlock episodes and the final statistics
// block. The log is line-capped; once the cap is reached entries are
// dropped without error.
type Service struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	mirror   io.Writer
	lines    int
	maxLines int
	verbose  bool
}

// New opens the journal file at config.Path, truncating any previous run.
func New(config Config) (*Service, error) {
	f, err := os.Create(config.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", config.Path)
	}
	s := NewWithWriter(f, config)
	s.closer = f
	return s, nil
}

// NewWithWriter builds a journal over an arbitrary writer; used by tests and
// by callers that manage the file themselves.
func NewWithWriter(w io.Writer, config Config) *Service {
	maxLines := config.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultConfig().MaxLines
	}
	return &Service{
		w:        w,
		maxLines: maxLines,
		verbose:  config.Verbose,
	}
}

// Mirror duplicates every journal line to w, the way the simulator echoes
// its log to standard output.
func (s *Service) Mirror(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = w
}

// Verbose reports whether per-request entries are being written.
func (s *Service) Verbose() bool { return s.verbose }

// Lines returns the number of lines written so far.
func (s *Service) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Eventf writes one formatted entry. A trailing newline is appended when the
// format does not end with one.
func (s *Service) Eventf(format string, args ...interface{}) {
	s.write(fmt.Sprintf(format, args...))
}

// Verbosef writes an entry only when verbose output is enabled.
func (s *Service) Verbosef(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.Eventf(format, args...)
}

// Snapshot writes the current resource table.
func (s *Service) Snapshot(now clock.Time, rows []SnapshotRow, available []int) {
	var b strings.Builder
	fmt.Fprintf(&b, "\nCurrent Resource Table (Time %s):\n", now)
	b.WriteString("   | ")
	for r := range available {
		fmt.Fprintf(&b, "R%d ", r)
	}
	b.WriteString("\n---+")
	for range available {
		b.WriteString("---")
	}
	b.WriteString("\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "P%d | ", row.Slot)
		for _, n := range row.Allocated {
			fmt.Fprintf(&b, "%d  ", n)
		}
		b.WriteString("\n")
	}
	b.WriteString("AV | ")
	for _, n := range available {
		fmt.Fprintf(&b, "%d  ", n)
	}
	b.WriteString("\n")
	s.write(b.String())
}

// Stats writes the final statistics block.
func (s *Service) Stats(totals stats.Totals) {
	var b strings.Builder
	b.WriteString("\n--- Final Statistics ---\n")
	fmt.Fprintf(&b, "Total processes: %d\n", totals.WorkersLaunched)
	fmt.Fprintf(&b, "Requests granted immediately: %d\n", totals.GrantsImmediate)
	fmt.Fprintf(&b, "Requests granted after waiting: %d\n", totals.GrantsAfterWait)
	fmt.Fprintf(&b, "Processes terminated normally: %d\n", totals.TerminationsNormal)
	fmt.Fprintf(&b, "Processes terminated due to deadlock: %d\n", totals.TerminationsDeadlock)
	fmt.Fprintf(&b, "Deadlock detection algorithm runs: %d\n", totals.DeadlockRuns)
	if totals.DeadlockRuns > 0 {
		avg := float64(totals.ProcessesInDeadlock) / float64(totals.DeadlockRuns)
		fmt.Fprintf(&b, "Average processes in deadlock per detection: %.2f\n", avg)
		if totals.ProcessesInDeadlock > 0 {
			pct := float64(totals.TerminationsDeadlock) / float64(totals.ProcessesInDeadlock) * 100
			fmt.Fprintf(&b, "Percentage of deadlocked processes terminated: %.2f%%\n", pct)
		}
	}
	s.write(b.String())
}

// Close flushes and closes the underlying file, if the journal owns one.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Service) write(entry string) {
	if !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lines >= s.maxLines {
		return
	}
	if _, err := io.WriteString(s.w, entry); err != nil {
		log.WithError(err).Warn("journal write failed")
		return
	}
	if s.mirror != nil {
		_, _ = io.WriteString(s.mirror, entry)
	}
	s.lines += strings.Count(entry, "\n")
}
