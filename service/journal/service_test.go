package journal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SwatiShah2000/ossim/internal/clock"
	"github.com/SwatiShah2000/ossim/service/stats"
)

func TestEventfAndVerbosef(t *testing.T) {
	var buf strings.Builder
	s := NewWithWriter(&buf, Config{Verbose: false, MaxLines: 100})

	s.Eventf("Process P%d is terminating at time %s", 2, clock.Time{Seconds: 1, Nanos: 5})
	s.Verbosef("Master has detected Process P%d requesting R%d", 2, 0)

	out := buf.String()
	assert.Contains(t, out, "Process P2 is terminating at time 1:5\n")
	assert.NotContains(t, out, "requesting", "verbose entries suppressed")
	assert.Equal(t, 1, s.Lines())
}

func TestLineCap(t *testing.T) {
	var buf strings.Builder
	s := NewWithWriter(&buf, Config{Verbose: true, MaxLines: 3})

	for i := 0; i < 10; i++ {
		s.Eventf("entry %d", i)
	}
	assert.Equal(t, 3, s.Lines())
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestSnapshotLayout(t *testing.T) {
	var buf strings.Builder
	s := NewWithWriter(&buf, Config{Verbose: true, MaxLines: 100})

	s.Snapshot(clock.Time{Seconds: 2, Nanos: 100},
		[]SnapshotRow{
			{Slot: 0, Allocated: []int{1, 0}},
			{Slot: 3, Allocated: []int{0, 2}},
		},
		[]int{9, 8})

	out := buf.String()
	assert.Contains(t, out, "Current Resource Table (Time 2:100):")
	assert.Contains(t, out, "   | R0 R1 ")
	assert.Contains(t, out, "P0 | 1  0  ")
	assert.Contains(t, out, "P3 | 0  2  ")
	assert.Contains(t, out, "AV | 9  8  ")
}

func TestStatsBlock(t *testing.T) {
	var buf strings.Builder
	s := NewWithWriter(&buf, Config{Verbose: true, MaxLines: 100})

	s.Stats(stats.Totals{
		WorkersLaunched:      5,
		GrantsImmediate:      10,
		GrantsAfterWait:      4,
		TerminationsNormal:   3,
		TerminationsDeadlock: 2,
		DeadlockRuns:         4,
		ProcessesInDeadlock:  4,
	})

	out := buf.String()
	assert.Contains(t, out, "--- Final Statistics ---")
	assert.Contains(t, out, "Total processes: 5")
	assert.Contains(t, out, "Requests granted immediately: 10")
	assert.Contains(t, out, "Requests granted after waiting: 4")
	assert.Contains(t, out, "Average processes in deadlock per detection: 1.00")
	assert.Contains(t, out, "Percentage of deadlocked processes terminated: 50.00%")
}

func TestStatsBlockWithoutDetectionRuns(t *testing.T) {
	var buf strings.Builder
	s := NewWithWriter(&buf, Config{Verbose: true, MaxLines: 100})
	s.Stats(stats.Totals{WorkersLaunched: 1})
	assert.NotContains(t, buf.String(), "Average processes")
}

func TestMirror(t *testing.T) {
	var buf, mirror strings.Builder
	s := NewWithWriter(&buf, Config{Verbose: true, MaxLines: 100})
	s.Mirror(&mirror)

	s.Eventf("hello")
	assert.Equal(t, buf.String(), mirror.String())
}
