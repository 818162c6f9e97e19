// Package traceexport writes the two performance-analysis artifacts: a
// Chrome trace-events JSON array (for chrome://tracing) and a
// `.report.csv` of per-activity duration statistics.
package traceexport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Event is one Chrome trace "complete" event (phase "X"): a named
// activity that ran on a given node ("thread") from Start for Duration
// microseconds.
type Event struct {
	Name     string  `json:"name"`
	Category string  `json:"cat"`
	Phase    string  `json:"ph"`
	StartUs  float64 `json:"ts"`
	DurUs    float64 `json:"dur"`
	Thread   string  `json:"tid"`
	Process  string  `json:"pid"`
}

// NewEvent creates a complete-phase trace event for activity name on
// node, spanning [startSeconds, startSeconds+durSeconds).
func NewEvent(name, category, node string, startSeconds, durSeconds float64) Event {
	return Event{
		Name:     name,
		Category: category,
		Phase:    "X",
		StartUs:  startSeconds * 1e6,
		DurUs:    durSeconds * 1e6,
		Thread:   node,
		Process:  "simulation",
	}
}

// Collector accumulates trace events from concurrently running node
// goroutines over one run. Event timestamps are wall-clock offsets from
// the collector's creation; wall time here profiles the kernel itself and
// never feeds back into simulation semantics.
type Collector struct {
	mu     sync.Mutex
	epoch  time.Time
	events []Event
}

// NewCollector creates a Collector whose trace timeline starts now.
func NewCollector() *Collector {
	return &Collector{epoch: time.Now()}
}

// AddComplete records one complete-phase block: activity name ran on node
// from start for dur.
func (c *Collector) AddComplete(name, category, node string, start time.Time, dur time.Duration) {
	e := NewEvent(name, category, node, start.Sub(c.epoch).Seconds(), dur.Seconds())
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a copy of every recorded event.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// WriteTrace writes events as a Chrome trace-events JSON array to w.
func WriteTrace(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	return enc.Encode(events)
}

// Stats summarizes one activity's duration distribution across every
// occurrence in the run.
type Stats struct {
	Name   string
	N      int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Q01    float64
	Q1     float64
	Q3     float64
	Q99    float64
}

// ComputeStats groups events by Name and computes duration statistics for
// each group.
func ComputeStats(events []Event) []Stats {
	byName := make(map[string][]float64)
	for _, e := range events {
		byName[e.Name] = append(byName[e.Name], e.DurUs)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Stats, 0, len(names))
	for _, name := range names {
		out = append(out, statsFor(name, byName[name]))
	}
	return out
}

func statsFor(name string, durations []float64) Stats {
	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, d := range sorted {
		sum += d
	}

	return Stats{
		Name:   name,
		N:      n,
		Mean:   sum / float64(n),
		Median: percentile(sorted, 0.50),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Q01:    percentile(sorted, 0.01),
		Q1:     percentile(sorted, 0.25),
		Q3:     percentile(sorted, 0.75),
		Q99:    percentile(sorted, 0.99),
	}
}

// percentile linearly interpolates between the two closest ranks of a
// pre-sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// WriteReport writes stats as the `.report.csv` artifact.
func WriteReport(w io.Writer, stats []Stats) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"name", "n", "mean", "median", "min", "max", "q01", "q1", "q3", "q99"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range stats {
		row := []string{
			s.Name,
			fmt.Sprintf("%d", s.N),
			fmt.Sprintf("%.6f", s.Mean),
			fmt.Sprintf("%.6f", s.Median),
			fmt.Sprintf("%.6f", s.Min),
			fmt.Sprintf("%.6f", s.Max),
			fmt.Sprintf("%.6f", s.Q01),
			fmt.Sprintf("%.6f", s.Q1),
			fmt.Sprintf("%.6f", s.Q3),
			fmt.Sprintf("%.6f", s.Q99),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}
