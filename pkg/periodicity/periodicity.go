// Package periodicity implements a repeating activation schedule driven
// either by a plain period or by a sorted offset table within each
// period, backed by a randvar.Stream so jittered periods stay
// deterministic.
package periodicity

import (
	"github.com/mescourrou/simkernel/pkg/randvar"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Periodicity computes the next activation time of a repeating schedule.
// A Periodicity with no Table fires once per period at offset+period*k. A
// Periodicity with a Table fires once for each sorted additive offset in
// Table within every period (e.g. Table=[0, 0.3, 0.7] with Period=1.0
// fires at 0, 0.3, 0.7, 1.0, 1.3, 1.7, ...). Table entries are literal
// time offsets in seconds from the cycle start, not fractions of the
// period.
type Periodicity struct {
	period *randvar.Stream
	table  []float64 // sorted additive offsets in seconds; nil means [0]

	cycleStart     simtime.Time
	cyclePeriod    simtime.Time
	tableIndex     int
}

// New creates a Periodicity. period draws the cycle length at the start of
// each cycle (use a KindFixed single-value stream for a non-jittered
// period). offset shifts the very first activation. table, if non-empty,
// must be sorted ascending offsets within one period's length.
func New(period *randvar.Stream, offset simtime.Time, table []float64) *Periodicity {
	p := &Periodicity{period: period, table: table, cycleStart: offset}
	p.cyclePeriod = p.drawPeriod(p.cycleStart)
	return p
}

// drawPeriod samples the cycle length at t, clamped to at least one time
// quantum so the schedule always advances.
func (p *Periodicity) drawPeriod(t simtime.Time) simtime.Time {
	d := simtime.Time(p.period.Generate(t)[0])
	if d < simtime.Round {
		return simtime.Round
	}
	return d
}

func (p *Periodicity) tableLen() int {
	if len(p.table) == 0 {
		return 1
	}
	return len(p.table)
}

func (p *Periodicity) tableAt(i int) float64 {
	if len(p.table) == 0 {
		return 0
	}
	return p.table[i]
}

// current returns the activation time at the current (cycleStart,
// tableIndex) position, rolling forward over cycle boundaries as needed.
func (p *Periodicity) current() simtime.Time {
	for p.tableIndex >= p.tableLen() {
		p.cycleStart = simtime.Add(p.cycleStart, p.cyclePeriod)
		p.tableIndex = 0
		p.cyclePeriod = p.drawPeriod(p.cycleStart)
	}
	return simtime.Add(p.cycleStart, simtime.Time(p.tableAt(p.tableIndex)))
}

// NextTime returns the next not-yet-dispatched activation time at or after
// now. It is safe to call repeatedly without side effects on the returned
// value; internal rollover of empty cycles is idempotent bookkeeping only.
func (p *Periodicity) NextTime(now simtime.Time) simtime.Time {
	for {
		c := p.current()
		if simtime.LessOrEqual(now, c) {
			return c
		}
		p.tableIndex++
	}
}

// Update advances past the activation at time t, which must equal the
// value last returned by NextTime. Calling Update again with the same t
// before calling NextTime is a no-op (idempotent), since the schedule only
// advances once t matches the current pending activation.
func (p *Periodicity) Update(t simtime.Time) {
	c := p.current()
	if !simtime.Equal(c, t) {
		return
	}
	p.tableIndex++
}
