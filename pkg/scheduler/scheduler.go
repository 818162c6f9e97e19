package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mescourrou/simkernel/pkg/node"
	"github.com/mescourrou/simkernel/pkg/scenario"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/mescourrou/simkernel/pkg/traceexport"
)

// WakeupSource is one named contributor to a node's t_next computation,
// e.g. a broker topic's NextDeliveryTime or a service endpoint's
// NextInboundTime. Sources are scanned in the fixed order they were
// registered and folded into one min-reduce.
type WakeupSource func(now simtime.Time) simtime.Time

// Runner drives one node's independent execution loop to completion.
// Trace, when non-nil, receives one complete event per tick for the
// timing-profile export.
type Runner struct {
	Node     *node.Node
	Sources  []WakeupSource
	Scenario *scenario.Timeline
	Deadline simtime.Time
	Trace    *traceexport.Collector
}

// run executes the node's loop from t0 until no wakeup source remains
// below the deadline or the node is killed, dispatching all due scenario
// events and ticking the node at each computed t_next in turn. ctx is the
// global stop signal: polled at the top of each iteration, never checked
// mid-activity, so a cancelled run still finalises whatever tick it is in
// the middle of before exiting.
func (r *Runner) run(ctx context.Context, t0 simtime.Time, barrier *Barrier) error {
	// A node that exits normally arrives at the barrier; one killed by a
	// scenario event is removed from it instead. Either way the barrier is
	// decremented exactly once.
	killed := false
	defer func() {
		if killed {
			barrier.RemoveOne()
			return
		}
		barrier.Arrive()
	}()

	now := t0
	for {
		if r.Node.State() != node.StateAlive {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		scenarioNext := simtime.Inf
		if r.Scenario != nil {
			scenarioNext = r.Scenario.NextEventTime(r.Node.Name)
		}

		// The deadline is itself one of the sources folded into the
		// min-reduce: absent any other due activity, the node is always
		// guaranteed one final tick exactly at the deadline.
		candidates := []simtime.Time{r.Deadline, scenarioNext}
		for _, src := range r.Sources {
			candidates = append(candidates, src(now))
		}
		candidates = append(candidates, r.Node.NextTimeStep(now, scenarioNext, simtime.Min(candidates...)))

		tNext := simtime.Min(candidates...)
		if simtime.IsInf(tNext) || !simtime.Less(now, tNext) {
			return nil
		}

		if r.Scenario != nil {
			for {
				ev, ok := r.Scenario.Dispatch(r.Node.Name, tNext)
				if !ok {
					break
				}
				r.Node.HandleScenarioEvent(ev)
				if ev.Kind == scenario.Kill {
					killed = true
					return nil
				}
			}
		}

		tickStart := time.Now()
		terr := r.Node.Tick(tNext)
		if r.Trace != nil {
			r.Trace.AddComplete("tick", "node", r.Node.Name, tickStart, time.Since(tickStart))
		}
		if terr != nil {
			return terr
		}
		now = tNext

		// t_next reached the deadline and nothing else was pending
		// strictly before it (it would otherwise have won the min above):
		// terminate after recording this final tick.
		if !simtime.Less(tNext, r.Deadline) {
			return nil
		}
	}
}

// RunAll runs every node runner to completion concurrently, collecting
// per-node errors with an errgroup so one node's failure surfaces at
// RunAll's return without tearing down its siblings. Deliberately a plain
// errgroup.Group, not errgroup.WithContext: that variant's derived
// context is cancelled the instant any one Go func returns an error, and
// since every Runner.run polls its ctx argument at the top of its loop,
// using the derived context here would let one node's crash silently cut
// every sibling's run short. Every runner instead gets the same ctx the
// caller passed in directly, so only an external Simulator.Stop (or the
// caller's own ctx), never a sibling's error, can end a node's run early.
// Every failing node's error is returned, joined in runner order.
func RunAll(ctx context.Context, runners []*Runner) error {
	barrier := NewBarrier(len(runners))

	errs := make([]error, len(runners))
	var g errgroup.Group
	for i, r := range runners {
		i, r := i, r
		g.Go(func() error {
			errs[i] = r.run(ctx, r.startTime(), barrier)
			return errs[i]
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

func (r *Runner) startTime() simtime.Time {
	return simtime.Zero
}
