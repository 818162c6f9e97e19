// Package node implements a simulated robot: the pipeline of Physics,
// SensorManager, StateEstimator, Navigator, Controller and MessageHandler
// modules owned by one node, executed in a fixed order each tick
// (messages, services, sense, estimate, navigate, control, physics).
package node

import (
	"github.com/mescourrou/simkernel/pkg/controller"
	"github.com/mescourrou/simkernel/pkg/estimator"
	"github.com/mescourrou/simkernel/pkg/failure"
	"github.com/mescourrou/simkernel/pkg/handler"
	"github.com/mescourrou/simkernel/pkg/navigator"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/record"
	"github.com/mescourrou/simkernel/pkg/scenario"
	"github.com/mescourrou/simkernel/pkg/sensors"
	"github.com/mescourrou/simkernel/pkg/service"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Record is the per-tick aggregate snapshot appended to a node's record
// store: one nilable sub-record per module. A module's field is the zero
// value when that module is absent from the node.
type Record struct {
	At         simtime.Time       `json:"t"`
	Physics    *physics.Record    `json:"physics,omitempty"`
	Sensors    *sensors.Record    `json:"sensors,omitempty"`
	Estimator  *estimator.Record  `json:"estimator,omitempty"`
	Navigator  *navigator.Record  `json:"navigator,omitempty"`
	Controller *controller.Record `json:"controller,omitempty"`
}

// State is the node's lifecycle state.
type State int

const (
	StateAlive State = iota
	StateKilled
)

func (s State) String() string {
	if s == StateKilled {
		return "killed"
	}
	return "alive"
}

// Node is one simulated robot: its body, perception, belief, navigation,
// and actuation modules, plus whatever message handlers it registers.
// Exactly one goroutine ever mutates a Node's interior; there is no
// internal locking.
type Node struct {
	Name string

	state State

	Physics    physics.Physics
	Sensors    sensors.SensorManager
	Estimator  estimator.StateEstimator
	Navigator  navigator.Navigator
	Controller controller.Controller
	Handlers   []handler.MessageHandler
	Inboxes    []handler.Binding
	Services   []*service.Server

	records *record.Store[Record]

	lastTick simtime.Time
	areas    map[string]bool
}

// New creates a Node named name with the given module set. Any of the
// plugin fields may be nil (e.g. a purely message-driven node has no
// Physics).
func New(name string, ph physics.Physics, sm sensors.SensorManager, se estimator.StateEstimator, nv navigator.Navigator, ct controller.Controller, handlers []handler.MessageHandler) *Node {
	return &Node{
		Name:       name,
		state:      StateAlive,
		Physics:    ph,
		Sensors:    sm,
		Estimator:  se,
		Navigator:  nv,
		Controller: ct,
		Handlers:   handlers,
		records:    record.NewStore[Record](false),
	}
}

// Records returns the node's append-only per-tick record store.
func (n *Node) Records() *record.Store[Record] { return n.records }

// AttachInbox registers b as a source of inbound broker messages this
// node's pipeline drains and dispatches to its handler each tick.
func (n *Node) AttachInbox(b handler.Binding) {
	n.Inboxes = append(n.Inboxes, b)
}

// AttachService registers a service endpoint server this node owns; its
// pending requests are drained once per tick.
func (n *Node) AttachService(s *service.Server) {
	n.Services = append(n.Services, s)
}

// State returns the node's lifecycle state.
func (n *Node) State() State { return n.state }

// Kill marks the node dead; the scheduler stops ticking it and removes it
// from the termination barrier.
func (n *Node) Kill() { n.state = StateKilled }

// NextTimeStep folds every module's next-wakeup time into a single
// min-reduce, the core of the node's contribution to the scheduler's
// t_next computation. scenarioNext and serviceNext are
// supplied by the scheduler, which owns the scenario timeline and service
// registry shared across nodes.
func (n *Node) NextTimeStep(now simtime.Time, scenarioNext, serviceNext simtime.Time) simtime.Time {
	times := []simtime.Time{scenarioNext, serviceNext}
	if n.Physics != nil {
		times = append(times, n.Physics.NextTimeStep(now))
	}
	if n.Sensors != nil {
		times = append(times, n.Sensors.NextSampleTime(now))
	}
	for _, in := range n.Inboxes {
		times = append(times, in.NextTime())
	}
	for _, sv := range n.Services {
		times = append(times, sv.NextInboundTime(now))
	}
	return simtime.Min(times...)
}

// Tick runs one pass of the pipeline at time now, in the fixed order:
// drain due inbox messages -> drain due service requests -> sense ->
// estimate -> navigate -> control -> actuate -> physics update.
// Any module error aborts the tick and is returned for the scheduler to
// aggregate.
func (n *Node) Tick(now simtime.Time) error {
	if n.state != StateAlive {
		return nil
	}

	for _, in := range n.Inboxes {
		in.Drain(now)
	}
	for _, sv := range n.Services {
		sv.Drain(now)
	}

	pose := physics.State{}
	if n.Physics != nil {
		pose = n.Physics.State()
	}

	if n.Sensors != nil && n.Estimator != nil {
		obs := n.Sensors.Sense(now, pose)
		n.Estimator.Update(now, obs)
	}

	var world estimator.WorldState
	if n.Estimator != nil {
		world = n.Estimator.State()
	}

	if n.Navigator != nil && n.Controller != nil && n.Physics != nil {
		navErr := n.Navigator.Compute(now, pose, world)
		cmd := n.Controller.Compute(now, navErr)
		n.Physics.ApplyCommand(cmd)
	}

	if n.Physics != nil {
		if err := n.Physics.UpdateState(now); err != nil {
			return failure.Wrap(failure.Implementation, "physics update failed for node "+n.Name, err)
		}
	}

	n.lastTick = now
	n.records.Append(now, n.buildRecord(now))
	return nil
}

// buildRecord snapshots every present module into one aggregate Record
// for the result document.
func (n *Node) buildRecord(now simtime.Time) Record {
	rec := Record{At: now}
	if n.Physics != nil {
		r := n.Physics.Record(now)
		rec.Physics = &r
	}
	if n.Sensors != nil {
		r := n.Sensors.Record(now)
		rec.Sensors = &r
	}
	if n.Estimator != nil {
		r := n.Estimator.Record(now)
		rec.Estimator = &r
	}
	if n.Navigator != nil {
		r := n.Navigator.Record(now)
		rec.Navigator = &r
	}
	if n.Controller != nil {
		r := n.Controller.Record(now)
		rec.Controller = &r
	}
	return rec
}

// InArea reports whether a prior AreaEnter scenario event for areaName has
// been applied to this node without a matching AreaLeave since.
func (n *Node) InArea(areaName string) bool { return n.areas[areaName] }

// HandleScenarioEvent applies a scenario event targeted at this node. Area
// membership is scripted by the scenario timeline, not computed from live
// geometry: a Provider wanting geometry-triggered areas schedules the
// Enter/Leave Event itself once it detects the crossing.
func (n *Node) HandleScenarioEvent(ev scenario.Event) {
	switch ev.Kind {
	case scenario.Kill:
		n.Kill()
	case scenario.Spawn:
		n.state = StateAlive
	case scenario.AreaEnter:
		if n.areas == nil {
			n.areas = make(map[string]bool)
		}
		n.areas[ev.AreaName] = true
	case scenario.AreaLeave:
		delete(n.areas, ev.AreaName)
	}
}
