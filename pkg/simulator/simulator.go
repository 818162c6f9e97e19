// Package simulator implements the façade state machine
// (Created -> Configured -> Running -> Stopped -> Finalised), wiring
// every other package together into one runnable simulation.
package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/mescourrou/simkernel/pkg/broker"
	"github.com/mescourrou/simkernel/pkg/config"
	"github.com/mescourrou/simkernel/pkg/controller"
	"github.com/mescourrou/simkernel/pkg/estimator"
	"github.com/mescourrou/simkernel/pkg/failure"
	"github.com/mescourrou/simkernel/pkg/handler"
	"github.com/mescourrou/simkernel/pkg/navigator"
	"github.com/mescourrou/simkernel/pkg/node"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/randvar"
	"github.com/mescourrou/simkernel/pkg/record"
	"github.com/mescourrou/simkernel/pkg/scenario"
	"github.com/mescourrou/simkernel/pkg/scheduler"
	"github.com/mescourrou/simkernel/pkg/sensors"
	"github.com/mescourrou/simkernel/pkg/service"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/mescourrou/simkernel/pkg/traceexport"
)

// State is the façade's lifecycle state.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateRunning
	StateStopped
	StateFinalised
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFinalised:
		return "finalised"
	default:
		return "created"
	}
}

// Simulator owns every node, the shared randvar factory, and the
// configuration that produced them, and drives the run to completion.
type Simulator struct {
	// stateMu guards state and cancelRun, the only two fields Stop
	// touches from outside the goroutine that called Run.
	stateMu   sync.Mutex
	state     State
	cancelRun context.CancelFunc

	cfg *config.SimulatorConfig

	// now is the simulated time the last Run/RunUntil/Step advanced to;
	// guarded by stateMu alongside state.
	now simtime.Time

	provider       Provider
	factory        *randvar.Factory
	nodes          map[string]*node.Node
	scenario       *scenario.Timeline
	broker         *broker.Broker
	services       *service.Registry
	stateEndpoints map[string]*service.Endpoint[struct{}, physics.State]
	trace          *traceexport.Collector
	channelDelays  map[string]simtime.Time
}

// New creates a Simulator in the Created state.
func New() *Simulator {
	return &Simulator{state: StateCreated, nodes: make(map[string]*node.Node)}
}

// Load configures the simulator from cfg, building every node's module
// instances: Internal kinds directly, External/Scripted kinds through the
// installed Provider. Load may be called again after Stop to implement
// Reset: same seed, same config, bit-identical rerun.
func (s *Simulator) Load(cfg *config.SimulatorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.cfg = cfg
	s.factory = randvar.NewFactory(cfg.Seed)
	s.nodes = make(map[string]*node.Node)
	s.scenario = scenario.NewTimeline(cfg.Scenario)
	s.broker = broker.New()
	s.services = service.NewRegistry()
	s.stateEndpoints = make(map[string]*service.Endpoint[struct{}, physics.State])
	s.trace = nil
	s.channelDelays = make(map[string]simtime.Time)

	for _, nc := range cfg.Nodes {
		n, err := s.buildNode(nc)
		if err != nil {
			return fmt.Errorf("building node %q: %w", nc.Name, err)
		}
		s.nodes[nc.Name] = n
	}

	// Every node with a body serves a get_real_state endpoint, answered
	// from its own execution loop, so peers (and sensors reading neighbour
	// state) query it with simulated-time blocking instead of touching the
	// node's interior directly.
	for name, n := range s.nodes {
		if n.Physics == nil {
			continue
		}
		ep := service.NewEndpoint[struct{}, physics.State](name + "/get_real_state")
		ph := n.Physics
		n.AttachService(service.NewServer(ep, func(now simtime.Time, _ struct{}) (physics.State, error) {
			return ph.State(), nil
		}))
		s.services.Register(ep.Name())
		s.stateEndpoints[name] = ep
	}

	s.stateMu.Lock()
	s.state = StateConfigured
	s.now = simtime.Zero
	s.stateMu.Unlock()
	return nil
}

// SetProvider installs the external module provider used to instantiate
// External/Scripted plugin kinds. Must be called before Load.
func (s *Simulator) SetProvider(p Provider) { s.provider = p }

// Services returns the run's service-endpoint registry, used to resolve
// Service.NoSuchEndpoint before issuing a call.
func (s *Simulator) Services() *service.Registry { return s.services }

// RegisterService attaches a service endpoint server to the named node and
// records the endpoint name for call-time resolution.
func (s *Simulator) RegisterService(nodeName, endpointName string, srv *service.Server) error {
	n, ok := s.nodes[nodeName]
	if !ok {
		return failure.New(failure.Initialization, "no such node: "+nodeName)
	}
	n.AttachService(srv)
	s.services.Register(endpointName)
	return nil
}

// CallRealState issues a get_real_state request against the named node's
// endpoint, arriving at now with an absolute simulated-time deadline. The
// serving node answers from its own loop on its next tick at or after
// now; the caller polls the returned handle with TryResultAt, which
// completes with a Service.Timeout once the caller's clock passes the
// deadline unanswered. An unknown target fails immediately with
// Service.NoSuchEndpoint.
func (s *Simulator) CallRealState(target string, now, deadline simtime.Time) (*service.Call[physics.State], error) {
	name := target + "/get_real_state"
	if err := s.services.Resolve(name); err != nil {
		return nil, err
	}
	return s.stateEndpoints[target].CallWithDeadline(now, struct{}{}, deadline), nil
}

// Broker exposes the run's message broker so an external Provider can
// publish into a node's subscribed channels.
func (s *Simulator) Broker() *broker.Broker { return s.broker }

// externalKind reports whether kind names a Provider-instantiated module.
func externalKind(kind string) bool {
	return kind == "External" || kind == "Scripted"
}

func (s *Simulator) buildNode(nc config.NodeConfig) (*node.Node, error) {
	var err error

	var ph physics.Physics
	switch {
	case externalKind(string(nc.Physics.Kind)):
		if ph, err = fromProvider(s, nc.Name, "physics", func(p Provider) (physics.Physics, error) {
			return p.Physics(nc.Physics, s.cfg, s.factory, s.broker, simtime.Zero)
		}); err != nil {
			return nil, err
		}
	case nc.Physics.Kind == physics.KindInternal && nc.Physics.Unicycle != nil:
		ph = physics.NewUnicycle(*nc.Physics.Unicycle, 0)
	}

	var sm sensors.SensorManager
	switch {
	case externalKind(string(nc.Sensors.Kind)):
		if sm, err = fromProvider(s, nc.Name, "sensors", func(p Provider) (sensors.SensorManager, error) {
			return p.SensorManager(nc.Sensors, s.cfg, s.factory, s.broker, simtime.Zero)
		}); err != nil {
			return nil, err
		}
	case nc.Sensors.Kind == sensors.KindInternal && nc.Sensors.RangeBearing != nil:
		rbCfg := *nc.Sensors.RangeBearing
		if rbCfg.LandmarksFile != "" {
			lm, lerr := scenario.LoadLandmarkMap(rbCfg.LandmarksFile)
			if lerr != nil {
				return nil, fmt.Errorf("loading landmarks file %q: %w", rbCfg.LandmarksFile, lerr)
			}
			for _, p := range lm.Landmarks {
				rbCfg.Landmarks = append(rbCfg.Landmarks, sensors.Landmark{Name: p.Name, X: p.X, Y: p.Y})
			}
		}
		sm = sensors.NewRangeBearing(rbCfg, nc.Name, s.factory, 0)
	}

	var se estimator.StateEstimator
	switch {
	case externalKind(string(nc.Estimator.Kind)):
		if se, err = fromProvider(s, nc.Name, "estimator", func(p Provider) (estimator.StateEstimator, error) {
			return p.StateEstimator(nc.Estimator, s.cfg, s.factory, s.broker, simtime.Zero)
		}); err != nil {
			return nil, err
		}
	case nc.Estimator.Kind == estimator.KindInternal || nc.Estimator.Kind == "":
		se = estimator.NewPassThrough()
	}

	var nv navigator.Navigator
	switch {
	case externalKind(string(nc.Navigator.Kind)):
		if nv, err = fromProvider(s, nc.Name, "navigator", func(p Provider) (navigator.Navigator, error) {
			return p.Navigator(nc.Navigator, s.cfg, s.factory, s.broker, simtime.Zero)
		}); err != nil {
			return nil, err
		}
	case nc.Navigator.Kind == navigator.KindInternal && nc.Navigator.GoToPoint != nil:
		nv = navigator.NewGoToPoint(*nc.Navigator.GoToPoint)
	}

	var ct controller.Controller
	switch {
	case externalKind(string(nc.Controller.Kind)):
		if ct, err = fromProvider(s, nc.Name, "controller", func(p Provider) (controller.Controller, error) {
			return p.Controller(nc.Controller, s.cfg, s.factory, s.broker, simtime.Zero)
		}); err != nil {
			return nil, err
		}
	case nc.Controller.Kind == controller.KindInternal && nc.Controller.DifferentialDrive != nil:
		ct = controller.NewDifferentialDrive(*nc.Controller.DifferentialDrive)
	}

	n := node.New(nc.Name, ph, sm, se, nv, ct, nil)

	if s.provider != nil {
		handlers, herr := s.provider.MessageHandlers(n)
		if herr != nil {
			return nil, failure.Wrap(failure.Initialization, "provider message handlers for node "+nc.Name, herr)
		}
		n.Handlers = append(n.Handlers, handlers...)
	}

	for _, ch := range nc.Channels {
		topic := broker.GetTopic[any, any](s.broker, ch.Topic)
		buf := topic.Subscribe(nc.Name, nil)
		n.AttachInbox(handler.Bind(s.handlerFor(n, ch.Topic), buf))
		s.channelDelays[ch.Topic] = ch.ReceptionDelay
	}

	return n, nil
}

// handlerFor picks the handler bound to a configured channel: a
// provider-supplied handler already attached to n that claims the topic,
// or an Echo fallback.
func (s *Simulator) handlerFor(n *node.Node, topic string) handler.MessageHandler {
	for _, h := range n.Handlers {
		if h.Topic() == topic {
			return h
		}
	}
	return handler.NewEcho(topic)
}

// fromProvider instantiates one External/Scripted module slot through the
// installed Provider, failing with an Initialization error when none is
// installed.
func fromProvider[T any](s *Simulator, nodeName, slot string, build func(Provider) (T, error)) (T, error) {
	var zero T
	if s.provider == nil {
		return zero, failure.New(failure.Initialization,
			fmt.Sprintf("node %s: %s kind requires an external provider and none is installed", nodeName, slot))
	}
	v, err := build(s.provider)
	if err != nil {
		return zero, failure.Wrap(failure.Initialization, fmt.Sprintf("provider %s for node %s", slot, nodeName), err)
	}
	return v, nil
}

// ChannelDelay returns the configured reception delay for topic, so a
// Provider publishing into the broker need not duplicate the config.
func (s *Simulator) ChannelDelay(topic string) simtime.Time {
	return s.channelDelays[topic]
}

// Run executes every node's loop to the configured deadline and returns
// once all nodes have terminated, with the errors of any failed nodes.
func (s *Simulator) Run(ctx context.Context) error {
	if s.cfg == nil {
		return fmt.Errorf("simulator: Run called in state %s", s.State())
	}
	return s.runTo(ctx, s.cfg.Deadline)
}

// RunUntil drives the simulation to the earlier of until and the
// configured deadline, leaving the simulator Stopped and resumable.
func (s *Simulator) RunUntil(ctx context.Context, until simtime.Time) error {
	if s.cfg == nil {
		return fmt.Errorf("simulator: Run called in state %s", s.State())
	}
	if simtime.Less(s.cfg.Deadline, until) {
		until = s.cfg.Deadline
	}
	return s.runTo(ctx, until)
}

// Step advances the simulation by dt from the last stop point and
// pauses.
func (s *Simulator) Step(ctx context.Context, dt simtime.Time) error {
	s.stateMu.Lock()
	target := simtime.Add(s.now, dt)
	s.stateMu.Unlock()
	return s.RunUntil(ctx, target)
}

func (s *Simulator) runTo(ctx context.Context, until simtime.Time) error {
	s.stateMu.Lock()
	if s.state != StateConfigured && s.state != StateStopped {
		st := s.state
		s.stateMu.Unlock()
		return fmt.Errorf("simulator: Run called in state %s", st)
	}
	if !simtime.Less(s.now, until) {
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.stateMu.Unlock()
	defer cancel()

	if s.trace == nil && (s.cfg.Results.TracePath != "" || s.cfg.Results.ReportPath != "") {
		s.trace = traceexport.NewCollector()
	}

	// Each node already folds its configured channel inboxes and any
	// Provider-attached service servers into its own NextTimeStep/Tick,
	// so the Runner needs no extra Sources here.
	runners := make([]*scheduler.Runner, 0, len(s.nodes))
	for _, n := range s.nodes {
		runners = append(runners, &scheduler.Runner{
			Node:     n,
			Scenario: s.scenario,
			Deadline: until,
			Trace:    s.trace,
		})
	}

	// A single dedicated goroutine drains provider callbacks while node
	// goroutines run, so a Scripted module's host runtime never blocks a
	// node loop.
	pumpDone := make(chan struct{})
	if s.provider != nil {
		go func() {
			for {
				select {
				case <-pumpDone:
					return
				default:
					s.provider.CheckRequests()
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	var result *multierror.Error
	if err := scheduler.RunAll(runCtx, runners); err != nil {
		result = multierror.Append(result, err)
	}
	if s.provider != nil {
		close(pumpDone)
		s.provider.CheckRequests()
	}

	s.stateMu.Lock()
	s.cancelRun = nil
	s.state = StateStopped
	s.now = until
	s.stateMu.Unlock()
	return result.ErrorOrNil()
}

// TraceEvents returns the timing-profile events collected so far, empty
// unless the config names a trace or report path.
func (s *Simulator) TraceEvents() []traceexport.Event {
	if s.trace == nil {
		return nil
	}
	return s.trace.Events()
}

// Stop signals every running node's loop to finish its current activity
// and exit. It does not wait: the running Run call moves the simulator to
// Stopped once every node has unwound. Run's caller observes this as a
// normal (nil-error) return once every node has unwound, since
// cancellation is not itself a failure.
func (s *Simulator) Stop() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StateRunning && s.cancelRun != nil {
		s.cancelRun()
	}
}

// Reset reloads the stored configuration, rebuilding every node from the
// same seed for a deterministic rerun.
func (s *Simulator) Reset() error {
	if s.cfg == nil {
		return fmt.Errorf("simulator: Reset called before Load")
	}
	return s.Load(s.cfg)
}

// State returns the façade's current lifecycle state.
func (s *Simulator) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// GetRecords builds the result Document from every node's accumulated
// records. Valid once the simulator has Stopped.
func (s *Simulator) GetRecords() (*record.Document, error) {
	doc := record.NewDocument(s.cfg.Seed)
	s.stateMu.Lock()
	doc.SimulatorMeta.EndedAt = s.now
	s.stateMu.Unlock()
	for name, n := range s.nodes {
		entries, err := record.Flatten(n.Records())
		if err != nil {
			return nil, err
		}
		doc.AddNode(name, record.NodeRecords{"node": entries})
	}
	s.stateMu.Lock()
	s.state = StateFinalised
	s.stateMu.Unlock()
	return doc, nil
}
