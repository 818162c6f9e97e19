package simulator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

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
	"github.com/mescourrou/simkernel/pkg/sensors"
	"github.com/mescourrou/simkernel/pkg/service"
	"github.com/mescourrou/simkernel/pkg/simtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneNodeYAML = `
seed: 42
deadline: 2.0
nodes:
  - name: robot1
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 0.1
    sensors:
      kind: Internal
    estimator:
      kind: Internal
    navigator:
      kind: Internal
      go_to_point:
        target_x: 10
        target_y: 0
    controller:
      kind: Internal
      differential_drive:
        max_speed: 1.0
        bearing_gain: 1.0
        range_gain: 0.5
        wheel_separation: 0.5
scenario: []
`

func loadSim(t *testing.T) *Simulator {
	t.Helper()
	cfg, err := config.LoadBytes([]byte(oneNodeYAML))
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Load(cfg))
	return s
}

func TestLoadTransitionsToConfigured(t *testing.T) {
	s := loadSim(t)
	assert.Equal(t, StateConfigured, s.State())
}

func TestRunMovesNodeAndStops(t *testing.T) {
	s := loadSim(t)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, StateStopped, s.State())
	assert.Greater(t, s.nodes["robot1"].Physics.State().X, 0.0)
}

func TestGetRecordsIncludesEveryNode(t *testing.T) {
	s := loadSim(t)
	require.NoError(t, s.Run(context.Background()))

	doc, err := s.GetRecords()
	require.NoError(t, err)
	assert.Contains(t, doc.PerNode, "robot1")
	assert.Equal(t, StateFinalised, s.State())
}

func TestResetRebuildsDeterministically(t *testing.T) {
	s := loadSim(t)
	require.NoError(t, s.Run(context.Background()))
	doc1, err := s.GetRecords()
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	require.NoError(t, s.Run(context.Background()))
	doc2, err := s.GetRecords()
	require.NoError(t, err)

	assert.Equal(t, doc1.PerNode["robot1"], doc2.PerNode["robot1"])
}

func TestStopCancelsRunningSimulation(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
seed: 1
deadline: 1000000.0
nodes:
  - name: robot1
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 0.001
scenario: []
`))
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Load(cfg))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, StateStopped, s.State())
}

func TestRunRejectsWrongState(t *testing.T) {
	s := New()
	err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestGetRecordsAccumulatesOneEntryPerTick(t *testing.T) {
	s := loadSim(t)
	require.NoError(t, s.Run(context.Background()))

	doc, err := s.GetRecords()
	require.NoError(t, err)
	entries := doc.PerNode["robot1"]["node"]
	assert.Greater(t, len(entries), 1, "physics time_step=0.1 over deadline=2.0 should yield multiple records")
}

func TestStepAdvancesInIncrements(t *testing.T) {
	s := loadSim(t)
	require.NoError(t, s.Step(context.Background(), 1.0))
	assert.Equal(t, StateStopped, s.State())

	partial := s.nodes["robot1"].Records().Snapshot()
	require.NotEmpty(t, partial)
	last := partial[len(partial)-1].At
	assert.True(t, simtime.LessOrEqual(last, 1.0))

	require.NoError(t, s.Step(context.Background(), 1.0))
	stepped := s.nodes["robot1"].Records().Snapshot()
	assert.Greater(t, len(stepped), len(partial))
}

func TestStepThenRunMatchesFreshRun(t *testing.T) {
	stepped := loadSim(t)
	require.NoError(t, stepped.Step(context.Background(), 1.0))
	require.NoError(t, stepped.Run(context.Background()))
	steppedDoc, err := stepped.GetRecords()
	require.NoError(t, err)

	fresh := loadSim(t)
	require.NoError(t, fresh.Run(context.Background()))
	freshDoc, err := fresh.GetRecords()
	require.NoError(t, err)

	assert.Equal(t, freshDoc.PerNode["robot1"], steppedDoc.PerNode["robot1"])
}

func TestRegisterServiceExposesEndpointToRegistry(t *testing.T) {
	s := loadSim(t)

	ep := service.NewEndpoint[struct{}, int]("echo")
	srv := service.NewServer(ep, func(now simtime.Time, _ struct{}) (int, error) { return 1, nil })
	require.NoError(t, s.RegisterService("robot1", "echo", srv))
	assert.NoError(t, s.Services().Resolve("echo"))
}

func TestCallRealStateAnsweredByRunningNodeLoop(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
seed: 1
deadline: 1000000.0
nodes:
  - name: a
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 0.001
  - name: b
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        initial:
          x: 3
        time_step: 0.001
scenario: []
`))
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Load(cfg))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	call, err := s.CallRealState("b", 0.5, 100.0)
	require.NoError(t, err)

	var resp physics.State
	var callErr error
	answered := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if resp, callErr, answered = call.TryResultAt(0.5); answered {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, answered, "b's loop never served the request")
	require.NoError(t, callErr)
	assert.InDelta(t, 3.0, resp.X, 1e-9)

	s.Stop()
	require.NoError(t, <-done)
}

func TestCallRealStateOnUnknownNodeFailsWithNoSuchEndpoint(t *testing.T) {
	s := loadSim(t)

	_, err := s.CallRealState("Z", 0, 0.1)
	require.Error(t, err)
	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, failure.ServiceNoSuchEndpoint, fe.Kind)

	// The failed resolution must not poison the run itself; records are
	// still flushed afterwards.
	require.NoError(t, s.Run(context.Background()))
	doc, gerr := s.GetRecords()
	require.NoError(t, gerr)
	assert.Contains(t, doc.PerNode, "robot1")
}

func TestCallRealStateTimesOutWhenServerIsKilled(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
seed: 1
deadline: 2.0
nodes:
  - name: a
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 0.1
  - name: b
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 0.1
scenario:
  - at: 0.05
    kind: Kill
    node: b
`))
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Load(cfg))

	call, err := s.CallRealState("b", 1.0, 1.1)
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))

	_, callErr, answered := call.TryResultAt(1.2)
	require.True(t, answered)
	var fe *failure.Error
	require.ErrorAs(t, callErr, &fe)
	assert.Equal(t, failure.ServiceTimeout, fe.Kind)
}

func TestExternalKindWithoutProviderFailsLoad(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
seed: 1
deadline: 1.0
nodes:
  - name: robot1
    physics:
      kind: External
scenario: []
`))
	require.NoError(t, err)

	s := New()
	err = s.Load(cfg)
	require.Error(t, err)
	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, failure.Initialization, fe.Kind)
}

// stubProvider supplies a fixed physics body for External kinds and counts
// CheckRequests pump invocations.
type stubProvider struct {
	pumped atomic.Int64
}

func (p *stubProvider) Physics(cfg physics.Config, _ *config.SimulatorConfig, _ *randvar.Factory, _ *broker.Broker, _ simtime.Time) (physics.Physics, error) {
	return physics.NewUnicycle(physics.UnicycleConfig{WheelSeparation: 0.5, TimeStep: 0.1}, 0), nil
}

func (p *stubProvider) SensorManager(cfg sensors.Config, _ *config.SimulatorConfig, _ *randvar.Factory, _ *broker.Broker, _ simtime.Time) (sensors.SensorManager, error) {
	return nil, nil
}

func (p *stubProvider) StateEstimator(cfg estimator.Config, _ *config.SimulatorConfig, _ *randvar.Factory, _ *broker.Broker, _ simtime.Time) (estimator.StateEstimator, error) {
	return nil, nil
}

func (p *stubProvider) Navigator(cfg navigator.Config, _ *config.SimulatorConfig, _ *randvar.Factory, _ *broker.Broker, _ simtime.Time) (navigator.Navigator, error) {
	return nil, nil
}

func (p *stubProvider) Controller(cfg controller.Config, _ *config.SimulatorConfig, _ *randvar.Factory, _ *broker.Broker, _ simtime.Time) (controller.Controller, error) {
	return nil, nil
}

func (p *stubProvider) MessageHandlers(n *node.Node) ([]handler.MessageHandler, error) {
	return nil, nil
}

func (p *stubProvider) CheckRequests() { p.pumped.Add(1) }

func TestProviderSuppliesExternalPhysics(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
seed: 1
deadline: 1.0
nodes:
  - name: robot1
    physics:
      kind: External
scenario: []
`))
	require.NoError(t, err)

	p := &stubProvider{}
	s := New()
	s.SetProvider(p)
	require.NoError(t, s.Load(cfg))
	require.NoError(t, s.Run(context.Background()))

	assert.Greater(t, p.pumped.Load(), int64(0), "CheckRequests pump should run during the simulation")
}

func TestTraceEventsCollectedWhenConfigured(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(`
seed: 1
deadline: 1.0
nodes:
  - name: robot1
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 0.1
scenario: []
results:
  trace_path: /tmp/ignored-trace.json
`))
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Load(cfg))
	require.NoError(t, s.Run(context.Background()))

	events := s.TraceEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, "tick", events[0].Name)
	assert.Equal(t, "robot1", events[0].Thread)
}

const twoNodeChannelYAML = `
seed: 7
deadline: 5.0
nodes:
  - name: base
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 1.0
    channels: []
  - name: listener
    physics:
      kind: Internal
      unicycle:
        wheel_separation: 0.5
        time_step: 1.0
    channels:
      - topic: /chat
        reception_delay: 0.5
scenario: []
`

func TestChannelConfigSubscribesNodeToBrokerTopic(t *testing.T) {
	cfg, err := config.LoadBytes([]byte(twoNodeChannelYAML))
	require.NoError(t, err)

	s := New()
	require.NoError(t, s.Load(cfg))

	assert.True(t, cfg.Nodes[1].Channels[0].ReceptionDelay == s.ChannelDelay("/chat"))

	topic := broker.GetTopic[any, any](s.Broker(), "/chat")
	topic.Publish("base", nil, "hello", 1.0, s.ChannelDelay("/chat"), nil)

	require.NoError(t, s.Run(context.Background()))

	doc, err := s.GetRecords()
	require.NoError(t, err)
	assert.Contains(t, doc.PerNode, "listener")
}
