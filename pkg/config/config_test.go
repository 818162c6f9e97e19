package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
seed: 42
deadline: 10.0
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

func TestLoadBytesParsesValidConfig(t *testing.T) {
	cfg, err := LoadBytes([]byte(validYAML))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Seed)
	require.Len(t, cfg.Nodes, 1)
	assert.Equal(t, "robot1", cfg.Nodes[0].Name)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	bad := validYAML + "\nbogus_field: true\n"
	_, err := LoadBytes([]byte(bad))
	assert.Error(t, err)
}

func TestValidateRejectsEmptyNodeList(t *testing.T) {
	cfg := &SimulatorConfig{Seed: 1, Deadline: 1.0}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsDuplicateNodeNames(t *testing.T) {
	cfg := &SimulatorConfig{
		Seed:     1,
		Deadline: 1.0,
		Nodes:    []NodeConfig{{Name: "a"}, {Name: "a"}},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveDeadline(t *testing.T) {
	cfg := &SimulatorConfig{Seed: 1, Deadline: 0, Nodes: []NodeConfig{{Name: "a"}}}
	assert.Error(t, cfg.Validate())
}

const withChannelsYAML = `
seed: 42
deadline: 10.0
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
    channels:
      - topic: /chat
        reception_delay: 0.25
scenario: []
`

func TestLoadParsesChannelSubscriptions(t *testing.T) {
	cfg, err := LoadBytes([]byte(withChannelsYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Nodes[0].Channels, 1)
	assert.Equal(t, "/chat", cfg.Nodes[0].Channels[0].Topic)
	assert.InDelta(t, 0.25, float64(cfg.Nodes[0].Channels[0].ReceptionDelay), 1e-9)
}

func TestLoadParsesResultPaths(t *testing.T) {
	cfg, err := LoadBytes([]byte(validYAML + `
results:
  path: out/results.json
  trace_path: out/time_performance.json
  report_path: out/time_performance.report.csv
`))
	require.NoError(t, err)
	assert.Equal(t, "out/results.json", cfg.Results.Path)
	assert.Equal(t, "out/time_performance.json", cfg.Results.TracePath)
	assert.Equal(t, "out/time_performance.report.csv", cfg.Results.ReportPath)
}

func TestLoadRejectsSchemaTypeMismatch(t *testing.T) {
	bad := `
seed: not-a-number
deadline: 10.0
nodes:
  - name: robot1
scenario: []
`
	_, err := LoadBytes([]byte(bad))
	assert.Error(t, err)
}

func TestGenerateSchemaHasTopLevelProperties(t *testing.T) {
	schema := GenerateSchema()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "seed")
	assert.Contains(t, props, "nodes")
}
