// Package config implements the simulator configuration tree, its YAML
// decoding, and JSON Schema generation/validation.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mescourrou/simkernel/pkg/controller"
	"github.com/mescourrou/simkernel/pkg/estimator"
	"github.com/mescourrou/simkernel/pkg/failure"
	"github.com/mescourrou/simkernel/pkg/navigator"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/scenario"
	"github.com/mescourrou/simkernel/pkg/sensors"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// NodeConfig is one robot's complete module configuration.
type NodeConfig struct {
	Name       string            `yaml:"name" json:"name"`
	Physics    physics.Config    `yaml:"physics" json:"physics"`
	Sensors    sensors.Config    `yaml:"sensors" json:"sensors"`
	Estimator  estimator.Config  `yaml:"estimator" json:"estimator"`
	Navigator  navigator.Config  `yaml:"navigator" json:"navigator"`
	Controller controller.Config `yaml:"controller" json:"controller"`
	Channels   []ChannelConfig   `yaml:"channels,omitempty" json:"channels,omitempty"`
}

// ChannelConfig subscribes a node's message pipeline to a broker topic.
// Deliveries on the topic go to an Echo handler, which records them,
// unless a Provider supplies a handler claiming the topic. Handler replies
// are not sent back to the sender.
type ChannelConfig struct {
	Topic          string       `yaml:"topic" json:"topic"`
	ReceptionDelay simtime.Time `yaml:"reception_delay,omitempty" json:"reception_delay,omitempty"`
}

// ResultsConfig names the artifacts written at the end of a run: the
// result document, and optionally the Chrome trace-events profile and its
// per-block statistics report. Empty paths disable the corresponding
// artifact; the result document then goes to stdout.
type ResultsConfig struct {
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	TracePath  string `yaml:"trace_path,omitempty" json:"trace_path,omitempty"`
	ReportPath string `yaml:"report_path,omitempty" json:"report_path,omitempty"`
}

// SimulatorConfig is the root configuration document: the deterministic
// seed, the run deadline, every node, the scenario timeline, and the
// result paths.
type SimulatorConfig struct {
	Seed     uint64           `yaml:"seed" json:"seed"`
	Deadline simtime.Time     `yaml:"deadline" json:"deadline"`
	Nodes    []NodeConfig     `yaml:"nodes" json:"nodes"`
	Scenario []scenario.Event `yaml:"scenario" json:"scenario"`
	Results  ResultsConfig    `yaml:"results,omitempty" json:"results,omitempty"`
}

// Load decodes and validates a SimulatorConfig from r. The document is
// first checked against the generated JSON Schema, then strictly decoded:
// unknown fields are rejected.
func Load(r io.Reader) (*SimulatorConfig, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, failure.Wrap(failure.Config, "reading config", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, failure.Wrap(failure.Config, "parsing config", err)
	}
	jsonDoc, err := json.Marshal(doc)
	if err != nil {
		return nil, failure.Wrap(failure.Config, "converting config to JSON", err)
	}
	if err := ValidateDocument(jsonDoc); err != nil {
		return nil, failure.Wrap(failure.Config, "config does not match schema", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var cfg SimulatorConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, failure.Wrap(failure.Config, "decoding config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBytes is a convenience wrapper around Load for in-memory config
// documents (used by tests; `sim run --config` calls Load on the opened
// file).
func LoadBytes(b []byte) (*SimulatorConfig, error) {
	return Load(bytes.NewReader(b))
}

// Validate checks structural invariants beyond what the JSON Schema
// (schema.go) captures: at least one node, unique node names, a positive
// deadline.
func (c *SimulatorConfig) Validate() error {
	if c.Deadline <= 0 {
		return failure.New(failure.Config, "deadline must be positive")
	}
	if len(c.Nodes) == 0 {
		return failure.New(failure.Config, "at least one node is required")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == "" {
			return failure.New(failure.Config, "node name must not be empty")
		}
		if seen[n.Name] {
			return failure.New(failure.Config, fmt.Sprintf("duplicate node name %q", n.Name))
		}
		seen[n.Name] = true
	}
	return nil
}
