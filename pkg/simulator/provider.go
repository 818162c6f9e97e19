// provider.go defines the external plugin interface: a Provider supplies
// the External/Scripted implementations of every module slot, constructed
// against the same shared factory and broker the Internal modules use.
// Scripted providers typically bridge each call through an rfc.Pair
// drained by their own pump goroutine; CheckRequests is that pump's hook,
// invoked repeatedly while a run is in flight.
package simulator

import (
	"github.com/mescourrou/simkernel/pkg/broker"
	"github.com/mescourrou/simkernel/pkg/config"
	"github.com/mescourrou/simkernel/pkg/controller"
	"github.com/mescourrou/simkernel/pkg/estimator"
	"github.com/mescourrou/simkernel/pkg/handler"
	"github.com/mescourrou/simkernel/pkg/navigator"
	"github.com/mescourrou/simkernel/pkg/node"
	"github.com/mescourrou/simkernel/pkg/physics"
	"github.com/mescourrou/simkernel/pkg/randvar"
	"github.com/mescourrou/simkernel/pkg/sensors"
	"github.com/mescourrou/simkernel/pkg/simtime"
)

// Provider instantiates External/Scripted module kinds. Every returned
// module is mutated only by the owning node's goroutine; any
// cross-runtime dispatch happens through a channel pair the provider
// owns.
type Provider interface {
	Physics(cfg physics.Config, global *config.SimulatorConfig, f *randvar.Factory, b *broker.Broker, t0 simtime.Time) (physics.Physics, error)
	SensorManager(cfg sensors.Config, global *config.SimulatorConfig, f *randvar.Factory, b *broker.Broker, t0 simtime.Time) (sensors.SensorManager, error)
	StateEstimator(cfg estimator.Config, global *config.SimulatorConfig, f *randvar.Factory, b *broker.Broker, t0 simtime.Time) (estimator.StateEstimator, error)
	Navigator(cfg navigator.Config, global *config.SimulatorConfig, f *randvar.Factory, b *broker.Broker, t0 simtime.Time) (navigator.Navigator, error)
	Controller(cfg controller.Config, global *config.SimulatorConfig, f *randvar.Factory, b *broker.Broker, t0 simtime.Time) (controller.Controller, error)

	// MessageHandlers returns the handlers the provider wants attached to
	// n; a handler whose Topic matches one of the node's configured
	// channels replaces the default Echo binding for that channel.
	MessageHandlers(n *node.Node) ([]handler.MessageHandler, error)

	// CheckRequests drains any pending cross-runtime callbacks. Called
	// repeatedly from a dedicated pump goroutine while a run is in
	// flight, never from a node's execution goroutine.
	CheckRequests()
}
