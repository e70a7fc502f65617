package supervisor

import (
	"github.com/kanata-switcher/kanata-focusd/internal/controlbus"
	"github.com/kanata-switcher/kanata-focusd/internal/kanata"
	"github.com/kanata-switcher/kanata-focusd/internal/reducer"
	"github.com/kanata-switcher/kanata-focusd/internal/sessionwatch"
)

// KanataClient is the subset of *kanata.Client the supervisor depends on,
// narrowed to an interface so tests can drive the reducer loop without a
// real TCP connection.
type KanataClient interface {
	Apply(actions []reducer.WireAction)
	Shutdown(managedVks []string)
	Events() <-chan kanata.LayerChange
	DefaultLayer() (string, bool)
}

// ControlBus is the subset of *controlbus.Service the supervisor depends
// on.
type ControlBus interface {
	Commands() <-chan controlbus.Command
	BroadcastStatus(status controlbus.Status)
	BroadcastPaused(paused bool)
	Close() error
}

// SessionWatcher is the subset of *sessionwatch.Watcher the supervisor
// depends on. A nil SessionWatcher is valid: §4.5 requires the daemon to
// run as if Active is always true when the watcher could not start.
type SessionWatcher interface {
	Events() <-chan sessionwatch.Event
	Close() error
}
