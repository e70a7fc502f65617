// Package controlbus exposes the daemon's control surface and status feed
// on the D-Bus session bus, under the well-known name
// com.github.kanata.Switcher, and serializes every inbound request through
// a single command channel so the supervisor's one reducer task can
// process them in the order they arrive relative to focus events.
package controlbus

import "github.com/kanata-switcher/kanata-focusd/internal/rules"

const (
	BusName       = "com.github.kanata.Switcher"
	ObjectPath    = "/com/github/kanata/Switcher"
	InterfaceName = "com.github.kanata.Switcher"
)

// Source identifies why Status.Layer currently holds its value.
type Source string

const (
	SourceFocus    Source = "focus"
	SourceExternal Source = "external"
)

// Status mirrors SupervisorState.lastStatus: the layer/vks/source triple
// indicators display.
type Status struct {
	Layer  string
	Vks    []string
	Source Source
}

// CommandKind tags the variant of a Command arriving from a D-Bus method
// call.
type CommandKind int

const (
	CmdWindowFocus CommandKind = iota
	CmdPause
	CmdUnpause
	CmdRestart
	CmdGetStatus
	CmdGetPaused
)

// Reply carries the synchronous answer to a read-only command.
type Reply struct {
	Status Status
	Paused bool
}

// Command is one serialized request handed to the supervisor. Reply is
// non-nil only for CmdGetStatus/CmdGetPaused, which block the D-Bus caller
// until the supervisor's reducer task actually answers — guaranteeing the
// "a control request observes prior focus events' effects" ordering
// contract.
type Command struct {
	Kind  CommandKind
	Event rules.FocusEvent // populated for CmdWindowFocus
	Reply chan Reply
}
