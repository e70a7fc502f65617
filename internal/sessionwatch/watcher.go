// Package sessionwatch watches the Active property of the user's graphical
// logind session on the system bus and turns its transitions into
// native-terminal-entered / native-terminal-left pseudo-focus events.
package sessionwatch

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/kanata-switcher/kanata-focusd/internal/logging"
)

const (
	login1Service        = "org.freedesktop.login1"
	login1ManagerPath    = dbus.ObjectPath("/org/freedesktop/login1")
	login1ManagerIface   = "org.freedesktop.login1.Manager"
	login1SessionIface   = "org.freedesktop.login1.Session"
	login1UserIface      = "org.freedesktop.login1.User"
	propertiesIface      = "org.freedesktop.DBus.Properties"
	propertiesChangedSig = propertiesIface + ".PropertiesChanged"
)

// Event is a native-terminal transition.
type Event int

const (
	// NativeTerminalEntered fires when Active becomes false: the session's
	// graphical seat lost the console to a native (non-GUI) TTY.
	NativeTerminalEntered Event = iota
	// NativeTerminalLeft fires when Active becomes true again.
	NativeTerminalLeft
)

func (e Event) String() string {
	if e == NativeTerminalEntered {
		return "native-terminal-entered"
	}
	return "native-terminal-left"
}

// Watcher watches one logind session's Active property.
type Watcher struct {
	conn        *dbus.Conn
	sessionPath dbus.ObjectPath
	events      chan Event
	active      bool
}

// Connect resolves the current user's graphical session and starts
// watching it. If the system bus is unreachable or the session cannot be
// resolved, it returns an error — per §4.5 the caller should log once at
// WARN and proceed as if Active is always true.
func Connect() (*Watcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("sessionwatch: connect system bus: %w", err)
	}

	path, err := resolveSessionPath(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sessionwatch: resolve session: %w", err)
	}

	w := &Watcher{
		conn:        conn,
		sessionPath: path,
		events:      make(chan Event, 4),
		active:      true,
	}

	if active, err := w.queryActive(); err == nil {
		w.active = active
	} else {
		logging.Warn(logging.CatSession, "initial Active query failed, assuming active", "error", err.Error())
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sessionwatch: add match: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	logging.SafeGo("sessionwatch-signal-loop", func() { w.signalLoop(signals) })

	return w, nil
}

// Events returns the channel of native-terminal transitions.
func (w *Watcher) Events() <-chan Event { return w.events }

// Close stops watching and closes the bus connection.
func (w *Watcher) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}

func (w *Watcher) signalLoop(signals chan *dbus.Signal) {
	for sig := range signals {
		if sig.Name != propertiesChangedSig || sig.Path != w.sessionPath {
			continue
		}
		if len(sig.Body) < 2 {
			continue
		}
		iface, _ := sig.Body[0].(string)
		if iface != login1SessionIface {
			continue
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			continue
		}
		v, ok := changed["Active"]
		if !ok {
			continue
		}
		active, err := decodeBool(v)
		if err != nil {
			logging.Warn(logging.CatSession, "failed to decode Active property", "error", err.Error())
			continue
		}
		w.setActive(active)
	}
}

func (w *Watcher) setActive(active bool) {
	if active == w.active {
		return
	}
	w.active = active
	var ev Event
	if active {
		ev = NativeTerminalLeft
	} else {
		ev = NativeTerminalEntered
	}
	select {
	case w.events <- ev:
	default:
		logging.Warn(logging.CatSession, "native-terminal event dropped: listener not keeping up")
	}
}

func (w *Watcher) queryActive() (bool, error) {
	obj := w.conn.Object(login1Service, w.sessionPath)
	var v dbus.Variant
	if err := obj.Call(propertiesIface+".Get", 0, login1SessionIface, "Active").Store(&v); err != nil {
		return false, err
	}
	return decodeBool(v)
}

// resolveSessionPath implements the §4.5 resolution order: XDG_SESSION_ID,
// then GetSessionByPID, then GetUserByPID + the user's Display property.
func resolveSessionPath(conn *dbus.Conn) (dbus.ObjectPath, error) {
	manager := conn.Object(login1Service, login1ManagerPath)

	if id := os.Getenv("XDG_SESSION_ID"); id != "" {
		var path dbus.ObjectPath
		if err := manager.Call(login1ManagerIface+".GetSession", 0, id).Store(&path); err == nil && path != "" {
			return path, nil
		}
	}

	var path dbus.ObjectPath
	if err := manager.Call(login1ManagerIface+".GetSessionByPID", 0, uint32(os.Getpid())).Store(&path); err == nil && path != "" {
		return path, nil
	}

	var userPath dbus.ObjectPath
	if err := manager.Call(login1ManagerIface+".GetUserByPID", 0, uint32(os.Getuid())).Store(&userPath); err != nil {
		return "", fmt.Errorf("no session for pid and GetUserByPID failed: %w", err)
	}

	userObj := conn.Object(login1Service, userPath)
	var display dbus.Variant
	if err := userObj.Call(propertiesIface+".Get", 0, login1UserIface, "Display").Store(&display); err != nil {
		return "", fmt.Errorf("reading user Display property: %w", err)
	}
	return decodeSessionPath(display)
}

// decodeBool tolerates the property value arriving wrapped in a variant or
// not; Properties.Get always returns a variant in practice but defensive
// unwrapping costs nothing.
func decodeBool(v dbus.Variant) (bool, error) {
	switch val := v.Value().(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return false, fmt.Errorf("unparseable bool string %q", val)
		}
		return b, nil
	default:
		return false, fmt.Errorf("unexpected Active value type %T", val)
	}
}

// decodeSessionPath tolerates Display being returned as an object path, a
// bare string, a variant wrapping either, or a struct whose first decodable
// field is one of those (such as the (sessionID, objectPath) pair logind
// documents for User.Display).
func decodeSessionPath(v dbus.Variant) (dbus.ObjectPath, error) {
	return decodeSessionPathValue(v.Value())
}

func decodeSessionPathValue(value any) (dbus.ObjectPath, error) {
	switch val := value.(type) {
	case dbus.ObjectPath:
		return val, nil
	case string:
		if !strings.HasPrefix(val, "/") {
			return "", fmt.Errorf("string value %q does not look like an object path", val)
		}
		return dbus.ObjectPath(val), nil
	case dbus.Variant:
		return decodeSessionPathValue(val.Value())
	case []any:
		for _, elem := range val {
			if path, err := decodeSessionPathValue(elem); err == nil && path != "" {
				return path, nil
			}
		}
		return "", fmt.Errorf("no decodable session path in struct %v", val)
	default:
		return "", fmt.Errorf("unexpected Display value type %T", val)
	}
}
