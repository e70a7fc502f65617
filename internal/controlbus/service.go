package controlbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/kanata-switcher/kanata-focusd/internal/logging"
	"github.com/kanata-switcher/kanata-focusd/internal/rules"
	"github.com/kanata-switcher/kanata-focusd/internal/statusbus"
)

// Service exports the control interface on an already-connected session
// bus connection and fans every inbound request out as a Command on a
// single channel, so the supervisor's reducer task is the only thing that
// ever mutates daemon state in response to one.
type Service struct {
	conn     *dbus.Conn
	commands chan Command
	broker   *statusbus.Broker[Status]
}

// Connect requests BusName on the session bus and exports the control
// object. The returned Service must have Close called on shutdown.
func Connect() (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("controlbus: connect session bus: %w", err)
	}
	svc, err := newService(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return svc, nil
}

func newService(conn *dbus.Conn) (*Service, error) {
	s := &Service{
		conn:     conn,
		commands: make(chan Command, 16),
		broker:   statusbus.NewBroker[Status](),
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("controlbus: request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("controlbus: bus name already owned by another process")
	}

	if err := conn.Export(s, ObjectPath, InterfaceName); err != nil {
		return nil, fmt.Errorf("controlbus: export: %w", err)
	}
	node := &introspect.Node{
		Name: ObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name: InterfaceName,
				Methods: []introspect.Method{
					{Name: "WindowFocus", Args: []introspect.Arg{
						{Name: "class", Type: "s", Direction: "in"},
						{Name: "title", Type: "s", Direction: "in"},
					}},
					{Name: "GetStatus", Args: []introspect.Arg{
						{Name: "layer", Type: "s", Direction: "out"},
						{Name: "vks", Type: "as", Direction: "out"},
						{Name: "source", Type: "s", Direction: "out"},
					}},
					{Name: "GetPaused", Args: []introspect.Arg{
						{Name: "paused", Type: "b", Direction: "out"},
					}},
					{Name: "Pause"},
					{Name: "Unpause"},
					{Name: "Restart"},
				},
				Signals: []introspect.Signal{
					{Name: "StatusChanged", Args: []introspect.Arg{
						{Name: "layer", Type: "s"},
						{Name: "vks", Type: "as"},
						{Name: "source", Type: "s"},
					}},
					{Name: "PausedChanged", Args: []introspect.Arg{
						{Name: "paused", Type: "b"},
					}},
				},
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("controlbus: export introspection: %w", err)
	}

	return s, nil
}

// Commands returns the channel the supervisor drains to process inbound
// control requests in arrival order.
func (s *Service) Commands() <-chan Command { return s.commands }

// Subscribe returns a feed of every status transition broadcast via
// BroadcastStatus, for consumers that only want to observe state (history
// recording) rather than participate in the command/reply protocol.
func (s *Service) Subscribe(ctx context.Context) <-chan statusbus.Event[Status] {
	return s.broker.Subscribe(ctx)
}

// Close releases the bus name and closes the underlying connection.
func (s *Service) Close() error {
	if s.conn == nil {
		return nil
	}
	_, _ = s.conn.ReleaseName(BusName)
	return s.conn.Close()
}

// BroadcastStatus emits StatusChanged and republishes on the in-process
// broker. It is force-called even when the text is unchanged, per the
// focus-driven force-refresh contract.
func (s *Service) BroadcastStatus(status Status) {
	s.broker.Publish(statusbus.UpdatedEvent, status)
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(ObjectPath, InterfaceName+".StatusChanged", status.Layer, status.Vks, string(status.Source)); err != nil {
		logging.Warn(logging.CatControl, "status signal emit failed", "error", err.Error())
	}
}

// BroadcastPaused emits PausedChanged on pause-state transitions.
func (s *Service) BroadcastPaused(paused bool) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(ObjectPath, InterfaceName+".PausedChanged", paused); err != nil {
		logging.Warn(logging.CatControl, "paused signal emit failed", "error", err.Error())
	}
}

// WindowFocus is the exported D-Bus method backends call to push a focus
// event into the supervisor.
func (s *Service) WindowFocus(class, title string) *dbus.Error {
	s.commands <- Command{Kind: CmdWindowFocus, Event: rules.FocusEvent{WindowClass: class, WindowTitle: title}}
	return nil
}

// GetStatus returns lastStatus, serialized after any already-queued focus
// event.
func (s *Service) GetStatus() (string, []string, string, *dbus.Error) {
	reply := make(chan Reply, 1)
	s.commands <- Command{Kind: CmdGetStatus, Reply: reply}
	r := <-reply
	return r.Status.Layer, r.Status.Vks, string(r.Status.Source), nil
}

// GetPaused returns the pause flag.
func (s *Service) GetPaused() (bool, *dbus.Error) {
	reply := make(chan Reply, 1)
	s.commands <- Command{Kind: CmdGetPaused, Reply: reply}
	r := <-reply
	return r.Paused, nil
}

// Pause requests a pause.
func (s *Service) Pause() *dbus.Error {
	s.commands <- Command{Kind: CmdPause}
	return nil
}

// Unpause requests an unpause.
func (s *Service) Unpause() *dbus.Error {
	s.commands <- Command{Kind: CmdUnpause}
	return nil
}

// Restart requests an orderly shutdown followed by a self re-exec.
func (s *Service) Restart() *dbus.Error {
	s.commands <- Command{Kind: CmdRestart}
	return nil
}
