package controlbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kanata-switcher/kanata-focusd/internal/rules"
	"github.com/kanata-switcher/kanata-focusd/internal/statusbus"
)

// newTestService builds a Service with no live D-Bus connection, exercising
// only the command-channel plumbing the exported methods drive. Connecting
// to a real session bus is integration-tested manually; sandboxed test
// environments typically have none available.
func newTestService() *Service {
	return &Service{
		commands: make(chan Command, 16),
		broker:   statusbus.NewBroker[Status](),
	}
}

func TestService_WindowFocus_EnqueuesCommand(t *testing.T) {
	s := newTestService()

	derr := s.WindowFocus("firefox", "Cat Video")
	require.Nil(t, derr)

	select {
	case cmd := <-s.Commands():
		require.Equal(t, CmdWindowFocus, cmd.Kind)
		require.Equal(t, rules.FocusEvent{WindowClass: "firefox", WindowTitle: "Cat Video"}, cmd.Event)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestService_PauseUnpauseRestart_EnqueueCommands(t *testing.T) {
	s := newTestService()

	require.Nil(t, s.Pause())
	require.Equal(t, CmdPause, (<-s.Commands()).Kind)

	require.Nil(t, s.Unpause())
	require.Equal(t, CmdUnpause, (<-s.Commands()).Kind)

	require.Nil(t, s.Restart())
	require.Equal(t, CmdRestart, (<-s.Commands()).Kind)
}

func TestService_GetStatus_RoundTripsThroughReplyChannel(t *testing.T) {
	s := newTestService()

	go func() {
		cmd := <-s.Commands()
		require.Equal(t, CmdGetStatus, cmd.Kind)
		cmd.Reply <- Reply{Status: Status{Layer: "browser", Vks: []string{"vkB"}, Source: SourceFocus}}
	}()

	layer, vks, source, derr := s.GetStatus()
	require.Nil(t, derr)
	require.Equal(t, "browser", layer)
	require.Equal(t, []string{"vkB"}, vks)
	require.Equal(t, "focus", source)
}

func TestService_GetPaused_RoundTripsThroughReplyChannel(t *testing.T) {
	s := newTestService()

	go func() {
		cmd := <-s.Commands()
		require.Equal(t, CmdGetPaused, cmd.Kind)
		cmd.Reply <- Reply{Paused: true}
	}()

	paused, derr := s.GetPaused()
	require.Nil(t, derr)
	require.True(t, paused)
}

func TestService_BroadcastStatus_PublishesOnBroker(t *testing.T) {
	s := newTestService()
	ctx := t.Context()
	sub := s.broker.Subscribe(ctx)

	s.BroadcastStatus(Status{Layer: "qwerty", Source: SourceExternal})

	select {
	case ev := <-sub:
		require.Equal(t, "qwerty", ev.Payload.Layer)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}
