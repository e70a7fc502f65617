// Package supervisor runs the single reducer event loop that owns all
// daemon state: it fans focus events, session transitions, control
// requests and Kanata layer-change notifications through one goroutine so
// every state mutation is strictly serialized, per the concurrency model.
package supervisor

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kanata-switcher/kanata-focusd/internal/backend"
	"github.com/kanata-switcher/kanata-focusd/internal/controlbus"
	"github.com/kanata-switcher/kanata-focusd/internal/kanata"
	"github.com/kanata-switcher/kanata-focusd/internal/logging"
	"github.com/kanata-switcher/kanata-focusd/internal/reducer"
	"github.com/kanata-switcher/kanata-focusd/internal/rules"
	"github.com/kanata-switcher/kanata-focusd/internal/selfexec"
	"github.com/kanata-switcher/kanata-focusd/internal/sessionwatch"
)

// tracer emits spans around plan application. It reads whatever
// TracerProvider internal/tracing.Provider installed globally (otel.Tracer
// falls back to a no-op implementation when no provider was ever set, so
// this is safe whether or not tracing is enabled).
var tracer = otel.Tracer("github.com/kanata-switcher/kanata-focusd/internal/supervisor")

// Supervisor is the daemon's single reducer task.
type Supervisor struct {
	ruleSet *rules.Set
	matcher *rules.CachedMatcher
	client  KanataClient
	control ControlBus
	session SessionWatcher // nil if unavailable
	adapter backend.Adapter

	paused            bool
	lastStatus        controlbus.Status
	focusStatus       controlbus.Status
	currentManagedVks []string
	currentFocus      rules.FocusEvent
	nativeTTY         bool
	deferredDefault   bool // a ChangeLayer("") placeholder is waiting on defaultLayer capture

	shutdownOnce sync.Once
	reExec       func() error // overridable in tests; defaults to selfexec.ReExec
}

// New builds a Supervisor. session may be nil.
func New(ruleSet *rules.Set, client KanataClient, control ControlBus, session SessionWatcher, adapter backend.Adapter) *Supervisor {
	return &Supervisor{
		ruleSet: ruleSet,
		matcher: rules.NewCachedMatcher(ruleSet),
		client:  client,
		control: control,
		session: session,
		adapter: adapter,
		reExec:  selfexec.ReExec,
	}
}

// Run drives the event loop until ctx is cancelled. It recovers no panics
// itself — callers launch it via logging.SafeGo so a panic is logged and
// re-raised after this method's deferred shutdown-reset has run.
func (s *Supervisor) Run(ctx context.Context) {
	defer s.shutdown()

	s.adapter.RefreshFocus()

	var sessionEvents <-chan sessionwatch.Event
	if s.session != nil {
		sessionEvents = s.session.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-s.adapter.Events():
			if !ok {
				continue
			}
			s.onFocusEvent(ev)

		case ev, ok := <-sessionEvents:
			if !ok {
				continue
			}
			s.onSessionEvent(ev)

		case cmd, ok := <-s.control.Commands():
			if !ok {
				continue
			}
			if s.onCommand(cmd) {
				return
			}

		case lc, ok := <-s.client.Events():
			if !ok {
				continue
			}
			s.onLayerChange(lc)
		}
	}
}

func (s *Supervisor) resolveDefaultLayer() string {
	if s.ruleSet.HasDefaultRule() {
		return s.ruleSet.DefaultLayer()
	}
	if layer, known := s.client.DefaultLayer(); known {
		return layer
	}
	return ""
}

func (s *Supervisor) onFocusEvent(event rules.FocusEvent) {
	s.currentFocus = event
	if s.paused {
		return
	}
	if s.nativeTTY {
		return
	}
	plan := s.matcher.Match(s.ruleSet, event, false, s.resolveDefaultLayer())
	s.applyPlan(plan, controlbus.SourceFocus, true)
}

func (s *Supervisor) onSessionEvent(ev sessionwatch.Event) {
	switch ev {
	case sessionwatch.NativeTerminalEntered:
		s.nativeTTY = true
		plan := s.matcher.Match(s.ruleSet, s.currentFocus, true, s.resolveDefaultLayer())
		s.applyPlan(plan, controlbus.SourceFocus, true)
	case sessionwatch.NativeTerminalLeft:
		s.nativeTTY = false
		s.adapter.RefreshFocus()
	}
}

// onCommand processes one control request and reports whether Run must now
// return. Only CmdRestart ever requests that: by the time doRestart
// returns, shutdown has already run once (either re-exec never returned
// because it succeeded, or it failed and the old process image is still
// running but its resources are already torn down) — either way, looping
// back into select with adapter/control/session already closed would spin
// forever on their now-always-ready closed channels.
func (s *Supervisor) onCommand(cmd controlbus.Command) (stop bool) {
	switch cmd.Kind {
	case controlbus.CmdWindowFocus:
		s.onFocusEvent(cmd.Event)
	case controlbus.CmdPause:
		s.doPause()
	case controlbus.CmdUnpause:
		s.doUnpause()
	case controlbus.CmdRestart:
		s.doRestart()
		return true
	case controlbus.CmdGetStatus:
		cmd.Reply <- controlbus.Reply{Status: s.lastStatus}
	case controlbus.CmdGetPaused:
		cmd.Reply <- controlbus.Reply{Paused: s.paused}
	}
	return false
}

func (s *Supervisor) doPause() {
	s.paused = true
	plan := rules.FocusActions{rules.ChangeLayer(s.resolveDefaultLayer())}
	s.applyPlan(plan, controlbus.SourceFocus, true)
	s.control.BroadcastPaused(true)
}

func (s *Supervisor) doUnpause() {
	s.paused = false
	s.control.BroadcastPaused(false)
	s.adapter.RefreshFocus()
}

// doRestart releases every resource Run's deferred shutdown would
// otherwise release (shutdown is idempotent via sync.Once, so that later
// deferred call is a no-op), then attempts to replace the process image.
// On success this goroutine never resumes. On failure the error is logged
// and control returns to onCommand/Run, which must treat CmdRestart as a
// terminal command regardless of outcome — the alternative is looping back
// into select with every fan-in channel (adapter, session, control) already
// closed, which busy-spins the `ok == false` cases forever.
func (s *Supervisor) doRestart() {
	logging.Info(logging.CatSupervisor, "restart requested")
	s.shutdown()
	if err := s.reExec(); err != nil {
		logging.ErrorErr(logging.CatSupervisor, "self re-exec failed, daemon is exiting instead", err)
	}
}

func (s *Supervisor) onLayerChange(lc kanata.LayerChange) {
	if lc.DefaultCapture {
		if s.deferredDefault {
			s.deferredDefault = false
			plan := rules.FocusActions{rules.ChangeLayer(lc.Layer)}
			s.applyPlan(plan, controlbus.SourceFocus, true)
		}
		return
	}
	if s.paused {
		return
	}
	if lc.Layer == s.lastStatus.Layer {
		return
	}
	s.lastStatus = controlbus.Status{Layer: lc.Layer, Vks: s.currentManagedVks, Source: controlbus.SourceExternal}
	s.control.BroadcastStatus(s.lastStatus)
}

// applyPlan reduces plan against currentManagedVks, dispatches the
// resulting wire actions (deferring any unresolved default-layer
// placeholder), updates status, and force-broadcasts StatusChanged.
func (s *Supervisor) applyPlan(plan rules.FocusActions, source controlbus.Source, isFocusDriven bool) {
	_, span := tracer.Start(context.Background(), "supervisor.applyPlan",
		trace.WithAttributes(
			attribute.Int("plan.entries", len(plan)),
			attribute.String("status.source", string(source)),
		))
	defer span.End()

	wire, next := reducer.Reduce(s.currentManagedVks, plan)
	s.dispatchWire(wire)
	s.currentManagedVks = next

	status := controlbus.Status{
		Layer:  planLayer(plan, s.lastStatus.Layer),
		Vks:    next,
		Source: source,
	}
	s.lastStatus = status
	if isFocusDriven {
		s.focusStatus = status
	}
	s.control.BroadcastStatus(status)
}

// dispatchWire sends every action except an unresolved default-layer
// placeholder (ChangeLayer("") while defaultLayer is still unknown), which
// it defers until a LayerChange capture resolves it.
func (s *Supervisor) dispatchWire(actions []reducer.WireAction) {
	var toSend []reducer.WireAction
	for _, a := range actions {
		if a.Kind == reducer.WireChangeLayer && a.Layer == "" {
			s.deferredDefault = true
			continue
		}
		toSend = append(toSend, a)
	}
	if len(toSend) > 0 {
		s.client.Apply(toSend)
	}
}

// shutdown releases the client/session/adapter/control resources exactly
// once, however many times it's called: doRestart calls it eagerly (so the
// old process releases its bus name and socket before handing off to the
// re-exec'd one), and Run's own deferred call must then be a no-op rather
// than double-closing the same channels.
func (s *Supervisor) shutdown() {
	s.shutdownOnce.Do(func() {
		s.client.Shutdown(s.currentManagedVks)
		if s.session != nil {
			_ = s.session.Close()
		}
		_ = s.adapter.Close()
		_ = s.control.Close()
	})
}

// planLayer returns the last ChangeLayer entry's target in plan — the one
// actually observable at the Kanata side — or fallback if plan carries no
// ChangeLayer at all.
func planLayer(plan rules.FocusActions, fallback string) string {
	layer := fallback
	for _, e := range plan {
		if e.Kind == rules.EntryChangeLayer {
			layer = e.Layer
		}
	}
	return layer
}
