// Package backend defines the contract every desktop-backend adapter (a
// GNOME Shell extension, a KWin script, a sway/wlroots listener) must
// satisfy to feed the supervisor. Adapters themselves are thin,
// desktop-specific plumbing and live outside this module; this package
// only fixes the shape they're driven through, plus a no-op adapter used by
// the daemon binary and a stub double used in tests.
package backend

import "github.com/kanata-switcher/kanata-focusd/internal/rules"

// Adapter is the contract a desktop-backend integration must satisfy.
// Implementations must not cache "last focus" internally in a way that
// could shadow a genuine query: RefreshFocus always reflects the real
// current active window.
type Adapter interface {
	// Events returns the stream of focus deliveries. rules.FocusEvent{}
	// (the zero value) denotes unfocus.
	Events() <-chan rules.FocusEvent

	// RefreshFocus causes exactly one FocusEvent to be delivered on Events
	// reflecting the window actually focused right now. Used on startup,
	// on unpause, and on native-terminal-left.
	RefreshFocus()

	// Close releases any resources the adapter holds (bus connections,
	// sockets, subprocesses).
	Close() error
}

// Noop satisfies Adapter for the daemon binary itself, which has no
// in-process desktop backend: window focus instead arrives exclusively
// through the control bus's WindowFocus method, pushed by an external
// adapter process. RefreshFocus is a no-op here because there is nothing
// in-process to re-query; the external adapter is responsible for pushing
// a fresh event on its own refresh triggers.
type Noop struct{ events chan rules.FocusEvent }

// NewNoop returns an Adapter that never delivers an event on its own.
func NewNoop() *Noop { return &Noop{events: make(chan rules.FocusEvent)} }

func (n *Noop) Events() <-chan rules.FocusEvent { return n.events }
func (n *Noop) RefreshFocus()                   {}
func (n *Noop) Close() error                    { close(n.events); return nil }

// Stub is a test double satisfying Adapter with fully synchronous,
// caller-driven behavior.
type Stub struct {
	events        chan rules.FocusEvent
	refreshResult rules.FocusEvent
	refreshCount  int
	closed        bool
}

// NewStub builds a Stub whose RefreshFocus delivers refreshResult each
// time it's called.
func NewStub(refreshResult rules.FocusEvent) *Stub {
	return &Stub{
		events:        make(chan rules.FocusEvent, 16),
		refreshResult: refreshResult,
	}
}

func (s *Stub) Events() <-chan rules.FocusEvent { return s.events }

// Push delivers event as if the desktop backend observed a focus change.
func (s *Stub) Push(event rules.FocusEvent) { s.events <- event }

func (s *Stub) RefreshFocus() {
	s.refreshCount++
	s.events <- s.refreshResult
}

// RefreshCount reports how many times RefreshFocus was called.
func (s *Stub) RefreshCount() int { return s.refreshCount }

// SetRefreshResult changes what the next RefreshFocus call delivers.
func (s *Stub) SetRefreshResult(event rules.FocusEvent) { s.refreshResult = event }

func (s *Stub) Close() error {
	s.closed = true
	close(s.events)
	return nil
}

// Closed reports whether Close was called.
func (s *Stub) Closed() bool { return s.closed }
