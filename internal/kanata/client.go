package kanata

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kanata-switcher/kanata-focusd/internal/logging"
	"github.com/kanata-switcher/kanata-focusd/internal/reducer"
)

// tracer emits spans around wire dispatch; see internal/supervisor's tracer
// doc comment for why an unconfigured otel.Tracer is safe here.
var tracer = otel.Tracer("github.com/kanata-switcher/kanata-focusd/internal/kanata")

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// backoffSchedule is the fixed retry delay ladder: 1s, 2s, capped at 5s.
// The very first connect attempt after entering Disconnected is always
// immediate; this schedule only governs delays between failed retries.
var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second}

// LayerChange is a notification forwarded from an incoming Kanata
// LayerChange message. DefaultCapture is true exactly once per connection:
// for the first LayerChange received when no authoritative DefaultRule
// configured the layer already, which the client consumes to learn
// defaultLayer rather than surfacing as an externally-driven change.
type LayerChange struct {
	Layer          string
	DefaultCapture bool
}

// Client is a resilient Kanata TCP client. One Client owns exactly one
// logical connection to a single Kanata instance; callers drive it by
// calling Run once (it blocks until ctx is cancelled) and Apply/Shutdown
// from any goroutine.
type Client struct {
	addr string

	mu      sync.Mutex
	state   State
	conn    net.Conn
	pending []reducer.WireAction // coalesced: replaced wholesale while disconnected

	defaultLayerAuthoritative bool // true when a configured DefaultRule set it
	defaultLayerKnown         bool
	defaultLayer              string

	events chan LayerChange

	dialTimeout time.Duration
}

// NewClient builds a Client targeting host:port. If hasDefaultRule is true,
// defaultLayer is authoritative from configuration and the first incoming
// LayerChange is never treated as a capture; otherwise defaultLayer starts
// unknown and is captured from Kanata's first LayerChange after connect.
func NewClient(host string, port int, defaultLayer string, hasDefaultRule bool) *Client {
	c := &Client{
		addr:        fmt.Sprintf("%s:%d", host, port),
		events:      make(chan LayerChange, 16),
		dialTimeout: 5 * time.Second,
	}
	if hasDefaultRule {
		c.defaultLayerAuthoritative = true
		c.defaultLayerKnown = true
		c.defaultLayer = defaultLayer
	}
	return c
}

// Events returns the channel of incoming LayerChange notifications.
func (c *Client) Events() <-chan LayerChange { return c.events }

// State reports the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DefaultLayer reports the captured or configured default layer, and
// whether it is known yet.
func (c *Client) DefaultLayer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaultLayer, c.defaultLayerKnown
}

// Run drives the connect/read/reconnect loop until ctx is cancelled. It is
// launched via logging.SafeGo by the daemon's startup code (cmd/run.go).
func (c *Client) Run(ctx context.Context) {
	backoffIdx := 0
	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		conn, err := (&net.Dialer{Timeout: c.dialTimeout}).DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Warn(logging.CatKanata, "connect failed", "addr", c.addr, "error", err.Error())
			delay := backoffSchedule[backoffIdx]
			if backoffIdx < len(backoffSchedule)-1 {
				backoffIdx++
			}
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		backoffIdx = 0
		logging.Info(logging.CatKanata, "connected", "addr", c.addr)
		c.onConnected(conn)
		c.runConnected(ctx, conn)
		c.onDisconnected()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// onConnected marks the connection live and flushes any coalesced pending
// plan exactly once, in order, per the pending-change coalescing contract.
func (c *Client) onConnected(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	if err := c.writeActions(conn, pending); err != nil {
		logging.Warn(logging.CatKanata, "flush of pending plan failed", "error", err.Error())
		c.requeueAfterFailure(pending)
		_ = conn.Close()
	}
}

func (c *Client) onDisconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()
}

// runConnected reads incoming lines until the connection fails or ctx is
// cancelled, forwarding LayerChange notifications and capturing
// defaultLayer from the first one when applicable.
func (c *Client) runConnected(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	logging.SafeGo("kanata-client-ctx-watch", func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	})

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		body, err := parseLine(line)
		if err != nil {
			logging.Warn(logging.CatKanata, "read parse error", "error", err.Error())
			continue
		}
		if body == nil {
			continue // recognised JSON, but not a message this client acts on
		}
		c.handleLayerChange(body.New)
	}
	if ctx.Err() != nil {
		return
	}
	if err := scanner.Err(); err != nil {
		logging.Warn(logging.CatKanata, "connection read error", "error", err.Error())
	} else {
		logging.Warn(logging.CatKanata, "connection closed by kanata")
	}
}

func (c *Client) handleLayerChange(layer string) {
	c.mu.Lock()
	capture := !c.defaultLayerAuthoritative && !c.defaultLayerKnown
	if capture {
		c.defaultLayerKnown = true
		c.defaultLayer = layer
	}
	c.mu.Unlock()

	select {
	case c.events <- LayerChange{Layer: layer, DefaultCapture: capture}:
	default:
		logging.Warn(logging.CatKanata, "layer change event dropped: listener not keeping up")
	}
}

// Apply sends actions immediately if connected, or coalesces them as the
// single pending plan (replacing any previously queued plan) otherwise.
func (c *Client) Apply(actions []reducer.WireAction) {
	_, span := tracer.Start(context.Background(), "kanata.Apply",
		trace.WithAttributes(attribute.Int("actions", len(actions))))
	defer span.End()

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.pending = actions
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	if err := c.writeActions(conn, actions); err != nil {
		logging.Warn(logging.CatKanata, "write failed, plan dropped and requeued", "error", err.Error())
		c.requeueAfterFailure(actions)
		_ = conn.Close()
	}
}

// requeueAfterFailure re-queues actions as pending unless a newer Apply
// call has already replaced the pending slot. Because the supervisor calls
// Apply serially from a single reducer task, no newer plan can have
// arrived between the failed write and this call observing it.
func (c *Client) requeueAfterFailure(actions []reducer.WireAction) {
	c.mu.Lock()
	if c.pending == nil {
		c.pending = actions
	}
	c.mu.Unlock()
}

func (c *Client) writeActions(conn net.Conn, actions []reducer.WireAction) error {
	for _, a := range actions {
		line, err := encodeLine(a)
		if err != nil {
			return err
		}
		if _, err := conn.Write(line); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown performs the shutdown-reset contract synchronously on the
// existing connection, without attempting to reconnect: release every
// managed VK (reverse order), then switch to defaultLayer if known. If the
// client is not currently connected, the reset is skipped entirely — there
// is no connection to use and reconnecting would violate the contract.
func (c *Client) Shutdown(managedVks []string) {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	defaultLayer := c.defaultLayer
	haveDefaultLayer := c.defaultLayerKnown
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		return
	}

	var actions []reducer.WireAction
	for i := len(managedVks) - 1; i >= 0; i-- {
		actions = append(actions, releaseWireAction(managedVks[i]))
	}
	if haveDefaultLayer {
		actions = append(actions, changeLayerWireAction(defaultLayer))
	}
	if len(actions) == 0 {
		return
	}
	if err := c.writeActions(conn, actions); err != nil {
		logging.Warn(logging.CatKanata, "shutdown reset write failed", "error", err.Error())
	}
}
