package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/castctl/internal/castv2"
	"github.com/muurk/castctl/internal/listener"
	"github.com/muurk/castctl/internal/logging"
)

const (
	// DefaultPort is the TLS port cast receivers listen on
	DefaultPort = 8009

	// DefaultConnectTimeout bounds the dial plus TLS handshake
	DefaultConnectTimeout = 10 * time.Second

	// DefaultRequestTimeout bounds a request awaiting its response
	DefaultRequestTimeout = 10 * time.Second

	// DefaultHeartbeatInterval is the PING cadence
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultLivenessWindow is how long the channel tolerates no PONG
	// before treating the transport as dead (two missed heartbeats)
	DefaultLivenessWindow = 10 * time.Second

	// userAgent is reported on the virtual-connection handshake
	userAgent = "castctl"
)

// State is the connection lifecycle state of a Channel
type State int

const (
	// StateDisconnected means no connection exists; the channel is reusable
	StateDisconnected State = iota
	// StateConnecting means a dial/handshake is in flight
	StateConnecting
	// StateConnected means the receive loop is running
	StateConnected
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Channel is one persistent protocol connection to a cast receiver. It owns
// the socket, a single background receive loop, the outbound write path, and
// the pending-request table, and it fans spontaneous events out to
// registered listeners.
//
// All methods are safe for concurrent use. Listener registrations belong to
// the Channel object and survive disconnect/reconnect cycles.
type Channel struct {
	// ConnectTimeout bounds Connect when its context has no deadline
	ConnectTimeout time.Duration

	// RequestTimeout is the default deadline for Request calls that pass
	// no explicit timeout
	RequestTimeout time.Duration

	// HeartbeatInterval is the cadence of liveness PINGs
	HeartbeatInterval time.Duration

	// LivenessWindow is how long the channel waits for a PONG before
	// treating the transport as failed
	LivenessWindow time.Duration

	// dial opens the transport; replaced in tests
	dial Dialer

	// mu guards state and sess; every lifecycle transition happens under it
	mu    sync.Mutex
	state State
	sess  *session

	nextRequestID atomic.Int64

	pending *pendingTable
	events  *listener.Registry[EventListener, castv2.Kind]
	states  *listener.Registry[StateListener, State]
}

// session is the per-connection state, replaced wholesale on reconnect
type session struct {
	conn       net.Conn
	remoteAddr string

	// writeMu serializes frame writes; frames must never interleave
	writeMu sync.Mutex

	// closed is closed exactly once on teardown; it stops the heartbeat
	// loop and tells the receive loop its read error was a local close
	closed chan struct{}

	// lastPong is the unix-nano time of the most recent liveness
	// acknowledgment
	lastPong atomic.Int64
}

// NewChannel creates a disconnected channel with default tunables
func NewChannel() *Channel {
	return &Channel{
		ConnectTimeout:    DefaultConnectTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		HeartbeatInterval: DefaultHeartbeatInterval,
		LivenessWindow:    DefaultLivenessWindow,
		dial:              tlsDial,
		pending:           newPendingTable(),
		events:            listener.NewRegistry[EventListener, castv2.Kind](),
		states:            listener.NewRegistry[StateListener, State](),
	}
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens a TLS connection to the receiver at host:port, performs the
// virtual-connection handshake, and starts the receive and heartbeat loops.
//
// Calling Connect while the channel is Connecting or Connected returns a
// connection error; disconnect first to establish a fresh session. Every
// failure path closes the socket and returns the channel to Disconnected,
// so a failed Connect never leaves a half-open connection behind.
func (c *Channel) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return castv2.NewConnectionError(
			fmt.Sprintf("connect refused: channel is %s", state), nil)
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateDisconnected, StateConnecting)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ConnectTimeout)
		defer cancel()
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := c.dial(ctx, addr)
	if err != nil {
		c.abortConnect()
		return castv2.NewConnectionError("failed to connect to "+addr, err)
	}

	sess := &session{
		conn:       conn,
		remoteAddr: addr,
		closed:     make(chan struct{}),
	}
	sess.lastPong.Store(time.Now().UnixNano())

	// Open the virtual connection to the platform receiver
	connect := &castv2.ConnectPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeConnect},
		UserAgent:      userAgent,
	}
	if err := c.write(sess, castv2.NamespaceConnection, castv2.PlatformReceiverID, connect); err != nil {
		_ = conn.Close()
		c.abortConnect()
		return castv2.NewConnectionError("handshake failed", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect raced the dial; honor it
		c.mu.Unlock()
		_ = conn.Close()
		return castv2.NewClosedError("channel closed during connect")
	}
	c.sess = sess
	c.state = StateConnected
	c.mu.Unlock()

	logging.LogConnection(addr, "connected")
	c.notifyState(StateConnecting, StateConnected)

	go c.receiveLoop(sess)
	go c.heartbeatLoop(sess)

	return nil
}

// abortConnect rolls a failed Connect back to Disconnected
func (c *Channel) abortConnect() {
	c.mu.Lock()
	prev := c.state
	c.state = StateDisconnected
	c.mu.Unlock()
	if prev != StateDisconnected {
		c.notifyState(prev, StateDisconnected)
	}
}

// Disconnect closes the channel. It is idempotent and safe to call from any
// state and any goroutine: every outstanding request is promptly failed with
// a channel-closed error, the receive and heartbeat loops stop, state
// listeners observe exactly one transition to Disconnected, and the channel
// is left clean for a later reconnect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess != nil {
		// Best-effort close notification to the receiver
		closeMsg := &castv2.ClosePayload{
			PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeClose},
		}
		_ = c.write(sess, castv2.NamespaceConnection, castv2.PlatformReceiverID, closeMsg)
	}

	c.teardown(sess, castv2.NewClosedError("channel disconnected"))
}

// teardown moves the channel to Disconnected, closing the session and
// draining pending work. It is a no-op when sess is stale (a newer session
// has replaced it) or the channel is already down, which makes racing
// teardowns from Disconnect, the receive loop, and the heartbeat loop safe.
func (c *Channel) teardown(sess *session, reason *castv2.CastError) {
	c.mu.Lock()
	if sess != nil && c.sess != sess && c.sess != nil {
		c.mu.Unlock()
		return
	}
	prev := c.state
	cur := c.sess
	c.sess = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if prev == StateDisconnected {
		return
	}

	if cur != nil {
		close(cur.closed)
		_ = cur.conn.Close()
		logging.LogConnection(cur.remoteAddr, "disconnected")
	}

	// No pending request may outlive the connection
	c.pending.failAll(reason)

	c.notifyState(prev, StateDisconnected)
}

// session returns the live session or a channel-closed error
func (c *Channel) session() (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.sess == nil {
		return nil, castv2.NewClosedError("channel is not connected")
	}
	return c.sess, nil
}

// Send writes one fire-and-forget message. No correlation id is allocated
// and no response is awaited.
func (c *Channel) Send(namespace, destinationID string, payload any) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	return c.write(sess, namespace, destinationID, payload)
}

// Request writes one message carrying a fresh correlation id and suspends
// the calling goroutine until the matching response arrives, the timeout
// elapses, or the channel disconnects. A timeout of zero uses the channel's
// RequestTimeout. Each pending request is fulfilled exactly once.
func (c *Channel) Request(ctx context.Context, namespace, destinationID string, payload castv2.Correlatable, timeout time.Duration) (*castv2.DecodedMessage, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}

	id := int(c.nextRequestID.Add(1))
	payload.SetRequestID(id)

	entry := c.pending.add(id)
	if err := c.write(sess, namespace, destinationID, payload); err != nil {
		// Write never made it to the wire; retract the pending entry
		// unless a concurrent teardown already failed it
		if _, ok := c.pending.take(id); !ok {
			res := <-entry.ch
			return res.msg, res.err
		}
		return nil, err
	}

	if timeout <= 0 {
		timeout = c.RequestTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-entry.ch:
		return res.msg, res.err

	case <-timer.C:
		if _, ok := c.pending.take(id); ok {
			return nil, castv2.NewTimeoutError(
				fmt.Sprintf("no response for request %d within %s", id, timeout))
		}
		// Fulfillment won the race; the result is already buffered
		res := <-entry.ch
		return res.msg, res.err

	case <-ctx.Done():
		if _, ok := c.pending.take(id); ok {
			return nil, castv2.NewTimeoutError(
				fmt.Sprintf("request %d cancelled: %v", id, ctx.Err()))
		}
		res := <-entry.ch
		return res.msg, res.err
	}
}

// write serializes the payload with its envelope and writes one frame.
// Frame writes are the only mutually exclusive critical section on the
// channel: concurrent senders queue here, never interleaving on the wire.
func (c *Channel) write(sess *session, namespace, destinationID string, payload any) error {
	body, err := buildBody(namespace, castv2.SenderID, destinationID, payload)
	if err != nil {
		return err
	}

	logging.LogFrame(sess.remoteAddr, "sent", body)

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return castv2.WriteFrame(sess.conn, body)
}

// buildBody merges the envelope fields into the payload's JSON object
func buildBody(namespace, sourceID, destinationID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, castv2.NewDecodeError("failed to serialize payload", "", err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, castv2.NewDecodeError("payload is not a JSON object", string(raw), err)
	}

	body["namespace"] = namespace
	body["sourceId"] = sourceID
	body["destinationId"] = destinationID

	out, err := json.Marshal(body)
	if err != nil {
		return nil, castv2.NewDecodeError("failed to serialize message", "", err)
	}
	return out, nil
}

// receiveLoop is the single background reader for one session. It
// terminates only on a transport-level read failure or local close; decode
// problems on individual frames are diagnostics, never fatal.
func (c *Channel) receiveLoop(sess *session) {
	for {
		payload, err := castv2.ReadFrame(sess.conn)
		if err != nil {
			select {
			case <-sess.closed:
				// Local teardown closed the socket under the read
				return
			default:
			}

			var reason *castv2.CastError
			if err == io.EOF {
				reason = castv2.NewConnectionError("connection closed by receiver", err)
			} else if castErr, ok := err.(*castv2.CastError); ok {
				reason = castErr
			} else {
				reason = castv2.NewConnectionError("receive failed", err)
			}
			c.teardown(sess, reason)
			return
		}

		logging.LogFrame(sess.remoteAddr, "received", payload)
		c.dispatch(sess, castv2.Resolve(payload))
	}
}

// dispatch classifies one resolved inbound message: heartbeat traffic is
// handled inline, correlated responses fulfill their pending request, and
// everything else is broadcast as a spontaneous event.
func (c *Channel) dispatch(sess *session, msg *castv2.DecodedMessage) {
	logging.LogMessage(sess.remoteAddr, msg.Namespace, msg.Type, msg.RequestID)

	switch msg.Kind {
	case castv2.KindPing:
		// Receiver-initiated liveness probe; answer and move on
		pong := &castv2.PongPayload{
			PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypePong},
		}
		dest := msg.SourceID
		if dest == "" {
			dest = castv2.PlatformReceiverID
		}
		if err := c.write(sess, castv2.NamespaceHeartbeat, dest, pong); err != nil {
			logging.Warn("Failed to answer PING", zap.Error(err))
		}
		return

	case castv2.KindPong:
		sess.lastPong.Store(time.Now().UnixNano())
		return

	case castv2.KindParseFailure:
		logging.Warn("Discarding malformed frame",
			zap.String("remote_addr", sess.remoteAddr),
			zap.String("raw", msg.RawText),
		)
		c.broadcast(msg)
		return
	}

	// A message carrying the correlation id of a pending request is that
	// request's response, and only that: it is not also broadcast
	if msg.RequestID != 0 && c.pending.fulfill(msg.RequestID, msg) {
		return
	}

	if msg.Kind == castv2.KindClose {
		// Protocol-level close: the receiver tore down the virtual
		// connection
		c.broadcast(msg)
		c.teardown(sess, castv2.NewConnectionError("connection closed by receiver", nil))
		return
	}

	// Application messages on non-core namespaces are custom events
	if msg.Kind == castv2.KindUnknown && isApplicationNamespace(msg.Namespace) {
		msg.Kind = castv2.KindCustom
	}

	c.broadcast(msg)
}

// heartbeatLoop emits PINGs on its own cadence, independent of application
// traffic, and treats a missed liveness window as a transport failure
func (c *Channel) heartbeatLoop(sess *session) {
	ticker := time.NewTicker(c.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.closed:
			return

		case <-ticker.C:
			last := time.Unix(0, sess.lastPong.Load())
			if time.Since(last) > c.LivenessWindow {
				c.teardown(sess, castv2.NewConnectionError("heartbeat timeout", nil))
				return
			}

			ping := &castv2.PingPayload{
				PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypePing},
			}
			if err := c.write(sess, castv2.NamespaceHeartbeat, castv2.PlatformReceiverID, ping); err != nil {
				c.teardown(sess, castv2.NewConnectionError("heartbeat write failed", err))
				return
			}
		}
	}
}

// isApplicationNamespace reports whether a namespace belongs to an
// application rather than the protocol core
func isApplicationNamespace(namespace string) bool {
	switch namespace {
	case "", castv2.NamespaceConnection, castv2.NamespaceHeartbeat,
		castv2.NamespaceReceiver, castv2.NamespaceMedia:
		return false
	}
	return true
}
