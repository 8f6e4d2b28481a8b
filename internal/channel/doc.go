// Package channel implements the persistent protocol connection to a cast
// receiver.
//
// A Channel owns one TLS socket, a single background receive loop, the
// outbound write path, and the pending-request table. It is the only
// stateful layer between the pure wire codec (internal/castv2) and callers.
//
// # Lifecycle
//
// A channel moves Disconnected -> Connecting -> Connected, and back to
// Disconnected on explicit Disconnect, transport failure, heartbeat timeout,
// or a protocol-level CLOSE from the receiver. There is no automatic
// reconnection: that is caller policy. The current state is observable via
// State() and every transition is pushed to registered state listeners.
//
//	ch := channel.NewChannel()
//	if err := ch.Connect(ctx, "192.168.1.40", channel.DefaultPort); err != nil {
//	    return err
//	}
//	defer ch.Disconnect()
//
// # Requests and Events
//
// Request allocates a monotonically increasing correlation id, registers a
// pending entry, writes the frame, and suspends the caller until the
// matching response, a timeout, or disconnect, whichever comes first; each
// pending entry is fulfilled exactly once. Send is fire-and-forget.
//
// Inbound frames that match a pending id fulfill that request and nothing
// else. Everything else is a spontaneous event, broadcast to event listeners
// filtered by kind. A malformed frame is a diagnostic, not a connection
// failure: the receive loop logs it, broadcasts a parse-failure event, and
// keeps reading.
//
// # Heartbeat
//
// The channel PINGs the receiver on its own cadence regardless of
// application traffic. A missing PONG past the liveness window tears the
// connection down exactly like a read error. Receiver-initiated PINGs are
// answered inline.
//
// # Concurrency
//
// All methods may be called from any goroutine. Only the frame write is a
// mutually exclusive section; senders never block the receive loop and
// concurrent Request calls proceed independently. Disconnect is the single
// cancellation point: it promptly fails every outstanding request with a
// channel-closed error and is idempotent under racing callers.
package channel
