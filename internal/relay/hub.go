package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/castctl/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Outbound buffer per subscriber; a subscriber that falls this far
	// behind is dropped rather than stalling the relay
	sendBufferSize = 64
)

// hub tracks websocket subscribers and fans messages out to them. The mutex
// guards the client set and every send on a subscriber channel, so a channel
// is only ever closed while no broadcast can be writing to it.
type hub struct {
	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

// subscriber is one websocket client
type subscriber struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{
		clients: make(map[*subscriber]struct{}),
	}
}

// add registers a freshly upgraded connection and starts its pumps
func (h *hub) add(conn *websocket.Conn) *subscriber {
	sub := &subscriber{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[sub] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	logging.Debug("Relay subscriber connected",
		zap.String("remote_addr", conn.RemoteAddr().String()),
		zap.Int("subscribers", count),
	)

	go sub.writePump()
	go sub.readPump()
	return sub
}

// remove drops a subscriber and closes its connection. Safe to call more
// than once.
func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, present := h.clients[sub]
	if present {
		delete(h.clients, sub)
		close(sub.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	_ = sub.conn.Close()

	if present {
		logging.Debug("Relay subscriber disconnected",
			zap.String("remote_addr", sub.conn.RemoteAddr().String()),
			zap.Int("subscribers", count),
		)
	}
}

// broadcast queues one message to every subscriber. Subscribers whose buffer
// is full are dropped; a slow reader must not hold up the receive loop
// feeding the relay.
func (h *hub) broadcast(message []byte) {
	var dropped []*subscriber

	h.mu.Lock()
	for sub := range h.clients {
		select {
		case sub.send <- message:
		default:
			delete(h.clients, sub)
			close(sub.send)
			dropped = append(dropped, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		_ = sub.conn.Close()
		logging.Warn("Dropped slow relay subscriber",
			zap.String("remote_addr", sub.conn.RemoteAddr().String()),
		)
	}
}

// count returns the number of connected subscribers
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll drops every subscriber, for server shutdown
func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.clients))
	for sub := range h.clients {
		delete(h.clients, sub)
		close(sub.send)
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.conn.Close()
	}
}

// writePump drains the send buffer to the websocket and keeps the
// connection alive with periodic pings
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.remove(s)
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound traffic; the relay is one-way. It exists to
// process pongs and to notice when the peer goes away.
func (s *subscriber) readPump() {
	defer s.hub.remove(s)

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
