package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/castctl/internal/castv2"
	"github.com/muurk/castctl/internal/channel"
	"github.com/muurk/castctl/internal/logging"
)

// DefaultListenAddr is the address the relay binds to when none is given
const DefaultListenAddr = "127.0.0.1:8010"

// Config holds the relay server configuration
type Config struct {
	// ListenAddr is the address to bind (e.g., "127.0.0.1:8010")
	ListenAddr string

	// Source names the receiver whose events are relayed, for /status
	Source string
}

// Server relays receiver events to websocket subscribers. It implements the
// channel event and state listener interfaces: register it on a channel and
// every spontaneous push and lifecycle change is serialized to JSON and
// fanned out to all connected clients.
//
// Endpoints:
//
//	GET /ws      upgrade to websocket, receive the event stream
//	GET /status  JSON summary of the relay
type Server struct {
	cfg Config
	hub *hub

	httpServer *http.Server
	listener   net.Listener
	started    time.Time

	relayed     atomic.Int64
	upstream    atomic.Int32 // last observed channel.State
	hasUpstream atomic.Bool
}

// upgrader accepts any origin; the relay is a local tool, not an
// internet-facing service
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New creates a relay server. Call Start to begin serving.
func New(cfg Config) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}

	s := &Server{
		cfg: cfg,
		hub: newHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/status", s.handleStatus)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start binds the listen address and begins serving in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("relay failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener
	s.started = time.Now()

	logging.Info("Relay server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("source", s.cfg.Source),
	)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("Relay server failed", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.ListenAddr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, disconnecting all subscribers
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// Subscribers returns the number of connected websocket clients
func (s *Server) Subscribers() int {
	return s.hub.count()
}

// handleWS upgrades the connection and registers it with the hub
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Relay websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	s.hub.add(conn)
}

// statusResponse is the /status payload
type statusResponse struct {
	Source        string `json:"source,omitempty"`
	UpstreamState string `json:"upstreamState,omitempty"`
	Subscribers   int    `json:"subscribers"`
	EventsRelayed int64  `json:"eventsRelayed"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Source:        s.cfg.Source,
		Subscribers:   s.hub.count(),
		EventsRelayed: s.relayed.Load(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.hasUpstream.Load() {
		resp.UpstreamState = channel.State(s.upstream.Load()).String()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Warn("Failed to write relay status", zap.Error(err))
	}
}

// wireEvent is the JSON shape relayed to subscribers
type wireEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"` // "message" or "state"

	// Message fields
	Kind      string `json:"kind,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Type      string `json:"type,omitempty"`
	SourceID  string `json:"sourceId,omitempty"`
	Payload   any    `json:"payload,omitempty"`

	// State fields
	PrevState string `json:"prevState,omitempty"`
	NextState string `json:"nextState,omitempty"`
}

// OnEvent implements channel.EventListener: every spontaneous receiver push
// is relayed to all subscribers
func (s *Server) OnEvent(msg *castv2.DecodedMessage) {
	ev := wireEvent{
		Time:      time.Now(),
		Event:     "message",
		Kind:      msg.Kind.String(),
		Namespace: msg.Namespace,
		Type:      msg.Type,
		SourceID:  msg.SourceID,
	}

	switch msg.Kind {
	case castv2.KindReceiverStatus:
		ev.Payload = msg.ReceiverStatus
	case castv2.KindMediaStatus:
		ev.Payload = msg.MediaStatuses
	case castv2.KindParseFailure:
		ev.Payload = msg.RawText
	default:
		ev.Payload = msg.Raw
	}

	s.relay(ev)
}

// OnStateChange implements channel.StateListener: connection lifecycle
// transitions are relayed alongside messages
func (s *Server) OnStateChange(prev, next channel.State) {
	s.upstream.Store(int32(next))
	s.hasUpstream.Store(true)

	s.relay(wireEvent{
		Time:      time.Now(),
		Event:     "state",
		PrevState: prev.String(),
		NextState: next.String(),
	})
}

func (s *Server) relay(ev wireEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logging.Warn("Failed to serialize relay event", zap.Error(err))
		return
	}
	s.relayed.Add(1)
	s.hub.broadcast(data)
}
