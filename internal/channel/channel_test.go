package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/muurk/castctl/internal/castv2"
)

// fakeReceiver scripts the device end of an in-memory connection. Its read
// pump keeps draining frames so writes on the synchronous pipe never stall.
type fakeReceiver struct {
	conn net.Conn
	in   chan map[string]any
}

func startFakeReceiver(conn net.Conn) *fakeReceiver {
	f := &fakeReceiver{
		conn: conn,
		in:   make(chan map[string]any, 64),
	}
	go func() {
		defer close(f.in)
		for {
			payload, err := castv2.ReadFrame(conn)
			if err != nil {
				return
			}
			var msg map[string]any
			if json.Unmarshal(payload, &msg) == nil {
				f.in <- msg
			}
		}
	}()
	return f
}

// next returns the next inbound frame, skipping heartbeat traffic
func (f *fakeReceiver) next(t *testing.T) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-f.in:
			if !ok {
				t.Fatal("connection closed while waiting for a frame")
			}
			if msg["type"] == castv2.TypePing || msg["type"] == castv2.TypePong {
				continue
			}
			return msg
		case <-deadline:
			t.Fatal("timed out waiting for a frame from the channel")
		}
	}
}

func (f *fakeReceiver) send(t *testing.T, payload string) {
	t.Helper()
	if err := castv2.WriteFrame(f.conn, []byte(payload)); err != nil {
		t.Fatalf("fake receiver write failed: %v", err)
	}
}

// newTestChannel connects a channel to a fake receiver over net.Pipe and
// consumes the CONNECT handshake
func newTestChannel(t *testing.T, tune func(*Channel)) (*Channel, *fakeReceiver) {
	t.Helper()

	client, server := net.Pipe()
	fake := startFakeReceiver(server)

	ch := NewChannel()
	ch.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return client, nil
	}
	if tune != nil {
		tune(ch)
	}

	if err := ch.Connect(context.Background(), "fake", DefaultPort); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(ch.Disconnect)

	connect := fake.next(t)
	if connect["type"] != castv2.TypeConnect {
		t.Fatalf("handshake type = %v, want CONNECT", connect["type"])
	}
	if connect["namespace"] != castv2.NamespaceConnection {
		t.Fatalf("handshake namespace = %v, want connection namespace", connect["namespace"])
	}
	if connect["destinationId"] != castv2.PlatformReceiverID {
		t.Fatalf("handshake destination = %v, want receiver-0", connect["destinationId"])
	}

	return ch, fake
}

// eventCollector records broadcast events and signals each arrival
type eventCollector struct {
	mu     sync.Mutex
	events []*castv2.DecodedMessage
	seen   chan struct{}
}

func newEventCollector() *eventCollector {
	return &eventCollector{seen: make(chan struct{}, 64)}
}

func (e *eventCollector) OnEvent(msg *castv2.DecodedMessage) {
	e.mu.Lock()
	e.events = append(e.events, msg)
	e.mu.Unlock()
	e.seen <- struct{}{}
}

func (e *eventCollector) wait(t *testing.T, n int) []*castv2.DecodedMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		e.mu.Lock()
		count := len(e.events)
		e.mu.Unlock()
		if count >= n {
			break
		}
		select {
		case <-e.seen:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %d", n, count)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*castv2.DecodedMessage(nil), e.events...)
}

// stateCollector records lifecycle transitions
type stateCollector struct {
	mu          sync.Mutex
	transitions [][2]State
	seen        chan struct{}
}

func newStateCollector() *stateCollector {
	return &stateCollector{seen: make(chan struct{}, 16)}
}

func (s *stateCollector) OnStateChange(prev, next State) {
	s.mu.Lock()
	s.transitions = append(s.transitions, [2]State{prev, next})
	s.mu.Unlock()
	s.seen <- struct{}{}
}

func (s *stateCollector) snapshot() [][2]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]State(nil), s.transitions...)
}

func (s *stateCollector) waitFor(t *testing.T, next State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		for _, tr := range s.snapshot() {
			if tr[1] == next {
				return
			}
		}
		select {
		case <-s.seen:
		case <-deadline:
			t.Fatalf("timed out waiting for transition to %s; saw %v", next, s.snapshot())
		}
	}
}

func TestConnectLifecycle(t *testing.T) {
	states := newStateCollector()

	client, server := net.Pipe()
	fake := startFakeReceiver(server)

	ch := NewChannel()
	ch.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return client, nil
	}
	ch.AddStateListener(states)

	if ch.State() != StateDisconnected {
		t.Fatalf("initial state = %v, want disconnected", ch.State())
	}

	if err := ch.Connect(context.Background(), "fake", DefaultPort); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer ch.Disconnect()
	fake.next(t) // consume handshake

	if ch.State() != StateConnected {
		t.Errorf("state after connect = %v, want connected", ch.State())
	}

	states.waitFor(t, StateConnected)
	got := states.snapshot()
	want := [][2]State{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateConnected},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestSecondConnectRejected(t *testing.T) {
	ch, _ := newTestChannel(t, nil)

	err := ch.Connect(context.Background(), "fake", DefaultPort)
	if err == nil {
		t.Fatal("second Connect() should fail while connected")
	}
	if !castv2.IsConnectionError(err) {
		t.Errorf("second Connect() error = %v, want a connection error", err)
	}
}

func TestConnectDialFailure(t *testing.T) {
	ch := NewChannel()
	ch.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("connection refused")
	}

	err := ch.Connect(context.Background(), "nowhere", DefaultPort)
	if !castv2.IsConnectionError(err) {
		t.Fatalf("Connect() error = %v, want a connection error", err)
	}
	if ch.State() != StateDisconnected {
		t.Errorf("state after failed connect = %v, want disconnected", ch.State())
	}
	// The channel must be reusable after a failed attempt
	if ch.State() != StateDisconnected {
		t.Error("failed connect left the channel unusable")
	}
}

func TestRequestCorrelationOutOfOrder(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	const n = 3
	var wg sync.WaitGroup
	errs := make([]error, n)
	responses := make([]*castv2.DecodedMessage, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := &castv2.LaunchPayload{
				PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeLaunch},
				AppID:          fmt.Sprintf("app-%d", i),
			}
			responses[i], errs[i] = ch.Request(context.Background(),
				castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, time.Second)
		}(i)
	}

	// Collect the three requests, then answer them in reverse order
	type req struct {
		id    float64
		appID string
	}
	var reqs []req
	for len(reqs) < n {
		msg := fake.next(t)
		reqs = append(reqs, req{
			id:    msg["requestId"].(float64),
			appID: msg["appId"].(string),
		})
	}
	for i := len(reqs) - 1; i >= 0; i-- {
		fake.send(t, fmt.Sprintf(
			`{"type":"RECEIVER_STATUS","requestId":%d,"status":{"applications":[{"appId":%q}]}}`,
			int(reqs[i].id), reqs[i].appID))
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d error = %v", i, errs[i])
		}
		wantApp := fmt.Sprintf("app-%d", i)
		if responses[i].ReceiverStatus == nil ||
			responses[i].ReceiverStatus.GetApplication(wantApp) == nil {
			t.Errorf("request %d received someone else's response: %+v", i, responses[i])
		}
	}
}

func TestRequestTimeout(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	payload := &castv2.GetStatusPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
	}

	start := time.Now()
	_, err := ch.Request(context.Background(),
		castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, 50*time.Millisecond)
	elapsed := time.Since(start)

	if !castv2.IsTimeoutError(err) {
		t.Fatalf("Request() error = %v, want a timeout error", err)
	}
	if elapsed < 40*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("timeout fired after %v, want ~50ms", elapsed)
	}
	if ch.pending.size() != 0 {
		t.Errorf("pending table size = %d after timeout, want 0", ch.pending.size())
	}

	_ = fake // the fake deliberately never responds
}

func TestDisconnectDrainsPending(t *testing.T) {
	states := newStateCollector()
	ch, fake := newTestChannel(t, nil)
	ch.AddStateListener(states)

	const n = 3
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := &castv2.GetStatusPayload{
				PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
			}
			_, errs[i] = ch.Request(context.Background(),
				castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, time.Minute)
		}(i)
	}

	// Wait until all three are on the wire before disconnecting
	for i := 0; i < n; i++ {
		fake.next(t)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ch.Disconnect()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pending requests hung after Disconnect()")
	}

	for i, err := range errs {
		if !castv2.IsConnectionError(err) {
			t.Errorf("request %d error = %v, want a channel-closed error", i, err)
		}
	}
	if ch.pending.size() != 0 {
		t.Errorf("pending table size = %d after disconnect, want 0", ch.pending.size())
	}

	states.waitFor(t, StateDisconnected)
	count := 0
	for _, tr := range states.snapshot() {
		if tr[0] == StateConnected && tr[1] == StateDisconnected {
			count++
		}
	}
	if count != 1 {
		t.Errorf("observed %d connected->disconnected transitions, want exactly 1", count)
	}

	// Idempotent: a second disconnect is a no-op
	ch.Disconnect()
	if got := len(states.snapshot()); got != 1 {
		t.Errorf("second Disconnect() produced extra transitions: %v", states.snapshot())
	}
}

func TestSpontaneousEventFiltering(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	mediaOnly := newEventCollector()
	everything := newEventCollector()
	ch.AddEventListener(mediaOnly, castv2.KindMediaStatus)
	ch.AddEventListener(everything)

	// A mixed stream of spontaneous pushes (no requestId)
	fake.send(t, `{"namespace":"urn:x-cast:com.google.cast.media","type":"MEDIA_STATUS","status":[{"mediaSessionId":1,"playerState":"PLAYING"}]}`)
	fake.send(t, `{"namespace":"urn:x-cast:com.google.cast.receiver","type":"RECEIVER_STATUS","status":{"volume":{"level":0.3}}}`)
	fake.send(t, `{"namespace":"urn:x-cast:com.google.cast.media","type":"MEDIA_STATUS","status":[{"mediaSessionId":1,"playerState":"PAUSED"}]}`)

	all := everything.wait(t, 3)
	media := mediaOnly.wait(t, 2)

	for _, msg := range media {
		if msg.Kind != castv2.KindMediaStatus {
			t.Errorf("filtered listener received %v event", msg.Kind)
		}
	}
	kinds := map[castv2.Kind]int{}
	for _, msg := range all {
		kinds[msg.Kind]++
	}
	if kinds[castv2.KindMediaStatus] != 2 || kinds[castv2.KindReceiverStatus] != 1 {
		t.Errorf("unfiltered listener kinds = %v, want 2 media + 1 receiver", kinds)
	}
}

func TestResponseNotAlsoBroadcast(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	all := newEventCollector()
	ch.AddEventListener(all)

	payload := &castv2.GetStatusPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
	}
	result := make(chan error, 1)
	go func() {
		_, err := ch.Request(context.Background(),
			castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, time.Second)
		result <- err
	}()

	msg := fake.next(t)
	id := int(msg["requestId"].(float64))
	fake.send(t, fmt.Sprintf(`{"type":"RECEIVER_STATUS","requestId":%d,"status":{"volume":{}}}`, id))
	// A spontaneous push right after, to give the broadcast a chance to
	// misfire before we assert
	fake.send(t, `{"type":"MEDIA_STATUS","status":[{"mediaSessionId":5}]}`)

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("Request() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Request() hung")
	}

	events := all.wait(t, 1)
	for _, msg := range events {
		if msg.Kind == castv2.KindReceiverStatus {
			t.Error("correlated response was also broadcast as a spontaneous event")
		}
	}
}

func TestUnknownEventDeepCopyIsolation(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	first := newEventCollector()
	second := newEventCollector()
	ch.AddEventListener(first, castv2.KindUnknown)
	ch.AddEventListener(second, castv2.KindUnknown)

	fake.send(t, `{"type":"SOMETHING_NEW","detail":{"count":1}}`)

	a := first.wait(t, 1)[0]
	b := second.wait(t, 1)[0]

	// Each listener owns an independent deep copy
	a.Raw["detail"].(map[string]any)["count"] = 99.0

	if b.Raw["detail"].(map[string]any)["count"] != 1.0 {
		t.Error("mutating one listener's payload leaked into another listener's copy")
	}
}

func TestCustomNamespacePromotion(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	events := newEventCollector()
	ch.AddEventListener(events, castv2.KindCustom)

	fake.send(t, `{"namespace":"urn:x-cast:com.example.app","type":"GAME_STATE","level":2}`)

	got := events.wait(t, 1)[0]
	if got.Kind != castv2.KindCustom {
		t.Errorf("Kind = %v, want custom for an application namespace", got.Kind)
	}
	if got.Raw["level"] != 2.0 {
		t.Errorf("Raw payload not preserved: %v", got.Raw)
	}
}

func TestMalformedFrameDoesNotKillLoop(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	events := newEventCollector()
	ch.AddEventListener(events, castv2.KindMediaStatus)

	fake.send(t, `{"this is": not json`)
	fake.send(t, `{"type":"MEDIA_STATUS","status":[{"mediaSessionId":7,"playerState":"PLAYING"}]}`)

	got := events.wait(t, 1)[0]
	if got.Kind != castv2.KindMediaStatus {
		t.Fatalf("Kind = %v, want media_status after a malformed frame", got.Kind)
	}
	if ch.State() != StateConnected {
		t.Error("a malformed frame terminated the connection")
	}
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	_, fake := newTestChannel(t, nil)

	fake.send(t, `{"namespace":"urn:x-cast:com.google.cast.tp.heartbeat","sourceId":"receiver-0","type":"PING"}`)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-fake.in:
			if !ok {
				t.Fatal("connection closed while waiting for PONG")
			}
			if msg["type"] == castv2.TypePong {
				if msg["namespace"] != castv2.NamespaceHeartbeat {
					t.Errorf("PONG namespace = %v", msg["namespace"])
				}
				return
			}
		case <-deadline:
			t.Fatal("receiver PING was never answered")
		}
	}
}

func TestCloseNotificationDisconnects(t *testing.T) {
	states := newStateCollector()
	ch, fake := newTestChannel(t, nil)
	ch.AddStateListener(states)

	closeEvents := newEventCollector()
	ch.AddEventListener(closeEvents, castv2.KindClose)

	fake.send(t, `{"namespace":"urn:x-cast:com.google.cast.tp.connection","type":"CLOSE"}`)

	states.waitFor(t, StateDisconnected)
	if ch.State() != StateDisconnected {
		t.Errorf("state = %v after protocol CLOSE, want disconnected", ch.State())
	}
	closeEvents.wait(t, 1)
}

func TestPeerEOFDisconnects(t *testing.T) {
	states := newStateCollector()
	ch, fake := newTestChannel(t, nil)
	ch.AddStateListener(states)

	// One request in flight when the peer goes away
	resultCh := make(chan error, 1)
	go func() {
		payload := &castv2.GetStatusPayload{
			PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
		}
		_, err := ch.Request(context.Background(),
			castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, time.Minute)
		resultCh <- err
	}()
	fake.next(t)

	_ = fake.conn.Close()

	states.waitFor(t, StateDisconnected)

	select {
	case err := <-resultCh:
		if !castv2.IsConnectionError(err) {
			t.Errorf("in-flight request error = %v, want a connection error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request hung after peer close")
	}
}

func TestHeartbeatTimeoutDisconnects(t *testing.T) {
	states := newStateCollector()
	ch, _ := newTestChannel(t, func(c *Channel) {
		c.HeartbeatInterval = 20 * time.Millisecond
		c.LivenessWindow = 50 * time.Millisecond
	})
	ch.AddStateListener(states)

	// The fake receiver drains PINGs but never answers; the liveness
	// window must expire and tear the connection down
	states.waitFor(t, StateDisconnected)

	if ch.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected after heartbeat timeout", ch.State())
	}
}

func TestListenersSurviveReconnect(t *testing.T) {
	events := newEventCollector()

	client1, server1 := net.Pipe()
	fake1 := startFakeReceiver(server1)
	client2, server2 := net.Pipe()
	fake2 := startFakeReceiver(server2)

	conns := make(chan net.Conn, 2)
	conns <- client1
	conns <- client2

	ch := NewChannel()
	ch.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return <-conns, nil
	}
	ch.AddEventListener(events, castv2.KindMediaStatus)

	if err := ch.Connect(context.Background(), "fake", DefaultPort); err != nil {
		t.Fatalf("first Connect() error = %v", err)
	}
	fake1.next(t)
	ch.Disconnect()

	if err := ch.Connect(context.Background(), "fake", DefaultPort); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	defer ch.Disconnect()
	fake2.next(t)

	fake2.send(t, `{"type":"MEDIA_STATUS","status":[{"mediaSessionId":3}]}`)

	// Registration made before the first connect still fires on the second
	events.wait(t, 1)
}

func TestSendFireAndForget(t *testing.T) {
	ch, fake := newTestChannel(t, nil)

	payload := &castv2.PingPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypePing},
	}
	if err := ch.Send(castv2.NamespaceHeartbeat, castv2.PlatformReceiverID, payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-fake.in:
			if msg["type"] == castv2.TypePing {
				if _, present := msg["requestId"]; present {
					t.Error("fire-and-forget message carried a requestId")
				}
				return
			}
		case <-deadline:
			t.Fatal("fire-and-forget message never reached the wire")
		}
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	ch := NewChannel()

	err := ch.Send(castv2.NamespaceHeartbeat, castv2.PlatformReceiverID, &castv2.PingPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypePing},
	})
	if !castv2.IsConnectionError(err) {
		t.Errorf("Send() on disconnected channel error = %v, want channel-closed", err)
	}

	_, err = ch.Request(context.Background(), castv2.NamespaceReceiver,
		castv2.PlatformReceiverID, &castv2.GetStatusPayload{
			PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
		}, time.Second)
	if !castv2.IsConnectionError(err) {
		t.Errorf("Request() on disconnected channel error = %v, want channel-closed", err)
	}
}
