package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/castctl/internal/castv2"
	"github.com/muurk/castctl/internal/channel"
)

const (
	// DefaultMediaReceiverAppID is the stock media receiver application
	DefaultMediaReceiverAppID = "CC1AD845"

	// DefaultRequestTimeout bounds each command awaiting its response
	DefaultRequestTimeout = 10 * time.Second
)

// Transport is the protocol connection a Client drives. *channel.Channel
// satisfies it; tests substitute a scripted fake.
type Transport interface {
	Connect(ctx context.Context, host string, port int) error
	Disconnect()
	State() channel.State
	Send(namespace, destinationID string, payload any) error
	Request(ctx context.Context, namespace, destinationID string, payload castv2.Correlatable, timeout time.Duration) (*castv2.DecodedMessage, error)
	AddEventListener(l channel.EventListener, kinds ...castv2.Kind) bool
	RemoveEventListener(l channel.EventListener) bool
	AddStateListener(l channel.StateListener, states ...channel.State) bool
	RemoveStateListener(l channel.StateListener) bool
}

// Client drives one cast receiver with typed commands: receiver status,
// application launch and stop, volume, and media session control. It wraps a
// protocol channel and handles the per-application virtual connections that
// media commands require.
type Client struct {
	// Host is the receiver address
	Host string

	// Port is the receiver TLS port
	Port int

	// RequestTimeout bounds each command awaiting its response
	RequestTimeout time.Duration

	transport Transport

	// appMu guards appConns
	appMu sync.Mutex

	// appConns tracks transport ids with an open virtual connection, so
	// each application is connected at most once per channel session
	appConns map[string]struct{}
}

// NewClient creates a client for the receiver at host using the default port
func NewClient(host string) *Client {
	return NewClientWithPort(host, channel.DefaultPort)
}

// NewClientWithPort creates a client for the receiver at host:port
func NewClientWithPort(host string, port int) *Client {
	return &Client{
		Host:           host,
		Port:           port,
		RequestTimeout: DefaultRequestTimeout,
		transport:      channel.NewChannel(),
		appConns:       make(map[string]struct{}),
	}
}

// NewClientWithTransport creates a client over an existing transport
func NewClientWithTransport(host string, port int, t Transport) *Client {
	return &Client{
		Host:           host,
		Port:           port,
		RequestTimeout: DefaultRequestTimeout,
		transport:      t,
		appConns:       make(map[string]struct{}),
	}
}

// Connect establishes the channel to the receiver
func (c *Client) Connect(ctx context.Context) error {
	c.appMu.Lock()
	c.appConns = make(map[string]struct{})
	c.appMu.Unlock()

	return c.transport.Connect(ctx, c.Host, c.Port)
}

// Close disconnects from the receiver. The client can connect again later.
func (c *Client) Close() {
	c.transport.Disconnect()

	c.appMu.Lock()
	c.appConns = make(map[string]struct{})
	c.appMu.Unlock()
}

// State returns the underlying channel state
func (c *Client) State() channel.State {
	return c.transport.State()
}

// AddEventListener registers a listener for spontaneous receiver pushes.
// With no kinds the listener receives every event.
func (c *Client) AddEventListener(l channel.EventListener, kinds ...castv2.Kind) bool {
	return c.transport.AddEventListener(l, kinds...)
}

// RemoveEventListener removes a previously registered event listener
func (c *Client) RemoveEventListener(l channel.EventListener) bool {
	return c.transport.RemoveEventListener(l)
}

// AddStateListener registers a listener for connection lifecycle changes
func (c *Client) AddStateListener(l channel.StateListener, states ...channel.State) bool {
	return c.transport.AddStateListener(l, states...)
}

// RemoveStateListener removes a previously registered state listener
func (c *Client) RemoveStateListener(l channel.StateListener) bool {
	return c.transport.RemoveStateListener(l)
}

// Status retrieves the current platform receiver status
func (c *Client) Status(ctx context.Context) (*castv2.ReceiverStatus, error) {
	payload := &castv2.GetStatusPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return receiverStatusOf(msg)
}

// Launch starts the application with the given appID and returns its receiver
// status entry once the receiver reports it running
func (c *Client) Launch(ctx context.Context, appID string) (*castv2.Application, error) {
	payload := &castv2.LaunchPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeLaunch},
		AppID:          appID,
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	status, err := receiverStatusOf(msg)
	if err != nil {
		return nil, err
	}

	app := status.GetApplication(appID)
	if app == nil {
		return nil, castv2.NewUnexpectedResponseError(
			fmt.Sprintf("launch succeeded but %s is not in the receiver status", appID), msg)
	}
	return app, nil
}

// Stop stops the application session with the given sessionID
func (c *Client) Stop(ctx context.Context, sessionID string) (*castv2.ReceiverStatus, error) {
	payload := &castv2.StopPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeStop},
		SessionID:      sessionID,
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return receiverStatusOf(msg)
}

// SetVolume sets the receiver volume level (0.0 to 1.0)
func (c *Client) SetVolume(ctx context.Context, level float64) (*castv2.Volume, error) {
	return c.setVolume(ctx, castv2.Volume{Level: &level})
}

// SetMuted mutes or unmutes the receiver without touching the level
func (c *Client) SetMuted(ctx context.Context, muted bool) (*castv2.Volume, error) {
	return c.setVolume(ctx, castv2.Volume{Muted: &muted})
}

func (c *Client) setVolume(ctx context.Context, volume castv2.Volume) (*castv2.Volume, error) {
	payload := &castv2.SetVolumePayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeSetVolume},
		Volume:         volume,
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceReceiver, castv2.PlatformReceiverID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	status, err := receiverStatusOf(msg)
	if err != nil {
		return nil, err
	}
	return &status.Volume, nil
}

// LaunchMediaReceiver launches the stock media receiver application
func (c *Client) LaunchMediaReceiver(ctx context.Context) (*castv2.Application, error) {
	return c.Launch(ctx, DefaultMediaReceiverAppID)
}

// MediaStatus retrieves the media session status from the given application
func (c *Client) MediaStatus(ctx context.Context, app *castv2.Application) ([]castv2.MediaStatus, error) {
	if err := c.connectApp(app); err != nil {
		return nil, err
	}

	payload := &castv2.GetStatusPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeGetStatus},
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceMedia, app.TransportID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return mediaStatusesOf(msg)
}

// Load asks the application to load media content. With autoplay the session
// starts playing as soon as it is ready.
func (c *Client) Load(ctx context.Context, app *castv2.Application, media castv2.MediaInformation, autoplay bool) (*castv2.MediaStatus, error) {
	if err := c.connectApp(app); err != nil {
		return nil, err
	}

	payload := &castv2.LoadPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeLoad},
		Media:          media,
		Autoplay:       autoplay,
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceMedia, app.TransportID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return firstMediaStatusOf(msg)
}

// Play resumes playback of an existing media session
func (c *Client) Play(ctx context.Context, app *castv2.Application, mediaSessionID int) (*castv2.MediaStatus, error) {
	return c.mediaCommand(ctx, app, castv2.TypePlay, mediaSessionID)
}

// Pause pauses playback of an existing media session
func (c *Client) Pause(ctx context.Context, app *castv2.Application, mediaSessionID int) (*castv2.MediaStatus, error) {
	return c.mediaCommand(ctx, app, castv2.TypePause, mediaSessionID)
}

// StopMedia stops playback and unloads the media session
func (c *Client) StopMedia(ctx context.Context, app *castv2.Application, mediaSessionID int) (*castv2.MediaStatus, error) {
	return c.mediaCommand(ctx, app, castv2.TypeStop, mediaSessionID)
}

// Seek repositions playback within an existing media session
func (c *Client) Seek(ctx context.Context, app *castv2.Application, mediaSessionID int, position float64) (*castv2.MediaStatus, error) {
	if err := c.connectApp(app); err != nil {
		return nil, err
	}

	payload := &castv2.SeekPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeSeek},
		MediaSessionID: mediaSessionID,
		CurrentTime:    position,
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceMedia, app.TransportID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return firstMediaStatusOf(msg)
}

func (c *Client) mediaCommand(ctx context.Context, app *castv2.Application, msgType string, mediaSessionID int) (*castv2.MediaStatus, error) {
	if err := c.connectApp(app); err != nil {
		return nil, err
	}

	payload := &castv2.MediaCommandPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: msgType},
		MediaSessionID: mediaSessionID,
	}
	msg, err := c.transport.Request(ctx, castv2.NamespaceMedia, app.TransportID, payload, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return firstMediaStatusOf(msg)
}

// connectApp opens the virtual connection to an application's transport.
// Media commands are ignored by the receiver without it.
func (c *Client) connectApp(app *castv2.Application) error {
	if app == nil || app.TransportID == "" {
		return castv2.NewDeviceError("application has no transport id", nil)
	}

	c.appMu.Lock()
	_, connected := c.appConns[app.TransportID]
	c.appMu.Unlock()
	if connected {
		return nil
	}

	connect := &castv2.ConnectPayload{
		PayloadHeaders: castv2.PayloadHeaders{Type: castv2.TypeConnect},
	}
	if err := c.transport.Send(castv2.NamespaceConnection, app.TransportID, connect); err != nil {
		return err
	}

	c.appMu.Lock()
	c.appConns[app.TransportID] = struct{}{}
	c.appMu.Unlock()
	return nil
}

// receiverStatusOf extracts the receiver status from a response, mapping
// receiver-reported failures to device errors
func receiverStatusOf(msg *castv2.DecodedMessage) (*castv2.ReceiverStatus, error) {
	if err := deviceErrorOf(msg); err != nil {
		return nil, err
	}
	if msg.Kind != castv2.KindReceiverStatus || msg.ReceiverStatus == nil {
		return nil, castv2.NewUnexpectedResponseError(
			fmt.Sprintf("expected a receiver status, got %s", msg.Kind), msg)
	}
	return msg.ReceiverStatus, nil
}

// mediaStatusesOf extracts the media session list from a response
func mediaStatusesOf(msg *castv2.DecodedMessage) ([]castv2.MediaStatus, error) {
	if err := deviceErrorOf(msg); err != nil {
		return nil, err
	}
	if msg.Kind != castv2.KindMediaStatus {
		return nil, castv2.NewUnexpectedResponseError(
			fmt.Sprintf("expected a media status, got %s", msg.Kind), msg)
	}
	return msg.MediaStatuses, nil
}

// firstMediaStatusOf extracts the first media session from a response. Media
// commands address one session, so the receiver answers with exactly one.
func firstMediaStatusOf(msg *castv2.DecodedMessage) (*castv2.MediaStatus, error) {
	statuses, err := mediaStatusesOf(msg)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, castv2.NewUnexpectedResponseError("media status response carried no session", msg)
	}
	return &statuses[0], nil
}

// deviceErrorOf maps receiver-reported failures (LAUNCH_ERROR,
// INVALID_REQUEST, LOAD_FAILED, LOAD_CANCELLED) to device errors
func deviceErrorOf(msg *castv2.DecodedMessage) error {
	if msg.Kind != castv2.KindDeviceError {
		return nil
	}
	detail := msg.Type
	if msg.Reason != "" {
		detail = fmt.Sprintf("%s (%s)", msg.Type, msg.Reason)
	}
	return castv2.NewDeviceError("receiver rejected request: "+detail, msg.Raw)
}
