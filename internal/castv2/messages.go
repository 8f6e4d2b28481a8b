package castv2

// Protocol namespaces (sub-channels multiplexed over one socket)
const (
	NamespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	NamespaceHeartbeat  = "urn:x-cast:com.google.cast.tp.heartbeat"
	NamespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
	NamespaceMedia      = "urn:x-cast:com.google.cast.media"
)

// Well-known endpoint identifiers
const (
	// SenderID is the default source id for outbound traffic
	SenderID = "sender-0"

	// PlatformReceiverID addresses the receiver platform itself (as opposed
	// to a running application, which is addressed by its transport id)
	PlatformReceiverID = "receiver-0"

	// BroadcastID is used by the receiver for unsolicited pushes
	BroadcastID = "*"
)

// Message type discriminators (the "type"/"responseType" field)
const (
	TypeConnect        = "CONNECT"
	TypeClose          = "CLOSE"
	TypePing           = "PING"
	TypePong           = "PONG"
	TypeGetStatus      = "GET_STATUS"
	TypeLaunch         = "LAUNCH"
	TypeStop           = "STOP"
	TypeSetVolume      = "SET_VOLUME"
	TypeLoad           = "LOAD"
	TypePlay           = "PLAY"
	TypePause          = "PAUSE"
	TypeSeek           = "SEEK"
	TypeReceiverStatus = "RECEIVER_STATUS"
	TypeMediaStatus    = "MEDIA_STATUS"
	TypeLaunchError    = "LAUNCH_ERROR"
	TypeInvalidRequest = "INVALID_REQUEST"
	TypeLoadFailed     = "LOAD_FAILED"
	TypeLoadCancelled  = "LOAD_CANCELLED"
)

// Envelope carries the addressing fields of one protocol message. They live
// inside the frame's JSON body alongside the payload fields and must be
// echoed correctly on outbound requests.
type Envelope struct {
	Namespace     string `json:"namespace"`
	SourceID      string `json:"sourceId"`
	DestinationID string `json:"destinationId"`
}

// PayloadHeaders is embedded by every outbound payload. RequestID is set by
// the channel when a response is expected; it stays nil (and is omitted from
// the JSON) for fire-and-forget messages.
type PayloadHeaders struct {
	Type      string `json:"type"`
	RequestID *int   `json:"requestId,omitempty"`
}

// SetRequestID stamps the correlation id onto an outbound payload.
// The channel calls this; commands never set it themselves.
func (h *PayloadHeaders) SetRequestID(id int) {
	h.RequestID = &id
}

// Correlatable is implemented by outbound payloads that can carry a
// correlation id. Embedding PayloadHeaders satisfies it.
type Correlatable interface {
	SetRequestID(id int)
}

// ConnectPayload opens a virtual connection to an endpoint
type ConnectPayload struct {
	PayloadHeaders
	UserAgent string `json:"userAgent,omitempty"`
}

// ClosePayload closes a virtual connection
type ClosePayload struct {
	PayloadHeaders
}

// PingPayload is the periodic liveness probe
type PingPayload struct {
	PayloadHeaders
}

// PongPayload answers a receiver-initiated PING
type PongPayload struct {
	PayloadHeaders
}

// GetStatusPayload requests the current receiver or media status
type GetStatusPayload struct {
	PayloadHeaders
}

// LaunchPayload asks the platform receiver to launch an application
type LaunchPayload struct {
	PayloadHeaders
	AppID string `json:"appId"`
}

// StopPayload asks the platform receiver to stop a running session
type StopPayload struct {
	PayloadHeaders
	SessionID string `json:"sessionId"`
}

// SetVolumePayload changes the receiver volume or mute state
type SetVolumePayload struct {
	PayloadHeaders
	Volume Volume `json:"volume"`
}

// LoadPayload asks a media receiver application to load content
type LoadPayload struct {
	PayloadHeaders
	Media       MediaInformation `json:"media"`
	Autoplay    bool             `json:"autoplay"`
	CurrentTime float64          `json:"currentTime"`
}

// MediaCommandPayload addresses an existing media session (PLAY, PAUSE, STOP)
type MediaCommandPayload struct {
	PayloadHeaders
	MediaSessionID int `json:"mediaSessionId"`
}

// SeekPayload repositions playback within an existing media session
type SeekPayload struct {
	PayloadHeaders
	MediaSessionID int     `json:"mediaSessionId"`
	CurrentTime    float64 `json:"currentTime"`
	ResumeState    string  `json:"resumeState,omitempty"`
}

// Typed payload DTOs. These are inert value objects; the resolver fills them
// and the client reads them, nothing more.

// Volume is the receiver volume state. Level and Muted are pointers because
// the receiver omits fields it is not reporting, and absent is not zero.
type Volume struct {
	Level *float64 `json:"level,omitempty"`
	Muted *bool    `json:"muted,omitempty"`
}

// Application describes one application running on the receiver
type Application struct {
	AppID       string      `json:"appId"`
	SessionID   string      `json:"sessionId"`
	TransportID string      `json:"transportId"`
	DisplayName string      `json:"displayName"`
	StatusText  string      `json:"statusText"`
	IsIdleScreen bool       `json:"isIdleScreen"`
	Namespaces  []Namespace `json:"namespaces"`
}

// Namespace is one protocol sub-channel an application listens on
type Namespace struct {
	Name string `json:"name"`
}

// ReceiverStatus is the platform receiver status push/response
type ReceiverStatus struct {
	Applications []Application `json:"applications"`
	Volume       Volume        `json:"volume"`
}

// GetApplication returns the running application with the given appID,
// or nil if it is not running
func (s *ReceiverStatus) GetApplication(appID string) *Application {
	for i := range s.Applications {
		if s.Applications[i].AppID == appID {
			return &s.Applications[i]
		}
	}
	return nil
}

// MediaInformation describes the content of a media session
type MediaInformation struct {
	ContentID   string         `json:"contentId"`
	ContentType string         `json:"contentType"`
	StreamType  string         `json:"streamType"`
	Duration    float64        `json:"duration,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MediaStatus is the media application status push/response for one session
type MediaStatus struct {
	MediaSessionID         int               `json:"mediaSessionId"`
	PlayerState            string            `json:"playerState"`
	CurrentTime            float64           `json:"currentTime"`
	SupportedMediaCommands int               `json:"supportedMediaCommands"`
	IdleReason             string            `json:"idleReason,omitempty"`
	Volume                 Volume            `json:"volume"`
	Media                  *MediaInformation `json:"media,omitempty"`
}

// Player states reported in MediaStatus.PlayerState
const (
	PlayerStateIdle      = "IDLE"
	PlayerStateBuffering = "BUFFERING"
	PlayerStatePlaying   = "PLAYING"
	PlayerStatePaused    = "PAUSED"
)
