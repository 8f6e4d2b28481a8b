package castv2

import (
	"encoding/json"
)

// Kind classifies a resolved inbound message
type Kind int

const (
	// KindUnknown is the catch-all for payloads with a missing or
	// unrecognized discriminator; the parsed JSON is carried in Raw
	KindUnknown Kind = iota
	// KindReceiverStatus is a platform receiver status push/response
	KindReceiverStatus
	// KindMediaStatus is a media application status push/response
	KindMediaStatus
	// KindCustom is an application message on an application namespace
	KindCustom
	// KindClose is a virtual-connection close notification
	KindClose
	// KindPing is a receiver-initiated liveness probe
	KindPing
	// KindPong is a liveness acknowledgment
	KindPong
	// KindDeviceError is an explicit receiver error payload
	// (LAUNCH_ERROR, INVALID_REQUEST, LOAD_FAILED, LOAD_CANCELLED)
	KindDeviceError
	// KindParseFailure is a payload that was not well-formed JSON; the
	// original text is carried in RawText for diagnostics
	KindParseFailure
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindReceiverStatus:
		return "receiver_status"
	case KindMediaStatus:
		return "media_status"
	case KindCustom:
		return "custom"
	case KindClose:
		return "close"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindDeviceError:
		return "device_error"
	case KindParseFailure:
		return "parse_failure"
	default:
		return "invalid"
	}
}

// DecodedMessage is the result of resolving one inbound frame. It is a tagged
// union: Kind selects which typed field (if any) is populated. Raw always
// holds the parsed-but-untyped JSON for well-formed payloads so callers can
// inspect fields the typed decode does not cover.
type DecodedMessage struct {
	Kind Kind

	// Envelope fields extracted from the payload
	Namespace     string
	SourceID      string
	DestinationID string

	// Type is the raw discriminator string, empty when absent
	Type string

	// RequestID is the correlation id, 0 when absent
	RequestID int

	// Reason carries the receiver's reason code for device errors
	Reason string

	ReceiverStatus *ReceiverStatus
	MediaStatuses  []MediaStatus

	// Raw is the parsed untyped JSON body (nil for parse failures)
	Raw map[string]any

	// RawText is the original unparsed text (parse failures only)
	RawText string
}

// inboundMessage is the typed view of an inbound payload used during
// resolution. Status stays raw because its shape depends on the discriminator.
type inboundMessage struct {
	Envelope
	Type         string          `json:"type"`
	ResponseType string          `json:"responseType"`
	RequestID    int             `json:"requestId"`
	Reason       string          `json:"reason"`
	Status       json.RawMessage `json:"status"`
}

// Resolve decodes one frame payload into a DecodedMessage. It is pure and
// never fails: malformed JSON yields a KindParseFailure message and an
// unrecognized discriminator yields KindUnknown, so a bad frame can never
// take down the receive loop.
func Resolve(payload []byte) *DecodedMessage {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return &DecodedMessage{
			Kind:    KindParseFailure,
			RawText: string(payload),
		}
	}

	// The typed view cannot fail once the map decode succeeded, but a field
	// of the wrong JSON type can; that degrades to the raw variant below
	var in inboundMessage
	typedOK := json.Unmarshal(payload, &in) == nil

	msg := &DecodedMessage{
		Kind:          KindUnknown,
		Namespace:     in.Namespace,
		SourceID:      in.SourceID,
		DestinationID: in.DestinationID,
		Type:          in.Type,
		RequestID:     in.RequestID,
		Reason:        in.Reason,
		Raw:           raw,
	}
	if !typedOK {
		return msg
	}

	// "type" is the primary discriminator; "responseType" is the secondary
	// one some response payloads use instead
	discriminator := in.Type
	if discriminator == "" {
		discriminator = in.ResponseType
		msg.Type = discriminator
	}

	switch discriminator {
	case TypeReceiverStatus:
		var status ReceiverStatus
		if len(in.Status) > 0 && json.Unmarshal(in.Status, &status) == nil {
			msg.Kind = KindReceiverStatus
			msg.ReceiverStatus = &status
		}

	case TypeMediaStatus:
		msg.Kind = KindMediaStatus
		msg.MediaStatuses = resolveMediaStatuses(in.Status)

	case TypeClose:
		msg.Kind = KindClose

	case TypePing:
		msg.Kind = KindPing

	case TypePong:
		msg.Kind = KindPong

	case TypeLaunchError, TypeInvalidRequest, TypeLoadFailed, TypeLoadCancelled:
		msg.Kind = KindDeviceError
	}

	return msg
}

// resolveMediaStatuses decodes the "status" field of a MEDIA_STATUS payload.
// The receiver emits both a list form and a bare-object form for the same
// logical event; the list form is tried first, then the bare object. When
// neither decodes there is simply no status update, not an error.
func resolveMediaStatuses(status json.RawMessage) []MediaStatus {
	if len(status) == 0 {
		return nil
	}

	var list []MediaStatus
	if err := json.Unmarshal(status, &list); err == nil && len(list) > 0 {
		return list
	}

	// Fall back to the bare single-status object form
	var single MediaStatus
	if err := json.Unmarshal(status, &single); err == nil {
		return []MediaStatus{single}
	}

	return nil
}

// Clone returns a deep copy of the message. Broadcast paths hand each
// listener its own clone of mutable unknown payloads so one listener's
// mutation cannot affect another's view.
func (m *DecodedMessage) Clone() *DecodedMessage {
	if m == nil {
		return nil
	}

	clone := *m

	if m.Raw != nil {
		clone.Raw = cloneValue(m.Raw).(map[string]any)
	}
	if m.ReceiverStatus != nil {
		rs := *m.ReceiverStatus
		rs.Applications = append([]Application(nil), m.ReceiverStatus.Applications...)
		clone.ReceiverStatus = &rs
	}
	if m.MediaStatuses != nil {
		clone.MediaStatuses = append([]MediaStatus(nil), m.MediaStatuses...)
	}

	return &clone
}

// cloneValue deep-copies the JSON value shapes produced by encoding/json
// (maps, slices, scalars)
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return val
	}
}
