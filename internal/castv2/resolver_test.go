package castv2

import (
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		verify  func(t *testing.T, msg *DecodedMessage)
	}{
		{
			name: "receiver status",
			payload: `{
				"namespace": "urn:x-cast:com.google.cast.receiver",
				"sourceId": "receiver-0",
				"destinationId": "sender-0",
				"type": "RECEIVER_STATUS",
				"requestId": 7,
				"status": {
					"applications": [{
						"appId": "CC1AD845",
						"sessionId": "abc-123",
						"transportId": "transport-1",
						"displayName": "Default Media Receiver"
					}],
					"volume": {"level": 0.5, "muted": false}
				}
			}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindReceiverStatus {
					t.Fatalf("Kind = %v, want receiver_status", msg.Kind)
				}
				if msg.RequestID != 7 {
					t.Errorf("RequestID = %d, want 7", msg.RequestID)
				}
				if msg.SourceID != "receiver-0" {
					t.Errorf("SourceID = %q, want receiver-0", msg.SourceID)
				}
				app := msg.ReceiverStatus.GetApplication("CC1AD845")
				if app == nil {
					t.Fatal("application CC1AD845 not found in status")
				}
				if app.TransportID != "transport-1" {
					t.Errorf("TransportID = %q, want transport-1", app.TransportID)
				}
				if msg.ReceiverStatus.Volume.Level == nil || *msg.ReceiverStatus.Volume.Level != 0.5 {
					t.Errorf("volume level = %v, want 0.5", msg.ReceiverStatus.Volume.Level)
				}
			},
		},
		{
			name: "media status list form",
			payload: `{
				"type": "MEDIA_STATUS",
				"requestId": 2,
				"status": [
					{"mediaSessionId": 1, "playerState": "PLAYING", "currentTime": 42.5},
					{"mediaSessionId": 2, "playerState": "PAUSED"}
				]
			}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindMediaStatus {
					t.Fatalf("Kind = %v, want media_status", msg.Kind)
				}
				if len(msg.MediaStatuses) != 2 {
					t.Fatalf("len(MediaStatuses) = %d, want 2", len(msg.MediaStatuses))
				}
				if msg.MediaStatuses[0].PlayerState != PlayerStatePlaying {
					t.Errorf("PlayerState = %q, want PLAYING", msg.MediaStatuses[0].PlayerState)
				}
			},
		},
		{
			name: "media status bare object fallback",
			payload: `{
				"type": "MEDIA_STATUS",
				"status": {"mediaSessionId": 9, "playerState": "BUFFERING"}
			}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindMediaStatus {
					t.Fatalf("Kind = %v, want media_status", msg.Kind)
				}
				if len(msg.MediaStatuses) != 1 {
					t.Fatalf("len(MediaStatuses) = %d, want 1", len(msg.MediaStatuses))
				}
				if msg.MediaStatuses[0].MediaSessionID != 9 {
					t.Errorf("MediaSessionID = %d, want 9", msg.MediaStatuses[0].MediaSessionID)
				}
			},
		},
		{
			name:    "media status with neither form",
			payload: `{"type": "MEDIA_STATUS"}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				// No status update, but still a media-status message and
				// never an error
				if msg.Kind != KindMediaStatus {
					t.Fatalf("Kind = %v, want media_status", msg.Kind)
				}
				if len(msg.MediaStatuses) != 0 {
					t.Errorf("len(MediaStatuses) = %d, want 0", len(msg.MediaStatuses))
				}
			},
		},
		{
			name:    "empty status list with no bare object",
			payload: `{"type": "MEDIA_STATUS", "status": []}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindMediaStatus {
					t.Fatalf("Kind = %v, want media_status", msg.Kind)
				}
				if len(msg.MediaStatuses) != 0 {
					t.Errorf("len(MediaStatuses) = %d, want 0", len(msg.MediaStatuses))
				}
			},
		},
		{
			name:    "responseType discriminator fallback",
			payload: `{"responseType": "RECEIVER_STATUS", "requestId": 4, "status": {"volume": {}}}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindReceiverStatus {
					t.Fatalf("Kind = %v, want receiver_status", msg.Kind)
				}
				if msg.Type != TypeReceiverStatus {
					t.Errorf("Type = %q, want RECEIVER_STATUS", msg.Type)
				}
			},
		},
		{
			name:    "close notification",
			payload: `{"namespace": "urn:x-cast:com.google.cast.tp.connection", "type": "CLOSE"}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindClose {
					t.Errorf("Kind = %v, want close", msg.Kind)
				}
			},
		},
		{
			name:    "ping",
			payload: `{"type": "PING"}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindPing {
					t.Errorf("Kind = %v, want ping", msg.Kind)
				}
			},
		},
		{
			name:    "pong",
			payload: `{"type": "PONG"}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindPong {
					t.Errorf("Kind = %v, want pong", msg.Kind)
				}
			},
		},
		{
			name:    "launch error",
			payload: `{"type": "LAUNCH_ERROR", "requestId": 5, "reason": "CANCELLED"}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindDeviceError {
					t.Fatalf("Kind = %v, want device_error", msg.Kind)
				}
				if msg.Reason != "CANCELLED" {
					t.Errorf("Reason = %q, want CANCELLED", msg.Reason)
				}
				if msg.RequestID != 5 {
					t.Errorf("RequestID = %d, want 5", msg.RequestID)
				}
			},
		},
		{
			name:    "unknown discriminator",
			payload: `{"type": "WHO_KNOWS", "widget": {"count": 3}}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindUnknown {
					t.Fatalf("Kind = %v, want unknown", msg.Kind)
				}
				if msg.Raw == nil {
					t.Fatal("Raw should carry the parsed JSON")
				}
				if msg.Raw["type"] != "WHO_KNOWS" {
					t.Errorf("Raw[type] = %v, want WHO_KNOWS", msg.Raw["type"])
				}
			},
		},
		{
			name:    "missing discriminator",
			payload: `{"data": [1, 2, 3]}`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindUnknown {
					t.Fatalf("Kind = %v, want unknown", msg.Kind)
				}
				if msg.Type != "" {
					t.Errorf("Type = %q, want empty", msg.Type)
				}
			},
		},
		{
			name:    "malformed JSON",
			payload: `{"type": "PING"`,
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindParseFailure {
					t.Fatalf("Kind = %v, want parse_failure", msg.Kind)
				}
				if msg.RawText != `{"type": "PING"` {
					t.Errorf("RawText = %q, original text not preserved", msg.RawText)
				}
				if msg.Raw != nil {
					t.Error("Raw should be nil for a parse failure")
				}
			},
		},
		{
			name:    "not JSON at all",
			payload: "\x7e\x03\x00\x01",
			verify: func(t *testing.T, msg *DecodedMessage) {
				if msg.Kind != KindParseFailure {
					t.Fatalf("Kind = %v, want parse_failure", msg.Kind)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.verify(t, Resolve([]byte(tt.payload)))
		})
	}
}

func TestDecodedMessageClone(t *testing.T) {
	msg := Resolve([]byte(`{"type": "MYSTERY", "nested": {"list": [1, 2], "name": "a"}}`))
	if msg.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want unknown", msg.Kind)
	}

	clone := msg.Clone()

	// Mutating the clone's raw payload must not leak into the original
	nested := clone.Raw["nested"].(map[string]any)
	nested["name"] = "mutated"
	nested["list"].([]any)[0] = 99

	origNested := msg.Raw["nested"].(map[string]any)
	if origNested["name"] != "a" {
		t.Errorf("original nested name = %v, clone mutation leaked through", origNested["name"])
	}
	if origNested["list"].([]any)[0] != float64(1) {
		t.Errorf("original nested list = %v, clone mutation leaked through", origNested["list"])
	}
}

func TestCloneNil(t *testing.T) {
	var msg *DecodedMessage
	if msg.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
