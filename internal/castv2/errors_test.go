package castv2

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       *CastError
		predicate func(error) bool
		retryable bool
	}{
		{"connection", NewConnectionError("dial failed", errors.New("refused")), IsConnectionError, true},
		{"closed", NewClosedError("channel closed"), IsConnectionError, true},
		{"framing", NewFramingError("truncated", nil), IsFramingError, false},
		{"decode", NewDecodeError("bad JSON", "{oops", nil), IsDecodeError, false},
		{"timeout", NewTimeoutError("no response within 10s"), IsTimeoutError, true},
		{"device", NewDeviceError("launch rejected", map[string]any{"reason": "CANCELLED"}), IsDeviceError, false},
		{"unexpected response", NewUnexpectedResponseError("wanted RECEIVER_STATUS", &DecodedMessage{Kind: KindUnknown}), IsUnexpectedResponseError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.predicate(tt.err) {
				t.Errorf("predicate rejected its own error type: %v", tt.err)
			}
			if IsRetryable(tt.err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(tt.err), tt.retryable)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewConnectionError("receive loop terminated", cause)

	msg := err.Error()
	if !strings.Contains(msg, "receive loop terminated") {
		t.Errorf("Error() = %q, missing message", msg)
	}
	if !strings.Contains(msg, "connection reset by peer") {
		t.Errorf("Error() = %q, missing cause", msg)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestDecodeErrorCarriesRawText(t *testing.T) {
	err := NewDecodeError("malformed payload", `{"type":`, nil)
	if err.RawText != `{"type":` {
		t.Errorf("RawText = %q, diagnostics text not preserved", err.RawText)
	}
}

func TestDeviceErrorCarriesPayload(t *testing.T) {
	payload := map[string]any{"type": "LAUNCH_ERROR", "reason": "NOT_FOUND"}
	err := NewDeviceError("launch failed", payload)
	if err.Payload["reason"] != "NOT_FOUND" {
		t.Errorf("Payload = %v, receiver payload not preserved", err.Payload)
	}
}

func TestPredicatesRejectForeignErrors(t *testing.T) {
	plain := errors.New("not a cast error")
	for name, predicate := range map[string]func(error) bool{
		"IsConnectionError":         IsConnectionError,
		"IsFramingError":            IsFramingError,
		"IsDecodeError":             IsDecodeError,
		"IsTimeoutError":            IsTimeoutError,
		"IsDeviceError":             IsDeviceError,
		"IsUnexpectedResponseError": IsUnexpectedResponseError,
		"IsRetryable":               IsRetryable,
	} {
		if predicate(plain) {
			t.Errorf("%s accepted a plain error", name)
		}
	}
}
