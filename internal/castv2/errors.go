package castv2

import (
	"fmt"
)

// Error types for protocol channel operations

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeConnection indicates a transport-level failure (refused, timed
	// out, handshake failed, unexpectedly closed)
	ErrTypeConnection ErrorType = iota
	// ErrTypeFraming indicates a wire framing failure (truncated length
	// prefix, truncated payload, oversized frame)
	ErrTypeFraming
	// ErrTypeDecode indicates a malformed JSON payload
	ErrTypeDecode
	// ErrTypeTimeout indicates no response arrived within the deadline
	ErrTypeTimeout
	// ErrTypeDevice indicates the receiver returned an explicit
	// application-level error payload
	ErrTypeDevice
	// ErrTypeUnexpectedResponse indicates a response arrived but did not
	// match the shape the caller expected
	ErrTypeUnexpectedResponse
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeFraming:
		return "Framing Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeDevice:
		return "Device Error"
	case ErrTypeUnexpectedResponse:
		return "Unexpected Response"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// CastError represents an error surfaced by the protocol channel
type CastError struct {
	Type      ErrorType       // Category of error
	Message   string          // Human-readable error message
	Err       error           // Underlying error (if any)
	RawText   string          // Unparsed payload text (decode errors)
	Payload   map[string]any  // Receiver error payload (device errors)
	Response  *DecodedMessage // The mismatched response (unexpected-response errors)
	Retryable bool            // Whether the operation may be retried
}

// Error implements the error interface
func (e *CastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *CastError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a transport-level error
func NewConnectionError(message string, err error) *CastError {
	return &CastError{
		Type:      ErrTypeConnection,
		Message:   message,
		Err:       err,
		Retryable: true,
	}
}

// NewClosedError creates a connection error representing a channel that was
// closed while work was outstanding. Pending requests are failed with this
// error so callers never hang past a disconnect.
func NewClosedError(message string) *CastError {
	return &CastError{
		Type:      ErrTypeConnection,
		Message:   message,
		Retryable: true,
	}
}

// NewFramingError creates a wire framing error
func NewFramingError(message string, err error) *CastError {
	return &CastError{
		Type:      ErrTypeFraming,
		Message:   message,
		Err:       err,
		Retryable: false,
	}
}

// NewDecodeError creates a decode error carrying the raw unparsed text
// for diagnostics
func NewDecodeError(message string, rawText string, err error) *CastError {
	return &CastError{
		Type:      ErrTypeDecode,
		Message:   message,
		Err:       err,
		RawText:   rawText,
		Retryable: false,
	}
}

// NewTimeoutError creates a correlation timeout error
func NewTimeoutError(message string) *CastError {
	return &CastError{
		Type:      ErrTypeTimeout,
		Message:   message,
		Retryable: true,
	}
}

// NewDeviceError creates an error from an explicit receiver error payload.
// The payload is preserved so callers can inspect reason codes.
func NewDeviceError(message string, payload map[string]any) *CastError {
	return &CastError{
		Type:      ErrTypeDevice,
		Message:   message,
		Payload:   payload,
		Retryable: false,
	}
}

// NewUnexpectedResponseError creates an error for a response that arrived but
// did not match the expected shape. The untyped response is preserved so the
// caller can still inspect it.
func NewUnexpectedResponseError(message string, response *DecodedMessage) *CastError {
	return &CastError{
		Type:      ErrTypeUnexpectedResponse,
		Message:   message,
		Response:  response,
		Retryable: false,
	}
}

// IsConnectionError checks if an error is a transport-level error
func IsConnectionError(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Type == ErrTypeConnection
	}
	return false
}

// IsFramingError checks if an error is a wire framing error
func IsFramingError(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Type == ErrTypeFraming
	}
	return false
}

// IsDecodeError checks if an error is a payload decode error
func IsDecodeError(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Type == ErrTypeDecode
	}
	return false
}

// IsTimeoutError checks if an error is a correlation timeout
func IsTimeoutError(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Type == ErrTypeTimeout
	}
	return false
}

// IsDeviceError checks if an error is a receiver-reported error.
// Device errors are the one category where retrying is usually pointless:
// the receiver understood the request and rejected it.
func IsDeviceError(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Type == ErrTypeDevice
	}
	return false
}

// IsUnexpectedResponseError checks if an error is a response-shape mismatch
func IsUnexpectedResponseError(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Type == ErrTypeUnexpectedResponse
	}
	return false
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	if castErr, ok := err.(*CastError); ok {
		return castErr.Retryable
	}
	// Unknown errors are not retryable by default
	return false
}
