package castv2

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize is the size of the length prefix in bytes
	HeaderSize = 4

	// MaxPayloadSize is the largest payload representable by the 4-byte
	// unsigned length prefix. Receivers in practice never approach this,
	// but the codec enforces it rather than silently truncating.
	MaxPayloadSize = 1<<32 - 1

	// MaxFrameSize caps the length prefix ReadFrame will honor. A hostile
	// or corrupted prefix must not drive a multi-gigabyte allocation;
	// real receiver messages stay far below this.
	MaxFrameSize = 1 << 20
)

// WriteFrame encodes payload as a length-prefixed frame and writes it to w.
// The write is a single Write call so callers holding a write lock never
// interleave partial frames on the wire.
func WriteFrame(w io.Writer, payload []byte) error {
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}

	if _, err := w.Write(frame); err != nil {
		return NewConnectionError("failed to write frame", err)
	}
	return nil
}

// EncodeFrame returns the wire encoding of payload: a 4-byte big-endian
// unsigned length followed by the payload bytes.
func EncodeFrame(payload []byte) ([]byte, error) {
	if uint64(len(payload)) > MaxPayloadSize {
		return nil, NewFramingError("payload exceeds maximum frame size", nil)
	}

	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// ReadFrame reads one complete frame from r and returns its payload.
//
// The length prefix is an unsigned big-endian integer; a high bit in the
// first byte must not produce a negative length, so the value is widened
// through uint32 rather than reconstructed from signed bytes.
//
// A clean EOF before any length byte is returned as io.EOF so callers can
// distinguish an orderly peer close from a corrupted stream. EOF after a
// partial length prefix, or after the peer declared a length it never
// delivered, is a framing error.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			// Stream ended on a frame boundary
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, NewFramingError("stream truncated inside length prefix", err)
		}
		return nil, NewConnectionError("failed to read frame header", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, NewFramingError("frame length exceeds maximum", nil)
	}
	if length == 0 {
		return []byte{}, nil
	}

	// io.ReadFull loops over short reads internally, so a partial frame is
	// never returned
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, NewFramingError("stream truncated inside frame payload", err)
		}
		return nil, NewConnectionError("failed to read frame payload", err)
	}

	return payload, nil
}
