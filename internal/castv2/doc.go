// Package castv2 implements the CASTV2 wire codec and message model.
//
// This package handles framing, resolution, and construction of the messages
// castctl exchanges with a media receiver over its persistent TLS connection.
// It is the leaf layer of the sender: pure functions over bytes, no I/O and
// no shared state.
//
// # Wire Format
//
// Every message on the wire is one frame:
//   - Length: 4 bytes, big-endian unsigned integer
//   - Payload: Length bytes of UTF-8 JSON text
//
// The length is unsigned; a high bit in the first length byte is a large
// frame, not a negative one. A peer that declares a length and closes before
// delivering it is a framing error, distinct from an orderly close on a
// frame boundary.
//
// # Message Model
//
// The JSON body carries both the envelope (namespace, sourceId,
// destinationId, requestId) and the payload fields. Inbound payloads are
// classified by the "type" discriminator (falling back to "responseType")
// into a closed set of variants plus an explicit unknown variant.
//
// # Usage Example - Reading
//
//	payload, err := castv2.ReadFrame(conn)
//	if err != nil {
//	    return err
//	}
//
//	msg := castv2.Resolve(payload)
//	switch msg.Kind {
//	case castv2.KindReceiverStatus:
//	    fmt.Printf("volume: %+v\n", msg.ReceiverStatus.Volume)
//	case castv2.KindParseFailure:
//	    fmt.Printf("bad frame: %s\n", msg.RawText)
//	}
//
// Resolve never fails: malformed JSON yields KindParseFailure and an
// unrecognized discriminator yields KindUnknown with the parsed JSON in Raw,
// so one bad frame can never take down a receive loop.
//
// # Status Fallback
//
// MEDIA_STATUS payloads are emitted by receivers in two shapes for the same
// logical event: a "status" list and a bare "status" object. Resolution tries
// the list first, then the bare object; when neither decodes there is simply
// no status update.
//
// # Error Taxonomy
//
// The package also defines the closed error taxonomy surfaced by the protocol
// channel: connection, framing, decode, timeout, device-reported, and
// unexpected-response errors, each constructed via a New* function and
// testable via an Is* predicate.
//
// # Thread Safety
//
// All framing and resolution functions are stateless and safe for
// concurrent use.
package castv2
