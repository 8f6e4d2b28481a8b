// Package relay serves receiver events over websockets.
//
// The relay server registers as a listener on a protocol channel and
// re-publishes everything it hears: spontaneous receiver pushes (status
// changes, media updates, custom application messages) and connection
// lifecycle transitions, each serialized as one JSON text frame.
//
// Clients subscribe at /ws; /status reports the upstream connection state,
// subscriber count, and relay counters. The stream is one-way and
// best-effort: a subscriber that cannot keep up is dropped so the protocol
// receive loop is never held back by a slow reader.
package relay
