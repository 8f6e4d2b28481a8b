// Package client provides typed, high-level control of a cast receiver.
//
// A Client wraps one protocol channel and exposes the common operations as
// plain method calls: query receiver status, launch and stop applications,
// adjust volume, and drive media sessions (load, play, pause, seek, stop).
// Media commands require a virtual connection to the application's own
// transport; the client opens and tracks those connections automatically.
//
// Receiver-reported failures such as LAUNCH_ERROR and INVALID_REQUEST come
// back as device errors, and responses of the wrong shape as
// unexpected-response errors, so callers can branch on the error taxonomy in
// the castv2 package.
package client
