// Package listener provides a thread-safe, filterable broadcast registry.
//
// The protocol channel uses one registry for spontaneous device events and
// one for connection-state changes, but the type is generic over any
// comparable listener and event-kind type.
//
// # Filtering
//
// Each listener carries an optional set of event kinds. An empty set means
// "receive everything". Re-adding a listener merges new kinds into its
// existing set; re-adding with zero kinds clears the set back to
// "everything". Filters are per-listener: one listener's filter never
// affects what another receives.
//
// # Snapshots
//
// Iteration and delivery work over point-in-time snapshots, so listeners can
// be added or removed from any goroutine, including from inside a listener
// callback, without invalidating an in-flight broadcast. A broadcast never
// observes a listener registered after its snapshot was taken.
//
// # Dispatch
//
//	reg := listener.NewRegistry[EventListener, castv2.Kind]()
//	reg.Add(l, castv2.KindMediaStatus)
//	reg.Fire(castv2.KindMediaStatus, func(l EventListener) {
//	    l.OnEvent(msg)
//	})
//
// Fire delivers synchronously in registration order. FireAsync dispatches
// the whole broadcast as one background unit and reports (rather than
// propagates) a panicking listener, so one bad listener cannot abort
// delivery to the others.
package listener
