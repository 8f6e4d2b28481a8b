package channel

import (
	"github.com/muurk/castctl/internal/castv2"
)

// EventListener receives spontaneous (non-correlated) messages from the
// receiver. Implementations must not block for long: delivery happens on the
// channel's receive loop.
type EventListener interface {
	OnEvent(msg *castv2.DecodedMessage)
}

// StateListener observes connection lifecycle transitions
type StateListener interface {
	OnStateChange(prev, next State)
}

// EventListenerFunc adapts a function to the EventListener interface.
// Each distinct pointer is a distinct registration identity.
type EventListenerFunc func(msg *castv2.DecodedMessage)

// OnEvent implements EventListener
func (f *EventListenerFunc) OnEvent(msg *castv2.DecodedMessage) {
	(*f)(msg)
}

// StateListenerFunc adapts a function to the StateListener interface
type StateListenerFunc func(prev, next State)

// OnStateChange implements StateListener
func (f *StateListenerFunc) OnStateChange(prev, next State) {
	(*f)(prev, next)
}

// AddEventListener registers a listener for spontaneous events. With zero
// kinds the listener receives every kind; re-adding merges new kinds into
// the existing filter set. Registrations survive disconnect/reconnect
// cycles: they belong to the Channel, not to one connection.
func (c *Channel) AddEventListener(l EventListener, kinds ...castv2.Kind) bool {
	return c.events.Add(l, kinds...)
}

// RemoveEventListener unregisters a listener and reports whether it
// was present
func (c *Channel) RemoveEventListener(l EventListener) bool {
	return c.events.Remove(l)
}

// AddStateListener registers a listener for connection-state transitions.
// With zero states the listener observes every transition; with a filter it
// observes only transitions into the given states.
func (c *Channel) AddStateListener(l StateListener, states ...State) bool {
	return c.states.Add(l, states...)
}

// RemoveStateListener unregisters a state listener and reports whether it
// was present
func (c *Channel) RemoveStateListener(l StateListener) bool {
	return c.states.Remove(l)
}

// broadcast fans one spontaneous message out to every matching event
// listener. Unknown and custom payloads are mutable maps, so each listener
// gets its own deep copy; typed variants are treated as read-only and
// shared.
func (c *Channel) broadcast(msg *castv2.DecodedMessage) {
	kind := msg.Kind
	c.events.Fire(kind, func(l EventListener) {
		if kind == castv2.KindUnknown || kind == castv2.KindCustom || kind == castv2.KindParseFailure {
			l.OnEvent(msg.Clone())
			return
		}
		l.OnEvent(msg)
	})
}

// notifyState informs state listeners of one transition
func (c *Channel) notifyState(prev, next State) {
	c.states.Fire(next, func(l StateListener) {
		l.OnStateChange(prev, next)
	})
}
