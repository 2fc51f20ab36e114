package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for typed event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers an event to all subscribers of its type.
// Usage: bus.Publish(StreamStateChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type, so each event type
	// needs its own generic Publish call.
	switch e := ev.(type) {
	case StreamStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CameraDiscoveredEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects which
// events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e StreamStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StreamStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CameraDiscoveredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
