package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ConnectedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the concrete type
	switch e := ev.(type) {
	case FrameReadyEvent:
		event.Publish(b.dispatcher, e)
	case ConnectedEvent:
		event.Publish(b.dispatcher, e)
	case DisconnectedEvent:
		event.Publish(b.dispatcher, e)
	case WaitTimeoutEvent:
		event.Publish(b.dispatcher, e)
	case ScreenOnEvent:
		event.Publish(b.dispatcher, e)
	case ScreenOffEvent:
		event.Publish(b.dispatcher, e)
	case StatusMessageEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ScreenOffEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(FrameReadyEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DisconnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(WaitTimeoutEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ScreenOnEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ScreenOffEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatusMessageEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
