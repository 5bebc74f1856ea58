package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T from bus into ch for
// select-loop consumers such as SSE handlers. Publishing never blocks: when
// ch is full the oldest queued event is dropped so the newest state wins.
func SubscribeToChannel[T Event](bus *Bus, ch chan any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		for range 2 {
			select {
			case ch <- e:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})
}

// SubscribeSessionEvents forwards the session lifecycle and screen events,
// everything a status view needs except frames and logs, into ch.
func SubscribeSessionEvents(bus *Bus, ch chan any) func() {
	unsubs := []func(){
		SubscribeToChannel[ConnectedEvent](bus, ch),
		SubscribeToChannel[DisconnectedEvent](bus, ch),
		SubscribeToChannel[WaitTimeoutEvent](bus, ch),
		SubscribeToChannel[ScreenOnEvent](bus, ch),
		SubscribeToChannel[ScreenOffEvent](bus, ch),
		SubscribeToChannel[StatusMessageEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
