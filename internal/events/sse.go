package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel, which is
// what Huma's SSE handler wants to select on. Events are dropped when the
// channel is full so a slow client never blocks the bus.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
