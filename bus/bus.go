// Package bus distributes customization events. Components publish commits,
// discoveries and drift reports; HTTP streams and other observers subscribe
// without knowing who produced them.
package bus

// EventBus distributes events to subscribers.
type EventBus interface {
	// Publish assigns the next sequence number, records the event and sends
	// it to all matching subscribers. It returns the stamped event.
	Publish(event Event) Event

	// Subscribe registers a subscriber for one server's events.
	// Returns a Subscription that must be closed when done.
	Subscribe(server string) Subscription

	// SubscribeAll registers a subscriber that receives every event.
	// Returns a Subscription that must be closed when done.
	SubscribeAll() Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan Event

	// Close unsubscribes and releases resources.
	Close() error
}
