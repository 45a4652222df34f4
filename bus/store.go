package bus

import "context"

// EventStore keeps events for replay.
type EventStore interface {
	// Append stores an event.
	Append(ctx context.Context, event Event) error

	// List returns events for server, or for every server when server is
	// empty. afterSeq: return events with Seq > afterSeq (0 means all).
	// limit: max events to return (0 means no limit).
	List(ctx context.Context, server string, afterSeq uint64, limit int) ([]Event, error)

	// LatestSeq returns the highest stored Seq (0 if no events).
	LatestSeq(ctx context.Context) (uint64, error)
}
