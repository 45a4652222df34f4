// Package sse streams customization events to HTTP clients as Server-Sent
// Events. A stream replays stored events first and then follows the bus.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/petal-labs/tooltailor/bus"
)

// HeartbeatInterval is the interval between SSE heartbeat comments.
const HeartbeatInterval = 15 * time.Second

// SSEHandler serves an SSE stream of customization events.
//
// Query parameters:
//
//	server  only stream events for this server
//	after   last-seen sequence number (the Last-Event-ID header also works)
//	follow  "false" closes the stream once stored events are replayed
//
// SSE format:
//
//	id: {seq}
//	event: {kind}
//	data: {json}
//
// A heartbeat comment ": ping\n\n" is sent every HeartbeatInterval. The stream
// ends when the client disconnects or the bus closes.
type SSEHandler struct {
	store     bus.EventStore
	bus       bus.EventBus
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSEHandler with the given EventStore and EventBus.
func NewSSEHandler(store bus.EventStore, eb bus.EventBus) *SSEHandler {
	return &SSEHandler{
		store:     store,
		bus:       eb,
		heartbeat: HeartbeatInterval,
	}
}

// ServeHTTP implements http.Handler.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	server := strings.TrimSpace(query.Get("server"))
	afterSeq, err := parseCursor(query.Get("after"), r.Header.Get("Last-Event-ID"))
	if err != nil {
		http.Error(w, "invalid after parameter", http.StatusBadRequest)
		return
	}
	follow := !strings.EqualFold(query.Get("follow"), "false")
	if follow {
		// Long-lived streams outlast the server's write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()

	// Subscribe to live events before replaying stored events, to avoid
	// missing events that arrive between replay and subscription.
	var sub bus.Subscription
	if follow {
		if server == "" {
			sub = h.bus.SubscribeAll()
		} else {
			sub = h.bus.Subscribe(server)
		}
		defer sub.Close()
	}

	lastSeq := afterSeq
	if err := h.replayStored(ctx, w, flusher, server, afterSeq, &lastSeq); err != nil || !follow {
		return
	}
	h.streamLive(ctx, w, flusher, sub, &lastSeq)
}

func parseCursor(after, lastEventID string) (uint64, error) {
	value := strings.TrimSpace(after)
	if value == "" {
		value = strings.TrimSpace(lastEventID)
	}
	if value == "" {
		return 0, nil
	}
	return strconv.ParseUint(value, 10, 64)
}

// replayStored writes stored events newer than afterSeq to the stream.
func (h *SSEHandler) replayStored(
	ctx context.Context,
	w http.ResponseWriter,
	flusher http.Flusher,
	server string,
	afterSeq uint64,
	lastSeq *uint64,
) error {
	if h.store == nil {
		return nil
	}
	events, err := h.store.List(ctx, server, afterSeq, 0)
	if err != nil {
		return err
	}

	for _, evt := range events {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := writeSSEEvent(w, evt); err != nil {
			return err
		}
		flusher.Flush()

		if evt.Seq > *lastSeq {
			*lastSeq = evt.Seq
		}
	}
	return nil
}

// streamLive streams events from the live subscription, deduplicating against
// already-sent sequence numbers.
func (h *SSEHandler) streamLive(
	ctx context.Context,
	w http.ResponseWriter,
	flusher http.Flusher,
	sub bus.Subscription,
	lastSeq *uint64,
) {
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if evt.Seq <= *lastSeq {
				continue
			}
			if err := writeSSEEvent(w, evt); err != nil {
				return
			}
			flusher.Flush()
			*lastSeq = evt.Seq

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, evt bus.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Kind, data)
	return err
}
