// Package stream consumes the backend's live activity feed over
// text/event-stream, keeps a bounded buffer of recent events and fans them
// out to local subscribers.
package stream

import "time"

// EventTypeButtonUsed is the only event type the backend currently emits.
const EventTypeButtonUsed = "button_used"

// ActivityEvent is one discrete user action pushed over the live stream.
// Key is the dot-joined "<actorRole>.<action>" tag, e.g. "me.hug". Events
// are never mutated after creation.
type ActivityEvent struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	UserID     int64     `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// synthetic wraps an unparsable frame payload so the buffer never silently
// loses a frame. The receipt time stands in for the missing event time.
func synthetic(raw string, now time.Time) ActivityEvent {
	return ActivityEvent{
		Type:       EventTypeButtonUsed,
		Key:        raw,
		UserID:     0,
		OccurredAt: now,
	}
}
