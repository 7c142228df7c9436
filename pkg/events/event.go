package events

import "time"

const (
	EventDocumentIngested = "DOCUMENT_INGESTED"
	EventSessionCleared   = "SESSION_CLEARED"
)

// Event is the contract for everything published on the bus.
type Event interface {
	// EventType returns the unique code for this event (e.g. "DOCUMENT_INGESTED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used for all current events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewDocumentIngested records that a document was split, embedded and
// stored in the knowledge base.
func NewDocumentIngested(source string, chunks int) Event {
	return BaseEvent{
		Type: EventDocumentIngested,
		Data: map[string]interface{}{
			"source": source,
			"chunks": chunks,
		},
		OccurredAt: time.Now(),
	}
}

// NewSessionCleared records that a conversation session was wiped.
func NewSessionCleared(sessionID string) Event {
	return BaseEvent{
		Type: EventSessionCleared,
		Data: map[string]interface{}{
			"session_id": sessionID,
		},
		OccurredAt: time.Now(),
	}
}
