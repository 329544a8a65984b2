package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "chat.turn.dispatched").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

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

// TurnDispatched fires after the flow engine resolves one inbound turn.
func TurnDispatched(number, step, nextStep string, ruleId int64) Event {
	return BaseEvent{
		Type: "chat.turn.dispatched",
		Data: map[string]interface{}{
			"number":    number,
			"step":      step,
			"next_step": nextStep,
			"rule_id":   ruleId,
		},
		OccurredAt: time.Now(),
	}
}

// AIAnswerSent fires after the worker delivers a generated answer.
func AIAnswerSent(number string, messageId int64, fromCache bool) Event {
	return BaseEvent{
		Type: "ai.answer.sent",
		Data: map[string]interface{}{
			"number":     number,
			"message_id": messageId,
			"from_cache": fromCache,
		},
		OccurredAt: time.Now(),
	}
}

// CatalogIngested fires after a successful index rebuild.
func CatalogIngested(source string, chunks, pages int) Event {
	return BaseEvent{
		Type: "catalog.ingested",
		Data: map[string]interface{}{
			"source": source,
			"chunks": chunks,
			"pages":  pages,
		},
		OccurredAt: time.Now(),
	}
}
