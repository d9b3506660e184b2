// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"encoding/json"
	"time"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// SessionEventsQueue is the durable queue committed audit events are
// published to.
const SessionEventsQueue = "session.events"

// SessionEvent is the broker copy of a committed audit event. Payload is
// carried as raw JSON when it parses and as a string otherwise, so consumers
// never have to query the primary database.
type SessionEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	ActorRole  string          `json:"actor_role"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	RawPayload string          `json:"raw_payload,omitempty"`
	OccurredAt string          `json:"occurred_at"`
}

// NewSessionEvent converts an audit event for publishing.
func NewSessionEvent(e model.AuditEvent) SessionEvent {
	out := SessionEvent{
		EventID:    e.ID,
		Type:       string(e.Type),
		ActorRole:  string(e.ActorRole),
		OccurredAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if json.Valid([]byte(e.Payload)) {
		out.Payload = json.RawMessage(e.Payload)
	} else {
		out.RawPayload = e.Payload
	}
	return out
}
