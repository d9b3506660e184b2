package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventCheckIn  EventType = "CHECK_IN"
	EventCheckOut EventType = "CHECK_OUT"
	EventExtend   EventType = "EXTEND"
	EventForceEnd EventType = "FORCE_END"
	EventAssign   EventType = "ASSIGN"
	EventRelease  EventType = "RELEASE"
)

type ActorRole string

const (
	RoleCustomer ActorRole = "CUSTOMER"
	RoleAdmin    ActorRole = "ADMIN"
)

// AuditEvent is an immutable record of a state-changing operation. Payload
// is stored as serialized JSON exactly as written.
type AuditEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Payload   string    `json:"payload"`
	ActorRole ActorRole `json:"actorRole"`
	CreatedAt time.Time `json:"createdAt"`
}

// DecodePayload parses Payload as a JSON object. ok is false for malformed
// or non-object payloads; callers should fall back to the raw text.
func (e AuditEvent) DecodePayload() (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(e.Payload), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// EventFilter narrows audit log listings.
type EventFilter struct {
	Search string // substring of type or payload; empty matches all
	Limit  int
}
