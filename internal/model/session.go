package model

import "time"

type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionEnded   SessionStatus = "ENDED"
	SessionExpired SessionStatus = "EXPIRED"
)

type EndedReason string

const (
	ReasonCheckout EndedReason = "CHECKOUT"
	ReasonForceEnd EndedReason = "FORCE_END"
	ReasonExpired  EndedReason = "EXPIRED"
	ReasonReleased EndedReason = "RELEASED"
)

// Session is one usage period binding a user tag to a resource. EndAt is
// nil for locker sessions, which are open-ended.
type Session struct {
	ID           string        `json:"id"`
	ResourceKind ResourceKind  `json:"resourceType"`
	ResourceID   string        `json:"resourceId"`
	UserTag      string        `json:"userTag"`
	ProductID    *string       `json:"productId,omitempty"`
	StartAt      time.Time     `json:"startAt"`
	EndAt        *time.Time    `json:"endAt,omitempty"`
	Status       SessionStatus `json:"status"`
	EndedReason  *EndedReason  `json:"endedReason,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ExpiredAt reports whether the session is ACTIVE with a deadline strictly
// before now.
func (s Session) ExpiredAt(now time.Time) bool {
	return s.Status == SessionActive && s.EndAt != nil && s.EndAt.Before(now)
}

// SessionUpdate carries the mutable session fields. Nil pointers leave the
// stored value untouched.
type SessionUpdate struct {
	Status      *SessionStatus
	EndAt       *time.Time
	EndedReason *EndedReason
}
