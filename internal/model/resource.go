package model

import "time"

// ResourceKind discriminates the two allocatable resource variants.
type ResourceKind string

const (
	KindSeat   ResourceKind = "SEAT"
	KindLocker ResourceKind = "LOCKER"
)

// Valid reports whether k is one of the known kinds.
func (k ResourceKind) Valid() bool { return k == KindSeat || k == KindLocker }

// ResourceStatus is the occupancy state of a seat or locker. Lockers never
// enter EXPIRED.
type ResourceStatus string

const (
	StatusAvailable ResourceStatus = "AVAILABLE"
	StatusOccupied  ResourceStatus = "OCCUPIED"
	StatusExpired   ResourceStatus = "EXPIRED"
	StatusDisabled  ResourceStatus = "DISABLED"
)

// Resource is a seat or a locker, keyed by Kind and ID. Seat ids look like
// "A1" and carry Row/Col geometry. Locker ids are zero-padded ("007") and
// may carry LinkedSeatID while assigned alongside a seat session.
// CurrentSessionID points at the session holding the resource. Version is
// the optimistic concurrency token and is bumped on every write.
type Resource struct {
	Kind             ResourceKind   `json:"kind"`
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Status           ResourceStatus `json:"status"`
	Row              string         `json:"row,omitempty"`
	Col              int            `json:"col,omitempty"`
	LinkedSeatID     *string        `json:"linkedSeatId,omitempty"`
	CurrentSessionID *string        `json:"currentSessionId,omitempty"`
	Version          uint32         `json:"version"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ResourceUpdate is the full set of mutable fields written by a
// compare-and-swap. Callers always pass the complete new state.
type ResourceUpdate struct {
	Status           ResourceStatus
	CurrentSessionID *string
	LinkedSeatID     *string
}

// ResourceView is a resource joined with its current session for snapshot
// reads.
type ResourceView struct {
	Resource
	CurrentSession *Session `json:"currentSession,omitempty"`
}
