package service

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// Logger is the subset of the gommon/echo logger the services use.
type Logger interface {
	Infoj(j log.JSON)
	Warnj(j log.JSON)
	Errorj(j log.JSON)
}

// EventPublisher receives audit events after their transaction commits.
// Implementations must not block the caller for long.
type EventPublisher interface {
	Publish(ctx context.Context, e model.AuditEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.AuditEvent) error { return nil }

// Metrics receives counters from the lifecycle manager and the sweep.
type Metrics interface {
	EventCommitted(e model.AuditEvent)
	VersionConflict()
	SweepFinished(r SweepResult)
}

type noopMetrics struct{}

func (noopMetrics) EventCommitted(model.AuditEvent) {}
func (noopMetrics) VersionConflict() {}
func (noopMetrics) SweepFinished(SweepResult) {}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() Logger {
	l := log.New("discard")
	l.SetOutput(io.Discard)
	return l
}

func newSessionID() string { return uuid.NewString() }

func newEventID(at time.Time) string {
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}
