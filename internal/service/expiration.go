package service

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
)

// SweepResult summarises one expiration pass.
type SweepResult struct {
	Policy  model.ExpirationPolicy `json:"policy"`
	Overdue int                    `json:"overdue"`
	Applied int                    `json:"applied"`
	Failed  int                    `json:"failed"`
}

// ExpirationService finds ACTIVE sessions past their deadline and hands each
// one to the lifecycle manager. Sessions are processed independently; one
// failure is logged and the sweep moves on.
type ExpirationService struct {
	store     repository.Store
	lifecycle *LifecycleService
	settings  *SettingsService
	log       Logger
	now       func() time.Time
}

func NewExpirationService(store repository.Store, lifecycle *LifecycleService, settings *SettingsService, logger Logger) *ExpirationService {
	if logger == nil {
		logger = DiscardLogger()
	}
	return &ExpirationService{store: store, lifecycle: lifecycle, settings: settings, log: logger, now: lifecycle.now}
}

// Sweep runs one pass using the configured policy and the current time.
func (e *ExpirationService) Sweep(ctx context.Context) (SweepResult, error) {
	policy, err := e.settings.Policy(ctx)
	if err != nil {
		e.log.Warnj(log.JSON{"msg": "read expiration policy, using default", "policy": policy, "error": err.Error()})
	}
	return e.SweepAt(ctx, policy, e.now())
}

// SweepAt runs one pass with an explicit policy and clock reading.
func (e *ExpirationService) SweepAt(ctx context.Context, policy model.ExpirationPolicy, now time.Time) (SweepResult, error) {
	out := SweepResult{Policy: policy}
	active, err := e.store.ListActiveSessions(ctx)
	if err != nil {
		return out, err
	}
	for _, sess := range active {
		if !sess.ExpiredAt(now) {
			continue
		}
		out.Overdue++
		if ctx.Err() != nil {
			out.Failed++
			continue
		}
		applied, err := e.lifecycle.ExpireSession(ctx, sess.ID, policy, now)
		if err != nil {
			out.Failed++
			e.log.Errorj(log.JSON{
				"msg":        "expire session",
				"session_id": sess.ID,
				"resource":   string(sess.ResourceKind) + ":" + sess.ResourceID,
				"policy":     policy,
				"error":      err.Error(),
				"error_kind": model.KindOf(err),
			})
			continue
		}
		if applied {
			out.Applied++
		}
	}
	e.lifecycle.metrics.SweepFinished(out)
	if out.Overdue > 0 {
		e.log.Infoj(log.JSON{"msg": "expiration sweep", "policy": policy, "overdue": out.Overdue, "applied": out.Applied, "failed": out.Failed})
	}
	return out, nil
}
