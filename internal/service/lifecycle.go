// Package service implements the seat and locker session lifecycle on top of
// repository.Store: check-in, check-out, locker assignment and release,
// extension, expiration, and scan-driven dispatch.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
)

// LifecycleService is the only writer of resource status/version and
// session status/deadline. Every operation reads the resource, validates,
// writes session + resource + audit event in one transaction, and
// conditions the resource write on the version it read.
type LifecycleService struct {
	store     repository.Store
	publisher EventPublisher
	log       Logger
	metrics   Metrics
	retry     RetryPolicy
	now       func() time.Time
}

// Option customises a LifecycleService.
type Option func(*LifecycleService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *LifecycleService) { s.now = now } }

// WithRetry overrides DefaultRetry.
func WithRetry(p RetryPolicy) Option { return func(s *LifecycleService) { s.retry = p } }

// WithMetrics reports committed events, version conflicts and sweeps to m.
func WithMetrics(m Metrics) Option { return func(s *LifecycleService) { s.metrics = m } }

// NewLifecycleService panics on a nil store. A nil publisher or logger is
// replaced with a no-op.
func NewLifecycleService(store repository.Store, publisher EventPublisher, logger Logger, opts ...Option) *LifecycleService {
	if store == nil {
		panic("nil store passed to NewLifecycleService")
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = DiscardLogger()
	}
	s := &LifecycleService{store: store, publisher: publisher, log: logger, metrics: noopMetrics{}, retry: DefaultRetry, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Result is what every lifecycle operation returns: the session it touched
// and the resource state it committed.
type Result struct {
	Session  model.Session  `json:"session"`
	Resource model.Resource `json:"resource"`
}

type BeginSeatInput struct {
	SeatID    string
	ProductID string
	UserTag   string
	Actor     model.ActorRole
}

type BeginLockerInput struct {
	LockerID            string
	UserTag             string
	LinkedSeatSessionID string
	Actor               model.ActorRole
}

// EndInput ends the current session on a resource. Privileged callers skip
// the user tag check and the session is recorded as force-ended.
type EndInput struct {
	ResourceID string
	UserTag    string
	Privileged bool
}

// ExtendInput adds AddMinutes, or the duration of ProductID when set.
type ExtendInput struct {
	SeatID     string
	AddMinutes int
	ProductID  string
}

// BeginSeat checks a customer into an AVAILABLE seat for the duration of a
// product.
func (s *LifecycleService) BeginSeat(ctx context.Context, in BeginSeatInput) (*Result, error) {
	seatID, ok := scan.NormalizeSeatID(in.SeatID)
	if !ok {
		return nil, fmt.Errorf("%w: seat %q", model.ErrInvalidResourceID, in.SeatID)
	}
	if !scan.ValidUserTag(in.UserTag) {
		return nil, model.ErrInvalidUserTag
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return nil, fmt.Errorf("%w: productId is required", model.ErrValidation)
	}
	actor := actorOr(in.Actor, model.RoleCustomer)

	var (
		out *Result
		ev  model.AuditEvent
	)
	err := s.attempt(ctx, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			res, _, err := tx.GetResourceWithSession(ctx, model.KindSeat, seatID)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("%w: seat %s", model.ErrResourceNotFound, seatID)
			}
			if res.Status != model.StatusAvailable {
				return fmt.Errorf("%w: seat %s is %s", model.ErrResourceBusy, seatID, strings.ToLower(string(res.Status)))
			}
			product, err := tx.GetProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, in.ProductID)
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %s", model.ErrProductInactive, product.Name)
			}

			now := s.now().UTC()
			endAt := now.Add(time.Duration(product.DurationMin) * time.Minute)
			sess := model.Session{
				ID:           newSessionID(),
				ResourceKind: model.KindSeat,
				ResourceID:   seatID,
				UserTag:      in.UserTag,
				ProductID:    &product.ID,
				StartAt:      now,
				EndAt:        &endAt,
				Status:       model.SessionActive,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.CreateSession(ctx, &sess); err != nil {
				return err
			}
			upd := model.ResourceUpdate{Status: model.StatusOccupied, CurrentSessionID: &sess.ID}
			if err := s.swap(ctx, tx, res, upd); err != nil {
				return err
			}
			ev = s.newEvent(model.EventCheckIn, actor, now, map[string]any{
				"seatId":      seatID,
				"sessionId":   sess.ID,
				"userTag":     sess.UserTag,
				"productId":   product.ID,
				"productName": product.Name,
				"startAt":     sess.StartAt,
				"endAt":       endAt,
			})
			if err := tx.AppendAuditEvent(ctx, &ev); err != nil {
				return err
			}
			out = &Result{Session: sess, Resource: *res}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ev)
	return out, nil
}

// BeginLocker assigns an AVAILABLE locker, optionally tied to an ACTIVE seat
// session. Locker sessions have no deadline.
func (s *LifecycleService) BeginLocker(ctx context.Context, in BeginLockerInput) (*Result, error) {
	lockerID, ok := scan.NormalizeLockerID(in.LockerID)
	if !ok {
		return nil, fmt.Errorf("%w: locker %q", model.ErrInvalidResourceID, in.LockerID)
	}
	if !scan.ValidUserTag(in.UserTag) {
		return nil, model.ErrInvalidUserTag
	}
	actor := actorOr(in.Actor, model.RoleCustomer)

	var (
		out *Result
		ev  model.AuditEvent
	)
	err := s.attempt(ctx, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			res, _, err := tx.GetResourceWithSession(ctx, model.KindLocker, lockerID)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("%w: locker %s", model.ErrResourceNotFound, lockerID)
			}
			if res.Status != model.StatusAvailable {
				return fmt.Errorf("%w: locker %s is %s", model.ErrResourceBusy, lockerID, strings.ToLower(string(res.Status)))
			}

			var linkedSeat *string
			if in.LinkedSeatSessionID != "" {
				linked, err := tx.GetSession(ctx, in.LinkedSeatSessionID)
				if err != nil {
					return err
				}
				if linked == nil || linked.Status != model.SessionActive || linked.ResourceKind != model.KindSeat {
					return fmt.Errorf("%w: %s", model.ErrLinkedSessionInvalid, in.LinkedSeatSessionID)
				}
				seat := linked.ResourceID
				linkedSeat = &seat
			}

			now := s.now().UTC()
			sess := model.Session{
				ID:           newSessionID(),
				ResourceKind: model.KindLocker,
				ResourceID:   lockerID,
				UserTag:      in.UserTag,
				StartAt:      now,
				Status:       model.SessionActive,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.CreateSession(ctx, &sess); err != nil {
				return err
			}
			upd := model.ResourceUpdate{Status: model.StatusOccupied, CurrentSessionID: &sess.ID, LinkedSeatID: linkedSeat}
			if err := s.swap(ctx, tx, res, upd); err != nil {
				return err
			}
			payload := map[string]any{
				"lockerId":  lockerID,
				"sessionId": sess.ID,
				"userTag":   sess.UserTag,
			}
			if linkedSeat != nil {
				payload["linkedSeatId"] = *linkedSeat
				payload["linkedSeatSessionId"] = in.LinkedSeatSessionID
			}
			ev = s.newEvent(model.EventAssign, actor, now, payload)
			if err := tx.AppendAuditEvent(ctx, &ev); err != nil {
				return err
			}
			out = &Result{Session: sess, Resource: *res}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ev)
	return out, nil
}

// EndSeat checks a customer out of a seat (or force-ends the session).
func (s *LifecycleService) EndSeat(ctx context.Context, in EndInput) (*Result, error) {
	return s.end(ctx, model.KindSeat, in)
}

// EndLocker releases a locker (or force-releases it).
func (s *LifecycleService) EndLocker(ctx context.Context, in EndInput) (*Result, error) {
	return s.end(ctx, model.KindLocker, in)
}

// end is not retried: a lost CAS means the resource changed under us and the
// caller has to look again.
func (s *LifecycleService) end(ctx context.Context, kind model.ResourceKind, in EndInput) (*Result, error) {
	id, ok := scan.NormalizeID(kind, in.ResourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", model.ErrInvalidResourceID, strings.ToLower(string(kind)), in.ResourceID)
	}
	if !in.Privileged && !scan.ValidUserTag(in.UserTag) {
		return nil, model.ErrInvalidUserTag
	}

	var (
		out *Result
		ev  model.AuditEvent
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		res, sess, err := tx.GetResourceWithSession(ctx, kind, id)
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("%w: %s %s", model.ErrResourceNotFound, strings.ToLower(string(kind)), id)
		}
		if sess == nil || sess.Status == model.SessionEnded {
			return fmt.Errorf("%w: %s %s", model.ErrNoActiveSession, strings.ToLower(string(kind)), id)
		}
		if !in.Privileged && sess.UserTag != in.UserTag {
			return model.ErrTagMismatch
		}

		reason, evType, actor := model.ReasonCheckout, model.EventCheckOut, model.RoleCustomer
		if kind == model.KindLocker {
			reason, evType = model.ReasonReleased, model.EventRelease
		}
		if in.Privileged {
			reason, evType, actor = model.ReasonForceEnd, model.EventForceEnd, model.RoleAdmin
		}

		now := s.now().UTC()
		ended := model.SessionEnded
		if err := tx.UpdateSession(ctx, sess.ID, model.SessionUpdate{Status: &ended, EndedReason: &reason}); err != nil {
			return err
		}
		if err := s.swap(ctx, tx, res, model.ResourceUpdate{Status: model.StatusAvailable}); err != nil {
			return err
		}
		sess.Status, sess.EndedReason, sess.UpdatedAt = ended, &reason, now

		ev = s.newEvent(evType, actor, now, map[string]any{
			"resourceType": kind,
			"resourceId":   id,
			"sessionId":    sess.ID,
			"userTag":      sess.UserTag,
			"endedReason":  reason,
			"force":        in.Privileged,
		})
		if err := tx.AppendAuditEvent(ctx, &ev); err != nil {
			return err
		}
		out = &Result{Session: *sess, Resource: *res}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ev)
	return out, nil
}

// MaxExtendMinutes caps a single manual extension at one day.
const MaxExtendMinutes = 24 * 60

// ExtendSeat pushes a seat session's deadline out. The new deadline counts
// from the later of the current deadline and now. An EXPIRED seat (and its
// session) goes back to OCCUPIED/ACTIVE. Callers must be privileged.
func (s *LifecycleService) ExtendSeat(ctx context.Context, in ExtendInput) (*Result, error) {
	seatID, ok := scan.NormalizeSeatID(in.SeatID)
	if !ok {
		return nil, fmt.Errorf("%w: seat %q", model.ErrInvalidResourceID, in.SeatID)
	}
	if in.ProductID == "" && in.AddMinutes <= 0 {
		return nil, fmt.Errorf("%w: addMinutes or productId is required", model.ErrInvalidDuration)
	}
	if in.AddMinutes > MaxExtendMinutes {
		return nil, fmt.Errorf("%w: addMinutes must be at most %d", model.ErrInvalidDuration, MaxExtendMinutes)
	}

	var (
		out *Result
		ev  model.AuditEvent
	)
	err := s.attempt(ctx, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			res, sess, err := tx.GetResourceWithSession(ctx, model.KindSeat, seatID)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("%w: seat %s", model.ErrResourceNotFound, seatID)
			}
			if sess == nil {
				return fmt.Errorf("%w: seat %s", model.ErrNoActiveSession, seatID)
			}
			if sess.Status == model.SessionEnded || sess.EndAt == nil {
				return fmt.Errorf("%w: session %s is %s", model.ErrNotExtendable, sess.ID, strings.ToLower(string(sess.Status)))
			}

			minutes := in.AddMinutes
			var productName string
			if in.ProductID != "" {
				product, err := tx.GetProduct(ctx, in.ProductID)
				if err != nil {
					return err
				}
				if product == nil {
					return fmt.Errorf("%w: %s", model.ErrProductNotFound, in.ProductID)
				}
				if !product.IsActive {
					return fmt.Errorf("%w: %s", model.ErrProductInactive, product.Name)
				}
				minutes, productName = product.DurationMin, product.Name
			}

			now := s.now().UTC()
			prevEnd := *sess.EndAt
			base := prevEnd
			if base.Before(now) {
				base = now
			}
			newEnd := base.Add(time.Duration(minutes) * time.Minute)

			upd := model.SessionUpdate{EndAt: &newEnd}
			if sess.Status == model.SessionExpired {
				active := model.SessionActive
				upd.Status = &active
				sess.Status = active
			}
			if err := tx.UpdateSession(ctx, sess.ID, upd); err != nil {
				return err
			}
			status := res.Status
			if status == model.StatusExpired {
				status = model.StatusOccupied
			}
			if err := s.swap(ctx, tx, res, model.ResourceUpdate{
				Status:           status,
				CurrentSessionID: res.CurrentSessionID,
				LinkedSeatID:     res.LinkedSeatID,
			}); err != nil {
				return err
			}
			sess.EndAt, sess.UpdatedAt = &newEnd, now

			payload := map[string]any{
				"seatId":        seatID,
				"sessionId":     sess.ID,
				"userTag":       sess.UserTag,
				"addMinutes":    minutes,
				"previousEndAt": prevEnd,
				"newEndAt":      newEnd,
			}
			if in.ProductID != "" {
				payload["productId"] = in.ProductID
				payload["productName"] = productName
			}
			ev = s.newEvent(model.EventExtend, model.RoleAdmin, now, payload)
			if err := tx.AppendAuditEvent(ctx, &ev); err != nil {
				return err
			}
			out = &Result{Session: *sess, Resource: *res}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, ev)
	return out, nil
}

// ExpireSession applies policy to one session whose deadline has passed.
// It re-reads the session inside the transaction and does nothing (returning
// false) if it is no longer ACTIVE and overdue at now.
func (s *LifecycleService) ExpireSession(ctx context.Context, sessionID string, policy model.ExpirationPolicy, now time.Time) (bool, error) {
	if !policy.Valid() {
		return false, fmt.Errorf("%w: expiration policy %q", model.ErrInvalidSetting, policy)
	}
	var (
		applied bool
		ev      *model.AuditEvent
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("%w: %s", model.ErrSessionNotFound, sessionID)
		}
		if !sess.ExpiredAt(now) {
			return nil
		}
		res, _, err := tx.GetResourceWithSession(ctx, sess.ResourceKind, sess.ResourceID)
		if err != nil {
			return err
		}
		attached := res != nil && res.CurrentSessionID != nil && *res.CurrentSessionID == sess.ID

		if policy == model.PolicyManual {
			expired := model.SessionExpired
			if err := tx.UpdateSession(ctx, sess.ID, model.SessionUpdate{Status: &expired}); err != nil {
				return err
			}
			if attached && sess.ResourceKind == model.KindSeat && res.Status == model.StatusOccupied {
				if err := s.swap(ctx, tx, res, model.ResourceUpdate{
					Status:           model.StatusExpired,
					CurrentSessionID: res.CurrentSessionID,
					LinkedSeatID:     res.LinkedSeatID,
				}); err != nil {
					return err
				}
			}
			applied = true
			return nil
		}

		ended, reason := model.SessionEnded, model.ReasonExpired
		if err := tx.UpdateSession(ctx, sess.ID, model.SessionUpdate{Status: &ended, EndedReason: &reason}); err != nil {
			return err
		}
		if attached {
			if err := s.swap(ctx, tx, res, model.ResourceUpdate{Status: model.StatusAvailable}); err != nil {
				return err
			}
		}
		e := s.newEvent(model.EventForceEnd, model.RoleAdmin, now.UTC(), map[string]any{
			"resourceType": sess.ResourceKind,
			"resourceId":   sess.ResourceID,
			"sessionId":    sess.ID,
			"userTag":      sess.UserTag,
			"endedReason":  reason,
		})
		if err := tx.AppendAuditEvent(ctx, &e); err != nil {
			return err
		}
		ev, applied = &e, true
		return nil
	})
	if err != nil {
		return false, err
	}
	if ev != nil {
		s.publish(ctx, *ev)
	}
	return applied, nil
}

// swap conditions upd on the version and status in res and, on success,
// mirrors the committed state back into res.
func (s *LifecycleService) swap(ctx context.Context, tx repository.Tx, res *model.Resource, upd model.ResourceUpdate) error {
	n, err := tx.CompareAndSwapResource(ctx, res.Kind, res.ID, res.Version, res.Status, upd)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", model.ErrVersionConflict, strings.ToLower(string(res.Kind)), res.ID)
	}
	res.Status = upd.Status
	res.CurrentSessionID = upd.CurrentSessionID
	res.LinkedSeatID = upd.LinkedSeatID
	res.Version++
	res.UpdatedAt = s.now().UTC()
	return nil
}

func (s *LifecycleService) newEvent(t model.EventType, actor model.ActorRole, at time.Time, payload map[string]any) model.AuditEvent {
	body, err := json.Marshal(payload)
	if err != nil {
		// Payload values are plain strings, ints and times; keep the event anyway.
		body = []byte(fmt.Sprintf("%v", payload))
	}
	return model.AuditEvent{
		ID:        newEventID(at),
		Type:      t,
		Payload:   string(body),
		ActorRole: actor,
		CreatedAt: at,
	}
}

// attempt runs fn under the retry policy and counts every lost CAS.
func (s *LifecycleService) attempt(ctx context.Context, fn func() error) error {
	return s.retry.do(ctx, func() error {
		err := fn()
		if errors.Is(err, model.ErrVersionConflict) {
			s.metrics.VersionConflict()
		}
		return err
	})
}

func (s *LifecycleService) publish(ctx context.Context, ev model.AuditEvent) {
	s.metrics.EventCommitted(ev)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warnj(log.JSON{"msg": "publish audit event", "event_id": ev.ID, "type": ev.Type, "error": err.Error()})
	}
}

func actorOr(r, def model.ActorRole) model.ActorRole {
	if r == model.RoleAdmin || r == model.RoleCustomer {
		return r
	}
	return def
}
