package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
)

// Intent is what the kiosk operator meant to do with a scanned code.
type Intent string

const (
	IntentBeginSeat   Intent = "BEGIN_SEAT"
	IntentEndSeat     Intent = "END_SEAT"
	IntentBeginLocker Intent = "BEGIN_LOCKER"
	IntentEndLocker   Intent = "END_LOCKER"
)

func (i Intent) kind() (model.ResourceKind, bool) {
	switch i {
	case IntentBeginSeat, IntentEndSeat:
		return model.KindSeat, true
	case IntentBeginLocker, IntentEndLocker:
		return model.KindLocker, true
	}
	return "", false
}

func (i Intent) begins() bool { return i == IntentBeginSeat || i == IntentBeginLocker }

// ScanService resolves scanned codes and routes them to the lifecycle
// manager after checking the code matches the operator's intent.
type ScanService struct {
	store     repository.Store
	lifecycle *LifecycleService
}

func NewScanService(store repository.Store, lifecycle *LifecycleService) *ScanService {
	return &ScanService{store: store, lifecycle: lifecycle}
}

// Resolution is a resolved code plus the resource it points at.
type Resolution struct {
	scan.Ref
	Resource         *model.Resource `json:"resource,omitempty"`
	Session          *model.Session  `json:"session,omitempty"`
	HasActiveSession bool            `json:"hasActiveSession"`
}

// Resolve parses raw and loads the referenced resource.
func (s *ScanService) Resolve(ctx context.Context, raw string) (*Resolution, error) {
	ref := scan.Resolve(raw)
	if !ref.Known() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnrecognizedCode, strings.TrimSpace(raw))
	}
	res, sess, err := s.lookup(ctx, ref.Kind, *ref.ID)
	if err != nil {
		return nil, err
	}
	return &Resolution{
		Ref:              ref,
		Resource:         res,
		Session:          sess,
		HasActiveSession: sess != nil && sess.Status != model.SessionEnded,
	}, nil
}

// DispatchRequest carries everything any of the four intents may need.
type DispatchRequest struct {
	Code                string
	Intent              Intent
	UserTag             string
	ProductID           string
	LinkedSeatSessionID string
	Privileged          bool
}

// Dispatch resolves the code, checks it against the intent and the
// resource's occupancy, then performs the operation. The pre-checks give the
// kiosk distinct errors (wrong code type, resource busy, no active session);
// the lifecycle operation re-validates inside its own transaction.
func (s *ScanService) Dispatch(ctx context.Context, req DispatchRequest) (*Result, error) {
	want, ok := req.Intent.kind()
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent %q", model.ErrValidation, req.Intent)
	}
	ref := scan.Resolve(req.Code)
	if !ref.Known() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnrecognizedCode, strings.TrimSpace(req.Code))
	}
	if ref.Kind != want {
		return nil, fmt.Errorf("%w: expected a %s code, got %s", model.ErrWrongCodeType,
			strings.ToLower(string(want)), strings.ToLower(string(ref.Kind)))
	}
	id := *ref.ID

	res, sess, err := s.lookup(ctx, ref.Kind, id)
	if err != nil {
		return nil, err
	}
	if req.Intent.begins() {
		if res.Status != model.StatusAvailable {
			return nil, fmt.Errorf("%w: %s %s is %s", model.ErrResourceBusy,
				strings.ToLower(string(ref.Kind)), id, strings.ToLower(string(res.Status)))
		}
	} else if sess == nil || sess.Status == model.SessionEnded {
		return nil, fmt.Errorf("%w: %s %s", model.ErrNoActiveSession, strings.ToLower(string(ref.Kind)), id)
	}

	actor := model.RoleCustomer
	if req.Privileged {
		actor = model.RoleAdmin
	}
	switch req.Intent {
	case IntentBeginSeat:
		return s.lifecycle.BeginSeat(ctx, BeginSeatInput{SeatID: id, ProductID: req.ProductID, UserTag: req.UserTag, Actor: actor})
	case IntentBeginLocker:
		return s.lifecycle.BeginLocker(ctx, BeginLockerInput{LockerID: id, UserTag: req.UserTag, LinkedSeatSessionID: req.LinkedSeatSessionID, Actor: actor})
	case IntentEndSeat:
		return s.lifecycle.EndSeat(ctx, EndInput{ResourceID: id, UserTag: req.UserTag, Privileged: req.Privileged})
	default:
		return s.lifecycle.EndLocker(ctx, EndInput{ResourceID: id, UserTag: req.UserTag, Privileged: req.Privileged})
	}
}

func (s *ScanService) lookup(ctx context.Context, kind model.ResourceKind, id string) (*model.Resource, *model.Session, error) {
	var (
		res  *model.Resource
		sess *model.Session
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, sess, err = tx.GetResourceWithSession(ctx, kind, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if res == nil {
		return nil, nil, fmt.Errorf("%w: %s %s", model.ErrResourceNotFound, strings.ToLower(string(kind)), id)
	}
	return res, sess, nil
}
