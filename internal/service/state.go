package service

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
)

// Snapshot is the polling view of the whole floor.
type Snapshot struct {
	Seats              []model.ResourceView   `json:"seats"`
	Lockers            []model.ResourceView   `json:"lockers"`
	Products           []model.Product        `json:"products"`
	Sessions           []model.Session        `json:"sessions"`
	ExpirationHandling model.ExpirationPolicy `json:"expirationHandling"`
	Sweep              SweepResult            `json:"sweep"`
}

// StateService serves the polling endpoint and the admin read views.
type StateService struct {
	store      repository.Store
	expiration *ExpirationService
	settings   *SettingsService
	log        Logger
}

func NewStateService(store repository.Store, expiration *ExpirationService, settings *SettingsService, logger Logger) *StateService {
	if logger == nil {
		logger = DiscardLogger()
	}
	return &StateService{store: store, expiration: expiration, settings: settings, log: logger}
}

// Snapshot sweeps expired sessions first so the returned view never shows
// an overdue session as ACTIVE. A failed sweep is logged, not returned.
func (s *StateService) Snapshot(ctx context.Context) (*Snapshot, error) {
	sweep, err := s.expiration.Sweep(ctx)
	if err != nil {
		s.log.Warnj(log.JSON{"msg": "expiration sweep before snapshot", "error": err.Error()})
	}
	out := &Snapshot{ExpirationHandling: sweep.Policy, Sweep: sweep}
	if out.Seats, err = s.store.ListResources(ctx, model.KindSeat); err != nil {
		return nil, err
	}
	if out.Lockers, err = s.store.ListResources(ctx, model.KindLocker); err != nil {
		return nil, err
	}
	if out.Products, err = s.store.ListProducts(ctx, true); err != nil {
		return nil, err
	}
	if out.Sessions, err = s.store.ListActiveSessions(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Products returns the active catalog.
func (s *StateService) Products(ctx context.Context) ([]model.Product, error) {
	return s.store.ListProducts(ctx, true)
}

// LogEntry is an audit event prepared for display. Exactly one of Payload
// and RawPayload is set.
type LogEntry struct {
	model.AuditEvent
	Payload    map[string]any `json:"payload,omitempty"`
	RawPayload string         `json:"rawPayload,omitempty"`
}

// Logs lists audit events newest first. Payloads that are not valid JSON
// objects are passed through as raw text.
func (s *StateService) Logs(ctx context.Context, f model.EventFilter) ([]LogEntry, error) {
	events, err := s.store.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]LogEntry, 0, len(events))
	for _, e := range events {
		entry := LogEntry{AuditEvent: e}
		if m, ok := e.DecodePayload(); ok {
			entry.Payload = m
		} else {
			entry.RawPayload = e.Payload
		}
		out = append(out, entry)
	}
	return out, nil
}

// Label is one printable scan code.
type Label struct {
	Kind model.ResourceKind `json:"kind"`
	ID   string             `json:"id"`
	Name string             `json:"name"`
	Code string             `json:"code"`
}

// Labels renders a scan code for every seat and locker. An empty format
// uses the configured one.
func (s *StateService) Labels(ctx context.Context, format model.QRFormat) ([]Label, model.QRFormat, error) {
	if format == "" {
		st, err := s.settings.Get(ctx)
		if err != nil {
			return nil, "", err
		}
		format = st.QRFormat
	}
	if !format.Valid() {
		return nil, "", fmt.Errorf("%w: qrFormat %q", model.ErrInvalidSetting, format)
	}
	var out []Label
	for _, kind := range []model.ResourceKind{model.KindSeat, model.KindLocker} {
		views, err := s.store.ListResources(ctx, kind)
		if err != nil {
			return nil, "", err
		}
		for _, v := range views {
			code, err := scan.Generate(kind, v.ID, format)
			if err != nil {
				return nil, "", err
			}
			out = append(out, Label{Kind: kind, ID: v.ID, Name: v.Name, Code: code})
		}
	}
	return out, format, nil
}
