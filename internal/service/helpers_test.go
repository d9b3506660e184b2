package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository/memstore"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, e model.AuditEvent) error {
	return m.Called(ctx, e).Error(0)
}

type countingMetrics struct {
	events    atomic.Int32
	conflicts atomic.Int32
	sweeps    atomic.Int32
}

func (m *countingMetrics) EventCommitted(model.AuditEvent) { m.events.Add(1) }
func (m *countingMetrics) VersionConflict()                { m.conflicts.Add(1) }
func (m *countingMetrics) SweepFinished(SweepResult)       { m.sweeps.Add(1) }

// flakyStore wraps memstore to inject lost CAS races and storage failures.
type flakyStore struct {
	*memstore.Store
	casFailures  atomic.Int32 // next N CAS calls report zero rows
	casCalls     atomic.Int32
	failUpdateOn string // UpdateSession on this session id errors
}

var errDisk = errors.New("disk on fire")

func (f *flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, &flakyTx{Tx: tx, f: f})
	})
}

type flakyTx struct {
	repository.Tx
	f *flakyStore
}

func (t *flakyTx) CompareAndSwapResource(ctx context.Context, kind model.ResourceKind, id string, v uint32, st model.ResourceStatus, upd model.ResourceUpdate) (int64, error) {
	t.f.casCalls.Add(1)
	if t.f.casFailures.Add(-1) >= 0 {
		return 0, nil
	}
	return t.Tx.CompareAndSwapResource(ctx, kind, id, v, st, upd)
}

func (t *flakyTx) UpdateSession(ctx context.Context, id string, upd model.SessionUpdate) error {
	if id != "" && id == t.f.failUpdateOn {
		return errDisk
	}
	return t.Tx.UpdateSession(ctx, id, upd)
}

type env struct {
	store      *flakyStore
	clock      *fakeClock
	pub        *mockPublisher
	metrics    *countingMetrics
	lifecycle  *LifecycleService
	settings   *SettingsService
	expiration *ExpirationService
	state      *StateService
	scan       *ScanService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := memstore.New()
	require.NoError(t, memstore.Seed(mem, "A-D", 4, 20))
	mem.AddProduct(model.Product{ID: "product-retired", Name: "Retired", DurationMin: 30, IsActive: false, SortOrder: 9})

	fs := &flakyStore{Store: mem}
	clock := &fakeClock{now: t0}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	metrics := &countingMetrics{}
	lc := NewLifecycleService(fs, pub, DiscardLogger(),
		WithClock(clock.Now),
		WithRetry(RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}),
		WithMetrics(metrics),
	)
	settings := NewSettingsService(fs, DefaultSettings)
	exp := NewExpirationService(fs, lc, settings, DiscardLogger())
	return &env{
		store:      fs,
		clock:      clock,
		pub:        pub,
		metrics:    metrics,
		lifecycle:  lc,
		settings:   settings,
		expiration: exp,
		state:      NewStateService(fs, exp, settings, DiscardLogger()),
		scan:       NewScanService(fs, lc),
	}
}

func (e *env) seat(t *testing.T, id string) model.Resource {
	t.Helper()
	r, ok := e.store.Resource(model.KindSeat, id)
	require.True(t, ok, "seat %s", id)
	return r
}

func (e *env) locker(t *testing.T, id string) model.Resource {
	t.Helper()
	r, ok := e.store.Resource(model.KindLocker, id)
	require.True(t, ok, "locker %s", id)
	return r
}

func (e *env) session(t *testing.T, id string) model.Session {
	t.Helper()
	s, ok := e.store.Session(id)
	require.True(t, ok, "session %s", id)
	return s
}

func (e *env) setPolicy(t *testing.T, p model.ExpirationPolicy) {
	t.Helper()
	_, err := e.settings.Update(context.Background(), model.SettingsPatch{ExpirationHandling: &p})
	require.NoError(t, err)
}

func (e *env) checkIn(t *testing.T, seat, product, tag string) *Result {
	t.Helper()
	res, err := e.lifecycle.BeginSeat(context.Background(), BeginSeatInput{SeatID: seat, ProductID: product, UserTag: tag})
	require.NoError(t, err)
	return res
}

func eventsOfType(events []model.AuditEvent, typ model.EventType) []model.AuditEvent {
	var out []model.AuditEvent
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
