package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, Seed(s, "A-B", 2, 3))
	return s
}

func TestSeed(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	seats, err := s.ListResources(ctx, model.KindSeat)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	assert.Equal(t, "A1", seats[0].ID)

	lockers, err := s.ListResources(ctx, model.KindLocker)
	require.NoError(t, err)
	require.Len(t, lockers, 3)
	assert.Equal(t, "001", lockers[0].ID)

	products, err := s.ListProducts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, products, 4)

	assert.Error(t, Seed(New(), "A-", 2, 3))
}

func TestCompareAndSwap(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	sid := "sess-1"

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		n, err := tx.CompareAndSwapResource(ctx, model.KindSeat, "A1", 1, model.StatusAvailable,
			model.ResourceUpdate{Status: model.StatusOccupied, CurrentSessionID: &sid})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		// Stale version and stale status both miss.
		n, err = tx.CompareAndSwapResource(ctx, model.KindSeat, "A1", 1, model.StatusOccupied, model.ResourceUpdate{Status: model.StatusAvailable})
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = tx.CompareAndSwapResource(ctx, model.KindSeat, "A1", 2, model.StatusAvailable, model.ResourceUpdate{Status: model.StatusAvailable})
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	r, ok := s.Resource(model.KindSeat, "A1")
	require.True(t, ok)
	assert.Equal(t, model.StatusOccupied, r.Status)
	assert.EqualValues(t, 2, r.Version)
	require.NotNil(t, r.CurrentSessionID)
	assert.Equal(t, sid, *r.CurrentSessionID)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")
	sid := "sess-2"
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.CreateSession(ctx, &model.Session{
			ID: sid, ResourceKind: model.KindSeat, ResourceID: "B2", UserTag: "1234",
			StartAt: start, Status: model.SessionActive,
		}))
		n, err := tx.CompareAndSwapResource(ctx, model.KindSeat, "B2", 1, model.StatusAvailable,
			model.ResourceUpdate{Status: model.StatusOccupied, CurrentSessionID: &sid})
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		require.NoError(t, tx.AppendAuditEvent(ctx, &model.AuditEvent{ID: "ev-1", Type: model.EventCheckIn, Payload: "{}", ActorRole: model.RoleCustomer, CreatedAt: start}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	r, _ := s.Resource(model.KindSeat, "B2")
	assert.Equal(t, model.StatusAvailable, r.Status)
	assert.EqualValues(t, 1, r.Version)
	assert.Nil(t, r.CurrentSessionID)
	_, ok := s.Session(sid)
	assert.False(t, ok)
	assert.Empty(t, s.Events())
}

func TestUpdateSession_Missing(t *testing.T) {
	s := seeded(t)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		st := model.SessionEnded
		return tx.UpdateSession(ctx, "nope", model.SessionUpdate{Status: &st})
	})
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	s := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, func(context.Context, repository.Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRollback_KeepsLaterCommittedSessionWrite(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	sid := "sess-3"
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateSession(ctx, &model.Session{
			ID: sid, ResourceKind: model.KindSeat, ResourceID: "A1", UserTag: "1234",
			StartAt: start, Status: model.SessionActive,
		}); err != nil {
			return err
		}
		_, err := tx.CompareAndSwapResource(ctx, model.KindSeat, "A1", 1, model.StatusAvailable,
			model.ResourceUpdate{Status: model.StatusOccupied, CurrentSessionID: &sid})
		return err
	}))

	// Two checkouts race on the same seat. B writes the session first, A
	// writes it second and wins the swap, then B loses its swap and rolls back.
	ended := model.SessionEnded
	reason := model.ReasonCheckout
	end := model.SessionUpdate{Status: &ended, EndedReason: &reason}
	a, b := &memTx{s: s}, &memTx{s: s}

	require.NoError(t, b.UpdateSession(ctx, sid, end))
	require.NoError(t, a.UpdateSession(ctx, sid, end))
	n, err := a.CompareAndSwapResource(ctx, model.KindSeat, "A1", 2, model.StatusOccupied, model.ResourceUpdate{Status: model.StatusAvailable})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = b.CompareAndSwapResource(ctx, model.KindSeat, "A1", 2, model.StatusOccupied, model.ResourceUpdate{Status: model.StatusAvailable})
	require.NoError(t, err)
	require.Zero(t, n)
	b.rollback()

	r, _ := s.Resource(model.KindSeat, "A1")
	assert.Equal(t, model.StatusAvailable, r.Status)
	assert.Nil(t, r.CurrentSessionID)
	sess, ok := s.Session(sid)
	require.True(t, ok)
	assert.Equal(t, model.SessionEnded, sess.Status)

	// A rollback with nothing written on top still restores.
	c := &memTx{s: s}
	active := model.SessionActive
	require.NoError(t, c.UpdateSession(ctx, sid, model.SessionUpdate{Status: &active}))
	c.rollback()
	sess, _ = s.Session(sid)
	assert.Equal(t, model.SessionEnded, sess.Status)
}
