package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
)

func TestSnapshot_SweepsBeforeReading(t *testing.T) {
	e := newEnv(t)
	e.setPolicy(t, model.PolicyAuto)
	e.checkIn(t, "A1", "product-1h", "1234")
	e.checkIn(t, "A2", "product-3h", "5678")
	e.clock.Advance(2 * time.Hour)

	snap, err := e.state.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PolicyAuto, snap.ExpirationHandling)
	assert.Equal(t, 1, snap.Sweep.Applied)
	assert.Len(t, snap.Seats, 16)
	assert.Len(t, snap.Lockers, 20)
	assert.Len(t, snap.Products, 4, "inactive products are hidden")
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "A2", snap.Sessions[0].ResourceID)

	for _, v := range snap.Seats {
		switch v.ID {
		case "A1":
			assert.Equal(t, model.StatusAvailable, v.Status)
			assert.Nil(t, v.CurrentSession)
		case "A2":
			assert.Equal(t, model.StatusOccupied, v.Status)
			require.NotNil(t, v.CurrentSession)
			assert.Equal(t, "5678", v.CurrentSession.UserTag)
		}
	}
}

func TestLogs_FallsBackToRawPayload(t *testing.T) {
	e := newEnv(t)
	e.checkIn(t, "B1", "product-1h", "1234")
	require.NoError(t, e.store.Store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.AppendAuditEvent(ctx, &model.AuditEvent{
			ID:        "legacy-1",
			Type:      model.EventCheckOut,
			Payload:   "seat B1 checked out",
			ActorRole: model.RoleCustomer,
			CreatedAt: t0.Add(time.Minute),
		})
	}))

	logs, err := e.state.Logs(context.Background(), model.EventFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "legacy-1", logs[0].ID)
	assert.Nil(t, logs[0].Payload)
	assert.Equal(t, "seat B1 checked out", logs[0].RawPayload)

	assert.Equal(t, model.EventCheckIn, logs[1].Type)
	assert.Empty(t, logs[1].RawPayload)
	assert.Equal(t, "B1", logs[1].Payload["seatId"])
	assert.Equal(t, "1 hour", logs[1].Payload["productName"])

	logs, err = e.state.Logs(context.Background(), model.EventFilter{Search: "CHECK_IN"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestLabels(t *testing.T) {
	e := newEnv(t)

	labels, format, err := e.state.Labels(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, model.FormatLegacy, format)
	require.Len(t, labels, 36)
	assert.Equal(t, "SEAT:A1", labels[0].Code)
	assert.Equal(t, "LOCKER:001", labels[16].Code)

	labels, format, err = e.state.Labels(context.Background(), model.FormatApp1)
	require.NoError(t, err)
	assert.Equal(t, model.FormatApp1, format)
	for _, l := range labels {
		ref := scan.Resolve(l.Code)
		require.True(t, ref.Known(), l.Code)
		assert.Equal(t, l.Kind, ref.Kind)
		assert.Equal(t, l.ID, *ref.ID)
	}

	_, _, err = e.state.Labels(context.Background(), "QR9")
	require.ErrorIs(t, err, model.ErrInvalidSetting)
}

func TestSettings_UpdateAndDefaults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	st, err := e.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings, st)

	app1 := model.QRFormat("app1")
	yes := true
	st, err = e.settings.Update(ctx, model.SettingsPatch{QRFormat: &app1, CheckoutConfirmRequired: &yes})
	require.NoError(t, err)
	assert.Equal(t, model.FormatApp1, st.QRFormat)
	assert.True(t, st.CheckoutConfirmRequired)
	assert.Equal(t, model.PolicyManual, st.ExpirationHandling)

	bad := model.ExpirationPolicy("LATER")
	_, err = e.settings.Update(ctx, model.SettingsPatch{ExpirationHandling: &bad})
	require.ErrorIs(t, err, model.ErrInvalidSetting)

	// A value written behind our back that no longer parses falls back.
	require.NoError(t, e.store.PutSettings(ctx, map[string]string{model.SettingScanMode: "BLUETOOTH"}))
	st, err = e.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ScanAuto, st.ScanMode)
}
