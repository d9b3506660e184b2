package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
)

// SettingsService layers stored operator settings over config defaults.
type SettingsService struct {
	store    repository.Store
	defaults model.Settings
}

// DefaultSettings is used for any key that has never been stored.
var DefaultSettings = model.Settings{
	ExpirationHandling: model.PolicyManual,
	QRFormat:           model.FormatLegacy,
	ScanMode:           model.ScanAuto,
}

func NewSettingsService(store repository.Store, defaults model.Settings) *SettingsService {
	if !defaults.ExpirationHandling.Valid() {
		defaults.ExpirationHandling = DefaultSettings.ExpirationHandling
	}
	if !defaults.QRFormat.Valid() {
		defaults.QRFormat = DefaultSettings.QRFormat
	}
	if !defaults.ScanMode.Valid() {
		defaults.ScanMode = DefaultSettings.ScanMode
	}
	return &SettingsService{store: store, defaults: defaults}
}

// Get returns the effective settings. Stored values that no longer parse
// fall back to the defaults.
func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	out := s.defaults
	kv, err := s.store.GetSettings(ctx)
	if err != nil {
		return out, err
	}
	if v := model.ExpirationPolicy(strings.ToUpper(kv[model.SettingExpirationHandling])); v.Valid() {
		out.ExpirationHandling = v
	}
	if v := model.QRFormat(strings.ToUpper(kv[model.SettingQRFormat])); v.Valid() {
		out.QRFormat = v
	}
	if v := model.ScanMode(strings.ToUpper(kv[model.SettingScanMode])); v.Valid() {
		out.ScanMode = v
	}
	if b, err := strconv.ParseBool(kv[model.SettingCheckoutConfirmRequired]); err == nil {
		out.CheckoutConfirmRequired = b
	}
	return out, nil
}

// Policy returns the current expiration policy, or the default if the
// store cannot be read.
func (s *SettingsService) Policy(ctx context.Context) (model.ExpirationPolicy, error) {
	st, err := s.Get(ctx)
	return st.ExpirationHandling, err
}

// Update validates and stores the non-nil fields of p.
func (s *SettingsService) Update(ctx context.Context, p model.SettingsPatch) (model.Settings, error) {
	kv := map[string]string{}
	if p.ExpirationHandling != nil {
		v := model.ExpirationPolicy(strings.ToUpper(string(*p.ExpirationHandling)))
		if !v.Valid() {
			return model.Settings{}, fmt.Errorf("%w: expirationHandling %q", model.ErrInvalidSetting, *p.ExpirationHandling)
		}
		kv[model.SettingExpirationHandling] = string(v)
	}
	if p.QRFormat != nil {
		v := model.QRFormat(strings.ToUpper(string(*p.QRFormat)))
		if !v.Valid() {
			return model.Settings{}, fmt.Errorf("%w: qrFormat %q", model.ErrInvalidSetting, *p.QRFormat)
		}
		kv[model.SettingQRFormat] = string(v)
	}
	if p.ScanMode != nil {
		v := model.ScanMode(strings.ToUpper(string(*p.ScanMode)))
		if !v.Valid() {
			return model.Settings{}, fmt.Errorf("%w: scanMode %q", model.ErrInvalidSetting, *p.ScanMode)
		}
		kv[model.SettingScanMode] = string(v)
	}
	if p.CheckoutConfirmRequired != nil {
		kv[model.SettingCheckoutConfirmRequired] = strconv.FormatBool(*p.CheckoutConfirmRequired)
	}
	if err := s.store.PutSettings(ctx, kv); err != nil {
		return model.Settings{}, err
	}
	return s.Get(ctx)
}
