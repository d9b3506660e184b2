// Package scan converts between printed scan codes and resource references.
//
// Two wire formats are understood:
//
//	SEAT:A12            LOCKER:32            (legacy)
//	APP1|SEAT|A12|v1    APP1|LOCKER|032|v1   (extensible; trailing |... fields ignored)
//
// Parsing accepts both formats regardless of which one a deployment
// generates. Locker ids always come back zero-padded to three digits.
package scan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

// KindUnknown is reported for input that matches neither format.
const KindUnknown model.ResourceKind = "UNKNOWN"

var (
	legacySeat   = regexp.MustCompile(`(?i)^SEAT:([A-Z]\d{1,2})$`)
	legacyLocker = regexp.MustCompile(`(?i)^LOCKER:(\d{1,3})$`)
	app1         = regexp.MustCompile(`(?i)^APP1\|([A-Z]+)\|([A-Z0-9]+)\|v\d+(?:\|.*)?$`)

	seatID   = regexp.MustCompile(`^[A-Z]\d{1,2}$`)
	lockerID = regexp.MustCompile(`^\d{1,3}$`)
	userTag  = regexp.MustCompile(`^\d{4}$`)
)

// Ref is the result of resolving a scanned string. ID is nil when Kind is
// KindUnknown.
type Ref struct {
	Raw  string             `json:"raw"`
	Kind model.ResourceKind `json:"kind"`
	ID   *string            `json:"id"`
}

// Known reports whether the code resolved to a seat or locker.
func (r Ref) Known() bool { return r.Kind != KindUnknown && r.ID != nil }

// Resolve maps a raw scan to a resource reference. It never fails; anything
// unrecognised yields KindUnknown.
func Resolve(raw string) Ref {
	s := strings.TrimSpace(raw)

	if m := app1.FindStringSubmatch(s); m != nil {
		switch strings.ToUpper(m[1]) {
		case string(model.KindSeat):
			if id, ok := NormalizeSeatID(m[2]); ok {
				return known(raw, model.KindSeat, id)
			}
		case string(model.KindLocker):
			if id, ok := NormalizeLockerID(m[2]); ok {
				return known(raw, model.KindLocker, id)
			}
		}
		return Ref{Raw: raw, Kind: KindUnknown}
	}
	if m := legacySeat.FindStringSubmatch(s); m != nil {
		return known(raw, model.KindSeat, strings.ToUpper(m[1]))
	}
	if m := legacyLocker.FindStringSubmatch(s); m != nil {
		id, _ := NormalizeLockerID(m[1])
		return known(raw, model.KindLocker, id)
	}
	return Ref{Raw: raw, Kind: KindUnknown}
}

func known(raw string, kind model.ResourceKind, id string) Ref {
	return Ref{Raw: raw, Kind: kind, ID: &id}
}

// Generate renders a resource id as a scan code in the given format. The id
// is normalised first, so Resolve(Generate(k, id, f)) returns the
// normalised id for every valid input.
func Generate(kind model.ResourceKind, id string, format model.QRFormat) (string, error) {
	var norm string
	var ok bool
	switch kind {
	case model.KindSeat:
		norm, ok = NormalizeSeatID(id)
	case model.KindLocker:
		norm, ok = NormalizeLockerID(id)
	default:
		return "", fmt.Errorf("%w: unknown resource kind %q", model.ErrValidation, kind)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s %q", model.ErrInvalidResourceID, strings.ToLower(string(kind)), id)
	}
	if format == model.FormatApp1 {
		return fmt.Sprintf("APP1|%s|%s|v1", kind, norm), nil
	}
	return fmt.Sprintf("%s:%s", kind, norm), nil
}

// NormalizeSeatID uppercases a seat id and checks it is a row letter followed
// by a one or two digit column.
func NormalizeSeatID(id string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(id))
	if !seatID.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizeLockerID zero-pads a one to three digit locker number.
func NormalizeLockerID(id string) (string, bool) {
	s := strings.TrimSpace(id)
	if !lockerID.MatchString(s) {
		return "", false
	}
	return strings.Repeat("0", 3-len(s)) + s, true
}

// NormalizeID dispatches to the kind-specific normaliser.
func NormalizeID(kind model.ResourceKind, id string) (string, bool) {
	switch kind {
	case model.KindSeat:
		return NormalizeSeatID(id)
	case model.KindLocker:
		return NormalizeLockerID(id)
	}
	return "", false
}

// ValidUserTag reports whether tag is exactly four ASCII digits.
func ValidUserTag(tag string) bool { return userTag.MatchString(tag) }
