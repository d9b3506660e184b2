package model

import (
	"errors"
	"fmt"
)

// Taxonomy kinds. Every error returned by the service layer wraps exactly
// one of these so handlers can map it to a status code without string
// matching.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrInternal   = errors.New("internal error")

	// ErrUnauthenticated is for callers that presented no valid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Not found.
var (
	ErrResourceNotFound = fmt.Errorf("%w: resource", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("%w: session", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("%w: product", ErrNotFound)
)

// Conflicts. ErrVersionConflict is the only one the lifecycle manager retries.
var (
	ErrResourceBusy    = fmt.Errorf("%w: resource is in use", ErrConflict)
	ErrNoActiveSession = fmt.Errorf("%w: no active session", ErrConflict)
	ErrVersionConflict = fmt.Errorf("%w: resource was modified concurrently", ErrConflict)
	ErrNotExtendable   = fmt.Errorf("%w: session cannot be extended", ErrConflict)
)

// Validation.
var (
	ErrInvalidUserTag       = fmt.Errorf("%w: user tag must be exactly 4 digits", ErrValidation)
	ErrInvalidResourceID    = fmt.Errorf("%w: malformed resource id", ErrValidation)
	ErrProductInactive      = fmt.Errorf("%w: product is inactive", ErrValidation)
	ErrLinkedSessionInvalid = fmt.Errorf("%w: linked seat session is not active", ErrValidation)
	ErrUnrecognizedCode     = fmt.Errorf("%w: unrecognized scan code", ErrValidation)
	ErrWrongCodeType        = fmt.Errorf("%w: scanned code does not match the requested action", ErrValidation)
	ErrInvalidSetting       = fmt.Errorf("%w: invalid setting value", ErrValidation)
	ErrInvalidDuration      = fmt.Errorf("%w: minutes must be positive", ErrValidation)
)

// Forbidden.
var (
	ErrTagMismatch       = fmt.Errorf("%w: user tag does not match", ErrForbidden)
	ErrPrivilegeRequired = fmt.Errorf("%w: admin privileges required", ErrForbidden)
)

var ErrInvalidPasscode = fmt.Errorf("%w: invalid passcode", ErrUnauthenticated)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrConflict, "CONFLICT"},
	{ErrValidation, "VALIDATION"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrUnauthenticated, "UNAUTHENTICATED"},
	{ErrInternal, "INTERNAL"},
}

// codes are checked in order; the first match wins.
var codes = []struct {
	err  error
	code string
}{
	{ErrResourceBusy, "RESOURCE_BUSY"},
	{ErrNoActiveSession, "NO_ACTIVE_SESSION"},
	{ErrVersionConflict, "VERSION_CONFLICT"},
	{ErrNotExtendable, "NOT_EXTENDABLE"},
	{ErrWrongCodeType, "WRONG_CODE_TYPE"},
	{ErrUnrecognizedCode, "UNRECOGNIZED_CODE"},
	{ErrInvalidUserTag, "INVALID_USER_TAG"},
	{ErrInvalidResourceID, "INVALID_RESOURCE_ID"},
	{ErrProductInactive, "PRODUCT_INACTIVE"},
	{ErrLinkedSessionInvalid, "LINKED_SESSION_INVALID"},
	{ErrInvalidSetting, "INVALID_SETTING"},
	{ErrInvalidDuration, "INVALID_DURATION"},
	{ErrTagMismatch, "TAG_MISMATCH"},
	{ErrPrivilegeRequired, "PRIVILEGE_REQUIRED"},
	{ErrInvalidPasscode, "INVALID_PASSCODE"},
	{ErrResourceNotFound, "RESOURCE_NOT_FOUND"},
	{ErrSessionNotFound, "SESSION_NOT_FOUND"},
	{ErrProductNotFound, "PRODUCT_NOT_FOUND"},
}

// KindOf returns the stable taxonomy kind of err. Anything that does not
// wrap a known kind is INTERNAL.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "INTERNAL"
}

// CodeOf returns a finer-grained code for presentation layers. It falls
// back to the kind.
func CodeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return KindOf(err)
}
