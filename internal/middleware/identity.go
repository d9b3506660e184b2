package middleware

// identity.go holds the context keys JWTAuth writes and the helpers
// handlers and other middleware use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-locker-kiosk/internal/utils"
)

const (
	ctxSubject = "user_id"
	ctxRole    = "role"
)

// Role returns the caller's role. Callers without a valid token are
// customers.
func Role(c echo.Context) string {
	if r, ok := c.Get(ctxRole).(string); ok && r != "" {
		return r
	}
	return utils.RoleCustomer
}

// IsAdmin reports whether the request carries a valid admin token.
func IsAdmin(c echo.Context) bool { return Role(c) == utils.RoleAdmin }

// subject returns the sub claim, or "anon" when there is none.
func subject(c echo.Context) string {
	if s, ok := c.Get(ctxSubject).(string); ok && s != "" {
		return s
	}
	return "anon"
}
