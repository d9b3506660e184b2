package middleware // package middleware contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/seat-locker-kiosk/internal/utils"
)

// JWTAuth rejects requests without a valid admin token. The token is read
// from a Bearer Authorization header or, failing that, the auth-token
// cookie. On success the sub and role claims are stored in the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing token", "kind": "UNAUTHENTICATED", "code": "UNAUTHENTICATED"})
			}
			if !authenticate(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "kind": "UNAUTHENTICATED", "code": "UNAUTHENTICATED"})
			}
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for kiosk routes: a valid token sets the role, a
// missing or bad one leaves the caller anonymous.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := tokenFrom(c); raw != "" {
				authenticate(c, secret, raw)
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, secret, raw string) bool {
	claims, err := utils.ParseToken(secret, raw)
	if err != nil {
		return false
	}
	c.Set(ctxSubject, claims["sub"])
	c.Set(ctxRole, claims["role"])
	return true
}

func tokenFrom(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(utils.AuthCookie); err == nil {
		return ck.Value
	}
	return ""
}
