package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-locker-kiosk/internal/handler"
	"github.com/iliyamo/seat-locker-kiosk/internal/middleware"
	"github.com/iliyamo/seat-locker-kiosk/internal/utils"
)

// RegisterRoutes registers routes that need no authentication or limits.
// metrics may be nil.
func RegisterRoutes(e *echo.Echo, metrics http.Handler) {
	e.GET("/healthz", handler.Health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterKiosk mounts the kiosk API under /v1. Callers are anonymous
// unless they present an admin token. limiter wraps every kiosk route;
// cache wraps only the product catalog.
func RegisterKiosk(e *echo.Echo, k *handler.KioskHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.OptionalJWT(jwtSecret), limiter)

	g.GET("/state", k.Snapshot)
	g.GET("/products", k.Products, cache)

	g.POST("/seats/checkin", k.CheckIn)
	g.POST("/seats/checkout", k.CheckOut)
	g.POST("/lockers/assign", k.AssignLocker)
	g.POST("/lockers/release", k.ReleaseLocker)

	g.POST("/scan/resolve", k.Resolve)
	g.POST("/scan/dispatch", k.Dispatch)
}

// RegisterAuth mounts passcode login behind its own limiter. /me reads the
// optional token so the kiosk can show whether staff mode is on.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, loginLimiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, loginLimiter)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.OptionalJWT(jwtSecret))
}

// RegisterAdmin mounts the staff-only routes behind JWTAuth and
// RequireRole(ADMIN).
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(utils.RoleAdmin))

	g.POST("/seats/:id/extend", a.Extend)
	g.POST("/seats/:id/force-end", a.ForceEndSeat)
	g.POST("/lockers/:id/force-release", a.ForceReleaseLocker)

	g.GET("/logs", a.Logs)
	g.GET("/settings", a.GetSettings)
	g.PATCH("/settings", a.PatchSettings)
	g.GET("/labels", a.Labels)
}
