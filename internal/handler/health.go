package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is used by load balancers and the kiosk shell to check the
// service is up. It does not touch the store.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
