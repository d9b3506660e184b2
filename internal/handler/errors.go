package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
)

var kindStatus = map[string]int{
	"NOT_FOUND":       http.StatusNotFound,
	"CONFLICT":        http.StatusConflict,
	"VALIDATION":      http.StatusBadRequest,
	"FORBIDDEN":       http.StatusForbidden,
	"UNAUTHENTICATED": http.StatusUnauthorized,
	"INTERNAL":        http.StatusInternalServerError,
}

// respondError maps a service error onto its taxonomy status. Internal
// errors are logged and their text is not sent to the client.
func respondError(c echo.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out", "kind": "INTERNAL", "code": "TIMEOUT"})
	}
	kind := model.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Errorj(log.JSON{
			"msg":    "request failed",
			"path":   c.Path(),
			"error":  msg,
			"req_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"error": msg, "kind": kind, "code": model.CodeOf(err)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "kind": "VALIDATION", "code": "INVALID_BODY"})
}
