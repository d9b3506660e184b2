package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/service"
)

// AdminHandler serves /v1/admin. Every route sits behind JWTAuth and
// RequireRole(ADMIN), so operations here run privileged.
type AdminHandler struct {
	State     *service.StateService
	Lifecycle *service.LifecycleService
	Settings  *service.SettingsService
}

func NewAdminHandler(state *service.StateService, lifecycle *service.LifecycleService, settings *service.SettingsService) *AdminHandler {
	return &AdminHandler{State: state, Lifecycle: lifecycle, Settings: settings}
}

type extendReq struct {
	AddMinutes int    `json:"addMinutes"`
	ProductID  string `json:"productId"`
}

func (h *AdminHandler) Extend(c echo.Context) error {
	var req extendReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.ExtendSeat(ctx, service.ExtendInput{SeatID: c.Param("id"), AddMinutes: req.AddMinutes, ProductID: req.ProductID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) ForceEndSeat(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.EndSeat(ctx, service.EndInput{ResourceID: c.Param("id"), Privileged: true})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) ForceReleaseLocker(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.EndLocker(ctx, service.EndInput{ResourceID: c.Param("id"), Privileged: true})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Logs lists audit events newest first. ?limit= is clamped to 1..200 with a
// default of 50; ?search= matches type or payload text.
func (h *AdminHandler) Logs(c echo.Context) error {
	f := model.EventFilter{Search: strings.TrimSpace(c.QueryParam("search"))}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "limit must be an integer")
		}
		f.Limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	entries, err := h.State.Logs(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"events": entries, "count": len(entries)})
}

func (h *AdminHandler) GetSettings(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.Settings.Get(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) PatchSettings(c echo.Context) error {
	var patch model.SettingsPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	st, err := h.Settings.Update(ctx, patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Labels renders printable scan codes for every resource.
func (h *AdminHandler) Labels(c echo.Context) error {
	format := model.QRFormat(strings.ToUpper(c.QueryParam("format")))
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	labels, used, err := h.State.Labels(ctx, format)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"format": used, "labels": labels})
}
