package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-locker-kiosk/internal/middleware"
	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/scan"
	"github.com/iliyamo/seat-locker-kiosk/internal/service"
)

const requestTimeout = 5 * time.Second

// KioskHandler serves the customer-facing kiosk endpoints. Callers are
// anonymous unless they carry an admin token, which is what unlocks force.
type KioskHandler struct {
	State     *service.StateService
	Lifecycle *service.LifecycleService
	Scan      *service.ScanService
}

func NewKioskHandler(state *service.StateService, lifecycle *service.LifecycleService, scan *service.ScanService) *KioskHandler {
	return &KioskHandler{State: state, Lifecycle: lifecycle, Scan: scan}
}

// ----- DTOs -----

type checkInReq struct {
	SeatID    string `json:"seatId"`
	ProductID string `json:"productId"`
	UserTag   string `json:"userTag"`
}

type checkOutReq struct {
	SeatID  string `json:"seatId"`
	UserTag string `json:"userTag"`
	Force   bool   `json:"force"`
}

type assignReq struct {
	LockerID            string `json:"lockerId"`
	UserTag             string `json:"userTag"`
	LinkedSeatSessionID string `json:"linkedSeatSessionId"`
}

type releaseReq struct {
	LockerID string `json:"lockerId"`
	UserTag  string `json:"userTag"`
	Force    bool   `json:"force"`
}

type resolveReq struct {
	Code string `json:"code"`
}

type dispatchReq struct {
	Code                string `json:"code"`
	Intent              string `json:"intent"`
	UserTag             string `json:"userTag"`
	ProductID           string `json:"productId"`
	LinkedSeatSessionID string `json:"linkedSeatSessionId"`
	Force               bool   `json:"force"`
}

// Snapshot returns the polled floor state. It sweeps expired sessions first.
func (h *KioskHandler) Snapshot(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	snap, err := h.State.Snapshot(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *KioskHandler) Products(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	products, err := h.State.Products(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *KioskHandler) CheckIn(c echo.Context) error {
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.BeginSeat(ctx, service.BeginSeatInput{
		SeatID:    req.SeatID,
		ProductID: req.ProductID,
		UserTag:   req.UserTag,
		Actor:     actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *KioskHandler) CheckOut(c echo.Context) error {
	var req checkOutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Force && !middleware.IsAdmin(c) {
		return respondError(c, model.ErrPrivilegeRequired)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.EndSeat(ctx, service.EndInput{ResourceID: req.SeatID, UserTag: req.UserTag, Privileged: req.Force})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *KioskHandler) AssignLocker(c echo.Context) error {
	var req assignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.BeginLocker(ctx, service.BeginLockerInput{
		LockerID:            req.LockerID,
		UserTag:             req.UserTag,
		LinkedSeatSessionID: req.LinkedSeatSessionID,
		Actor:               actor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *KioskHandler) ReleaseLocker(c echo.Context) error {
	var req releaseReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Force && !middleware.IsAdmin(c) {
		return respondError(c, model.ErrPrivilegeRequired)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Lifecycle.EndLocker(ctx, service.EndInput{ResourceID: req.LockerID, UserTag: req.UserTag, Privileged: req.Force})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Resolve reports what a scanned code points at. Unrecognised codes are a
// normal answer (kind UNKNOWN), not an error.
func (h *KioskHandler) Resolve(c echo.Context) error {
	var req resolveReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if ref := scan.Resolve(req.Code); !ref.Known() {
		return c.JSON(http.StatusOK, service.Resolution{Ref: ref})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Scan.Resolve(ctx, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Dispatch resolves a code and performs the declared intent. Ending with
// force needs an admin token.
func (h *KioskHandler) Dispatch(c echo.Context) error {
	var req dispatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Force && !middleware.IsAdmin(c) {
		return respondError(c, model.ErrPrivilegeRequired)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Scan.Dispatch(ctx, service.DispatchRequest{
		Code:                req.Code,
		Intent:              service.Intent(req.Intent),
		UserTag:             req.UserTag,
		ProductID:           req.ProductID,
		LinkedSeatSessionID: req.LinkedSeatSessionID,
		Privileged:          req.Force,
	})
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusOK
	if service.Intent(req.Intent) == service.IntentBeginSeat || service.Intent(req.Intent) == service.IntentBeginLocker {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

func actor(c echo.Context) model.ActorRole {
	if middleware.IsAdmin(c) {
		return model.RoleAdmin
	}
	return model.RoleCustomer
}
