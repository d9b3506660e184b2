package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-locker-kiosk/internal/handler"
	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository/memstore"
	"github.com/iliyamo/seat-locker-kiosk/internal/router"
	"github.com/iliyamo/seat-locker-kiosk/internal/service"
	"github.com/iliyamo/seat-locker-kiosk/internal/utils"
)

const secret = "handler-test-secret"

type api struct {
	e     *echo.Echo
	store *memstore.Store
}

func noop(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newAPI(t *testing.T) *api {
	t.Helper()
	return newAPIWithLoginLimit(t, noop)
}

func newAPIWithLoginLimit(t *testing.T, loginLimiter echo.MiddlewareFunc) *api {
	t.Helper()
	store := memstore.New()
	require.NoError(t, memstore.Seed(store, "A-B", 3, 5))

	lc := service.NewLifecycleService(store, nil, service.DiscardLogger())
	settings := service.NewSettingsService(store, service.DefaultSettings)
	exp := service.NewExpirationService(store, lc, settings, service.DiscardLogger())
	state := service.NewStateService(store, exp, settings, service.DiscardLogger())

	hash, err := utils.HashPasscode("2468", bcrypt.MinCost)
	require.NoError(t, err)

	e := echo.New()
	router.RegisterRoutes(e, nil)
	router.RegisterKiosk(e, handler.NewKioskHandler(state, lc, service.NewScanService(store, lc)), secret, noop, noop)
	router.RegisterAuth(e, handler.NewAuthHandler(secret, 60, hash, false), secret, loginLimiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(state, lc, settings), secret)
	return &api{e: e, store: store}
}

func (a *api) call(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) login(t *testing.T) string {
	t.Helper()
	rec := a.call(http.MethodPost, "/v1/auth/login", `{"passcode":"2468"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, utils.RoleAdmin, out.Role)
	return out.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCheckInAndOut(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodPost, "/v1/seats/checkin", `{"seatId":"a1","productId":"product-1h","userTag":"1234"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "OCCUPIED", body["resource"].(map[string]any)["status"])

	rec = a.call(http.MethodPost, "/v1/seats/checkin", `{"seatId":"A1","productId":"product-1h","userTag":"9999"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RESOURCE_BUSY", decode(t, rec)["code"])

	rec = a.call(http.MethodPost, "/v1/seats/checkout", `{"seatId":"A1","userTag":"9999"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TAG_MISMATCH", decode(t, rec)["code"])

	rec = a.call(http.MethodPost, "/v1/seats/checkout", `{"seatId":"A1","userTag":"1234"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	seat, _ := a.store.Resource(model.KindSeat, "A1")
	assert.Equal(t, model.StatusAvailable, seat.Status)
}

func TestErrorBodies(t *testing.T) {
	a := newAPI(t)
	cases := []struct {
		path, body string
		status     int
		kind, code string
	}{
		{"/v1/seats/checkin", `{"seatId":"A1","productId":"product-1h","userTag":"12"}`, http.StatusBadRequest, "VALIDATION", "INVALID_USER_TAG"},
		{"/v1/seats/checkin", `{"seatId":"Z1","productId":"product-1h","userTag":"1234"}`, http.StatusNotFound, "NOT_FOUND", "RESOURCE_NOT_FOUND"},
		{"/v1/seats/checkin", `{"seatId":"A1","productId":"nope","userTag":"1234"}`, http.StatusNotFound, "NOT_FOUND", "PRODUCT_NOT_FOUND"},
		{"/v1/seats/checkout", `{"seatId":"A2","userTag":"1234"}`, http.StatusConflict, "CONFLICT", "NO_ACTIVE_SESSION"},
		{"/v1/seats/checkout", `{"seatId":"A2","force":true}`, http.StatusForbidden, "FORBIDDEN", "PRIVILEGE_REQUIRED"},
		{"/v1/scan/dispatch", `{"code":"LOCKER:1","intent":"BEGIN_SEAT","userTag":"1234"}`, http.StatusBadRequest, "VALIDATION", "WRONG_CODE_TYPE"},
		{"/v1/seats/checkin", `{"seatId":`, http.StatusBadRequest, "VALIDATION", "INVALID_BODY"},
	}
	for _, tc := range cases {
		rec := a.call(http.MethodPost, tc.path, tc.body, "")
		assert.Equal(t, tc.status, rec.Code, tc.body)
		body := decode(t, rec)
		assert.Equal(t, tc.kind, body["kind"], tc.body)
		assert.Equal(t, tc.code, body["code"], tc.body)
		assert.NotEmpty(t, body["error"])
	}
}

func TestScanResolve(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodPost, "/v1/scan/resolve", `{"code":"APP1|LOCKER|3|v1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "LOCKER", body["kind"])
	assert.Equal(t, "003", body["id"])
	assert.Equal(t, false, body["hasActiveSession"])

	rec = a.call(http.MethodPost, "/v1/scan/resolve", `{"code":"bogus"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "UNKNOWN", body["kind"])
	assert.Nil(t, body["id"])
}

func TestDispatchFlow(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodPost, "/v1/scan/dispatch", `{"code":"SEAT:B2","intent":"BEGIN_SEAT","userTag":"1111","productId":"product-2h"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.call(http.MethodPost, "/v1/scan/dispatch", `{"code":"SEAT:B2","intent":"BEGIN_SEAT","userTag":"2222","productId":"product-2h"}`, "")
	assert.Equal(t, "RESOURCE_BUSY", decode(t, rec)["code"])

	rec = a.call(http.MethodPost, "/v1/scan/dispatch", `{"code":"SEAT:B1","intent":"END_SEAT","userTag":"1111"}`, "")
	assert.Equal(t, "NO_ACTIVE_SESSION", decode(t, rec)["code"])

	rec = a.call(http.MethodPost, "/v1/scan/dispatch", `{"code":"SEAT:B2","intent":"END_SEAT","userTag":"1111"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAuth(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodPost, "/v1/auth/login", `{"passcode":"0000"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthenticated: invalid passcode","kind":"UNAUTHENTICATED","code":"INVALID_PASSCODE"}`, rec.Body.String())

	rec = a.call(http.MethodGet, "/v1/auth/me", "", "")
	assert.Equal(t, utils.RoleCustomer, decode(t, rec)["role"])

	loginRec := a.call(http.MethodPost, "/v1/auth/login", `{"passcode":"2468"}`, "")
	require.Equal(t, http.StatusOK, loginRec.Code)
	var cookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == utils.AuthCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: utils.AuthCookie, Value: cookie.Value})
	meRec := httptest.NewRecorder()
	a.e.ServeHTTP(meRec, req)
	assert.Equal(t, utils.RoleAdmin, decode(t, meRec)["role"])

	rec = a.call(http.MethodPost, "/v1/auth/logout", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), utils.AuthCookie+"=;")
}

// allowN lets the first n requests through and rejects the rest the way the
// Redis token bucket does.
func allowN(n int) echo.MiddlewareFunc {
	var used int
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			used++
			if used > n {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded", "kind": "CONFLICT", "code": "RATE_LIMITED"})
			}
			return next(c)
		}
	}
}

func TestAuth_LoginIsThrottled(t *testing.T) {
	a := newAPIWithLoginLimit(t, allowN(3))

	for i := 0; i < 3; i++ {
		rec := a.call(http.MethodPost, "/v1/auth/login", `{"passcode":"0000"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := a.call(http.MethodPost, "/v1/auth/login", `{"passcode":"2468"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, rec)["code"])

	// Only login is behind the login bucket.
	rec = a.call(http.MethodGet, "/v1/auth/me", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodGet, "/v1/admin/logs", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok := a.login(t)
	rec = a.call(http.MethodPost, "/v1/seats/checkin", `{"seatId":"A3","productId":"product-1h","userTag":"1234"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.call(http.MethodPost, "/v1/admin/seats/A3/extend", `{"addMinutes":15}`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.call(http.MethodPost, "/v1/admin/seats/A3/extend", `{}`, tok)
	assert.Equal(t, "INVALID_DURATION", decode(t, rec)["code"])

	rec = a.call(http.MethodPost, "/v1/admin/seats/A3/force-end", "", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.call(http.MethodPost, "/v1/admin/lockers/002/force-release", "", tok)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.call(http.MethodGet, "/v1/admin/logs?limit=2", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode(t, rec)
	assert.EqualValues(t, 2, logs["count"])
	first := logs["events"].([]any)[0].(map[string]any)
	assert.Equal(t, "FORCE_END", first["type"])
	assert.Equal(t, "A3", first["payload"].(map[string]any)["resourceId"])

	rec = a.call(http.MethodGet, "/v1/admin/logs?limit=x", "", tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSettingsAndLabels(t *testing.T) {
	a := newAPI(t)
	tok := a.login(t)

	rec := a.call(http.MethodGet, "/v1/admin/settings", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MANUAL", decode(t, rec)["expirationHandling"])

	rec = a.call(http.MethodPatch, "/v1/admin/settings", `{"expirationHandling":"WHENEVER"}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SETTING", decode(t, rec)["code"])

	rec = a.call(http.MethodPatch, "/v1/admin/settings", `{"qrFormat":"APP1"}`, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.call(http.MethodGet, "/v1/admin/labels", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "APP1", body["format"])
	labels := body["labels"].([]any)
	require.Len(t, labels, 11)
	assert.Equal(t, "APP1|SEAT|A1|v1", labels[0].(map[string]any)["code"])

	rec = a.call(http.MethodGet, "/v1/admin/labels?format=legacy", "", tok)
	assert.Equal(t, "LOCKER:001", decode(t, rec)["labels"].([]any)[6].(map[string]any)["code"])
}

func TestStateEndpointSweeps(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodPost, "/v1/seats/checkin", `{"seatId":"A1","productId":"product-1h","userTag":"1234"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.call(http.MethodGet, "/v1/state", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["seats"], 6)
	assert.Len(t, body["lockers"], 5)
	assert.Len(t, body["sessions"], 1)
	assert.Equal(t, "MANUAL", body["expirationHandling"])

	rec = a.call(http.MethodGet, "/v1/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var products []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 4)
	assert.Equal(t, "product-1h", products[0].ID)
}
