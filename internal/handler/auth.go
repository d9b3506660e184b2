package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-locker-kiosk/internal/middleware"
	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/utils"
)

// AuthHandler issues admin tokens in exchange for the staff passcode. There
// is a single admin principal; customers never log in.
type AuthHandler struct {
	Secret       string
	TTLMin       int
	PasscodeHash string
	SecureCookie bool
	Now          func() time.Time
}

func NewAuthHandler(secret string, ttlMin int, passcodeHash string, secureCookie bool) *AuthHandler {
	return &AuthHandler{Secret: secret, TTLMin: ttlMin, PasscodeHash: passcodeHash, SecureCookie: secureCookie, Now: time.Now}
}

type loginReq struct {
	Passcode string `json:"passcode"`
}

type loginResp struct {
	Role    string    `json:"role"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login checks the passcode and sets the auth-token cookie. The token is
// also returned for clients that prefer a Bearer header.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Passcode == "" || !utils.VerifyPasscode(h.PasscodeHash, req.Passcode) {
		return respondError(c, model.ErrInvalidPasscode)
	}
	tok, err := utils.NewAdminToken(h.Secret, h.TTLMin, h.Now())
	if err != nil {
		return respondError(c, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     utils.AuthCookie,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, loginResp{Role: utils.RoleAdmin, Token: tok.Token, Expires: tok.Exp})
}

// Logout clears the cookie. Tokens are stateless, so a copied Bearer token
// stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     utils.AuthCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.NoContent(http.StatusNoContent)
}

// Me reports the caller's role; anonymous callers are CUSTOMER.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"role": middleware.Role(c)})
}
