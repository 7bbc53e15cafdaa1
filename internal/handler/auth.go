package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinylverse/storefront/internal/service"
)

// AuthHandler serves sign-up, sign-in and account settings.
type AuthHandler struct {
	Accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{Accounts: accounts}
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleReq struct {
	Credential string `json:"credential"`
	UseGoogle  bool   `json:"useGoogle"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type emailReq struct {
	NewEmail string `json:"newEmail"`
}

type passwordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deleteReq struct {
	Password string `json:"password"`
}

// Signup: create a password account and return a session.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Accounts.Signup(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// Login: verify credentials and return a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// GoogleLogin: sign in with a Google ID token. An existing password
// account answers 409 with errorCode ACCOUNT_EXISTS until the client
// retries with useGoogle.
func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	var req googleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Credential == "" {
		return badRequest(c, "credential required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Accounts.GoogleLogin(ctx, req.Credential, req.UseGoogle)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Refresh: exchange a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "refreshToken required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout revokes every refresh token of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Accounts.Logout(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Accounts.Me(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// ChangeEmail returns a fresh access token carrying the new address.
func (h *AuthHandler) ChangeEmail(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req emailReq
	if err := c.Bind(&req); err != nil || req.NewEmail == "" {
		return badRequest(c, "newEmail required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	sess, err := h.Accounts.ChangeEmail(ctx, id, req.NewEmail)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req passwordReq
	if err := c.Bind(&req); err != nil || req.NewPassword == "" {
		return badRequest(c, "newPassword required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Accounts.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Delete removes the caller's account. Orders are kept without an owner.
func (h *AuthHandler) Delete(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req deleteReq
	_ = c.Bind(&req)
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Accounts.DeleteAccount(ctx, id, req.Password); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
