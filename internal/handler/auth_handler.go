package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "filevault/internal/errors"
	"filevault/internal/model"
	"filevault/internal/service"
)

// RefreshCookie is the cookie carrying the refresh token.
const RefreshCookie = "jwt"

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  service.AuthService
	cookieSecure bool
	now          func() time.Time
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{authService: authService, cookieSecure: cookieSecure, now: time.Now}
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token"`
}

// Register godoc
// @Summary Register a new user
// @Description Creates an unverified account and mails a verification link.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration data"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrValidation
	}

	if _, err := h.authService.Register(c.Request().Context(), CurrentUser(c), req); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, MessageResponse{
		Success: true,
		Message: "User registered successfully. Please look into your email to verify.",
	})
}

// Login godoc
// @Summary Login user
// @Description Returns an access token and sets the refresh token cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return apperrors.ErrInvalidCredentials
	}

	session, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.Refresh)
	return c.JSON(http.StatusOK, TokenResponse{
		Success: true,
		Message: "Logged in",
		Token:   session.AccessToken,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchanges the refresh token cookie for a new token pair.
// @Tags auth
// @Produce json
// @Success 200 {object} TokenResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return apperrors.ErrUnauthorized
	}

	session, err := h.authService.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, session.Refresh)
	return c.JSON(http.StatusOK, TokenResponse{
		Success: true,
		Token:   session.AccessToken,
	})
}

// Logout godoc
// @Summary Logout user
// @Description Revokes the refresh token cookie if present and clears it.
// @Tags auth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var token string
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		token = cookie.Value
	}
	_ = h.authService.Logout(c.Request().Context(), token)

	c.SetCookie(h.cookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

// VerifyEmail godoc
// @Summary Verify email address
// @Tags auth
// @Produce json
// @Param token query string true "Email verification token"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/email-verification [get]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return apperrors.ErrTokenInvalid
	}

	if err := h.authService.VerifyEmail(c.Request().Context(), token); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Email verified"})
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, refresh *model.Token) {
	maxAge := int(refresh.Remaining(h.now()) / time.Second)
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetCookie(h.cookie(refresh.Token, maxAge))
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}
