package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"mindbridge/internal/model"
	"mindbridge/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents a student registration request.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RecoverRequest resets a password with the recovery key.
type RecoverRequest struct {
	Username    string `json:"username" validate:"required"`
	RecoveryKey string `json:"recovery_key" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterResponse carries the one-time recovery key.
type RegisterResponse struct {
	User        *model.User `json:"user"`
	RecoveryKey string      `json:"recovery_key"`
}

// RecoveryKeyResponse carries a freshly issued recovery key.
type RecoveryKeyResponse struct {
	RecoveryKey string `json:"recovery_key"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *model.User `json:"user,omitempty"`
}

// Register godoc
// @Summary Register a student account
// @Description The recovery key is returned once and cannot be retrieved later.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, key, err := h.authService.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusCreated, RegisterResponse{User: user, RecoveryKey: key})
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	accessToken, refreshToken, user, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

// Recover godoc
// @Summary Reset a forgotten password
// @Description Sets a new password and rotates the recovery key.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RecoverRequest true "Recovery data"
// @Success 200 {object} RecoveryKeyResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/recover [post]
func (h *AuthHandler) Recover(c echo.Context) error {
	var req RecoverRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	key, err := h.authService.Recover(c.Request().Context(), req.Username, req.RecoveryKey, req.NewPassword)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, RecoveryKeyResponse{RecoveryKey: key})
}

// Refresh godoc
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	accessToken, err := h.authService.RefreshToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, AuthResponse{AccessToken: accessToken})
}

// Logout godoc
// @Summary Logout
// @Description Revokes the refresh token, and the bearer access token when one is sent.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LogoutRequest true "Refresh token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	accessToken := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken, accessToken); err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "logged out successfully"})
}
