package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mindbridge/internal/auth"
	"mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/service"
)

// UserHandler bundles account directory and self-service endpoints.
type UserHandler struct {
	svc         service.UserService
	authService service.AuthService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, authService service.AuthService) *UserHandler {
	return &UserHandler{svc: svc, authService: authService}
}

// CreateUserRequest is an admin request to open an account of any role.
type CreateUserRequest struct {
	Username string     `json:"username" validate:"required,min=3,max=50"`
	Password string     `json:"password" validate:"required,min=8,max=72"`
	Role     model.Role `json:"role" validate:"required,oneof=STUDENT COUNSELOR ADMIN"`
}

// SetActiveRequest toggles whether an account may sign in.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// ChangePasswordRequest changes the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// CreateUser godoc
// @Summary Create an account (admin)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "Account data"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, key, err := h.svc.CreateUser(c.Request().Context(), req.Username, req.Password, req.Role)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, RegisterResponse{User: user, RecoveryKey: key})
}

// ListUsers godoc
// @Summary List users (admin)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter" Enums(STUDENT, COUNSELOR, ADMIN)
// @Success 200 {array} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	role := model.Role(c.QueryParam("role"))
	if role != "" && !role.Valid() {
		return badRequest("invalid role", "VALIDATION_ERROR")
	}
	users, err := h.svc.ListUsers(c.Request().Context(), role)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// ListCounselors godoc
// @Summary List active counselors
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /users/counselors [get]
func (h *UserHandler) ListCounselors(c echo.Context) error {
	users, err := h.svc.ListCounselors(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// Me godoc
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Request().Context(), who.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// SetActive godoc
// @Summary Activate or deactivate an account (admin)
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id}/active [patch]
func (h *UserHandler) SetActive(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req SetActiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.svc.SetActive(c.Request().Context(), id, *req.IsActive)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// ChangePassword godoc
// @Summary Change own password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/me/password [patch]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.Request().Context(), who.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "password changed"})
}

// RegenerateRecoveryKey godoc
// @Summary Issue a new recovery key
// @Description The previous key stops working.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RecoveryKeyResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/me/recovery-key [post]
func (h *UserHandler) RegenerateRecoveryKey(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	key, err := h.authService.RegenerateRecoveryKey(c.Request().Context(), who.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, RecoveryKeyResponse{RecoveryKey: key})
}

// DeleteUser godoc
// @Summary Delete an account and its conversations (admin)
// @Tags users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteMe godoc
// @Summary Delete own account and its conversations
// @Tags users
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/me [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "authentication required",
			Code:  "UNAUTHORIZED",
		})
	}
	if err := h.svc.DeleteSelf(c.Request().Context(), claims); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
