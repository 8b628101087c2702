package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"filevault/internal/service"
)

// ProfileHandler serves the caller's own account.
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// ProfileResponse wraps the caller's profile.
type ProfileResponse struct {
	Success bool             `json:"success"`
	Data    *service.Profile `json:"data"`
}

// Get godoc
// @Summary Get profile
// @Description Returns the caller's account and file metadata in upload order.
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /profile [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	profile, err := h.profileService.Get(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ProfileResponse{Success: true, Data: profile})
}

// Update godoc
// @Summary Update profile
// @Description Changes any of username, email and password. A new username moves the caller's files.
// @Tags profile
// @Produce json
// @Security BearerAuth
// @Param username query string false "New username"
// @Param email query string false "New email"
// @Param password query string false "New password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /profile [put]
func (h *ProfileHandler) Update(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	query := c.QueryParams()
	optional := func(key string) *string {
		if !query.Has(key) {
			return nil
		}
		v := query.Get(key)
		return &v
	}

	upd := service.ProfileUpdate{
		Username: optional("username"),
		Email:    optional("email"),
		Password: optional("password"),
	}
	if err := h.profileService.Update(c.Request().Context(), user, upd); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Profile updated successfully"})
}
