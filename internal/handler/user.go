package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/recipebox/internal/domain"
)

// UserService is the profile surface the user endpoints need.
type UserService interface {
	Get(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, actor *domain.User, username string, update domain.ProfileUpdate) (*domain.User, error)
	Delete(ctx context.Context, actor *domain.User, username string) error
}

// UpdateProfileRequest is the PATCH body. Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Image *string `json:"image" validate:"omitempty,url"`
}

// UserHandler handles account profile endpoints.
type UserHandler struct {
	users   UserService
	cookies CookieBinder
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users UserService, cookies CookieBinder) *UserHandler {
	return &UserHandler{users: users, cookies: cookies}
}

// Routes returns the user endpoints. All of them require an access token.
func (h *UserHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/users/me", Handler: h.Me},
		{Method: http.MethodGet, Path: "/users", Handler: h.List},
		{Method: http.MethodGet, Path: "/users/:username", Handler: h.Get},
		{Method: http.MethodPatch, Path: "/users/:username", Handler: h.Update},
		{Method: http.MethodDelete, Path: "/users/:username", Handler: h.Delete},
	}
}

// Me returns the caller.
func (h *UserHandler) Me(c echo.Context) error {
	user := CurrentUser(c)
	if user == nil {
		return domain.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, presentUser(user))
}

// List returns every user.
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, presentUsers(users))
}

// Get returns one user by username.
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, presentUser(user))
}

// Update changes the caller's own display fields.
func (h *UserHandler) Update(c echo.Context) error {
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), CurrentUser(c), c.Param("username"), domain.ProfileUpdate{
		Name:  req.Name,
		Image: req.Image,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, presentUser(user))
}

// Delete removes the caller's own account and signs it out.
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.users.Delete(c.Request().Context(), CurrentUser(c), c.Param("username")); err != nil {
		return err
	}
	h.cookies.ClearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}
