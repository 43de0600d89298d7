package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/recipebox/internal/domain"
	"github.com/sumire/recipebox/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStatePath   = "/auth/google"
	oauthStateMaxAge = 600
)

// AuthService is the session surface the auth endpoints need.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, username, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, username string) error
	GoogleEnabled() bool
	GoogleAuthURL(state string) (string, error)
	GoogleCallback(ctx context.Context, code string) (*service.AuthResult, error)
}

// RegisterRequest is the register body. Password is the client-side SHA-256
// hex digest of the user's password.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,len=64,hexadecimal"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
}

// LoginRequest is the login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,len=64,hexadecimal"`
}

// CSRFResponse is the body of the CSRF token endpoint.
type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	auth        AuthService
	cookies     CookieBinder
	frontendURL string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth AuthService, cookies CookieBinder, frontendURL string) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, frontendURL: frontendURL}
}

// Routes returns the auth endpoints. Google routes are present only when
// Google sign-in is configured.
func (h *AuthHandler) Routes() []Route {
	routes := []Route{
		{Method: http.MethodGet, Path: "/auth/csrf", Access: AccessPublic, Handler: h.CSRF},
		{Method: http.MethodPost, Path: "/auth/register", Access: AccessPublic, Handler: h.Register},
		{Method: http.MethodPost, Path: "/auth/login", Access: AccessPublic, Handler: h.Login},
		{Method: http.MethodGet, Path: "/auth/refresh", Access: AccessRefresh, Handler: h.Refresh},
		{Method: http.MethodPost, Path: "/auth/logout", Access: AccessOptional, Handler: h.Logout},
		{Method: http.MethodGet, Path: "/auth/profile", Access: AccessAuthenticated, Handler: h.Profile},
	}
	if h.auth.GoogleEnabled() {
		routes = append(routes,
			Route{Method: http.MethodGet, Path: "/auth/google", Access: AccessPublic, Handler: h.GoogleRedirect},
			Route{Method: http.MethodGet, Path: "/auth/google/callback", Access: AccessPublic, Handler: h.GoogleCallback},
		)
	}
	return routes
}

// CSRF returns the token the CSRF middleware issued or read for this client.
func (h *AuthHandler) CSRF(c echo.Context) error {
	return c.JSON(http.StatusOK, CSRFResponse{CSRFToken: CSRFToken(c)})
}

// Register creates a local account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Register(c.Request().Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}

	h.cookies.SetAuthCookies(c, res.Tokens)
	return c.JSON(http.StatusCreated, UserEnvelope{User: presentUser(res.User)})
}

// Login verifies credentials and signs the user in.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	h.cookies.SetAuthCookies(c, res.Tokens)
	return c.JSON(http.StatusOK, UserEnvelope{User: presentUser(res.User)})
}

// Refresh rotates the token pair held in the caller's cookies.
func (h *AuthHandler) Refresh(c echo.Context) error {
	session, err := CurrentRefreshSession(c)
	if err != nil {
		return domain.ErrUnauthorized
	}

	res, err := h.auth.Refresh(c.Request().Context(), session.Username, session.RefreshToken)
	if err != nil {
		return err
	}

	h.cookies.SetAuthCookies(c, res.Tokens)
	return c.JSON(http.StatusOK, MessageResponse{Message: "Tokens refreshed"})
}

// Logout clears the auth cookies and, when the caller could be identified,
// revokes the stored refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.cookies.ClearAuthCookies(c)

	if user := CurrentUser(c); user != nil {
		if err := h.auth.Logout(c.Request().Context(), user.Username); err != nil {
			return err
		}
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	user := CurrentUser(c)
	if user == nil {
		return domain.ErrUnauthorized
	}
	return c.JSON(http.StatusOK, presentUser(user))
}

// GoogleRedirect redirects the user to Google's OAuth consent page.
func (h *AuthHandler) GoogleRedirect(c echo.Context) error {
	state, err := generateState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}

	url, err := h.auth.GoogleAuthURL(state)
	if err != nil {
		return err
	}

	c.SetCookie(h.stateCookie(state, oauthStateMaxAge))
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback handles the OAuth callback from Google and sends the browser
// back to the frontend signed in.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if err := validateOAuthState(c); err != nil {
		return domain.Errorf(domain.ErrInvalidInput, "%v", err)
	}
	c.SetCookie(h.stateCookie("", -1))

	if reason := c.QueryParam("error"); reason != "" {
		return domain.Errorf(domain.ErrUnauthorized, "google sign-in failed: %s", reason)
	}

	code := c.QueryParam("code")
	if code == "" {
		return domain.Errorf(domain.ErrInvalidInput, "missing code parameter")
	}

	res, err := h.auth.GoogleCallback(c.Request().Context(), code)
	if err != nil {
		return err
	}

	h.cookies.SetAuthCookies(c, res.Tokens)
	return c.Redirect(http.StatusFound, h.frontendURL+"/auth/callback")
}

func (h *AuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     oauthStatePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func validateOAuthState(c echo.Context) error {
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" {
		return errors.New("missing oauth state cookie")
	}

	queryState := c.QueryParam("state")
	if queryState == "" || queryState != cookie.Value {
		return errors.New("oauth state mismatch")
	}

	return nil
}
