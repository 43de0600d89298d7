package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sumire/recipebox/internal/domain"
	"github.com/sumire/recipebox/internal/security"
)

const (
	contextKeyUser    = "user"
	contextKeyRefresh = "refresh_session"
	contextKeyCSRF    = "csrf_token"
)

// Authenticator resolves the caller from the tokens a request carries.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.User, error)
	VerifyRefreshToken(refreshToken string) (*security.Claims, error)
}

// RefreshSession is what RefreshGate hands to the refresh endpoint.
type RefreshSession struct {
	Username     string
	RefreshToken string
}

// RequestLogger logs each HTTP request with structured fields. Errors are
// rendered here so the logged status is the one the client sees.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return nil
		}
	}
}

// RateLimit allows limit requests per ttl for each client IP and answers
// 429 beyond that.
func RateLimit(ttl time.Duration, limit int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(limit) / ttl.Seconds()),
		Burst:     limit,
		ExpiresIn: ttl * 3,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		},
	})
}

// Gate builds the per-route authentication middleware.
type Gate struct {
	auth Authenticator
}

// NewGate creates a new Gate.
func NewGate(auth Authenticator) *Gate {
	return &Gate{auth: auth}
}

// AccessGate requires a valid access token, read from the Authorization
// bearer header or the access cookie, naming a user that still exists.
func (g *Gate) AccessGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := accessToken(c.Request())
			if token == "" {
				return domain.ErrUnauthorized
			}

			user, err := g.auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeyUser, user)
			return next(c)
		}
	}
}

// OptionalAccessGate identifies the caller when it can and lets the request
// through either way.
func (g *Gate) OptionalAccessGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := accessToken(c.Request()); token != "" {
				user, err := g.auth.Authenticate(c.Request().Context(), token)
				if err == nil {
					c.Set(contextKeyUser, user)
				} else {
					slog.Debug("optional authentication failed", "error", err)
				}
			}
			return next(c)
		}
	}
}

// RefreshGate requires a refresh cookie signed with the refresh secret.
// Whether the token is still the current one is decided by the session
// service.
func (g *Gate) RefreshGate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(RefreshCookieName)
			if err != nil || cookie.Value == "" {
				return domain.ErrUnauthorized
			}

			claims, err := g.auth.VerifyRefreshToken(cookie.Value)
			if err != nil {
				return err
			}

			c.Set(contextKeyRefresh, RefreshSession{Username: claims.Username, RefreshToken: cookie.Value})
			return next(c)
		}
	}
}

// RefreshDenied collapses every 401 and 403 raised behind it into one
// 403 "Access Denied" so refresh failures do not reveal their cause.
func RefreshDenied() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if status := statusOf(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
				slog.Debug("refresh denied", "error", err)
				return echo.NewHTTPError(http.StatusForbidden, "Access Denied")
			}
			return err
		}
	}
}

// CurrentUser returns the user the access gate resolved, or nil.
func CurrentUser(c echo.Context) *domain.User {
	user, _ := c.Get(contextKeyUser).(*domain.User)
	return user
}

// CurrentRefreshSession returns what RefreshGate stored.
func CurrentRefreshSession(c echo.Context) (RefreshSession, error) {
	session, ok := c.Get(contextKeyRefresh).(RefreshSession)
	if !ok || session.Username == "" {
		return RefreshSession{}, errors.New("refresh session missing from context")
	}
	return session, nil
}

func accessToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(echo.HeaderAuthorization), " ")
	if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(AccessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
