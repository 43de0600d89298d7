package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	CSRFCookieName = "XSRF-TOKEN"
	CSRFHeaderName = "X-XSRF-TOKEN"

	csrfTokenBytes = 32
)

// CSRFConfig configures the double-submit CSRF check.
type CSRFConfig struct {
	// Secure marks the token cookie Secure. Set in production.
	Secure bool
	// ExemptPaths skip validation on unsafe methods.
	ExemptPaths []string
}

// CSRF issues a readable XSRF-TOKEN cookie when the client has none and
// rejects unsafe requests whose X-XSRF-TOKEN header does not equal the cookie
// sent with the request. The current token is stored in the context for the
// token endpoint.
func CSRF(cfg CSRFConfig) echo.MiddlewareFunc {
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var sent string
			if cookie, err := c.Cookie(CSRFCookieName); err == nil {
				sent = cookie.Value
			}

			token := sent
			if token == "" {
				minted, err := newCSRFToken()
				if err != nil {
					return err
				}
				token = minted
				c.SetCookie(&http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(contextKeyCSRF, token)

			if safeMethod(c.Request().Method) {
				return next(c)
			}
			if _, ok := exempt[c.Request().URL.Path]; ok {
				return next(c)
			}

			header := c.Request().Header.Get(CSRFHeaderName)
			if sent == "" || header == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(header)) != 1 {
				return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
			}
			return next(c)
		}
	}
}

// CSRFToken returns the token the CSRF middleware stored for this request.
func CSRFToken(c echo.Context) string {
	token, _ := c.Get(contextKeyCSRF).(string)
	return token
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
