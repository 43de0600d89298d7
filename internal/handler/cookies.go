package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/recipebox/internal/security"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "Refresh"
	RefreshCookiePath = "/auth/refresh"
)

// CookieBinder moves a token pair onto and off HttpOnly cookies.
type CookieBinder struct {
	Secure   bool
	SameSite http.SameSite
}

// SetAuthCookies writes the access cookie for every path and the refresh
// cookie scoped to the refresh endpoint.
func (b CookieBinder) SetAuthCookies(c echo.Context, pair security.TokenPair) {
	c.SetCookie(b.cookie(AccessCookieName, pair.AccessToken, "/", int(security.AccessTokenTTL.Seconds())))
	c.SetCookie(b.cookie(RefreshCookieName, pair.RefreshToken, RefreshCookiePath, int(security.RefreshTokenTTL.Seconds())))
}

// ClearAuthCookies expires both auth cookies on the paths they were set with.
func (b CookieBinder) ClearAuthCookies(c echo.Context) {
	c.SetCookie(b.cookie(AccessCookieName, "", "/", -1))
	c.SetCookie(b.cookie(RefreshCookieName, "", RefreshCookiePath, -1))
}

func (b CookieBinder) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: b.SameSite,
	}
}
