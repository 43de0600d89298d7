package handler

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// Access is the authentication a route requires. The zero value requires a
// valid access token, so a route left unmarked is protected.
type Access int

const (
	AccessAuthenticated Access = iota
	AccessPublic
	AccessOptional
	AccessRefresh
)

func (a Access) String() string {
	switch a {
	case AccessAuthenticated:
		return "authenticated"
	case AccessPublic:
		return "public"
	case AccessOptional:
		return "optional"
	case AccessRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Route declares one endpoint and the access it requires.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Handler echo.HandlerFunc
}

// Mount registers routes on e, placing the gate middleware each route's
// Access calls for in front of its handler.
func Mount(e *echo.Echo, gate *Gate, routes ...[]Route) {
	for _, group := range routes {
		for _, r := range group {
			e.Add(r.Method, r.Path, r.Handler, gate.chain(r.Access)...)
		}
	}
}

func (g *Gate) chain(a Access) []echo.MiddlewareFunc {
	switch a {
	case AccessPublic:
		return nil
	case AccessOptional:
		return []echo.MiddlewareFunc{g.OptionalAccessGate()}
	case AccessAuthenticated:
		return []echo.MiddlewareFunc{g.AccessGate()}
	case AccessRefresh:
		return []echo.MiddlewareFunc{RefreshDenied(), g.RefreshGate()}
	default:
		panic(fmt.Sprintf("handler: unknown route access %v", a))
	}
}
