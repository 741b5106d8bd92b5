package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// API scopes granted to paired devices.
const (
	ScopeLocks       = "locks"
	ScopeCredentials = "credentials"
)

const claimsContextKey = "auth.claims"

// Middleware returns an echo middleware that requires a valid bearer token
// with the given scope. Claims are stored on the request context for handlers.
func Middleware(tokens *TokenManager, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if scope != "" && !claims.HasScope(scope) {
				return echo.NewHTTPError(http.StatusForbidden, "missing scope "+scope)
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFromContext returns the device claims stored by Middleware, or nil
// when the route is unauthenticated.
func ClaimsFromContext(c echo.Context) *DeviceClaims {
	claims, _ := c.Get(claimsContextKey).(*DeviceClaims)
	return claims
}
