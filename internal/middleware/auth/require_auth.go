package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"jwt-auth-demo/internal/token"
)

type Middleware struct {
	Tokens *token.AccessIssuer
}

func New(issuer *token.AccessIssuer) *Middleware {
	return &Middleware{Tokens: issuer}
}

// RequireAuth validates the bearer access token and stashes its claims in
// the echo context. Every failure mode answers the same 401.
func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Tokens.Validate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Subject)
		c.Set("role", claims.Role)
		return next(c)
	}
}

// RequireRole rejects authenticated callers whose role is not in the allow
// list, before the handler runs.
func (m *Middleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}
