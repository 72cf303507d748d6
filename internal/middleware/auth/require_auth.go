package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/session_auth/internal/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type IdentityVerifier interface {
	IdentifyCaller(accessToken string) (tokens.Identity, error)
}

// RequireAuth accepts only "Authorization: Bearer <token>".
func RequireAuth(v IdentityVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}

			id, err := v.IdentifyCaller(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(CtxUserID, id.UserID)
			c.Set(CtxRole, id.Role)
			return next(c)
		}
	}
}

func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing role")
			}
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			return next(c)
		}
	}
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(c echo.Context) (tokens.Identity, bool) {
	id, ok := c.Get(CtxUserID).(uint)
	if !ok || id == 0 {
		return tokens.Identity{}, false
	}
	role, _ := c.Get(CtxRole).(string)
	return tokens.Identity{UserID: id, Role: role}, true
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
