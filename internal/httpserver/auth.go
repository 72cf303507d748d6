package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/session_auth/internal/logging"
	authmw "github.com/Skotchmaster/session_auth/internal/middleware/auth"
	"github.com/Skotchmaster/session_auth/internal/service"
	"github.com/Skotchmaster/session_auth/internal/transport"
)

type AuthHTTP struct {
	Svc    *service.AuthService
	Cookie CookieSettings
}

// unauthorizedReasons maps refresh and identity failures to the short
// reason returned in the 401 body.
var unauthorizedReasons = []struct {
	err    error
	reason string
}{
	{service.ErrNoRefreshCredential, "no refresh credential"},
	{service.ErrInvalidRefresh, "invalid refresh"},
	{service.ErrRefreshExpired, "refresh expired"},
	{service.ErrUserNotFound, "user not found"},
	{service.ErrInvalidAccessToken, "invalid or expired token"},
}

func unauthorized(err error) (*echo.HTTPError, bool) {
	for _, r := range unauthorizedReasons {
		if errors.Is(err, r.err) {
			return echo.NewHTTPError(http.StatusUnauthorized, r.reason), true
		}
	}
	return nil, false
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		l.Error("login_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(h.Cookie.Create(res.RefreshSecret, res.RefreshExp, h.Svc.RefreshTTL))

	return c.JSON(http.StatusOK, transport.LoginResponse{
		AccessToken: res.AccessToken,
		User:        transport.UserFromModel(res.User),
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var raw string
	if ck, err := c.Cookie(h.Cookie.Name); err == nil {
		raw = ck.Value
	}

	res, err := h.Svc.Refresh(ctx, raw)
	if err != nil {
		if he, ok := unauthorized(err); ok {
			return he
		}
		l.Error("refresh_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.RefreshResponse{AccessToken: res.AccessToken})
}

// LogOut always succeeds from the client's point of view and always clears
// the refresh cookie, even when revocation fails in storage.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if ck, err := c.Cookie(h.Cookie.Name); err == nil {
		if _, err := h.Svc.Logout(ctx, ck.Value); err != nil {
			l.Error("logout_failed", "reason", "cannot revoke refresh session", "error", err)
		}
	}

	c.SetCookie(h.Cookie.Delete())
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "OK"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_me")

	id, ok := authmw.IdentityFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	user, err := h.Svc.Me(ctx, id)
	if errors.Is(err, service.ErrNotFound) {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	if err != nil {
		l.Error("me_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.UserFromModel(user))
}
