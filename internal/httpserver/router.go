package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/session_auth/internal/metrics"
	authmw "github.com/Skotchmaster/session_auth/internal/middleware/auth"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Metrics     *metrics.Metrics
	// Ready reports whether dependencies (the database) are reachable.
	Ready func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	g := e.Group("/auth")
	g.POST("/login", d.AuthHandler.Login)
	g.POST("/refresh", d.AuthHandler.Refresh)
	g.POST("/logout", d.AuthHandler.LogOut)

	private := g.Group("")
	private.Use(authmw.RequireAuth(d.AuthHandler.Svc))
	private.GET("/me", d.AuthHandler.Me)
}
