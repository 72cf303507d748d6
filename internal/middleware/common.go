package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
)

// Common is the stack every route shares. The request logger is added
// separately because it needs the base logger.
func Common() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestIDWithConfig(ecM.RequestIDConfig{
			Generator: uuid.NewString,
		}),
		ecM.Secure(),
	}
}
