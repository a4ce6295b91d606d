package middleware

import (
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"
)

// Inject attaches the DI container to every request context so handlers can
// resolve dependencies with ectoinject.GetContext.
func Inject(container *ectoinject.DIContainer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := ectoinject.SetActiveContainer(req.Context(), container)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
