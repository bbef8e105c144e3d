package middleware

import (
	"time"

	"github.com/clinicbook/clinicbook/internal/platform/telemetry"
	"github.com/labstack/echo/v4"
)

// Metrics records request counts and latency by route template, so
// /api/v1/doctors/:id is one series regardless of the id.
func Metrics(m *telemetry.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
