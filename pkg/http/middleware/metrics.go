package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// HTTPRecorder receives per-request telemetry.
type HTTPRecorder interface {
	IncHTTPRequest(method, path, status string)
	ObserveHTTPDuration(method, path string, elapsed time.Duration)
}

// Metrics records per-route request counters and latency. Echo's route
// template keeps label cardinality low; raw URLs never become labels.
func Metrics(rec HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			rec.IncHTTPRequest(method, route, status)
			rec.ObserveHTTPDuration(method, route, time.Since(start))

			return err
		}
	}
}
