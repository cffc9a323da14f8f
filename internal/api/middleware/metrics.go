package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/metrics"
)

// Metrics records request latency labelled by the matched route template,
// so path parameters never blow up label cardinality.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			metrics.HTTPRequestDuration.
				WithLabelValues(c.Request().Method, routeLabel(c), strconv.Itoa(statusOf(c, err))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf predicts the status the error handler will write when next
// returned an error without committing a response.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
