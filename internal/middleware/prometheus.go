package middleware

import (
	"strconv"
	"time"

	"blog_api/internal/observability"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that hit no route, so scanners probing
// random paths do not create a series each.
const unmatchedRoute = "unmatched"

// PrometheusMiddleware records request count, latency and in-flight requests
// per route template.
func PrometheusMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		endpoint := c.FullPath() // e.g. /post/:id
		if endpoint == "" {
			endpoint = unmatchedRoute
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	}
}
