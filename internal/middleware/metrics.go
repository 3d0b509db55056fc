package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gmpportal/internal/metrics"
)

// Instrument records request count, latency and in-flight gauge per route
// template. Unmatched paths share the "unmatched" label.
func Instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.HTTPInFlight.Inc()
		start := time.Now()

		c.Next()

		m.HTTPInFlight.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
