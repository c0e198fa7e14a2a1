package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/service"
)

const metricsPath = "/metrics"

// Metrics records request counts and latency per route template. Unmatched paths
// share one label so scanners cannot inflate series cardinality, and Prometheus
// scrapes are not counted.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
