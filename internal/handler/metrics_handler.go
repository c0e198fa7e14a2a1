package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/service"
	"github.com/mnuel1/spacio-backend/pkg/jobs"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/response"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type queueStats interface {
	Stats() jobs.Stats
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	db      pinger
	events  queueStats
}

// NewMetricsHandler constructs a metrics handler. db may be nil.
func NewMetricsHandler(metrics *service.MetricsService, db pinger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db}
}

// WithEvents adds event queue counters to the summary meta.
func (h *MetricsHandler) WithEvents(events queueStats) *MetricsHandler {
	h.events = events
	return h
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database answers within two seconds.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			response.Error(c, appErrors.Wrap(err, "NOT_READY", http.StatusServiceUnavailable, "database unavailable"))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Summary godoc
// @Summary Process metrics snapshot
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	if h.events == nil {
		response.JSON(c, http.StatusOK, h.metrics.Snapshot())
		return
	}
	stats := h.events.Stats()
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), map[string]interface{}{
		"events": gin.H{
			"processed":     stats.Processed,
			"failed":        stats.Failed,
			"retried":       stats.Retried,
			"dead_lettered": stats.DeadLettered,
			"coalesced":     stats.Coalesced,
			"pending":       stats.Pending,
		},
	})
}
