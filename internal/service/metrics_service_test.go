package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/spacio-backend/internal/models"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsServiceSchedulingSeries(t *testing.T) {
	m := NewMetricsService()
	m.RecordValidation("")
	m.RecordValidation("room_overlap")
	m.RecordAutoSchedule(AutoScheduleCompleted, 12, 1, 250*time.Millisecond)
	m.RecordConflicts(map[models.ConflictType]int{models.ConflictRoom: 2})

	body := scrape(t, m)
	assert.Contains(t, body, `validator_decisions_total{result="accepted",rule="none"} 1`)
	assert.Contains(t, body, `validator_decisions_total{result="rejected",rule="room_overlap"} 1`)
	assert.Contains(t, body, `autoschedule_placements_total 12`)
	assert.Contains(t, body, `autoschedule_unassigned_total 1`)
	assert.Contains(t, body, `conflicts_detected{type="ROOM_CONFLICT"} 2`)
	assert.Contains(t, body, `conflicts_detected{type="TEACHER_CONFLICT"} 0`)
	assert.Contains(t, body, "go_goroutines")

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.AutoScheduleRuns)
	assert.Equal(t, uint64(12), snap.BlocksPlaced)
	assert.Equal(t, uint64(1), snap.ValidationRejections)
	assert.Equal(t, int64(2), snap.OpenConflicts)
}

func TestMetricsServiceSnapshotAverages(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/v1/conflicts", 200, 10*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/v1/conflicts", 200, 30*time.Millisecond)
	m.ObserveDBQuery("meetings.list", 4*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.InDelta(t, 4, snap.AverageDBQueryDurationMs, 0.001)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordValidation("x")
	m.RecordAutoSchedule(AutoScheduleFailed, 0, 0, 0)
	m.ObserveDBQuery("q", time.Millisecond)
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
