package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/config"
)

func newTestContainer(t *testing.T, required bool) *Container {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "router-secret", Required: required},
		Scheduler: config.SchedulerConfig{Enabled: true, AtomicPlacement: true, LockBackend: config.LockBackendRedis},
		Conflicts: config.ConflictsConfig{CacheTTL: time.Minute, DefaultScope: "period"},
	}
	return Wire(cfg, zap.NewNop(), sqlx.NewDb(db, "sqlmock"), nil)
}

func serve(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterProbes(t *testing.T) {
	r := NewRouter(newTestContainer(t, false))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "", "").Code)

	metrics := serve(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "http_requests_total")
}

func TestRouterBlockPlanIsOpenWhenAuthOptional(t *testing.T) {
	r := NewRouter(newTestContainer(t, false))

	w := serve(r, http.MethodPost, "/api/v1/schedules/blocks", "", `{"lectureHours":2,"labHours":3}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalHours":5`)
}

func TestRouterEnforcesRolesWhenAuthRequired(t *testing.T) {
	c := newTestContainer(t, true)
	r := NewRouter(c)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/api/v1/schedules/blocks", "", `{"lectureHours":2}`).Code)

	viewer, err := c.Tokens.Issue("u-view", models.RoleViewer, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/schedules/blocks", viewer, `{"lectureHours":2}`).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/meetings", viewer, `{}`).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/schedules/auto", viewer, "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/api/v1/meetings/m1", viewer, "").Code)
}
