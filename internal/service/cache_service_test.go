package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
)

type rawCacheRepo struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	deleted []string
	getErr  error
}

func newRawCacheRepo() *rawCacheRepo {
	return &rawCacheRepo{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *rawCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

func (r *rawCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *rawCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(r.entries, key)
		r.deleted = append(r.deleted, key)
	}
	return nil
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := newRawCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var report models.ConflictReport
	hit, err := cache.Get(ctx, "k", &report)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", models.ConflictReport{Scope: "period", PeriodID: "p1"}, 0))
	assert.Equal(t, time.Minute, repo.ttls["k"])

	hit, err = cache.Get(ctx, "k", &report)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "p1", report.PeriodID)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
}

func TestCacheServiceEvictsUndecodableEntries(t *testing.T) {
	repo := newRawCacheRepo()
	repo.entries["k"] = []byte(`{"scope": 42}`)
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	var report models.ConflictReport
	hit, err := cache.Get(context.Background(), "k", &report)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"k"}, repo.deleted)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newRawCacheRepo()
	repo.getErr = errors.New("connection refused")
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	hit, err := cache.Get(context.Background(), "k", &models.ConflictReport{})
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newRawCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, 0))
	assert.Empty(t, repo.entries)
	hit, err := cache.Get(ctx, "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}
