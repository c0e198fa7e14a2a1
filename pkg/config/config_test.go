package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Scheduler.AtomicPlacement)
	assert.Equal(t, 0, cfg.Scheduler.PlacementRetries)
	assert.Equal(t, 1, cfg.Scheduler.SlotGranularity)
	assert.Equal(t, LockBackendLocal, cfg.Scheduler.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.LockTTL)
	assert.Equal(t, "period", cfg.Conflicts.DefaultScope)
	assert.Equal(t, 5*time.Minute, cfg.Conflicts.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.Redis.Timeout)
}

func TestOverridesAndSanitising(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_PLACEMENT_RETRIES", -4)
	v.Set("SCHEDULER_LOCK_BACKEND", "REDIS")
	v.Set("SCHEDULER_LOCK_TTL", "not-a-duration")
	v.Set("CONFLICTS_DEFAULT_SCOPE", "everything")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)

	assert.Equal(t, 0, cfg.Scheduler.PlacementRetries)
	assert.Equal(t, LockBackendRedis, cfg.Scheduler.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.LockTTL)
	assert.Equal(t, "period", cfg.Conflicts.DefaultScope)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
