package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mnuel1/spacio-backend/pkg/config"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 8, Timeout: time.Second})

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 8, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)
}

func TestOptionsDefaultTimeout(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "localhost", Port: 6379})
	assert.Equal(t, defaultTimeout, opts.DialTimeout)
	assert.Equal(t, defaultTimeout, opts.WriteTimeout)
}
