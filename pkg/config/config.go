package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Conflicts ConflictsConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
	ConnTimeout  time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret   string
	Required bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the auto-scheduler and the single meeting write path.
type SchedulerConfig struct {
	Enabled           bool
	PlacementRetries  int
	AtomicPlacement   bool
	SlotGranularity   int
	RandomSeed        int64
	PersistWorkers    int
	LockBackend       string
	LockTTL           time.Duration
	LockWait          time.Duration
	SerializableRetry int
}

// ConflictsConfig governs the conflict report endpoint.
type ConflictsConfig struct {
	CacheTTL     time.Duration
	DefaultScope string
}

// EventsConfig sizes the post-mutation event queue.
type EventsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		ConnTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: nonNegative(v.GetInt("REDIS_POOL_SIZE")),
		Timeout:  v.GetDuration("REDIS_TIMEOUT"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Required: v.GetBool("JWT_REQUIRED"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	lockBackend := strings.ToLower(strings.TrimSpace(v.GetString("SCHEDULER_LOCK_BACKEND")))
	if lockBackend != LockBackendRedis {
		lockBackend = LockBackendLocal
	}
	cfg.Scheduler = SchedulerConfig{
		Enabled:           v.GetBool("ENABLE_SCHEDULER"),
		PlacementRetries:  nonNegative(v.GetInt("SCHEDULER_PLACEMENT_RETRIES")),
		AtomicPlacement:   v.GetBool("SCHEDULER_ATOMIC_PLACEMENT"),
		SlotGranularity:   v.GetInt("SCHEDULER_SLOT_GRANULARITY"),
		RandomSeed:        v.GetInt64("SCHEDULER_RANDOM_SEED"),
		PersistWorkers:    v.GetInt("SCHEDULER_PERSIST_WORKERS"),
		LockBackend:       lockBackend,
		LockTTL:           parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 10*time.Second),
		LockWait:          parseDuration(v.GetString("SCHEDULER_LOCK_WAIT"), 3*time.Second),
		SerializableRetry: nonNegative(v.GetInt("SCHEDULER_SERIALIZABLE_RETRIES")),
	}

	scope := strings.ToLower(strings.TrimSpace(v.GetString("CONFLICTS_DEFAULT_SCOPE")))
	if scope != "all" {
		scope = "period"
	}
	cfg.Conflicts = ConflictsConfig{
		CacheTTL:     parseDuration(v.GetString("CONFLICTS_CACHE_TTL"), 5*time.Minute),
		DefaultScope: scope,
	}

	cfg.Events = EventsConfig{
		Workers:    v.GetInt("EVENTS_WORKERS"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "spacio")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_TIMEOUT", "2s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_REQUIRED", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_PLACEMENT_RETRIES", 0)
	v.SetDefault("SCHEDULER_ATOMIC_PLACEMENT", true)
	v.SetDefault("SCHEDULER_SLOT_GRANULARITY", 1)
	v.SetDefault("SCHEDULER_RANDOM_SEED", 0)
	v.SetDefault("SCHEDULER_PERSIST_WORKERS", 4)
	v.SetDefault("SCHEDULER_LOCK_BACKEND", LockBackendLocal)
	v.SetDefault("SCHEDULER_LOCK_TTL", "10s")
	v.SetDefault("SCHEDULER_LOCK_WAIT", "3s")
	v.SetDefault("SCHEDULER_SERIALIZABLE_RETRIES", 2)

	v.SetDefault("CONFLICTS_CACHE_TTL", "5m")
	v.SetDefault("CONFLICTS_DEFAULT_SCOPE", "period")

	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
