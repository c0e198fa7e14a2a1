package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/repository"
	"github.com/mnuel1/spacio-backend/internal/service"
	"github.com/mnuel1/spacio-backend/pkg/cache"
	"github.com/mnuel1/spacio-backend/pkg/config"
	"github.com/mnuel1/spacio-backend/pkg/database"
	"github.com/mnuel1/spacio-backend/pkg/jobs"
)

// Container holds the wired services shared by the API server and the CLI.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Metrics      *service.MetricsService
	Tokens       *service.TokenService
	Events       *service.ScheduleEvents
	Meetings     *service.MeetingService
	AutoSchedule *service.AutoScheduleService
	Conflicts    *service.ConflictService
	Export       *service.ExportService
}

// Build connects to Postgres (and Redis when enabled) and wires every service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, falling back to local locks without report cache", zap.Error(err))
			rdb = nil
		}
	}

	return Wire(cfg, logger, db, rdb), nil
}

// Wire assembles repositories and services on top of open connections. rdb may be nil.
func Wire(cfg *config.Config, logger *zap.Logger, db *sqlx.DB, rdb *redis.Client) *Container {
	validate := validator.New()
	metrics := service.NewMetricsService()

	periodRepo := repository.NewPeriodRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	meetingRepo := repository.NewMeetingRepository(db).WithObserver(metrics)
	activityRepo := repository.NewActivityRepository(db)

	var (
		cacheRepo service.CacheRepository
		locker    service.Locker = service.NewLocalLocker()
	)
	if rdb != nil {
		cacheRepo = repository.NewCacheRepository(rdb, logger)
		if cfg.Scheduler.LockBackend == config.LockBackendRedis {
			locker = service.NewRedisLocker(repository.NewLockRepository(rdb), cfg.Scheduler.LockTTL, cfg.Scheduler.LockWait, logger)
		}
	} else if cfg.Scheduler.LockBackend == config.LockBackendRedis {
		logger.Warn("redis lock backend requested without redis, using local locks")
	}
	reportCache := service.NewCacheService(cacheRepo, metrics, cfg.Conflicts.CacheTTL, logger, cacheRepo != nil)

	conflicts := service.NewConflictService(periodRepo, meetingRepo, subjectRepo, reportCache, metrics, validate, logger, service.ConflictServiceConfig{
		CacheTTL:     cfg.Conflicts.CacheTTL,
		DefaultScope: cfg.Conflicts.DefaultScope,
	})

	events := service.NewScheduleEvents(conflicts, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
	}, logger)

	meetings := service.NewMeetingService(periodRepo, teacherRepo, subjectRepo, sectionRepo, roomRepo, meetingRepo, activityRepo, db, locker, events, metrics, validate, logger, service.MeetingServiceConfig{
		SerializableRetries: cfg.Scheduler.SerializableRetry,
	})

	autoSchedule := service.NewAutoScheduleService(periodRepo, teacherRepo, subjectRepo, sectionRepo, roomRepo, meetingRepo, activityRepo, db, locker, events, metrics, validate, logger, service.AutoScheduleConfig{
		Enabled:          cfg.Scheduler.Enabled,
		PlacementRetries: cfg.Scheduler.PlacementRetries,
		AtomicPlacement:  cfg.Scheduler.AtomicPlacement,
		SlotGranularity:  cfg.Scheduler.SlotGranularity,
		RandomSeed:       cfg.Scheduler.RandomSeed,
		PersistWorkers:   cfg.Scheduler.PersistWorkers,
	})

	exports := service.NewExportService(periodRepo, meetingRepo, service.ExportRenderers{}, validate, logger)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Redis:        rdb,
		Metrics:      metrics,
		Tokens:       service.NewTokenService(cfg.JWT.Secret),
		Events:       events,
		Meetings:     meetings,
		AutoSchedule: autoSchedule,
		Conflicts:    conflicts,
		Export:       exports,
	}
}

// Start launches background workers.
func (c *Container) Start(ctx context.Context) {
	c.Events.Start(ctx)
}

// Close drains workers and closes connections.
func (c *Container) Close() {
	c.Events.Stop()
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}
