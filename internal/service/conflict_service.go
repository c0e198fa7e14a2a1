package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
)

const conflictCachePrefix = "spacio:conflicts:"

type conflictMeetingReader interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.MeetingFilter) ([]models.Meeting, error)
}

type conflictSubjectReader interface {
	ListByPeriod(ctx context.Context, period models.AcademicPeriod) ([]models.Subject, error)
	ListAll(ctx context.Context) ([]models.Subject, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ConflictServiceConfig tunes report caching and the default scope.
type ConflictServiceConfig struct {
	CacheTTL     time.Duration
	DefaultScope string
}

// ConflictService produces conflict reports for the active period or every period.
type ConflictService struct {
	periods   activePeriodReader
	meetings  conflictMeetingReader
	subjects  conflictSubjectReader
	cache     reportCache
	detector  *ConflictDetector
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ConflictServiceConfig
}

// NewConflictService wires the conflict report dependencies. cache may be nil.
func NewConflictService(
	periods activePeriodReader,
	meetings conflictMeetingReader,
	subjects conflictSubjectReader,
	cache reportCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ConflictServiceConfig,
) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultScope != models.ConflictScopeAllPeriods {
		cfg.DefaultScope = models.ConflictScopePeriod
	}
	return &ConflictService{
		periods:   periods,
		meetings:  meetings,
		subjects:  subjects,
		cache:     cache,
		detector:  NewConflictDetector(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

func conflictCacheKey(scope, periodID string) string {
	if scope == models.ConflictScopeAllPeriods {
		return conflictCachePrefix + "all"
	}
	return conflictCachePrefix + "period:" + periodID
}

// Detect returns the conflict report for the requested scope, served from cache when possible.
func (s *ConflictService) Detect(ctx context.Context, query dto.ConflictQuery) (*models.ConflictReport, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict query")
	}
	scope := query.Scope
	if scope == "" {
		scope = s.cfg.DefaultScope
	}

	var (
		period *models.AcademicPeriod
		filter models.MeetingFilter
	)
	if scope == models.ConflictScopePeriod {
		p, err := s.periods.FindActive(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active academic period")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
		}
		period = p
		filter.PeriodID = p.ID
	}

	periodID := ""
	if period != nil {
		periodID = period.ID
	}
	key := conflictCacheKey(scope, periodID)
	if s.cache != nil && !query.Refresh {
		var cached models.ConflictReport
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	meetings, err := s.meetings.List(ctx, nil, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meetings")
	}
	var subjects []models.Subject
	if period != nil {
		subjects, err = s.subjects.ListByPeriod(ctx, *period)
	} else {
		subjects, err = s.subjects.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	conflicts := s.detector.Detect(meetings, subjects)
	if conflicts == nil {
		conflicts = []models.ConflictRecord{}
	}
	report := &models.ConflictReport{
		Scope:       scope,
		PeriodID:    periodID,
		Conflicts:   conflicts,
		Counts:      CountConflicts(conflicts),
		GeneratedAt: time.Now().UTC(),
	}
	s.metrics.RecordConflicts(report.Counts)
	s.logger.Debug("conflict scan finished",
		zap.String("scope", scope),
		zap.String("period_id", periodID),
		zap.Int("meetings", len(meetings)),
		zap.Int("conflicts", len(conflicts)),
	)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache conflict report", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

// Invalidate drops cached reports that include periodID.
func (s *ConflictService) Invalidate(ctx context.Context, periodID string) error {
	if s.cache == nil {
		return nil
	}
	keys := []string{conflictCacheKey(models.ConflictScopeAllPeriods, "")}
	if periodID != "" {
		keys = append(keys, conflictCacheKey(models.ConflictScopePeriod, periodID))
	}
	return s.cache.Delete(ctx, keys...)
}
