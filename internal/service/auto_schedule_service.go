package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
)

// Auto-schedule run statuses reported to metrics.
const (
	AutoScheduleCompleted = "completed"
	AutoSchedulePartial   = "partial"
	AutoScheduleFailed    = "failed"
)

type rosterStore interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error)
	SetLoad(ctx context.Context, exec sqlx.ExtContext, id string, load int) error
	ResetLoads(ctx context.Context, exec sqlx.ExtContext, ids []string) error
}

type periodSubjectReader interface {
	ListByPeriod(ctx context.Context, period models.AcademicPeriod) ([]models.Subject, error)
}

type periodSectionReader interface {
	ListByPeriod(ctx context.Context, period models.AcademicPeriod) ([]models.Section, error)
}

type roomLister interface {
	List(ctx context.Context) ([]models.Room, error)
}

type timetableWriter interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.MeetingFilter) ([]models.Meeting, error)
	Create(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error
	DeleteByPeriod(ctx context.Context, exec sqlx.ExtContext, periodID string, teacherIDs []string) (int64, error)
}

// AutoScheduleConfig tunes auto-schedule runs.
type AutoScheduleConfig struct {
	Enabled          bool
	PlacementRetries int
	AtomicPlacement  bool
	SlotGranularity  int
	RandomSeed       int64
	PersistWorkers   int
}

// AutoScheduleService regenerates a period timetable and persists the result.
type AutoScheduleService struct {
	periods   activePeriodReader
	teachers  rosterStore
	subjects  periodSubjectReader
	sections  periodSectionReader
	rooms     roomLister
	meetings  timetableWriter
	activity  activityWriter
	tx        txProvider
	locker    Locker
	events    timetablePublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AutoScheduleConfig

	mu      sync.Mutex
	seeds   *rand.Rand
	planner *BlockPlanner
}

// NewAutoScheduleService wires auto-schedule dependencies.
func NewAutoScheduleService(
	periods activePeriodReader,
	teachers rosterStore,
	subjects periodSubjectReader,
	sections periodSectionReader,
	rooms roomLister,
	meetings timetableWriter,
	activity activityWriter,
	tx txProvider,
	locker Locker,
	events timetablePublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AutoScheduleConfig,
) *AutoScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if cfg.PersistWorkers <= 0 {
		cfg.PersistWorkers = 1
	}
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	seeds := rand.New(rand.NewSource(seed))
	return &AutoScheduleService{
		periods:   periods,
		teachers:  teachers,
		subjects:  subjects,
		sections:  sections,
		rooms:     rooms,
		meetings:  meetings,
		activity:  activity,
		tx:        tx,
		locker:    locker,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		seeds:     seeds,
		planner:   NewBlockPlanner(rand.New(rand.NewSource(seeds.Int63()))),
	}
}

// PlanBlocks previews how lecture and lab hours would be split.
func (s *AutoScheduleService) PlanBlocks(req dto.BlockPlanRequest) (*dto.BlockPlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block plan request")
	}
	blocks := s.planner.PlanBlocks(req.LectureHours, req.LabHours)
	if blocks == nil {
		blocks = []models.Block{}
	}
	return &dto.BlockPlanResponse{Blocks: blocks, TotalHours: req.LectureHours + req.LabHours}, nil
}

type scheduleCatalog struct {
	period     *models.AcademicPeriod
	roster     []models.Teacher
	candidates []models.Teacher
	subset     []string
	subjects   []models.Subject
	sections   []models.Section
	rooms      []models.Room
}

// Run deletes the affected meetings of the active period and schedules them again.
// Insert failures are collected in the result and do not stop the batch.
func (s *AutoScheduleService) Run(ctx context.Context, req dto.AutoScheduleRequest, actorID string) (*dto.AutoScheduleResult, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto-schedule request")
	}
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "auto-scheduler is disabled")
	}

	catalog, err := s.loadCatalog(ctx, req.TeacherIDs)
	if err != nil {
		s.metrics.RecordAutoSchedule(AutoScheduleFailed, 0, 0, time.Since(started))
		return nil, err
	}
	period := catalog.period

	keys := []string{ResourceKey(ResourcePeriod, period.ID, period.ID)}
	for _, t := range catalog.candidates {
		keys = append(keys, ResourceKey(ResourceTeacher, t.ID, period.ID))
	}
	for _, r := range catalog.rooms {
		keys = append(keys, ResourceKey(ResourceRoom, r.ID, period.ID))
	}
	for _, sec := range catalog.sections {
		keys = append(keys, ResourceKey(ResourceSection, sec.ID, period.ID))
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	candidateIDs := lo.Map(catalog.candidates, func(t models.Teacher, _ int) string { return t.ID })
	var deleted int64
	err = runInTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		n, err := s.meetings.DeleteByPeriod(ctx, tx, period.ID, catalog.subset)
		if err != nil {
			return persistenceError(err, "failed to clear meetings")
		}
		if err := s.teachers.ResetLoads(ctx, tx, candidateIDs); err != nil {
			return persistenceError(err, "failed to reset teacher loads")
		}
		deleted = n
		return nil
	})
	if err != nil {
		s.metrics.RecordAutoSchedule(AutoScheduleFailed, 0, 0, time.Since(started))
		return nil, asAppError(err, "failed to clear meetings")
	}
	for i := range catalog.candidates {
		catalog.candidates[i].CurrentLoad = 0
	}

	existing, err := s.meetings.List(ctx, nil, models.MeetingFilter{PeriodID: period.ID})
	if err != nil {
		s.metrics.RecordAutoSchedule(AutoScheduleFailed, 0, 0, time.Since(started))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load remaining meetings")
	}

	engine := NewAutoScheduler(s.runRand(req.Seed), AutoSchedulerOptions{
		PlacementRetries: s.cfg.PlacementRetries,
		AtomicPlacement:  s.cfg.AtomicPlacement,
		SlotGranularity:  s.cfg.SlotGranularity,
	})
	outcome := engine.Run(ScheduleInput{
		PeriodID:   period.ID,
		Candidates: catalog.candidates,
		Rooms:      catalog.rooms,
		Subjects:   catalog.subjects,
		Sections:   catalog.sections,
		Existing:   existing,
	})

	failures := s.persistPlacements(ctx, period.ID, outcome.Placements)
	failures = append(failures, s.persistLoads(ctx, outcome.TeacherLoads)...)

	result := &dto.AutoScheduleResult{
		RunID:             uuid.NewString(),
		PeriodID:          period.ID,
		DeletedMeetings:   deleted,
		Placements:        outcome.Placements,
		Unassigned:        outcome.Unassigned,
		TeacherLoads:      outcome.TeacherLoads,
		PersistenceErrors: failures,
		BlocksPlaced:      outcome.BlocksPlaced,
	}
	if result.Placements == nil {
		result.Placements = []dto.Placement{}
	}
	if result.Unassigned == nil {
		result.Unassigned = []dto.UnassignedPairing{}
	}

	summary := fmt.Sprintf("Auto-scheduled %d meetings for %s; %d pairings unassigned", len(result.Placements), period.Label(), len(result.Unassigned))
	if err := s.recordRun(ctx, actorID, result.RunID, summary); err != nil {
		result.PersistenceErrors = append(result.PersistenceErrors, dto.PersistenceFailure{Error: err.Error()})
	}

	status := AutoScheduleCompleted
	if len(result.PersistenceErrors) > 0 {
		status = AutoSchedulePartial
	}
	elapsed := time.Since(started)
	result.DurationMs = elapsed.Milliseconds()
	s.metrics.RecordAutoSchedule(status, len(result.Placements), len(result.Unassigned), elapsed)
	s.logger.Info("auto-schedule finished",
		zap.String("run_id", result.RunID),
		zap.String("period_id", period.ID),
		zap.String("status", status),
		zap.Int64("deleted", deleted),
		zap.Int("placements", len(result.Placements)),
		zap.Int("unassigned", len(result.Unassigned)),
		zap.Int("persistence_errors", len(result.PersistenceErrors)),
		zap.Duration("duration", elapsed),
	)

	if s.events != nil {
		s.events.Publish(ctx, TimetableEvent{
			Type:     EventAutoScheduleCompleted,
			PeriodID: period.ID,
			ActorID:  actorID,
			Summary:  summary,
		})
	}
	return result, nil
}

func (s *AutoScheduleService) loadCatalog(ctx context.Context, teacherIDs []string) (*scheduleCatalog, error) {
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		return nil, notFoundAs(err, appErrors.ErrPreconditionFailed, "no active academic period", "failed to load active period")
	}

	subjects, err := s.subjects.ListByPeriod(ctx, *period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	sections, err := s.sections.ListByPeriod(ctx, *period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	roster, err := s.teachers.List(ctx, models.TeacherFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}

	switch {
	case len(subjects) == 0:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no subjects in the active period")
	case len(sections) == 0:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no sections in the active period")
	case len(rooms) == 0:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no rooms available")
	case len(roster) == 0:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no teachers available")
	}

	catalog := &scheduleCatalog{
		period:     period,
		roster:     roster,
		candidates: roster,
		subjects:   subjects,
		sections:   sections,
		rooms:      rooms,
	}
	if len(teacherIDs) == 0 {
		return catalog, nil
	}

	subset := lo.Uniq(teacherIDs)
	sort.Strings(subset)
	known := lo.KeyBy(roster, func(t models.Teacher) string { return t.ID })
	missing := lo.Filter(subset, func(id string, _ int) bool {
		_, ok := known[id]
		return !ok
	})
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "teacher not found"), map[string]any{"teacher_ids": missing})
	}
	catalog.subset = subset
	catalog.candidates = lo.Map(subset, func(id string, _ int) models.Teacher { return known[id] })
	return catalog, nil
}

// runRand seeds the engine from the request seed, else from the service sequence.
func (s *AutoScheduleService) runRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewSource(s.seeds.Int63()))
}

// persistPlacements inserts each teacher's rows on its own worker.
// Rows of different teachers never overlap, so batches run concurrently.
func (s *AutoScheduleService) persistPlacements(ctx context.Context, periodID string, placements []dto.Placement) []dto.PersistenceFailure {
	byTeacher := map[string][]int{}
	for i, p := range placements {
		byTeacher[p.TeacherID] = append(byTeacher[p.TeacherID], i)
	}
	teacherIDs := lo.Keys(byTeacher)
	sort.Strings(teacherIDs)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures []dto.PersistenceFailure
		sem      = make(chan struct{}, s.cfg.PersistWorkers)
	)
	for _, teacherID := range teacherIDs {
		indexes := byTeacher[teacherID]
		wg.Add(1)
		sem <- struct{}{}
		go func(indexes []int) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, i := range indexes {
				p := &placements[i]
				meeting := &models.Meeting{
					PeriodID:  periodID,
					SubjectID: p.SubjectID,
					TeacherID: p.TeacherID,
					SectionID: p.SectionID,
					RoomID:    p.RoomID,
					Days:      p.Days,
					StartTime: p.StartTime,
					EndTime:   p.EndTime,
					Duration:  p.Duration,
					LoadUnits: p.LoadUnits,
				}
				if err := s.meetings.Create(ctx, nil, meeting); err != nil {
					s.logger.Warn("failed to insert scheduled meeting",
						zap.String("teacher_id", p.TeacherID),
						zap.String("subject_id", p.SubjectID),
						zap.String("section_id", p.SectionID),
						zap.Error(err),
					)
					mu.Lock()
					failures = append(failures, dto.PersistenceFailure{
						TeacherID: p.TeacherID,
						SubjectID: p.SubjectID,
						SectionID: p.SectionID,
						Error:     err.Error(),
					})
					mu.Unlock()
					continue
				}
				p.MeetingID = meeting.ID
			}
		}(indexes)
	}
	wg.Wait()

	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].TeacherID != failures[j].TeacherID {
			return failures[i].TeacherID < failures[j].TeacherID
		}
		if failures[i].SubjectID != failures[j].SubjectID {
			return failures[i].SubjectID < failures[j].SubjectID
		}
		return failures[i].SectionID < failures[j].SectionID
	})
	return failures
}

func (s *AutoScheduleService) persistLoads(ctx context.Context, loads map[string]int) []dto.PersistenceFailure {
	ids := lo.Keys(loads)
	sort.Strings(ids)
	var failures []dto.PersistenceFailure
	for _, id := range ids {
		if err := s.teachers.SetLoad(ctx, nil, id, loads[id]); err != nil {
			s.logger.Warn("failed to write teacher load", zap.String("teacher_id", id), zap.Error(err))
			failures = append(failures, dto.PersistenceFailure{TeacherID: id, Error: err.Error()})
		}
	}
	return failures
}

func (s *AutoScheduleService) recordRun(ctx context.Context, actorID, runID, text string) error {
	entry := &models.ActivityLog{
		Action:     models.ActivityAutoSchedule,
		Resource:   "schedule",
		ResourceID: &runID,
		Text:       text,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if err := s.activity.Create(ctx, nil, entry); err != nil {
		s.logger.Warn("failed to record auto-schedule activity", zap.String("run_id", runID), zap.Error(err))
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func notFoundAs(err error, kind *appErrors.Error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(kind, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return persistenceError(err, message)
}
