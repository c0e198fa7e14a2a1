package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/pkg/database"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/timeutil"
)

type activePeriodReader interface {
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
}

type meetingTeacherStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error)
	AdjustLoad(ctx context.Context, exec sqlx.ExtContext, id string, delta int) error
}

type meetingSubjectReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error)
}

type meetingSectionReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Section, error)
}

type meetingRoomReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Room, error)
}

type meetingStore interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.MeetingFilter) ([]models.Meeting, error)
	ListDetailed(ctx context.Context, filter models.MeetingFilter) ([]models.MeetingDetail, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Meeting, error)
	Create(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error
	Update(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type activityWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.ActivityLog) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetablePublisher interface {
	Publish(ctx context.Context, event TimetableEvent)
}

// MeetingServiceConfig tunes the single meeting write path.
type MeetingServiceConfig struct {
	SerializableRetries int
}

// MeetingService validates and commits single meeting changes.
type MeetingService struct {
	periods   activePeriodReader
	teachers  meetingTeacherStore
	subjects  meetingSubjectReader
	sections  meetingSectionReader
	rooms     meetingRoomReader
	meetings  meetingStore
	activity  activityWriter
	tx        txProvider
	locker    Locker
	rules     *ConstraintValidator
	events    timetablePublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MeetingServiceConfig
}

// NewMeetingService wires meeting dependencies.
func NewMeetingService(
	periods activePeriodReader,
	teachers meetingTeacherStore,
	subjects meetingSubjectReader,
	sections meetingSectionReader,
	rooms meetingRoomReader,
	meetings meetingStore,
	activity activityWriter,
	tx txProvider,
	locker Locker,
	events timetablePublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg MeetingServiceConfig,
) *MeetingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if cfg.SerializableRetries < 0 {
		cfg.SerializableRetries = 0
	}
	return &MeetingService{
		periods:   periods,
		teachers:  teachers,
		subjects:  subjects,
		sections:  sections,
		rooms:     rooms,
		meetings:  meetings,
		activity:  activity,
		tx:        tx,
		locker:    locker,
		rules:     NewConstraintValidator(),
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

type meetingSlot struct {
	days models.DaySet
	time timeutil.Range
}

func parseMeetingSlot(days, start, end string) (meetingSlot, error) {
	set, err := models.ParseDaySet(days)
	if err != nil {
		return meetingSlot{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if set.IsEmpty() {
		return meetingSlot{}, appErrors.Clone(appErrors.ErrValidation, "at least one day is required")
	}
	r, err := timeutil.ParseRange(start, end)
	if err != nil {
		return meetingSlot{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return meetingSlot{days: set, time: r}, nil
}

// List returns the active period's meetings with display names.
func (s *MeetingService) List(ctx context.Context, query dto.MeetingListQuery) ([]models.MeetingDetail, error) {
	period, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.meetings.ListDetailed(ctx, models.MeetingFilter{
		PeriodID:  period.ID,
		TeacherID: query.TeacherID,
		SectionID: query.SectionID,
		RoomID:    query.RoomID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}
	return details, nil
}

// Create validates and commits a new meeting in the active period.
func (s *MeetingService) Create(ctx context.Context, req dto.CreateMeetingRequest, actorID string) (*dto.MeetingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	slot, err := parseMeetingSlot(req.Days, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	period, err := s.activePeriod(ctx)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx,
		ResourceKey(ResourceRoom, req.RoomID, period.ID),
		ResourceKey(ResourceTeacher, req.TeacherID, period.ID),
		ResourceKey(ResourceSection, req.SectionID, period.ID),
	)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		meeting *models.Meeting
		load    int
		subject *models.Subject
	)
	err = s.withSerializableTx(ctx, func(tx *sqlx.Tx) error {
		teacher, subj, err := s.loadParticipants(ctx, tx, req.TeacherID, req.SubjectID, req.SectionID, req.RoomID)
		if err != nil {
			return err
		}
		timetable, err := s.meetings.List(ctx, tx, models.MeetingFilter{PeriodID: period.ID})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
		}

		proposal := MeetingProposal{
			PeriodID:  period.ID,
			Teacher:   *teacher,
			Subject:   *subj,
			SectionID: req.SectionID,
			RoomID:    req.RoomID,
			Days:      slot.days,
			Time:      slot.time,
		}
		if err := s.check(proposal, timetable); err != nil {
			return err
		}

		duration, _ := timeutil.DurationHHMM(slot.time.Start, slot.time.End)
		candidate := &models.Meeting{
			PeriodID:  period.ID,
			SubjectID: subj.ID,
			TeacherID: teacher.ID,
			SectionID: req.SectionID,
			RoomID:    req.RoomID,
			Days:      slot.days,
			StartTime: timeutil.ToHHMM(slot.time.Start),
			EndTime:   timeutil.ToHHMM(slot.time.End),
			Duration:  duration,
			LoadUnits: subj.Units,
		}
		if err := s.meetings.Create(ctx, tx, candidate); err != nil {
			return persistenceError(err, "failed to create meeting")
		}
		if err := s.teachers.AdjustLoad(ctx, tx, teacher.ID, subj.Units); err != nil {
			return persistenceError(err, "failed to update teacher load")
		}
		text := fmt.Sprintf("Scheduled %s for section %s on %s %s", subj.Code, req.SectionID, slot.days, slot.time)
		if err := s.recordActivity(ctx, tx, actorID, models.ActivityMeetingCreate, candidate.ID, text); err != nil {
			return err
		}

		meeting = candidate
		subject = subj
		load = teacher.CurrentLoad + subj.Units
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("meeting created",
		zap.String("meeting_id", meeting.ID),
		zap.String("subject_code", subject.Code),
		zap.String("teacher_id", meeting.TeacherID),
		zap.String("period_id", period.ID),
	)
	s.publish(ctx, period.ID, actorID)
	return &dto.MeetingResponse{Meeting: *meeting, TeacherLoad: load}, nil
}

// Reassign changes an existing meeting, re-running every check without the meeting itself.
func (s *MeetingService) Reassign(ctx context.Context, id string, req dto.ReassignMeetingRequest, actorID string) (*dto.MeetingResponse, error) {
	existing, err := s.meetings.FindByID(ctx, nil, id)
	if err != nil {
		return nil, notFoundOr(err, "meeting not found", "failed to load meeting")
	}

	next := *existing
	next.SubjectID = firstNonEmpty(req.SubjectID, existing.SubjectID)
	next.TeacherID = firstNonEmpty(req.TeacherID, existing.TeacherID)
	next.SectionID = firstNonEmpty(req.SectionID, existing.SectionID)
	next.RoomID = firstNonEmpty(req.RoomID, existing.RoomID)
	slot, err := parseMeetingSlot(
		firstNonEmpty(req.Days, existing.Days.String()),
		firstNonEmpty(req.StartTime, existing.StartTime),
		firstNonEmpty(req.EndTime, existing.EndTime),
	)
	if err != nil {
		return nil, err
	}

	periodID := existing.PeriodID
	unlock, err := s.locker.Lock(ctx,
		ResourceKey(ResourceRoom, existing.RoomID, periodID),
		ResourceKey(ResourceRoom, next.RoomID, periodID),
		ResourceKey(ResourceTeacher, existing.TeacherID, periodID),
		ResourceKey(ResourceTeacher, next.TeacherID, periodID),
		ResourceKey(ResourceSection, existing.SectionID, periodID),
		ResourceKey(ResourceSection, next.SectionID, periodID),
	)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var load int
	err = s.withSerializableTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.meetings.FindByID(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "meeting not found", "failed to load meeting")
		}
		teacher, subj, err := s.loadParticipants(ctx, tx, next.TeacherID, next.SubjectID, next.SectionID, next.RoomID)
		if err != nil {
			return err
		}
		timetable, err := s.meetings.List(ctx, tx, models.MeetingFilter{PeriodID: periodID})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
		}

		sameTeacher := teacher.ID == current.TeacherID
		charge := reassignCharge(current, next, subj.Units, timetable)
		proposal := MeetingProposal{
			PeriodID:  periodID,
			MeetingID: current.ID,
			Teacher:   *teacher,
			Subject:   *subj,
			SectionID: next.SectionID,
			RoomID:    next.RoomID,
			Days:      slot.days,
			Time:      slot.time,
			Charge:    &charge,
		}
		if sameTeacher {
			proposal.LoadCredit = current.LoadUnits
		}
		if err := s.check(proposal, timetable); err != nil {
			return err
		}

		duration, _ := timeutil.DurationHHMM(slot.time.Start, slot.time.End)
		next.Days = slot.days
		next.StartTime = timeutil.ToHHMM(slot.time.Start)
		next.EndTime = timeutil.ToHHMM(slot.time.End)
		next.Duration = duration
		next.LoadUnits = charge
		if err := s.meetings.Update(ctx, tx, &next); err != nil {
			return notFoundOr(err, "meeting not found", "failed to update meeting")
		}

		if sameTeacher {
			if delta := charge - current.LoadUnits; delta != 0 {
				if err := s.teachers.AdjustLoad(ctx, tx, teacher.ID, delta); err != nil {
					return persistenceError(err, "failed to update teacher load")
				}
			}
			load = max(teacher.CurrentLoad+charge-current.LoadUnits, 0)
		} else {
			if current.LoadUnits != 0 {
				if err := s.teachers.AdjustLoad(ctx, tx, current.TeacherID, -current.LoadUnits); err != nil {
					return persistenceError(err, "failed to update previous teacher load")
				}
			}
			if charge != 0 {
				if err := s.teachers.AdjustLoad(ctx, tx, teacher.ID, charge); err != nil {
					return persistenceError(err, "failed to update teacher load")
				}
			}
			load = teacher.CurrentLoad + charge
		}

		text := fmt.Sprintf("Reassigned %s to teacher %s, room %s on %s %s", subj.Code, teacher.FullName, next.RoomID, slot.days, slot.time)
		return s.recordActivity(ctx, tx, actorID, models.ActivityMeetingReassign, current.ID, text)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("meeting reassigned", zap.String("meeting_id", id), zap.String("teacher_id", next.TeacherID))
	s.publish(ctx, periodID, actorID)
	return &dto.MeetingResponse{Meeting: next, TeacherLoad: load}, nil
}

// Delete removes a meeting and reverses the load it credited.
func (s *MeetingService) Delete(ctx context.Context, id string, actorID string) error {
	existing, err := s.meetings.FindByID(ctx, nil, id)
	if err != nil {
		return notFoundOr(err, "meeting not found", "failed to load meeting")
	}

	unlock, err := s.locker.Lock(ctx,
		ResourceKey(ResourceRoom, existing.RoomID, existing.PeriodID),
		ResourceKey(ResourceTeacher, existing.TeacherID, existing.PeriodID),
		ResourceKey(ResourceSection, existing.SectionID, existing.PeriodID),
	)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.withSerializableTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.meetings.FindByID(ctx, tx, id)
		if err != nil {
			return notFoundOr(err, "meeting not found", "failed to load meeting")
		}
		if err := s.meetings.Delete(ctx, tx, id); err != nil {
			return notFoundOr(err, "meeting not found", "failed to delete meeting")
		}
		if current.LoadUnits > 0 {
			if err := s.teachers.AdjustLoad(ctx, tx, current.TeacherID, -current.LoadUnits); err != nil {
				return persistenceError(err, "failed to update teacher load")
			}
		}
		text := fmt.Sprintf("Removed meeting %s (%s %s-%s)", current.ID, current.Days, current.StartTime, current.EndTime)
		return s.recordActivity(ctx, tx, actorID, models.ActivityMeetingDelete, current.ID, text)
	})
	if err != nil {
		return err
	}

	s.logger.Info("meeting deleted", zap.String("meeting_id", id))
	s.publish(ctx, existing.PeriodID, actorID)
	return nil
}

func (s *MeetingService) activePeriod(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := s.periods.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active academic period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active period")
	}
	return period, nil
}

func (s *MeetingService) loadParticipants(ctx context.Context, tx sqlx.ExtContext, teacherID, subjectID, sectionID, roomID string) (*models.Teacher, *models.Subject, error) {
	teacher, err := s.teachers.FindByID(ctx, tx, teacherID)
	if err != nil {
		return nil, nil, withEntity(notFoundOr(err, "teacher not found", "failed to load teacher"), "teacher_id", teacherID)
	}
	subject, err := s.subjects.FindByID(ctx, tx, subjectID)
	if err != nil {
		return nil, nil, withEntity(notFoundOr(err, "subject not found", "failed to load subject"), "subject_id", subjectID)
	}
	if _, err := s.sections.FindByID(ctx, tx, sectionID); err != nil {
		return nil, nil, withEntity(notFoundOr(err, "section not found", "failed to load section"), "section_id", sectionID)
	}
	if _, err := s.rooms.FindByID(ctx, tx, roomID); err != nil {
		return nil, nil, withEntity(notFoundOr(err, "room not found", "failed to load room"), "room_id", roomID)
	}
	return teacher, subject, nil
}

func (s *MeetingService) check(proposal MeetingProposal, timetable []models.Meeting) error {
	violation := s.rules.Validate(proposal, timetable)
	if violation == nil {
		s.metrics.RecordValidation("")
		return nil
	}
	s.metrics.RecordValidation(string(violation.Rule))
	s.logger.Debug("meeting rejected", zap.String("rule", string(violation.Rule)), zap.String("reason", violation.Message))

	details := violation.Details()
	details["teacher_id"] = proposal.Teacher.ID
	details["subject_id"] = proposal.Subject.ID
	details["section_id"] = proposal.SectionID
	details["room_id"] = proposal.RoomID
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConstraintViolation, violation.Message), details)
}

func (s *MeetingService) recordActivity(ctx context.Context, tx sqlx.ExtContext, actorID, action, meetingID, text string) error {
	entry := &models.ActivityLog{
		Action:     action,
		Resource:   "meeting",
		ResourceID: &meetingID,
		Text:       text,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if err := s.activity.Create(ctx, tx, entry); err != nil {
		return persistenceError(err, "failed to record activity")
	}
	return nil
}

func (s *MeetingService) publish(ctx context.Context, periodID, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, TimetableEvent{Type: EventTimetableChanged, PeriodID: periodID, ActorID: actorID})
}

// withSerializableTx runs fn in a SERIALIZABLE transaction, retrying serialization failures.
func (s *MeetingService) withSerializableTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := runInTx(ctx, s.tx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
		if err == nil {
			return nil
		}
		if !database.IsRetryableTxError(err) || attempt >= s.cfg.SerializableRetries {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				return appErr
			}
			return persistenceError(err, "failed to commit meeting change")
		}
		s.logger.Warn("retrying serializable transaction", zap.Int("attempt", attempt+1), zap.Error(err))
	}
}

func runInTx(ctx context.Context, provider txProvider, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := provider.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// reassignCharge is the load a reassigned row credits. A row keeps its credit
// while its (teacher, subject, section) pairing is unchanged. A row moved into
// another pairing credits the subject's units unless a sibling row in the
// period already carries that pairing's credit.
func reassignCharge(current *models.Meeting, next models.Meeting, units int, timetable []models.Meeting) int {
	if samePairing(*current, next) {
		return current.LoadUnits
	}
	for _, m := range timetable {
		if m.ID != current.ID && m.PeriodID == current.PeriodID && m.LoadUnits > 0 && samePairing(m, next) {
			return 0
		}
	}
	return units
}

func samePairing(a, b models.Meeting) bool {
	return a.TeacherID == b.TeacherID && a.SubjectID == b.SubjectID && a.SectionID == b.SectionID
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func persistenceError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)
}

func withEntity(err error, key, id string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErrors.WithDetails(appErr, map[string]any{key: id})
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
