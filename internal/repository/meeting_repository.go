package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mnuel1/spacio-backend/internal/models"
)

const meetingColumns = "m.id, m.period_id, m.subject_id, m.teacher_id, m.section_id, m.room_id, m.days, m.start_time, m.end_time, m.duration, m.load_units, m.created_at, m.updated_at"

// MeetingRepository persists timetable meetings.
type MeetingRepository struct {
	db       *sqlx.DB
	observer QueryObserver
}

// NewMeetingRepository constructs a MeetingRepository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// WithObserver reports timetable scan and bulk delete timings to o.
func (r *MeetingRepository) WithObserver(o QueryObserver) *MeetingRepository {
	r.observer = o
	return r
}

func buildMeetingWhere(filter models.MeetingFilter) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := make([]interface{}, 0, 5)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.PeriodID != "" {
		add("m.period_id = $%d", filter.PeriodID)
	}
	if filter.TeacherID != "" {
		add("m.teacher_id = $%d", filter.TeacherID)
	}
	if filter.SectionID != "" {
		add("m.section_id = $%d", filter.SectionID)
	}
	if filter.RoomID != "" {
		add("m.room_id = $%d", filter.RoomID)
	}
	if len(filter.TeacherIDs) > 0 {
		add("m.teacher_id = ANY($%d)", pq.Array(filter.TeacherIDs))
	}
	return strings.Join(conditions, " AND "), args
}

// List returns meetings matching filter in creation order.
func (r *MeetingRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.MeetingFilter) ([]models.Meeting, error) {
	defer observe(r.observer, "meetings.list", time.Now())
	where, args := buildMeetingWhere(filter)
	query := "SELECT " + meetingColumns + " FROM meetings m WHERE " + where + " ORDER BY m.created_at ASC, m.id ASC"

	var meetings []models.Meeting
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &meetings, query, args...); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// ListDetailed returns meetings joined with subject, teacher, section and room names.
func (r *MeetingRepository) ListDetailed(ctx context.Context, filter models.MeetingFilter) ([]models.MeetingDetail, error) {
	defer observe(r.observer, "meetings.list_detailed", time.Now())
	where, args := buildMeetingWhere(filter)
	query := `SELECT ` + meetingColumns + `,
		s.code AS subject_code, s.name AS subject_name,
		t.full_name AS teacher_name, sec.name AS section_name,
		r.name AS room_name, r.type AS room_type
	FROM meetings m
	JOIN subjects s ON s.id = m.subject_id
	JOIN teachers t ON t.id = m.teacher_id
	JOIN sections sec ON sec.id = m.section_id
	JOIN rooms r ON r.id = m.room_id
	WHERE ` + where + `
	ORDER BY sec.name ASC, m.start_time ASC, m.id ASC`

	var details []models.MeetingDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list meeting details: %w", err)
	}
	return details, nil
}

// FindByID loads one meeting.
func (r *MeetingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Meeting, error) {
	query := "SELECT " + meetingColumns + " FROM meetings m WHERE m.id = $1"
	var meeting models.Meeting
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &meeting, query, id); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// Create inserts a meeting, assigning id and timestamps when missing.
func (r *MeetingRepository) Create(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now

	const query = `INSERT INTO meetings (id, period_id, subject_id, teacher_id, section_id, room_id, days, start_time, end_time, duration, load_units, created_at, updated_at)
		VALUES (:id, :period_id, :subject_id, :teacher_id, :section_id, :room_id, :days, :start_time, :end_time, :duration, :load_units, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, execOr(r.db, exec), query, meeting); err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	return nil
}

// Update rewrites a meeting's assignment fields.
func (r *MeetingRepository) Update(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error {
	meeting.UpdatedAt = time.Now().UTC()
	const query = `UPDATE meetings SET subject_id = :subject_id, teacher_id = :teacher_id, section_id = :section_id, room_id = :room_id,
		days = :days, start_time = :start_time, end_time = :end_time, duration = :duration, load_units = :load_units, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, execOr(r.db, exec), query, meeting)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update meeting %s: %w", meeting.ID, errNoRowsAffected)
	}
	return nil
}

// Delete removes a meeting.
func (r *MeetingRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("delete meeting %s: %w", id, errNoRowsAffected)
	}
	return nil
}

// DeleteByPeriod removes a period's meetings, limited to teacherIDs when given.
func (r *MeetingRepository) DeleteByPeriod(ctx context.Context, exec sqlx.ExtContext, periodID string, teacherIDs []string) (int64, error) {
	defer observe(r.observer, "meetings.delete_by_period", time.Now())
	query := `DELETE FROM meetings WHERE period_id = $1`
	args := []interface{}{periodID}
	if len(teacherIDs) > 0 {
		query += ` AND teacher_id = ANY($2)`
		args = append(args, pq.Array(teacherIDs))
	}
	res, err := execOr(r.db, exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete meetings by period: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
