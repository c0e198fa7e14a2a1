package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mnuel1/spacio-backend/internal/models"
)

const teacherColumns = "id, full_name, email, position, specializations, avail_days, pref_start, pref_end, current_load, max_load, created_at, updated_at"

// TeacherRepository manages persistence for teachers.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns the roster ordered by id, optionally restricted to ids.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	query := "SELECT " + teacherColumns + " FROM teachers"
	var args []interface{}
	if len(filter.IDs) > 0 {
		query += " WHERE id = ANY($1)"
		args = append(args, pq.Array(filter.IDs))
	}
	query += " ORDER BY id ASC"

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher. Inside a transaction the row is locked for update.
func (r *TeacherRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Teacher, error) {
	query := "SELECT " + teacherColumns + " FROM teachers WHERE id = $1"
	if exec != nil {
		query += " FOR UPDATE"
	}
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// AdjustLoad adds delta to the teacher's current load, never going below zero.
func (r *TeacherRepository) AdjustLoad(ctx context.Context, exec sqlx.ExtContext, id string, delta int) error {
	const query = `UPDATE teachers SET current_load = GREATEST(current_load + $2, 0), updated_at = $3 WHERE id = $1`
	if _, err := execOr(r.db, exec).ExecContext(ctx, query, id, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("adjust teacher load: %w", err)
	}
	return nil
}

// SetLoad overwrites the teacher's current load.
func (r *TeacherRepository) SetLoad(ctx context.Context, exec sqlx.ExtContext, id string, load int) error {
	if load < 0 {
		load = 0
	}
	const query = `UPDATE teachers SET current_load = $2, updated_at = $3 WHERE id = $1`
	if _, err := execOr(r.db, exec).ExecContext(ctx, query, id, load, time.Now().UTC()); err != nil {
		return fmt.Errorf("set teacher load: %w", err)
	}
	return nil
}

// ResetLoads zeroes the load of the given teachers, or of every teacher when ids is empty.
func (r *TeacherRepository) ResetLoads(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	query := `UPDATE teachers SET current_load = 0, updated_at = $1`
	args := []interface{}{time.Now().UTC()}
	if len(ids) > 0 {
		query += ` WHERE id = ANY($2)`
		args = append(args, pq.Array(ids))
	}
	if _, err := execOr(r.db, exec).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset teacher loads: %w", err)
	}
	return nil
}
