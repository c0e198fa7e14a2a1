package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mnuel1/spacio-backend/internal/models"
)

const (
	subjectColumns = "id, code, name, specialization, units, lec_hours, lab_hours, period_id, semester, school_year, created_at, updated_at"
	sectionColumns = "id, name, enrollment_count, period_id, semester, school_year, created_at, updated_at"
	roomColumns    = "id, name, type, created_at, updated_at"

	// Catalog rows belong to a period either by id or by (semester, school_year).
	periodScopeClause = "(period_id = $1 OR (period_id IS NULL AND semester = $2 AND school_year = $3))"
)

// SubjectRepository reads the subject catalog.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByPeriod returns subjects scoped to the period.
func (r *SubjectRepository) ListByPeriod(ctx context.Context, period models.AcademicPeriod) ([]models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects WHERE " + periodScopeClause + " ORDER BY code ASC, id ASC"
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, period.ID, period.Semester, period.SchoolYear); err != nil {
		return nil, fmt.Errorf("list subjects by period: %w", err)
	}
	return subjects, nil
}

// ListAll returns the full catalog across periods.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects ORDER BY code ASC, id ASC"
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID loads a subject.
func (r *SubjectRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Subject, error) {
	query := "SELECT " + subjectColumns + " FROM subjects WHERE id = $1"
	var subject models.Subject
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}
