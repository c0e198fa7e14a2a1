package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mnuel1/spacio-backend/internal/models"
)

// SectionRepository reads sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListByPeriod returns sections scoped to the period.
func (r *SectionRepository) ListByPeriod(ctx context.Context, period models.AcademicPeriod) ([]models.Section, error) {
	query := "SELECT " + sectionColumns + " FROM sections WHERE " + periodScopeClause + " ORDER BY name ASC, id ASC"
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, period.ID, period.Semester, period.SchoolYear); err != nil {
		return nil, fmt.Errorf("list sections by period: %w", err)
	}
	return sections, nil
}

// FindByID loads a section.
func (r *SectionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Section, error) {
	query := "SELECT " + sectionColumns + " FROM sections WHERE id = $1"
	var section models.Section
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}
