package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/mnuel1/spacio-backend/internal/models"
)

const periodColumns = "id, semester, school_year, is_active, start_date, end_date, created_at, updated_at"

// PeriodRepository reads academic periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs a PeriodRepository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// FindActive returns the single active period or sql.ErrNoRows.
func (r *PeriodRepository) FindActive(ctx context.Context) (*models.AcademicPeriod, error) {
	query := "SELECT " + periodColumns + " FROM academic_periods WHERE is_active = TRUE LIMIT 1"
	var period models.AcademicPeriod
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}
