package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mnuel1/spacio-backend/internal/models"
)

// ActivityRepository appends to the activity log.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create records an activity entry.
func (r *ActivityRepository) Create(ctx context.Context, exec sqlx.ExtContext, log *models.ActivityLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, actor_id, action, resource, resource_id, text, created_at)
		VALUES (:id, :actor_id, :action, :resource, :resource_id, :text, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, execOr(r.db, exec), query, log); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}
