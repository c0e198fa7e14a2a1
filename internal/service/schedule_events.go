package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnuel1/spacio-backend/pkg/jobs"
)

// Timetable event types.
const (
	EventTimetableChanged      = "timetable.changed"
	EventAutoScheduleCompleted = "autoschedule.completed"
)

// TimetableEvent is published after a committed timetable mutation.
type TimetableEvent struct {
	Type     string
	PeriodID string
	ActorID  string
	Summary  string
}

type conflictCacheInvalidator interface {
	Invalidate(ctx context.Context, periodID string) error
}

// ScheduleEvents dispatches post-mutation side effects on a background queue.
// Dispatch is best effort: failures are logged and never reach the caller.
type ScheduleEvents struct {
	queue  *jobs.Queue
	cache  conflictCacheInvalidator
	logger *zap.Logger
}

// NewScheduleEvents builds the dispatcher and its queue.
func NewScheduleEvents(cache conflictCacheInvalidator, cfg jobs.QueueConfig, logger *zap.Logger) *ScheduleEvents {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &ScheduleEvents{cache: cache, logger: logger}
	cfg.Logger = logger
	e.queue = jobs.NewQueue("schedule-events", e.handle, cfg)
	return e
}

// Start launches the workers.
func (e *ScheduleEvents) Start(ctx context.Context) {
	if e == nil {
		return
	}
	e.queue.Start(ctx)
}

// Stats reports queue counters.
func (e *ScheduleEvents) Stats() jobs.Stats {
	if e == nil {
		return jobs.Stats{}
	}
	return e.queue.Stats()
}

// Stop drains the workers.
func (e *ScheduleEvents) Stop() {
	if e == nil {
		return
	}
	e.queue.Stop()
}

// Publish enqueues the event, handling it inline when the queue is unavailable.
func (e *ScheduleEvents) Publish(ctx context.Context, event TimetableEvent) {
	if e == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: event.Type, Payload: event}
	if event.Type == EventTimetableChanged {
		job.Key = event.Type + ":" + event.PeriodID
	}
	if err := e.queue.TryEnqueue(job); err != nil {
		e.logger.Debug("event queue unavailable, dispatching inline", zap.String("type", event.Type), zap.Error(err))
		if err := e.handle(ctx, job); err != nil {
			e.logger.Warn("timetable event dispatch failed", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

func (e *ScheduleEvents) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(TimetableEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, event.PeriodID); err != nil {
			return fmt.Errorf("invalidate conflict cache: %w", err)
		}
	}
	if event.Type == EventAutoScheduleCompleted {
		e.logger.Info("auto-schedule completed",
			zap.String("period_id", event.PeriodID),
			zap.String("actor_id", event.ActorID),
			zap.String("summary", event.Summary),
		)
	}
	return nil
}
