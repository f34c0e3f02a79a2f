package schedulermodule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/redbridgehc/clubhouse/internal/events"
	"github.com/redbridgehc/clubhouse/internal/logger"
)

// PollInterval is how often the scheduler checks the table for due jobs.
const PollInterval = 15 * time.Second

// JobFunc is a registered periodic job body.
type JobFunc func(ctx context.Context) error

// Scheduler ticks on an injected clock, reads due enabled jobs from the
// scheduled_jobs table and runs the registered func for each.
type Scheduler struct {
	db    *gorm.DB
	clock clockwork.Clock

	mu   sync.RWMutex
	jobs map[string]JobFunc
}

// NewScheduler builds a scheduler around the given database and clock.
func NewScheduler(db *gorm.DB, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		db:    db,
		clock: clock,
		jobs:  map[string]JobFunc{},
	}
}

// RegisterJob binds a job key to its func. Re-registering a key replaces
// the previous func.
func (s *Scheduler) RegisterJob(key string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[key] = fn
}

// JobKeys returns the registered keys, for diagnostics.
func (s *Scheduler) JobKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.jobs))
	for k := range s.jobs {
		keys = append(keys, k)
	}
	return keys
}

// Run polls for due jobs until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("⏰ Scheduler started", logger.Int("jobs", len(s.JobKeys())))
	ticker := s.clock.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return
		case <-ticker.Chan():
			if err := s.RunDue(ctx); err != nil {
				logger.Error("scheduler tick failed", logger.Err(err))
			}
		}
	}
}

// RunDue executes every enabled due job once and records its run times.
// Job failures are logged and rescheduled, they never stop the loop.
func (s *Scheduler) RunDue(ctx context.Context) error {
	now := s.clock.Now().UTC()

	var due []ScheduledJob
	err := s.db.
		Where("enabled = ? AND (next_run_at IS NULL OR next_run_at <= ?)", true, now).
		Order("name").
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("failed to load due jobs: %w", err)
	}

	for i := range due {
		s.runJob(ctx, &due[i], now)
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job *ScheduledJob, now time.Time) {
	s.mu.RLock()
	fn, ok := s.jobs[job.JobKey]
	s.mu.RUnlock()

	if !ok {
		logger.Warn("no job registered for key, skipping",
			logger.String("name", job.Name), logger.String("key", job.JobKey))
		s.reschedule(job, now)
		return
	}

	logger.Info("running scheduled job",
		logger.String("name", job.Name), logger.String("key", job.JobKey))

	runErr := fn(ctx)
	if runErr != nil {
		logger.Error("scheduled job failed",
			logger.String("name", job.Name), logger.Err(runErr))
	}
	s.reschedule(job, now)

	status := "ok"
	if runErr != nil {
		status = "failed"
	}
	events.PublishGlobal(events.Event{
		Type:    events.EventJobExecuted,
		Source:  "scheduler",
		Title:   "Scheduled job executed",
		Message: fmt.Sprintf("%s (%s): %s", job.Name, job.JobKey, status),
	})
}

// reschedule stamps the run and computes the next due time from now, not
// from the previous due time, so a stalled scheduler does not burst.
func (s *Scheduler) reschedule(job *ScheduledJob, now time.Time) {
	next := now.Add(job.Interval())
	updates := map[string]interface{}{
		"last_run_at": &now,
		"next_run_at": &next,
	}
	if err := s.db.Model(job).Updates(updates).Error; err != nil {
		logger.Error("failed to record job run",
			logger.String("name", job.Name), logger.Err(err))
	}
}
