package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler. Every job runs in singleton mode: a
// tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]gocron.Job
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to create scheduler").Build()
	}
	return &Scheduler{scheduler: s, jobs: map[string]gocron.Job{}}, nil
}

// Start begins executing jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	if err := s.scheduler.Shutdown(); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "scheduler shutdown failed").Build()
	}
	return nil
}

// ScheduleEvery runs task every interval and returns the job ID.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", errors.ValidationError("schedule interval must be positive").
			WithContext("interval", interval.String()).Build()
	}
	return s.add(name, gocron.DurationJob(interval), task)
}

// ScheduleCron runs task on a five-field cron expression and returns the job ID.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (string, error) {
	return s.add(name, gocron.CronJob(expr, false), task)
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, task func()) (string, error) {
	job, err := s.scheduler.NewJob(def,
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryValidation, "invalid schedule").
			WithContext("job", name).Build()
	}
	id := job.ID().String()
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()
	return id, nil
}

// Remove deletes a job. Unknown IDs are ignored.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.scheduler.RemoveJob(job.ID()); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to remove job").
			WithContext("job_id", id).Build()
	}
	return nil
}

// NextRun reports when a job fires next.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next, err := job.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
