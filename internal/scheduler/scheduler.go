// Package scheduler multiplexes periodic jobs onto a single goroutine.
//
// Jobs never overlap: the loop waits for the earliest due job, runs it to
// completion, then asks its schedule for the next run starting from the
// moment the job returned. A job that became due while another was running
// fires right after, it is not dropped and not queued twice.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kebairia/snapback/internal/logger"
)

var (
	// ErrAlreadyRunning is returned by Run when the loop is already active.
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrNoJobs is returned by New when there is nothing to schedule.
	ErrNoJobs = errors.New("no jobs to schedule")
)

// Task is one unit of work. It owns its error handling and logging.
type Task func(ctx context.Context)

// Job binds a Task to the schedule that decides when it runs.
type Job struct {
	Name     string
	Schedule cron.Schedule
	Task     Task
	// RunOnStart dispatches the job as soon as the loop starts instead of
	// waiting for its first scheduled time.
	RunOnStart bool
}

// Scheduler runs jobs one at a time until its context is canceled.
type Scheduler struct {
	log    logger.Logger
	jobs   []Job
	active atomic.Bool
}

// New validates jobs and returns a stopped Scheduler.
func New(log logger.Logger, jobs ...Job) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	for i, j := range jobs {
		if j.Name == "" {
			return nil, fmt.Errorf("job %d: name is required", i)
		}
		if j.Schedule == nil {
			return nil, fmt.Errorf("job %q: schedule is required", j.Name)
		}
		if j.Task == nil {
			return nil, fmt.Errorf("job %q: task is required", j.Name)
		}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{log: log, jobs: jobs}, nil
}

func (s *Scheduler) running() bool {
	return s.active.Load()
}

// Run blocks, dispatching jobs as they become due, until ctx is canceled.
// Cancellation is observed only between jobs; a job already started runs
// to completion with a context that is never canceled. Run returns nil on
// a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.active.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.active.Store(false)

	now := time.Now()
	next := make([]time.Time, len(s.jobs))
	for i, j := range s.jobs {
		if j.RunOnStart {
			next[i] = now
		} else {
			next[i] = j.Schedule.Next(now)
		}
		s.logScheduled(j, next[i])
	}
	s.log.Info("scheduler started", "jobs", len(s.jobs))

	for {
		i, ok := earliest(next)
		if !ok {
			// every schedule is exhausted; idle until shutdown
			<-ctx.Done()
			return s.stop()
		}

		if !s.wait(ctx, next[i]) || ctx.Err() != nil {
			return s.stop()
		}

		job := s.jobs[i]
		s.dispatch(ctx, job)
		next[i] = job.Schedule.Next(time.Now())
		s.logScheduled(job, next[i])
	}
}

// wait sleeps until at, returning false if ctx is canceled first.
func (s *Scheduler) wait(ctx context.Context, at time.Time) bool {
	d := time.Until(at)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) dispatch(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", "job", job.Name, "panic", fmt.Sprint(r))
		}
	}()

	start := time.Now()
	s.log.Debug("task started", "job", job.Name)
	job.Task(context.WithoutCancel(ctx))
	s.log.Debug("task finished", "job", job.Name, "duration", time.Since(start).String())
}

func (s *Scheduler) stop() error {
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) logScheduled(job Job, at time.Time) {
	if at.IsZero() {
		s.log.Warn("task has no further runs", "job", job.Name)
		return
	}
	s.log.Info("task scheduled", "job", job.Name, "next_run", at.Format(time.RFC3339))
}

// earliest returns the index of the soonest non-zero time. Ties go to the
// job registered first.
func earliest(times []time.Time) (int, bool) {
	idx := -1
	for i, t := range times {
		if t.IsZero() {
			continue
		}
		if idx < 0 || t.Before(times[idx]) {
			idx = i
		}
	}
	return idx, idx >= 0
}

// fixedDelay is a cron.Schedule that fires a constant duration after the
// previous run finished. Unlike cron.Every it keeps sub-second precision.
type fixedDelay struct {
	delay time.Duration
}

// Every returns a fixed-delay schedule. Non-positive durations are treated
// as one second.
func Every(d time.Duration) cron.Schedule {
	if d <= 0 {
		d = time.Second
	}
	return fixedDelay{delay: d}
}

// Next implements cron.Schedule.
func (f fixedDelay) Next(t time.Time) time.Time {
	return t.Add(f.delay)
}
