// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/runoff"
	"github.com/danielhkuo/gamenight/store"
)

// Lifecycle is the set of scheduled transitions.
type Lifecycle interface {
	OpenCycle(ctx context.Context) (models.Outcome, error)
	CloseCurrent(ctx context.Context) (models.Outcome, error)
	SendReminders(ctx context.Context) (models.ReminderReport, error)
}

// Resolver settles runoff rounds when their deadline job fires.
type Resolver interface {
	ResolveJob(ctx context.Context, job models.Job) error
	Policy() runoff.DeadlinePolicy
}

// Config holds the weekly trigger times.
type Config struct {
	Open     clock.Weekly
	Close    clock.Weekly
	Reminder clock.Weekly
}

// Trigger names
const (
	TriggerOpen     = "open"
	TriggerClose    = "close"
	TriggerReminder = "reminder"
)

// Scheduler owns every time based transition: the weekly open, close and
// reminder triggers and the one-shot runoff deadline jobs. Timers are
// deferred callbacks on the clock; no goroutine sleeps waiting for them.
type Scheduler struct {
	store     *store.Store
	lifecycle Lifecycle
	resolver  Resolver
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  bool
	triggers map[string]clock.Timer
	runoffs  map[int64]armedJob
}

type armedJob struct {
	job   models.Job
	timer clock.Timer
}

func New(st *store.Store, lc Lifecycle, resolver Resolver, clk clock.Clock, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:     st,
		lifecycle: lc,
		resolver:  resolver,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With("module", "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
		triggers:  make(map[string]clock.Timer),
		runoffs:   make(map[int64]armedJob),
	}
}

// Start arms the weekly triggers and re-arms any persisted runoff job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.armWeekly(TriggerOpen, s.cfg.Open, func(ctx context.Context) error {
		_, err := s.lifecycle.OpenCycle(ctx)
		return err
	})
	s.armWeekly(TriggerClose, s.cfg.Close, func(ctx context.Context) error {
		_, err := s.lifecycle.CloseCurrent(ctx)
		return err
	})
	s.armWeekly(TriggerReminder, s.cfg.Reminder, func(ctx context.Context) error {
		_, err := s.lifecycle.SendReminders(ctx)
		return err
	})

	return s.Recover(ctx)
}

// Stop cancels every pending timer. Handlers already running finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for name, t := range s.triggers {
		t.Stop()
		delete(s.triggers, name)
	}
	for id, a := range s.runoffs {
		a.timer.Stop()
		delete(s.runoffs, id)
	}
	s.cancel()
}

// Recover rebuilds the runoff deadline timer from persisted state. Job
// rows that no longer match the current round are dropped. If the current
// cycle is in runoff without a job, one is recreated from the stored
// deadline, or from the deadline policy when none was stored.
func (s *Scheduler) Recover(ctx context.Context) error {
	var live []models.Job
	err := s.store.Atomically(ctx, func(tx *store.Tx) error {
		jobs, err := tx.Jobs(ctx)
		if err != nil {
			return err
		}
		current, err := tx.CurrentCycle(ctx)
		if err != nil {
			return err
		}

		var want string
		if current != nil && current.Status == models.StatusRunoff {
			want = runoff.JobID(current.ID, current.RunoffRound)
		}

		found := false
		for _, j := range jobs {
			if j.ID == want {
				found = true
				live = append(live, j)
				continue
			}
			s.logger.Info("dropping stale job", "job_id", j.ID, "cycle_id", j.CycleID, "round", j.Round)
			if err := tx.DeleteJob(ctx, j.ID); err != nil {
				return err
			}
		}

		if want == "" || found {
			return nil
		}

		deadline := s.resolver.Policy().Deadline(s.clock.Now())
		if current.RunoffDeadline != nil {
			deadline = *current.RunoffDeadline
		}
		job := models.Job{
			ID:      want,
			Kind:    models.JobResolveRunoff,
			CycleID: current.ID,
			Round:   current.RunoffRound,
			RunAt:   deadline,
		}
		if err := tx.UpsertJob(ctx, job); err != nil {
			return err
		}
		s.logger.Warn("recreated missing runoff job", "cycle_id", job.CycleID, "round", job.Round, "run_at", job.RunAt)
		live = append(live, job)
		return nil
	})
	if err != nil {
		return err
	}

	for _, j := range live {
		s.ArmRunoff(j)
	}
	return nil
}

// ArmRunoff schedules the resolution job, replacing any earlier job for the
// same cycle. A job already past due fires immediately.
func (s *Scheduler) ArmRunoff(job models.Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if prev, ok := s.runoffs[job.CycleID]; ok {
		prev.timer.Stop()
		delete(s.runoffs, job.CycleID)
	}
	s.mu.Unlock()

	delay := job.RunAt.Sub(s.clock.Now())
	s.logger.Info("runoff deadline armed",
		"cycle_id", job.CycleID,
		"round", job.Round,
		"run_at", job.RunAt,
		"in", humanize.RelTime(s.clock.Now(), job.RunAt, "ago", "from now"),
	)

	// AfterFunc may run the callback synchronously for past-due jobs, so
	// it is called without holding mu.
	timer := s.clock.AfterFunc(delay, func() { s.fireRunoff(job) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		timer.Stop()
		return
	}
	// A concurrent arm for the same cycle may have stored its timer while
	// mu was released; the latest call wins.
	if prev, ok := s.runoffs[job.CycleID]; ok {
		prev.timer.Stop()
		delete(s.runoffs, job.CycleID)
	}
	if delay > 0 {
		s.runoffs[job.CycleID] = armedJob{job: job, timer: timer}
	}
}

// CancelRunoff stops the pending resolution timer for a cycle.
func (s *Scheduler) CancelRunoff(cycleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.runoffs[cycleID]; ok {
		a.timer.Stop()
		delete(s.runoffs, cycleID)
	}
}

// Armed returns the runoff job currently armed for a cycle.
func (s *Scheduler) Armed(cycleID int64) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.runoffs[cycleID]
	return a.job, ok
}

func (s *Scheduler) fireRunoff(job models.Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if a, ok := s.runoffs[job.CycleID]; ok && a.job.ID == job.ID {
		delete(s.runoffs, job.CycleID)
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Info("runoff deadline reached", "cycle_id", job.CycleID, "round", job.Round)
	if err := s.resolver.ResolveJob(ctx, job); err != nil {
		s.logger.Error("runoff resolution failed", "cycle_id", job.CycleID, "round", job.Round, "error", err)
	}
}

// armWeekly schedules fn at the next occurrence of w and re-arms itself
// after each run.
func (s *Scheduler) armWeekly(name string, w clock.Weekly, fn func(context.Context) error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	now := s.clock.Now()
	next := w.Next(now)
	s.logger.Info("trigger armed", "trigger", name, "schedule", w.String(), "next", next, "in", humanize.RelTime(now, next, "ago", "from now"))

	timer := s.clock.AfterFunc(next.Sub(now), func() {
		s.runTrigger(name, fn)
		s.armWeekly(name, w, fn)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		timer.Stop()
		return
	}
	s.triggers[name] = timer
}

func (s *Scheduler) runTrigger(name string, fn func(context.Context) error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("trigger failed", "trigger", name, "error", err)
		return
	}
	s.logger.Info("trigger completed", "trigger", name, "duration_ms", time.Since(start).Milliseconds())
}
