// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package runoff

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/notify"
	"github.com/danielhkuo/gamenight/store"
)

// DefaultMaxRounds caps how many runoff rounds a cycle may go through
// before ties are broken alphabetically.
const DefaultMaxRounds = 3

// DeadlineScheduler arms and cancels the one-shot resolution timers.
type DeadlineScheduler interface {
	ArmRunoff(job models.Job)
	CancelRunoff(cycleID int64)
}

// DeadlinePolicy computes when a runoff round opened at from must close.
type DeadlinePolicy interface {
	Deadline(from time.Time) time.Time
}

// Window closes a round a fixed duration after it opens.
type Window time.Duration

func (w Window) Deadline(from time.Time) time.Time {
	return from.Add(time.Duration(w))
}

// WeeklyDeadline closes a round at the next weekly day and time.
type WeeklyDeadline clock.Weekly

func (w WeeklyDeadline) Deadline(from time.Time) time.Time {
	return clock.Weekly(w).Next(from)
}

var jobNamespace = uuid.MustParse("6b0f5c3e-8d7a-4f8e-9b61-2f3c1d4e5a70")

// JobID is the deterministic ID of the resolution job for a round.
func JobID(cycleID int64, round int) string {
	return uuid.NewSHA1(jobNamespace, fmt.Appendf(nil, "%s/%d/%d", models.JobResolveRunoff, cycleID, round)).String()
}

// Coordinator drives tie-break rounds for the current cycle.
type Coordinator struct {
	store     *store.Store
	events    *notify.Dispatcher
	scheduler DeadlineScheduler
	policy    DeadlinePolicy
	clock     clock.Clock
	maxRounds int
	logger    *slog.Logger
}

func New(st *store.Store, events *notify.Dispatcher, policy DeadlinePolicy, clk clock.Clock, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:     st,
		events:    events,
		policy:    policy,
		clock:     clk,
		maxRounds: DefaultMaxRounds,
		logger:    logger.With("module", "runoff"),
	}
}

// SetScheduler attaches the deadline scheduler. The scheduler depends on
// the coordinator to resolve rounds, so it is wired after construction.
func (c *Coordinator) SetScheduler(s DeadlineScheduler) {
	c.scheduler = s
}

// Policy returns the deadline policy used for new rounds.
func (c *Coordinator) Policy() DeadlinePolicy {
	return c.policy
}

// Started describes a round opened inside a transaction. Announce it after
// the transaction commits.
type Started struct {
	Cycle        models.Cycle
	Round        int
	Candidates   []models.Candidate
	Deadline     time.Time
	Participants []string
	Job          models.Job
}

// Begin opens the next runoff round over tied. It freezes the set, clears
// earlier picks and persists the deadline job, all within tx.
func (c *Coordinator) Begin(ctx context.Context, tx *store.Tx, cycle *models.Cycle, tied []int64) (*Started, error) {
	deadline := c.policy.Deadline(c.clock.Now())

	round, err := tx.EnterRunoff(ctx, cycle.ID, deadline)
	if err != nil {
		return nil, err
	}
	if err := tx.SetRunoffCandidates(ctx, cycle.ID, tied); err != nil {
		return nil, err
	}
	if err := tx.ClearRunoffPicks(ctx, cycle.ID); err != nil {
		return nil, err
	}

	job := models.Job{
		ID:      JobID(cycle.ID, round),
		Kind:    models.JobResolveRunoff,
		CycleID: cycle.ID,
		Round:   round,
		RunAt:   deadline,
	}
	if err := tx.DeleteJobsForCycle(ctx, cycle.ID); err != nil {
		return nil, err
	}
	if err := tx.UpsertJob(ctx, job); err != nil {
		return nil, err
	}

	candidates, err := tx.RunoffCandidates(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	participants, err := tx.AttendingParticipants(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}

	updated := *cycle
	updated.Status = models.StatusRunoff
	updated.RunoffRound = round
	updated.RunoffDeadline = &deadline

	return &Started{
		Cycle:        updated,
		Round:        round,
		Candidates:   candidates,
		Deadline:     deadline,
		Participants: participants,
		Job:          job,
	}, nil
}

// Announce arms the deadline and notifies participants. Call it only after
// the transaction that produced s has committed.
func (c *Coordinator) Announce(ctx context.Context, s *Started) {
	if c.scheduler == nil {
		c.logger.Error("runoff deadline not armed: no scheduler configured",
			"cycle_id", s.Cycle.ID, "round", s.Round, "deadline", s.Deadline)
	} else {
		c.scheduler.ArmRunoff(s.Job)
	}

	c.logger.Info("runoff round opened",
		"cycle_id", s.Cycle.ID,
		"round", s.Round,
		"candidates", len(s.Candidates),
		"deadline", s.Deadline,
	)

	c.events.RunoffStarted(ctx, notify.RunoffStarted{
		Cycle:        s.Cycle,
		Round:        s.Round,
		Candidates:   s.Candidates,
		Deadline:     s.Deadline,
		Participants: s.Participants,
	})
}

// SubmitPick records a participant's runoff pick for the current round.
// When every attending participant has picked, the round resolves
// immediately.
func (c *Coordinator) SubmitPick(ctx context.Context, participantID string, candidateID int64) (models.Outcome, error) {
	var (
		cycleID  int64
		round    int
		complete bool
	)
	err := c.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.CurrentCycle(ctx)
		if err != nil {
			return err
		}
		if cycle == nil {
			return models.Reject(models.ErrInvalidState, "no_current_cycle")
		}
		if cycle.Status != models.StatusRunoff {
			return models.Reject(models.ErrInvalidState, "no_runoff")
		}

		ok, err := tx.IsAuthorized(ctx, participantID)
		if err != nil {
			return err
		}
		if !ok {
			return models.Reject(models.ErrUnauthorized, "not_authorized")
		}

		attending, err := tx.Attendance(ctx, cycle.ID, participantID)
		if err != nil {
			return err
		}
		if attending == nil || !*attending {
			return models.Reject(models.ErrUnauthorized, "not_attending")
		}

		candidates, err := tx.RunoffCandidates(ctx, cycle.ID)
		if err != nil {
			return err
		}
		inSet := slices.ContainsFunc(candidates, func(c models.Candidate) bool { return c.ID == candidateID })
		if !inSet {
			return models.Reject(models.ErrNotFound, "candidate_not_in_runoff")
		}

		if err := tx.SaveRunoffPick(ctx, cycle.ID, participantID, candidateID, c.clock.Now()); err != nil {
			return err
		}

		complete, err = allPicked(ctx, tx, cycle.ID)
		if err != nil {
			return err
		}
		cycleID, round = cycle.ID, cycle.RunoffRound
		return nil
	})
	if err != nil {
		return models.OutcomeFor(err)
	}

	if complete {
		c.logger.Info("all attending participants picked, resolving early", "cycle_id", cycleID, "round", round)
		if _, err := c.Resolve(ctx, cycleID, round, false); err != nil {
			// The pick itself is committed; the deadline job still covers
			// resolution.
			c.logger.Error("early runoff resolution failed", "cycle_id", cycleID, "round", round, "error", err)
		}
	}
	return models.OK(), nil
}

// ResolveIfComplete resolves the current round when every attending
// participant has a pick. Called after attendance changes mid-runoff.
func (c *Coordinator) ResolveIfComplete(ctx context.Context, cycleID int64) error {
	var (
		round    int
		complete bool
	)
	err := c.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.LockCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusRunoff {
			return nil
		}
		round = cycle.RunoffRound
		complete, err = allPicked(ctx, tx, cycleID)
		return err
	})
	if err != nil || !complete {
		return err
	}
	_, err = c.Resolve(ctx, cycleID, round, false)
	return err
}

func allPicked(ctx context.Context, tx *store.Tx, cycleID int64) (bool, error) {
	attending, err := tx.AttendingParticipants(ctx, cycleID)
	if err != nil {
		return false, err
	}
	if len(attending) == 0 {
		return false, nil
	}
	picks, err := tx.AttendingRunoffPicks(ctx, cycleID)
	if err != nil {
		return false, err
	}
	return len(picks) >= len(attending), nil
}
