// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/nomination"
	"github.com/danielhkuo/gamenight/notify"
	"github.com/danielhkuo/gamenight/runoff"
	"github.com/danielhkuo/gamenight/store"
	"github.com/danielhkuo/gamenight/tally"
)

// Config holds the ballot limits and the admin allow-list.
type Config struct {
	MaxCandidates  int
	CarryOverCount int
	AdminIDs       []string
}

// Manager is the inbound surface of the cycle engine. Participant and admin
// actions return structured outcomes; scheduled transitions are exposed as
// plain methods for the scheduler.
type Manager struct {
	store  *store.Store
	pool   *nomination.Pool
	runoff *runoff.Coordinator
	events *notify.Dispatcher
	clock  clock.Clock
	cfg    Config
	logger *slog.Logger
}

func New(st *store.Store, pool *nomination.Pool, coord *runoff.Coordinator, events *notify.Dispatcher, clk clock.Clock, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  st,
		pool:   pool,
		runoff: coord,
		events: events,
		clock:  clk,
		cfg:    cfg,
		logger: logger.With("module", "lifecycle"),
	}
}

// Runoff exposes the coordinator for the scheduler.
func (m *Manager) Runoff() *runoff.Coordinator {
	return m.runoff
}

// IsAdmin reports whether participantID may run admin actions.
func (m *Manager) IsAdmin(participantID string) bool {
	return participantID != "" && slices.Contains(m.cfg.AdminIDs, participantID)
}

// OpenCycle creates the next cycle unless one is already current. The new
// ballot receives the top finishers of the last published cycle, then the
// nomination pool up to the ballot capacity.
func (m *Manager) OpenCycle(ctx context.Context) (models.Outcome, error) {
	var (
		opened     *models.Cycle
		candidates []models.BallotCandidate
	)
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		current, err := tx.CurrentCycle(ctx)
		if err != nil {
			return err
		}
		if current != nil {
			return nil
		}

		now := m.clock.Now()
		cycle, err := tx.CreateCycle(ctx, now)
		if err != nil {
			return err
		}

		carried := 0
		prev, err := tx.LatestPublished(ctx)
		if err != nil {
			return err
		}
		if prev != nil {
			results, err := tally.Score(ctx, tx, prev.ID)
			if err != nil {
				return err
			}
			for _, r := range tally.CarryOver(results, m.cfg.CarryOverCount) {
				added, err := tx.AddToBallot(ctx, cycle.ID, r.CandidateID, true, nil, now)
				if err != nil {
					return err
				}
				if added {
					carried++
				}
			}
		}

		count, err := tx.CountBallotCandidates(ctx, cycle.ID)
		if err != nil {
			return err
		}
		absorbed, err := m.pool.Absorb(ctx, tx, cycle.ID, max(0, m.cfg.MaxCandidates-count))
		if err != nil {
			return err
		}

		candidates, err = tx.BallotCandidates(ctx, cycle.ID)
		if err != nil {
			return err
		}
		opened = cycle
		m.logger.Info("cycle opened", "cycle_id", cycle.ID, "carried_over", carried, "nominations", absorbed)
		return nil
	})
	if errors.Is(err, models.ErrConflict) {
		// Lost a race with another opener.
		return models.AlreadyDone("cycle_already_open"), nil
	}
	if err != nil {
		return models.Outcome{}, err
	}
	if opened == nil {
		return models.AlreadyDone("cycle_already_open"), nil
	}

	ref := m.events.CycleOpened(ctx, notify.CycleOpened{Cycle: *opened, Candidates: candidates})
	if ref != "" {
		err := m.store.Atomically(ctx, func(tx *store.Tx) error {
			return tx.SetAnnouncementRef(ctx, opened.ID, ref)
		})
		if err != nil {
			m.logger.Error("failed to store announcement ref", "cycle_id", opened.ID, "error", err)
		}
	}
	return models.OK(), nil
}

// CloseCurrent runs the scheduled close. It does nothing when no cycle is
// current or the cycle is in a runoff, which closes on its own.
func (m *Manager) CloseCurrent(ctx context.Context) (models.Outcome, error) {
	var cycleID int64
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.CurrentCycle(ctx)
		if err != nil || cycle == nil {
			return err
		}
		if cycle.Status == models.StatusOpen {
			cycleID = cycle.ID
		}
		return nil
	})
	if err != nil {
		return models.Outcome{}, err
	}
	if cycleID == 0 {
		return models.AlreadyDone("nothing_to_close"), nil
	}
	return m.close(ctx, cycleID)
}

// close scores an open cycle and either publishes the winner, closes it
// empty, or hands a tie to the runoff coordinator.
func (m *Manager) close(ctx context.Context, cycleID int64) (models.Outcome, error) {
	var (
		started *runoff.Started
		final   *notify.Results
		skipped bool
	)
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.LockCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusOpen {
			skipped = true
			return nil
		}

		results, err := tally.Score(ctx, tx, cycleID)
		if err != nil {
			return err
		}

		now := m.clock.Now()
		closed := *cycle
		closed.ClosedAt = &now

		if len(results) == 0 {
			if err := tx.CloseCycle(ctx, cycleID, now); err != nil {
				return err
			}
			closed.Status = models.StatusClosed
			final = &notify.Results{Cycle: closed, Note: models.NoteNoBallots}
			return nil
		}

		if leaders := tally.TiedLeaders(results); len(leaders) > 1 {
			ids := make([]int64, 0, len(leaders))
			for _, l := range leaders {
				ids = append(ids, l.CandidateID)
			}
			started, err = m.runoff.Begin(ctx, tx, cycle, ids)
			return err
		}

		winner := results[0]
		if err := tx.CloseCycle(ctx, cycleID, now); err != nil {
			return err
		}
		if err := tx.PublishCycle(ctx, cycleID, winner.CandidateID, now); err != nil {
			return err
		}
		closed.Status = models.StatusPublished
		closed.PublishedAt = &now
		closed.WinnerID = &winner.CandidateID
		final = &notify.Results{
			Cycle:   closed,
			Ranking: results,
			Winner:  &models.Candidate{ID: winner.CandidateID, Name: winner.Name},
			Note:    models.NoteTallied,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			m.logger.Error("invalid cycle transition", "cycle_id", cycleID, "error", err)
		}
		return models.OutcomeFor(err)
	}

	switch {
	case skipped:
		return models.AlreadyDone("cycle_not_open"), nil
	case started != nil:
		m.runoff.Announce(ctx, started)
	default:
		m.logger.Info("cycle closed", "cycle_id", cycleID, "note", final.Note)
		m.events.Results(ctx, *final)
	}
	return models.OK(), nil
}

// SendReminders nudges attending participants who have not voted yet.
// Only runs while the current cycle is open.
func (m *Manager) SendReminders(ctx context.Context) (models.ReminderReport, error) {
	var (
		report  models.ReminderReport
		pending []string
	)
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.CurrentCycle(ctx)
		if err != nil || cycle == nil || cycle.Status != models.StatusOpen {
			return err
		}
		report.CycleID = cycle.ID

		attending, err := tx.AttendingParticipants(ctx, cycle.ID)
		if err != nil {
			return err
		}
		voters, err := tx.Voters(ctx, cycle.ID)
		if err != nil {
			return err
		}
		for _, id := range attending {
			if !slices.Contains(voters, id) {
				pending = append(pending, id)
			}
		}
		return nil
	})
	if err != nil || report.CycleID == 0 {
		return report, err
	}

	report.Sent, report.Failed = m.events.Reminders(ctx, report.CycleID, pending)
	m.logger.Info("reminders sent", "cycle_id", report.CycleID, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}
