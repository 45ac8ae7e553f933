// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/store"
	"github.com/danielhkuo/gamenight/tally"
)

// requireCurrent loads the current cycle and checks it is the one the
// caller is acting on. cycleID 0 means "whatever is current".
func requireCurrent(ctx context.Context, tx *store.Tx, cycleID int64) (*models.Cycle, error) {
	cycle, err := tx.CurrentCycle(ctx)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, models.Reject(models.ErrInvalidState, "no_current_cycle")
	}
	if cycleID != 0 && cycle.ID != cycleID {
		return nil, models.Reject(models.ErrInvalidState, "cycle_not_current")
	}
	return cycle, nil
}

func requireAuthorized(ctx context.Context, tx *store.Tx, participantID string) error {
	ok, err := tx.IsAuthorized(ctx, participantID)
	if err != nil {
		return err
	}
	if !ok {
		return models.Reject(models.ErrUnauthorized, "not_authorized")
	}
	return nil
}

// SubmitBallot replaces a participant's ranking. The ranking must cover
// every candidate on the ballot exactly once, most preferred first.
func (m *Manager) SubmitBallot(ctx context.Context, cycleID int64, participantID string, ranking []int64) (models.Outcome, error) {
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := requireCurrent(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusOpen {
			return models.Reject(models.ErrInvalidState, "voting_closed")
		}
		if err := requireAuthorized(ctx, tx, participantID); err != nil {
			return err
		}

		candidates, err := tx.BallotCandidates(ctx, cycle.ID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return models.Reject(models.ErrInvalidState, "ballot_empty")
		}
		onBallot := make(map[int64]bool, len(candidates))
		for _, c := range candidates {
			onBallot[c.ID] = true
		}
		for _, id := range ranking {
			if !onBallot[id] {
				return models.Reject(models.ErrNotFound, "candidate_not_on_ballot")
			}
		}

		scores, err := tally.BuildBallot(ranking)
		if err != nil {
			return err
		}
		if len(scores) != len(candidates) {
			return models.Reject(models.ErrInvalidInput, "ranking_incomplete")
		}

		return tx.ReplaceBallot(ctx, cycle.ID, participantID, scores, m.clock.Now())
	})
	if err == nil {
		m.logger.Info("ballot submitted", "participant_id", participantID, "ranked", len(ranking))
	}
	return models.OutcomeFor(err)
}

// SubmitRunoffPick records a pick in the current runoff round.
func (m *Manager) SubmitRunoffPick(ctx context.Context, cycleID int64, participantID string, candidateID int64) (models.Outcome, error) {
	if cycleID != 0 {
		err := m.store.Atomically(ctx, func(tx *store.Tx) error {
			_, err := requireCurrent(ctx, tx, cycleID)
			return err
		})
		if err != nil {
			return models.OutcomeFor(err)
		}
	}
	return m.runoff.SubmitPick(ctx, participantID, candidateID)
}

// SetAttendance records whether a participant is coming. Allowed while the
// cycle is open or in runoff. During a runoff the change may complete the
// round.
func (m *Manager) SetAttendance(ctx context.Context, cycleID int64, participantID string, attending bool) (models.Outcome, error) {
	var inRunoff int64
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := requireCurrent(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if err := requireAuthorized(ctx, tx, participantID); err != nil {
			return err
		}
		if err := tx.SetAttendance(ctx, cycle.ID, participantID, attending, m.clock.Now()); err != nil {
			return err
		}
		if cycle.Status == models.StatusRunoff {
			inRunoff = cycle.ID
		}
		return nil
	})
	if err != nil {
		return models.OutcomeFor(err)
	}

	m.logger.Info("attendance updated", "participant_id", participantID, "attending", attending)
	if inRunoff != 0 {
		if err := m.runoff.ResolveIfComplete(ctx, inRunoff); err != nil {
			m.logger.Error("runoff completion check failed", "cycle_id", inRunoff, "error", err)
		}
	}
	return models.OK(), nil
}

// Nominate queues a candidate for the next cycle.
func (m *Manager) Nominate(ctx context.Context, participantID, name string) (models.Outcome, error) {
	return m.pool.Nominate(ctx, participantID, name)
}
