// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/store"
	"github.com/danielhkuo/gamenight/tally"
)

// Status summarizes the current cycle. Returns nil when none is current.
func (m *Manager) Status(ctx context.Context) (*models.CycleStatus, error) {
	var status *models.CycleStatus
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.CurrentCycle(ctx)
		if err != nil || cycle == nil {
			return err
		}

		s := &models.CycleStatus{Cycle: *cycle}
		if s.Candidates, err = tx.BallotCandidates(ctx, cycle.ID); err != nil {
			return err
		}
		attendance, err := tx.AttendanceList(ctx, cycle.ID)
		if err != nil {
			return err
		}
		for _, a := range attendance {
			if a.Attending {
				s.Attending = append(s.Attending, a.ParticipantID)
			} else {
				s.NotAttending = append(s.NotAttending, a.ParticipantID)
			}
		}
		voters, err := tx.Voters(ctx, cycle.ID)
		if err != nil {
			return err
		}
		s.VoterCount = len(voters)
		if cycle.Status == models.StatusRunoff {
			if s.RunoffCandidates, err = tx.RunoffCandidates(ctx, cycle.ID); err != nil {
				return err
			}
		}
		status = s
		return nil
	})
	return status, err
}

// LatestResults returns the ranking of the most recently finished cycle,
// or nil when no cycle has finished yet.
func (m *Manager) LatestResults(ctx context.Context) (*models.CycleResults, error) {
	var results *models.CycleResults
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.LatestFinished(ctx)
		if err != nil || cycle == nil {
			return err
		}
		ranking, err := tally.Score(ctx, tx, cycle.ID)
		if err != nil {
			return err
		}
		r := &models.CycleResults{Cycle: *cycle, Ranking: ranking}
		if cycle.WinnerID != nil {
			for _, c := range ranking {
				if c.CandidateID == *cycle.WinnerID {
					r.Winner = &models.Candidate{ID: c.CandidateID, Name: c.Name}
				}
			}
		}
		results = r
		return nil
	})
	return results, err
}

// MyBallot returns a participant's ballot for the current cycle.
func (m *Manager) MyBallot(ctx context.Context, participantID string) ([]models.BallotEntry, error) {
	var entries []models.BallotEntry
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := requireCurrent(ctx, tx, 0)
		if err != nil {
			return err
		}
		entries, err = tx.Ballot(ctx, cycle.ID, participantID)
		return err
	})
	return entries, err
}

// Participants lists the allow-list.
func (m *Manager) Participants(ctx context.Context) ([]models.Participant, error) {
	var out []models.Participant
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Participants(ctx)
		return err
	})
	return out, err
}

// PendingNominations lists the nomination pool.
func (m *Manager) PendingNominations(ctx context.Context) ([]models.Nomination, error) {
	return m.pool.Pending(ctx)
}
