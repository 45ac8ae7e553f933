// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"strings"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/store"
)

func (m *Manager) requireAdmin(actor string) error {
	if !m.IsAdmin(actor) {
		return models.Reject(models.ErrUnauthorized, "not_admin")
	}
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.Reject(models.ErrInvalidInput, "name_required")
	}
	return name, nil
}

// AdminOpenCycle opens a cycle now instead of waiting for the schedule.
func (m *Manager) AdminOpenCycle(ctx context.Context, actor string) (models.Outcome, error) {
	if err := m.requireAdmin(actor); err != nil {
		return models.OutcomeFor(err)
	}
	return m.OpenCycle(ctx)
}

// AdminForceClose ends a cycle now. An open cycle is scored as on the
// schedule; a cycle in runoff is resolved without starting another round.
// cycleID 0 targets the current cycle.
func (m *Manager) AdminForceClose(ctx context.Context, actor string, cycleID int64) (models.Outcome, error) {
	if err := m.requireAdmin(actor); err != nil {
		return models.OutcomeFor(err)
	}

	var cycle *models.Cycle
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		var err error
		if cycleID == 0 {
			cycle, err = tx.CurrentCycle(ctx)
			if err == nil && cycle == nil {
				err = models.Reject(models.ErrInvalidState, "no_current_cycle")
			}
			return err
		}
		cycle, err = tx.LockCycle(ctx, cycleID)
		return err
	})
	if err != nil {
		return models.OutcomeFor(err)
	}

	m.logger.Info("force close requested", "actor", actor, "cycle_id", cycle.ID, "status", cycle.Status)
	switch cycle.Status {
	case models.StatusOpen:
		return m.close(ctx, cycle.ID)
	case models.StatusRunoff:
		res, err := m.runoff.Resolve(ctx, cycle.ID, cycle.RunoffRound, true)
		if err != nil {
			return models.OutcomeFor(err)
		}
		if res.Stale {
			return models.AlreadyDone("already_resolved"), nil
		}
		return models.OK(), nil
	default:
		return models.AlreadyDone("already_closed"), nil
	}
}

// AdminAddCandidate puts a candidate on the open ballot, creating it if
// needed.
func (m *Manager) AdminAddCandidate(ctx context.Context, actor, name string) (models.Outcome, error) {
	var outcome models.Outcome
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		name, err := cleanName(name)
		if err != nil {
			return err
		}
		cycle, err := requireCurrent(ctx, tx, 0)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusOpen {
			return models.Reject(models.ErrInvalidState, "voting_closed")
		}

		count, err := tx.CountBallotCandidates(ctx, cycle.ID)
		if err != nil {
			return err
		}
		if count >= m.cfg.MaxCandidates {
			return models.Reject(models.ErrCapacity, "ballot_full")
		}

		now := m.clock.Now()
		candidate, _, err := tx.GetOrCreateCandidate(ctx, name, actor, now)
		if err != nil {
			return err
		}
		added, err := tx.AddToBallot(ctx, cycle.ID, candidate.ID, false, nil, now)
		if err != nil {
			return err
		}
		if !added {
			outcome = models.AlreadyDone("already_on_ballot")
			return nil
		}
		outcome = models.OK()
		return nil
	})
	if err != nil {
		return models.OutcomeFor(err)
	}
	return outcome, nil
}

// AdminRemoveCandidate takes a candidate off the open ballot along with
// every ballot entry for it.
func (m *Manager) AdminRemoveCandidate(ctx context.Context, actor, name string) (models.Outcome, error) {
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		cycle, err := requireCurrent(ctx, tx, 0)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusOpen {
			return models.Reject(models.ErrInvalidState, "voting_closed")
		}
		candidate, err := tx.FindCandidate(ctx, name)
		if err != nil {
			return err
		}
		removed, err := tx.RemoveFromBallot(ctx, cycle.ID, candidate.ID)
		if err != nil {
			return err
		}
		if !removed {
			return models.Reject(models.ErrNotFound, "candidate_not_on_ballot")
		}
		return nil
	})
	return models.OutcomeFor(err)
}

// AdminMergeCandidates folds the candidate named from into into.
func (m *Manager) AdminMergeCandidates(ctx context.Context, actor, from, into string) (models.Outcome, error) {
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		source, err := tx.FindCandidate(ctx, from)
		if err != nil {
			return err
		}
		target, err := tx.FindCandidate(ctx, into)
		if err != nil {
			return err
		}
		return tx.MergeCandidates(ctx, source.ID, target.ID)
	})
	return models.OutcomeFor(err)
}

// AdminRenameCandidate changes a candidate's name.
func (m *Manager) AdminRenameCandidate(ctx context.Context, actor, from, to string) (models.Outcome, error) {
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		to, err := cleanName(to)
		if err != nil {
			return err
		}
		candidate, err := tx.FindCandidate(ctx, from)
		if err != nil {
			return err
		}
		if existing, err := tx.FindCandidate(ctx, to); err == nil && existing.ID != candidate.ID {
			return models.Reject(models.ErrConflict, "name_taken")
		}
		return tx.RenameCandidate(ctx, candidate.ID, to)
	})
	return models.OutcomeFor(err)
}

// AdminSeedCandidates adds several candidates to the open ballot as
// carry-overs, ignoring the capacity limit. Returns how many were new to
// the ballot.
func (m *Manager) AdminSeedCandidates(ctx context.Context, actor string, names []string) (models.Outcome, int, error) {
	added := 0
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		cycle, err := requireCurrent(ctx, tx, 0)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusOpen {
			return models.Reject(models.ErrInvalidState, "voting_closed")
		}

		now := m.clock.Now()
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			candidate, _, err := tx.GetOrCreateCandidate(ctx, name, actor, now)
			if err != nil {
				return err
			}
			ok, err := tx.AddToBallot(ctx, cycle.ID, candidate.ID, true, nil, now)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	outcome, err := models.OutcomeFor(err)
	if outcome.Status != models.OutcomeOK {
		added = 0
	}
	return outcome, added, err
}

// AdminAddParticipant allow-lists a participant.
func (m *Manager) AdminAddParticipant(ctx context.Context, actor, participantID, displayName string) (models.Outcome, error) {
	var outcome models.Outcome
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		participantID = strings.TrimSpace(participantID)
		if participantID == "" {
			return models.Reject(models.ErrInvalidInput, "participant_required")
		}
		added, err := tx.AddParticipant(ctx, models.Participant{
			ID:          participantID,
			DisplayName: displayName,
			AddedBy:     actor,
			AddedAt:     m.clock.Now(),
		})
		if err != nil {
			return err
		}
		outcome = models.OK()
		if !added {
			outcome = models.AlreadyDone("already_authorized")
		}
		return nil
	})
	if err != nil {
		return models.OutcomeFor(err)
	}
	return outcome, nil
}

// AdminRemoveParticipant drops a participant from the allow-list. Their
// existing ballots stay in place.
func (m *Manager) AdminRemoveParticipant(ctx context.Context, actor, participantID string) (models.Outcome, error) {
	err := m.store.Atomically(ctx, func(tx *store.Tx) error {
		if err := m.requireAdmin(actor); err != nil {
			return err
		}
		removed, err := tx.RemoveParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		if !removed {
			return models.Reject(models.ErrNotFound, "participant_not_found")
		}
		return nil
	})
	return models.OutcomeFor(err)
}

// AdminSendReminders sends the reminder batch on demand.
func (m *Manager) AdminSendReminders(ctx context.Context, actor string) (models.Outcome, models.ReminderReport, error) {
	if err := m.requireAdmin(actor); err != nil {
		outcome, err := models.OutcomeFor(err)
		return outcome, models.ReminderReport{}, err
	}
	report, err := m.SendReminders(ctx)
	if err != nil {
		return models.Outcome{}, report, err
	}
	if report.CycleID == 0 {
		return models.Rejected(&models.Rejection{Kind: models.ErrInvalidState, Reason: "voting_closed"}), report, nil
	}
	return models.OK(), report, nil
}
