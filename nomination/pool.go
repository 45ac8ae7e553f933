// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package nomination

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/store"
)

// ReasonAlreadyPending is the soft outcome for a candidate already queued.
const ReasonAlreadyPending = "already_pending"

// Pool queues candidate suggestions between cycles. Each nominator may
// hold a limited number of outstanding entries; slots free up only when
// the pool is drained at the next cycle open.
type Pool struct {
	store  *store.Store
	clock  clock.Clock
	limit  int
	logger *slog.Logger
}

func New(st *store.Store, clk clock.Clock, perNominator int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if perNominator <= 0 {
		perNominator = 1
	}
	return &Pool{store: st, clock: clk, limit: perNominator, logger: logger.With("module", "nomination")}
}

// Nominate queues a candidate by name, creating the candidate if needed.
func (p *Pool) Nominate(ctx context.Context, participantID, name string) (models.Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Rejected(&models.Rejection{Kind: models.ErrInvalidInput, Reason: "name_required"}), nil
	}

	var outcome models.Outcome
	err := p.store.Atomically(ctx, func(tx *store.Tx) error {
		ok, err := tx.IsAuthorized(ctx, participantID)
		if err != nil {
			return err
		}
		if !ok {
			return models.Reject(models.ErrUnauthorized, "not_authorized")
		}

		// Check for an existing entry before the cap so a duplicate is
		// always the soft outcome.
		if existing, err := tx.FindCandidate(ctx, name); err == nil {
			queued, err := tx.NominationQueued(ctx, existing.ID)
			if err != nil {
				return err
			}
			if queued {
				outcome = models.AlreadyDone(ReasonAlreadyPending)
				return nil
			}
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		count, err := tx.CountNominationsBy(ctx, participantID)
		if err != nil {
			return err
		}
		if count >= p.limit {
			return models.Reject(models.ErrCapacity, "nominator_limit")
		}

		now := p.clock.Now()
		candidate, _, err := tx.GetOrCreateCandidate(ctx, name, participantID, now)
		if err != nil {
			return err
		}
		added, err := tx.AddNomination(ctx, candidate.ID, participantID, now)
		if err != nil {
			return err
		}
		if !added {
			outcome = models.AlreadyDone(ReasonAlreadyPending)
			return nil
		}

		p.logger.Info("nomination queued", "candidate", candidate.Name, "nominated_by", participantID)
		outcome = models.OK()
		return nil
	})
	if err != nil {
		return models.OutcomeFor(err)
	}
	return outcome, nil
}

// Pending lists the pool in FIFO order.
func (p *Pool) Pending(ctx context.Context) ([]models.Nomination, error) {
	var out []models.Nomination
	err := p.store.Atomically(ctx, func(tx *store.Tx) error {
		var err error
		out, err = tx.Nominations(ctx)
		return err
	})
	return out, err
}

// Absorb moves up to maxSlots queued candidates onto the cycle's ballot in
// submission order, skipping ones already present, then empties the pool.
// Entries that did not fit are dropped. Returns the number admitted.
func (p *Pool) Absorb(ctx context.Context, tx *store.Tx, cycleID int64, maxSlots int) (int, error) {
	pending, err := tx.Nominations(ctx)
	if err != nil {
		return 0, err
	}

	admitted := 0
	now := p.clock.Now()
	for _, n := range pending {
		if admitted >= maxSlots {
			break
		}
		nominator := n.NominatedBy
		added, err := tx.AddToBallot(ctx, cycleID, n.CandidateID, false, &nominator, now)
		if err != nil {
			return 0, err
		}
		if added {
			admitted++
		}
	}

	if err := tx.ClearNominations(ctx); err != nil {
		return 0, err
	}

	if dropped := len(pending) - admitted; dropped > 0 {
		p.logger.Info("nominations drained", "cycle_id", cycleID, "admitted", admitted, "dropped", dropped)
	}
	return admitted, nil
}
