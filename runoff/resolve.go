// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package runoff

import (
	"context"
	"fmt"
	"sort"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/notify"
	"github.com/danielhkuo/gamenight/store"
	"github.com/danielhkuo/gamenight/tally"
)

// Resolution is what happened when a round was resolved.
type Resolution struct {
	CycleID int64
	Round   int
	// Stale is set when the round had already been resolved or advanced.
	Stale bool
	// NextRound is set when a repeat tie opened another round.
	NextRound int
	Winner    *models.Candidate
	Note      string
	Tally     []models.RunoffTally
}

// Resolve settles runoff round of cycleID. It is the single entry point for
// deadline, early completion and forced resolution, and is a no-op when
// the cycle is no longer in that round. forced skips opening another round
// on a repeat tie.
func (c *Coordinator) Resolve(ctx context.Context, cycleID int64, round int, forced bool) (*Resolution, error) {
	res := &Resolution{CycleID: cycleID, Round: round}
	var (
		started *Started
		final   notify.Results
	)

	err := c.store.Atomically(ctx, func(tx *store.Tx) error {
		cycle, err := tx.LockCycle(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != models.StatusRunoff || cycle.RunoffRound != round {
			res.Stale = true
			return nil
		}

		candidates, err := tx.RunoffCandidates(ctx, cycleID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return fmt.Errorf("cycle %d round %d has no runoff candidates: %w", cycleID, round, models.ErrInvalidState)
		}
		picks, err := tx.AttendingRunoffPicks(ctx, cycleID)
		if err != nil {
			return err
		}
		res.Tally = countPicks(candidates, picks)

		var (
			winner models.Candidate
			note   string
		)
		leaders := topCandidates(candidates, res.Tally)
		switch {
		case len(picks) == 0:
			winner, _ = tally.FirstAlphabetically(candidates)
			note = models.NoteNoVotes
		case len(leaders) == 1:
			winner = leaders[0]
			note = models.NoteMajority
		case round < c.maxRounds && !forced:
			ids := make([]int64, 0, len(leaders))
			for _, l := range leaders {
				ids = append(ids, l.ID)
			}
			started, err = c.Begin(ctx, tx, cycle, ids)
			if err != nil {
				return err
			}
			res.NextRound = started.Round
			return nil
		default:
			winner, _ = tally.FirstAlphabetically(leaders)
			note = models.NoteRoundCap
			if forced {
				note = models.NoteForced
			}
		}

		now := c.clock.Now()
		if err := tx.CloseCycle(ctx, cycleID, now); err != nil {
			return err
		}
		if err := tx.PublishCycle(ctx, cycleID, winner.ID, now); err != nil {
			return err
		}
		if err := tx.DeleteJobsForCycle(ctx, cycleID); err != nil {
			return err
		}

		ranking, err := tally.Score(ctx, tx, cycleID)
		if err != nil {
			return err
		}

		res.Winner = &winner
		res.Note = note

		closed := *cycle
		closed.Status = models.StatusPublished
		closed.ClosedAt = &now
		closed.PublishedAt = &now
		closed.WinnerID = &winner.ID
		closed.RunoffDeadline = nil
		final = notify.Results{
			Cycle:       closed,
			Ranking:     ranking,
			Winner:      &winner,
			Note:        note,
			RunoffRound: round,
			Runoff:      res.Tally,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case res.Stale:
		c.logger.Debug("stale runoff resolution ignored", "cycle_id", cycleID, "round", round)
	case started != nil:
		c.Announce(ctx, started)
	default:
		if c.scheduler != nil {
			c.scheduler.CancelRunoff(cycleID)
		}
		c.logger.Info("runoff resolved",
			"cycle_id", cycleID,
			"round", round,
			"winner", res.Winner.Name,
			"note", res.Note,
		)
		c.events.Results(ctx, final)
	}
	return res, nil
}

// countPicks tallies picks per candidate in the set, most votes first.
func countPicks(candidates []models.Candidate, picks []models.RunoffPick) []models.RunoffTally {
	votes := make(map[int64]int, len(candidates))
	for _, p := range picks {
		votes[p.CandidateID]++
	}
	out := make([]models.RunoffTally, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, models.RunoffTally{CandidateID: c.ID, Name: c.Name, Votes: votes[c.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Votes > out[j].Votes })
	return out
}

// topCandidates returns the candidates sharing the highest vote count.
func topCandidates(candidates []models.Candidate, counts []models.RunoffTally) []models.Candidate {
	if len(counts) == 0 {
		return nil
	}
	top := counts[0].Votes
	byID := make(map[int64]models.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	var out []models.Candidate
	for _, t := range counts {
		if t.Votes == top {
			out = append(out, byID[t.CandidateID])
		}
	}
	return out
}

// ResolveJob resolves the round named by a fired deadline job.
func (c *Coordinator) ResolveJob(ctx context.Context, job models.Job) error {
	_, err := c.Resolve(ctx, job.CycleID, job.Round, false)
	return err
}
