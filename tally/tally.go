// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/store"
)

// Epsilon is the tolerance for treating two average scores as equal.
// Scores exactly Epsilon apart are NOT tied.
const Epsilon = 1e-4

// Tied reports whether two average scores are within Epsilon.
func Tied(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Score ranks the candidates of a cycle using only ballots from
// participants whose attendance is explicitly true. An empty result means
// nobody attending has voted.
func Score(ctx context.Context, tx *store.Tx, cycleID int64) ([]models.Result, error) {
	rows, err := tx.AttendingScoreRows(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	return Rank(rows), nil
}

// Rank averages ballot entries per candidate and sorts by average score,
// best first. Equal averages fall back to name order so output is stable.
func Rank(rows []models.ScoreRow) []models.Result {
	type acc struct {
		name  string
		sum   int
		count int
	}
	byID := make(map[int64]*acc)
	var order []int64
	for _, r := range rows {
		a, ok := byID[r.CandidateID]
		if !ok {
			a = &acc{name: r.Name}
			byID[r.CandidateID] = a
			order = append(order, r.CandidateID)
		}
		a.sum += r.Score
		a.count++
	}

	results := make([]models.Result, 0, len(order))
	for _, id := range order {
		a := byID[id]
		results = append(results, models.Result{
			CandidateID:  id,
			Name:         a.name,
			AverageScore: float64(a.sum) / float64(a.count),
			VoteCount:    a.count,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].AverageScore != results[j].AverageScore {
			return results[i].AverageScore > results[j].AverageScore
		}
		return alphaLess(results[i].Name, results[i].CandidateID, results[j].Name, results[j].CandidateID)
	})
	return results
}

// TiedLeaders returns every result tied with the top score. A length of
// two or more means the cycle needs a runoff over exactly that set.
func TiedLeaders(results []models.Result) []models.Result {
	if len(results) == 0 {
		return nil
	}
	top := results[0].AverageScore
	end := 1
	for end < len(results) && Tied(results[end].AverageScore, top) {
		end++
	}
	return results[:end]
}

// CarryOver returns the top n results, widened so that a tie group
// straddling the cutoff is kept whole.
func CarryOver(results []models.Result, n int) []models.Result {
	if n <= 0 || len(results) == 0 {
		return nil
	}
	boundary := min(n, len(results))
	cutoff := results[boundary-1].AverageScore
	for boundary < len(results) && Tied(results[boundary].AverageScore, cutoff) {
		boundary++
	}
	return results[:boundary]
}

// BuildBallot turns a full ranking, most preferred first, into scores
// K..1.
func BuildBallot(ranking []int64) ([]models.BallotScore, error) {
	seen := make(map[int64]bool, len(ranking))
	scores := make([]models.BallotScore, 0, len(ranking))
	for i, id := range ranking {
		if seen[id] {
			return nil, models.Reject(models.ErrInvalidInput, "duplicate_candidate")
		}
		seen[id] = true
		scores = append(scores, models.BallotScore{CandidateID: id, Score: len(ranking) - i})
	}
	return scores, nil
}

// FirstAlphabetically returns the candidate whose name sorts first,
// ignoring case. ok is false for an empty slice.
func FirstAlphabetically(candidates []models.Candidate) (models.Candidate, bool) {
	if len(candidates) == 0 {
		return models.Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if alphaLess(c.Name, c.ID, best.Name, best.ID) {
			best = c
		}
	}
	return best, true
}

func alphaLess(nameA string, idA int64, nameB string, idB int64) bool {
	la, lb := strings.ToLower(nameA), strings.ToLower(nameB)
	if la != lb {
		return la < lb
	}
	return idA < idB
}
