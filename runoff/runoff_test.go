// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package runoff_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/runoff"
	"github.com/danielhkuo/gamenight/store"
	"github.com/danielhkuo/gamenight/testutil"
)

var ctx = context.Background()

// tiedRunoff opens a cycle where Azul and Brass tie on 2.5 and closes it
// into round one. Returns the cycle ID and the Azul, Brass, Catan IDs.
func tiedRunoff(t *testing.T, e *testutil.Engine, attending ...string) (int64, []int64) {
	t.Helper()
	e.AddParticipants(t, "alice", "bob", "carol")
	cycle := e.Open(t)
	ids := e.AddCandidates(t, "Azul", "Brass", "Catan")

	for _, id := range attending {
		e.Attend(t, id, true)
	}
	e.Vote(t, "alice", ids[0], ids[1], ids[2])
	e.Vote(t, "bob", ids[1], ids[0], ids[2])

	outcome, err := e.Manager.CloseCurrent(ctx)
	require.NoError(t, err)
	require.Equal(t, models.OK(), outcome)

	c := e.Cycle(t, cycle.ID)
	require.Equal(t, models.StatusRunoff, c.Status)
	require.Equal(t, 1, c.RunoffRound)
	return cycle.ID, ids
}

func lastResults(t *testing.T, e *testutil.Engine) models.Cycle {
	t.Helper()
	all := e.Sink.AllResults()
	require.NotEmpty(t, all)
	return all[len(all)-1].Cycle
}

func TestBeginArmsDeadline(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")

	runoffs := e.Sink.Runoffs()
	require.Len(t, runoffs, 1)
	assert.Equal(t, 1, runoffs[0].Round)
	assert.ElementsMatch(t, []string{"alice", "bob"}, runoffs[0].Participants)
	require.Len(t, runoffs[0].Candidates, 2)
	assert.ElementsMatch(t, []int64{ids[0], ids[1]},
		[]int64{runoffs[0].Candidates[0].ID, runoffs[0].Candidates[1].ID})

	job, ok := e.Scheduler.Armed(cycleID)
	require.True(t, ok)
	assert.Equal(t, runoff.JobID(cycleID, 1), job.ID)
	assert.True(t, job.RunAt.Equal(testutil.Start.Add(2*time.Hour)))

	e.Tx(t, func(tx *store.Tx) error {
		jobs, err := tx.Jobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, job.ID, jobs[0].ID)
		return nil
	})
}

func TestJobIDIsDeterministic(t *testing.T) {
	assert.Equal(t, runoff.JobID(4, 2), runoff.JobID(4, 2))
	assert.NotEqual(t, runoff.JobID(4, 2), runoff.JobID(4, 3))
	assert.NotEqual(t, runoff.JobID(4, 2), runoff.JobID(5, 2))
}

func TestEarlyCompletion(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")

	assert.Equal(t, models.OK(), e.Pick(t, "alice", ids[1]))
	assert.Equal(t, models.StatusRunoff, e.Cycle(t, cycleID).Status)

	// Changing a pick before the round closes is allowed
	assert.Equal(t, models.OK(), e.Pick(t, "alice", ids[0]))
	assert.Equal(t, models.OK(), e.Pick(t, "bob", ids[0]))

	c := e.Cycle(t, cycleID)
	assert.Equal(t, models.StatusPublished, c.Status)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[0], *c.WinnerID)

	results := e.Sink.AllResults()
	require.Len(t, results, 1)
	assert.Equal(t, models.NoteMajority, results[0].Note)
	assert.Equal(t, 1, results[0].RunoffRound)
	require.NotEmpty(t, results[0].Runoff)
	assert.Equal(t, 2, results[0].Runoff[0].Votes)

	_, armed := e.Scheduler.Armed(cycleID)
	assert.False(t, armed)
	assert.Equal(t, 0, e.Clock.Pending())

	late := e.Pick(t, "bob", ids[1])
	assert.Equal(t, "invalid_state", late.Kind)
}

func TestPickRejections(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())

	e.AddParticipants(t, "alice")
	noCycle := e.Pick(t, "alice", 1)
	assert.Equal(t, "no_current_cycle", noCycle.Reason)

	_, ids := tiedRunoff(t, e, "alice", "bob")

	tests := []struct {
		name        string
		participant string
		candidate   int64
		kind        string
		reason      string
	}{
		{"not in runoff set", "alice", ids[2], "not_found", "candidate_not_in_runoff"},
		{"not attending", "carol", ids[0], "unauthorized", "not_attending"},
		{"not authorized", "mallory", ids[0], "unauthorized", "not_authorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := e.Pick(t, tt.participant, tt.candidate)
			assert.Equal(t, models.OutcomeRejected, outcome.Status)
			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, tt.reason, outcome.Reason)
		})
	}
}

func TestPickOutsideRunoff(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice")
	e.Open(t)
	ids := e.AddCandidates(t, "Azul")
	e.Attend(t, "alice", true)

	outcome := e.Pick(t, "alice", ids[0])
	assert.Equal(t, "invalid_state", outcome.Kind)
	assert.Equal(t, "no_runoff", outcome.Reason)
}

func TestDeadlineWithoutPicks(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")

	e.Clock.Advance(2*time.Hour - time.Minute)
	assert.Equal(t, models.StatusRunoff, e.Cycle(t, cycleID).Status)

	e.Clock.Advance(time.Minute)

	c := e.Cycle(t, cycleID)
	assert.Equal(t, models.StatusPublished, c.Status)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[0], *c.WinnerID, "first alphabetically")

	results := e.Sink.AllResults()
	require.Len(t, results, 1)
	assert.Equal(t, models.NoteNoVotes, results[0].Note)

	e.Tx(t, func(tx *store.Tx) error {
		jobs, err := tx.Jobs(ctx)
		assert.Empty(t, jobs)
		return err
	})
}

func TestDeadlineCountsPartialPicks(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob", "carol")

	e.Pick(t, "carol", ids[1])
	e.Clock.Advance(2 * time.Hour)

	c := e.Cycle(t, cycleID)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[1], *c.WinnerID)
	assert.Equal(t, models.NoteMajority, e.Sink.AllResults()[0].Note)
}

func TestRepeatTiesHitRoundCap(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")

	for round := 1; round <= runoff.DefaultMaxRounds; round++ {
		require.Equal(t, round, e.Cycle(t, cycleID).RunoffRound)
		e.Pick(t, "alice", ids[1])
		e.Pick(t, "bob", ids[0])
	}

	c := e.Cycle(t, cycleID)
	assert.Equal(t, models.StatusPublished, c.Status)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[0], *c.WinnerID)

	runoffs := e.Sink.Runoffs()
	require.Len(t, runoffs, runoff.DefaultMaxRounds)
	for i, r := range runoffs {
		assert.Equal(t, i+1, r.Round)
		assert.ElementsMatch(t, []string{"alice", "bob"}, r.Participants)
	}

	results := e.Sink.AllResults()
	require.Len(t, results, 1)
	assert.Equal(t, models.NoteRoundCap, results[0].Note)
	assert.Equal(t, runoff.DefaultMaxRounds, results[0].RunoffRound)
}

func TestRepeatTieRearmsDeadline(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")

	e.Clock.Advance(30 * time.Minute)
	e.Pick(t, "alice", ids[1])
	e.Pick(t, "bob", ids[0])

	job, ok := e.Scheduler.Armed(cycleID)
	require.True(t, ok)
	assert.Equal(t, 2, job.Round)
	assert.Equal(t, runoff.JobID(cycleID, 2), job.ID)
	assert.True(t, job.RunAt.Equal(testutil.Start.Add(150*time.Minute)))

	// The round one deadline passing does not touch round two
	e.Clock.Advance(90 * time.Minute)
	c := e.Cycle(t, cycleID)
	assert.Equal(t, models.StatusRunoff, c.Status)
	assert.Equal(t, 2, c.RunoffRound)

	e.Clock.Advance(30 * time.Minute)
	assert.Equal(t, models.NoteNoVotes, e.Sink.AllResults()[0].Note)
}

func TestResolveIsIdempotent(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")

	wrongRound, err := e.Runoff.Resolve(ctx, cycleID, 2, false)
	require.NoError(t, err)
	assert.True(t, wrongRound.Stale)

	e.Pick(t, "alice", ids[0])

	first, err := e.Runoff.Resolve(ctx, cycleID, 1, false)
	require.NoError(t, err)
	assert.False(t, first.Stale)
	require.NotNil(t, first.Winner)
	assert.Equal(t, ids[0], first.Winner.ID)

	second, err := e.Runoff.Resolve(ctx, cycleID, 1, false)
	require.NoError(t, err)
	assert.True(t, second.Stale)
	assert.Nil(t, second.Winner)

	assert.Len(t, e.Sink.AllResults(), 1)
}

func TestConcurrentResolvesPublishOnce(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob")
	e.Pick(t, "alice", ids[0])

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
		errs  []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(forced bool) {
			defer wg.Done()
			res, err := e.Runoff.Resolve(ctx, cycleID, 1, forced)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if !res.Stale {
				fresh++
			}
		}(i%2 == 0)
	}

	// The deadline lands in the middle of the explicit resolves
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Clock.Advance(2 * time.Hour)
	}()
	wg.Wait()

	require.Empty(t, errs)
	assert.LessOrEqual(t, fresh, 1)

	c := e.Cycle(t, cycleID)
	assert.Equal(t, models.StatusPublished, c.Status)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[0], *c.WinnerID)

	results := e.Sink.AllResults()
	require.Len(t, results, 1)
	assert.Equal(t, models.NoteMajority, results[0].Note)
	assert.Zero(t, e.Clock.Pending())
}

func TestForcedResolution(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob", "carol")

	e.Pick(t, "alice", ids[1])
	e.Pick(t, "bob", ids[0])

	res, err := e.Runoff.Resolve(ctx, cycleID, 1, true)
	require.NoError(t, err)
	assert.Zero(t, res.NextRound)
	assert.Equal(t, models.NoteForced, res.Note)
	require.NotNil(t, res.Winner)
	assert.Equal(t, "Azul", res.Winner.Name)

	c := lastResults(t, e)
	assert.Equal(t, models.StatusPublished, c.Status)
	assert.Nil(t, c.RunoffDeadline)
}

func TestAttendanceChangeCompletesRound(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob", "carol")

	e.Pick(t, "alice", ids[1])
	e.Pick(t, "bob", ids[1])
	assert.Equal(t, models.StatusRunoff, e.Cycle(t, cycleID).Status)

	e.Attend(t, "carol", false)

	c := e.Cycle(t, cycleID)
	assert.Equal(t, models.StatusPublished, c.Status)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[1], *c.WinnerID)
}

func TestPicksFromDepartedParticipantsDoNotCount(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	cycleID, ids := tiedRunoff(t, e, "alice", "bob", "carol")

	e.Pick(t, "carol", ids[1])
	e.Attend(t, "carol", false)
	e.Pick(t, "alice", ids[0])

	// bob has not picked yet, so the round stays open
	assert.Equal(t, models.StatusRunoff, e.Cycle(t, cycleID).Status)

	e.Clock.Advance(2 * time.Hour)
	c := e.Cycle(t, cycleID)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[0], *c.WinnerID)
}

func TestWindowAndWeeklyDeadline(t *testing.T) {
	from := testutil.Start
	assert.Equal(t, from.Add(90*time.Minute), runoff.Window(90*time.Minute).Deadline(from))

	weekly := runoff.WeeklyDeadline{Day: time.Friday, Hour: 17, Loc: time.UTC}
	assert.True(t, weekly.Deadline(from).Equal(time.Date(2025, 6, 6, 17, 0, 0, 0, time.UTC)))
}
