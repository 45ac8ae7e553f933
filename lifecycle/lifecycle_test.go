// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/testutil"
)

var ctx = context.Background()

func TestOpenCycle(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())

	outcome, err := e.Manager.OpenCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OK(), outcome)

	cycle := e.Current(t)
	require.NotNil(t, cycle)
	assert.Equal(t, models.StatusOpen, cycle.Status)
	require.NotNil(t, cycle.AnnouncementRef)
	assert.Equal(t, "msg-1", *cycle.AnnouncementRef)

	again, err := e.Manager.OpenCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyDone("cycle_already_open"), again)
	assert.Len(t, e.Sink.Opened(), 1)
}

func TestOpenWithoutAnnouncementRef(t *testing.T) {
	cfg := testutil.DefaultEngineConfig()
	cfg.SinkRef = ""
	e := testutil.NewEngine(t, cfg)

	cycle := e.Open(t)
	assert.Nil(t, cycle.AnnouncementRef)
}

func TestOpenCarriesOverAndAbsorbsNominations(t *testing.T) {
	cfg := testutil.DefaultEngineConfig()
	cfg.Lifecycle.MaxCandidates = 3
	cfg.Lifecycle.CarryOverCount = 2
	e := testutil.NewEngine(t, cfg)
	e.AddParticipants(t, "alice", "bob", "carol")

	e.Open(t)
	ids := e.AddCandidates(t, "Azul", "Brass", "Catan")
	e.Attend(t, "alice", true)
	e.Vote(t, "alice", ids[0], ids[1], ids[2])
	_, err := e.Manager.CloseCurrent(ctx)
	require.NoError(t, err)

	for _, n := range []struct{ who, name string }{{"bob", "Everdell"}, {"carol", "Fresco"}} {
		outcome, err := e.Manager.Nominate(ctx, n.who, n.name)
		require.NoError(t, err)
		require.Equal(t, models.OK(), outcome)
	}

	e.Clock.Advance(7 * 24 * time.Hour)
	e.Open(t)

	status, err := e.Manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Candidates, 3)

	byName := make(map[string]models.BallotCandidate)
	for _, c := range status.Candidates {
		byName[c.Name] = c
	}
	assert.True(t, byName["Azul"].IsCarryOver)
	assert.True(t, byName["Brass"].IsCarryOver)
	require.Contains(t, byName, "Everdell")
	assert.False(t, byName["Everdell"].IsCarryOver)
	require.NotNil(t, byName["Everdell"].NominatedBy)
	assert.Equal(t, "bob", *byName["Everdell"].NominatedBy)
	assert.NotContains(t, byName, "Fresco")

	pending, err := e.Manager.PendingNominations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	opened := e.Sink.Opened()
	require.Len(t, opened, 2)
	assert.Len(t, opened[1].Candidates, 3)
}

func TestCloseWithoutBallots(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice")
	cycle := e.Open(t)
	ids := e.AddCandidates(t, "Azul", "Brass")

	// A ballot from someone not attending is kept but not counted
	e.Vote(t, "alice", ids[0], ids[1])

	outcome, err := e.Manager.CloseCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OK(), outcome)

	c := e.Cycle(t, cycle.ID)
	assert.Equal(t, models.StatusClosed, c.Status)
	assert.Nil(t, c.WinnerID)

	results := e.Sink.AllResults()
	require.Len(t, results, 1)
	assert.Equal(t, models.NoteNoBallots, results[0].Note)
	assert.Nil(t, results[0].Winner)

	latest, err := e.Manager.LatestResults(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, cycle.ID, latest.Cycle.ID)
	assert.Nil(t, latest.Winner)

	// Nothing carries over from a cycle without a winner
	next := e.Open(t)
	status, err := e.Manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.ID, status.Cycle.ID)
	assert.Empty(t, status.Candidates)
}

func TestClosePublishesWinner(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice", "bob")
	cycle := e.Open(t)
	ids := e.AddCandidates(t, "Azul", "Brass", "Catan")
	e.Attend(t, "alice", true)
	e.Attend(t, "bob", true)
	e.Vote(t, "alice", ids[2], ids[0], ids[1])
	e.Vote(t, "bob", ids[2], ids[1], ids[0])

	e.Clock.Advance(time.Hour)
	outcome, err := e.Manager.CloseCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.OK(), outcome)

	c := e.Cycle(t, cycle.ID)
	assert.Equal(t, models.StatusPublished, c.Status)
	require.NotNil(t, c.WinnerID)
	assert.Equal(t, ids[2], *c.WinnerID)
	require.NotNil(t, c.PublishedAt)
	assert.True(t, c.PublishedAt.Equal(testutil.Start.Add(time.Hour)))

	results := e.Sink.AllResults()
	require.Len(t, results, 1)
	assert.Equal(t, models.NoteTallied, results[0].Note)
	require.Len(t, results[0].Ranking, 3)
	assert.InDelta(t, 3.0, results[0].Ranking[0].AverageScore, 1e-9)

	latest, err := e.Manager.LatestResults(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest.Winner)
	assert.Equal(t, "Catan", latest.Winner.Name)

	again, err := e.Manager.CloseCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyDone("nothing_to_close"), again)
}

func TestCloseTieStartsRunoff(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice", "bob")
	cycle := e.Open(t)
	ids := e.AddCandidates(t, "Azul", "Brass")
	e.Attend(t, "alice", true)
	e.Attend(t, "bob", true)
	e.Vote(t, "alice", ids[0], ids[1])
	e.Vote(t, "bob", ids[1], ids[0])

	_, err := e.Manager.CloseCurrent(ctx)
	require.NoError(t, err)

	status, err := e.Manager.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.StatusRunoff, status.Cycle.Status)
	assert.Len(t, status.RunoffCandidates, 2)
	assert.Empty(t, e.Sink.AllResults())
	require.Len(t, e.Sink.Runoffs(), 1)

	// Ballots are frozen once the runoff starts
	outcome, err := e.Manager.SubmitBallot(ctx, cycle.ID, "alice", []int64{ids[1], ids[0]})
	require.NoError(t, err)
	assert.Equal(t, "voting_closed", outcome.Reason)
}

func TestSubmitBallotEmptyBallot(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice")
	e.Open(t)

	outcome, err := e.Manager.SubmitBallot(ctx, 0, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "invalid_state", outcome.Kind)
	assert.Equal(t, "ballot_empty", outcome.Reason)
}

func TestSendReminders(t *testing.T) {
	cfg := testutil.DefaultEngineConfig()
	cfg.FailRemindersTo = []string{"bob"}
	e := testutil.NewEngine(t, cfg)

	report, err := e.Manager.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.CycleID)

	e.AddParticipants(t, "alice", "bob", "carol", "dave")
	cycle := e.Open(t)
	ids := e.AddCandidates(t, "Azul")
	for _, id := range []string{"alice", "bob", "carol"} {
		e.Attend(t, id, true)
	}
	e.Attend(t, "dave", false)
	e.Vote(t, "alice", ids[0])

	report, err = e.Manager.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, cycle.ID, report.CycleID)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, int64(1), e.Events.Failures())

	reminders := e.Sink.Reminders()
	require.Len(t, reminders, 1)
	assert.Equal(t, "carol", reminders[0].ParticipantID)
}

func TestAdminForceClose(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice")

	denied, err := e.Manager.AdminForceClose(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, "not_admin", denied.Reason)

	none, err := e.Manager.AdminForceClose(ctx, testutil.AdminID, 0)
	require.NoError(t, err)
	assert.Equal(t, "no_current_cycle", none.Reason)

	cycle := e.Open(t)
	ids := e.AddCandidates(t, "Azul")
	e.Attend(t, "alice", true)
	e.Vote(t, "alice", ids[0])

	outcome, err := e.Manager.AdminForceClose(ctx, testutil.AdminID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.OK(), outcome)
	assert.Equal(t, models.StatusPublished, e.Cycle(t, cycle.ID).Status)

	again, err := e.Manager.AdminForceClose(ctx, testutil.AdminID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyDone("already_closed"), again)

	missing, err := e.Manager.AdminForceClose(ctx, testutil.AdminID, 999)
	require.NoError(t, err)
	assert.Equal(t, "not_found", missing.Kind)
}

func TestAdminAddCandidateCapacity(t *testing.T) {
	cfg := testutil.DefaultEngineConfig()
	cfg.Lifecycle.MaxCandidates = 2
	e := testutil.NewEngine(t, cfg)
	e.Open(t)

	for _, name := range []string{"Azul", "Brass"} {
		outcome, err := e.Manager.AdminAddCandidate(ctx, testutil.AdminID, name)
		require.NoError(t, err)
		require.Equal(t, models.OK(), outcome)
	}

	full, err := e.Manager.AdminAddCandidate(ctx, testutil.AdminID, "Catan")
	require.NoError(t, err)
	assert.Equal(t, "capacity", full.Kind)
	assert.Equal(t, "ballot_full", full.Reason)

	// Seeding ignores the cap
	outcome, added, err := e.Manager.AdminSeedCandidates(ctx, testutil.AdminID, []string{"Catan", "Dominion", "azul"})
	require.NoError(t, err)
	assert.Equal(t, models.OK(), outcome)
	assert.Equal(t, 2, added)

	status, err := e.Manager.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, status.Candidates, 4)
}

func TestAdminRemoveCandidateRenumbersBallots(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice")
	e.Open(t)
	ids := e.AddCandidates(t, "Azul", "Brass", "Catan")
	e.Vote(t, "alice", ids[0], ids[1], ids[2])

	outcome, err := e.Manager.AdminRemoveCandidate(ctx, testutil.AdminID, "brass")
	require.NoError(t, err)
	require.Equal(t, models.OK(), outcome)

	ballot, err := e.Manager.MyBallot(ctx, "alice")
	require.NoError(t, err)
	scores := make(map[string]int)
	for _, entry := range ballot {
		scores[entry.Name] = entry.Score
	}
	assert.Equal(t, map[string]int{"Azul": 2, "Catan": 1}, scores)
}

func TestAdminParticipants(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())

	outcome, err := e.Manager.AdminAddParticipant(ctx, testutil.AdminID, " carol ", "Carol")
	require.NoError(t, err)
	assert.Equal(t, models.OK(), outcome)

	list, err := e.Manager.Participants(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "carol", list[0].ID)
	assert.Equal(t, testutil.AdminID, list[0].AddedBy)

	denied, err := e.Manager.AdminAddParticipant(ctx, "carol", "dave", "")
	require.NoError(t, err)
	assert.Equal(t, "unauthorized", denied.Kind)

	removed, err := e.Manager.AdminRemoveParticipant(ctx, testutil.AdminID, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.OK(), removed)

	nominated, err := e.Manager.Nominate(ctx, "carol", "Azul")
	require.NoError(t, err)
	assert.Equal(t, "not_authorized", nominated.Reason)
}

func TestIsAdmin(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	assert.True(t, e.Manager.IsAdmin(testutil.AdminID))
	assert.False(t, e.Manager.IsAdmin("alice"))
	assert.False(t, e.Manager.IsAdmin(""))
}
