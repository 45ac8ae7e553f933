// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package nomination_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/nomination"
	"github.com/danielhkuo/gamenight/store"
	"github.com/danielhkuo/gamenight/testutil"
)

var ctx = context.Background()

func nominate(t *testing.T, p *nomination.Pool, participantID, name string) models.Outcome {
	t.Helper()
	outcome, err := p.Nominate(ctx, participantID, name)
	require.NoError(t, err)
	return outcome
}

func TestNominate(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice", "bob")

	assert.Equal(t, models.OK(), nominate(t, e.Pool, "alice", "  Azul "))

	dup := nominate(t, e.Pool, "bob", "AZUL")
	assert.Equal(t, models.OutcomeAlreadyDone, dup.Status)
	assert.Equal(t, nomination.ReasonAlreadyPending, dup.Reason)

	// A duplicate is soft even for a nominator at the cap
	dup = nominate(t, e.Pool, "alice", "azul")
	assert.Equal(t, models.OutcomeAlreadyDone, dup.Status)

	capped := nominate(t, e.Pool, "alice", "Brass")
	assert.Equal(t, models.OutcomeRejected, capped.Status)
	assert.Equal(t, "capacity", capped.Kind)
	assert.Equal(t, "nominator_limit", capped.Reason)

	pending, err := e.Pool.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Azul", pending[0].Name)
	assert.Equal(t, "alice", pending[0].NominatedBy)
}

func TestNominateRejections(t *testing.T) {
	e := testutil.NewEngine(t, testutil.DefaultEngineConfig())
	e.AddParticipants(t, "alice")

	blank := nominate(t, e.Pool, "alice", "   ")
	assert.Equal(t, "invalid_input", blank.Kind)
	assert.Equal(t, "name_required", blank.Reason)

	stranger := nominate(t, e.Pool, "mallory", "Azul")
	assert.Equal(t, "unauthorized", stranger.Kind)
	assert.Equal(t, "not_authorized", stranger.Reason)

	pending, err := e.Pool.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAbsorb(t *testing.T) {
	cfg := testutil.DefaultEngineConfig()
	cfg.PerNominator = 2
	e := testutil.NewEngine(t, cfg)
	e.AddParticipants(t, "alice", "bob", "carol")

	for _, n := range []struct{ who, name string }{
		{"alice", "Azul"},
		{"bob", "Brass"},
		{"carol", "Catan"},
		{"alice", "Dominion"},
		{"bob", "Everdell"},
	} {
		require.Equal(t, models.OK(), nominate(t, e.Pool, n.who, n.name))
	}

	cycle := e.Open(t)
	status, err := e.Manager.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Candidates, 5, "opening drains the pool onto the ballot")

	pending, err := e.Pool.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Brass is already on the ballot, so it does not use a slot
	for _, n := range []struct{ who, name string }{
		{"alice", "Brass"},
		{"bob", "Fresco"},
		{"carol", "Galaxy Trucker"},
		{"alice", "Hanabi"},
	} {
		require.Equal(t, models.OK(), nominate(t, e.Pool, n.who, n.name))
	}

	var admitted int
	e.Tx(t, func(tx *store.Tx) error {
		var err error
		admitted, err = e.Pool.Absorb(ctx, tx, cycle.ID, 2)
		return err
	})
	assert.Equal(t, 2, admitted)

	status, err = e.Manager.Status(ctx)
	require.NoError(t, err)
	var names []string
	for _, c := range status.Candidates {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "Fresco")
	assert.Contains(t, names, "Galaxy Trucker")
	assert.NotContains(t, names, "Hanabi")

	pending, err = e.Pool.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "entries that did not fit are dropped")

	// Slots free up once the pool drains
	assert.Equal(t, models.OK(), nominate(t, e.Pool, "alice", "Istanbul"))
}
