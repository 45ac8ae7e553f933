// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Dialects

Both SQLite (modernc.org/sqlite, no cgo) and PostgreSQL (lib/pq) are
supported:

	conn, dialect, err := db.Open(ctx, db.SQLite, "gamenight.db")

Queries are written with ? placeholders; Dialect.Rebind turns them into
$1, $2... for Postgres. Dialect.LockClause adds FOR UPDATE where the engine
supports row locks. SQLite connections are limited to one so transactions
serialize.

# Schema Creation

	if err := db.CreateSchema(ctx, conn, dialect); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - participant: Allow-list
  - candidate: Names, unique regardless of case
  - cycle: One row per week, with status and runoff state
  - cycle_candidate: Ballot membership
  - attendance: Last answer per participant per cycle
  - ballot_entry: Ranked scores, K..1
  - runoff_candidate: Frozen set for the current round
  - runoff_pick: One pick per participant
  - nomination: Pool for the next cycle
  - scheduled_job: Pending runoff deadlines

# Relationships

	cycle 1──* cycle_candidate *──1 candidate
	cycle 1──* attendance
	cycle 1──* ballot_entry *──1 candidate
	cycle 1──* runoff_candidate
	cycle 1──* runoff_pick
	cycle 1──* scheduled_job
	nomination 1──1 candidate

At most one cycle is open or in runoff; a unique current_slot column
enforces it.
*/
package db
