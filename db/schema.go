// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, conn *sql.DB, d Dialect) error {
	for _, stmt := range d.schemaStatements() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// schemaStatements splits the schema into single statements with the
// dialect's key column type filled in. Comment lines are dropped first so
// punctuation inside them never splits a statement.
func (d Dialect) schemaStatements() []string {
	var lines []string
	for _, line := range strings.Split(schema, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			lines = append(lines, line)
		}
	}
	full := strings.ReplaceAll(strings.Join(lines, "\n"), "{{serial}}", d.serialKey())

	var stmts []string
	for _, stmt := range strings.Split(full, ";") {
		if strings.TrimSpace(stmt) != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

const schema = `
-- Allow-listed participants
CREATE TABLE IF NOT EXISTS participant (
    participant_id TEXT PRIMARY KEY,
    display_name TEXT,
    added_by TEXT NOT NULL,
    added_at TIMESTAMP NOT NULL
);

-- Candidates (name unique regardless of case)
CREATE TABLE IF NOT EXISTS candidate (
    id {{serial}},
    name TEXT NOT NULL,
    added_by TEXT,
    added_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_candidate_name ON candidate(LOWER(name));

-- Cycles: current_slot is 1 exactly while open or in runoff
CREATE TABLE IF NOT EXISTS cycle (
    id {{serial}},
    status TEXT NOT NULL CHECK (status IN ('open', 'runoff', 'closed', 'published')),
    opened_at TIMESTAMP NOT NULL,
    closed_at TIMESTAMP,
    published_at TIMESTAMP,
    winning_candidate_id BIGINT REFERENCES candidate(id),
    announcement_ref TEXT,
    runoff_round INTEGER NOT NULL DEFAULT 0,
    runoff_deadline TIMESTAMP,
    current_slot INTEGER UNIQUE CHECK (current_slot = 1),
    CHECK ((status IN ('open', 'runoff')) = (current_slot IS NOT NULL)),
    CHECK ((status = 'published') = (winning_candidate_id IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_cycle_status ON cycle(status);

-- Ballot membership
CREATE TABLE IF NOT EXISTS cycle_candidate (
    cycle_id BIGINT NOT NULL REFERENCES cycle(id),
    candidate_id BIGINT NOT NULL REFERENCES candidate(id),
    is_carry_over BOOLEAN NOT NULL DEFAULT FALSE,
    nominated_by TEXT,
    added_at TIMESTAMP NOT NULL,
    PRIMARY KEY (cycle_id, candidate_id)
);

-- Attendance (no row means unknown)
CREATE TABLE IF NOT EXISTS attendance (
    cycle_id BIGINT NOT NULL REFERENCES cycle(id),
    participant_id TEXT NOT NULL,
    attending BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (cycle_id, participant_id)
);

-- Ranked ballots
CREATE TABLE IF NOT EXISTS ballot_entry (
    cycle_id BIGINT NOT NULL REFERENCES cycle(id),
    participant_id TEXT NOT NULL,
    candidate_id BIGINT NOT NULL REFERENCES candidate(id),
    score INTEGER NOT NULL CHECK (score >= 1),
    voted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (cycle_id, participant_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_ballot_entry_candidate ON ballot_entry(candidate_id);

-- Frozen runoff set for the current round
CREATE TABLE IF NOT EXISTS runoff_candidate (
    cycle_id BIGINT NOT NULL REFERENCES cycle(id),
    candidate_id BIGINT NOT NULL REFERENCES candidate(id),
    PRIMARY KEY (cycle_id, candidate_id)
);

-- One runoff pick per participant per cycle
CREATE TABLE IF NOT EXISTS runoff_pick (
    cycle_id BIGINT NOT NULL REFERENCES cycle(id),
    participant_id TEXT NOT NULL,
    candidate_id BIGINT NOT NULL REFERENCES candidate(id),
    voted_at TIMESTAMP NOT NULL,
    PRIMARY KEY (cycle_id, participant_id)
);

-- Nominations waiting for the next cycle
CREATE TABLE IF NOT EXISTS nomination (
    id {{serial}},
    candidate_id BIGINT NOT NULL UNIQUE REFERENCES candidate(id),
    nominated_by TEXT NOT NULL,
    nominated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nomination_nominated_by ON nomination(nominated_by);

-- Pending one-shot jobs
CREATE TABLE IF NOT EXISTS scheduled_job (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    cycle_id BIGINT NOT NULL REFERENCES cycle(id),
    round INTEGER NOT NULL,
    run_at TIMESTAMP NOT NULL
);
`
