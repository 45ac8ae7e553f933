// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/gamenight/db"
	"github.com/danielhkuo/gamenight/models"
)

// FindCandidate looks a candidate up by name, ignoring case.
func (t *Tx) FindCandidate(ctx context.Context, name string) (*models.Candidate, error) {
	var (
		c       models.Candidate
		addedBy sql.NullString
	)
	err := t.queryRow(ctx, `
		SELECT id, name, added_by, added_at FROM candidate
		WHERE LOWER(name) = LOWER(?)`, name).Scan(&c.ID, &c.Name, &addedBy, &c.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Reject(models.ErrNotFound, "candidate_not_found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate: %w", err)
	}
	c.AddedBy = addedBy.String
	return &c, nil
}

// GetOrCreateCandidate returns the candidate with this name, creating it
// when missing. created reports whether a row was inserted.
func (t *Tx) GetOrCreateCandidate(ctx context.Context, name, addedBy string, now time.Time) (*models.Candidate, bool, error) {
	c, err := t.FindCandidate(ctx, name)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	var id int64
	err = t.queryRow(ctx, `
		INSERT INTO candidate (name, added_by, added_at)
		VALUES (?, ?, ?)
		RETURNING id`, name, addedBy, now).Scan(&id)
	if db.IsUniqueViolation(err) {
		return nil, false, fmt.Errorf("candidate %q: %w", name, models.ErrConflict)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert candidate: %w", err)
	}

	return &models.Candidate{ID: id, Name: name, AddedBy: addedBy, AddedAt: now}, true, nil
}

// RenameCandidate changes a candidate's display name.
func (t *Tx) RenameCandidate(ctx context.Context, id int64, name string) error {
	_, err := t.exec(ctx, `UPDATE candidate SET name = ? WHERE id = ?`, name, id)
	if db.IsUniqueViolation(err) {
		return models.Reject(models.ErrConflict, "name_taken")
	}
	if err != nil {
		return fmt.Errorf("failed to rename candidate %d: %w", id, err)
	}
	return nil
}

// AddToBallot puts a candidate on a cycle's ballot. Returns false when it
// is already there.
func (t *Tx) AddToBallot(ctx context.Context, cycleID, candidateID int64, carryOver bool, nominatedBy *string, now time.Time) (bool, error) {
	res, err := t.exec(ctx, `
		INSERT INTO cycle_candidate (cycle_id, candidate_id, is_carry_over, nominated_by, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (cycle_id, candidate_id) DO NOTHING`,
		cycleID, candidateID, carryOver, nominatedBy, now)
	if err != nil {
		return false, fmt.Errorf("failed to add candidate to ballot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// RemoveFromBallot takes a candidate off a cycle's ballot together with
// any ballot entries for it. Affected ballots are renumbered so their
// scores stay a permutation of 1..K.
func (t *Tx) RemoveFromBallot(ctx context.Context, cycleID, candidateID int64) (bool, error) {
	affected, err := t.strings(ctx, `
		SELECT participant_id FROM ballot_entry
		WHERE cycle_id = ? AND candidate_id = ?`, cycleID, candidateID)
	if err != nil {
		return false, fmt.Errorf("failed to query affected ballots: %w", err)
	}

	if _, err := t.exec(ctx, `
		DELETE FROM ballot_entry WHERE cycle_id = ? AND candidate_id = ?`,
		cycleID, candidateID); err != nil {
		return false, fmt.Errorf("failed to delete ballot entries: %w", err)
	}

	res, err := t.exec(ctx, `
		DELETE FROM cycle_candidate WHERE cycle_id = ? AND candidate_id = ?`,
		cycleID, candidateID)
	if err != nil {
		return false, fmt.Errorf("failed to remove candidate from ballot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	for _, participantID := range affected {
		if err := t.renumberBallot(ctx, cycleID, participantID); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

// BallotCandidates lists a cycle's ballot in name order.
func (t *Tx) BallotCandidates(ctx context.Context, cycleID int64) ([]models.BallotCandidate, error) {
	rows, err := t.query(ctx, `
		SELECT c.id, c.name, c.added_by, c.added_at, cc.is_carry_over, cc.nominated_by
		FROM cycle_candidate cc
		JOIN candidate c ON c.id = cc.candidate_id
		WHERE cc.cycle_id = ?
		ORDER BY LOWER(c.name), c.id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballot candidates: %w", err)
	}
	defer rows.Close()

	var out []models.BallotCandidate
	for rows.Next() {
		var (
			bc          models.BallotCandidate
			addedBy     sql.NullString
			nominatedBy sql.NullString
		)
		if err := rows.Scan(&bc.ID, &bc.Name, &addedBy, &bc.AddedAt, &bc.IsCarryOver, &nominatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan ballot candidate: %w", err)
		}
		bc.AddedBy = addedBy.String
		bc.NominatedBy = stringPtr(nominatedBy)
		out = append(out, bc)
	}
	return out, rows.Err()
}

// CountBallotCandidates returns the size of a cycle's ballot.
func (t *Tx) CountBallotCandidates(ctx context.Context, cycleID int64) (int, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM cycle_candidate WHERE cycle_id = ?`, cycleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ballot candidates: %w", err)
	}
	return n, nil
}

// MergeCandidates rewrites every reference to from so it points at into,
// then deletes from. References that would duplicate one into already
// holds are dropped.
func (t *Tx) MergeCandidates(ctx context.Context, fromID, intoID int64) error {
	if fromID == intoID {
		return models.Reject(models.ErrInvalidInput, "same_candidate")
	}

	type ballotKey struct {
		cycleID       int64
		participantID string
	}
	rows, err := t.query(ctx, `
		SELECT cycle_id, participant_id FROM ballot_entry b
		WHERE candidate_id = ? AND EXISTS (
			SELECT 1 FROM ballot_entry o
			WHERE o.cycle_id = b.cycle_id AND o.participant_id = b.participant_id
			AND o.candidate_id = ?)`, fromID, intoID)
	if err != nil {
		return fmt.Errorf("failed to query overlapping ballots: %w", err)
	}
	var overlapping []ballotKey
	for rows.Next() {
		var k ballotKey
		if err := rows.Scan(&k.cycleID, &k.participantID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan ballot key: %w", err)
		}
		overlapping = append(overlapping, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate ballot keys: %w", err)
	}

	stmts := []string{
		`DELETE FROM ballot_entry WHERE candidate_id = ? AND EXISTS (
			SELECT 1 FROM ballot_entry o
			WHERE o.cycle_id = ballot_entry.cycle_id AND o.participant_id = ballot_entry.participant_id
			AND o.candidate_id = ?)`,
		`UPDATE ballot_entry SET candidate_id = ? WHERE candidate_id = ?`,

		`DELETE FROM cycle_candidate WHERE candidate_id = ? AND EXISTS (
			SELECT 1 FROM cycle_candidate o
			WHERE o.cycle_id = cycle_candidate.cycle_id AND o.candidate_id = ?)`,
		`UPDATE cycle_candidate SET candidate_id = ? WHERE candidate_id = ?`,

		`DELETE FROM runoff_candidate WHERE candidate_id = ? AND EXISTS (
			SELECT 1 FROM runoff_candidate o
			WHERE o.cycle_id = runoff_candidate.cycle_id AND o.candidate_id = ?)`,
		`UPDATE runoff_candidate SET candidate_id = ? WHERE candidate_id = ?`,

		`UPDATE runoff_pick SET candidate_id = ? WHERE candidate_id = ?`,

		`DELETE FROM nomination WHERE candidate_id = ? AND EXISTS (
			SELECT 1 FROM nomination o WHERE o.candidate_id = ?)`,
		`UPDATE nomination SET candidate_id = ? WHERE candidate_id = ?`,

		`UPDATE cycle SET winning_candidate_id = ? WHERE winning_candidate_id = ?`,
	}
	for _, stmt := range stmts {
		// Deletes bind (from, into); updates bind (into, from).
		args := []any{intoID, fromID}
		if stmt[:6] == "DELETE" {
			args = []any{fromID, intoID}
		}
		if _, err := t.exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to rewrite candidate references: %w", err)
		}
	}

	if _, err := t.exec(ctx, `DELETE FROM candidate WHERE id = ?`, fromID); err != nil {
		return fmt.Errorf("failed to delete merged candidate: %w", err)
	}

	for _, k := range overlapping {
		if err := t.renumberBallot(ctx, k.cycleID, k.participantID); err != nil {
			return err
		}
	}

	t.logger.Info("candidates merged", "from", fromID, "into", intoID, "ballots_renumbered", len(overlapping))
	return nil
}
