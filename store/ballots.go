// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/gamenight/models"
)

// SetAttendance records a participant's attendance. Last write wins.
func (t *Tx) SetAttendance(ctx context.Context, cycleID int64, participantID string, attending bool, now time.Time) error {
	_, err := t.exec(ctx, `
		INSERT INTO attendance (cycle_id, participant_id, attending, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cycle_id, participant_id)
		DO UPDATE SET attending = excluded.attending, updated_at = excluded.updated_at`,
		cycleID, participantID, attending, now)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

// Attendance returns a participant's attendance, or nil when unknown.
func (t *Tx) Attendance(ctx context.Context, cycleID int64, participantID string) (*bool, error) {
	var attending bool
	err := t.queryRow(ctx, `
		SELECT attending FROM attendance WHERE cycle_id = ? AND participant_id = ?`,
		cycleID, participantID).Scan(&attending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return &attending, nil
}

// AttendanceList returns every recorded attendance for a cycle.
func (t *Tx) AttendanceList(ctx context.Context, cycleID int64) ([]models.Attendance, error) {
	rows, err := t.query(ctx, `
		SELECT participant_id, attending, updated_at FROM attendance
		WHERE cycle_id = ? ORDER BY participant_id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []models.Attendance
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.ParticipantID, &a.Attending, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AttendingParticipants lists participants explicitly marked attending.
func (t *Tx) AttendingParticipants(ctx context.Context, cycleID int64) ([]string, error) {
	ids, err := t.strings(ctx, `
		SELECT participant_id FROM attendance
		WHERE cycle_id = ? AND attending = ?
		ORDER BY participant_id`, cycleID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query attending participants: %w", err)
	}
	return ids, nil
}

// ReplaceBallot swaps a participant's ballot for a new one.
func (t *Tx) ReplaceBallot(ctx context.Context, cycleID int64, participantID string, scores []models.BallotScore, now time.Time) error {
	if _, err := t.exec(ctx, `
		DELETE FROM ballot_entry WHERE cycle_id = ? AND participant_id = ?`,
		cycleID, participantID); err != nil {
		return fmt.Errorf("failed to delete old ballot: %w", err)
	}

	for _, s := range scores {
		if _, err := t.exec(ctx, `
			INSERT INTO ballot_entry (cycle_id, participant_id, candidate_id, score, voted_at)
			VALUES (?, ?, ?, ?, ?)`,
			cycleID, participantID, s.CandidateID, s.Score, now); err != nil {
			return fmt.Errorf("failed to insert ballot entry: %w", err)
		}
	}
	return nil
}

// Ballot returns a participant's ballot, best first.
func (t *Tx) Ballot(ctx context.Context, cycleID int64, participantID string) ([]models.BallotEntry, error) {
	rows, err := t.query(ctx, `
		SELECT b.candidate_id, c.name, b.score
		FROM ballot_entry b
		JOIN candidate c ON c.id = b.candidate_id
		WHERE b.cycle_id = ? AND b.participant_id = ?
		ORDER BY b.score DESC`, cycleID, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballot: %w", err)
	}
	defer rows.Close()

	var out []models.BallotEntry
	for rows.Next() {
		var e models.BallotEntry
		if err := rows.Scan(&e.CandidateID, &e.Name, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan ballot entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Voters lists participants that have a ballot in the cycle.
func (t *Tx) Voters(ctx context.Context, cycleID int64) ([]string, error) {
	ids, err := t.strings(ctx, `
		SELECT DISTINCT participant_id FROM ballot_entry
		WHERE cycle_id = ? ORDER BY participant_id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query voters: %w", err)
	}
	return ids, nil
}

// AttendingScoreRows returns every ballot entry cast by a participant whose
// attendance is explicitly true.
func (t *Tx) AttendingScoreRows(ctx context.Context, cycleID int64) ([]models.ScoreRow, error) {
	rows, err := t.query(ctx, `
		SELECT b.candidate_id, c.name, b.score
		FROM ballot_entry b
		JOIN attendance a ON a.cycle_id = b.cycle_id AND a.participant_id = b.participant_id
		JOIN candidate c ON c.id = b.candidate_id
		WHERE b.cycle_id = ? AND a.attending = ?`, cycleID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query score rows: %w", err)
	}
	defer rows.Close()

	var out []models.ScoreRow
	for rows.Next() {
		var r models.ScoreRow
		if err := rows.Scan(&r.CandidateID, &r.Name, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// renumberBallot rewrites a ballot's scores to K..1 keeping its order.
func (t *Tx) renumberBallot(ctx context.Context, cycleID int64, participantID string) error {
	entries, err := t.Ballot(ctx, cycleID, participantID)
	if err != nil {
		return err
	}
	for i, e := range entries {
		want := len(entries) - i
		if e.Score == want {
			continue
		}
		if _, err := t.exec(ctx, `
			UPDATE ballot_entry SET score = ?
			WHERE cycle_id = ? AND participant_id = ? AND candidate_id = ?`,
			want, cycleID, participantID, e.CandidateID); err != nil {
			return fmt.Errorf("failed to renumber ballot: %w", err)
		}
	}
	return nil
}

// SetRunoffCandidates replaces the frozen runoff set.
func (t *Tx) SetRunoffCandidates(ctx context.Context, cycleID int64, candidateIDs []int64) error {
	if _, err := t.exec(ctx, `DELETE FROM runoff_candidate WHERE cycle_id = ?`, cycleID); err != nil {
		return fmt.Errorf("failed to clear runoff candidates: %w", err)
	}
	for _, id := range candidateIDs {
		if _, err := t.exec(ctx, `
			INSERT INTO runoff_candidate (cycle_id, candidate_id) VALUES (?, ?)`,
			cycleID, id); err != nil {
			return fmt.Errorf("failed to insert runoff candidate: %w", err)
		}
	}
	return nil
}

// RunoffCandidates returns the current runoff set in name order.
func (t *Tx) RunoffCandidates(ctx context.Context, cycleID int64) ([]models.Candidate, error) {
	rows, err := t.query(ctx, `
		SELECT c.id, c.name, c.added_by, c.added_at
		FROM runoff_candidate r
		JOIN candidate c ON c.id = r.candidate_id
		WHERE r.cycle_id = ?
		ORDER BY LOWER(c.name), c.id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runoff candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var (
			c       models.Candidate
			addedBy sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &addedBy, &c.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan runoff candidate: %w", err)
		}
		c.AddedBy = addedBy.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClearRunoffPicks drops every pick for the cycle.
func (t *Tx) ClearRunoffPicks(ctx context.Context, cycleID int64) error {
	if _, err := t.exec(ctx, `DELETE FROM runoff_pick WHERE cycle_id = ?`, cycleID); err != nil {
		return fmt.Errorf("failed to clear runoff picks: %w", err)
	}
	return nil
}

// SaveRunoffPick records or overwrites a participant's pick.
func (t *Tx) SaveRunoffPick(ctx context.Context, cycleID int64, participantID string, candidateID int64, now time.Time) error {
	_, err := t.exec(ctx, `
		INSERT INTO runoff_pick (cycle_id, participant_id, candidate_id, voted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (cycle_id, participant_id)
		DO UPDATE SET candidate_id = excluded.candidate_id, voted_at = excluded.voted_at`,
		cycleID, participantID, candidateID, now)
	if err != nil {
		return fmt.Errorf("failed to save runoff pick: %w", err)
	}
	return nil
}

// AttendingRunoffPicks returns picks cast by participants currently
// marked attending.
func (t *Tx) AttendingRunoffPicks(ctx context.Context, cycleID int64) ([]models.RunoffPick, error) {
	rows, err := t.query(ctx, `
		SELECT p.participant_id, p.candidate_id
		FROM runoff_pick p
		JOIN attendance a ON a.cycle_id = p.cycle_id AND a.participant_id = p.participant_id
		WHERE p.cycle_id = ? AND a.attending = ?
		ORDER BY p.participant_id`, cycleID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query runoff picks: %w", err)
	}
	defer rows.Close()

	var out []models.RunoffPick
	for rows.Next() {
		var p models.RunoffPick
		if err := rows.Scan(&p.ParticipantID, &p.CandidateID); err != nil {
			return nil, fmt.Errorf("failed to scan runoff pick: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
