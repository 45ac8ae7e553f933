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

// Nomination pool

// AddNomination queues a candidate. Returns false when it is already queued.
func (t *Tx) AddNomination(ctx context.Context, candidateID int64, nominatedBy string, now time.Time) (bool, error) {
	res, err := t.exec(ctx, `
		INSERT INTO nomination (candidate_id, nominated_by, nominated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (candidate_id) DO NOTHING`, candidateID, nominatedBy, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert nomination: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// CountNominationsBy returns how many queued entries a participant owns.
func (t *Tx) CountNominationsBy(ctx context.Context, participantID string) (int, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM nomination WHERE nominated_by = ?`, participantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count nominations: %w", err)
	}
	return n, nil
}

// NominationQueued reports whether a candidate is already in the pool.
func (t *Tx) NominationQueued(ctx context.Context, candidateID int64) (bool, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM nomination WHERE candidate_id = ?`, candidateID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query nomination: %w", err)
	}
	return n > 0, nil
}

// Nominations lists the pool in submission order.
func (t *Tx) Nominations(ctx context.Context) ([]models.Nomination, error) {
	rows, err := t.query(ctx, `
		SELECT n.id, n.candidate_id, c.name, n.nominated_by, n.nominated_at
		FROM nomination n
		JOIN candidate c ON c.id = n.candidate_id
		ORDER BY n.nominated_at, n.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nominations: %w", err)
	}
	defer rows.Close()

	var out []models.Nomination
	for rows.Next() {
		var n models.Nomination
		if err := rows.Scan(&n.ID, &n.CandidateID, &n.Name, &n.NominatedBy, &n.NominatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan nomination: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ClearNominations empties the pool.
func (t *Tx) ClearNominations(ctx context.Context) error {
	if _, err := t.exec(ctx, `DELETE FROM nomination`); err != nil {
		return fmt.Errorf("failed to clear nominations: %w", err)
	}
	return nil
}

// Participants

// IsAuthorized reports whether a participant is on the allow-list.
func (t *Tx) IsAuthorized(ctx context.Context, participantID string) (bool, error) {
	var n int
	err := t.queryRow(ctx, `SELECT COUNT(*) FROM participant WHERE participant_id = ?`, participantID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query participant: %w", err)
	}
	return n > 0, nil
}

// AddParticipant allow-lists a participant, refreshing the display name
// when already present. Returns false in that case.
func (t *Tx) AddParticipant(ctx context.Context, p models.Participant) (bool, error) {
	exists, err := t.IsAuthorized(ctx, p.ID)
	if err != nil {
		return false, err
	}
	if exists {
		if _, err := t.exec(ctx, `
			UPDATE participant SET display_name = ? WHERE participant_id = ?`,
			p.DisplayName, p.ID); err != nil {
			return false, fmt.Errorf("failed to update participant: %w", err)
		}
		return false, nil
	}

	if _, err := t.exec(ctx, `
		INSERT INTO participant (participant_id, display_name, added_by, added_at)
		VALUES (?, ?, ?, ?)`, p.ID, p.DisplayName, p.AddedBy, p.AddedAt); err != nil {
		return false, fmt.Errorf("failed to insert participant: %w", err)
	}
	return true, nil
}

// RemoveParticipant drops a participant from the allow-list.
func (t *Tx) RemoveParticipant(ctx context.Context, participantID string) (bool, error) {
	res, err := t.exec(ctx, `DELETE FROM participant WHERE participant_id = ?`, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Participants lists the allow-list.
func (t *Tx) Participants(ctx context.Context) ([]models.Participant, error) {
	rows, err := t.query(ctx, `
		SELECT participant_id, display_name, added_by, added_at
		FROM participant ORDER BY added_at, participant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		var (
			p    models.Participant
			name sql.NullString
		)
		if err := rows.Scan(&p.ID, &name, &p.AddedBy, &p.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.DisplayName = name.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// Scheduled jobs

// UpsertJob inserts a job or replaces the one with the same ID.
func (t *Tx) UpsertJob(ctx context.Context, job models.Job) error {
	_, err := t.exec(ctx, `
		INSERT INTO scheduled_job (id, kind, cycle_id, round, run_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind, cycle_id = excluded.cycle_id,
			round = excluded.round, run_at = excluded.run_at`,
		job.ID, job.Kind, job.CycleID, job.Round, job.RunAt)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.ID, err)
	}
	return nil
}

// DeleteJobsForCycle removes every job attached to a cycle.
func (t *Tx) DeleteJobsForCycle(ctx context.Context, cycleID int64) error {
	if _, err := t.exec(ctx, `DELETE FROM scheduled_job WHERE cycle_id = ?`, cycleID); err != nil {
		return fmt.Errorf("failed to delete jobs for cycle %d: %w", cycleID, err)
	}
	return nil
}

// DeleteJob removes one job.
func (t *Tx) DeleteJob(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM scheduled_job WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// Job loads a job by ID.
func (t *Tx) Job(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	err := t.queryRow(ctx, `
		SELECT id, kind, cycle_id, round, run_at FROM scheduled_job WHERE id = ?`, id).
		Scan(&j.ID, &j.Kind, &j.CycleID, &j.Round, &j.RunAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job %s: %w", id, err)
	}
	return &j, nil
}

// Jobs lists pending jobs, earliest first.
func (t *Tx) Jobs(ctx context.Context) ([]models.Job, error) {
	rows, err := t.query(ctx, `
		SELECT id, kind, cycle_id, round, run_at FROM scheduled_job ORDER BY run_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Kind, &j.CycleID, &j.Round, &j.RunAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
