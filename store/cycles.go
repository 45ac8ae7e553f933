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

const cycleColumns = `id, status, opened_at, closed_at, published_at, winning_candidate_id,
	announcement_ref, runoff_round, runoff_deadline`

func scanCycle(row interface{ Scan(...any) error }) (*models.Cycle, error) {
	var (
		c           models.Cycle
		closedAt    sql.NullTime
		publishedAt sql.NullTime
		winner      sql.NullInt64
		ref         sql.NullString
		deadline    sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Status, &c.OpenedAt, &closedAt, &publishedAt, &winner,
		&ref, &c.RunoffRound, &deadline)
	if err != nil {
		return nil, err
	}
	c.ClosedAt = timePtr(closedAt)
	c.PublishedAt = timePtr(publishedAt)
	c.WinnerID = int64Ptr(winner)
	c.AnnouncementRef = stringPtr(ref)
	c.RunoffDeadline = timePtr(deadline)
	return &c, nil
}

// CurrentCycle returns the cycle in open or runoff, locked for the rest of
// the transaction. Returns nil when there is none.
func (t *Tx) CurrentCycle(ctx context.Context) (*models.Cycle, error) {
	c, err := scanCycle(t.queryRow(ctx, `
		SELECT `+cycleColumns+` FROM cycle
		WHERE status IN (?, ?)
		ORDER BY id DESC LIMIT 1`+t.dialect.LockClause(),
		models.StatusOpen, models.StatusRunoff))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current cycle: %w", err)
	}
	return c, nil
}

// LockCycle loads a cycle by ID and locks it for the rest of the transaction.
func (t *Tx) LockCycle(ctx context.Context, id int64) (*models.Cycle, error) {
	c, err := scanCycle(t.queryRow(ctx, `
		SELECT `+cycleColumns+` FROM cycle WHERE id = ?`+t.dialect.LockClause(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.Reject(models.ErrNotFound, "cycle_not_found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle %d: %w", id, err)
	}
	return c, nil
}

// LatestPublished returns the most recent published cycle, or nil.
func (t *Tx) LatestPublished(ctx context.Context) (*models.Cycle, error) {
	return t.latestIn(ctx, models.StatusPublished, models.StatusPublished)
}

// LatestFinished returns the most recent closed or published cycle, or nil.
func (t *Tx) LatestFinished(ctx context.Context) (*models.Cycle, error) {
	return t.latestIn(ctx, models.StatusClosed, models.StatusPublished)
}

func (t *Tx) latestIn(ctx context.Context, a, b string) (*models.Cycle, error) {
	c, err := scanCycle(t.queryRow(ctx, `
		SELECT `+cycleColumns+` FROM cycle
		WHERE status IN (?, ?)
		ORDER BY id DESC LIMIT 1`, a, b))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest cycle: %w", err)
	}
	return c, nil
}

// CreateCycle opens a new cycle. Fails with ErrConflict when a cycle is
// already current; the check and the insert share this transaction and
// the current_slot unique index backs it up.
func (t *Tx) CreateCycle(ctx context.Context, now time.Time) (*models.Cycle, error) {
	current, err := t.CurrentCycle(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("cycle %d is already %s: %w", current.ID, current.Status, models.ErrConflict)
	}

	var id int64
	err = t.queryRow(ctx, `
		INSERT INTO cycle (status, opened_at, runoff_round, current_slot)
		VALUES (?, ?, 0, 1)
		RETURNING id`, models.StatusOpen, now).Scan(&id)
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("concurrent cycle creation: %w", models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert cycle: %w", err)
	}

	return &models.Cycle{ID: id, Status: models.StatusOpen, OpenedAt: now}, nil
}

// CloseCycle moves an open or runoff cycle to closed.
func (t *Tx) CloseCycle(ctx context.Context, id int64, now time.Time) error {
	res, err := t.exec(ctx, `
		UPDATE cycle
		SET status = ?, closed_at = ?, current_slot = NULL, runoff_deadline = NULL
		WHERE id = ? AND status IN (?, ?)`,
		models.StatusClosed, now, id, models.StatusOpen, models.StatusRunoff)
	if err != nil {
		return fmt.Errorf("failed to close cycle %d: %w", id, err)
	}
	return t.expectTransition(ctx, res, id, "close")
}

// PublishCycle records the winner of a closed cycle.
func (t *Tx) PublishCycle(ctx context.Context, id, winnerID int64, now time.Time) error {
	res, err := t.exec(ctx, `
		UPDATE cycle
		SET status = ?, published_at = ?, winning_candidate_id = ?
		WHERE id = ? AND status = ?`,
		models.StatusPublished, now, winnerID, id, models.StatusClosed)
	if err != nil {
		return fmt.Errorf("failed to publish cycle %d: %w", id, err)
	}
	return t.expectTransition(ctx, res, id, "publish")
}

// EnterRunoff starts the next runoff round and returns its number.
func (t *Tx) EnterRunoff(ctx context.Context, id int64, deadline time.Time) (int, error) {
	var round int
	err := t.queryRow(ctx, `
		UPDATE cycle
		SET status = ?, runoff_round = runoff_round + 1, runoff_deadline = ?
		WHERE id = ? AND status IN (?, ?)
		RETURNING runoff_round`,
		models.StatusRunoff, deadline, id, models.StatusOpen, models.StatusRunoff).Scan(&round)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, t.transitionError(ctx, id, "enter runoff")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to enter runoff for cycle %d: %w", id, err)
	}
	return round, nil
}

// SetAnnouncementRef stores the sink's reference to the opening message.
func (t *Tx) SetAnnouncementRef(ctx context.Context, id int64, ref string) error {
	_, err := t.exec(ctx, `UPDATE cycle SET announcement_ref = ? WHERE id = ?`, ref, id)
	if err != nil {
		return fmt.Errorf("failed to set announcement ref: %w", err)
	}
	return nil
}

func (t *Tx) expectTransition(ctx context.Context, res sql.Result, id int64, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	return t.transitionError(ctx, id, op)
}

func (t *Tx) transitionError(ctx context.Context, id int64, op string) error {
	var status string
	err := t.queryRow(ctx, `SELECT status FROM cycle WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cycle %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query cycle %d: %w", id, err)
	}
	return fmt.Errorf("cannot %s cycle %d in status %s: %w", op, id, status, models.ErrInvalidState)
}
