// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/gamenight/models"
)

// Event payloads. Sinks own all rendering.

type CycleOpened struct {
	EventID    string                   `json:"event_id"`
	Cycle      models.Cycle             `json:"cycle"`
	Candidates []models.BallotCandidate `json:"candidates"`
}

type RunoffStarted struct {
	EventID    string             `json:"event_id"`
	Cycle      models.Cycle       `json:"cycle"`
	Round      int                `json:"round"`
	Candidates []models.Candidate `json:"candidates"`
	Deadline   time.Time          `json:"deadline"`
	// Attending participants at the time the round opened.
	Participants []string `json:"participants"`
}

type Results struct {
	EventID string            `json:"event_id"`
	Cycle   models.Cycle      `json:"cycle"`
	Ranking []models.Result   `json:"ranking"`
	Winner  *models.Candidate `json:"winner,omitempty"`
	Note    string            `json:"note"`
	// Set when the cycle was decided by a runoff.
	RunoffRound int                  `json:"runoff_round,omitempty"`
	Runoff      []models.RunoffTally `json:"runoff,omitempty"`
}

type Reminder struct {
	EventID       string `json:"event_id"`
	CycleID       int64  `json:"cycle_id"`
	ParticipantID string `json:"participant_id"`
}

// Sink delivers events to the outside world.
type Sink interface {
	// CycleOpened may return a reference to the announcement it posted.
	CycleOpened(ctx context.Context, ev CycleOpened) (string, error)
	RunoffStarted(ctx context.Context, ev RunoffStarted) error
	Results(ctx context.Context, ev Results) error
	Reminder(ctx context.Context, ev Reminder) error
}

// EventID derives a stable identifier for an event so that sinks can
// drop duplicates.
func EventID(kind string, parts ...any) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprint(append([]any{"gamenight", kind}, parts...)...))).String()
}

// Dispatcher sends events to a sink on a best-effort basis. Delivery
// errors are logged and counted, never returned.
type Dispatcher struct {
	sink     Sink
	logger   *slog.Logger
	failures atomic.Int64
}

func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sink: sink, logger: logger}
}

// Failures returns the number of deliveries that failed since start.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}

func (d *Dispatcher) failed(event string, err error, args ...any) {
	d.failures.Add(1)
	d.logger.Error("notification failed", append([]any{"event", event, "error", err}, args...)...)
}

func (d *Dispatcher) missingSink(event string) bool {
	if d.sink != nil {
		return false
	}
	d.failed(event, fmt.Errorf("no notification sink configured"))
	return true
}

// CycleOpened announces a new cycle and returns the sink's reference, if
// any.
func (d *Dispatcher) CycleOpened(ctx context.Context, ev CycleOpened) string {
	if ev.EventID == "" {
		ev.EventID = EventID("opened", ev.Cycle.ID)
	}
	if d.missingSink("cycle_opened") {
		return ""
	}
	// A fanout may fail on one sink and still hand back another's ref.
	ref, err := d.sink.CycleOpened(ctx, ev)
	if err != nil {
		d.failed("cycle_opened", err, "cycle_id", ev.Cycle.ID, "ref", ref)
	}
	return ref
}

// RunoffStarted announces a runoff round.
func (d *Dispatcher) RunoffStarted(ctx context.Context, ev RunoffStarted) bool {
	if ev.EventID == "" {
		ev.EventID = EventID("runoff", ev.Cycle.ID, ev.Round)
	}
	if d.missingSink("runoff_started") {
		return false
	}
	if err := d.sink.RunoffStarted(ctx, ev); err != nil {
		d.failed("runoff_started", err, "cycle_id", ev.Cycle.ID, "round", ev.Round)
		return false
	}
	return true
}

// Results publishes the final outcome of a cycle.
func (d *Dispatcher) Results(ctx context.Context, ev Results) bool {
	if ev.EventID == "" {
		ev.EventID = EventID("results", ev.Cycle.ID)
	}
	if d.missingSink("results") {
		return false
	}
	if err := d.sink.Results(ctx, ev); err != nil {
		d.failed("results", err, "cycle_id", ev.Cycle.ID)
		return false
	}
	return true
}

// Reminders nudges each participant individually. A failure for one
// participant does not stop the rest.
func (d *Dispatcher) Reminders(ctx context.Context, cycleID int64, participantIDs []string) (sent, failed int) {
	for _, id := range participantIDs {
		if d.missingSink("reminder") {
			failed++
			continue
		}
		ev := Reminder{
			EventID:       EventID("reminder", cycleID, id),
			CycleID:       cycleID,
			ParticipantID: id,
		}
		if err := d.sink.Reminder(ctx, ev); err != nil {
			d.failed("reminder", err, "cycle_id", cycleID, "participant_id", id)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}
