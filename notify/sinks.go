// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
)

// LogSink writes events to a structured logger. It is the default sink
// when no chat integration is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s LogSink) CycleOpened(ctx context.Context, ev CycleOpened) (string, error) {
	names := make([]string, 0, len(ev.Candidates))
	for _, c := range ev.Candidates {
		names = append(names, c.Name)
	}
	s.logger().InfoContext(ctx, "cycle opened",
		"event_id", ev.EventID,
		"cycle_id", ev.Cycle.ID,
		"candidates", names,
	)
	return "log:" + strconv.FormatInt(ev.Cycle.ID, 10), nil
}

func (s LogSink) RunoffStarted(ctx context.Context, ev RunoffStarted) error {
	names := make([]string, 0, len(ev.Candidates))
	for _, c := range ev.Candidates {
		names = append(names, c.Name)
	}
	s.logger().InfoContext(ctx, "runoff started",
		"event_id", ev.EventID,
		"cycle_id", ev.Cycle.ID,
		"round", humanize.Ordinal(ev.Round),
		"tied", names,
		"deadline", ev.Deadline,
		"closes", humanize.Time(ev.Deadline),
		"participants", len(ev.Participants),
	)
	return nil
}

func (s LogSink) Results(ctx context.Context, ev Results) error {
	winner := ""
	if ev.Winner != nil {
		winner = ev.Winner.Name
	}
	s.logger().InfoContext(ctx, "results published",
		"event_id", ev.EventID,
		"cycle_id", ev.Cycle.ID,
		"winner", winner,
		"note", ev.Note,
		"ranked", len(ev.Ranking),
		"runoff_round", ev.RunoffRound,
	)
	return nil
}

func (s LogSink) Reminder(ctx context.Context, ev Reminder) error {
	s.logger().InfoContext(ctx, "reminder",
		"event_id", ev.EventID,
		"cycle_id", ev.CycleID,
		"participant_id", ev.ParticipantID,
	)
	return nil
}

// ErrDeliveryFailed is returned by Recorder for participants listed in
// FailFor.
var ErrDeliveryFailed = errors.New("delivery failed")

// Recorder keeps every event in memory for tests.
type Recorder struct {
	mu      sync.Mutex
	Ref     string
	FailFor map[string]bool

	opened    []CycleOpened
	runoffs   []RunoffStarted
	results   []Results
	reminders []Reminder
}

func (r *Recorder) CycleOpened(_ context.Context, ev CycleOpened) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, ev)
	return r.Ref, nil
}

func (r *Recorder) RunoffStarted(_ context.Context, ev RunoffStarted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runoffs = append(r.runoffs, ev)
	return nil
}

func (r *Recorder) Results(_ context.Context, ev Results) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, ev)
	return nil
}

func (r *Recorder) Reminder(_ context.Context, ev Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailFor[ev.ParticipantID] {
		return ErrDeliveryFailed
	}
	r.reminders = append(r.reminders, ev)
	return nil
}

func (r *Recorder) Opened() []CycleOpened {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleOpened(nil), r.opened...)
}

func (r *Recorder) Runoffs() []RunoffStarted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunoffStarted(nil), r.runoffs...)
}

func (r *Recorder) AllResults() []Results {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Results(nil), r.results...)
}

func (r *Recorder) Reminders() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reminder(nil), r.reminders...)
}

// Fanout delivers each event to every sink in order. The first non-empty
// announcement reference wins.
type Fanout []Sink

func (f Fanout) CycleOpened(ctx context.Context, ev CycleOpened) (string, error) {
	var (
		ref  string
		errs []error
	)
	for _, s := range f {
		r, err := s.CycleOpened(ctx, ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ref == "" {
			ref = r
		}
	}
	return ref, errors.Join(errs...)
}

func (f Fanout) RunoffStarted(ctx context.Context, ev RunoffStarted) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.RunoffStarted(ctx, ev))
	}
	return errors.Join(errs...)
}

func (f Fanout) Results(ctx context.Context, ev Results) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Results(ctx, ev))
	}
	return errors.Join(errs...)
}

func (f Fanout) Reminder(ctx context.Context, ev Reminder) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Reminder(ctx, ev))
	}
	return errors.Join(errs...)
}
