// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/gamenight/cliparse"
	"github.com/danielhkuo/gamenight/clock"
	"github.com/danielhkuo/gamenight/db"
	"github.com/danielhkuo/gamenight/lifecycle"
	"github.com/danielhkuo/gamenight/models"
	"github.com/danielhkuo/gamenight/nomination"
	"github.com/danielhkuo/gamenight/notify"
	"github.com/danielhkuo/gamenight/runoff"
	"github.com/danielhkuo/gamenight/scheduler"
	"github.com/danielhkuo/gamenight/store"
)

// AdminID is the admin participant in test configurations.
const AdminID = "admin"

// Start is a Tuesday morning, before the default close trigger.
var Start = time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

// Logger discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetupTestDB opens a fresh in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) (*sql.DB, db.Dialect) {
	t.Helper()

	ctx := context.Background()
	conn, dialect, err := db.Open(ctx, db.SQLite, "file::memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(ctx, conn, dialect); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn, dialect
}

// NewStore returns a store over a fresh test database.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	conn, dialect := SetupTestDB(t)
	return store.New(conn, dialect, Logger())
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	cfg := cliparse.Defaults()
	cfg.DatabaseURL = "file::memory:"
	cfg.AdminKeySalt = "test-admin-salt"
	cfg.AdminIDs = []string{AdminID}
	cfg.Timezone = "UTC"
	return cfg
}

// EngineConfig tunes NewEngine.
type EngineConfig struct {
	Lifecycle       lifecycle.Config
	Policy          runoff.DeadlinePolicy
	Schedule        scheduler.Config
	PerNominator    int
	NoScheduler     bool
	SinkRef         string
	FailRemindersTo []string
}

// DefaultEngineConfig mirrors the production defaults with a two hour
// runoff window and UTC triggers.
func DefaultEngineConfig() EngineConfig {
	cfg := GetTestConfig()
	sched, _ := cfg.SchedulerConfig()
	return EngineConfig{
		Lifecycle:    cfg.LifecycleConfig(),
		Policy:       runoff.Window(2 * time.Hour),
		Schedule:     sched,
		PerNominator: 1,
		SinkRef:      "msg-1",
	}
}

// Engine is a fully wired cycle engine over an in-memory database, a fake
// clock and a recording sink.
type Engine struct {
	Store     *store.Store
	Clock     *clock.Fake
	Sink      *notify.Recorder
	Events    *notify.Dispatcher
	Pool      *nomination.Pool
	Runoff    *runoff.Coordinator
	Manager   *lifecycle.Manager
	Scheduler *scheduler.Scheduler
}

// NewEngine wires every component the way main does. The scheduler is
// attached to the coordinator but not started.
func NewEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()

	logger := Logger()
	st := NewStore(t)
	clk := clock.NewFake(Start)

	sink := &notify.Recorder{Ref: cfg.SinkRef, FailFor: map[string]bool{}}
	for _, id := range cfg.FailRemindersTo {
		sink.FailFor[id] = true
	}
	events := notify.NewDispatcher(sink, logger)

	pool := nomination.New(st, clk, cfg.PerNominator, logger)
	coord := runoff.New(st, events, cfg.Policy, clk, logger)
	mgr := lifecycle.New(st, pool, coord, events, clk, cfg.Lifecycle, logger)

	e := &Engine{
		Store:   st,
		Clock:   clk,
		Sink:    sink,
		Events:  events,
		Pool:    pool,
		Runoff:  coord,
		Manager: mgr,
	}
	if !cfg.NoScheduler {
		e.Scheduler = scheduler.New(st, mgr, coord, clk, cfg.Schedule, logger)
		coord.SetScheduler(e.Scheduler)
		t.Cleanup(e.Scheduler.Stop)
	}
	return e
}

// Tx runs fn in a transaction and fails the test on error.
func (e *Engine) Tx(t *testing.T, fn func(tx *store.Tx) error) {
	t.Helper()
	if err := e.Store.Atomically(context.Background(), fn); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

// AddParticipants allow-lists participants directly.
func (e *Engine) AddParticipants(t *testing.T, ids ...string) {
	t.Helper()
	e.Tx(t, func(tx *store.Tx) error {
		for _, id := range ids {
			if _, err := tx.AddParticipant(context.Background(), models.Participant{
				ID:          id,
				DisplayName: id,
				AddedBy:     AdminID,
				AddedAt:     e.Clock.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Open opens a cycle and returns it.
func (e *Engine) Open(t *testing.T) *models.Cycle {
	t.Helper()
	outcome, err := e.Manager.OpenCycle(context.Background())
	if err != nil {
		t.Fatalf("OpenCycle failed: %v", err)
	}
	if outcome.Status != models.OutcomeOK {
		t.Fatalf("OpenCycle outcome = %+v", outcome)
	}
	return e.Current(t)
}

// Current returns the current cycle, or nil.
func (e *Engine) Current(t *testing.T) *models.Cycle {
	t.Helper()
	var cycle *models.Cycle
	e.Tx(t, func(tx *store.Tx) error {
		var err error
		cycle, err = tx.CurrentCycle(context.Background())
		return err
	})
	return cycle
}

// Cycle loads a cycle by ID.
func (e *Engine) Cycle(t *testing.T, id int64) *models.Cycle {
	t.Helper()
	var cycle *models.Cycle
	e.Tx(t, func(tx *store.Tx) error {
		var err error
		cycle, err = tx.LockCycle(context.Background(), id)
		return err
	})
	return cycle
}

// AddCandidates puts candidates on the current ballot and returns their IDs
// in argument order.
func (e *Engine) AddCandidates(t *testing.T, names ...string) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, len(names))
	e.Tx(t, func(tx *store.Tx) error {
		cycle, err := tx.CurrentCycle(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			c, _, err := tx.GetOrCreateCandidate(ctx, name, AdminID, e.Clock.Now())
			if err != nil {
				return err
			}
			if _, err := tx.AddToBallot(ctx, cycle.ID, c.ID, false, nil, e.Clock.Now()); err != nil {
				return err
			}
			ids = append(ids, c.ID)
		}
		return nil
	})
	return ids
}

// Attend records attendance and fails on anything but ok.
func (e *Engine) Attend(t *testing.T, participantID string, attending bool) {
	t.Helper()
	outcome, err := e.Manager.SetAttendance(context.Background(), 0, participantID, attending)
	if err != nil || outcome.Status != models.OutcomeOK {
		t.Fatalf("SetAttendance(%s) = %+v, %v", participantID, outcome, err)
	}
}

// Vote submits a full ranking, most preferred first.
func (e *Engine) Vote(t *testing.T, participantID string, ranking ...int64) {
	t.Helper()
	outcome, err := e.Manager.SubmitBallot(context.Background(), 0, participantID, ranking)
	if err != nil || outcome.Status != models.OutcomeOK {
		t.Fatalf("SubmitBallot(%s) = %+v, %v", participantID, outcome, err)
	}
}

// Pick submits a runoff pick.
func (e *Engine) Pick(t *testing.T, participantID string, candidateID int64) models.Outcome {
	t.Helper()
	outcome, err := e.Manager.SubmitRunoffPick(context.Background(), 0, participantID, candidateID)
	if err != nil {
		t.Fatalf("SubmitRunoffPick(%s) failed: %v", participantID, err)
	}
	return outcome
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
