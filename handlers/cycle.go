// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/gamenight/lifecycle"
	"github.com/danielhkuo/gamenight/middleware"
	"github.com/danielhkuo/gamenight/models"
)

// CycleHandler serves participant actions on the current cycle.
type CycleHandler struct {
	mgr *lifecycle.Manager
}

func NewCycleHandler(mgr *lifecycle.Manager) *CycleHandler {
	return &CycleHandler{mgr: mgr}
}

// GetStatus handles GET /cycle
func (h *CycleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.mgr.Status(r.Context())
	if err != nil {
		slog.Error("failed to load cycle status", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if status == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No current cycle")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, status)
}

// GetResults handles GET /results
func (h *CycleHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.mgr.LatestResults(r.Context())
	if err != nil {
		slog.Error("failed to load results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if results == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No finished cycle yet")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, results)
}

// SubmitBallot handles POST /cycles/{id}/ballot
func (h *CycleHandler) SubmitBallot(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := cycleIDParam(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid cycle id")
		return
	}
	var req models.SubmitBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	outcome, err := h.mgr.SubmitBallot(r.Context(), cycleID, middleware.ParticipantID(r.Context()), req.CandidateIDs)
	writeOutcome(w, "submit_ballot", outcome, err, http.StatusOK, nil)
}

// GetMyBallot handles GET /cycles/current/ballot
func (h *CycleHandler) GetMyBallot(w http.ResponseWriter, r *http.Request) {
	entries, err := h.mgr.MyBallot(r.Context(), middleware.ParticipantID(r.Context()))
	outcome, err := models.OutcomeFor(err)
	if entries == nil {
		entries = []models.BallotEntry{}
	}
	writeOutcome(w, "my_ballot", outcome, err, http.StatusOK, entries)
}

// SetAttendance handles POST /cycles/{id}/attendance
func (h *CycleHandler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := cycleIDParam(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid cycle id")
		return
	}
	var req models.AttendanceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	outcome, err := h.mgr.SetAttendance(r.Context(), cycleID, middleware.ParticipantID(r.Context()), req.Attending)
	writeOutcome(w, "set_attendance", outcome, err, http.StatusOK, nil)
}

// SubmitRunoffPick handles POST /cycles/{id}/runoff-pick
func (h *CycleHandler) SubmitRunoffPick(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := cycleIDParam(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid cycle id")
		return
	}
	var req models.RunoffPickRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	outcome, err := h.mgr.SubmitRunoffPick(r.Context(), cycleID, middleware.ParticipantID(r.Context()), req.CandidateID)
	writeOutcome(w, "runoff_pick", outcome, err, http.StatusOK, nil)
}

// Nominate handles POST /nominations
func (h *CycleHandler) Nominate(w http.ResponseWriter, r *http.Request) {
	var req models.NominateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	outcome, err := h.mgr.Nominate(r.Context(), middleware.ParticipantID(r.Context()), req.Name)
	writeOutcome(w, "nominate", outcome, err, http.StatusCreated, nil)
}

// ListNominations handles GET /nominations
func (h *CycleHandler) ListNominations(w http.ResponseWriter, r *http.Request) {
	pending, err := h.mgr.PendingNominations(r.Context())
	if err != nil {
		slog.Error("failed to list nominations", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if pending == nil {
		pending = []models.Nomination{}
	}
	middleware.JSONResponse(w, http.StatusOK, pending)
}
