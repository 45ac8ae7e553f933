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

// AdminHandler serves admin actions. Routes are wrapped in
// middleware.RequireAdminKey; the admin allow-list is enforced by the
// lifecycle manager.
type AdminHandler struct {
	mgr *lifecycle.Manager
}

func NewAdminHandler(mgr *lifecycle.Manager) *AdminHandler {
	return &AdminHandler{mgr: mgr}
}

// OpenCycle handles POST /admin/cycles/open
func (h *AdminHandler) OpenCycle(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.mgr.AdminOpenCycle(r.Context(), middleware.ParticipantID(r.Context()))
	writeOutcome(w, "admin_open", outcome, err, http.StatusCreated, nil)
}

// ForceClose handles POST /admin/cycles/{id}/close
func (h *AdminHandler) ForceClose(w http.ResponseWriter, r *http.Request) {
	cycleID, ok := cycleIDParam(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid cycle id")
		return
	}
	outcome, err := h.mgr.AdminForceClose(r.Context(), middleware.ParticipantID(r.Context()), cycleID)
	writeOutcome(w, "admin_force_close", outcome, err, http.StatusOK, nil)
}

// SendReminders handles POST /admin/reminders
func (h *AdminHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	outcome, report, err := h.mgr.AdminSendReminders(r.Context(), middleware.ParticipantID(r.Context()))
	writeOutcome(w, "admin_reminders", outcome, err, http.StatusOK, report)
}

// AddCandidate handles POST /admin/candidates
func (h *AdminHandler) AddCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	outcome, err := h.mgr.AdminAddCandidate(r.Context(), middleware.ParticipantID(r.Context()), req.Name)
	writeOutcome(w, "admin_add_candidate", outcome, err, http.StatusCreated, nil)
}

// RemoveCandidate handles DELETE /admin/candidates/{name}
func (h *AdminHandler) RemoveCandidate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	outcome, err := h.mgr.AdminRemoveCandidate(r.Context(), middleware.ParticipantID(r.Context()), name)
	writeOutcome(w, "admin_remove_candidate", outcome, err, http.StatusOK, nil)
}

// MergeCandidates handles POST /admin/candidates/merge
func (h *AdminHandler) MergeCandidates(w http.ResponseWriter, r *http.Request) {
	var req models.MergeRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.From == "" || req.Into == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "from and into are required")
		return
	}
	outcome, err := h.mgr.AdminMergeCandidates(r.Context(), middleware.ParticipantID(r.Context()), req.From, req.Into)
	writeOutcome(w, "admin_merge", outcome, err, http.StatusOK, nil)
}

// RenameCandidate handles POST /admin/candidates/rename
func (h *AdminHandler) RenameCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.RenameRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	outcome, err := h.mgr.AdminRenameCandidate(r.Context(), middleware.ParticipantID(r.Context()), req.From, req.To)
	writeOutcome(w, "admin_rename", outcome, err, http.StatusOK, nil)
}

// SeedCandidates handles POST /admin/candidates/seed
func (h *AdminHandler) SeedCandidates(w http.ResponseWriter, r *http.Request) {
	var req models.SeedRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	outcome, added, err := h.mgr.AdminSeedCandidates(r.Context(), middleware.ParticipantID(r.Context()), req.Names)
	writeOutcome(w, "admin_seed", outcome, err, http.StatusOK, map[string]int{"added": added})
}

// AddParticipant handles POST /admin/participants
func (h *AdminHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req models.ParticipantRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	outcome, err := h.mgr.AdminAddParticipant(r.Context(), middleware.ParticipantID(r.Context()), req.ParticipantID, req.DisplayName)
	writeOutcome(w, "admin_add_participant", outcome, err, http.StatusCreated, nil)
}

// RemoveParticipant handles DELETE /admin/participants/{pid}
func (h *AdminHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.mgr.AdminRemoveParticipant(r.Context(), middleware.ParticipantID(r.Context()), r.PathValue("pid"))
	writeOutcome(w, "admin_remove_participant", outcome, err, http.StatusOK, nil)
}

// ListParticipants handles GET /admin/participants
func (h *AdminHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ParticipantID(r.Context())
	if !h.mgr.IsAdmin(actor) {
		writeOutcome(w, "admin_list_participants", models.Rejected(&models.Rejection{Kind: models.ErrUnauthorized, Reason: "not_admin"}), nil, http.StatusOK, nil)
		return
	}
	participants, err := h.mgr.Participants(r.Context())
	if err != nil {
		slog.Error("failed to list participants", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	middleware.JSONResponse(w, http.StatusOK, participants)
}
