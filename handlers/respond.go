// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/gamenight/middleware"
	"github.com/danielhkuo/gamenight/models"
)

// StatusFor maps an outcome to an HTTP status. okStatus is used for a
// fresh success.
func StatusFor(outcome models.Outcome, okStatus int) int {
	switch outcome.Status {
	case models.OutcomeOK:
		return okStatus
	case models.OutcomeAlreadyDone:
		return http.StatusOK
	}

	switch outcome.Kind {
	case "unauthorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "invalid_state", "capacity":
		return http.StatusConflict
	case "invalid_input":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// writeOutcome renders the result of a lifecycle operation. A non-nil err
// is an infrastructure failure and becomes a 500.
func writeOutcome(w http.ResponseWriter, op string, outcome models.Outcome, err error, okStatus int, data any) {
	if err != nil {
		slog.Error("operation failed", "op", op, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if outcome.Status != models.OutcomeOK {
		data = nil
	}
	middleware.JSONResponse(w, StatusFor(outcome, okStatus), models.OutcomeResponse{
		Outcome: outcome,
		Data:    data,
	})
}

// cycleIDParam reads the {id} path value. "current" selects whatever cycle
// is current.
func cycleIDParam(r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	if raw == "" || raw == "current" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
