// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (request_id, method, path, remote) and completion
(status, duration_ms). An incoming X-Request-ID is reused, otherwise one is
generated and echoed back.

# Identity

	mux.HandleFunc("POST /cycles/{id}/ballot", middleware.RequireParticipant(h.SubmitBallot))
	mux.HandleFunc("POST /admin/cycles/open", middleware.RequireAdminKey(salt, h.OpenCycle))

RequireParticipant reads X-Participant-ID and stores it on the context,
retrieved with ParticipantID(r.Context()). RequireAdminKey also validates
X-Admin-Key.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.NominateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}
*/
package middleware
