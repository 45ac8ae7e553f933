// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/gamenight/cliparse"
	"github.com/danielhkuo/gamenight/handlers"
	"github.com/danielhkuo/gamenight/lifecycle"
	"github.com/danielhkuo/gamenight/middleware"
)

func NewRouter(mgr *lifecycle.Manager, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	cycleHandler := handlers.NewCycleHandler(mgr)
	adminHandler := handlers.NewAdminHandler(mgr)

	participant := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireParticipant(h))
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdminKey(cfg.AdminKeySalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Read-only views (public)
	mux.HandleFunc("GET /cycle", middleware.WithLogging(cycleHandler.GetStatus))
	mux.HandleFunc("GET /results", middleware.WithLogging(cycleHandler.GetResults))
	mux.HandleFunc("GET /nominations", middleware.WithLogging(cycleHandler.ListNominations))

	// Participant actions
	mux.HandleFunc("POST /cycles/{id}/ballot", participant(cycleHandler.SubmitBallot))
	mux.HandleFunc("GET /cycles/current/ballot", participant(cycleHandler.GetMyBallot))
	mux.HandleFunc("POST /cycles/{id}/attendance", participant(cycleHandler.SetAttendance))
	mux.HandleFunc("POST /cycles/{id}/runoff-pick", participant(cycleHandler.SubmitRunoffPick))
	mux.HandleFunc("POST /nominations", participant(cycleHandler.Nominate))

	// Admin operations
	mux.HandleFunc("POST /admin/cycles/open", admin(adminHandler.OpenCycle))
	mux.HandleFunc("POST /admin/cycles/{id}/close", admin(adminHandler.ForceClose))
	mux.HandleFunc("POST /admin/reminders", admin(adminHandler.SendReminders))
	mux.HandleFunc("POST /admin/candidates", admin(adminHandler.AddCandidate))
	mux.HandleFunc("DELETE /admin/candidates/{name}", admin(adminHandler.RemoveCandidate))
	mux.HandleFunc("POST /admin/candidates/merge", admin(adminHandler.MergeCandidates))
	mux.HandleFunc("POST /admin/candidates/rename", admin(adminHandler.RenameCandidate))
	mux.HandleFunc("POST /admin/candidates/seed", admin(adminHandler.SeedCandidates))
	mux.HandleFunc("GET /admin/participants", admin(adminHandler.ListParticipants))
	mux.HandleFunc("POST /admin/participants", admin(adminHandler.AddParticipant))
	mux.HandleFunc("DELETE /admin/participants/{pid}", admin(adminHandler.RemoveParticipant))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("gamenight API v1"))
	})

	return mux
}
