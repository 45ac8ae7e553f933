// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the gamenight API.

	mux := router.NewRouter(mgr, cfg)

# Endpoints

Health:

	GET /health

Public views:

	GET /cycle        - Current cycle, ballot and attendance
	GET /results      - Latest finished cycle
	GET /nominations  - Nomination pool

Participant actions (X-Participant-ID):

	POST /cycles/{id}/ballot       - Submit a full ranking
	GET  /cycles/current/ballot    - Own ballot
	POST /cycles/{id}/attendance   - Attending or not
	POST /cycles/{id}/runoff-pick  - Pick during a runoff
	POST /nominations              - Queue a candidate

Admin (X-Participant-ID and X-Admin-Key):

	POST   /admin/cycles/open
	POST   /admin/cycles/{id}/close
	POST   /admin/reminders
	POST   /admin/candidates
	DELETE /admin/candidates/{name}
	POST   /admin/candidates/merge
	POST   /admin/candidates/rename
	POST   /admin/candidates/seed
	GET    /admin/participants
	POST   /admin/participants
	DELETE /admin/participants/{pid}
*/
package router
