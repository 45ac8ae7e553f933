// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the gamenight API.

# Handler Types

  - CycleHandler: status, results, ballots, attendance, runoff picks, nominations
  - AdminHandler: manual open/close, reminders, candidates, participants

Both wrap a *lifecycle.Manager:

	cycleHandler := handlers.NewCycleHandler(mgr)

# Responses

Actions respond with the outcome and, on success, any data:

	{"outcome": {"status": "rejected", "kind": "invalid_input", "reason": "ranking_incomplete"}}

StatusFor maps outcomes to HTTP status codes: already_done is 200,
unauthorized 403, not_found 404, conflict/invalid_state/capacity 409 and
invalid_input 422. Infrastructure errors are logged and answered with a
generic 500.

# Cycle IDs

Paths take a numeric cycle ID or "current". A numeric ID that is not the
current cycle is rejected with cycle_not_current.
*/
package handlers
