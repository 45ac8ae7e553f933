// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the gamenight server.

gamenight runs a weekly group decision: a ballot of candidates opens on a
schedule, allow-listed participants mark attendance and rank every
candidate, and at close the highest average score wins. Ties go to a
time-boxed runoff of single picks. The top finishers carry over into the
next week's ballot alongside queued nominations.

# Starting the Server

	DATABASE_URL=gamenight.db ADMIN_KEY_SALT=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --admin-ids 1234

Print the admin key for a participant:

	go run . adminkey 1234 --admin-salt ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC

Everything else has a default; see package cliparse.

# Architecture

  - store: Transactional persistence over database/sql
  - tally: Average scoring, tie detection, carry-over selection
  - runoff: Tie-break rounds and their deadlines
  - nomination: The pool of candidates queued for the next cycle
  - lifecycle: Open, close, reminders and every inbound action
  - scheduler: Weekly triggers and runoff deadline timers
  - notify: Outbound events (log, webhook)
  - handlers, router, middleware: HTTP surface
  - db, cliparse, auth, clock: Supporting pieces

On start the scheduler re-arms any runoff deadline persisted by a previous
process, so a restart mid-runoff resolves on time.
*/
package main
