// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are layered, highest precedence first:

 1. CLI flags
 2. Environment variables (a .env file is loaded first and never overrides
    variables already set)
 3. YAML file from --config or GAMENIGHT_CONFIG
 4. Defaults

# CLI Flags and Environment Variables

	-p, --port             PORT                        (default 3318)
	-d, --database-url     DATABASE_URL                (required)
	-t, --database-type    DATABASE_TYPE               sqlite or postgres
	--admin-salt           ADMIN_KEY_SALT              (required)
	--admin-ids            ADMIN_IDS                   comma separated
	--webhook-url          WEBHOOK_URL
	--timezone             TIMEZONE                    (default America/Los_Angeles)
	--open-day/-time       VOTE_OPEN_DAY/_TIME         (tuesday 09:00)
	--close-day/-time      VOTE_CLOSE_DAY/_TIME        (friday 09:00)
	--reminder-day/-time   REMINDER_DAY/_TIME          (thursday 18:00)
	--runoff-policy        RUNOFF_POLICY               window or weekly
	--runoff-minutes       RUNOFF_DURATION_MINUTES     (120)
	--runoff-day/-time     RUNOFF_DAY/_TIME            weekly policy only
	--max-candidates       MAX_CANDIDATES              (10)
	--carry-over           CARRY_OVER_COUNT            (5)
	--max-nominations      MAX_NOMINATIONS_PER_PERSON  (1)

# YAML File

	port: 3318
	database_url: gamenight.db
	admin_ids: ["1234", "5678"]
	schedule:
	  open_day: tuesday
	  open_time: "09:00"
	runoff:
	  policy: weekly
	  day: saturday
	  time: "12:00"

# Derived Settings

SchedulerConfig, DeadlinePolicy and LifecycleConfig turn the raw strings
into the types the engine consumes. ParseFlags already validated them, so
main can ignore their errors only after a successful parse.
*/
package cliparse
