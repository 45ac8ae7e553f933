// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Outcomes

Inbound operations return an Outcome rather than an error when the request
itself was the problem:

	ok            the action took effect
	already_done  nothing to do (duplicate nomination, cycle already open)
	rejected      refused; Kind and Reason say why

Code inside a transaction returns Reject(kind, reason) and the caller turns
it into an outcome with OutcomeFor. Any other error is an infrastructure
failure.

# Domain Types

  - Cycle: status, timestamps, winner and runoff state
  - Candidate, BallotCandidate: names on a ballot
  - BallotScore, BallotEntry: one ranked score
  - Result: a candidate's average over attending ballots
  - RunoffTally: picks per candidate in a round
  - Nomination, Participant, Job

# Constants

Cycle status:

	StatusOpen      = "open"
	StatusRunoff    = "runoff"
	StatusClosed    = "closed"
	StatusPublished = "published"

Result notes say how the winner was decided: tallied, majority, no_votes,
round_cap, forced, or no_ballots.
*/
package models
