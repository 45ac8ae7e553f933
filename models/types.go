package models

import "time"

// Cycle status constants
const (
	StatusOpen      = "open"
	StatusRunoff    = "runoff"
	StatusClosed    = "closed"
	StatusPublished = "published"
)

// Resolution notes attached to published results
const (
	NoteMajority  = "majority"
	NoteTallied   = "tallied"
	NoteNoVotes   = "no_votes"
	NoteRoundCap  = "round_cap"
	NoteForced    = "forced"
	NoteNoBallots = "no_ballots"
)

// Scheduled job kinds
const (
	JobResolveRunoff = "resolve_runoff"
)

// Request types

type SubmitBallotRequest struct {
	// Most preferred first.
	CandidateIDs []int64 `json:"candidate_ids"`
}

type RunoffPickRequest struct {
	CandidateID int64 `json:"candidate_id"`
}

type AttendanceRequest struct {
	Attending bool `json:"attending"`
}

type NominateRequest struct {
	Name string `json:"name"`
}

type CandidateRequest struct {
	Name string `json:"name"`
}

type SeedRequest struct {
	Names []string `json:"names"`
}

type MergeRequest struct {
	From string `json:"from"`
	Into string `json:"into"`
}

type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ParticipantRequest struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
}

// Response types

type OutcomeResponse struct {
	Outcome Outcome `json:"outcome"`
	Data    any     `json:"data,omitempty"`
}

type ReminderReport struct {
	CycleID int64 `json:"cycle_id"`
	Sent    int   `json:"sent"`
	Failed  int   `json:"failed"`
}

type CycleStatus struct {
	Cycle            Cycle             `json:"cycle"`
	Candidates       []BallotCandidate `json:"candidates"`
	Attending        []string          `json:"attending"`
	NotAttending     []string          `json:"not_attending"`
	VoterCount       int               `json:"voter_count"`
	RunoffCandidates []Candidate       `json:"runoff_candidates,omitempty"`
}

type CycleResults struct {
	Cycle   Cycle      `json:"cycle"`
	Ranking []Result   `json:"ranking"`
	Winner  *Candidate `json:"winner,omitempty"`
}

// Domain types

type Cycle struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	WinnerID        *int64     `json:"winning_candidate_id,omitempty"`
	AnnouncementRef *string    `json:"announcement_ref,omitempty"`
	RunoffRound     int        `json:"runoff_round"`
	RunoffDeadline  *time.Time `json:"runoff_deadline,omitempty"`
}

// Current reports whether the cycle still accepts participant input.
func (c Cycle) Current() bool {
	return c.Status == StatusOpen || c.Status == StatusRunoff
}

type Candidate struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	AddedBy string    `json:"added_by,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

type BallotCandidate struct {
	Candidate
	IsCarryOver bool    `json:"is_carry_over"`
	NominatedBy *string `json:"nominated_by,omitempty"`
}

type Attendance struct {
	ParticipantID string    `json:"participant_id"`
	Attending     bool      `json:"attending"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BallotScore is one ranked entry of a ballot. Higher is better.
type BallotScore struct {
	CandidateID int64 `json:"candidate_id"`
	Score       int   `json:"score"`
}

type BallotEntry struct {
	CandidateID int64  `json:"candidate_id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
}

// ScoreRow is a single counted ballot entry fed to the tally.
type ScoreRow struct {
	CandidateID int64
	Name        string
	Score       int
}

type RunoffPick struct {
	ParticipantID string `json:"participant_id"`
	CandidateID   int64  `json:"candidate_id"`
}

type Nomination struct {
	ID          int64     `json:"id"`
	CandidateID int64     `json:"candidate_id"`
	Name        string    `json:"name"`
	NominatedBy string    `json:"nominated_by"`
	NominatedAt time.Time `json:"nominated_at"`
}

type Participant struct {
	ID          string    `json:"participant_id"`
	DisplayName string    `json:"display_name,omitempty"`
	AddedBy     string    `json:"added_by"`
	AddedAt     time.Time `json:"added_at"`
}

type Job struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	CycleID int64     `json:"cycle_id"`
	Round   int       `json:"round"`
	RunAt   time.Time `json:"run_at"`
}

// Tally types

type Result struct {
	CandidateID  int64   `json:"candidate_id"`
	Name         string  `json:"name"`
	AverageScore float64 `json:"average_score"`
	VoteCount    int     `json:"vote_count"`
}

type RunoffTally struct {
	CandidateID int64  `json:"candidate_id"`
	Name        string `json:"name"`
	Votes       int    `json:"votes"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
