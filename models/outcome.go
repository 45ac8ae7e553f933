// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"errors"
	"fmt"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
	ErrCapacity     = errors.New("capacity exceeded")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// Outcome status constants
const (
	OutcomeOK          = "ok"
	OutcomeAlreadyDone = "already_done"
	OutcomeRejected    = "rejected"
)

// Rejection is an expected, caller-recoverable failure. Kind is one of the
// sentinel errors above and Reason is a stable machine-readable code.
type Rejection struct {
	Kind   error
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%v: %s", r.Kind, r.Reason)
}

func (r *Rejection) Unwrap() error {
	return r.Kind
}

// Reject builds a Rejection error.
func Reject(kind error, reason string) error {
	return &Rejection{Kind: kind, Reason: reason}
}

// Outcome is the structured result of an inbound operation.
type Outcome struct {
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func OK() Outcome {
	return Outcome{Status: OutcomeOK}
}

func AlreadyDone(reason string) Outcome {
	return Outcome{Status: OutcomeAlreadyDone, Reason: reason}
}

// Rejected converts a Rejection into an outcome.
func Rejected(r *Rejection) Outcome {
	return Outcome{Status: OutcomeRejected, Kind: KindName(r.Kind), Reason: r.Reason}
}

// OutcomeFor maps an operation error to an outcome. Errors that are not
// rejections are returned unchanged for the caller to treat as failures.
func OutcomeFor(err error) (Outcome, error) {
	if err == nil {
		return OK(), nil
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return Rejected(rej), nil
	}
	return Outcome{}, err
}

// KindName returns the wire name of a sentinel error kind.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
