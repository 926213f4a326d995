package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is returned by the external search when a profile or its
	// photos are private. It affects a single candidate only.
	ErrAccessDenied = errors.New("access denied")
	// ErrMalformedCandidate marks a candidate missing mandatory fields.
	ErrMalformedCandidate = errors.New("malformed candidate")
	// ErrDeactivatedAccount marks a candidate whose account was deleted or banned.
	ErrDeactivatedAccount = errors.New("account deactivated")
	// ErrDuplicateRequest is returned when a formulation is already in flight.
	ErrDuplicateRequest = errors.New("request is already in progress")
)

// CriteriaError is returned when a mandatory search attribute cannot be
// resolved from the user's profile.
type CriteriaError struct {
	Field  string
	Reason string
}

func (e *CriteriaError) Error() string {
	return fmt.Sprintf("cannot form search criteria: %s: %s", e.Field, e.Reason)
}
