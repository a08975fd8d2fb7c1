// Package statemachine enumerates legal case statuses and the transitions
// allowed between them. It is pure and dependency-free: a transition
// table is a constant map, not something a library should own.
package statemachine

import (
	"errors"
	"fmt"

	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// ErrInvalidTransition is returned by AssertTransition when a transition
// is not present in the transition table. Callers should treat this as a
// bug-class error (spec §7 InvalidCaseTransition): fatal, logged, and
// surfaced through the failure branch rather than retried.
var ErrInvalidTransition = errors.New("invalid case status transition")

// transitions maps each status to the set of statuses it may move to.
var transitions = map[models.CaseStatus]map[models.CaseStatus]bool{
	models.StatusNew:             {models.StatusR1AckProcessing: true},
	models.StatusR1AckProcessing: {models.StatusExtracting: true},
	models.StatusExtracting: {
		models.StatusLLMStruct: true,
		models.StatusFailed:    true,
	},
	models.StatusLLMStruct: {
		models.StatusLLMSuggest: true,
		models.StatusFailed:     true,
	},
	models.StatusLLMSuggest: {
		models.StatusR2PostWidget: true,
		models.StatusFailed:       true,
	},
	models.StatusR2PostWidget: {models.StatusWaitDoctor: true},
	models.StatusWaitDoctor: {
		models.StatusDoctorAccepted: true,
		models.StatusDoctorDenied:   true,
	},
	models.StatusDoctorAccepted: {models.StatusR3PostRequest: true},
	models.StatusDoctorDenied:   {models.StatusWaitR1CleanupThumbs: true},
	models.StatusR3PostRequest:  {models.StatusWaitAppt: true},
	models.StatusWaitAppt: {
		models.StatusApptConfirmed: true,
		models.StatusApptDenied:    true,
	},
	models.StatusApptConfirmed:       {models.StatusWaitR1CleanupThumbs: true},
	models.StatusApptDenied:          {models.StatusWaitR1CleanupThumbs: true},
	models.StatusFailed:              {models.StatusWaitR1CleanupThumbs: true},
	models.StatusWaitR1CleanupThumbs: {models.StatusCleanupRunning: true},
	models.StatusCleanupRunning:      {models.StatusCleaned: true},
	// Legacy tombstone: accepted as a source for the single compatibility
	// edge into cleanup, never produced as a destination by any handler.
	// See DESIGN.md "Open Question decisions".
	models.StatusR1FinalReplyPosted: {models.StatusWaitR1CleanupThumbs: true},
	models.StatusCleaned:            {},
}

// AssertTransition fails with ErrInvalidTransition if to is not a legal
// successor of from. All status mutations must go through this guard.
func AssertTransition(from, to models.CaseStatus) error {
	successors, known := transitions[from]
	if !known {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTransition, from)
	}
	if !successors[to] {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status models.CaseStatus) bool {
	successors, known := transitions[status]
	return known && len(successors) == 0
}
