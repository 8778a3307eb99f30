package caseflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel precondition errors. These reflect business-rule violations, not
// transient failures, and are never retried by the engine.
var (
	ErrCaseNotFound   = errors.New("case not found")
	ErrTaskNotFound   = errors.New("task not found")
	ErrAlreadyClaimed = errors.New("case already claimed by an infusion organization")
	ErrAlreadyPushed  = errors.New("pharmacy order already pushed for this case")
	ErrNotYetPushed   = errors.New("pharmacy order has not been pushed")

	// ErrClearanceRequiresAcknowledgement rejects a clear request without
	// patient_acknowledged_cost.
	ErrClearanceRequiresAcknowledgement = errors.New("financial clearance requires patient cost acknowledgement")

	// ErrWelcomeCallNotReached rejects completing a welcome call whose payload
	// records the patient as not reached.
	ErrWelcomeCallNotReached = errors.New("welcome call cannot be completed: patient was not reached")
)

// InvalidTransitionError names both statuses of a disallowed edge.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// BlockersError carries the unmet preconditions that rejected an advancement.
type BlockersError struct {
	Blockers []Blocker
}

func (e *BlockersError) Error() string {
	msgs := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		msgs[i] = b.Message
	}
	return "transition blocked: " + strings.Join(msgs, "; ")
}

// InvalidFulfillmentError names both fulfillment statuses of a rejected update.
type InvalidFulfillmentError struct {
	From FulfillmentStatus
	To   FulfillmentStatus
}

func (e *InvalidFulfillmentError) Error() string {
	return fmt.Sprintf("invalid fulfillment transition from %s to %s", e.From, e.To)
}

// ValidationError reports malformed input; no state change has occurred.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsPrecondition reports whether err is a business-rule rejection (as opposed
// to a validation or infrastructure error). Callers use this to map errors to
// HTTP 409/422 rather than 500.
func IsPrecondition(err error) bool {
	var (
		it *InvalidTransitionError
		bl *BlockersError
		ff *InvalidFulfillmentError
	)
	if errors.As(err, &it) || errors.As(err, &bl) || errors.As(err, &ff) {
		return true
	}
	return errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrAlreadyPushed) ||
		errors.Is(err, ErrNotYetPushed) ||
		errors.Is(err, ErrClearanceRequiresAcknowledgement) ||
		errors.Is(err, ErrWelcomeCallNotReached)
}
