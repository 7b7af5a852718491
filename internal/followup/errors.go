package followup

import "deal_followup_backend/platform/apperr"

// notActionable is the single message callers outside the process see for
// both a missing and an already processed record.
const notActionable = "follow-up not found or already processed"

var (
	// ErrNotFound means no record has the requested id.
	ErrNotFound = apperr.NotFound(notActionable)
	// ErrAlreadyProcessed means the record is already sent or dismissed.
	ErrAlreadyProcessed = apperr.NotFound(notActionable)
	// ErrDuplicatePending means the deal already has a pending record.
	ErrDuplicatePending = apperr.Conflict("a pending follow-up already exists for this deal")
	// ErrInvalidTransition means a patch would break the lifecycle rules.
	ErrInvalidTransition = apperr.Validation("invalid follow-up state transition")
	// ErrInvalidRecord means a record is missing required fields.
	ErrInvalidRecord = apperr.Validation("invalid follow-up record")
)
