package model

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. All of these are validation failures raised
// synchronously; they abort the enclosing transaction and are safe to
// show to an end user.
var (
	ErrRejectionReasonRequired = errors.New("Rejection reason is required when rejecting a lot")
	ErrOverrideReasonRequired  = errors.New("A QC override justification is required to approve a lot with failing results")
	ErrSendBackReasonRequired  = errors.New("A reason is required when sending a COA release back to review")
	ErrRetestReasonRequired    = errors.New("A reason is required when requesting a retest")
	ErrDeleteReasonRequired    = errors.New("A reason is required when deleting a record")
	ErrAuditReasonRequired     = errors.New("A reason is required when recording a reject or delete action")

	ErrResultNotEditable = errors.New("Test result can only be edited while in draft status")
	ErrResultNotDraft    = errors.New("Test result can only be deleted while in draft status")
	ErrLotNotDeletable   = errors.New("Lot can no longer be deleted once results have been recorded")

	ErrPermissionDenied = errors.New("You do not have permission to perform this action")

	ErrLotNotFound     = errors.New("Lot not found")
	ErrResultNotFound  = errors.New("Test result not found")
	ErrReleaseNotFound = errors.New("COA release not found")
	ErrRetestNotFound  = errors.New("Retest request not found")
)

// InvalidTransitionError is returned for a status change not present in the
// lot transition table. It names both states for the user-facing message.
type InvalidTransitionError struct {
	From LotStatus
	To   LotStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Invalid lot status transition from %s to %s", e.From, e.To)
}

// IsDomainError reports whether err belongs to the validation taxonomy above
// (as opposed to an infrastructure failure that should surface as a 500).
func IsDomainError(err error) bool {
	var it *InvalidTransitionError
	if errors.As(err, &it) {
		return true
	}
	for _, known := range []error{
		ErrRejectionReasonRequired, ErrOverrideReasonRequired, ErrSendBackReasonRequired,
		ErrRetestReasonRequired, ErrDeleteReasonRequired, ErrAuditReasonRequired,
		ErrResultNotEditable, ErrResultNotDraft, ErrLotNotDeletable,
		ErrPermissionDenied,
		ErrLotNotFound, ErrResultNotFound, ErrReleaseNotFound, ErrRetestNotFound,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
