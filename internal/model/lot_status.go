package model

import "strings"

// LotStatus is the lifecycle state of a lot
type LotStatus string

const (
	StatusAwaitingResults LotStatus = "AWAITING_RESULTS"
	StatusPartialResults  LotStatus = "PARTIAL_RESULTS"
	StatusNeedsAttention  LotStatus = "NEEDS_ATTENTION"
	StatusUnderReview     LotStatus = "UNDER_REVIEW"
	StatusAwaitingRelease LotStatus = "AWAITING_RELEASE"
	StatusApproved        LotStatus = "APPROVED"
	StatusReleased        LotStatus = "RELEASED"
	StatusRejected        LotStatus = "REJECTED"
)

// QCOverridePrefix marks a stored justification as a QC override of a failing result
const QCOverridePrefix = "[QC Override] "

// lotTransitions is the single source of truth for legal status changes.
// RELEASED is terminal. Re-entry from REJECTED is deliberately asymmetric:
// a rejected lot resumes either at AWAITING_RELEASE or at NEEDS_ATTENTION.
var lotTransitions = map[LotStatus][]LotStatus{
	StatusAwaitingResults: {StatusPartialResults, StatusNeedsAttention, StatusUnderReview, StatusRejected},
	StatusPartialResults:  {StatusNeedsAttention, StatusUnderReview, StatusRejected},
	StatusNeedsAttention:  {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview:     {StatusAwaitingRelease, StatusNeedsAttention, StatusRejected},
	StatusAwaitingRelease: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusReleased, StatusRejected},
	StatusReleased:        {},
	StatusRejected:        {StatusAwaitingRelease, StatusNeedsAttention},
}

// AllLotStatuses lists every defined status (stable order, used by tests and dashboard)
var AllLotStatuses = []LotStatus{
	StatusAwaitingResults,
	StatusPartialResults,
	StatusNeedsAttention,
	StatusUnderReview,
	StatusAwaitingRelease,
	StatusApproved,
	StatusReleased,
	StatusRejected,
}

// CanTransition reports whether from -> to is an edge of the transition table
func CanTransition(from, to LotStatus) bool {
	for _, next := range lotTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a requested status change against the transition table
// and the justification rules. It is a pure function over plain data;
// persistence is the caller's concern.
//
// When setReason is true the caller must overwrite the lot's reason field
// with storedReason (possibly empty, which clears it):
//
//   - Entering REJECTED requires a non-empty reason (stored verbatim, trimmed).
//   - NEEDS_ATTENTION -> APPROVED is a QC override and requires a reason,
//     stored with the QCOverridePrefix.
//   - Leaving REJECTED for AWAITING_RELEASE clears the stored reason.
//   - Any edge not in the table fails with InvalidTransitionError.
func Transition(from, to LotStatus, reason string) (storedReason string, setReason bool, err error) {
	if !CanTransition(from, to) {
		return "", false, &InvalidTransitionError{From: from, To: to}
	}

	reason = strings.TrimSpace(reason)

	switch {
	case to == StatusRejected:
		if reason == "" {
			return "", false, ErrRejectionReasonRequired
		}
		return reason, true, nil

	case from == StatusNeedsAttention && to == StatusApproved:
		// QC override of a failing result
		if reason == "" {
			return "", false, ErrOverrideReasonRequired
		}
		return QCOverridePrefix + reason, true, nil

	case from == StatusRejected && to == StatusAwaitingRelease:
		// Resubmission clears the old rejection reason
		return "", true, nil
	}

	return "", false, nil
}
