package service

import (
	"go-lims-ws/internal/model"
	"go-lims-ws/pkg/specmatch"
)

// StatusPolicy decides which status a lot should move toward given the
// aggregate state of its test results. The exact thresholds are a product
// decision, so the policy sits behind this interface and can be swapped
// without touching the state machine.
type StatusPolicy interface {
	// Evaluate never returns APPROVED, RELEASED or REJECTED: those states
	// require an explicit human action.
	Evaluate(results []model.TestResult, requiredTestTypes []string) model.LotStatus
}

// defaultStatusPolicy:
//   - no results recorded            -> AWAITING_RESULTS
//   - any approved result failing    -> NEEDS_ATTENTION
//   - all required tests recorded, every result approved and passing
//     -> UNDER_REVIEW
//   - anything in between            -> PARTIAL_RESULTS
type defaultStatusPolicy struct{}

func NewDefaultStatusPolicy() StatusPolicy {
	return &defaultStatusPolicy{}
}

func (p *defaultStatusPolicy) Evaluate(results []model.TestResult, requiredTestTypes []string) model.LotStatus {
	if len(results) == 0 {
		return model.StatusAwaitingResults
	}

	recorded := make(map[string]bool, len(results))
	approvedCount := 0
	failing := false

	for _, result := range results {
		recorded[result.TestType] = true
		if result.Status != model.ResultApproved {
			continue
		}
		approvedCount++
		if !result.Passes(specmatch.Matches) {
			failing = true
		}
	}

	// A failing approved result always needs attention, even mid-intake
	if failing {
		return model.StatusNeedsAttention
	}

	for _, required := range requiredTestTypes {
		if !recorded[required] {
			return model.StatusPartialResults
		}
	}

	if approvedCount == len(results) {
		return model.StatusUnderReview
	}
	return model.StatusPartialResults
}
