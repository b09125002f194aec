package model

import (
	"errors"
	"testing"
)

// allowedEdges mirrors the workflow's legal moves; everything else must be
// rejected.
var allowedEdges = map[LotStatus][]LotStatus{
	StatusAwaitingResults: {StatusPartialResults, StatusNeedsAttention, StatusUnderReview, StatusRejected},
	StatusPartialResults:  {StatusNeedsAttention, StatusUnderReview, StatusRejected},
	StatusNeedsAttention:  {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview:     {StatusAwaitingRelease, StatusNeedsAttention, StatusRejected},
	StatusAwaitingRelease: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusReleased, StatusRejected},
	StatusReleased:        {},
	StatusRejected:        {StatusAwaitingRelease, StatusNeedsAttention},
}

func TestCanTransitionTable(t *testing.T) {
	for _, from := range AllLotStatuses {
		allowed := map[LotStatus]bool{}
		for _, to := range allowedEdges[from] {
			allowed[to] = true
		}
		for _, to := range AllLotStatuses {
			if got := CanTransition(from, to); got != allowed[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestReleasedIsTerminal(t *testing.T) {
	for _, to := range AllLotStatuses {
		if CanTransition(StatusReleased, to) {
			t.Errorf("RELEASED must be terminal, but %s is reachable", to)
		}
	}
}

func TestTransitionRejectRequiresReason(t *testing.T) {
	if _, _, err := Transition(StatusUnderReview, StatusRejected, ""); !errors.Is(err, ErrRejectionReasonRequired) {
		t.Fatalf("expected ErrRejectionReasonRequired, got %v", err)
	}
	if _, _, err := Transition(StatusUnderReview, StatusRejected, "   "); !errors.Is(err, ErrRejectionReasonRequired) {
		t.Fatalf("whitespace-only reason must be rejected, got %v", err)
	}

	stored, set, err := Transition(StatusUnderReview, StatusRejected, "  contamination found  ")
	if err != nil {
		t.Fatalf("reject with reason: %v", err)
	}
	if !set {
		t.Fatal("rejection must set the stored reason")
	}
	if stored != "contamination found" {
		t.Fatalf("reason must be stored verbatim trimmed, got %q", stored)
	}
}

func TestTransitionOverrideApproval(t *testing.T) {
	if _, _, err := Transition(StatusNeedsAttention, StatusApproved, ""); !errors.Is(err, ErrOverrideReasonRequired) {
		t.Fatalf("expected ErrOverrideReasonRequired, got %v", err)
	}

	stored, set, err := Transition(StatusNeedsAttention, StatusApproved, "reviewed against retained sample")
	if err != nil {
		t.Fatalf("override with reason: %v", err)
	}
	if !set {
		t.Fatal("override must set the stored reason")
	}
	want := QCOverridePrefix + "reviewed against retained sample"
	if stored != want {
		t.Fatalf("stored reason = %q, want %q", stored, want)
	}

	// A plain approval from AWAITING_RELEASE carries no override semantics
	stored, set, err = Transition(StatusAwaitingRelease, StatusApproved, "")
	if err != nil {
		t.Fatalf("plain approval: %v", err)
	}
	if set || stored != "" {
		t.Fatalf("plain approval must not touch the reason, got (%q, %v)", stored, set)
	}
}

func TestTransitionResubmissionClearsReason(t *testing.T) {
	stored, set, err := Transition(StatusRejected, StatusAwaitingRelease, "")
	if err != nil {
		t.Fatalf("resubmission: %v", err)
	}
	if !set || stored != "" {
		t.Fatalf("resubmission must clear the stored reason, got (%q, %v)", stored, set)
	}

	// The other exit from REJECTED keeps whatever reason is stored
	stored, set, err = Transition(StatusRejected, StatusNeedsAttention, "")
	if err != nil {
		t.Fatalf("rejected -> needs attention: %v", err)
	}
	if set || stored != "" {
		t.Fatalf("rejected -> needs attention must not touch the reason, got (%q, %v)", stored, set)
	}
}

func TestTransitionInvalidEdge(t *testing.T) {
	_, _, err := Transition(StatusAwaitingResults, StatusApproved, "whatever")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StatusAwaitingResults || invalid.To != StatusApproved {
		t.Fatalf("error must name both states, got %+v", invalid)
	}
	want := "Invalid lot status transition from AWAITING_RESULTS to APPROVED"
	if invalid.Error() != want {
		t.Fatalf("message = %q, want %q", invalid.Error(), want)
	}
}
