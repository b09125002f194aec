package service

import (
	"errors"
	"strings"
	"testing"

	"go-lims-ws/internal/model"

	"github.com/google/uuid"
)

func TestCreateLotUniqueNumbers(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	mustCreateLot(t, env, "LOT-001", product.ID)

	_, err := env.lots.CreateLot(&CreateLotRequest{
		LotNumber:       "LOT-001",
		ReferenceNumber: "REF-OTHER",
		LotType:         model.LotTypeStandard,
		ProductIDs:      []uuid.UUID{product.ID},
	}, techActor)
	if !errors.Is(err, ErrLotNumberExists) {
		t.Fatalf("expected ErrLotNumberExists, got %v", err)
	}

	_, err = env.lots.CreateLot(&CreateLotRequest{
		LotNumber:       "LOT-002",
		ReferenceNumber: "REF-LOT-001",
		LotType:         model.LotTypeStandard,
		ProductIDs:      []uuid.UUID{product.ID},
	}, techActor)
	if !errors.Is(err, ErrReferenceNumberExists) {
		t.Fatalf("expected ErrReferenceNumberExists, got %v", err)
	}
}

func TestCreateLotRejectsMalformedNumbers(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)

	_, err := env.lots.CreateLot(&CreateLotRequest{
		LotNumber:       "lot 001",
		ReferenceNumber: "REF-001",
		LotType:         model.LotTypeStandard,
		ProductIDs:      []uuid.UUID{product.ID},
	}, techActor)
	if err == nil || !strings.Contains(err.Error(), "lot_number") {
		t.Fatalf("expected a lot_number validation error, got %v", err)
	}
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	_, err := env.lots.UpdateStatus(lot.ID, model.StatusApproved, "", qcActor)
	var invalid *model.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestRejectLot(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	// Rejection is a guarded edge
	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusRejected, "bad paperwork", techActor); !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("tech reject: expected ErrPermissionDenied, got %v", err)
	}
	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusRejected, "", qcActor); !errors.Is(err, model.ErrRejectionReasonRequired) {
		t.Fatalf("reject without reason: expected ErrRejectionReasonRequired, got %v", err)
	}

	rejected, err := env.lots.UpdateStatus(lot.ID, model.StatusRejected, "  bad paperwork  ", qcActor)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected || rejected.RejectionReason != "bad paperwork" {
		t.Fatalf("rejection not stored verbatim trimmed: %+v", rejected)
	}

	// The reject audit entry carries the reason
	entries := auditEntries(t, env, "lots", lot.ID)
	if entries[0].Action != model.AuditReject || entries[0].Reason != "bad paperwork" {
		t.Fatalf("reject audit entry = %+v", entries[0])
	}
}

func TestQCOverrideApproval(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	// Drive the lot into NEEDS_ATTENTION with a failing approved result
	result := mustCreateResult(t, env, lot.ID, "Micro", "Positive", "Negative")
	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve failing result: %v", err)
	}
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusNeedsAttention {
		t.Fatalf("lot status = %s, want NEEDS_ATTENTION", lot.Status)
	}

	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusApproved, "", qcActor); !errors.Is(err, model.ErrOverrideReasonRequired) {
		t.Fatalf("override without reason: expected ErrOverrideReasonRequired, got %v", err)
	}
	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusApproved, "verified retained sample", techActor); !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("tech override: expected ErrPermissionDenied, got %v", err)
	}

	overridden, err := env.lots.UpdateStatus(lot.ID, model.StatusApproved, "verified retained sample", qcActor)
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if overridden.Status != model.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", overridden.Status)
	}
	if !strings.HasPrefix(overridden.RejectionReason, model.QCOverridePrefix) {
		t.Fatalf("override justification %q must carry the QC override prefix", overridden.RejectionReason)
	}

	// An approved lot is human-decided: recalculation leaves it alone
	second := mustCreateResult(t, env, lot.ID, "Moisture", "99", "5-10")
	if _, err := env.results.ApproveResult(second.ID, qcActor); err != nil {
		t.Fatalf("approve second: %v", err)
	}
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusApproved {
		t.Fatalf("recalculation must not move a human-decided lot, got %s", lot.Status)
	}
}

func TestEnteringAwaitingReleaseCreatesReleaseUnits(t *testing.T) {
	env := newTestEnv(t)
	first := mustCreateProduct(t, env, "SKU-1", nil)
	second := mustCreateProduct(t, env, "SKU-2", nil)
	lot := mustCreateLot(t, env, "LOT-001", first.ID, second.ID)

	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")
	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusAwaitingRelease, "", qcActor); err != nil {
		t.Fatalf("submit for release: %v", err)
	}

	releases, err := env.releaseRepo.FindByLotID(lot.ID)
	if err != nil {
		t.Fatalf("load releases: %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("releases = %d, want one per associated product", len(releases))
	}
	for _, release := range releases {
		if release.Status != model.ReleaseAwaiting {
			t.Fatalf("release status = %s, want awaiting_release", release.Status)
		}
	}

	// Reject and resubmit: the rejection reason clears and no duplicate
	// release units appear
	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusRejected, "label misprint", qcActor); err != nil {
		t.Fatalf("reject: %v", err)
	}
	resubmitted, err := env.lots.UpdateStatus(lot.ID, model.StatusAwaitingRelease, "", qcActor)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.RejectionReason != "" {
		t.Fatalf("resubmission must clear the rejection reason, got %q", resubmitted.RejectionReason)
	}

	releases, err = env.releaseRepo.FindByLotID(lot.ID)
	if err != nil {
		t.Fatalf("reload releases: %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("releases after resubmission = %d, must not duplicate", len(releases))
	}
}

func TestDeleteLotOnlyBeforeTesting(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	if err := env.lots.DeleteLot(lot.ID, "duplicate intake", techActor); !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("tech delete: expected ErrPermissionDenied, got %v", err)
	}
	if err := env.lots.DeleteLot(lot.ID, "", qcActor); !errors.Is(err, model.ErrDeleteReasonRequired) {
		t.Fatalf("delete without reason: expected ErrDeleteReasonRequired, got %v", err)
	}

	// Once a result exists the lot is permanent record
	withResults := mustCreateLot(t, env, "LOT-002", product.ID)
	mustCreateResult(t, env, withResults.ID, "Micro", "ND", "Negative")
	if err := env.lots.DeleteLot(withResults.ID, "duplicate intake", qcActor); !errors.Is(err, model.ErrLotNotDeletable) {
		t.Fatalf("delete after results: expected ErrLotNotDeletable, got %v", err)
	}

	if err := env.lots.DeleteLot(lot.ID, "duplicate intake", qcActor); err != nil {
		t.Fatalf("delete fresh lot: %v", err)
	}
	if _, err := env.lots.GetLotByID(lot.ID); !errors.Is(err, model.ErrLotNotFound) {
		t.Fatalf("deleted lot must not be retrievable, got %v", err)
	}

	entries := auditEntries(t, env, "lots", lot.ID)
	if entries[0].Action != model.AuditDelete || entries[0].Reason != "duplicate intake" {
		t.Fatalf("delete audit entry = %+v", entries[0])
	}
}
