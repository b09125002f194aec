package service

import (
	"errors"
	"testing"

	"go-lims-ws/internal/model"

	"github.com/google/uuid"
)

func TestCreateResultDraftAndRecalculate(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", map[string]string{"Micro": "Negative"})
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	if lot.Status != model.StatusAwaitingResults {
		t.Fatalf("new lot status = %s, want AWAITING_RESULTS", lot.Status)
	}

	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "")

	if result.Status != model.ResultDraft {
		t.Fatalf("new result status = %s, want draft", result.Status)
	}
	// Specification is snapshotted from the product rule when not given
	if result.Specification != "Negative" {
		t.Fatalf("specification = %q, want snapshot of product rule", result.Specification)
	}

	// A recorded but unapproved result moves the lot off AWAITING_RESULTS
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusPartialResults {
		t.Fatalf("lot status = %s, want PARTIAL_RESULTS", lot.Status)
	}

	entries := auditEntries(t, env, "test_results", result.ID)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1 insert", len(entries))
	}
	if entries[0].Action != model.AuditInsert {
		t.Fatalf("audit action = %s, want insert", entries[0].Action)
	}
}

func TestUpdateResultDiffOnlyAudit(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	result := mustCreateResult(t, env, lot.ID, "Moisture", "6.0", "5-10")

	newValue := "7.2"
	if _, err := env.results.UpdateResult(result.ID, &UpdateResultRequest{ResultValue: &newValue}, techActor); err != nil {
		t.Fatalf("update result: %v", err)
	}

	entries := auditEntries(t, env, "test_results", result.ID)
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want insert + update", len(entries))
	}
	update := entries[0] // newest first
	if update.Action != model.AuditUpdate {
		t.Fatalf("audit action = %s, want update", update.Action)
	}
	// Only the changed field appears in the diff
	if len(update.NewValues) != 1 || update.NewValues["result_value"] != "7.2" {
		t.Fatalf("new_values = %v, want only result_value", update.NewValues)
	}
	if update.OldValues["result_value"] != "6.0" {
		t.Fatalf("old_values = %v, want previous result_value", update.OldValues)
	}
}

func TestUpdateResultNoopSkipsAudit(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	result := mustCreateResult(t, env, lot.ID, "Moisture", "6.0", "5-10")

	same := "6.0"
	if _, err := env.results.UpdateResult(result.ID, &UpdateResultRequest{ResultValue: &same}, techActor); err != nil {
		t.Fatalf("noop update: %v", err)
	}

	entries := auditEntries(t, env, "test_results", result.ID)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, a no-op edit must not be audited", len(entries))
	}
}

func TestApprovalLocksResult(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")

	// Lab techs cannot approve
	if _, err := env.results.ApproveResult(result.ID, techActor); !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("tech approval: expected ErrPermissionDenied, got %v", err)
	}

	approved, err := env.results.ApproveResult(result.ID, qcActor)
	if err != nil {
		t.Fatalf("approve result: %v", err)
	}
	if approved.Status != model.ResultApproved || approved.ApprovedBy != qcActor.ID || approved.ApprovedAt == nil {
		t.Fatalf("approval metadata not set: %+v", approved)
	}

	// Approved results are locked against edits
	edited := "Positive"
	if _, err := env.results.UpdateResult(result.ID, &UpdateResultRequest{ResultValue: &edited}, techActor); !errors.Is(err, model.ErrResultNotEditable) {
		t.Fatalf("edit approved: expected ErrResultNotEditable, got %v", err)
	}

	// All results approved and passing -> UNDER_REVIEW
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusUnderReview {
		t.Fatalf("lot status = %s, want UNDER_REVIEW", lot.Status)
	}

	// Revert reopens the draft and clears approval metadata
	reverted, err := env.results.RevertResult(result.ID, qcActor)
	if err != nil {
		t.Fatalf("revert result: %v", err)
	}
	if reverted.Status != model.ResultDraft || reverted.ApprovedBy != "" || reverted.ApprovedAt != nil {
		t.Fatalf("revert must clear approval metadata: %+v", reverted)
	}
	// PARTIAL_RESULTS is not reachable from UNDER_REVIEW, so recalculation
	// keeps the current status
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusUnderReview {
		t.Fatalf("lot status after revert = %s, want UNDER_REVIEW retained", lot.Status)
	}
}

func TestFailingApprovedResultNeedsAttention(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	result := mustCreateResult(t, env, lot.ID, "Micro", "Positive", "Negative")

	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve failing result: %v", err)
	}

	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusNeedsAttention {
		t.Fatalf("lot status = %s, want NEEDS_ATTENTION", lot.Status)
	}
}

func TestMissingRequiredTestKeepsPartial(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", map[string]string{
		"Micro":    "Negative",
		"Moisture": "5-10",
	})
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "")
	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Moisture is required but not recorded yet
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusPartialResults {
		t.Fatalf("lot status = %s, want PARTIAL_RESULTS while a required test is missing", lot.Status)
	}

	second := mustCreateResult(t, env, lot.ID, "Moisture", "7", "")
	if _, err := env.results.ApproveResult(second.ID, qcActor); err != nil {
		t.Fatalf("approve second: %v", err)
	}

	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusUnderReview {
		t.Fatalf("lot status = %s, want UNDER_REVIEW once all required tests pass", lot.Status)
	}
}

func TestBulkApproveAtomic(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	first := mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")
	second := mustCreateResult(t, env, lot.ID, "Moisture", "7", "5-10")

	// One unknown id fails the whole batch
	_, err := env.results.BulkApprove([]uuid.UUID{first.ID, uuid.New()}, model.ResultApproved, qcActor)
	if !errors.Is(err, model.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	reloaded, err := env.resultRepo.FindByID(first.ID)
	if err != nil {
		t.Fatalf("reload first: %v", err)
	}
	if reloaded.Status != model.ResultDraft {
		t.Fatal("failed batch must leave every result untouched")
	}

	updated, err := env.results.BulkApprove([]uuid.UUID{first.ID, second.ID}, model.ResultApproved, qcActor)
	if err != nil {
		t.Fatalf("bulk approve: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("updated = %d results, want 2", len(updated))
	}
	for _, result := range updated {
		if result.Status != model.ResultApproved {
			t.Fatalf("result %s not approved", result.ID)
		}
	}

	// Each item gets its own audit entry
	if entries := auditEntries(t, env, "test_results", first.ID); len(entries) != 2 {
		t.Fatalf("first result audit entries = %d, want insert + approve", len(entries))
	}

	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusUnderReview {
		t.Fatalf("lot status = %s, want UNDER_REVIEW after bulk approval", lot.Status)
	}
}

func TestDeleteResultRules(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")

	if err := env.results.DeleteResult(result.ID, "entered against wrong lot", techActor); !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("tech delete: expected ErrPermissionDenied, got %v", err)
	}
	if err := env.results.DeleteResult(result.ID, "", qcActor); !errors.Is(err, model.ErrDeleteReasonRequired) {
		t.Fatalf("delete without reason: expected ErrDeleteReasonRequired, got %v", err)
	}

	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := env.results.DeleteResult(result.ID, "wrong lot", qcActor); !errors.Is(err, model.ErrResultNotDraft) {
		t.Fatalf("delete approved: expected ErrResultNotDraft, got %v", err)
	}
	if _, err := env.results.RevertResult(result.ID, qcActor); err != nil {
		t.Fatalf("revert: %v", err)
	}

	if err := env.results.DeleteResult(result.ID, "entered against wrong lot", qcActor); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := env.resultRepo.FindByID(result.ID); err == nil {
		t.Fatal("deleted result must not be retrievable")
	}

	// The delete entry carries the reason; history of the deleted record stays
	entries := auditEntries(t, env, "test_results", result.ID)
	if entries[0].Action != model.AuditDelete || entries[0].Reason != "entered against wrong lot" {
		t.Fatalf("delete audit entry = %+v, want delete with reason", entries[0])
	}

	// Recalculation cannot re-enter AWAITING_RESULTS, so the lot keeps its
	// current status even with zero results left
	lot = reloadLot(t, env, lot.ID)
	if lot.Status != model.StatusUnderReview {
		t.Fatalf("lot status = %s, want UNDER_REVIEW retained", lot.Status)
	}
}
