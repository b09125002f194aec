package service

import (
	"errors"
	"testing"

	"go-lims-ws/internal/model"

	"github.com/google/uuid"
)

func TestLogDestructiveActionsNeedReason(t *testing.T) {
	env := newTestEnv(t)
	recordID := uuid.New()

	err := env.audit.Log(env.db, "lots", recordID, model.AuditReject,
		nil, map[string]interface{}{"status": "REJECTED"}, qcActor.ID, "  ")
	if !errors.Is(err, model.ErrAuditReasonRequired) {
		t.Fatalf("reject without reason: expected ErrAuditReasonRequired, got %v", err)
	}

	err = env.audit.Log(env.db, "lots", recordID, model.AuditDelete,
		map[string]interface{}{"lot_number": "LOT-001"}, nil, qcActor.ID, "")
	if !errors.Is(err, model.ErrAuditReasonRequired) {
		t.Fatalf("delete without reason: expected ErrAuditReasonRequired, got %v", err)
	}

	if len(auditEntries(t, env, "lots", recordID)) != 0 {
		t.Fatal("refused actions must not leave entries behind")
	}
}

func TestLogRoundTripsValues(t *testing.T) {
	env := newTestEnv(t)
	recordID := uuid.New()

	err := env.audit.Log(env.db, "lots", recordID, model.AuditUpdate,
		map[string]interface{}{"status": "AWAITING_RESULTS", "retest": false},
		map[string]interface{}{"status": "PARTIAL_RESULTS", "retest": true},
		qcActor.ID, "  recorded by hand  ")
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	entries := auditEntries(t, env, "lots", recordID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.OldValues["status"] != "AWAITING_RESULTS" || entry.NewValues["status"] != "PARTIAL_RESULTS" {
		t.Fatalf("values: old=%v new=%v", entry.OldValues, entry.NewValues)
	}
	if entry.NewValues["retest"] != true {
		t.Fatalf("non-string value lost: %v", entry.NewValues)
	}
	if entry.Reason != "recorded by hand" {
		t.Fatalf("reason = %q, want trimmed", entry.Reason)
	}
	if entry.UserID != qcActor.ID || entry.Action != model.AuditUpdate {
		t.Fatalf("entry metadata: %+v", entry)
	}

	// Entries land in the audit_logs table under gorm's default naming
	var count int64
	if err := env.db.Table("audit_logs").Where("record_id = ?", recordID).Count(&count).Error; err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("audit_logs rows = %d, want 1", count)
	}
}

func TestGetHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")
	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve: %v", err)
	}

	entries, err := env.audit.GetHistory("test_results", result.ID, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("got %d entries, want insert and approve", len(entries))
	}
	if entries[0].Action != model.AuditApprove {
		t.Fatalf("entries[0].Action = %s, newest must come first", entries[0].Action)
	}
	if entries[len(entries)-1].Action != model.AuditInsert {
		t.Fatalf("entries[last].Action = %s, insert must come last", entries[len(entries)-1].Action)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}

func TestGetCombinedLotHistory(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	result := mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")
	if _, err := env.results.ApproveResult(result.ID, qcActor); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusAwaitingRelease, "", qcActor); err != nil {
		t.Fatalf("to awaiting release: %v", err)
	}

	history, err := env.audit.GetCombinedLotHistory(lot.ID, 0, 0)
	if err != nil {
		t.Fatalf("combined history: %v", err)
	}
	if history.LotID != lot.ID {
		t.Fatalf("lot id = %s", history.LotID)
	}

	want := map[string]bool{"lots": false, "test_results": false, "coa_releases": false}
	for _, source := range history.Sources {
		want[source] = true
	}
	for source, found := range want {
		if !found {
			t.Fatalf("source %s missing from %v", source, history.Sources)
		}
	}

	for i := 1; i < len(history.Entries); i++ {
		if history.Entries[i].CreatedAt.After(history.Entries[i-1].CreatedAt) {
			t.Fatalf("merged timeline out of order at %d", i)
		}
	}

	if _, err := env.audit.GetCombinedLotHistory(uuid.New(), 0, 0); !errors.Is(err, model.ErrLotNotFound) {
		t.Fatalf("unknown lot: expected ErrLotNotFound, got %v", err)
	}
}

func TestGetRecentSpansTables(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)
	mustCreateResult(t, env, lot.ID, "Micro", "ND", "Negative")

	recent, err := env.audit.GetRecent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want the limit of 2", len(recent))
	}
	if recent[1].CreatedAt.After(recent[0].CreatedAt) {
		t.Fatal("recent entries must be newest-first")
	}
}
