package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go-lims-ws/internal/model"

	"gorm.io/gorm"
)

func TestStatusChangeBroadcastsAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	if _, err := env.lots.UpdateStatus(lot.ID, model.StatusRejected, "bad paperwork", qcActor); err != nil {
		t.Fatalf("reject lot: %v", err)
	}

	select {
	case raw := <-env.hub.Broadcast:
		var event struct {
			Type    string `json:"type"`
			Payload struct {
				Action string `json:"action"`
				Lot    struct {
					LotNumber string `json:"lot_number"`
					ToStatus  string `json:"to_status"`
				} `json:"lot"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if event.Type != "lot_status_update" || event.Payload.Action != "status_changed" {
			t.Fatalf("unexpected event: %s", raw)
		}
		if event.Payload.Lot.LotNumber != "LOT-001" || event.Payload.Lot.ToStatus != string(model.StatusRejected) {
			t.Fatalf("unexpected payload: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast after a committed status change")
	}
}

func TestBroadcastDiscardedOnRollback(t *testing.T) {
	env := newTestEnv(t)
	product := mustCreateProduct(t, env, "SKU-1", nil)
	lot := mustCreateLot(t, env, "LOT-001", product.ID)

	failure := errors.New("subsequent write failed")

	err := env.engine.InTransaction(env.db, func(tx *gorm.DB) error {
		locked, err := env.lotRepo.FindForUpdate(tx, lot.ID)
		if err != nil {
			return err
		}
		if err := env.engine.ChangeStatus(tx, locked, model.StatusRejected, "bad paperwork", qcActor.ID); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the injected error, got %v", err)
	}

	if got := reloadLot(t, env, lot.ID).Status; got != model.StatusAwaitingResults {
		t.Fatalf("lot status = %s, transition must roll back", got)
	}

	select {
	case raw := <-env.hub.Broadcast:
		t.Fatalf("broadcast %s for a rolled-back transition", raw)
	case <-time.After(100 * time.Millisecond):
	}
}
