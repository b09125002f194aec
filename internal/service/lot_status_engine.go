package service

import (
	"fmt"
	"sync"

	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/internal/ws"

	"gorm.io/gorm"
)

// humanDecidedStatuses are never entered (or left) by recalculation;
// they always require an explicit user action.
var humanDecidedStatuses = map[model.LotStatus]bool{
	model.StatusAwaitingRelease: true,
	model.StatusApproved:        true,
	model.StatusReleased:        true,
	model.StatusRejected:        true,
}

// LotStatusEngine owns the lot state machine: it applies explicit
// transitions and recomputes the aggregate status after result mutations.
// All methods run inside the caller's transaction with the lot row locked.
type LotStatusEngine struct {
	resultRepo repository.TestResultRepository
	policy     StatusPolicy
	audit      AuditService
	wsHub      *ws.Hub

	// Broadcasts queued per open transaction; published only after commit
	mu      sync.Mutex
	pending map[*gorm.DB][]ws.Event
}

func NewLotStatusEngine(resultRepo repository.TestResultRepository, policy StatusPolicy,
	audit AuditService, hub *ws.Hub) *LotStatusEngine {
	return &LotStatusEngine{
		resultRepo: resultRepo,
		policy:     policy,
		audit:      audit,
		wsHub:      hub,
		pending:    map[*gorm.DB][]ws.Event{},
	}
}

// InTransaction runs fn inside a database transaction. Status broadcasts
// queued by ChangeStatus or Recalculate during fn are published only once
// the transaction commits; a rollback discards them, so clients never hear
// about a mutation that was undone.
func (e *LotStatusEngine) InTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var events []ws.Event

	err := db.Transaction(func(tx *gorm.DB) error {
		e.mu.Lock()
		e.pending[tx] = nil
		e.mu.Unlock()
		defer func() {
			e.mu.Lock()
			events = e.pending[tx]
			delete(e.pending, tx)
			e.mu.Unlock()
		}()
		return fn(tx)
	})
	if err != nil {
		return err
	}

	for _, event := range events {
		e.publish(event)
	}
	return nil
}

// ChangeStatus applies an explicit, human-requested transition. The reason
// feeds the justification rules (rejection, QC override); the audit entry
// records the status delta and, for rejections, carries the reason.
func (e *LotStatusEngine) ChangeStatus(tx *gorm.DB, lot *model.Lot, to model.LotStatus, reason, actorID string) error {
	from := lot.Status

	storedReason, setReason, err := model.Transition(from, to, reason)
	if err != nil {
		return err
	}

	oldValues := map[string]interface{}{"status": string(from)}
	newValues := map[string]interface{}{"status": string(to)}

	lot.Status = to
	lot.UpdatedBy = actorID
	if setReason {
		oldValues["rejection_reason"] = lot.RejectionReason
		newValues["rejection_reason"] = storedReason
		lot.RejectionReason = storedReason
	}

	if err := tx.Save(lot).Error; err != nil {
		return err
	}

	action := model.AuditUpdate
	auditReason := ""
	switch {
	case to == model.StatusRejected:
		action = model.AuditReject
		auditReason = storedReason
	case to == model.StatusApproved || to == model.StatusReleased:
		action = model.AuditApprove
		auditReason = storedReason
	}

	if err := e.audit.Log(tx, lot.TableName(), lot.ID, action, oldValues, newValues, actorID, auditReason); err != nil {
		return err
	}

	e.broadcastStatusChange(tx, lot, from, to)
	return nil
}

// Recalculate recomputes the lot's aggregate status from its test results.
// It is called after any result is created, edited, (un)approved or
// deleted. Lots sitting in a human-decided state are left alone.
func (e *LotStatusEngine) Recalculate(tx *gorm.DB, lot *model.Lot, actorID string) error {
	if humanDecidedStatuses[lot.Status] {
		return nil
	}

	results, err := e.resultRepo.FindByLotIDTx(tx, lot.ID)
	if err != nil {
		return err
	}

	target := e.policy.Evaluate(results, requiredTestTypes(tx, lot))
	if target == lot.Status {
		return nil
	}

	// The policy can only propose states reachable from the current one;
	// an unreachable proposal (e.g. back to AWAITING_RESULTS after results
	// were deleted) keeps the current status.
	if !model.CanTransition(lot.Status, target) {
		return nil
	}

	from := lot.Status
	lot.Status = target
	lot.UpdatedBy = actorID
	if err := tx.Save(lot).Error; err != nil {
		return err
	}

	err = e.audit.Log(tx, lot.TableName(), lot.ID, model.AuditUpdate,
		map[string]interface{}{"status": string(from)},
		map[string]interface{}{"status": string(target)},
		actorID, "")
	if err != nil {
		return err
	}

	e.broadcastStatusChange(tx, lot, from, target)
	return nil
}

// requiredTestTypes collects the test types that every associated product
// marks as required. Reference data only; failures degrade to "no
// requirements" rather than blocking the workflow write.
func requiredTestTypes(tx *gorm.DB, lot *model.Lot) []string {
	var specs []model.ProductTestSpecification
	err := tx.Joins("JOIN lot_products ON lot_products.product_id = product_test_specifications.product_id").
		Where("lot_products.lot_id = ? AND product_test_specifications.is_required = ?", lot.ID, true).
		Find(&specs).Error
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	types := []string{}
	for _, spec := range specs {
		if !seen[spec.TestType] {
			seen[spec.TestType] = true
			types = append(types, spec.TestType)
		}
	}
	return types
}

func (e *LotStatusEngine) broadcastStatusChange(tx *gorm.DB, lot *model.Lot, from, to model.LotStatus) {
	event := ws.Event{
		Type: "lot_status_update",
		Payload: map[string]interface{}{
			"action": "status_changed",
			"lot": map[string]interface{}{
				"id":          lot.ID,
				"lot_number":  lot.LotNumber,
				"from_status": from,
				"to_status":   to,
			},
			"message": fmt.Sprintf("Lot %s moved from %s to %s", lot.LotNumber, from, to),
		},
	}

	e.mu.Lock()
	if _, tracked := e.pending[tx]; tracked {
		e.pending[tx] = append(e.pending[tx], event)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.publish(event)
}

func (e *LotStatusEngine) publish(event ws.Event) {
	if e.wsHub == nil {
		return
	}
	go e.wsHub.Publish(event.Type, event.Payload)
}
