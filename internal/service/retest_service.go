package service

import (
	"fmt"
	"strings"
	"time"

	"go-lims-ws/internal/authz"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/pkg/specmatch"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RetestService interface {
	CreateRetest(req *CreateRetestRequest, actor authz.Actor) (*model.RetestRequest, error)
	CompleteRetest(id uuid.UUID, actor authz.Actor) (*model.RetestRequest, error)
	GetByID(id uuid.UUID) (*model.RetestRequest, error)
	GetByLotID(lotID uuid.UUID) ([]model.RetestRequest, error)

	// PendingReferenceFor returns the reference number of a pending retest
	// request covering the result, for audit reason annotation.
	PendingReferenceFor(tx *gorm.DB, testResultID uuid.UUID) (string, bool)

	// CheckAutoComplete runs inside the result-update transaction: when every
	// item of a pending request now reflects an updated, passing value, the
	// request completes automatically.
	CheckAutoComplete(tx *gorm.DB, testResultID uuid.UUID, actorID string) error
}

type CreateRetestRequest struct {
	LotID         uuid.UUID   `json:"lot_id" validate:"uuid_required"`
	TestResultIDs []uuid.UUID `json:"test_result_ids" validate:"min=1"`
	Reason        string      `json:"reason" validate:"required"`
}

type retestService struct {
	retestRepo repository.RetestRepository
	lotRepo    repository.LotRepository
	resultRepo repository.TestResultRepository
	audit      AuditService
	db         *gorm.DB
}

func NewRetestService(retestRepo repository.RetestRepository, lotRepo repository.LotRepository,
	resultRepo repository.TestResultRepository, audit AuditService, db *gorm.DB) RetestService {
	return &retestService{
		retestRepo: retestRepo,
		lotRepo:    lotRepo,
		resultRepo: resultRepo,
		audit:      audit,
		db:         db,
	}
}

func (s *retestService) CreateRetest(req *CreateRetestRequest, actor authz.Actor) (*model.RetestRequest, error) {
	if err := authz.Require(actor, authz.CapCreateRetest); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, model.ErrRetestReasonRequired
	}
	if len(req.TestResultIDs) == 0 {
		return nil, model.ErrResultNotFound
	}

	var request *model.RetestRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		lot, err := s.lotRepo.FindForUpdate(tx, req.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}

		// Every requested result must belong to the target lot
		var results []model.TestResult
		if err := tx.Where("id IN ?", req.TestResultIDs).Find(&results).Error; err != nil {
			return err
		}
		if len(results) != len(req.TestResultIDs) {
			return model.ErrResultNotFound
		}
		for _, result := range results {
			if result.LotID != lot.ID {
				return model.ErrResultNotFound
			}
		}

		number, err := s.retestRepo.NextRetestNumber(tx, lot.ID)
		if err != nil {
			return err
		}

		request = &model.RetestRequest{
			LotID:           lot.ID,
			ReferenceNumber: fmt.Sprintf("RT-%s-%d", lot.LotNumber, number),
			RetestNumber:    number,
			Reason:          strings.TrimSpace(req.Reason),
			Status:          model.RetestPending,
			RequestedBy:     actor.ID,
		}
		request.CreatedBy = actor.ID
		request.UpdatedBy = actor.ID

		// Snapshot the current value of each result. The snapshot is
		// immutable from here on, whatever happens to the live result.
		for _, result := range results {
			request.Items = append(request.Items, model.RetestItem{
				TestResultID:  result.ID,
				TestType:      result.TestType,
				OriginalValue: result.ResultValue,
			})
		}

		if err := tx.Create(request).Error; err != nil {
			return err
		}

		if !lot.HasPendingRetest {
			if err := tx.Model(lot).Update("has_pending_retest", true).Error; err != nil {
				return err
			}
			err := s.audit.Log(tx, lot.TableName(), lot.ID, model.AuditUpdate,
				map[string]interface{}{"has_pending_retest": false},
				map[string]interface{}{"has_pending_retest": true},
				actor.ID, "")
			if err != nil {
				return err
			}
		}

		return s.audit.Log(tx, request.TableName(), request.ID, model.AuditInsert,
			nil, retestValues(request), actor.ID, "")
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *retestService) CompleteRetest(id uuid.UUID, actor authz.Actor) (*model.RetestRequest, error) {
	if err := authz.Require(actor, authz.CapCompleteRetest); err != nil {
		return nil, err
	}

	var completed *model.RetestRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		request, err := s.retestRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrRetestNotFound
		}
		if request.Status == model.RetestCompleted {
			return nil // idempotent
		}
		if err := s.complete(tx, request, actor.ID); err != nil {
			return err
		}
		completed = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	if completed == nil {
		return s.retestRepo.FindByID(id)
	}
	return completed, nil
}

func (s *retestService) GetByID(id uuid.UUID) (*model.RetestRequest, error) {
	request, err := s.retestRepo.FindByID(id)
	if err != nil {
		return nil, model.ErrRetestNotFound
	}
	return request, nil
}

func (s *retestService) GetByLotID(lotID uuid.UUID) ([]model.RetestRequest, error) {
	return s.retestRepo.FindByLotID(lotID)
}

func (s *retestService) PendingReferenceFor(tx *gorm.DB, testResultID uuid.UUID) (string, bool) {
	requests, err := s.retestRepo.FindPendingByResultID(tx, testResultID)
	if err != nil || len(requests) == 0 {
		return "", false
	}
	return requests[0].ReferenceNumber, true
}

func (s *retestService) CheckAutoComplete(tx *gorm.DB, testResultID uuid.UUID, actorID string) error {
	requests, err := s.retestRepo.FindPendingByResultID(tx, testResultID)
	if err != nil {
		return err
	}

	for i := range requests {
		request := &requests[i]
		satisfied := true
		for _, item := range request.Items {
			result, err := s.resultRepo.FindForUpdate(tx, item.TestResultID)
			if err != nil {
				return err
			}
			// An item is satisfied once the live value has moved off the
			// snapshot and passes its specification
			if result.ResultValue == item.OriginalValue || !result.Passes(specmatch.Matches) {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		if err := s.complete(tx, request, actorID); err != nil {
			return err
		}
	}
	return nil
}

// complete transitions a pending request to completed, clears the lot's
// pending flag when this was the last open request, and audits both writes.
func (s *retestService) complete(tx *gorm.DB, request *model.RetestRequest, actorID string) error {
	now := time.Now()
	request.Status = model.RetestCompleted
	request.CompletedAt = &now
	request.UpdatedBy = actorID

	if err := tx.Model(&model.RetestRequest{}).Where("id = ?", request.ID).
		Updates(map[string]interface{}{
			"status":       model.RetestCompleted,
			"completed_at": now,
			"updated_by":   actorID,
		}).Error; err != nil {
		return err
	}

	err := s.audit.Log(tx, request.TableName(), request.ID, model.AuditUpdate,
		map[string]interface{}{"status": string(model.RetestPending)},
		map[string]interface{}{"status": string(model.RetestCompleted)},
		actorID, "")
	if err != nil {
		return err
	}

	pending, err := s.retestRepo.CountPendingByLotID(tx, request.LotID)
	if err != nil {
		return err
	}
	if pending == 0 {
		if err := tx.Model(&model.Lot{}).Where("id = ?", request.LotID).
			Update("has_pending_retest", false).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, model.Lot{}.TableName(), request.LotID, model.AuditUpdate,
			map[string]interface{}{"has_pending_retest": true},
			map[string]interface{}{"has_pending_retest": false},
			actorID, "")
	}
	return nil
}

// retestValues is the audit snapshot of a retest request
func retestValues(request *model.RetestRequest) map[string]interface{} {
	itemCount := len(request.Items)
	return map[string]interface{}{
		"reference_number": request.ReferenceNumber,
		"retest_number":    request.RetestNumber,
		"reason":           request.Reason,
		"status":           string(request.Status),
		"requested_by":     request.RequestedBy,
		"item_count":       itemCount,
	}
}
