package service

import (
	"errors"
	"fmt"
	"time"

	"go-lims-ws/internal/authz"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TestResultService interface {
	CreateResult(req *CreateResultRequest, actor authz.Actor) (*model.TestResult, error)
	UpdateResult(id uuid.UUID, req *UpdateResultRequest, actor authz.Actor) (*model.TestResult, error)
	ApproveResult(id uuid.UUID, actor authz.Actor) (*model.TestResult, error)
	RevertResult(id uuid.UUID, actor authz.Actor) (*model.TestResult, error)
	BulkApprove(ids []uuid.UUID, status model.ResultStatus, actor authz.Actor) ([]model.TestResult, error)
	DeleteResult(id uuid.UUID, reason string, actor authz.Actor) error
	GetByLotID(lotID uuid.UUID) ([]model.TestResult, error)
}

type CreateResultRequest struct {
	LotID       uuid.UUID `json:"lot_id" validate:"uuid_required"`
	TestType    string    `json:"test_type" validate:"required"`
	ResultValue string    `json:"result_value"`

	// Optional explicit spec; when empty the applicable product rule is
	// snapshotted instead.
	Specification string `json:"specification"`
}

type UpdateResultRequest struct {
	TestType      *string `json:"test_type,omitempty"`
	ResultValue   *string `json:"result_value,omitempty"`
	Specification *string `json:"specification,omitempty"`
}

type testResultService struct {
	resultRepo  repository.TestResultRepository
	lotRepo     repository.LotRepository
	productRepo repository.ProductRepository
	engine      *LotStatusEngine
	retests     RetestService
	audit       AuditService
	db          *gorm.DB
}

func NewTestResultService(resultRepo repository.TestResultRepository, lotRepo repository.LotRepository,
	productRepo repository.ProductRepository, engine *LotStatusEngine, retests RetestService,
	audit AuditService, db *gorm.DB) TestResultService {
	return &testResultService{
		resultRepo:  resultRepo,
		lotRepo:     lotRepo,
		productRepo: productRepo,
		engine:      engine,
		retests:     retests,
		audit:       audit,
		db:          db,
	}
}

func (s *testResultService) CreateResult(req *CreateResultRequest, actor authz.Actor) (*model.TestResult, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("Validation failed: field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}

	var created *model.TestResult

	err := s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		lot, err := s.lotRepo.FindForUpdate(tx, req.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}

		specification := req.Specification
		if specification == "" {
			specification = s.lookupSpecification(tx, lot, req.TestType)
		}

		result := &model.TestResult{
			LotID:         lot.ID,
			TestType:      req.TestType,
			ResultValue:   req.ResultValue,
			Specification: specification,
			Status:        model.ResultDraft,
		}
		result.CreatedBy = actor.ID
		result.UpdatedBy = actor.ID

		if err := tx.Create(result).Error; err != nil {
			return err
		}

		if err := s.audit.Log(tx, result.TableName(), result.ID, model.AuditInsert,
			nil, resultValues(result), actor.ID, ""); err != nil {
			return err
		}

		created = result
		return s.engine.Recalculate(tx, lot, actor.ID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *testResultService) UpdateResult(id uuid.UUID, req *UpdateResultRequest, actor authz.Actor) (*model.TestResult, error) {
	var updated *model.TestResult

	err := s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		result, err := s.resultRepo.FindByIDTx(tx, id)
		if err != nil {
			return model.ErrResultNotFound
		}

		// Lock order is always lot first, then result
		lot, err := s.lotRepo.FindForUpdate(tx, result.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}
		result, err = s.resultRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrResultNotFound
		}

		if !result.IsDraft() {
			return model.ErrResultNotEditable
		}

		before := resultValues(result)
		if req.TestType != nil {
			result.TestType = *req.TestType
		}
		if req.ResultValue != nil {
			result.ResultValue = *req.ResultValue
		}
		if req.Specification != nil {
			result.Specification = *req.Specification
		}
		result.UpdatedBy = actor.ID
		after := resultValues(result)

		oldValues, newValues := diffValues(before, after)
		if len(newValues) == 0 {
			updated = result
			return nil // nothing changed, nothing to audit
		}

		if err := tx.Save(result).Error; err != nil {
			return err
		}

		// Edits under a pending retest carry the retest reference in the
		// audit trail
		auditReason := ""
		if reference, pending := s.retests.PendingReferenceFor(tx, result.ID); pending {
			auditReason = "Retest " + reference
		}

		if err := s.audit.Log(tx, result.TableName(), result.ID, model.AuditUpdate,
			oldValues, newValues, actor.ID, auditReason); err != nil {
			return err
		}

		if err := s.retests.CheckAutoComplete(tx, result.ID, actor.ID); err != nil {
			return err
		}

		updated = result
		return s.engine.Recalculate(tx, lot, actor.ID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *testResultService) ApproveResult(id uuid.UUID, actor authz.Actor) (*model.TestResult, error) {
	return s.setApproval(id, model.ResultApproved, actor)
}

func (s *testResultService) RevertResult(id uuid.UUID, actor authz.Actor) (*model.TestResult, error) {
	return s.setApproval(id, model.ResultDraft, actor)
}

func (s *testResultService) setApproval(id uuid.UUID, status model.ResultStatus, actor authz.Actor) (*model.TestResult, error) {
	if err := authz.Require(actor, authz.CapApproveResult); err != nil {
		return nil, err
	}

	var updated *model.TestResult

	err := s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		result, err := s.resultRepo.FindByIDTx(tx, id)
		if err != nil {
			return model.ErrResultNotFound
		}
		lot, err := s.lotRepo.FindForUpdate(tx, result.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}
		result, err = s.resultRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrResultNotFound
		}

		if result.Status == status {
			updated = result
			return nil // no-op
		}

		if err := s.applyApproval(tx, result, status, actor); err != nil {
			return err
		}

		updated = result
		return s.engine.Recalculate(tx, lot, actor.ID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyApproval flips a single result between draft and approved and writes
// the matching audit entry. Runs inside the caller's transaction.
func (s *testResultService) applyApproval(tx *gorm.DB, result *model.TestResult, status model.ResultStatus, actor authz.Actor) error {
	before := resultValues(result)

	result.Status = status
	result.UpdatedBy = actor.ID
	if status == model.ResultApproved {
		now := time.Now()
		result.ApprovedBy = actor.ID
		result.ApprovedAt = &now
	} else {
		result.ApprovedBy = ""
		result.ApprovedAt = nil
	}

	if err := tx.Save(result).Error; err != nil {
		return err
	}

	action := model.AuditUpdate
	if status == model.ResultApproved {
		action = model.AuditApprove
	}
	oldValues, newValues := diffValues(before, resultValues(result))
	return s.audit.Log(tx, result.TableName(), result.ID, action, oldValues, newValues, actor.ID, "")
}

func (s *testResultService) BulkApprove(ids []uuid.UUID, status model.ResultStatus, actor authz.Actor) ([]model.TestResult, error) {
	if err := authz.Require(actor, authz.CapApproveResult); err != nil {
		return nil, err
	}
	if status != model.ResultApproved && status != model.ResultDraft {
		return nil, errors.New("Bulk status must be either approved or draft")
	}

	var updated []model.TestResult

	err := s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		// The whole batch fails when any id does not exist
		touchedLots := map[uuid.UUID]*model.Lot{}

		for _, id := range ids {
			result, err := s.resultRepo.FindByIDTx(tx, id)
			if err != nil {
				return model.ErrResultNotFound
			}

			lot, locked := touchedLots[result.LotID]
			if !locked {
				lot, err = s.lotRepo.FindForUpdate(tx, result.LotID)
				if err != nil {
					return model.ErrLotNotFound
				}
				touchedLots[result.LotID] = lot
			}

			result, err = s.resultRepo.FindForUpdate(tx, id)
			if err != nil {
				return model.ErrResultNotFound
			}
			if result.Status == status {
				updated = append(updated, *result)
				continue
			}
			if err := s.applyApproval(tx, result, status, actor); err != nil {
				return err
			}
			updated = append(updated, *result)
		}

		for _, lot := range touchedLots {
			if err := s.engine.Recalculate(tx, lot, actor.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *testResultService) DeleteResult(id uuid.UUID, reason string, actor authz.Actor) error {
	if err := authz.Require(actor, authz.CapDeleteResult); err != nil {
		return err
	}
	if reason == "" {
		return model.ErrDeleteReasonRequired
	}

	return s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		result, err := s.resultRepo.FindByIDTx(tx, id)
		if err != nil {
			return model.ErrResultNotFound
		}
		lot, err := s.lotRepo.FindForUpdate(tx, result.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}
		result, err = s.resultRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrResultNotFound
		}

		if !result.IsDraft() {
			return model.ErrResultNotDraft
		}

		if err := s.audit.Log(tx, result.TableName(), result.ID, model.AuditDelete,
			resultValues(result), nil, actor.ID, reason); err != nil {
			return err
		}

		if err := tx.Model(result).Update("deleted_by", actor.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(result).Error; err != nil {
			return err
		}

		return s.engine.Recalculate(tx, lot, actor.ID)
	})
}

func (s *testResultService) GetByLotID(lotID uuid.UUID) ([]model.TestResult, error) {
	return s.resultRepo.FindByLotID(lotID)
}

// lookupSpecification snapshots the applicable product rule for a test type.
// With multiple associated products the first rule found wins.
func (s *testResultService) lookupSpecification(tx *gorm.DB, lot *model.Lot, testType string) string {
	var products []model.Product
	if err := tx.Model(lot).Association("Products").Find(&products); err != nil {
		return ""
	}
	for _, product := range products {
		spec, err := s.productRepo.FindSpecification(tx, product.ID, testType)
		if err == nil && spec != nil {
			return spec.Specification
		}
	}
	return ""
}

// resultValues is the audit snapshot of a test result's tracked fields
func resultValues(result *model.TestResult) map[string]interface{} {
	return map[string]interface{}{
		"lot_id":        result.LotID.String(),
		"test_type":     result.TestType,
		"result_value":  result.ResultValue,
		"specification": result.Specification,
		"status":        string(result.Status),
		"approved_by":   result.ApprovedBy,
	}
}
