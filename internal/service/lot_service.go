package service

import (
	"errors"
	"fmt"

	"go-lims-ws/internal/authz"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrLotNumberExists       = errors.New("Lot number already exists")
	ErrReferenceNumberExists = errors.New("Reference number already exists")
)

type LotService interface {
	CreateLot(req *CreateLotRequest, actor authz.Actor) (*model.Lot, error)
	GetAllLots() ([]model.Lot, error)
	GetLotByID(id uuid.UUID) (*model.Lot, error)
	GetLotsByStatus(status model.LotStatus) ([]model.Lot, error)

	// UpdateStatus applies an explicit human transition (reject, resubmit,
	// submit for review/release, approve, QC override).
	UpdateStatus(lotID uuid.UUID, to model.LotStatus, reason string, actor authz.Actor) (*model.Lot, error)

	DeleteLot(lotID uuid.UUID, reason string, actor authz.Actor) error
}

type CreateLotRequest struct {
	LotNumber       string        `json:"lot_number" validate:"required,lot_number"`
	ReferenceNumber string        `json:"reference_number" validate:"required,lot_number"`
	LotType         model.LotType `json:"lot_type" validate:"required,oneof=standard parent_lot multi_sku_composite"`
	GenerateCOA     *bool         `json:"generate_coa"`
	ProductIDs      []uuid.UUID   `json:"product_ids" validate:"min=1"`
}

type lotService struct {
	lotRepo     repository.LotRepository
	productRepo repository.ProductRepository
	releaseRepo repository.ReleaseRepository
	engine      *LotStatusEngine
	audit       AuditService
	db          *gorm.DB
}

func NewLotService(lotRepo repository.LotRepository, productRepo repository.ProductRepository,
	releaseRepo repository.ReleaseRepository, engine *LotStatusEngine, audit AuditService, db *gorm.DB) LotService {
	return &lotService{
		lotRepo:     lotRepo,
		productRepo: productRepo,
		releaseRepo: releaseRepo,
		engine:      engine,
		audit:       audit,
		db:          db,
	}
}

func (s *lotService) CreateLot(req *CreateLotRequest, actor authz.Actor) (*model.Lot, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, fmt.Errorf("Validation failed: field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}

	// Unique lot and reference numbers (business-level check before the DB constraint)
	if existing, _ := s.lotRepo.FindByLotNumber(req.LotNumber); existing != nil {
		return nil, ErrLotNumberExists
	}
	if existing, _ := s.lotRepo.FindByReferenceNumber(req.ReferenceNumber); existing != nil {
		return nil, ErrReferenceNumberExists
	}

	products, err := s.productRepo.FindByIDs(req.ProductIDs)
	if err != nil {
		return nil, err
	}
	if len(products) != len(req.ProductIDs) {
		return nil, errors.New("One or more product ids do not exist")
	}

	generateCOA := true
	if req.GenerateCOA != nil {
		generateCOA = *req.GenerateCOA
	}

	lot := &model.Lot{
		LotNumber:       req.LotNumber,
		ReferenceNumber: req.ReferenceNumber,
		LotType:         req.LotType,
		Status:          model.StatusAwaitingResults,
		GenerateCOA:     generateCOA,
		Products:        products,
	}
	lot.CreatedBy = actor.ID
	lot.UpdatedBy = actor.ID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lot).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, lot.TableName(), lot.ID, model.AuditInsert,
			nil, lotValues(lot), actor.ID, "")
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *lotService) GetAllLots() ([]model.Lot, error) {
	return s.lotRepo.FindAll()
}

func (s *lotService) GetLotByID(id uuid.UUID) (*model.Lot, error) {
	lot, err := s.lotRepo.FindByID(id)
	if err != nil {
		return nil, model.ErrLotNotFound
	}
	return lot, nil
}

func (s *lotService) GetLotsByStatus(status model.LotStatus) ([]model.Lot, error) {
	return s.lotRepo.FindByStatus(status)
}

func (s *lotService) UpdateStatus(lotID uuid.UUID, to model.LotStatus, reason string, actor authz.Actor) (*model.Lot, error) {
	var updated *model.Lot

	err := s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		lot, err := s.lotRepo.FindForUpdate(tx, lotID)
		if err != nil {
			return model.ErrLotNotFound
		}

		if capability, guarded := capabilityForTransition(lot.Status, to); guarded {
			if err := authz.Require(actor, capability); err != nil {
				return err
			}
		}

		if err := s.engine.ChangeStatus(tx, lot, to, reason, actor.ID); err != nil {
			return err
		}

		// Entering AWAITING_RELEASE materializes one release unit per
		// associated product (for lots that generate a COA).
		if to == model.StatusAwaitingRelease && lot.GenerateCOA {
			if err := s.ensureReleases(tx, lot, actor.ID); err != nil {
				return err
			}
		}

		updated = lot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// capabilityForTransition maps guarded edges onto the authorization policy.
// Unlisted edges only require the ordinary lot:update privilege enforced at
// the transport layer.
func capabilityForTransition(from, to model.LotStatus) (authz.Capability, bool) {
	switch {
	case to == model.StatusRejected:
		return authz.CapRejectLot, true
	case from == model.StatusNeedsAttention && to == model.StatusApproved:
		return authz.CapOverrideLot, true
	case to == model.StatusApproved || to == model.StatusReleased:
		return authz.CapApproveRelease, true
	}
	return "", false
}

// ensureReleases creates awaiting COA releases for every associated product
// that does not have one yet. Re-entry after a rejection must not duplicate
// release rows.
func (s *lotService) ensureReleases(tx *gorm.DB, lot *model.Lot, actorID string) error {
	existing, err := s.releaseRepo.FindByLotIDTx(tx, lot.ID)
	if err != nil {
		return err
	}
	have := map[uuid.UUID]bool{}
	for _, release := range existing {
		have[release.ProductID] = true
	}

	var products []model.Product
	if err := tx.Model(lot).Association("Products").Find(&products); err != nil {
		return err
	}

	for _, product := range products {
		if have[product.ID] {
			continue
		}
		release := &model.COARelease{
			LotID:     lot.ID,
			ProductID: product.ID,
			Status:    model.ReleaseAwaiting,
		}
		release.CreatedBy = actorID
		release.UpdatedBy = actorID
		if err := tx.Create(release).Error; err != nil {
			return err
		}
		err := s.audit.Log(tx, release.TableName(), release.ID, model.AuditInsert,
			nil, map[string]interface{}{
				"lot_id":     release.LotID.String(),
				"product_id": release.ProductID.String(),
				"status":     string(release.Status),
			}, actorID, "")
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *lotService) DeleteLot(lotID uuid.UUID, reason string, actor authz.Actor) error {
	if err := authz.Require(actor, authz.CapDeleteLot); err != nil {
		return err
	}
	if reason == "" {
		return model.ErrDeleteReasonRequired
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		lot, err := s.lotRepo.FindForUpdate(tx, lotID)
		if err != nil {
			return model.ErrLotNotFound
		}

		var resultCount int64
		if err := tx.Model(&model.TestResult{}).Where("lot_id = ?", lot.ID).Count(&resultCount).Error; err != nil {
			return err
		}
		if lot.Status != model.StatusAwaitingResults || resultCount > 0 {
			return model.ErrLotNotDeletable
		}

		if err := s.audit.Log(tx, lot.TableName(), lot.ID, model.AuditDelete,
			lotValues(lot), nil, actor.ID, reason); err != nil {
			return err
		}

		if err := tx.Model(lot).Update("deleted_by", actor.ID).Error; err != nil {
			return err
		}
		return tx.Delete(lot).Error
	})
}

// lotValues is the audit snapshot of a lot's workflow-relevant fields
func lotValues(lot *model.Lot) map[string]interface{} {
	return map[string]interface{}{
		"lot_number":         lot.LotNumber,
		"reference_number":   lot.ReferenceNumber,
		"lot_type":           string(lot.LotType),
		"status":             string(lot.Status),
		"rejection_reason":   lot.RejectionReason,
		"has_pending_retest": lot.HasPendingRetest,
		"generate_coa":       lot.GenerateCOA,
	}
}
