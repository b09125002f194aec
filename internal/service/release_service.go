package service

import (
	"errors"
	"strings"
	"time"

	"go-lims-ws/internal/authz"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrReleaseNotAwaiting = errors.New("COA release is not awaiting release")

type ReleaseService interface {
	ApproveRelease(id uuid.UUID, actor authz.Actor) (*model.COARelease, error)
	SendBack(id uuid.UUID, reason string, actor authz.Actor) (*model.COARelease, error)
	SaveDraft(id uuid.UUID, req *SaveDraftRequest) (*model.COARelease, error)
	AttachDocument(id uuid.UUID, filePath string, actor authz.Actor) (*model.COARelease, error)
	SendEmail(id uuid.UUID, req *SendEmailRequest, actor authz.Actor) (*model.EmailHistory, error)
	GetByID(id uuid.UUID) (*model.COARelease, error)
	GetByLotID(lotID uuid.UUID) ([]model.COARelease, error)
	GetAwaiting() ([]model.COARelease, error)
}

type SaveDraftRequest struct {
	CustomerID string `json:"customer_id"`
	Notes      string `json:"notes"`
}

type SendEmailRequest struct {
	Recipient string `json:"recipient" validate:"required,email"`
	Subject   string `json:"subject"`
}

type releaseService struct {
	releaseRepo repository.ReleaseRepository
	lotRepo     repository.LotRepository
	engine      *LotStatusEngine
	audit       AuditService
	db          *gorm.DB
}

func NewReleaseService(releaseRepo repository.ReleaseRepository, lotRepo repository.LotRepository,
	engine *LotStatusEngine, audit AuditService, db *gorm.DB) ReleaseService {
	return &releaseService{
		releaseRepo: releaseRepo,
		lotRepo:     lotRepo,
		engine:      engine,
		audit:       audit,
		db:          db,
	}
}

func (s *releaseService) ApproveRelease(id uuid.UUID, actor authz.Actor) (*model.COARelease, error) {
	if err := authz.Require(actor, authz.CapApproveRelease); err != nil {
		return nil, err
	}

	var approved *model.COARelease

	err := s.engine.InTransaction(s.db, func(tx *gorm.DB) error {
		release, err := s.releaseRepo.FindByIDTx(tx, id)
		if err != nil {
			return model.ErrReleaseNotFound
		}
		lot, err := s.lotRepo.FindForUpdate(tx, release.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}
		release, err = s.releaseRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrReleaseNotFound
		}

		if release.Status != model.ReleaseAwaiting {
			return ErrReleaseNotAwaiting
		}

		now := time.Now()
		release.Status = model.ReleaseReleased
		release.ReleasedAt = &now
		release.ReleasedBy = actor.ID
		release.UpdatedBy = actor.ID
		if err := tx.Save(release).Error; err != nil {
			return err
		}

		err = s.audit.Log(tx, release.TableName(), release.ID, model.AuditApprove,
			map[string]interface{}{"status": string(model.ReleaseAwaiting)},
			map[string]interface{}{
				"status":      string(model.ReleaseReleased),
				"released_by": actor.ID,
			}, actor.ID, "")
		if err != nil {
			return err
		}

		// The lot itself releases only once every sibling is released
		siblings, err := s.releaseRepo.FindByLotIDTx(tx, lot.ID)
		if err != nil {
			return err
		}
		allReleased := true
		for _, sibling := range siblings {
			if sibling.Status != model.ReleaseReleased {
				allReleased = false
				break
			}
		}

		if allReleased && lot.Status == model.StatusApproved {
			if err := s.engine.ChangeStatus(tx, lot, model.StatusReleased, "", actor.ID); err != nil {
				return err
			}
		}

		approved = release
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *releaseService) SendBack(id uuid.UUID, reason string, actor authz.Actor) (*model.COARelease, error) {
	if err := authz.Require(actor, authz.CapSendBack); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.ErrSendBackReasonRequired
	}

	var sentBack *model.COARelease

	err := s.db.Transaction(func(tx *gorm.DB) error {
		release, err := s.releaseRepo.FindByIDTx(tx, id)
		if err != nil {
			return model.ErrReleaseNotFound
		}
		lot, err := s.lotRepo.FindForUpdate(tx, release.LotID)
		if err != nil {
			return model.ErrLotNotFound
		}
		release, err = s.releaseRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrReleaseNotFound
		}

		if release.Status != model.ReleaseAwaiting {
			return ErrReleaseNotAwaiting
		}

		previousReason := release.SendBackReason
		release.SendBackReason = reason
		release.UpdatedBy = actor.ID
		if err := tx.Save(release).Error; err != nil {
			return err
		}

		err = s.audit.Log(tx, release.TableName(), release.ID, model.AuditUpdate,
			map[string]interface{}{"send_back_reason": previousReason},
			map[string]interface{}{"send_back_reason": reason},
			actor.ID, "")
		if err != nil {
			return err
		}

		// Send-back is the one reverse edge the release workflow owns: the
		// parent lot returns to QC review so the findings can be addressed.
		// Logged as its own audit entry on the lot.
		if lot.Status != model.StatusUnderReview {
			from := lot.Status
			lot.Status = model.StatusUnderReview
			lot.UpdatedBy = actor.ID
			if err := tx.Save(lot).Error; err != nil {
				return err
			}
			err = s.audit.Log(tx, lot.TableName(), lot.ID, model.AuditUpdate,
				map[string]interface{}{"status": string(from)},
				map[string]interface{}{"status": string(model.StatusUnderReview)},
				actor.ID, reason)
			if err != nil {
				return err
			}
		}

		sentBack = release
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sentBack, nil
}

// SaveDraft is a non-workflow autosave of the release screen; deliberately
// not audited as a state transition.
func (s *releaseService) SaveDraft(id uuid.UUID, req *SaveDraftRequest) (*model.COARelease, error) {
	release, err := s.releaseRepo.FindByID(id)
	if err != nil {
		return nil, model.ErrReleaseNotFound
	}

	release.DraftData = datatypes.JSONMap{
		"customer_id": req.CustomerID,
		"notes":       req.Notes,
	}
	if err := s.db.Model(release).Update("draft_data", release.DraftData).Error; err != nil {
		return nil, err
	}
	return release, nil
}

func (s *releaseService) AttachDocument(id uuid.UUID, filePath string, actor authz.Actor) (*model.COARelease, error) {
	var updated *model.COARelease

	err := s.db.Transaction(func(tx *gorm.DB) error {
		release, err := s.releaseRepo.FindForUpdate(tx, id)
		if err != nil {
			return model.ErrReleaseNotFound
		}

		previous := release.CoaFilePath
		release.CoaFilePath = filePath
		release.UpdatedBy = actor.ID
		if err := tx.Save(release).Error; err != nil {
			return err
		}

		err = s.audit.Log(tx, release.TableName(), release.ID, model.AuditUpdate,
			map[string]interface{}{"coa_file_path": previous},
			map[string]interface{}{"coa_file_path": filePath},
			actor.ID, "")
		if err != nil {
			return err
		}

		updated = release
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SendEmail records that a COA email was issued. Delivery itself is an
// external collaborator; this only books the EmailHistory fact.
func (s *releaseService) SendEmail(id uuid.UUID, req *SendEmailRequest, actor authz.Actor) (*model.EmailHistory, error) {
	release, err := s.releaseRepo.FindByID(id)
	if err != nil {
		return nil, model.ErrReleaseNotFound
	}

	history := &model.EmailHistory{
		COAReleaseID: release.ID,
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		SentBy:       actor.ID,
		SentAt:       time.Now(),
	}
	history.CreatedBy = actor.ID
	if err := s.db.Create(history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

func (s *releaseService) GetByID(id uuid.UUID) (*model.COARelease, error) {
	release, err := s.releaseRepo.FindByID(id)
	if err != nil {
		return nil, model.ErrReleaseNotFound
	}
	return release, nil
}

func (s *releaseService) GetByLotID(lotID uuid.UUID) ([]model.COARelease, error) {
	return s.releaseRepo.FindByLotID(lotID)
}

func (s *releaseService) GetAwaiting() ([]model.COARelease, error) {
	return s.releaseRepo.FindAwaiting()
}
