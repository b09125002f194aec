package service

import (
	"strings"

	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditService is the append-only ledger every workflow writes through.
// Entries are inserted inside the caller's transaction: either the entity
// mutation and its audit entry both commit, or neither does.
type AuditService interface {
	Log(tx *gorm.DB, tableName string, recordID uuid.UUID, action model.AuditAction,
		oldValues, newValues map[string]interface{}, userID, reason string) error

	GetHistory(tableName string, recordID uuid.UUID, skip, limit int) ([]model.AuditLog, error)
	GetCombinedLotHistory(lotID uuid.UUID, skip, limit int) (*CombinedLotHistory, error)
	GetRecent(limit int) ([]model.AuditLog, error)
}

// CombinedLotHistory merges the audit timelines of a lot, its test results
// and its COA releases into one descending-by-time view.
type CombinedLotHistory struct {
	LotID   uuid.UUID        `json:"lot_id"`
	Entries []model.AuditLog `json:"entries"`
	Sources []string         `json:"sources"` // tables that contributed entries
}

type auditService struct {
	auditRepo   repository.AuditRepository
	lotRepo     repository.LotRepository
	resultRepo  repository.TestResultRepository
	releaseRepo repository.ReleaseRepository
}

func NewAuditService(auditRepo repository.AuditRepository, lotRepo repository.LotRepository,
	resultRepo repository.TestResultRepository, releaseRepo repository.ReleaseRepository) AuditService {
	return &auditService{
		auditRepo:   auditRepo,
		lotRepo:     lotRepo,
		resultRepo:  resultRepo,
		releaseRepo: releaseRepo,
	}
}

func (s *auditService) Log(tx *gorm.DB, tableName string, recordID uuid.UUID, action model.AuditAction,
	oldValues, newValues map[string]interface{}, userID, reason string) error {

	// Destructive actions are only recorded with a justification
	if (action == model.AuditReject || action == model.AuditDelete) && strings.TrimSpace(reason) == "" {
		return model.ErrAuditReasonRequired
	}

	entry := &model.AuditLog{
		TableName: tableName,
		RecordID:  recordID,
		Action:    action,
		OldValues: datatypes.JSONMap(oldValues),
		NewValues: datatypes.JSONMap(newValues),
		UserID:    userID,
		Reason:    strings.TrimSpace(reason),
	}
	return s.auditRepo.Insert(tx, entry)
}

func (s *auditService) GetHistory(tableName string, recordID uuid.UUID, skip, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.auditRepo.FindByRecord(tableName, recordID, skip, limit)
}

func (s *auditService) GetCombinedLotHistory(lotID uuid.UUID, skip, limit int) (*CombinedLotHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	lot, err := s.lotRepo.FindByID(lotID)
	if err != nil {
		return nil, model.ErrLotNotFound
	}

	results, err := s.resultRepo.FindByLotID(lot.ID)
	if err != nil {
		return nil, err
	}
	releases, err := s.releaseRepo.FindByLotID(lot.ID)
	if err != nil {
		return nil, err
	}

	recordIDs := map[string][]uuid.UUID{
		model.Lot{}.TableName():        {lot.ID},
		model.TestResult{}.TableName(): {},
		model.COARelease{}.TableName(): {},
	}
	for _, result := range results {
		recordIDs[model.TestResult{}.TableName()] = append(recordIDs[model.TestResult{}.TableName()], result.ID)
	}
	for _, release := range releases {
		recordIDs[model.COARelease{}.TableName()] = append(recordIDs[model.COARelease{}.TableName()], release.ID)
	}

	entries, err := s.auditRepo.FindByRecords(recordIDs, skip, limit)
	if err != nil {
		return nil, err
	}

	// Report which source tables actually contributed to this view
	seen := map[string]bool{}
	sources := []string{}
	for _, entry := range entries {
		if !seen[entry.TableName] {
			seen[entry.TableName] = true
			sources = append(sources, entry.TableName)
		}
	}

	return &CombinedLotHistory{
		LotID:   lot.ID,
		Entries: entries,
		Sources: sources,
	}, nil
}

func (s *auditService) GetRecent(limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.auditRepo.FindRecent(limit)
}
