package repository

import (
	"go-lims-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditRepository interface {
	// Insert writes an audit entry inside the caller's transaction, so the
	// entry and the entity mutation commit atomically or not at all.
	Insert(tx *gorm.DB, entry *model.AuditLog) error

	FindByRecord(tableName string, recordID uuid.UUID, skip, limit int) ([]model.AuditLog, error)

	// FindByRecords merges entries across tables. recordIDs maps a table
	// name to the record ids whose history should be included; the merged
	// timeline is ordered newest-first.
	FindByRecords(recordIDs map[string][]uuid.UUID, skip, limit int) ([]model.AuditLog, error)

	FindRecent(limit int) ([]model.AuditLog, error)
}

type auditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db}
}

func (r *auditRepo) Insert(tx *gorm.DB, entry *model.AuditLog) error {
	return tx.Create(entry).Error
}

func (r *auditRepo) FindByRecord(tableName string, recordID uuid.UUID, skip, limit int) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.Where("table_name = ? AND record_id = ?", tableName, recordID).
		Order("created_at DESC").
		Offset(skip).Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *auditRepo) FindByRecords(recordIDs map[string][]uuid.UUID, skip, limit int) ([]model.AuditLog, error) {
	query := r.db.Model(&model.AuditLog{})

	first := true
	for tableName, ids := range recordIDs {
		if len(ids) == 0 {
			continue
		}
		if first {
			query = query.Where("table_name = ? AND record_id IN ?", tableName, ids)
			first = false
		} else {
			query = query.Or("table_name = ? AND record_id IN ?", tableName, ids)
		}
	}
	if first {
		// Nothing to query
		return []model.AuditLog{}, nil
	}

	var entries []model.AuditLog
	err := query.Order("created_at DESC").
		Offset(skip).Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *auditRepo) FindRecent(limit int) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
