package repository

import (
	"go-lims-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LotRepository interface {
	Create(lot *model.Lot) error
	FindAll() ([]model.Lot, error)
	FindByID(id uuid.UUID) (*model.Lot, error)
	FindByLotNumber(lotNumber string) (*model.Lot, error)
	FindByReferenceNumber(referenceNumber string) (*model.Lot, error)
	FindByStatus(status model.LotStatus) ([]model.Lot, error)

	// FindForUpdate loads and row-locks a lot inside the caller's transaction.
	// Every workflow mutation goes through this so concurrent operations on
	// the same lot serialize on the lot row.
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Lot, error)

	CountByStatus() (map[model.LotStatus]int64, error)
	CountPendingRetests() (int64, error)
}

type lotRepo struct {
	db *gorm.DB
}

func NewLotRepo(db *gorm.DB) LotRepository {
	return &lotRepo{db}
}

func (r *lotRepo) Create(lot *model.Lot) error {
	return r.db.Create(lot).Error
}

func (r *lotRepo) FindAll() ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.Preload("Products").Preload("TestResults").
		Order("created_at DESC").Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindByID(id uuid.UUID) (*model.Lot, error) {
	var lot model.Lot
	err := r.db.Preload("Products").Preload("TestResults").
		Preload("Releases").Preload("RetestRequests.Items").
		First(&lot, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *lotRepo) FindByLotNumber(lotNumber string) (*model.Lot, error) {
	var lot model.Lot
	err := r.db.Preload("Products").First(&lot, "lot_number = ?", lotNumber).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *lotRepo) FindByReferenceNumber(referenceNumber string) (*model.Lot, error) {
	var lot model.Lot
	err := r.db.First(&lot, "reference_number = ?", referenceNumber).Error
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *lotRepo) FindByStatus(status model.LotStatus) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.Preload("Products").Where("status = ?", status).
		Order("created_at DESC").Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	var lot model.Lot
	if err := lockForUpdate(tx).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *lotRepo) CountByStatus() (map[model.LotStatus]int64, error) {
	type row struct {
		Status model.LotStatus
		Total  int64
	}
	var rows []row
	err := r.db.Model(&model.Lot{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.LotStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Total
	}
	return counts, nil
}

func (r *lotRepo) CountPendingRetests() (int64, error) {
	var count int64
	err := r.db.Model(&model.RetestRequest{}).
		Where("status = ?", model.RetestPending).
		Count(&count).Error
	return count, err
}
