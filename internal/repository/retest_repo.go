package repository

import (
	"go-lims-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RetestRepository interface {
	FindByID(id uuid.UUID) (*model.RetestRequest, error)
	FindByLotID(lotID uuid.UUID) ([]model.RetestRequest, error)
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.RetestRequest, error)

	// NextRetestNumber allocates the per-lot sequence value inside the
	// caller's transaction (the lot row must already be locked).
	NextRetestNumber(tx *gorm.DB, lotID uuid.UUID) (int, error)

	// FindPendingByResultID returns pending requests that have an item
	// snapshotting the given test result, items preloaded.
	FindPendingByResultID(tx *gorm.DB, testResultID uuid.UUID) ([]model.RetestRequest, error)

	CountPendingByLotID(tx *gorm.DB, lotID uuid.UUID) (int64, error)
}

type retestRepo struct {
	db *gorm.DB
}

func NewRetestRepo(db *gorm.DB) RetestRepository {
	return &retestRepo{db}
}

func (r *retestRepo) FindByID(id uuid.UUID) (*model.RetestRequest, error) {
	var request model.RetestRequest
	err := r.db.Preload("Items").Preload("Items.TestResult").
		First(&request, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *retestRepo) FindByLotID(lotID uuid.UUID) ([]model.RetestRequest, error) {
	var requests []model.RetestRequest
	err := r.db.Preload("Items").Where("lot_id = ?", lotID).
		Order("retest_number ASC").Find(&requests).Error
	return requests, err
}

func (r *retestRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.RetestRequest, error) {
	var request model.RetestRequest
	if err := lockForUpdate(tx).Preload("Items").First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *retestRepo) NextRetestNumber(tx *gorm.DB, lotID uuid.UUID) (int, error) {
	var maxNumber int
	err := tx.Model(&model.RetestRequest{}).
		Where("lot_id = ?", lotID).
		Select("COALESCE(MAX(retest_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, err
	}
	return maxNumber + 1, nil
}

func (r *retestRepo) FindPendingByResultID(tx *gorm.DB, testResultID uuid.UUID) ([]model.RetestRequest, error) {
	var requests []model.RetestRequest
	err := tx.Preload("Items").
		Joins("JOIN retest_items ON retest_items.retest_request_id = retest_requests.id").
		Where("retest_items.test_result_id = ? AND retest_requests.status = ?", testResultID, model.RetestPending).
		Find(&requests).Error
	return requests, err
}

func (r *retestRepo) CountPendingByLotID(tx *gorm.DB, lotID uuid.UUID) (int64, error) {
	var count int64
	err := tx.Model(&model.RetestRequest{}).
		Where("lot_id = ? AND status = ?", lotID, model.RetestPending).
		Count(&count).Error
	return count, err
}
