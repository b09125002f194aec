package repository

import (
	"go-lims-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TestResultRepository interface {
	FindByID(id uuid.UUID) (*model.TestResult, error)
	FindByLotID(lotID uuid.UUID) ([]model.TestResult, error)
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.TestResult, error)

	// FindByIDTx reads a result through the open transaction. Used to learn
	// the owning lot before taking row locks in lot-then-result order; a read
	// through the pool here would run outside the transaction's isolation.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.TestResult, error)

	// FindByLotIDTx re-reads a lot's results inside a transaction, so status
	// recalculation sees the mutation that triggered it.
	FindByLotIDTx(tx *gorm.DB, lotID uuid.UUID) ([]model.TestResult, error)
}

type testResultRepo struct {
	db *gorm.DB
}

func NewTestResultRepo(db *gorm.DB) TestResultRepository {
	return &testResultRepo{db}
}

func (r *testResultRepo) FindByID(id uuid.UUID) (*model.TestResult, error) {
	var result model.TestResult
	if err := r.db.First(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *testResultRepo) FindByLotID(lotID uuid.UUID) ([]model.TestResult, error) {
	var results []model.TestResult
	err := r.db.Where("lot_id = ?", lotID).Order("test_type ASC").Find(&results).Error
	return results, err
}

func (r *testResultRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.TestResult, error) {
	var result model.TestResult
	if err := lockForUpdate(tx).First(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *testResultRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.TestResult, error) {
	var result model.TestResult
	if err := tx.First(&result, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *testResultRepo) FindByLotIDTx(tx *gorm.DB, lotID uuid.UUID) ([]model.TestResult, error) {
	var results []model.TestResult
	err := tx.Where("lot_id = ?", lotID).Order("test_type ASC").Find(&results).Error
	return results, err
}
