package repository

import (
	"go-lims-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReleaseRepository interface {
	FindByID(id uuid.UUID) (*model.COARelease, error)
	FindByLotID(lotID uuid.UUID) ([]model.COARelease, error)
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.COARelease, error)

	// FindByIDTx reads a release through the open transaction, to learn the
	// owning lot before locking in lot-then-release order.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.COARelease, error)
	FindByLotIDTx(tx *gorm.DB, lotID uuid.UUID) ([]model.COARelease, error)
	FindAwaiting() ([]model.COARelease, error)
	CountAwaiting() (int64, error)
}

type releaseRepo struct {
	db *gorm.DB
}

func NewReleaseRepo(db *gorm.DB) ReleaseRepository {
	return &releaseRepo{db}
}

func (r *releaseRepo) FindByID(id uuid.UUID) (*model.COARelease, error) {
	var release model.COARelease
	err := r.db.Preload("Lot").Preload("Product").First(&release, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *releaseRepo) FindByLotID(lotID uuid.UUID) ([]model.COARelease, error) {
	var releases []model.COARelease
	err := r.db.Preload("Product").Where("lot_id = ?", lotID).Find(&releases).Error
	return releases, err
}

func (r *releaseRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.COARelease, error) {
	var release model.COARelease
	if err := lockForUpdate(tx).First(&release, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *releaseRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.COARelease, error) {
	var release model.COARelease
	if err := tx.First(&release, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

func (r *releaseRepo) FindByLotIDTx(tx *gorm.DB, lotID uuid.UUID) ([]model.COARelease, error) {
	var releases []model.COARelease
	err := tx.Where("lot_id = ?", lotID).Find(&releases).Error
	return releases, err
}

func (r *releaseRepo) FindAwaiting() ([]model.COARelease, error) {
	var releases []model.COARelease
	err := r.db.Preload("Lot").Preload("Product").
		Where("status = ?", model.ReleaseAwaiting).
		Order("created_at ASC").Find(&releases).Error
	return releases, err
}

func (r *releaseRepo) CountAwaiting() (int64, error) {
	var count int64
	err := r.db.Model(&model.COARelease{}).
		Where("status = ?", model.ReleaseAwaiting).
		Count(&count).Error
	return count, err
}
