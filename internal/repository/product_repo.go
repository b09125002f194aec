package repository

import (
	"go-lims-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(product *model.Product) error
	FindAll() ([]model.Product, error)
	FindByID(id uuid.UUID) (*model.Product, error)
	FindByCode(code string) (*model.Product, error)
	FindByIDs(ids []uuid.UUID) ([]model.Product, error)

	// FindSpecification resolves the acceptance rule for a (product, test type)
	// pair; returns gorm.ErrRecordNotFound when the product has no rule for
	// that test type. Runs through the caller's transaction because the rule
	// is snapshotted while the lot row is locked.
	FindSpecification(tx *gorm.DB, productID uuid.UUID, testType string) (*model.ProductTestSpecification, error)

	CreateSpecification(spec *model.ProductTestSpecification) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

func (r *productRepo) FindAll() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Preload("TestSpecifications").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.Preload("TestSpecifications").First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByCode(code string) (*model.Product, error) {
	var product model.Product
	err := r.db.Preload("TestSpecifications").First(&product, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) FindByIDs(ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepo) FindSpecification(tx *gorm.DB, productID uuid.UUID, testType string) (*model.ProductTestSpecification, error) {
	var spec model.ProductTestSpecification
	err := tx.Where("product_id = ? AND test_type = ?", productID, testType).First(&spec).Error
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

func (r *productRepo) CreateSpecification(spec *model.ProductTestSpecification) error {
	return r.db.Create(spec).Error
}
