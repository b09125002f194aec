package service

import (
	"errors"

	"go-lims-ws/internal/model"
	"go-lims-ws/internal/repository"
	"go-lims-ws/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrProductCodeExists = errors.New("product code already exists")

type ProductService interface {
	CreateProduct(req *CreateProductRequest, actorID string) (*model.Product, error)
	AddSpecification(productID uuid.UUID, req *AddSpecificationRequest, actorID string) (*model.ProductTestSpecification, error)
	GetAllProducts() ([]model.Product, error)
	GetProductByID(id uuid.UUID) (*model.Product, error)
}

type CreateProductRequest struct {
	Code           string                    `json:"code" validate:"required"`
	Name           string                    `json:"name" validate:"required"`
	CustomerName   string                    `json:"customer_name"`
	Specifications []AddSpecificationRequest `json:"specifications"`
}

type AddSpecificationRequest struct {
	TestType      string `json:"test_type" validate:"required"`
	Specification string `json:"specification" validate:"required"`
	Unit          string `json:"unit"`
	IsRequired    *bool  `json:"is_required"`
}

type productService struct {
	productRepo repository.ProductRepository
	audit       AuditService
	db          *gorm.DB
}

func NewProductService(productRepo repository.ProductRepository, audit AuditService, db *gorm.DB) ProductService {
	return &productService{productRepo: productRepo, audit: audit, db: db}
}

func (s *productService) CreateProduct(req *CreateProductRequest, actorID string) (*model.Product, error) {
	if errs := validator.ValidateStruct(req); errs != nil {
		return nil, errors.New("validation failed: " + errs[0].FailedField + " " + errs[0].Tag)
	}

	// 1. Code must be unique
	if _, err := s.productRepo.FindByCode(req.Code); err == nil {
		return nil, ErrProductCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	product := &model.Product{
		Code:         req.Code,
		Name:         req.Name,
		CustomerName: req.CustomerName,
	}
	product.CreatedBy = actorID
	for _, sr := range req.Specifications {
		spec := model.ProductTestSpecification{
			TestType:      sr.TestType,
			Specification: sr.Specification,
			Unit:          sr.Unit,
			IsRequired:    true,
		}
		if sr.IsRequired != nil {
			spec.IsRequired = *sr.IsRequired
		}
		product.TestSpecifications = append(product.TestSpecifications, spec)
	}

	// 2. Create product with its acceptance rules and the audit entry together
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, "products", product.ID, model.AuditInsert,
			nil, map[string]interface{}{"code": product.Code, "name": product.Name}, actorID, "")
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) AddSpecification(productID uuid.UUID, req *AddSpecificationRequest, actorID string) (*model.ProductTestSpecification, error) {
	if errs := validator.ValidateStruct(req); errs != nil {
		return nil, errors.New("validation failed: " + errs[0].FailedField + " " + errs[0].Tag)
	}

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		return nil, err
	}

	spec := &model.ProductTestSpecification{
		ProductID:     product.ID,
		TestType:      req.TestType,
		Specification: req.Specification,
		Unit:          req.Unit,
		IsRequired:    true,
	}
	if req.IsRequired != nil {
		spec.IsRequired = *req.IsRequired
	}
	spec.CreatedBy = actorID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(spec).Error; err != nil {
			return err
		}
		return s.audit.Log(tx, "product_test_specifications", spec.ID, model.AuditInsert,
			nil, map[string]interface{}{
				"product_id":    spec.ProductID.String(),
				"test_type":     spec.TestType,
				"specification": spec.Specification,
			}, actorID, "")
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *productService) GetAllProducts() ([]model.Product, error) {
	return s.productRepo.FindAll()
}

func (s *productService) GetProductByID(id uuid.UUID) (*model.Product, error) {
	return s.productRepo.FindByID(id)
}
