package model

import "github.com/google/uuid"

// Product is a sellable SKU a lot can be produced against.
// A multi-SKU composite lot is associated with more than one product.
type Product struct {
	BaseModel
	Code         string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code" validate:"required"`
	Name         string `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	CustomerName string `gorm:"type:varchar(255)" json:"customer_name"`

	// Acceptance rules per test type
	TestSpecifications []ProductTestSpecification `json:"test_specifications,omitempty"`
}

// ProductTestSpecification is the acceptance rule for a (product, test type) pair.
// Reference data: consulted during status recalculation, never mutated by workflows.
type ProductTestSpecification struct {
	BaseModel
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id" validate:"uuid_required"`
	TestType      string    `gorm:"type:varchar(100);not null" json:"test_type" validate:"required"`
	Specification string    `gorm:"type:varchar(255);not null" json:"specification" validate:"required"` // e.g. "< 10,000 CFU/g", "Negative", "5-10"
	Unit          string    `gorm:"type:varchar(50)" json:"unit"`
	IsRequired    bool      `gorm:"default:true" json:"is_required"`
}

func (ProductTestSpecification) TableName() string {
	return "product_test_specifications"
}
