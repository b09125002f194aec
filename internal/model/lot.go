package model

// LotType classifies how a lot relates to products
type LotType string

const (
	LotTypeStandard          LotType = "standard"
	LotTypeParentLot         LotType = "parent_lot"
	LotTypeMultiSKUComposite LotType = "multi_sku_composite"
)

// Lot represents one physical production lot moving from intake to COA release
type Lot struct {
	BaseModel
	LotNumber       string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"lot_number" validate:"required"`
	ReferenceNumber string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference_number" validate:"required"`
	LotType         LotType   `gorm:"type:varchar(30);not null;default:'standard'" json:"lot_type" validate:"required,oneof=standard parent_lot multi_sku_composite"`
	Status          LotStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	// Required when Status is REJECTED. Also reused (with the "[QC Override] "
	// prefix) to store the justification of a QC override approval.
	RejectionReason string `gorm:"type:text" json:"rejection_reason"`

	HasPendingRetest bool   `gorm:"default:false" json:"has_pending_retest"`
	GenerateCOA      bool   `gorm:"default:true" json:"generate_coa"`
	CoaFilePath      string `gorm:"type:varchar(500)" json:"coa_file_path"` // opaque blob storage key

	// Relations
	Products       []Product       `gorm:"many2many:lot_products;" json:"products,omitempty"`
	TestResults    []TestResult    `json:"test_results,omitempty"`
	Releases       []COARelease    `json:"releases,omitempty"`
	RetestRequests []RetestRequest `json:"retest_requests,omitempty"`
}

func (Lot) TableName() string {
	return "lots"
}

// IsDeletable reports whether the lot may still be hard-deleted.
// Once any result has been recorded the lot is permanent record.
func (l *Lot) IsDeletable() bool {
	return l.Status == StatusAwaitingResults && len(l.TestResults) == 0
}
