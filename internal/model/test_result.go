package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the lifecycle of a single measurement
type ResultStatus string

const (
	ResultDraft    ResultStatus = "draft"
	ResultApproved ResultStatus = "approved"
)

// TestResult is one measurement of one test type against one lot
type TestResult struct {
	BaseModel
	LotID uuid.UUID `gorm:"type:uuid;not null;index" json:"lot_id" validate:"uuid_required"`
	Lot   *Lot      `gorm:"foreignKey:LotID" json:"lot,omitempty" validate:"-"`

	TestType    string `gorm:"type:varchar(100);not null" json:"test_type" validate:"required"`
	ResultValue string `gorm:"type:varchar(255)" json:"result_value"` // qualitative or numeric-with-unit free text

	// Snapshot of the applicable spec string at recording time, so the COA
	// reflects the rule the result was judged against even if reference
	// data changes later.
	Specification string `gorm:"type:varchar(255)" json:"specification"`

	Status     ResultStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	ApprovedBy string       `gorm:"type:varchar(255)" json:"approved_by"`
	ApprovedAt *time.Time   `json:"approved_at,omitempty"`
}

func (TestResult) TableName() string {
	return "test_results"
}

// IsDraft reports whether the result is still editable
func (t *TestResult) IsDraft() bool {
	return t.Status == ResultDraft
}

// Passes evaluates the result against its snapshotted specification
// using the given matcher. Results without a specification pass by default.
func (t *TestResult) Passes(matches func(spec, value string) bool) bool {
	if t.Specification == "" {
		return true
	}
	return matches(t.Specification, t.ResultValue)
}
