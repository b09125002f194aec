package model

import (
	"time"

	"github.com/google/uuid"
)

// RetestStatus is the lifecycle of a retest request
type RetestStatus string

const (
	RetestPending   RetestStatus = "pending"
	RetestCompleted RetestStatus = "completed"
)

// RetestRequest asks for a set of failed/questioned results to be re-measured
type RetestRequest struct {
	BaseModel
	LotID uuid.UUID `gorm:"type:uuid;not null;index" json:"lot_id" validate:"uuid_required"`
	Lot   *Lot      `gorm:"foreignKey:LotID" json:"lot,omitempty" validate:"-"`

	ReferenceNumber string `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference_number"`
	RetestNumber    int    `gorm:"not null" json:"retest_number"` // per-lot sequence starting at 1

	Reason      string       `gorm:"type:text;not null" json:"reason" validate:"required"`
	Status      RetestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequestedBy string       `gorm:"type:varchar(255)" json:"requested_by"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`

	Items []RetestItem `json:"items,omitempty"`
}

func (RetestRequest) TableName() string {
	return "retest_requests"
}

// RetestItem snapshots one test result at request time. OriginalValue is
// frozen at creation and is never overwritten by later edits to the live
// result; it exists so history comparison stays exact.
type RetestItem struct {
	BaseModel
	RetestRequestID uuid.UUID   `gorm:"type:uuid;not null;index" json:"retest_request_id"`
	TestResultID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"test_result_id"`
	TestResult      *TestResult `gorm:"foreignKey:TestResultID" json:"test_result,omitempty"`

	TestType      string `gorm:"type:varchar(100)" json:"test_type"`
	OriginalValue string `gorm:"type:varchar(255)" json:"original_value"`
}

func (RetestItem) TableName() string {
	return "retest_items"
}
