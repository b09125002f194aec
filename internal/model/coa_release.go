package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReleaseStatus is the lifecycle of a single COA release unit
type ReleaseStatus string

const (
	ReleaseAwaiting ReleaseStatus = "awaiting_release"
	ReleaseReleased ReleaseStatus = "released"
)

// COARelease is one release unit: a (lot, product) pair awaiting sign-off.
// It is created when the lot reaches AWAITING_RELEASE and is terminal once released.
type COARelease struct {
	BaseModel
	LotID     uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_release_lot_product" json:"lot_id" validate:"uuid_required"`
	Lot       *Lot      `gorm:"foreignKey:LotID" json:"lot,omitempty" validate:"-"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_release_lot_product" json:"product_id" validate:"uuid_required"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty" validate:"-"`

	Status     ReleaseStatus `gorm:"type:varchar(30);not null;default:'awaiting_release';index" json:"status"`
	ReleasedAt *time.Time    `json:"released_at,omitempty"`
	ReleasedBy string        `gorm:"type:varchar(255)" json:"released_by"`

	// Recorded when QC sends the lot back to review; the release itself
	// stays awaiting_release.
	SendBackReason string `gorm:"type:text" json:"send_back_reason"`

	// Free-form autosave of customer/notes from the release screen.
	// Not part of the state machine and not audited as a transition.
	DraftData datatypes.JSONMap `gorm:"type:jsonb" json:"draft_data"`

	CoaFilePath string `gorm:"type:varchar(500)" json:"coa_file_path"` // opaque blob storage key
}

func (COARelease) TableName() string {
	return "coa_releases"
}

// EmailHistory records that a COA email was issued for a release.
// Actual delivery is an external collaborator; this is bookkeeping only.
type EmailHistory struct {
	BaseModel
	COAReleaseID uuid.UUID   `gorm:"type:uuid;not null;index" json:"coa_release_id"`
	COARelease   *COARelease `gorm:"foreignKey:COAReleaseID" json:"coa_release,omitempty"`
	Recipient    string      `gorm:"type:varchar(255);not null" json:"recipient"`
	Subject      string      `gorm:"type:varchar(255)" json:"subject"`
	SentBy       string      `gorm:"type:varchar(255)" json:"sent_by"`
	SentAt       time.Time   `json:"sent_at"`
}

func (EmailHistory) TableName() string {
	return "email_histories"
}
