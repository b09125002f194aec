package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditAction is the kind of mutation an audit entry records
type AuditAction string

const (
	AuditInsert  AuditAction = "insert"
	AuditUpdate  AuditAction = "update"
	AuditApprove AuditAction = "approve"
	AuditReject  AuditAction = "reject"
	AuditDelete  AuditAction = "delete"
)

// AuditLog is an immutable fact: who changed what, when, and why.
// Rows are only ever inserted; there is no update or delete path for them.
type AuditLog struct {
	ID        uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	TableName string      `gorm:"type:varchar(100);not null;index:idx_audit_table_record" json:"table_name"`
	RecordID  uuid.UUID   `gorm:"type:uuid;not null;index:idx_audit_table_record" json:"record_id"`
	Action    AuditAction `gorm:"type:varchar(20);not null" json:"action"`

	// Structured field diffs. Only the fields that changed appear here;
	// both sides round-trip through JSON so history stays machine-readable.
	OldValues datatypes.JSONMap `gorm:"type:jsonb" json:"old_values"`
	NewValues datatypes.JSONMap `gorm:"type:jsonb" json:"new_values"`

	UserID string `gorm:"type:varchar(255);index" json:"user_id"`

	// Mandatory for reject and delete actions
	Reason string `gorm:"type:text" json:"reason"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
