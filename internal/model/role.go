package model

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // ADMIN, QC_MANAGER, ...
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleAdmin     = "ADMIN"
	RoleQCManager = "QC_MANAGER"
	RoleLabTech   = "LAB_TECH"
	RoleReadOnly  = "READ_ONLY"
)

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Full system access with all privileges",
	},
	{
		Code:        RoleQCManager,
		Name:        "QC Manager",
		Description: "Approves results, releases COAs, manages retests and lot dispositions",
	},
	{
		Code:        RoleLabTech,
		Name:        "Lab Technician",
		Description: "Records and edits draft test results",
	},
	{
		Code:        RoleReadOnly,
		Name:        "Read Only",
		Description: "View-only access to lots, results and audit history",
	},
}
