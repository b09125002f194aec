package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "result:approve"
	Name string `gorm:"type:varchar(100)" json:"name"`                     // e.g., "Approve Test Result"
}

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: "user:view", Name: "View User"},
	{Code: "user:create", Name: "Create User"},
	{Code: "user:update", Name: "Update User"},
	{Code: "user:delete", Name: "Delete User"},
	{Code: "user:update_privilege", Name: "Update User Privileges"},
	// Product reference data
	{Code: "product:view", Name: "View Product"},
	{Code: "product:create", Name: "Create Product"},
	{Code: "product:update", Name: "Update Product"},
	// Lot management
	{Code: "lot:view", Name: "View Lot"},
	{Code: "lot:create", Name: "Create Lot"},
	{Code: "lot:update", Name: "Update Lot"},
	{Code: "lot:reject", Name: "Reject Lot"},
	{Code: "lot:override", Name: "QC Override Lot"},
	{Code: "lot:delete", Name: "Delete Lot"},
	// Test result management
	{Code: "result:view", Name: "View Test Result"},
	{Code: "result:create", Name: "Create Test Result"},
	{Code: "result:update", Name: "Update Test Result"},
	{Code: "result:approve", Name: "Approve Test Result"},
	{Code: "result:delete", Name: "Delete Test Result"},
	// COA release management
	{Code: "release:view", Name: "View COA Release"},
	{Code: "release:approve", Name: "Approve COA Release"},
	{Code: "release:send_back", Name: "Send Back COA Release"},
	// Retest management
	{Code: "retest:view", Name: "View Retest Request"},
	{Code: "retest:create", Name: "Create Retest Request"},
	{Code: "retest:complete", Name: "Complete Retest Request"},
	// Audit trail
	{Code: "audit:view", Name: "View Audit Trail"},
	// Dashboard
	{Code: "dashboard:view", Name: "View Dashboard"},
}
