// Package authz centralizes the authorization policy for workflow
// operations. Every service checks capabilities here instead of carrying
// its own ad hoc role lists.
package authz

import "go-lims-ws/internal/model"

// Capability is a closed enum of guarded workflow actions
type Capability string

const (
	CapApproveResult  Capability = "approve_result"
	CapDeleteResult   Capability = "delete_result"
	CapRejectLot      Capability = "reject_lot"
	CapOverrideLot    Capability = "override_lot"
	CapDeleteLot      Capability = "delete_lot"
	CapApproveRelease Capability = "approve_release"
	CapSendBack       Capability = "send_back_release"
	CapCreateRetest   Capability = "create_retest"
	CapCompleteRetest Capability = "complete_retest"
)

// rolePolicy is the single policy table: which role codes hold which
// capabilities. Only QC managers and admins may approve, reject, release,
// override or manage retests. Lab techs record and edit draft results,
// which is unguarded here and enforced by result-level privileges.
var rolePolicy = map[Capability][]string{
	CapApproveResult:  {model.RoleQCManager, model.RoleAdmin},
	CapDeleteResult:   {model.RoleQCManager, model.RoleAdmin},
	CapRejectLot:      {model.RoleQCManager, model.RoleAdmin},
	CapOverrideLot:    {model.RoleQCManager, model.RoleAdmin},
	CapDeleteLot:      {model.RoleQCManager, model.RoleAdmin},
	CapApproveRelease: {model.RoleQCManager, model.RoleAdmin},
	CapSendBack:       {model.RoleQCManager, model.RoleAdmin},
	CapCreateRetest:   {model.RoleQCManager, model.RoleAdmin},
	CapCompleteRetest: {model.RoleQCManager, model.RoleAdmin},
}

// Actor is the resolved identity a workflow operation runs as
type Actor struct {
	ID       string
	Name     string
	Email    string
	RoleCode string
}

// Allowed reports whether the role holds the capability
func Allowed(roleCode string, c Capability) bool {
	for _, allowed := range rolePolicy[c] {
		if allowed == roleCode {
			return true
		}
	}
	return false
}

// Require returns ErrPermissionDenied when the actor's role lacks the capability
func Require(actor Actor, c Capability) error {
	if !Allowed(actor.RoleCode, c) {
		return model.ErrPermissionDenied
	}
	return nil
}
