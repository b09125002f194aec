package authz

import (
	"errors"
	"testing"

	"go-lims-ws/internal/model"
)

var allCapabilities = []Capability{
	CapApproveResult, CapDeleteResult,
	CapRejectLot, CapOverrideLot, CapDeleteLot,
	CapApproveRelease, CapSendBack,
	CapCreateRetest, CapCompleteRetest,
}

func TestQCDecisionsRestrictedToManagersAndAdmins(t *testing.T) {
	for _, c := range allCapabilities {
		if !Allowed(model.RoleQCManager, c) {
			t.Errorf("QC_MANAGER must hold %s", c)
		}
		if !Allowed(model.RoleAdmin, c) {
			t.Errorf("ADMIN must hold %s", c)
		}
		if Allowed(model.RoleLabTech, c) {
			t.Errorf("LAB_TECH must not hold %s", c)
		}
		if Allowed(model.RoleReadOnly, c) {
			t.Errorf("READ_ONLY must not hold %s", c)
		}
	}
}

func TestRequireDeniesUnknownRole(t *testing.T) {
	actor := Actor{ID: "u-1", RoleCode: "INTERN"}
	err := Require(actor, CapApproveResult)
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	actor.RoleCode = model.RoleQCManager
	if err := Require(actor, CapApproveResult); err != nil {
		t.Fatalf("QC manager must pass, got %v", err)
	}
}
