package validator

import (
	"testing"

	"github.com/google/uuid"
)

type intakeForm struct {
	LotID     uuid.UUID `validate:"uuid_required"`
	LotNumber string    `validate:"required,lot_number"`
}

func TestLotNumberRule(t *testing.T) {
	cases := []struct {
		number string
		valid  bool
	}{
		{"LOT-001", true},
		{"RT-LOT-001-2", true},
		{"A1", true},
		{"lot-001", false},
		{"LOT 001", false},
		{"-LOT-001", false},
		{"LOT-001-", false},
		{"LOT--001", false},
		{"", false},
	}

	for _, c := range cases {
		form := intakeForm{LotID: uuid.New(), LotNumber: c.number}
		errs := ValidateStruct(form)
		if c.valid && len(errs) > 0 {
			t.Fatalf("%q: unexpected error on tag %s", c.number, errs[0].Tag)
		}
		if !c.valid && len(errs) == 0 {
			t.Fatalf("%q: expected a validation error", c.number)
		}
	}
}

func TestUUIDRequiredRule(t *testing.T) {
	errs := ValidateStruct(intakeForm{LotID: uuid.Nil, LotNumber: "LOT-001"})
	if len(errs) == 0 {
		t.Fatal("nil uuid must fail validation")
	}
	if errs[0].Tag != "uuid_required" {
		t.Fatalf("tag = %s, want uuid_required", errs[0].Tag)
	}
}
