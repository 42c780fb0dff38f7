package utils_test

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

func TestValidateAccordNumber(t *testing.T) {
	cases := []struct {
		value string
		valid bool
	}{
		{"12345678", true},
		{"00000000", true},
		{"1234567", false},
		{"123456789", false},
		{"1234567a", false},
		{"", false},
		{" 12345678", false},
	}
	for _, c := range cases {
		err := utils.ValidateAccordNumber(c.value)
		if c.valid && err != nil {
			t.Errorf("ValidateAccordNumber(%q): unexpected error %v", c.value, err)
		}
		if !c.valid && err == nil {
			t.Errorf("ValidateAccordNumber(%q): expected error", c.value)
		}
	}
}

func TestValidateUUID(t *testing.T) {
	if err := utils.ValidateUUID("office_id", "3d4f1c2a-9b8e-4c5d-a1f2-0123456789ab"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := utils.ValidateUUID("office_id", "not-a-uuid"); err == nil {
		t.Fatal("expected error for malformed uuid")
	}
	if err := utils.ValidateUUID("office_id", ""); err == nil {
		t.Fatal("expected error for empty uuid")
	}
}

func TestRoundAmountHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"6037.5", "6038"},
		{"6037.4", "6037"},
		{"6037.6", "6038"},
		{"-10.5", "-11"},
		{"0", "0"},
	}
	for _, c := range cases {
		in, _ := decimal.NewFromString(c.in)
		want, _ := decimal.NewFromString(c.want)
		if got := utils.RoundAmount(in); got.Cmp(want) != 0 {
			t.Errorf("RoundAmount(%s) = %s, want %s", c.in, got.String(), c.want)
		}
	}
}

func TestIsTransientConflict(t *testing.T) {
	if !utils.IsTransientConflict(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}) {
		t.Fatal("deadlock (1213) must be transient")
	}
	if !utils.IsTransientConflict(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}) {
		t.Fatal("lock wait timeout (1205) must be transient")
	}
	if utils.IsTransientConflict(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Fatal("duplicate entry (1062) must not be transient")
	}
	if utils.IsTransientConflict(errors.New("plain error")) {
		t.Fatal("plain errors must not be transient")
	}
	wrapped := utils.NewTransientConflictError("setDocumentActs", errors.New("deadlock"))
	if !utils.IsTransientConflict(wrapped) {
		t.Fatal("explicit transient conflict must be transient")
	}
}

func TestUniqueSlice(t *testing.T) {
	got := utils.UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 {
		t.Fatalf("expected 3 unique values; got %v", got)
	}
}
