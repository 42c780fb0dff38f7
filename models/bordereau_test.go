package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDegradedCareSheetRendersEmpty(t *testing.T) {
	sheet := &CareSheet{
		ID:       42,
		OfficeId: "office-1",
		Flags:    FlagSundayHoliday,
		Total:    decimal.NewFromInt(6038),
	}

	rendered := degradedCareSheetDetail(sheet)

	if rendered.ID != 42 || rendered.OfficeId != "office-1" || rendered.Flags != FlagSundayHoliday {
		t.Fatalf("degraded rendering must keep the document row: %+v", rendered.CareSheet)
	}
	if !rendered.Total.IsZero() {
		t.Fatalf("degraded sheet must render a zero total; got %s", rendered.Total.String())
	}
	if rendered.Acts == nil || len(rendered.Acts) != 0 {
		t.Fatalf("degraded sheet must render an empty act list; got %v", rendered.Acts)
	}
	if !sheet.Total.Equal(decimal.NewFromInt(6038)) {
		t.Fatalf("degraded rendering must not touch the stored row; total is %s", sheet.Total.String())
	}
}

func TestDegradedOrthopedicInvoiceRendersEmpty(t *testing.T) {
	invoice := &OrthopedicInvoice{
		ID:           7,
		OfficeId:     "office-1",
		Total:        decimal.NewFromInt(65000),
		PatientShare: decimal.NewFromInt(22750),
		InsurerShare: decimal.NewFromInt(42250),
	}

	rendered := degradedOrthopedicInvoiceDetail(invoice)

	if rendered.ID != 7 {
		t.Fatalf("degraded rendering must keep the document row: %+v", rendered.OrthopedicInvoice)
	}
	if !rendered.Total.IsZero() || !rendered.PatientShare.IsZero() || !rendered.InsurerShare.IsZero() {
		t.Fatalf("degraded invoice must render zero shares; got %s/%s/%s",
			rendered.Total, rendered.PatientShare, rendered.InsurerShare)
	}
	if rendered.Acts == nil || len(rendered.Acts) != 0 {
		t.Fatalf("degraded invoice must render an empty act list; got %v", rendered.Acts)
	}
	if !invoice.Total.Equal(decimal.NewFromInt(65000)) {
		t.Fatalf("degraded rendering must not touch the stored row; total is %s", invoice.Total.String())
	}
}
