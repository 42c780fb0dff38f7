package models

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var centsDivisor = decimal.NewFromInt(100)

func formatCents(amount decimal.Decimal) string {
	return amount.Div(centsDivisor).StringFixed(2)
}

// ExportBordereauXLSX renders the materialized bordereau as a workbook
// (a summary sheet plus one act-detail sheet) and uploads it to GCS.
// Returns the stored object name.
func ExportBordereauXLSX(ctx context.Context, id int) (string, error) {
	detail, err := GetBordereau(ctx, id)
	if err != nil {
		return "", err
	}

	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	summary := "Summary"
	file.SetSheetName("Sheet1", summary)

	header := [][]interface{}{
		{"Bordereau", detail.Number},
		{"Kind", string(detail.Kind)},
		{"Status", string(detail.Status)},
		{"Recipient", detail.Recipient},
		{"Documents", detail.DocumentCount},
		{"Total", formatCents(detail.Total)},
		{"Insurer share", formatCents(detail.InsurerShare)},
		{"Patient share", formatCents(detail.PatientShare)},
	}
	for i, row := range header {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := file.SetSheetRow(summary, cell, &row); err != nil {
			return "", err
		}
	}

	documents := make([]CareDocument, 0, detail.DocumentCount)
	for _, sheetDetail := range detail.CareSheets {
		documents = append(documents, sheetDetail.CareSheet)
	}
	for _, invoiceDetail := range detail.OrthopedicInvoices {
		documents = append(documents, invoiceDetail.OrthopedicInvoice)
	}

	listStart := len(header) + 2
	titleCell, _ := excelize.CoordinatesToCellName(1, listStart)
	title := []interface{}{"Kind", "Document", "Patient", "Total"}
	if err := file.SetSheetRow(summary, titleCell, &title); err != nil {
		return "", err
	}
	for i, document := range documents {
		patientId := ""
		switch doc := document.(type) {
		case CareSheet:
			patientId = doc.PatientId
		case OrthopedicInvoice:
			patientId = doc.PatientId
		}
		cell, _ := excelize.CoordinatesToCellName(1, listStart+1+i)
		row := []interface{}{
			string(document.DocumentKind()),
			document.DocumentId(),
			patientId,
			formatCents(document.TotalAmount()),
		}
		if err := file.SetSheetRow(summary, cell, &row); err != nil {
			return "", err
		}
	}

	acts := "Acts"
	if _, err := file.NewSheet(acts); err != nil {
		return "", err
	}
	actHeader := []interface{}{"Kind", "Document", "Code", "Label", "Unit price", "Coefficient", "Total", "Insurer share", "Patient share"}
	if err := file.SetSheetRow(acts, "A1", &actHeader); err != nil {
		return "", err
	}

	actRow := 2
	writeAct := func(kind DocumentKind, documentId int, occurrence ActOccurrence) error {
		cell, _ := excelize.CoordinatesToCellName(1, actRow)
		row := []interface{}{
			string(kind),
			documentId,
			occurrence.Code,
			occurrence.Label,
			formatCents(occurrence.UnitPrice),
			occurrence.Coefficient.String(),
			formatCents(occurrence.Total),
			formatCents(occurrence.InsurerShare),
			formatCents(occurrence.PatientShare),
		}
		actRow++
		return file.SetSheetRow(acts, cell, &row)
	}
	for _, sheetDetail := range detail.CareSheets {
		for _, occurrence := range sheetDetail.Acts {
			if err := writeAct(DocumentKindCareSheet, sheetDetail.ID, occurrence); err != nil {
				return "", err
			}
		}
	}
	for _, invoiceDetail := range detail.OrthopedicInvoices {
		for _, occurrence := range invoiceDetail.Acts {
			if err := writeAct(DocumentKindOrthopedicInvoice, invoiceDetail.ID, occurrence); err != nil {
				return "", err
			}
		}
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("exports/%s-%s.xlsx", detail.OfficeId, detail.Number)
	if err := utils.UploadFileToGCS(ctx, objectName, &buffer); err != nil {
		return "", err
	}

	config.GetLogger().Info("exported bordereau " + detail.Number + " to " + objectName)
	AddHistory(ctx, "Bordereau", strconv.Itoa(detail.ID), "Exported", map[string]string{"object_name": objectName})
	return objectName, nil
}
