package models

import (
	"context"
	"strconv"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

// OrthopedicInvoice is the fitting billing document. Unlike care
// sheets it splits every tariff between insurer and patient using the
// catalog coverage rate, and carries no pricing flags.
type OrthopedicInvoice struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	OfficeId     string          `gorm:"size:40;index" json:"office_id"`
	PatientId    string          `gorm:"size:40;index" json:"patient_id"`
	PrescriberId string          `gorm:"size:40;index" json:"prescriber_id"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	Total        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`
	PatientShare decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"patient_share"`
	InsurerShare decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"insurer_share"`
	BordereauId  *int            `gorm:"index" json:"bordereau_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v OrthopedicInvoice) GetOfficeId() string { return v.OfficeId }

func (v OrthopedicInvoice) DocumentId() int              { return v.ID }
func (v OrthopedicInvoice) DocumentKind() DocumentKind   { return DocumentKindOrthopedicInvoice }
func (v OrthopedicInvoice) TotalAmount() decimal.Decimal { return v.Total }
func (v OrthopedicInvoice) BundleRef() *int              { return v.BordereauId }

type NewOrthopedicInvoice struct {
	PatientId    string             `json:"patient_id"`
	PrescriberId string             `json:"prescriber_id"`
	InvoiceDate  time.Time          `json:"invoice_date"`
	Acts         []DocumentActInput `json:"acts"`
}

type UpdateOrthopedicInvoiceInput struct {
	PatientId    *string            `json:"patient_id"`
	PrescriberId *string            `json:"prescriber_id"`
	InvoiceDate  *time.Time         `json:"invoice_date"`
	Acts         []DocumentActInput `json:"acts"`
}

type OrthopedicInvoiceDetail struct {
	OrthopedicInvoice
	Acts []ActOccurrence `json:"acts"`
}

func CreateOrthopedicInvoice(ctx context.Context, input *NewOrthopedicInvoice) (*OrthopedicInvoiceDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePatientExists(ctx, officeId, input.PatientId); err != nil {
		return nil, err
	}
	if err := validatePrescriberExists(ctx, officeId, input.PrescriberId); err != nil {
		return nil, err
	}
	if input.InvoiceDate.IsZero() {
		return nil, utils.NewValidationError("invoice_date", "is required")
	}
	if err := validateActInputs(input.Acts); err != nil {
		return nil, err
	}

	invoice := OrthopedicInvoice{
		OfficeId:     officeId,
		PatientId:    input.PatientId,
		PrescriberId: input.PrescriberId,
		InvoiceDate:  input.InvoiceDate,
		Total:        decimal.Zero,
		PatientShare: decimal.Zero,
		InsurerShare: decimal.Zero,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, err
	}

	occurrences := OccurrencesFromInputs(input.Acts)
	if err := SetDocumentActs(ctx, DocumentKindOrthopedicInvoice, invoice.ID, occurrences, true); err != nil {
		return nil, err
	}

	detail, err := recomputeOrthopedicInvoice(ctx, &invoice)
	if err != nil {
		return nil, err
	}

	AddHistory(ctx, string(DocumentKindOrthopedicInvoice), strconv.Itoa(invoice.ID), "Created", detail)
	return detail, nil
}

func UpdateOrthopedicInvoice(ctx context.Context, id int, input *UpdateOrthopedicInvoiceInput) (*OrthopedicInvoiceDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	invoice, err := utils.FetchModel[OrthopedicInvoice](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	if invoice.BordereauId != nil {
		if err := validateBordereauMutable(ctx, officeId, *invoice.BordereauId); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if input.PatientId != nil {
		if err := validatePatientExists(ctx, officeId, *input.PatientId); err != nil {
			return nil, err
		}
		updates["PatientId"] = *input.PatientId
	}
	if input.PrescriberId != nil {
		if err := validatePrescriberExists(ctx, officeId, *input.PrescriberId); err != nil {
			return nil, err
		}
		updates["PrescriberId"] = *input.PrescriberId
	}
	if input.InvoiceDate != nil {
		if input.InvoiceDate.IsZero() {
			return nil, utils.NewValidationError("invoice_date", "is required")
		}
		updates["InvoiceDate"] = *input.InvoiceDate
	}

	db := config.GetDB()
	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(invoice).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if input.Acts != nil {
		if err := validateActInputs(input.Acts); err != nil {
			return nil, err
		}
		occurrences := OccurrencesFromInputs(input.Acts)
		if err := SetDocumentActs(ctx, DocumentKindOrthopedicInvoice, invoice.ID, occurrences, false); err != nil {
			return nil, err
		}
	}

	detail, err := recomputeOrthopedicInvoice(ctx, invoice)
	if err != nil {
		return nil, err
	}

	AddHistory(ctx, string(DocumentKindOrthopedicInvoice), strconv.Itoa(invoice.ID), "Updated", detail)
	return detail, nil
}

func DeleteOrthopedicInvoice(ctx context.Context, id int) error {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return err
	}

	invoice, err := utils.FetchModel[OrthopedicInvoice](ctx, officeId, id)
	if err != nil {
		return err
	}
	if invoice.BordereauId != nil {
		if err := validateBordereauMutable(ctx, officeId, *invoice.BordereauId); err != nil {
			return err
		}
	}

	if err := RemoveDocumentActs(ctx, DocumentKindOrthopedicInvoice, invoice.ID); err != nil {
		return err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(invoice).Error; err != nil {
		return err
	}

	AddHistory(ctx, string(DocumentKindOrthopedicInvoice), strconv.Itoa(invoice.ID), "Deleted", nil)
	return nil
}

func GetOrthopedicInvoice(ctx context.Context, id int) (*OrthopedicInvoiceDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	invoice, err := utils.FetchModel[OrthopedicInvoice](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	return recomputeOrthopedicInvoice(ctx, invoice)
}

type OrthopedicInvoiceFilter struct {
	PatientId   *string
	BordereauId *int
	Unattached  bool
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

func ListOrthopedicInvoices(ctx context.Context, filter *OrthopedicInvoiceFilter) ([]*OrthopedicInvoice, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Where("office_id = ?", officeId)
	if filter != nil {
		if filter.PatientId != nil {
			query = query.Where("patient_id = ?", *filter.PatientId)
		}
		if filter.BordereauId != nil {
			query = query.Where("bordereau_id = ?", *filter.BordereauId)
		} else if filter.Unattached {
			query = query.Where("bordereau_id IS NULL")
		}
		if filter.From != nil {
			query = query.Where("invoice_date >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("invoice_date <= ?", *filter.To)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit).Offset(filter.Offset)
		}
	}

	var invoices []*OrthopedicInvoice
	err = query.Order("invoice_date DESC, id DESC").Find(&invoices).Error
	return invoices, err
}

func recomputeOrthopedicInvoice(ctx context.Context, invoice *OrthopedicInvoice) (*OrthopedicInvoiceDetail, error) {
	occurrences, err := GetDocumentActs(ctx, DocumentKindOrthopedicInvoice, invoice.ID)
	if err != nil {
		return nil, err
	}
	return orthopedicInvoiceDetail(ctx, invoice, occurrences)
}

func orthopedicInvoiceDetail(ctx context.Context, invoice *OrthopedicInvoice, occurrences []ActOccurrence) (*OrthopedicInvoiceDetail, error) {
	priced, total, patientShare, insurerShare := PriceOrthopedicOccurrences(occurrences)

	if !invoice.Total.Equal(total) || !invoice.PatientShare.Equal(patientShare) || !invoice.InsurerShare.Equal(insurerShare) {
		db := config.GetDB()
		err := db.WithContext(ctx).Model(invoice).Updates(map[string]interface{}{
			"Total":        total,
			"PatientShare": patientShare,
			"InsurerShare": insurerShare,
		}).Error
		if err != nil {
			return nil, err
		}
		invoice.Total = total
		invoice.PatientShare = patientShare
		invoice.InsurerShare = insurerShare
	}

	return &OrthopedicInvoiceDetail{OrthopedicInvoice: *invoice, Acts: priced}, nil
}
