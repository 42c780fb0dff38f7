package models

import (
	"context"
	"strconv"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

// CareSheet is the nursing billing document: patient, prescriber, care
// date, the pricing flags and the recomputed total. Acts live in the
// link store, never on the sheet row.
type CareSheet struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	OfficeId     string          `gorm:"size:40;index" json:"office_id"`
	PatientId    string          `gorm:"size:40;index" json:"patient_id"`
	PrescriberId string          `gorm:"size:40;index" json:"prescriber_id"`
	CareDate     time.Time       `json:"care_date"`
	Flags        CareSheetFlags  `gorm:"not null;default:0" json:"flags"`
	Total        decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`
	BordereauId  *int            `gorm:"index" json:"bordereau_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s CareSheet) GetOfficeId() string { return s.OfficeId }

func (s CareSheet) DocumentId() int              { return s.ID }
func (s CareSheet) DocumentKind() DocumentKind   { return DocumentKindCareSheet }
func (s CareSheet) TotalAmount() decimal.Decimal { return s.Total }
func (s CareSheet) BundleRef() *int              { return s.BordereauId }

type NewCareSheet struct {
	PatientId    string             `json:"patient_id"`
	PrescriberId string             `json:"prescriber_id"`
	CareDate     time.Time          `json:"care_date"`
	Flags        CareSheetFlags     `json:"flags"`
	Acts         []DocumentActInput `json:"acts"`
}

type UpdateCareSheetInput struct {
	PatientId    *string            `json:"patient_id"`
	PrescriberId *string            `json:"prescriber_id"`
	CareDate     *time.Time         `json:"care_date"`
	Flags        *CareSheetFlags    `json:"flags"`
	Acts         []DocumentActInput `json:"acts"`
}

// CareSheetDetail is the read-side materialization: the sheet plus its
// expanded act occurrences priced against the current office settings.
type CareSheetDetail struct {
	CareSheet
	Acts []ActOccurrence `json:"acts"`
}

func validateActInputs(acts []DocumentActInput) error {
	for _, act := range acts {
		if act.ActId <= 0 {
			return utils.NewValidationError("act_id", "is required")
		}
		if act.Quantity < 0 {
			return utils.NewValidationError("quantity", "must not be negative")
		}
	}
	return nil
}

// CreateCareSheet creates the sheet, stores its act links and
// recomputes the total. The link write runs under the transient
// conflict retry policy with the settle delay, the sheet row having
// just been committed.
func CreateCareSheet(ctx context.Context, input *NewCareSheet) (*CareSheetDetail, error) {
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
	if input.CareDate.IsZero() {
		return nil, utils.NewValidationError("care_date", "is required")
	}
	if err := validateActInputs(input.Acts); err != nil {
		return nil, err
	}

	sheet := CareSheet{
		OfficeId:     officeId,
		PatientId:    input.PatientId,
		PrescriberId: input.PrescriberId,
		CareDate:     input.CareDate,
		Flags:        input.Flags,
		Total:        decimal.Zero,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&sheet).Error; err != nil {
		return nil, err
	}

	occurrences := OccurrencesFromInputs(input.Acts)
	if err := SetDocumentActs(ctx, DocumentKindCareSheet, sheet.ID, occurrences, true); err != nil {
		return nil, err
	}

	detail, err := recomputeCareSheet(ctx, &sheet)
	if err != nil {
		return nil, err
	}

	AddHistory(ctx, string(DocumentKindCareSheet), strconv.Itoa(sheet.ID), "Created", detail)
	return detail, nil
}

// UpdateCareSheet applies the given fields; a non-nil Acts slice
// replaces the whole act set. Totals recompute afterwards regardless of
// which fields changed. A sheet on a committed bordereau is frozen.
func UpdateCareSheet(ctx context.Context, id int, input *UpdateCareSheetInput) (*CareSheetDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	sheet, err := utils.FetchModel[CareSheet](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	if sheet.BordereauId != nil {
		if err := validateBordereauMutable(ctx, officeId, *sheet.BordereauId); err != nil {
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
	if input.CareDate != nil {
		if input.CareDate.IsZero() {
			return nil, utils.NewValidationError("care_date", "is required")
		}
		updates["CareDate"] = *input.CareDate
	}
	if input.Flags != nil {
		updates["Flags"] = *input.Flags
	}

	db := config.GetDB()
	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(sheet).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if input.Acts != nil {
		if err := validateActInputs(input.Acts); err != nil {
			return nil, err
		}
		occurrences := OccurrencesFromInputs(input.Acts)
		if err := SetDocumentActs(ctx, DocumentKindCareSheet, sheet.ID, occurrences, false); err != nil {
			return nil, err
		}
	}

	detail, err := recomputeCareSheet(ctx, sheet)
	if err != nil {
		return nil, err
	}

	AddHistory(ctx, string(DocumentKindCareSheet), strconv.Itoa(sheet.ID), "Updated", detail)
	return detail, nil
}

// DeleteCareSheet removes the sheet and its act links. A sheet on a
// committed bordereau cannot be deleted.
func DeleteCareSheet(ctx context.Context, id int) error {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return err
	}

	sheet, err := utils.FetchModel[CareSheet](ctx, officeId, id)
	if err != nil {
		return err
	}
	if sheet.BordereauId != nil {
		if err := validateBordereauMutable(ctx, officeId, *sheet.BordereauId); err != nil {
			return err
		}
	}

	if err := RemoveDocumentActs(ctx, DocumentKindCareSheet, sheet.ID); err != nil {
		return err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(sheet).Error; err != nil {
		return err
	}

	AddHistory(ctx, string(DocumentKindCareSheet), strconv.Itoa(sheet.ID), "Deleted", nil)
	return nil
}

// GetCareSheet returns the sheet with acts expanded and totals
// recomputed from the current links and office settings. The stored
// total is refreshed when it drifted.
func GetCareSheet(ctx context.Context, id int) (*CareSheetDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	sheet, err := utils.FetchModel[CareSheet](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	return recomputeCareSheet(ctx, sheet)
}

type CareSheetFilter struct {
	PatientId   *string
	BordereauId *int
	Unattached  bool
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// ListCareSheets returns sheet rows matching the filter, newest care
// date first, without expanding acts.
func ListCareSheets(ctx context.Context, filter *CareSheetFilter) ([]*CareSheet, error) {
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
			query = query.Where("care_date >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("care_date <= ?", *filter.To)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit).Offset(filter.Offset)
		}
	}

	var sheets []*CareSheet
	err = query.Order("care_date DESC, id DESC").Find(&sheets).Error
	return sheets, err
}

// recomputeCareSheet rebuilds the detail view from the current links
// and office settings and persists the total when it changed.
func recomputeCareSheet(ctx context.Context, sheet *CareSheet) (*CareSheetDetail, error) {
	office, err := GetOfficeById(ctx, sheet.OfficeId)
	if err != nil {
		return nil, err
	}
	occurrences, err := GetDocumentActs(ctx, DocumentKindCareSheet, sheet.ID)
	if err != nil {
		return nil, err
	}
	return careSheetDetail(ctx, sheet, occurrences, office)
}

func careSheetDetail(ctx context.Context, sheet *CareSheet, occurrences []ActOccurrence, office *Office) (*CareSheetDetail, error) {
	priced, total := PriceCareOccurrences(occurrences, sheet.Flags, office)

	if !sheet.Total.Equal(total) {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(sheet).Update("Total", total).Error; err != nil {
			return nil, err
		}
		sheet.Total = total
	}

	return &CareSheetDetail{CareSheet: *sheet, Acts: priced}, nil
}
