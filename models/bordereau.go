package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Bordereau is the dispatch bundle: a numbered batch of billing
// documents sent together to a payer. Totals are aggregates of the
// attached documents and recompute on every read; attachment is a
// nullable back reference on the document rows, so a document belongs
// to at most one bordereau.
type Bordereau struct {
	ID         int             `gorm:"primaryKey" json:"id"`
	OfficeId   string          `gorm:"size:40;index" json:"office_id"`
	SequenceNo int64           `gorm:"index:idx_bordereau_seq,unique" json:"sequence_no"`
	Number     string          `gorm:"size:20" json:"number"`
	Kind       BordereauKind   `gorm:"size:20" json:"kind"`
	Status     BordereauStatus `gorm:"size:20;default:Draft" json:"status"`
	Recipient  string          `gorm:"size:255" json:"recipient"`

	Total         decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"total"`
	PatientShare  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"patient_share"`
	InsurerShare  decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"insurer_share"`
	DocumentCount int             `gorm:"default:0" json:"document_count"`

	CommittedAt *time.Time `json:"committed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b Bordereau) GetOfficeId() string { return b.OfficeId }

type NewBordereau struct {
	Kind                 BordereauKind `json:"kind"`
	Recipient            string        `json:"recipient"`
	CareSheetIds         []int         `json:"care_sheet_ids"`
	OrthopedicInvoiceIds []int         `json:"orthopedic_invoice_ids"`
}

// UpdateBordereauInput replaces the attachment sets wholesale: the
// final attached documents are exactly the ids given, nil slice means
// leave that kind untouched.
type UpdateBordereauInput struct {
	Recipient            *string `json:"recipient"`
	CareSheetIds         []int   `json:"care_sheet_ids"`
	OrthopedicInvoiceIds []int   `json:"orthopedic_invoice_ids"`
}

// DegradedDocument marks one attached document whose materialization
// failed during aggregation; the bordereau still renders with the
// remaining documents.
type DegradedDocument struct {
	DocumentKind DocumentKind `json:"document_kind"`
	DocumentId   int          `json:"document_id"`
	Reason       string       `json:"reason"`
}

type BordereauDetail struct {
	Bordereau
	CareSheets         []*CareSheetDetail         `json:"care_sheets"`
	OrthopedicInvoices []*OrthopedicInvoiceDetail `json:"orthopedic_invoices"`
	Degraded           []DegradedDocument         `json:"degraded"`
}

func validateBordereauKind(kind BordereauKind) error {
	switch kind {
	case BordereauKindCare, BordereauKindOrthopedic, BordereauKindMixed:
		return nil
	}
	return utils.NewValidationError("kind", "must be Care, Orthopedic or Mixed")
}

// validateKindAccepts rejects document kinds a single-kind bordereau
// cannot carry; this is a hard validation, not a skipped attachment.
func validateKindAccepts(kind BordereauKind, careSheetIds []int, invoiceIds []int) error {
	if kind == BordereauKindCare && len(invoiceIds) > 0 {
		return utils.NewValidationError("orthopedic_invoice_ids", "not allowed on a Care bordereau")
	}
	if kind == BordereauKindOrthopedic && len(careSheetIds) > 0 {
		return utils.NewValidationError("care_sheet_ids", "not allowed on an Orthopedic bordereau")
	}
	return nil
}

// CreateBordereau allocates the next number under a per-office lock,
// creates the draft and attaches the requested documents. Individual
// attach failures are logged and skipped so one bad reference never
// sinks the whole bundle.
func CreateBordereau(ctx context.Context, input *NewBordereau) (*BordereauDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateBordereauKind(input.Kind); err != nil {
		return nil, err
	}
	if err := validateKindAccepts(input.Kind, input.CareSheetIds, input.OrthopedicInvoiceIds); err != nil {
		return nil, err
	}

	lock, err := config.GetRedisLock().Obtain(ctx, "bordereau_seq:"+officeId, 10*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release(context.Background()) }()

	seqNo, err := utils.GetSequence[Bordereau](ctx, officeId)
	if err != nil {
		return nil, err
	}

	bordereau := Bordereau{
		OfficeId:   officeId,
		SequenceNo: seqNo,
		Number:     fmt.Sprintf("BRD-%06d", seqNo),
		Kind:       input.Kind,
		Status:     BordereauStatusDraft,
		Recipient:  input.Recipient,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&bordereau).Error; err != nil {
		return nil, err
	}

	attachDocuments(ctx, &bordereau, input.CareSheetIds, input.OrthopedicInvoiceIds)

	detail, err := materializeBordereau(ctx, &bordereau)
	if err != nil {
		return nil, err
	}

	AddHistory(ctx, "Bordereau", strconv.Itoa(bordereau.ID), "Created", detail.Bordereau)
	return detail, nil
}

// UpdateBordereau edits a draft. A non-nil id slice replaces that
// kind's attachment set in full: documents missing from the new set
// detach, new ids attach, documents held by another bordereau move
// here.
func UpdateBordereau(ctx context.Context, id int, input *UpdateBordereauInput) (*BordereauDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	bordereau, err := utils.FetchModel[Bordereau](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	if bordereau.Status == BordereauStatusCommitted {
		return nil, utils.NewValidationError("status", "bordereau is committed")
	}
	if err := validateKindAccepts(bordereau.Kind, input.CareSheetIds, input.OrthopedicInvoiceIds); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if input.Recipient != nil {
		if err := db.WithContext(ctx).Model(bordereau).Update("Recipient", *input.Recipient).Error; err != nil {
			return nil, err
		}
	}

	if input.CareSheetIds != nil {
		if err := db.WithContext(ctx).Model(&CareSheet{}).
			Where("office_id = ? AND bordereau_id = ? AND id NOT IN ?", officeId, bordereau.ID, append(input.CareSheetIds, 0)).
			Update("bordereau_id", nil).Error; err != nil {
			return nil, err
		}
	}
	if input.OrthopedicInvoiceIds != nil {
		if err := db.WithContext(ctx).Model(&OrthopedicInvoice{}).
			Where("office_id = ? AND bordereau_id = ? AND id NOT IN ?", officeId, bordereau.ID, append(input.OrthopedicInvoiceIds, 0)).
			Update("bordereau_id", nil).Error; err != nil {
			return nil, err
		}
	}

	attachDocuments(ctx, bordereau, input.CareSheetIds, input.OrthopedicInvoiceIds)

	detail, err := materializeBordereau(ctx, bordereau)
	if err != nil {
		return nil, err
	}

	AddHistory(ctx, "Bordereau", strconv.Itoa(bordereau.ID), "Updated", detail.Bordereau)
	return detail, nil
}

// attachDocuments points the given documents at the bordereau. Each
// id attaches independently; an id that does not resolve in this
// office, or whose current holder is already committed, is logged and
// skipped rather than failing the batch. A document held by another
// draft moves here.
func attachDocuments(ctx context.Context, bordereau *Bordereau, careSheetIds []int, invoiceIds []int) {
	db := config.GetDB()
	logger := config.GetLogger()

	committed, err := committedBordereauIds(ctx, bordereau.OfficeId)
	if err != nil {
		logger.Warn("could not load committed bordereaux, attaching nothing: " + err.Error())
		return
	}

	skip := func(kind DocumentKind, documentId int, cause error) {
		logger.WithFields(logrus.Fields{
			"bordereau_id":  bordereau.ID,
			"document_kind": kind,
			"document_id":   documentId,
		}).Warn(utils.NewPartialAggregationError(bordereau.ID, string(kind), documentId, cause).Error())
	}

	for _, sheetId := range utils.UniqueSlice(careSheetIds) {
		var sheet CareSheet
		err := db.WithContext(ctx).Select("id", "bordereau_id").
			Where("office_id = ? AND id = ?", bordereau.OfficeId, sheetId).
			First(&sheet).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			skip(DocumentKindCareSheet, sheetId, utils.NewReferentialError("care_sheet", sheetId))
		case err != nil:
			skip(DocumentKindCareSheet, sheetId, err)
		case sheet.BordereauId != nil && committed[*sheet.BordereauId]:
			skip(DocumentKindCareSheet, sheetId, utils.NewValidationError("bordereau_id", "held by a committed bordereau"))
		default:
			err := db.WithContext(ctx).Model(&CareSheet{}).
				Where("office_id = ? AND id = ?", bordereau.OfficeId, sheetId).
				Update("bordereau_id", bordereau.ID).Error
			if err != nil {
				skip(DocumentKindCareSheet, sheetId, err)
			}
		}
	}

	for _, invoiceId := range utils.UniqueSlice(invoiceIds) {
		var invoice OrthopedicInvoice
		err := db.WithContext(ctx).Select("id", "bordereau_id").
			Where("office_id = ? AND id = ?", bordereau.OfficeId, invoiceId).
			First(&invoice).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			skip(DocumentKindOrthopedicInvoice, invoiceId, utils.NewReferentialError("orthopedic_invoice", invoiceId))
		case err != nil:
			skip(DocumentKindOrthopedicInvoice, invoiceId, err)
		case invoice.BordereauId != nil && committed[*invoice.BordereauId]:
			skip(DocumentKindOrthopedicInvoice, invoiceId, utils.NewValidationError("bordereau_id", "held by a committed bordereau"))
		default:
			err := db.WithContext(ctx).Model(&OrthopedicInvoice{}).
				Where("office_id = ? AND id = ?", bordereau.OfficeId, invoiceId).
				Update("bordereau_id", bordereau.ID).Error
			if err != nil {
				skip(DocumentKindOrthopedicInvoice, invoiceId, err)
			}
		}
	}
}

func committedBordereauIds(ctx context.Context, officeId string) (map[int]bool, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&Bordereau{}).
		Where("office_id = ? AND status = ?", officeId, BordereauStatusCommitted).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// DeleteBordereau detaches every document and removes the draft.
func DeleteBordereau(ctx context.Context, id int) error {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return err
	}

	bordereau, err := utils.FetchModel[Bordereau](ctx, officeId, id)
	if err != nil {
		return err
	}
	if bordereau.Status == BordereauStatusCommitted {
		return utils.NewValidationError("status", "bordereau is committed")
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.WithContext(ctx).Model(&CareSheet{}).
		Where("office_id = ? AND bordereau_id = ?", officeId, bordereau.ID).
		Update("bordereau_id", nil).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Model(&OrthopedicInvoice{}).
		Where("office_id = ? AND bordereau_id = ?", officeId, bordereau.ID).
		Update("bordereau_id", nil).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Delete(bordereau).Error; err != nil {
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	AddHistory(ctx, "Bordereau", strconv.Itoa(bordereau.ID), "Deleted", nil)
	return nil
}

// CommitBordereau freezes a draft and queues the dispatch event. A
// bordereau with no attached documents cannot commit.
func CommitBordereau(ctx context.Context, id int) (*BordereauDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	bordereau, err := utils.FetchModel[Bordereau](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	if bordereau.Status == BordereauStatusCommitted {
		return nil, utils.NewValidationError("status", "bordereau is already committed")
	}

	detail, err := materializeBordereau(ctx, bordereau)
	if err != nil {
		return nil, err
	}
	if detail.DocumentCount == 0 {
		return nil, utils.NewValidationError("documents", "cannot commit an empty bordereau")
	}
	if len(detail.Degraded) > 0 {
		return nil, utils.NewValidationError("documents", "cannot commit with degraded documents")
	}

	now := time.Now()
	db := config.GetDB()
	err = db.WithContext(ctx).Model(bordereau).Updates(map[string]interface{}{
		"Status":      BordereauStatusCommitted,
		"CommittedAt": &now,
	}).Error
	if err != nil {
		return nil, err
	}
	detail.Status = BordereauStatusCommitted
	detail.CommittedAt = &now

	if err := EnqueueDispatchEvent(ctx, &detail.Bordereau); err != nil {
		return nil, err
	}

	AddHistory(ctx, "Bordereau", strconv.Itoa(bordereau.ID), "Committed", detail.Bordereau)
	return detail, nil
}

// GetBordereau materializes the bundle: documents, expanded acts and
// recomputed totals.
func GetBordereau(ctx context.Context, id int) (*BordereauDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	bordereau, err := utils.FetchModel[Bordereau](ctx, officeId, id)
	if err != nil {
		return nil, err
	}
	return materializeBordereau(ctx, bordereau)
}

type BordereauFilter struct {
	Status *BordereauStatus
	Kind   *BordereauKind
	Limit  int
	Offset int
}

// ListBordereaux returns matching bundles fully materialized, newest
// sequence first.
func ListBordereaux(ctx context.Context, filter *BordereauFilter) ([]*BordereauDetail, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Where("office_id = ?", officeId)
	if filter != nil {
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Kind != nil {
			query = query.Where("kind = ?", *filter.Kind)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit).Offset(filter.Offset)
		}
	}

	var bordereaux []*Bordereau
	if err := query.Order("sequence_no DESC").Find(&bordereaux).Error; err != nil {
		return nil, err
	}

	details := make([]*BordereauDetail, len(bordereaux))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, bordereau := range bordereaux {
		i, bordereau := i, bordereau
		group.Go(func() error {
			detail, err := materializeBordereau(groupCtx, bordereau)
			if err != nil {
				return err
			}
			details[i] = detail
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return details, nil
}

// materializeBordereau loads the attached documents, batch-fetches
// their act links, then prices every document concurrently. A single
// document failing to materialize still renders, with an empty act
// list and zero totals, and is reported in Degraded instead of
// failing the read; the stored aggregate columns only refresh from a
// clean read.
func materializeBordereau(ctx context.Context, bordereau *Bordereau) (*BordereauDetail, error) {
	db := config.GetDB()

	var sheets []*CareSheet
	if err := db.WithContext(ctx).
		Where("office_id = ? AND bordereau_id = ?", bordereau.OfficeId, bordereau.ID).
		Order("id").Find(&sheets).Error; err != nil {
		return nil, err
	}
	var invoices []*OrthopedicInvoice
	if err := db.WithContext(ctx).
		Where("office_id = ? AND bordereau_id = ?", bordereau.OfficeId, bordereau.ID).
		Order("id").Find(&invoices).Error; err != nil {
		return nil, err
	}

	office, err := GetOfficeById(ctx, bordereau.OfficeId)
	if err != nil {
		return nil, err
	}

	sheetIds := make([]int, len(sheets))
	for i, sheet := range sheets {
		sheetIds[i] = sheet.ID
	}
	invoiceIds := make([]int, len(invoices))
	for i, invoice := range invoices {
		invoiceIds[i] = invoice.ID
	}

	sheetActs, err := GetDocumentActsForMany(ctx, DocumentKindCareSheet, sheetIds)
	if err != nil {
		return nil, err
	}
	invoiceActs, err := GetDocumentActsForMany(ctx, DocumentKindOrthopedicInvoice, invoiceIds)
	if err != nil {
		return nil, err
	}

	detail := &BordereauDetail{
		Bordereau:          *bordereau,
		CareSheets:         make([]*CareSheetDetail, len(sheets)),
		OrthopedicInvoices: make([]*OrthopedicInvoiceDetail, len(invoices)),
	}

	var mu sync.Mutex
	logger := config.GetLogger()
	degrade := func(kind DocumentKind, documentId int, cause error) {
		aggErr := utils.NewPartialAggregationError(bordereau.ID, string(kind), documentId, cause)
		logger.WithFields(logrus.Fields{
			"bordereau_id":  bordereau.ID,
			"document_kind": kind,
			"document_id":   documentId,
		}).Warn(aggErr.Error())
		mu.Lock()
		detail.Degraded = append(detail.Degraded, DegradedDocument{
			DocumentKind: kind,
			DocumentId:   documentId,
			Reason:       cause.Error(),
		})
		mu.Unlock()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(8)

	for i, sheet := range sheets {
		i, sheet := i, sheet
		group.Go(func() error {
			sheetDetail, err := careSheetDetail(groupCtx, sheet, sheetActs[sheet.ID], office)
			if err != nil {
				degrade(DocumentKindCareSheet, sheet.ID, err)
				detail.CareSheets[i] = degradedCareSheetDetail(sheet)
				return nil
			}
			detail.CareSheets[i] = sheetDetail
			return nil
		})
	}
	for i, invoice := range invoices {
		i, invoice := i, invoice
		group.Go(func() error {
			invoiceDetail, err := orthopedicInvoiceDetail(groupCtx, invoice, invoiceActs[invoice.ID])
			if err != nil {
				degrade(DocumentKindOrthopedicInvoice, invoice.ID, err)
				detail.OrthopedicInvoices[i] = degradedOrthopedicInvoiceDetail(invoice)
				return nil
			}
			detail.OrthopedicInvoices[i] = invoiceDetail
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	total := decimal.Zero
	patientShare := decimal.Zero
	insurerShare := decimal.Zero
	for _, sheetDetail := range detail.CareSheets {
		total = total.Add(sheetDetail.Total)
		insurerShare = insurerShare.Add(sheetDetail.Total)
	}
	for _, invoiceDetail := range detail.OrthopedicInvoices {
		total = total.Add(invoiceDetail.Total)
		patientShare = patientShare.Add(invoiceDetail.PatientShare)
		insurerShare = insurerShare.Add(invoiceDetail.InsurerShare)
	}
	documentCount := len(detail.CareSheets) + len(detail.OrthopedicInvoices)

	if len(detail.Degraded) == 0 &&
		(!bordereau.Total.Equal(total) || !bordereau.PatientShare.Equal(patientShare) ||
			!bordereau.InsurerShare.Equal(insurerShare) || bordereau.DocumentCount != documentCount) {
		err := db.WithContext(ctx).Model(bordereau).Updates(map[string]interface{}{
			"Total":         total,
			"PatientShare":  patientShare,
			"InsurerShare":  insurerShare,
			"DocumentCount": documentCount,
		}).Error
		if err != nil {
			return nil, err
		}
	}
	detail.Total = total
	detail.PatientShare = patientShare
	detail.InsurerShare = insurerShare
	detail.DocumentCount = documentCount

	return detail, nil
}

// degradedCareSheetDetail renders a sheet that failed to materialize:
// the row as stored, but with no acts and a zero total so the failure
// never passes for a priced document.
func degradedCareSheetDetail(sheet *CareSheet) *CareSheetDetail {
	blank := *sheet
	blank.Total = decimal.Zero
	return &CareSheetDetail{CareSheet: blank, Acts: []ActOccurrence{}}
}

func degradedOrthopedicInvoiceDetail(invoice *OrthopedicInvoice) *OrthopedicInvoiceDetail {
	blank := *invoice
	blank.Total = decimal.Zero
	blank.PatientShare = decimal.Zero
	blank.InsurerShare = decimal.Zero
	return &OrthopedicInvoiceDetail{OrthopedicInvoice: blank, Acts: []ActOccurrence{}}
}

// validateBordereauMutable rejects writes against documents attached
// to a committed bordereau.
func validateBordereauMutable(ctx context.Context, officeId string, bordereauId int) error {
	bordereau, err := utils.FetchModel[Bordereau](ctx, officeId, bordereauId)
	if err != nil {
		return err
	}
	if bordereau.Status == BordereauStatusCommitted {
		return utils.NewValidationError("bordereau_id", "document belongs to a committed bordereau")
	}
	return nil
}
