package models

import (
	"context"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/sirupsen/logrus"
)

// DocumentActLink associates one catalog act with one billing document,
// carrying the occurrence count. Duplicate acts on a document are a
// quantity, never repeated rows, and quantity is always >= 1: a
// zero-quantity link is removed instead of stored.
//
// document_kind separates the two document id spaces (care sheets and
// orthopedic invoices autoincrement independently), following the same
// polymymorphic reference_type convention as Attachment.
type DocumentActLink struct {
	DocumentId   int          `gorm:"primaryKey;autoIncrement:false" json:"document_id"`
	DocumentKind DocumentKind `gorm:"primaryKey;size:30" json:"document_kind"`
	ActId        int          `gorm:"primaryKey;autoIncrement:false" json:"act_id"`
	Quantity     int          `gorm:"not null" json:"quantity"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// SetDocumentActs replaces the whole act set of a document with the
// collapsed form of occurrences. The replace is delete-all then
// insert-all inside one transaction, and the transaction is retried
// under the transient-conflict policy; parentJustCreated adds the
// settle delay for writes that immediately follow document creation.
func SetDocumentActs(ctx context.Context, kind DocumentKind, documentId int, occurrences []ActOccurrence, parentJustCreated bool) error {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return err
	}
	if documentId <= 0 {
		return utils.NewValidationError("document_id", "is required")
	}

	// Resolve every act id against the catalog before any write; an
	// unresolved id never reaches the store.
	counts := CollapseActOccurrences(occurrences)
	actIds := make([]int, 0, len(counts))
	for actId := range counts {
		if actId <= 0 {
			return utils.NewValidationError("act_id", "is required")
		}
		actIds = append(actIds, actId)
	}
	if len(actIds) > 0 {
		if _, err := resolveCatalogActs(ctx, officeId, actIds); err != nil {
			return err
		}
	}

	links := make([]DocumentActLink, 0, len(counts))
	for actId, quantity := range counts {
		links = append(links, DocumentActLink{
			DocumentId:   documentId,
			DocumentKind: kind,
			ActId:        actId,
			Quantity:     quantity,
		})
	}

	db := config.GetDB()
	return defaultRetryPolicy.run(ctx, "setDocumentActs", parentJustCreated, func(ctx context.Context) error {
		tx := db.Begin()
		defer func() { _ = tx.Rollback().Error }()

		if err := tx.WithContext(ctx).
			Where("document_id = ? AND document_kind = ?", documentId, kind).
			Delete(&DocumentActLink{}).Error; err != nil {
			return err
		}
		if len(links) > 0 {
			if err := tx.WithContext(ctx).Create(&links).Error; err != nil {
				return err
			}
		}
		return tx.Commit().Error
	})
}

// GetDocumentActs returns the document's act list expanded back into
// flat occurrences carrying catalog attributes.
func GetDocumentActs(ctx context.Context, kind DocumentKind, documentId int) ([]ActOccurrence, error) {
	many, err := GetDocumentActsForMany(ctx, kind, []int{documentId})
	if err != nil {
		return nil, err
	}
	return many[documentId], nil
}

// GetDocumentActsForMany fetches and expands the act lists of many
// documents in one round trip per table. The link table carries no
// office column, so ids are first resolved against the document table
// under the request's office; foreign ids come back with no entry.
func GetDocumentActsForMany(ctx context.Context, kind DocumentKind, documentIds []int) (map[int][]ActOccurrence, error) {
	result := make(map[int][]ActOccurrence, len(documentIds))
	if len(documentIds) == 0 {
		return result, nil
	}

	owned, err := ownedDocumentIds(ctx, kind, utils.UniqueSlice(documentIds))
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return result, nil
	}

	db := config.GetDB()
	var links []DocumentActLink
	if err := db.WithContext(ctx).
		Where("document_id IN ? AND document_kind = ?", owned, kind).
		Find(&links).Error; err != nil {
		return nil, err
	}

	byDocument := make(map[int][]DocumentActLink)
	for _, link := range links {
		byDocument[link.DocumentId] = append(byDocument[link.DocumentId], link)
	}

	catalog, err := catalogForLinks(ctx, links)
	if err != nil {
		return nil, err
	}

	for _, documentId := range owned {
		result[documentId] = ExpandActLinks(byDocument[documentId], catalog)
	}
	return result, nil
}

// ownedDocumentIds keeps the ids that exist in the request's office.
func ownedDocumentIds(ctx context.Context, kind DocumentKind, documentIds []int) ([]int, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Where("office_id = ? AND id IN ?", officeId, documentIds)
	var owned []int
	switch kind {
	case DocumentKindCareSheet:
		err = query.Model(&CareSheet{}).Pluck("id", &owned).Error
	case DocumentKindOrthopedicInvoice:
		err = query.Model(&OrthopedicInvoice{}).Pluck("id", &owned).Error
	default:
		return nil, utils.NewValidationError("document_kind", "unknown")
	}
	if err != nil {
		return nil, err
	}
	return owned, nil
}

// RemoveDocumentActs deletes every link of a document; called when the
// document itself is deleted.
func RemoveDocumentActs(ctx context.Context, kind DocumentKind, documentId int) error {
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("document_id = ? AND document_kind = ?", documentId, kind).
		Delete(&DocumentActLink{}).Error
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"document_id":   documentId,
			"document_kind": kind,
		}).Error("failed to remove document act links: " + err.Error())
	}
	return err
}

// catalogForLinks loads the referenced catalog rows by id, regardless
// of active flag or scope: a link keeps pricing against the row it was
// created with even after the entry is superseded.
func catalogForLinks(ctx context.Context, links []DocumentActLink) (map[int]*CatalogAct, error) {
	if len(links) == 0 {
		return map[int]*CatalogAct{}, nil
	}
	actIds := make([]int, 0, len(links))
	for _, link := range links {
		actIds = append(actIds, link.ActId)
	}

	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var acts []*CatalogAct
	if err := db.WithContext(ctx).
		Where("id IN ? AND (office_id = ? OR office_id IS NULL)", utils.UniqueSlice(actIds), officeId).
		Find(&acts).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*CatalogAct, len(acts))
	for _, act := range acts {
		byId[act.ID] = act
	}
	return byId, nil
}
