package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mediflow/cabinet_backend/models"
	"gorm.io/gorm"
)

type attachmentReader struct {
	db            *gorm.DB
	referenceType string
}

func (r *attachmentReader) GetAttachments(ctx context.Context, Ids []int) []*dataloader.Result[[]*models.Attachment] {
	var results []models.Attachment
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id IN ?", r.referenceType, Ids).
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.Attachment](len(Ids), err)
	}

	resultMap := make(map[int][]*models.Attachment)
	for i := range results {
		resultMap[results[i].ReferenceId] = append(resultMap[results[i].ReferenceId], &results[i])
	}
	loaderResults := make([]*dataloader.Result[[]*models.Attachment], 0, len(Ids))
	for _, id := range Ids {
		loaderResults = append(loaderResults, &dataloader.Result[[]*models.Attachment]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetCareSheetAttachments(ctx context.Context, careSheetId int) ([]*models.Attachment, error) {
	loaders := For(ctx)
	return loaders.careSheetAttachmentLoader.Load(ctx, careSheetId)()
}

func GetOrthopedicInvoiceAttachments(ctx context.Context, invoiceId int) ([]*models.Attachment, error) {
	loaders := For(ctx)
	return loaders.orthopedicAttachmentLoader.Load(ctx, invoiceId)()
}
