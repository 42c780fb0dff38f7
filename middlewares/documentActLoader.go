package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mediflow/cabinet_backend/models"
)

type documentActReader struct {
	kind models.DocumentKind
}

func (r *documentActReader) GetDocumentActs(ctx context.Context, Ids []int) []*dataloader.Result[[]models.ActOccurrence] {
	byDocument, err := models.GetDocumentActsForMany(ctx, r.kind, Ids)
	if err != nil {
		return handleError[[]models.ActOccurrence](len(Ids), err)
	}

	loaderResults := make([]*dataloader.Result[[]models.ActOccurrence], 0, len(Ids))
	for _, id := range Ids {
		loaderResults = append(loaderResults, &dataloader.Result[[]models.ActOccurrence]{Data: byDocument[id]})
	}
	return loaderResults
}

func GetCareSheetActs(ctx context.Context, careSheetId int) ([]models.ActOccurrence, error) {
	loaders := For(ctx)
	return loaders.careSheetActLoader.Load(ctx, careSheetId)()
}

func GetOrthopedicInvoiceActs(ctx context.Context, invoiceId int) ([]models.ActOccurrence, error) {
	loaders := For(ctx)
	return loaders.orthopedicActLoader.Load(ctx, invoiceId)()
}
