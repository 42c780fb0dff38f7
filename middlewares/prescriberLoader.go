package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mediflow/cabinet_backend/models"
	"gorm.io/gorm"
)

type prescriberReader struct {
	db *gorm.DB
}

func (r *prescriberReader) GetPrescribers(ctx context.Context, Ids []string) []*dataloader.Result[*models.Prescriber] {
	var results []models.Prescriber
	err := r.db.WithContext(ctx).Where("id IN ?", Ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Prescriber](len(Ids), err)
	}

	resultMap := make(map[string]*models.Prescriber, len(results))
	for i := range results {
		resultMap[results[i].ID.String()] = &results[i]
	}
	loaderResults := make([]*dataloader.Result[*models.Prescriber], 0, len(Ids))
	for _, id := range Ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Prescriber]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetPrescriber(ctx context.Context, prescriberId string) (*models.Prescriber, error) {
	loaders := For(ctx)
	return loaders.prescriberLoader.Load(ctx, prescriberId)()
}
