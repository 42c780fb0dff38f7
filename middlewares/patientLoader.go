package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mediflow/cabinet_backend/models"
	"gorm.io/gorm"
)

type patientReader struct {
	db *gorm.DB
}

func (r *patientReader) GetPatients(ctx context.Context, Ids []string) []*dataloader.Result[*models.Patient] {
	var results []models.Patient
	err := r.db.WithContext(ctx).Where("id IN ?", Ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Patient](len(Ids), err)
	}

	resultMap := make(map[string]*models.Patient, len(results))
	for i := range results {
		resultMap[results[i].ID.String()] = &results[i]
	}
	loaderResults := make([]*dataloader.Result[*models.Patient], 0, len(Ids))
	for _, id := range Ids {
		loaderResults = append(loaderResults, &dataloader.Result[*models.Patient]{Data: resultMap[id]})
	}
	return loaderResults
}

func GetPatient(ctx context.Context, patientId string) (*models.Patient, error) {
	loaders := For(ctx)
	return loaders.patientLoader.Load(ctx, patientId)()
}
