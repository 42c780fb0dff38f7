package utils

import (
	"context"

	"github.com/mediflow/cabinet_backend/config"
)

/* DB fetching */

// fetch model from db
// (ctx's office_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, officeId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("office_id = ?", officeId)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's office_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, officeId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("office_id = ?", officeId)
	// preloading
	for _, field := range associations {
		dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}
