package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the per-document lookups of list endpoints into single
// queries per request.
type Loaders struct {
	careSheetActLoader         *dataloader.Loader[int, []models.ActOccurrence]
	orthopedicActLoader        *dataloader.Loader[int, []models.ActOccurrence]
	patientLoader              *dataloader.Loader[string, *models.Patient]
	prescriberLoader           *dataloader.Loader[string, *models.Prescriber]
	careSheetAttachmentLoader  *dataloader.Loader[int, []*models.Attachment]
	orthopedicAttachmentLoader *dataloader.Loader[int, []*models.Attachment]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	careSheetActReader := &documentActReader{kind: models.DocumentKindCareSheet}
	orthopedicActReader := &documentActReader{kind: models.DocumentKindOrthopedicInvoice}
	patientReader := &patientReader{db: conn}
	prescriberReader := &prescriberReader{db: conn}
	careSheetAttachmentReader := &attachmentReader{db: conn, referenceType: string(models.DocumentKindCareSheet)}
	orthopedicAttachmentReader := &attachmentReader{db: conn, referenceType: string(models.DocumentKindOrthopedicInvoice)}

	return &Loaders{
		careSheetActLoader:         dataloader.NewBatchedLoader(careSheetActReader.GetDocumentActs, dataloader.WithWait[int, []models.ActOccurrence](time.Millisecond)),
		orthopedicActLoader:        dataloader.NewBatchedLoader(orthopedicActReader.GetDocumentActs, dataloader.WithWait[int, []models.ActOccurrence](time.Millisecond)),
		patientLoader:              dataloader.NewBatchedLoader(patientReader.GetPatients, dataloader.WithWait[string, *models.Patient](time.Millisecond)),
		prescriberLoader:           dataloader.NewBatchedLoader(prescriberReader.GetPrescribers, dataloader.WithWait[string, *models.Prescriber](time.Millisecond)),
		careSheetAttachmentLoader:  dataloader.NewBatchedLoader(careSheetAttachmentReader.GetAttachments, dataloader.WithWait[int, []*models.Attachment](time.Millisecond)),
		orthopedicAttachmentLoader: dataloader.NewBatchedLoader(orthopedicAttachmentReader.GetAttachments, dataloader.WithWait[int, []*models.Attachment](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
