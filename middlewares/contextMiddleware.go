package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mediflow/cabinet_backend/utils"
)

// ContextMiddleware resolves the office the request acts on and tags
// it with a correlation id. Every tenant-scoped route requires the
// X-Office-Id header when the session did not carry one.
func ContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if _, ok := utils.GetOfficeIdFromContext(ctx); !ok {
			officeId := c.Request.Header.Get("X-Office-Id")
			if officeId != "" {
				if err := utils.ValidateUUID("office_id", officeId); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					c.Abort()
					return
				}
				ctx = utils.SetOfficeIdInContext(ctx, officeId)
			}
		}

		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
