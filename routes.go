package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/middlewares"
	"github.com/mediflow/cabinet_backend/models"
	"github.com/mediflow/cabinet_backend/utils"
)

const sessionTTL = 24 * time.Hour

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsReferentialError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case utils.IsTransientConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// writeBindingError renders gin binding failures, field-by-field for
// validator errors.
func writeBindingError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/offices", func(c *gin.Context) {
		var input models.NewOffice
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		office, err := models.CreateOffice(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, office)
	})

	api.PUT("/office/pricing", func(c *gin.Context) {
		ctx := c.Request.Context()
		officeId, ok := utils.GetOfficeIdFromContext(ctx)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "office is required"})
			return
		}
		var input models.OfficePricingSettings
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		office, err := models.UpdateOfficePricingSettings(ctx, officeId, &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, office)
	})

	api.POST("/login", func(c *gin.Context) {
		var input struct {
			OfficeId string `json:"office_id" binding:"required"`
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		user, ok := models.AuthenticateUser(c.Request.Context(), input.OfficeId, input.Email, input.Password)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		token := uuid.NewString()
		session := middlewares.Session{OfficeId: user.OfficeId, UserId: user.ID, UserName: user.Name}
		if err := config.SetRedisObject("Token:"+token, &session, sessionTTL); err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	})

	api.POST("/users", func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	api.GET("/users", func(c *gin.Context) {
		users, err := models.ListUsers(c.Request.Context())
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	})

	api.POST("/users/:id/deactivate", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeactivateUser(c.Request.Context(), id); err != nil {
			writeServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.POST("/patients", func(c *gin.Context) {
		var input models.NewPatient
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		patient, err := models.CreatePatient(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, patient)
	})

	api.GET("/patients", func(c *gin.Context) {
		patients, err := models.ListPatients(c.Request.Context())
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, patients)
	})

	api.GET("/patients/:id", func(c *gin.Context) {
		patient, err := models.GetPatient(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, patient)
	})

	api.POST("/prescribers", func(c *gin.Context) {
		var input models.NewPrescriber
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		prescriber, err := models.CreatePrescriber(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, prescriber)
	})

	api.GET("/prescribers", func(c *gin.Context) {
		prescribers, err := models.ListPrescribers(c.Request.Context())
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, prescribers)
	})

	api.GET("/prescribers/:id", func(c *gin.Context) {
		prescriber, err := models.GetPrescriber(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, prescriber)
	})

	registerCatalogRoutes(api)
	registerDocumentRoutes(api)
	registerBordereauRoutes(api)

	api.GET("/history", func(c *gin.Context) {
		referenceType := c.Query("reference_type")
		referenceId := c.Query("reference_id")
		if referenceType == "" || referenceId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
			return
		}
		records, err := models.GetHistory(c.Request.Context(), referenceType, referenceId)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	})

	api.POST("/attachments", func(c *gin.Context) {
		referenceType := c.PostForm("reference_type")
		referenceId, err := strconv.Atoi(c.PostForm("reference_id"))
		if err != nil || referenceId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference_id"})
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			writeServiceError(c, err)
			return
		}
		defer file.Close()

		attachment, err := models.CreateAttachment(c.Request.Context(), referenceType, referenceId,
			fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, attachment)
	})

	api.GET("/attachments", func(c *gin.Context) {
		referenceType := c.Query("reference_type")
		referenceId, err := strconv.Atoi(c.Query("reference_id"))
		if err != nil || referenceId <= 0 || referenceType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
			return
		}
		attachments, err := models.ListAttachments(c.Request.Context(), referenceType, referenceId)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, attachments)
	})

	api.DELETE("/attachments/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteAttachment(c.Request.Context(), id); err != nil {
			writeServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func registerCatalogRoutes(api *gin.RouterGroup) {
	api.POST("/catalog-acts", func(c *gin.Context) {
		var input models.NewCatalogAct
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		act, err := models.CreateCatalogAct(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, act)
	})

	api.PUT("/catalog-acts/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewCatalogAct
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		act, err := models.UpdateCatalogAct(c.Request.Context(), id, &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, act)
	})

	api.POST("/catalog-acts/:id/toggle", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input struct {
			IsActive bool `json:"is_active"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		act, err := models.ToggleCatalogAct(c.Request.Context(), id, input.IsActive)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, act)
	})

	api.GET("/catalog-acts", func(c *gin.Context) {
		family := models.ActFamily(c.Query("family"))
		acts, err := models.ListCatalogActs(c.Request.Context(), family)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, acts)
	})

	api.GET("/catalog-acts/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		act, err := models.GetCatalogAct(c.Request.Context(), id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, act)
	})
}

func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &value, true
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	value, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &value, true
}

func queryStr(c *gin.Context, name string) *string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	return &raw
}

func registerDocumentRoutes(api *gin.RouterGroup) {
	api.POST("/care-sheets", func(c *gin.Context) {
		var input models.NewCareSheet
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		sheet, err := models.CreateCareSheet(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sheet)
	})

	api.PUT("/care-sheets/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.UpdateCareSheetInput
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		sheet, err := models.UpdateCareSheet(c.Request.Context(), id, &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, sheet)
	})

	api.DELETE("/care-sheets/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteCareSheet(c.Request.Context(), id); err != nil {
			writeServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/care-sheets/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		sheet, err := models.GetCareSheet(ctx, id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		patient, err := middlewares.GetPatient(ctx, sheet.PatientId)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		prescriber, err := middlewares.GetPrescriber(ctx, sheet.PrescriberId)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		attachments, err := middlewares.GetCareSheetAttachments(ctx, sheet.ID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"care_sheet":  sheet,
			"patient":     patient,
			"prescriber":  prescriber,
			"attachments": attachments,
		})
	})

	api.GET("/care-sheets/:id/acts", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		officeId, ok := utils.GetOfficeIdFromContext(ctx)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "office is required"})
			return
		}
		if err := utils.ValidateResourceId[models.CareSheet](ctx, officeId, id); err != nil {
			writeServiceError(c, err)
			return
		}
		acts, err := middlewares.GetCareSheetActs(ctx, id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, acts)
	})

	api.GET("/care-sheets", func(c *gin.Context) {
		bordereauId, ok := queryInt(c, "bordereau_id")
		if !ok {
			return
		}
		from, ok := queryTime(c, "from")
		if !ok {
			return
		}
		to, ok := queryTime(c, "to")
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return
		}
		filter := models.CareSheetFilter{
			PatientId:   queryStr(c, "patient_id"),
			BordereauId: bordereauId,
			Unattached:  strings.EqualFold(c.Query("unattached"), "true"),
			From:        from,
			To:          to,
			Limit:       utils.DereferencePtr(limit),
			Offset:      utils.DereferencePtr(offset),
		}
		sheets, err := models.ListCareSheets(c.Request.Context(), &filter)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, sheets)
	})

	api.POST("/orthopedic-invoices", func(c *gin.Context) {
		var input models.NewOrthopedicInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		invoice, err := models.CreateOrthopedicInvoice(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	})

	api.PUT("/orthopedic-invoices/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.UpdateOrthopedicInvoiceInput
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		invoice, err := models.UpdateOrthopedicInvoice(c.Request.Context(), id, &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	api.DELETE("/orthopedic-invoices/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteOrthopedicInvoice(c.Request.Context(), id); err != nil {
			writeServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/orthopedic-invoices/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		invoice, err := models.GetOrthopedicInvoice(ctx, id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		patient, err := middlewares.GetPatient(ctx, invoice.PatientId)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		prescriber, err := middlewares.GetPrescriber(ctx, invoice.PrescriberId)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		attachments, err := middlewares.GetOrthopedicInvoiceAttachments(ctx, invoice.ID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orthopedic_invoice": invoice,
			"patient":            patient,
			"prescriber":         prescriber,
			"attachments":        attachments,
		})
	})

	api.GET("/orthopedic-invoices/:id/acts", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		officeId, ok := utils.GetOfficeIdFromContext(ctx)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "office is required"})
			return
		}
		if err := utils.ValidateResourceId[models.OrthopedicInvoice](ctx, officeId, id); err != nil {
			writeServiceError(c, err)
			return
		}
		acts, err := middlewares.GetOrthopedicInvoiceActs(ctx, id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, acts)
	})

	api.GET("/orthopedic-invoices", func(c *gin.Context) {
		bordereauId, ok := queryInt(c, "bordereau_id")
		if !ok {
			return
		}
		from, ok := queryTime(c, "from")
		if !ok {
			return
		}
		to, ok := queryTime(c, "to")
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return
		}
		filter := models.OrthopedicInvoiceFilter{
			PatientId:   queryStr(c, "patient_id"),
			BordereauId: bordereauId,
			Unattached:  strings.EqualFold(c.Query("unattached"), "true"),
			From:        from,
			To:          to,
			Limit:       utils.DereferencePtr(limit),
			Offset:      utils.DereferencePtr(offset),
		}
		invoices, err := models.ListOrthopedicInvoices(c.Request.Context(), &filter)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	})
}

func registerBordereauRoutes(api *gin.RouterGroup) {
	api.POST("/bordereaux", func(c *gin.Context) {
		var input models.NewBordereau
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		bordereau, err := models.CreateBordereau(c.Request.Context(), &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, bordereau)
	})

	api.PUT("/bordereaux/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.UpdateBordereauInput
		if err := c.ShouldBindJSON(&input); err != nil {
			writeBindingError(c, err)
			return
		}
		bordereau, err := models.UpdateBordereau(c.Request.Context(), id, &input)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, bordereau)
	})

	api.DELETE("/bordereaux/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := models.DeleteBordereau(c.Request.Context(), id); err != nil {
			writeServiceError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/bordereaux/:id", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		bordereau, err := models.GetBordereau(c.Request.Context(), id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, bordereau)
	})

	api.GET("/bordereaux", func(c *gin.Context) {
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return
		}
		filter := models.BordereauFilter{
			Limit:  utils.DereferencePtr(limit),
			Offset: utils.DereferencePtr(offset),
		}
		if status := c.Query("status"); status != "" {
			bordereauStatus := models.BordereauStatus(status)
			filter.Status = &bordereauStatus
		}
		if kind := c.Query("kind"); kind != "" {
			bordereauKind := models.BordereauKind(kind)
			filter.Kind = &bordereauKind
		}
		bordereaux, err := models.ListBordereaux(c.Request.Context(), &filter)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, bordereaux)
	})

	api.POST("/bordereaux/:id/commit", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		bordereau, err := models.CommitBordereau(c.Request.Context(), id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, bordereau)
	})

	api.POST("/bordereaux/:id/export", func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		objectName, err := models.ExportBordereauXLSX(c.Request.Context(), id)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"object_name": objectName})
	})
}
