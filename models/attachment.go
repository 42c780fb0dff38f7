package models

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
)

// Attachment is a scanned document stored in GCS and referenced
// polymorphically from a care sheet, an orthopedic invoice or a
// bordereau (typically the prescription scan). Image uploads also get
// a thumbnail object under the thumb/ prefix.
type Attachment struct {
	ID            int       `gorm:"primaryKey" json:"id"`
	OfficeId      string    `gorm:"size:40;index" json:"office_id"`
	ReferenceType string    `gorm:"size:40;index:idx_attachment_reference" json:"reference_type"`
	ReferenceId   int       `gorm:"index:idx_attachment_reference" json:"reference_id"`
	FileName      string    `gorm:"size:255" json:"file_name"`
	ObjectName    string    `gorm:"size:255" json:"object_name"`
	ContentType   string    `gorm:"size:100" json:"content_type"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (a Attachment) GetOfficeId() string { return a.OfficeId }

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
}

func validateAttachmentReference(ctx context.Context, officeId string, referenceType string, referenceId int) error {
	switch DocumentKind(referenceType) {
	case DocumentKindCareSheet:
		return utils.ValidateResourceId[CareSheet](ctx, officeId, referenceId)
	case DocumentKindOrthopedicInvoice:
		return utils.ValidateResourceId[OrthopedicInvoice](ctx, officeId, referenceId)
	}
	if referenceType == "Bordereau" {
		return utils.ValidateResourceId[Bordereau](ctx, officeId, referenceId)
	}
	return utils.NewValidationError("reference_type", "is not attachable")
}

// CreateAttachment uploads the file and records it against the
// reference. Images get a best-effort thumbnail alongside.
func CreateAttachment(ctx context.Context, referenceType string, referenceId int, fileName string, contentType string, content io.ReadSeeker) (*Attachment, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateAttachmentReference(ctx, officeId, referenceType, referenceId); err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, utils.NewValidationError("file_name", "is required")
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	objectName := utils.GenerateUniqueFilename() + ext

	if err := utils.UploadFileToGCS(ctx, objectName, content); err != nil {
		return nil, err
	}
	if imageExtensions[ext] {
		if _, err := content.Seek(0, io.SeekStart); err == nil {
			if err := utils.UploadThumbnailToGCS(ctx, objectName, content); err != nil {
				config.GetLogger().Warn("thumbnail upload failed for " + objectName + ": " + err.Error())
			}
		}
	}

	attachment := Attachment{
		OfficeId:      officeId,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		FileName:      fileName,
		ObjectName:    objectName,
		ContentType:   contentType,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&attachment).Error; err != nil {
		return nil, err
	}

	AddHistory(ctx, referenceType, strconv.Itoa(referenceId), "AttachmentAdded", attachment)
	return &attachment, nil
}

// ListAttachments returns the attachments of a reference, oldest
// first.
func ListAttachments(ctx context.Context, referenceType string, referenceId int) ([]*Attachment, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var attachments []*Attachment
	err = db.WithContext(ctx).
		Where("office_id = ? AND reference_type = ? AND reference_id = ?", officeId, referenceType, referenceId).
		Order("id").
		Find(&attachments).Error
	return attachments, err
}

// DeleteAttachment removes the record and both stored objects.
func DeleteAttachment(ctx context.Context, id int) error {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return err
	}

	attachment, err := utils.FetchModel[Attachment](ctx, officeId, id)
	if err != nil {
		return err
	}

	if err := utils.DeleteFileFromGCS(ctx, attachment.ObjectName); err != nil {
		config.GetLogger().Warn("failed to delete object " + attachment.ObjectName + ": " + err.Error())
	}
	if imageExtensions[strings.ToLower(filepath.Ext(attachment.ObjectName))] {
		if err := utils.DeleteFileFromGCS(ctx, "thumb/"+attachment.ObjectName); err != nil {
			config.GetLogger().Warn("failed to delete thumbnail " + attachment.ObjectName + ": " + err.Error())
		}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(attachment).Error; err != nil {
		return err
	}

	AddHistory(ctx, attachment.ReferenceType, strconv.Itoa(attachment.ReferenceId), "AttachmentRemoved", attachment)
	return nil
}
