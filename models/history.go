package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/sirupsen/logrus"
)

// History is the per-office audit trail. Every mutating operation on
// documents, bundles and the catalog appends one row; failures to
// record history never fail the operation itself.
type History struct {
	ID            int       `gorm:"primaryKey" json:"id"`
	OfficeId      string    `gorm:"size:40;index" json:"office_id"`
	ReferenceType string    `gorm:"size:40;index:idx_history_reference" json:"reference_type"`
	ReferenceId   string    `gorm:"size:40;index:idx_history_reference" json:"reference_id"`
	Action        string    `gorm:"size:30" json:"action"`
	UserId        int       `json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	Details       string    `gorm:"type:text" json:"details"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (h History) GetOfficeId() string { return h.OfficeId }

// AddHistory records an audit row for the given reference. details may
// be nil; anything else is stored as JSON.
func AddHistory(ctx context.Context, referenceType string, referenceId string, action string, details interface{}) {
	officeId, ok := utils.GetOfficeIdFromContext(ctx)
	if !ok || officeId == "" {
		return
	}

	encoded := ""
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			encoded = string(raw)
		}
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	record := History{
		OfficeId:      officeId,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Action:        action,
		UserId:        userId,
		UserName:      userName,
		Details:       encoded,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"reference_type": referenceType,
			"reference_id":   referenceId,
			"action":         action,
		}).Error("failed to record history: " + err.Error())
	}
}

// GetHistory lists the audit rows of one reference, newest first.
func GetHistory(ctx context.Context, referenceType string, referenceId string) ([]*History, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var records []*History
	err = db.WithContext(ctx).
		Where("office_id = ? AND reference_type = ? AND reference_id = ?", officeId, referenceType, referenceId).
		Order("id DESC").
		Find(&records).Error
	return records, err
}
