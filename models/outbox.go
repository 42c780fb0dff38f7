package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxRecord stores a dispatch event in the same database as the
// bordereau write that produced it. The dispatcher drains pending rows
// and publishes them to Pub/Sub, so a broker outage never loses the
// commit event.
type OutboxRecord struct {
	ID            int                 `gorm:"primaryKey" json:"id"`
	OfficeId      string              `gorm:"size:40;index" json:"office_id"`
	ReferenceType string              `gorm:"size:40" json:"reference_type"`
	ReferenceId   int                 `json:"reference_id"`
	Action        DispatchAction      `gorm:"size:30" json:"action"`
	Payload       string              `gorm:"type:text" json:"payload"`
	Status        OutboxPublishStatus `gorm:"size:20;default:Pending;index" json:"status"`
	Attempts      int                 `gorm:"default:0" json:"attempts"`
	LastError     string              `gorm:"type:text" json:"last_error"`
	PublishedAt   *time.Time          `json:"published_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

func (r OutboxRecord) GetOfficeId() string { return r.OfficeId }

const outboxMaxAttempts = 5

// EnqueueDispatchEvent records the bordereau commit for publication.
func EnqueueDispatchEvent(ctx context.Context, bordereau *Bordereau) error {
	payload, err := json.Marshal(bordereau)
	if err != nil {
		return err
	}

	record := OutboxRecord{
		OfficeId:      bordereau.OfficeId,
		ReferenceType: "Bordereau",
		ReferenceId:   bordereau.ID,
		Action:        DispatchActionCommitted,
		Payload:       string(payload),
		Status:        OutboxPublishStatusPending,
	}

	db := config.GetDB()
	return db.WithContext(ctx).Create(&record).Error
}

// DrainOutbox publishes pending records oldest first, up to limit.
// Rows exceeding the attempt budget park as Dead instead of blocking
// the queue. Returns how many rows published.
func DrainOutbox(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	db := config.GetDB()
	var records []*OutboxRecord
	err := db.WithContext(ctx).
		Where("status = ?", OutboxPublishStatusPending).
		Order("id").Limit(limit).
		Find(&records).Error
	if err != nil {
		return 0, err
	}

	logger := config.GetLogger()
	published := 0
	for _, record := range records {
		correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
		msg := config.PubSubMessage{
			ID:            record.ID,
			OfficeId:      record.OfficeId,
			EventDateTime: record.CreatedAt,
			ReferenceId:   record.ReferenceId,
			ReferenceType: record.ReferenceType,
			Action:        string(record.Action),
			Payload:       []byte(record.Payload),
			CorrelationId: correlationId,
		}

		_, pubErr := config.PublishDispatchEventWithResult(ctx, record.OfficeId, msg)
		if pubErr == nil {
			now := time.Now()
			err := db.WithContext(ctx).Model(record).Updates(map[string]interface{}{
				"Status":      OutboxPublishStatusPublished,
				"Attempts":    gorm.Expr("attempts + 1"),
				"LastError":   "",
				"PublishedAt": &now,
			}).Error
			if err != nil {
				return published, err
			}
			published++
			continue
		}

		updates := map[string]interface{}{
			"Attempts":  gorm.Expr("attempts + 1"),
			"LastError": pubErr.Error(),
		}
		if record.Attempts+1 >= outboxMaxAttempts {
			updates["Status"] = OutboxPublishStatusDead
		}
		if err := db.WithContext(ctx).Model(record).Updates(updates).Error; err != nil {
			return published, err
		}
		logger.WithFields(logrus.Fields{
			"outbox_id":      record.ID,
			"reference_type": record.ReferenceType,
			"reference_id":   record.ReferenceId,
			"attempts":       record.Attempts + 1,
		}).Warn("outbox publish failed: " + pubErr.Error())
	}
	return published, nil
}

// RunOutboxDispatcher drains the outbox on an interval until ctx is
// cancelled.
func RunOutboxDispatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := config.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := DrainOutbox(ctx, 50); err != nil {
				config.LogError(logger, "models", "RunOutboxDispatcher", "drain", nil, err)
			}
		}
	}
}
