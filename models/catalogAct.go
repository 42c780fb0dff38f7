package models

import (
	"context"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

// CatalogAct is one billable entry of the act catalog. office_id NULL
// means the entry is shared by every office; an office-specific entry
// shadows nothing and simply extends the catalog for that office.
//
// Amounts are in cents. Coefficient applies to the Care family;
// Rate (reimbursement percent) applies to the Orthopedic family.
type CatalogAct struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OfficeId    *string         `gorm:"index;default:null" json:"office_id"`
	Family      ActFamily       `gorm:"type:enum('Care','Orthopedic');not null" json:"family" binding:"required"`
	Code        string          `gorm:"size:10;not null" json:"code" binding:"required"`
	Label       string          `gorm:"size:255;not null" json:"label" binding:"required"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unit_price" binding:"required"`
	Coefficient decimal.Decimal `gorm:"type:decimal(10,2);default:1" json:"coefficient"`
	Rate        decimal.Decimal `gorm:"type:decimal(10,2);default:100" json:"rate"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCatalogAct struct {
	Family      ActFamily       `json:"family" binding:"required"`
	Code        string          `json:"code" binding:"required"`
	Label       string          `json:"label" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
	Coefficient decimal.Decimal `json:"coefficient"`
	Rate        decimal.Decimal `json:"rate"`
	// Shared = true registers a global entry (admin tooling only).
	Shared bool `json:"shared"`
}

func (a CatalogAct) GetID() int { return a.ID }

func (input NewCatalogAct) validate() error {
	if input.Family != ActFamilyCare && input.Family != ActFamilyOrthopedic {
		return utils.NewValidationError("family", "must be Care or Orthopedic")
	}
	if input.Code == "" {
		return utils.NewValidationError("code", "is required")
	}
	if input.UnitPrice.IsNegative() {
		return utils.NewValidationError("unit_price", "must not be negative")
	}
	if input.Coefficient.IsNegative() {
		return utils.NewValidationError("coefficient", "must not be negative")
	}
	if input.Rate.IsNegative() || input.Rate.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewValidationError("rate", "must be between 0 and 100")
	}
	return nil
}

func CreateCatalogAct(ctx context.Context, input *NewCatalogAct) (*CatalogAct, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}

	act := CatalogAct{
		Family:      input.Family,
		Code:        input.Code,
		Label:       input.Label,
		UnitPrice:   input.UnitPrice,
		Coefficient: input.Coefficient,
		Rate:        input.Rate,
		IsActive:    utils.NewTrue(),
	}
	if act.Coefficient.IsZero() {
		act.Coefficient = decimal.NewFromInt(1)
	}
	if act.Rate.IsZero() {
		act.Rate = decimal.NewFromInt(100)
	}

	if !input.Shared {
		officeId, err := officeIdOrError(ctx)
		if err != nil {
			return nil, err
		}
		act.OfficeId = &officeId
	}

	if err := db.WithContext(ctx).Create(&act).Error; err != nil {
		return nil, err
	}
	if err := clearCatalogCache(act.OfficeId); err != nil {
		return nil, err
	}
	return &act, nil
}

// UpdateCatalogAct changes the pricing profile of a catalog entry.
// An entry that is already referenced by a document-act link is
// immutable: the update deactivates it and creates a successor row, so
// the new price only applies going forward while existing links keep
// pricing against the row they reference.
func UpdateCatalogAct(ctx context.Context, id int, input *NewCatalogAct) (*CatalogAct, error) {
	db := config.GetDB()

	if err := input.validate(); err != nil {
		return nil, err
	}

	var act CatalogAct
	if err := db.WithContext(ctx).First(&act, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	var linkCount int64
	if err := db.WithContext(ctx).Model(&DocumentActLink{}).Where("act_id = ?", id).Count(&linkCount).Error; err != nil {
		return nil, err
	}

	if linkCount > 0 {
		successor := CatalogAct{
			OfficeId:    act.OfficeId,
			Family:      act.Family,
			Code:        input.Code,
			Label:       input.Label,
			UnitPrice:   input.UnitPrice,
			Coefficient: input.Coefficient,
			Rate:        input.Rate,
			IsActive:    utils.NewTrue(),
		}
		tx := db.Begin()
		defer func() { _ = tx.Rollback().Error }()

		if err := tx.WithContext(ctx).Model(&act).UpdateColumn("IsActive", false).Error; err != nil {
			return nil, err
		}
		if err := tx.WithContext(ctx).Create(&successor).Error; err != nil {
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		if err := clearCatalogCache(act.OfficeId); err != nil {
			return nil, err
		}
		if err := utils.RemoveRedisItem[CatalogAct](act.ID); err != nil {
			return nil, err
		}
		return &successor, nil
	}

	if err := db.WithContext(ctx).Model(&act).Updates(map[string]interface{}{
		"Code":        input.Code,
		"Label":       input.Label,
		"UnitPrice":   input.UnitPrice,
		"Coefficient": input.Coefficient,
		"Rate":        input.Rate,
	}).Error; err != nil {
		return nil, err
	}
	if err := clearCatalogCache(act.OfficeId); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[CatalogAct](act.ID); err != nil {
		return nil, err
	}
	return &act, nil
}

func ToggleCatalogAct(ctx context.Context, id int, isActive bool) (*CatalogAct, error) {
	db := config.GetDB()

	var act CatalogAct
	if err := db.WithContext(ctx).First(&act, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Model(&act).UpdateColumn("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	if err := clearCatalogCache(act.OfficeId); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[CatalogAct](act.ID); err != nil {
		return nil, err
	}
	return &act, nil
}

// ListCatalogActs returns the catalog visible to the request's office:
// global entries plus the office's own, redis cached per office.
func ListCatalogActs(ctx context.Context, family ActFamily) ([]*CatalogAct, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	results, err := utils.RetrieveRedisList[CatalogAct](officeId + ":" + string(family))
	if err != nil {
		return nil, err
	}
	if results == nil {
		db := config.GetDB()
		if err := db.WithContext(ctx).
			Where("family = ? AND (office_id = ? OR office_id IS NULL)", family, officeId).
			Order("code").
			Find(&results).Error; err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[CatalogAct](results, officeId+":"+string(family)); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// GetCatalogAct resolves one entry visible to the office (own or global).
func GetCatalogAct(ctx context.Context, id int) (*CatalogAct, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	result, err := utils.RetrieveRedis[CatalogAct](id)
	if err != nil {
		return nil, err
	}
	// The per-id cache is shared across offices; re-check visibility
	// on hits so one office's entry never resolves for another.
	if result != nil && result.OfficeId != nil && *result.OfficeId != officeId {
		return nil, utils.ErrorRecordNotFound
	}
	if result == nil {
		db := config.GetDB()
		result = &CatalogAct{}
		if err := db.WithContext(ctx).
			Where("id = ? AND (office_id = ? OR office_id IS NULL)", id, officeId).
			First(result).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if err := utils.StoreRedis[CatalogAct](result, id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// resolveCatalogActs fetches every act id in one query and fails with a
// ReferentialError naming the first unresolved id. Link writes call
// this before touching the store.
func resolveCatalogActs(ctx context.Context, officeId string, actIds []int) (map[int]*CatalogAct, error) {
	unqIds := utils.UniqueSlice(actIds)

	db := config.GetDB()
	var acts []*CatalogAct
	if err := db.WithContext(ctx).
		Where("id IN ? AND (office_id = ? OR office_id IS NULL)", unqIds, officeId).
		Find(&acts).Error; err != nil {
		return nil, err
	}

	byId := make(map[int]*CatalogAct, len(acts))
	for _, act := range acts {
		byId[act.ID] = act
	}
	for _, id := range unqIds {
		if _, ok := byId[id]; !ok {
			return nil, utils.NewReferentialError("catalog act", id)
		}
	}
	return byId, nil
}

// catalog lists are cached per office; a global entry invalidates every
// office list, which we cannot enumerate cheaply, so global edits flush
// by wildcard office key convention: callers of global edits are admin
// tools, and offices re-fill lazily after the per-family TTL.
func clearCatalogCache(officeId *string) error {
	if officeId == nil {
		return nil
	}
	if err := utils.RemoveRedisList[CatalogAct](*officeId + ":" + string(ActFamilyCare)); err != nil {
		return err
	}
	return utils.RemoveRedisList[CatalogAct](*officeId + ":" + string(ActFamilyOrthopedic))
}
