package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
	"github.com/shopspring/decimal"
)

// Office is the tenant: one medical practice. Pricing modifiers applied
// by the totals engine (surcharge multipliers, travel indemnity) are
// office-level settings so a practice can follow its local convention.
type Office struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	City        string    `gorm:"size:100" json:"city"`
	FinessCode  string    `gorm:"size:20" json:"finess_code"`

	// Totals-engine modifiers. Amounts are in cents.
	NightMultiplier       decimal.Decimal `gorm:"type:decimal(10,4);default:1.0" json:"night_multiplier"`
	SundayMultiplier      decimal.Decimal `gorm:"type:decimal(10,4);default:1.0" json:"sunday_multiplier"`
	EmergencyMultiplier   decimal.Decimal `gorm:"type:decimal(10,4);default:1.0" json:"emergency_multiplier"`
	TravelIndemnityAmount decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"travel_indemnity_amount"`

	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOffice struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	FinessCode  string `json:"finess_code"`
}

func (o Office) GetOfficeId() string {
	return o.ID.String()
}

func CreateOffice(ctx context.Context, input *NewOffice) (*Office, error) {
	db := config.GetDB()

	if !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("email", "invalid email address")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("phone", err.Error())
		}
	}

	office := Office{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		City:        input.City,
		FinessCode:  input.FinessCode,
		// Domain defaults: no surcharge until configured, +1.25 is a
		// common Sunday convention but remains a per-office choice.
		NightMultiplier:       decimal.NewFromInt(1),
		SundayMultiplier:      decimal.NewFromInt(1),
		EmergencyMultiplier:   decimal.NewFromInt(1),
		TravelIndemnityAmount: decimal.Zero,
		IsActive:              utils.NewTrue(),
	}

	if err := db.WithContext(ctx).Create(&office).Error; err != nil {
		return nil, err
	}
	return &office, nil
}

// GetOfficeById reads through redis; offices change rarely.
func GetOfficeById(ctx context.Context, officeId string) (*Office, error) {
	var office *Office
	key := "Office:" + officeId
	exists, err := config.GetRedisObject(key, &office)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		office = &Office{}
		if err := db.WithContext(ctx).Where("id = ?", officeId).First(office).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if err := config.SetRedisObject(key, office, 0); err != nil {
			return nil, err
		}
	}
	return office, nil
}

type OfficePricingSettings struct {
	NightMultiplier       decimal.Decimal `json:"night_multiplier"`
	SundayMultiplier      decimal.Decimal `json:"sunday_multiplier"`
	EmergencyMultiplier   decimal.Decimal `json:"emergency_multiplier"`
	TravelIndemnityAmount decimal.Decimal `json:"travel_indemnity_amount"`
}

// UpdateOfficePricingSettings changes the office's modifier profile.
// Already-stored document totals are not touched: totals are recomputed
// from current settings whenever a document's act list changes or a
// bordereau is materialized.
func UpdateOfficePricingSettings(ctx context.Context, officeId string, input *OfficePricingSettings) (*Office, error) {
	db := config.GetDB()

	if input.NightMultiplier.IsNegative() || input.SundayMultiplier.IsNegative() ||
		input.EmergencyMultiplier.IsNegative() || input.TravelIndemnityAmount.IsNegative() {
		return nil, utils.NewValidationError("pricing_settings", "modifiers must not be negative")
	}

	var office Office
	if err := db.WithContext(ctx).Where("id = ?", officeId).First(&office).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if err := db.WithContext(ctx).Model(&office).Updates(map[string]interface{}{
		"NightMultiplier":       input.NightMultiplier,
		"SundayMultiplier":      input.SundayMultiplier,
		"EmergencyMultiplier":   input.EmergencyMultiplier,
		"TravelIndemnityAmount": input.TravelIndemnityAmount,
	}).Error; err != nil {
		return nil, err
	}

	if err := config.RemoveRedisKey("Office:" + officeId); err != nil {
		return nil, err
	}
	return &office, nil
}

func officeIdOrError(ctx context.Context) (string, error) {
	officeId, ok := utils.GetOfficeIdFromContext(ctx)
	if !ok || officeId == "" {
		return "", errors.New("office id is required")
	}
	return officeId, nil
}
