package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
)

// Prescriber is the ordering practitioner referenced by billing
// documents. The accord number identifies the prescriber towards the
// payer and must be exactly 8 digits.
type Prescriber struct {
	ID           uuid.UUID `gorm:"primary_key" json:"id"`
	OfficeId     string    `gorm:"index;not null" json:"office_id"`
	FirstName    string    `gorm:"size:100;not null" json:"first_name" binding:"required"`
	LastName     string    `gorm:"size:100;not null" json:"last_name" binding:"required"`
	AccordNumber string    `gorm:"size:8;not null" json:"accord_number" binding:"required"`
	Specialty    string    `gorm:"size:100" json:"specialty"`
	Phone        string    `gorm:"size:20" json:"phone"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPrescriber struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	AccordNumber string `json:"accord_number" binding:"required"`
	Specialty    string `json:"specialty"`
	Phone        string `json:"phone"`
}

func (p Prescriber) GetOfficeId() string { return p.OfficeId }

func CreatePrescriber(ctx context.Context, input *NewPrescriber) (*Prescriber, error) {
	db := config.GetDB()

	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateAccordNumber(input.AccordNumber); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("phone", err.Error())
		}
	}
	if err := utils.ValidateUnique[Prescriber](ctx, officeId, "accord_number", input.AccordNumber, 0); err != nil {
		return nil, err
	}

	prescriber := Prescriber{
		ID:           uuid.New(),
		OfficeId:     officeId,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		AccordNumber: input.AccordNumber,
		Specialty:    input.Specialty,
		Phone:        input.Phone,
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&prescriber).Error; err != nil {
		return nil, err
	}
	return &prescriber, nil
}

func GetPrescriber(ctx context.Context, id string) (*Prescriber, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUUID("prescriber_id", id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var prescriber Prescriber
	if err := db.WithContext(ctx).Where("office_id = ? AND id = ?", officeId, id).First(&prescriber).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &prescriber, nil
}

func ListPrescribers(ctx context.Context) ([]*Prescriber, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[Prescriber](ctx, officeId)
}

func validatePrescriberExists(ctx context.Context, officeId string, prescriberId string) error {
	if err := utils.ValidateUUID("prescriber_id", prescriberId); err != nil {
		return err
	}
	count, err := utils.ResourceCountWhere[Prescriber](ctx, officeId, "id = ?", prescriberId)
	if err != nil {
		return err
	}
	if count <= 0 {
		return utils.NewReferentialError("prescriber", prescriberId)
	}
	return nil
}
