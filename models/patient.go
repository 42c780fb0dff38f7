package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
)

type Patient struct {
	ID             uuid.UUID  `gorm:"primary_key" json:"id"`
	OfficeId       string     `gorm:"index;not null" json:"office_id"`
	FirstName      string     `gorm:"size:100;not null" json:"first_name" binding:"required"`
	LastName       string     `gorm:"size:100;not null" json:"last_name" binding:"required"`
	SocialNumber   string     `gorm:"size:15" json:"social_number"`
	BirthDate      *time.Time `json:"birth_date"`
	Phone          string     `gorm:"size:20" json:"phone"`
	Email          string     `gorm:"size:255" json:"email"`
	Address        string     `gorm:"type:text" json:"address"`
	IsActive       *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPatient struct {
	FirstName    string     `json:"first_name" binding:"required"`
	LastName     string     `json:"last_name" binding:"required"`
	SocialNumber string     `json:"social_number"`
	BirthDate    *time.Time `json:"birth_date"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email"`
	Address      string     `json:"address"`
}

func (p Patient) GetOfficeId() string { return p.OfficeId }

func CreatePatient(ctx context.Context, input *NewPatient) (*Patient, error) {
	db := config.GetDB()

	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("phone", err.Error())
		}
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("email", "invalid email address")
	}

	patient := Patient{
		ID:           uuid.New(),
		OfficeId:     officeId,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		SocialNumber: input.SocialNumber,
		BirthDate:    input.BirthDate,
		Phone:        input.Phone,
		Email:        input.Email,
		Address:      input.Address,
		IsActive:     utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&patient).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

func GetPatient(ctx context.Context, id string) (*Patient, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUUID("patient_id", id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var patient Patient
	if err := db.WithContext(ctx).Where("office_id = ? AND id = ?", officeId, id).First(&patient).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &patient, nil
}

func ListPatients(ctx context.Context) ([]*Patient, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[Patient](ctx, officeId)
}

// validatePatientExists backs the referential check on document writes.
func validatePatientExists(ctx context.Context, officeId string, patientId string) error {
	if err := utils.ValidateUUID("patient_id", patientId); err != nil {
		return err
	}
	count, err := utils.ResourceCountWhere[Patient](ctx, officeId, "id = ?", patientId)
	if err != nil {
		return err
	}
	if count <= 0 {
		return utils.NewReferentialError("patient", patientId)
	}
	return nil
}
