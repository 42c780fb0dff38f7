package models

import (
	"context"
	"time"

	"github.com/mediflow/cabinet_backend/config"
	"github.com/mediflow/cabinet_backend/utils"
)

// User is an office staff account (practitioner or secretary).
// Passwords are stored bcrypt-hashed and never leave the model.
type User struct {
	ID           int       `gorm:"primaryKey" json:"id"`
	OfficeId     string    `gorm:"size:40;index" json:"office_id"`
	Name         string    `gorm:"size:100" json:"name"`
	Email        string    `gorm:"size:255;index" json:"email"`
	Phone        string    `gorm:"size:30" json:"phone"`
	Role         string    `gorm:"size:30;default:secretary" json:"role"`
	PasswordHash string    `gorm:"size:100" json:"-"`
	IsActive     *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) GetOfficeId() string { return u.OfficeId }

type NewUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, utils.NewValidationError("name", "is required")
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("email", "is not a valid email address")
	}
	if err := utils.ValidateUnique[User](ctx, officeId, "email", input.Email, 0); err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, err
		}
	}
	if len(input.Password) < 8 {
		return nil, utils.NewValidationError("password", "must be at least 8 characters")
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = "secretary"
	}

	user := User{
		OfficeId:     officeId,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Role:         role,
		PasswordHash: hash,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AuthenticateUser checks the credentials against the active accounts
// of the office. Returns nil and false on any mismatch.
func AuthenticateUser(ctx context.Context, officeId string, email string, password string) (*User, bool) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).
		Where("office_id = ? AND email = ? AND is_active = ?", officeId, email, true).
		First(&user).Error
	if err != nil {
		return nil, false
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, false
	}
	return &user, true
}

func ListUsers(ctx context.Context) ([]*User, error) {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var users []*User
	err = db.WithContext(ctx).Where("office_id = ?", officeId).Order("name").Find(&users).Error
	return users, err
}

func DeactivateUser(ctx context.Context, id int) error {
	officeId, err := officeIdOrError(ctx)
	if err != nil {
		return err
	}
	user, err := utils.FetchModel[User](ctx, officeId, id)
	if err != nil {
		return err
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(user).Update("IsActive", utils.NewFalse()).Error
}
