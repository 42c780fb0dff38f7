package utils

import (
	"context"
	"errors"
	"reflect"
	"regexp"

	"github.com/google/uuid"
	"github.com/mediflow/cabinet_backend/config"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "FR"

var accordNumberPattern = regexp.MustCompile(`^\d{8}$`)

// ValidateUUID checks foreign-key fields that reference patient /
// prescriber records by UUID.
func ValidateUUID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return NewValidationError(field, "must be a valid UUID")
	}
	return nil
}

// ValidateAccordNumber enforces the prescriber accord number format:
// exactly 8 digits.
func ValidateAccordNumber(value string) error {
	if !accordNumberPattern.MatchString(value) {
		return NewValidationError("accord_number", "must be exactly 8 digits")
	}
	return nil
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return errors.New("phone number is not valid")
	}
	return nil
}

// check if id exists, using ctx's office_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, officeId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, officeId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, officeId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, officeId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, officeId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE office_id = ? AND $condition
// office_id can be blank for admin tooling
func ResourceCountWhere[T any](ctx context.Context, officeId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if officeId != "" {
		dbCtx.Where("office_id = ?", officeId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
