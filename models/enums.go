package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ActFamily distinguishes the two catalog families. Care acts price by
// letter-code unit price x coefficient; orthopedic acts carry a fixed
// tariff with a regime-based patient/insurer split.
type ActFamily string

const (
	ActFamilyCare       ActFamily = "Care"
	ActFamilyOrthopedic ActFamily = "Orthopedic"
)

func (t *ActFamily) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*t = ActFamily(v)
	case string:
		*t = ActFamily(v)
	default:
		return fmt.Errorf("unsupported act family value: %v", value)
	}
	switch *t {
	case ActFamilyCare, ActFamilyOrthopedic:
		return nil
	}
	return errors.New("invalid act family")
}

func (t ActFamily) Value() (driver.Value, error) {
	return string(t), nil
}

// DocumentKind tags the two billing-document kinds handled uniformly
// by the bordereau aggregator.
type DocumentKind string

const (
	DocumentKindCareSheet         DocumentKind = "CareSheet"
	DocumentKindOrthopedicInvoice DocumentKind = "OrthopedicInvoice"
)

type BordereauKind string

const (
	BordereauKindCare       BordereauKind = "Care"
	BordereauKindOrthopedic BordereauKind = "Orthopedic"
	BordereauKindMixed      BordereauKind = "Mixed"
)

type BordereauStatus string

const (
	BordereauStatusDraft     BordereauStatus = "Draft"
	BordereauStatusCommitted BordereauStatus = "Committed"
)

// CareSheetFlags is the bit-set of document-level pricing modifiers and
// regime markers. An unset bit is simply "false": it never faults the
// totals engine.
type CareSheetFlags uint16

const (
	FlagEmergency CareSheetFlags = 1 << iota
	FlagNight
	FlagSundayHoliday
	FlagChronicCondition
	FlagMaternity
	FlagWorkAccident
	FlagTravelIndemnity
)

func (f CareSheetFlags) Has(flag CareSheetFlags) bool {
	return f&flag != 0
}

func (f CareSheetFlags) With(flag CareSheetFlags) CareSheetFlags {
	return f | flag
}

// OutboxPublishStatus tracks dispatch-event delivery by the outbox
// dispatcher.
type OutboxPublishStatus string

const (
	OutboxPublishStatusPending   OutboxPublishStatus = "Pending"
	OutboxPublishStatusPublished OutboxPublishStatus = "Published"
	OutboxPublishStatusDead      OutboxPublishStatus = "Dead"
)

type DispatchAction string

const (
	DispatchActionCommitted DispatchAction = "Committed"
	DispatchActionDeleted   DispatchAction = "Deleted"
)
