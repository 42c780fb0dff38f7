package utils

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError rejects malformed input before any write. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReferentialError signals that a referenced resource (catalog act,
// patient, prescriber, ...) does not exist. Surfaced as-is, never retried.
type ReferentialError struct {
	Resource string
	Id       any
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s not found (id=%v)", e.Resource, e.Id)
}

func NewReferentialError(resource string, id any) error {
	return &ReferentialError{Resource: resource, Id: id}
}

func IsReferentialError(err error) bool {
	var re *ReferentialError
	return errors.As(err, &re)
}

// TransientConflictError marks a store-level write conflict that is
// expected to clear on retry (typically a just-created parent row not
// yet visible to a downstream check).
type TransientConflictError struct {
	Op  string
	Err error
}

func (e *TransientConflictError) Error() string {
	return "transient conflict during " + e.Op + ": " + e.Err.Error()
}

func (e *TransientConflictError) Unwrap() error { return e.Err }

func NewTransientConflictError(op string, err error) error {
	return &TransientConflictError{Op: op, Err: err}
}

// MySQL signals row-level write conflicts with 1205 (lock wait timeout)
// and 1213 (deadlock). Both clear on retry once the competing
// transaction settles.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// IsTransientConflict reports whether err is retryable per the
// bounded-retry policy. Anything else aborts immediately.
func IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	var tc *TransientConflictError
	if errors.As(err, &tc) {
		return true
	}
	var my *mysql.MySQLError
	if errors.As(err, &my) {
		return my.Number == mysqlErrLockWaitTimeout || my.Number == mysqlErrDeadlock
	}
	return false
}

// PartialAggregationError reports a single document that failed to
// materialize while fetching a bordereau. The fetch itself still
// succeeds; the document is returned degraded (no acts, zero total).
type PartialAggregationError struct {
	BordereauId  int
	DocumentKind string
	DocumentId   int
	Err          error
}

func (e *PartialAggregationError) Error() string {
	return fmt.Sprintf("bordereau %d: %s %d returned degraded: %v",
		e.BordereauId, e.DocumentKind, e.DocumentId, e.Err)
}

func (e *PartialAggregationError) Unwrap() error { return e.Err }

func NewPartialAggregationError(bordereauId int, documentKind string, documentId int, err error) error {
	return &PartialAggregationError{BordereauId: bordereauId, DocumentKind: documentKind, DocumentId: documentId, Err: err}
}
