package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/patient-transport/internal/model"
)

// Kind classifies a rejected operation.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindPolicy            Kind = "PolicyViolation"
	KindIneligible        Kind = "ResourceIneligible"
	KindBusy              Kind = "ResourceBusy"
	KindDoubleBooked      Kind = "PatientDoubleBooked"
	KindIncompatible      Kind = "IncompatibleResource"
	KindInvalidTransition Kind = "InvalidStateTransition"
	KindNotFound          Kind = "NotFound"
	KindPersistence       Kind = "PersistenceFailure"
)

// Code names the precise cause within a Kind.
type Code string

const (
	CodeDriverIneligible          Code = "DriverIneligible"
	CodeDriverBusy                Code = "DriverBusy"
	CodeVehicleIneligible         Code = "VehicleIneligible"
	CodeVehicleBusy               Code = "VehicleBusy"
	CodePatientIneligible         Code = "PatientIneligible"
	CodePatientDoubleBooked       Code = "PatientDoubleBooked"
	CodeVehicleNotAccessible      Code = "VehicleNotAccessible"
	CodeVehicleNotFullyAccessible Code = "VehicleNotFullyAccessible"
	CodePastDate                  Code = "PastDate"
	CodeOutsideOperatingHours     Code = "OutsideOperatingHours"
	CodeNonWorkingDay             Code = "NonWorkingDay"
	CodeInsufficientLeadTime      Code = "InsufficientLeadTime"
	CodeAppointmentInPast         Code = "AppointmentInPast"
	CodeTripTooLong               Code = "TripTooLong"
	CodeMissingField              Code = "MissingField"
	CodeInvalidField              Code = "InvalidField"
	CodeInvalidStateTransition    Code = "InvalidStateTransition"
	CodeAppointmentNotFound       Code = "AppointmentNotFound"
	CodePersistenceFailure        Code = "PersistenceFailure"
)

// Conflict points at an existing appointment that occupies the requested slot.
type Conflict struct {
	AppointmentID uuid.UUID
	ResourceType  model.ResourceType
	ResourceID    uuid.UUID
	Date          time.Time
	Start         model.ClockTime
	End           model.ClockTime
}

// Error is the structured failure returned by every scheduling operation.
type Error struct {
	Kind      Kind
	Code      Code
	Message   string
	Conflicts []Conflict
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func validationError(code Code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

func policyError(code Code, format string, args ...any) *Error {
	return newError(KindPolicy, code, format, args...)
}

func transitionError(from model.AppointmentStatus, op string) *Error {
	return newError(KindInvalidTransition, CodeInvalidStateTransition,
		"cannot %s an appointment in status %q", op, from)
}

func persistenceError(err error) *Error {
	return &Error{
		Kind:    KindPersistence,
		Code:    CodePersistenceFailure,
		Message: "storage operation failed",
		Err:     err,
	}
}

// AsError converts any error into an *Error; anything unstructured counts as a persistence failure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return persistenceError(err)
}

// KindOf returns the Kind of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}

// CodeOf returns the Code of err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}
