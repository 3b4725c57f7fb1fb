package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotFoundError reports a missing entity
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ErrorCode returns the API error code, e.g. SCHEDULE_NOT_FOUND
func (e *NotFoundError) ErrorCode() string {
	return upperSnake(e.Resource) + "_NOT_FOUND"
}

// ValidationError reports a missing or invalid input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientSeatsError is returned when a schedule cannot hold the requested seats
type InsufficientSeatsError struct {
	ScheduleID uuid.UUID
	Requested  int
	Available  int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("insufficient seats on schedule %s: requested %d, available %d",
		e.ScheduleID, e.Requested, e.Available)
}

// TripDepartedError is returned for operations on a trip that already left
type TripDepartedError struct {
	ScheduleID    uuid.UUID
	DepartureTime time.Time
}

func (e *TripDepartedError) Error() string {
	return fmt.Sprintf("schedule %s departed at %s", e.ScheduleID, e.DepartureTime.Format(time.RFC3339))
}

// RefundFailedError wraps a payment gateway refund failure
type RefundFailedError struct {
	BookingID uuid.UUID
	Err       error
}

func (e *RefundFailedError) Error() string {
	return fmt.Sprintf("refund failed for booking %s: %v", e.BookingID, e.Err)
}

func (e *RefundFailedError) Unwrap() error { return e.Err }

// ConflictError covers stale updates, illegal state transitions and unique key clashes
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Resource == "" {
		return e.Message
	}
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

// UnauthorizedError reports failed authentication
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// RateLimitError is returned when too many attempts came from one email or IP
type RateLimitError struct {
	Scope      string
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many failed sign-in attempts for this %s, try again after %s",
		e.Scope, e.RetryAfter.Format("15:04:05"))
}

// ErrInvalidCredentials is returned for a wrong email or password
var ErrInvalidCredentials = &UnauthorizedError{Message: "invalid email or password"}

func NewNotFound(resource string, id fmt.Stringer) error {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

func ScheduleNotFound(id uuid.UUID) error { return NewNotFound("schedule", id) }
func BookingNotFound(id uuid.UUID) error  { return NewNotFound("booking", id) }
func RouteNotFound(id uuid.UUID) error    { return NewNotFound("route", id) }
func BusNotFound(id uuid.UUID) error      { return NewNotFound("bus", id) }
func PaymentNotFound(id uuid.UUID) error  { return NewNotFound("payment", id) }
func UserNotFound(id uuid.UUID) error     { return NewNotFound("user", id) }

func BusTypeNotFound(id int) error {
	return &NotFoundError{Resource: "bus type", ID: fmt.Sprintf("%d", id)}
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrConcurrencyConflict is returned when a row changed since it was read
func ErrConcurrencyConflict(resource string) error {
	return &ConflictError{Resource: resource, Message: "record was modified by another request, reload and retry"}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInsufficientSeats(err error) bool {
	var target *InsufficientSeatsError
	return errors.As(err, &target)
}

func IsTripDeparted(err error) bool {
	var target *TripDepartedError
	return errors.As(err, &target)
}

func IsRefundFailed(err error) bool {
	var target *RefundFailedError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

func IsRateLimited(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func upperSnake(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '-':
			out = append(out, '_')
		case ch >= 'a' && ch <= 'z':
			out = append(out, ch-'a'+'A')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
