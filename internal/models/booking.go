package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "Booked"
	BookingStatusCompleted BookingStatus = "Completed"
	BookingStatusCancelled BookingStatus = "Cancelled"
)

// MaxSeatsPerBooking caps a single reservation
const MaxSeatsPerBooking = 10

// IsActive reports whether seats held under this status count against capacity
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusBooked || s == BookingStatusCompleted
}

// IsTerminal reports whether no further transition is allowed
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransitionTo encodes Booked -> Completed and Booked -> Cancelled
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s != BookingStatusBooked {
		return false
	}
	return next == BookingStatusCompleted || next == BookingStatusCancelled
}

// Passenger is the person travelling on a booking
type Passenger struct {
	Name  string `json:"name" db:"passenger_name"`
	Age   int    `json:"age" db:"passenger_age"`
	Phone string `json:"phone,omitempty" db:"passenger_phone"`
	Email string `json:"email,omitempty" db:"passenger_email"`
}

// Booking represents a seat reservation on a schedule
type Booking struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	ScheduleID  uuid.UUID       `json:"schedule_id" db:"schedule_id"`
	UserID      *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Passenger
	SeatCount   int             `json:"seat_count" db:"seat_count"`
	FarePerSeat decimal.Decimal `json:"fare_per_seat" db:"fare_per_seat"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status      BookingStatus   `json:"status" db:"status"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// BookingDetail is the booking projection returned by the API
type BookingDetail struct {
	Booking
	BusNumber        string          `json:"bus_number" db:"bus_number"`
	BusTypeID        int             `json:"bus_type_id" db:"bus_type_id"`
	BusTypeName      string          `json:"bus_type_name" db:"bus_type_name"`
	DepartureTime    time.Time       `json:"departure_time" db:"departure_time"`
	ArrivalTime      time.Time       `json:"arrival_time" db:"arrival_time"`
	StartingPlace    string          `json:"starting_place" db:"starting_place"`
	DestinationPlace string          `json:"destination_place" db:"destination_place"`
	Distance         decimal.Decimal `json:"distance" db:"distance"`
	SchedulePrice    decimal.Decimal `json:"schedule_price" db:"schedule_price"`
	Fare             *Fare           `json:"fare,omitempty" db:"-"`
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" binding:"required"`
	SeatCount  int       `json:"seat_count" binding:"required,min=1"`
	Passenger  Passenger `json:"passenger"`
}

// UpdateBookingRequest replaces schedule, seat count and passenger of a booking.
// Version must match the stored row.
type UpdateBookingRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" binding:"required"`
	SeatCount  int       `json:"seat_count" binding:"required,min=1"`
	Passenger  Passenger `json:"passenger"`
	Version    int       `json:"version"`
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if r.ScheduleID == uuid.Nil {
		return NewValidationError("schedule_id", "is required")
	}
	if err := validateSeatCount(r.SeatCount); err != nil {
		return err
	}
	return r.Passenger.Validate()
}

// Validate validates the update booking request
func (r *UpdateBookingRequest) Validate() error {
	if r.ScheduleID == uuid.Nil {
		return NewValidationError("schedule_id", "is required")
	}
	if err := validateSeatCount(r.SeatCount); err != nil {
		return err
	}
	return r.Passenger.Validate()
}

// Validate checks the passenger fields shared by create and update
func (p *Passenger) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Name == "" {
		return NewValidationError("passenger.name", "is required")
	}
	if p.Age < 0 || p.Age > 130 {
		return NewValidationError("passenger.age", "must be between 0 and 130")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return NewValidationError("passenger.email", "is not a valid email address")
	}
	return nil
}

func validateSeatCount(n int) error {
	if n <= 0 {
		return NewValidationError("seat_count", "must be at least 1")
	}
	if n > MaxSeatsPerBooking {
		return NewValidationError("seat_count", "maximum 10 seats can be booked at once")
	}
	return nil
}

// BelongsTo reports whether the booking was made by the given user
func (b *Booking) BelongsTo(userID uuid.UUID) bool {
	return b.UserID != nil && *b.UserID == userID
}
