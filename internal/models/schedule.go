package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Schedule is one departure of a bus on a route
type Schedule struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	BusID          uuid.UUID       `json:"bus_id" db:"bus_id"`
	RouteID        uuid.UUID       `json:"route_id" db:"route_id"`
	DepartureTime  time.Time       `json:"departure_time" db:"departure_time"`
	ArrivalTime    time.Time       `json:"arrival_time" db:"arrival_time"`
	AvailableSeats int             `json:"available_seats" db:"available_seats"`
	Price          decimal.Decimal `json:"price" db:"price"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ScheduleDetail joins a schedule with its bus, bus type and route
type ScheduleDetail struct {
	Schedule
	BusNumber        string          `json:"bus_number" db:"bus_number"`
	BusTypeID        int             `json:"bus_type_id" db:"bus_type_id"`
	BusTypeName      string          `json:"bus_type_name" db:"bus_type_name"`
	TotalSeats       int             `json:"total_seats" db:"total_seats"`
	StartingPlace    string          `json:"starting_place" db:"starting_place"`
	DestinationPlace string          `json:"destination_place" db:"destination_place"`
	Distance         decimal.Decimal `json:"distance" db:"distance"`
	RouteBasePrice   decimal.Decimal `json:"route_base_price" db:"route_base_price"`
}

// HasDeparted reports whether the trip left before now
func (s *Schedule) HasDeparted(now time.Time) bool {
	return s.DepartureTime.Before(now)
}

// SeatLock is the row read under SELECT ... FOR UPDATE when seats change
type SeatLock struct {
	ScheduleID     uuid.UUID `db:"id"`
	DepartureTime  time.Time `db:"departure_time"`
	AvailableSeats int       `db:"available_seats"`
	TotalSeats     int       `db:"total_seats"`
}

// Availability is the derived seat count of a schedule
type Availability struct {
	ScheduleID     uuid.UUID `json:"schedule_id" db:"schedule_id"`
	TotalSeats     int       `json:"total_seats" db:"total_seats"`
	BookedSeats    int       `json:"booked_seats" db:"booked_seats"`
	AvailableSeats int       `json:"available_seats" db:"available_seats"`
}

// SeatDrift is a schedule whose stored available_seats no longer matches its bookings
type SeatDrift struct {
	ScheduleID  uuid.UUID `db:"schedule_id"`
	TotalSeats  int       `db:"total_seats"`
	BookedSeats int       `db:"booked_seats"`
	StoredSeats int       `db:"stored_seats"`
}

// ScheduleRequest is used to create or update a schedule
type ScheduleRequest struct {
	BusID         uuid.UUID `json:"bus_id" binding:"required"`
	RouteID       uuid.UUID `json:"route_id" binding:"required"`
	DepartureTime time.Time `json:"departure_time" binding:"required"`
	ArrivalTime   time.Time `json:"arrival_time" binding:"required"`
}

// Validate validates the schedule request
func (r *ScheduleRequest) Validate() error {
	if r.BusID == uuid.Nil {
		return NewValidationError("bus_id", "is required")
	}
	if r.RouteID == uuid.Nil {
		return NewValidationError("route_id", "is required")
	}
	if r.DepartureTime.IsZero() || r.ArrivalTime.IsZero() {
		return NewValidationError("departure_time", "departure and arrival times are required")
	}
	if !r.ArrivalTime.After(r.DepartureTime) {
		return NewValidationError("arrival_time", "must be after departure_time")
	}
	return nil
}

// ScheduleSearch filters schedules by route endpoints and travel date
type ScheduleSearch struct {
	StartingPlace    string
	DestinationPlace string
	Date             *time.Time
}
