package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event topics
const (
	TopicBookingCompleted = "booking.completed"
	TopicBookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking reaches a terminal state
type BookingEvent struct {
	BookingID        uuid.UUID        `json:"booking_id"`
	Status           BookingStatus    `json:"status"`
	Passenger        Passenger        `json:"passenger"`
	SeatCount        int              `json:"seat_count"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	RefundAmount     *decimal.Decimal `json:"refund_amount,omitempty"`
	PaymentCode      string           `json:"payment_code,omitempty"`
	BusNumber        string           `json:"bus_number"`
	StartingPlace    string           `json:"starting_place"`
	DestinationPlace string           `json:"destination_place"`
	DepartureTime    time.Time        `json:"departure_time"`
	OccurredAt       time.Time        `json:"occurred_at"`
}

// NewBookingEvent copies the fields notifications need out of a booking detail
func NewBookingEvent(d *BookingDetail, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:        d.ID,
		Status:           d.Status,
		Passenger:        d.Passenger,
		SeatCount:        d.SeatCount,
		TotalAmount:      d.TotalAmount,
		BusNumber:        d.BusNumber,
		StartingPlace:    d.StartingPlace,
		DestinationPlace: d.DestinationPlace,
		DepartureTime:    d.DepartureTime,
		OccurredAt:       at,
	}
}
