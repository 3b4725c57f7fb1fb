package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cancellation records the refund granted when a booking was cancelled.
// RefundAmount is what the refund window grants; Refunded is set only when a
// captured payment was returned through the gateway.
type Cancellation struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	BookingID     uuid.UUID       `json:"booking_id" db:"booking_id"`
	RefundAmount  decimal.Decimal `json:"refund_amount" db:"refund_amount"`
	RefundPercent int             `json:"refund_percent" db:"refund_percent"`
	Reason        *string         `json:"reason,omitempty" db:"reason"`
	Refunded      bool            `json:"refunded" db:"refunded"`
	CancelledAt   time.Time       `json:"cancelled_at" db:"cancelled_at"`
}

// CancelBookingRequest represents the request to cancel a booking
type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// Refund window boundaries
const (
	FullRefundHours    = 24
	FullRefundPercent  = 100
	LateRefundPercent  = 50
	AfterDepartPercent = 0
)

// RefundPercent returns the share of the fare refunded for a cancellation
// made the given number of hours before departure.
//
//	>= 24h        100%
//	0h .. < 24h    50%
//	departed        0%
func RefundPercent(hoursToDeparture float64) int {
	switch {
	case hoursToDeparture >= FullRefundHours:
		return FullRefundPercent
	case hoursToDeparture >= 0:
		return LateRefundPercent
	default:
		return AfterDepartPercent
	}
}

// CalculateRefund applies the refund window to a booking total
func CalculateRefund(total decimal.Decimal, hoursToDeparture float64) (decimal.Decimal, int) {
	percent := RefundPercent(hoursToDeparture)
	amount := total.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100)).Round(2)
	return amount, percent
}
