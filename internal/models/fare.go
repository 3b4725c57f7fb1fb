package models

import "github.com/shopspring/decimal"

// Fare is the price breakdown of a booking
type Fare struct {
	BasePrice      decimal.Decimal `json:"base_price"`
	BusTypeID      int             `json:"bus_type_id"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	PassengerAge   int             `json:"passenger_age"`
	DiscountFactor decimal.Decimal `json:"discount_factor"`
	PerSeat        decimal.Decimal `json:"per_seat"`
	SeatCount      int             `json:"seat_count"`
	Total          decimal.Decimal `json:"total"`
}
