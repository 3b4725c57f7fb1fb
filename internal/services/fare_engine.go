package services

import (
	"github.com/shopspring/decimal"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// Age brackets of the fare policy
const (
	FreeUnderAge  = 5  // younger passengers travel free
	ChildMaxAge   = 12 // 5..12 pay the child share
	SeniorFromAge = 51 // older than 50 pay the senior share
)

var (
	childFactor = decimal.NewFromFloat(0.5)
	one         = decimal.NewFromInt(1)
)

// FarePolicy holds the bus-type multipliers and the senior factor
type FarePolicy struct {
	Multipliers  map[int]decimal.Decimal
	SeniorFactor decimal.Decimal
}

// DefaultFarePolicy returns the standard multipliers with seniors paying 70%
func DefaultFarePolicy() FarePolicy {
	return NewFarePolicy(0.7)
}

// NewFarePolicy returns the standard multipliers with the given senior factor
func NewFarePolicy(seniorFactor float64) FarePolicy {
	return FarePolicy{
		Multipliers: map[int]decimal.Decimal{
			1: decimal.NewFromFloat(1.0),
			2: decimal.NewFromFloat(1.1),
			3: decimal.NewFromFloat(1.2),
			4: decimal.NewFromFloat(1.3),
		},
		SeniorFactor: decimal.NewFromFloat(seniorFactor),
	}
}

// Multiplier returns the factor of a bus type; unknown types get 1.0
func (p FarePolicy) Multiplier(busTypeID int) decimal.Decimal {
	if m, ok := p.Multipliers[busTypeID]; ok {
		return m
	}
	return one
}

// DiscountFactor returns the share of the per-seat price paid at the given age
func (p FarePolicy) DiscountFactor(age int) decimal.Decimal {
	switch {
	case age < FreeUnderAge:
		return decimal.Zero
	case age <= ChildMaxAge:
		return childFactor
	case age >= SeniorFromAge:
		return p.SeniorFactor
	default:
		return one
	}
}

// SchedulePrice is the per-seat adult price of a route on a bus type
func (p FarePolicy) SchedulePrice(base decimal.Decimal, busTypeID int) decimal.Decimal {
	return base.Mul(p.Multiplier(busTypeID)).Round(2)
}

// ComputeFare prices seatCount seats for one passenger. It never fails:
// a non-positive seat count yields a zero total.
func (p FarePolicy) ComputeFare(base decimal.Decimal, busTypeID, age, seatCount int) models.Fare {
	multiplier := p.Multiplier(busTypeID)
	discount := p.DiscountFactor(age)
	perSeat := base.Mul(multiplier).Mul(discount).Round(2)

	seats := seatCount
	if seats < 0 {
		seats = 0
	}

	return models.Fare{
		BasePrice:      base,
		BusTypeID:      busTypeID,
		Multiplier:     multiplier,
		PassengerAge:   age,
		DiscountFactor: discount,
		PerSeat:        perSeat,
		SeatCount:      seats,
		Total:          perSeat.Mul(decimal.NewFromInt(int64(seats))).Round(2),
	}
}

// ApplyDiscount prices seats whose multiplier is already part of perSeatPrice,
// as with a schedule's stored price
func (p FarePolicy) ApplyDiscount(perSeatPrice decimal.Decimal, busTypeID, age, seatCount int) models.Fare {
	fare := p.ComputeFare(perSeatPrice, 0, age, seatCount)
	fare.BusTypeID = busTypeID
	fare.Multiplier = one
	return fare
}

// ComputeFare prices seats under the default policy
func ComputeFare(base decimal.Decimal, busTypeID, age, seatCount int) models.Fare {
	return DefaultFarePolicy().ComputeFare(base, busTypeID, age, seatCount)
}
