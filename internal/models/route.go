package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Route connects two places and carries the base fare
type Route struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	StartingPlace    string          `json:"starting_place" db:"starting_place"`
	DestinationPlace string          `json:"destination_place" db:"destination_place"`
	Distance         decimal.Decimal `json:"distance" db:"distance"`
	BasePrice        decimal.Decimal `json:"base_price" db:"base_price"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// RouteRequest is used to create or update a route
type RouteRequest struct {
	StartingPlace    string          `json:"starting_place" binding:"required"`
	DestinationPlace string          `json:"destination_place" binding:"required"`
	Distance         decimal.Decimal `json:"distance"`
	BasePrice        decimal.Decimal `json:"base_price"`
}

// Validate validates the route request
func (r *RouteRequest) Validate() error {
	r.StartingPlace = strings.TrimSpace(r.StartingPlace)
	r.DestinationPlace = strings.TrimSpace(r.DestinationPlace)
	if r.StartingPlace == "" {
		return NewValidationError("starting_place", "is required")
	}
	if r.DestinationPlace == "" {
		return NewValidationError("destination_place", "is required")
	}
	if strings.EqualFold(r.StartingPlace, r.DestinationPlace) {
		return NewValidationError("destination_place", "must differ from starting_place")
	}
	if r.Distance.IsNegative() {
		return NewValidationError("distance", "must not be negative")
	}
	if !r.BasePrice.IsPositive() {
		return NewValidationError("base_price", "must be greater than zero")
	}
	return nil
}

// PriceList stores the per-seat price of a route for one bus type
type PriceList struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	RouteID   uuid.UUID       `json:"route_id" db:"route_id"`
	BusTypeID int             `json:"bus_type_id" db:"bus_type_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// PriceListRequest asks for the price of a route on a bus type
type PriceListRequest struct {
	RouteID   uuid.UUID `json:"route_id" binding:"required"`
	BusTypeID int       `json:"bus_type_id" binding:"required"`
}
