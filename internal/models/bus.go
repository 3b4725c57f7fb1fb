package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BusType is a comfort tier; its ID selects the fare multiplier
type BusType struct {
	ID          int     `json:"id" db:"id"`
	TypeName    string  `json:"type_name" db:"type_name"`
	Description *string `json:"description,omitempty" db:"description"`
}

// BusTypeRequest is used to create or update a bus type
type BusTypeRequest struct {
	ID          int     `json:"id"`
	TypeName    string  `json:"type_name" binding:"required"`
	Description *string `json:"description,omitempty"`
}

// Validate validates the bus type request
func (r *BusTypeRequest) Validate() error {
	r.TypeName = strings.TrimSpace(r.TypeName)
	if r.TypeName == "" {
		return NewValidationError("type_name", "is required")
	}
	if r.ID < 0 {
		return NewValidationError("id", "must not be negative")
	}
	return nil
}

// Bus represents a physical bus
type Bus struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BusNumber   string    `json:"bus_number" db:"bus_number"`
	BusTypeID   int       `json:"bus_type_id" db:"bus_type_id"`
	BusTypeName string    `json:"bus_type_name,omitempty" db:"bus_type_name"`
	TotalSeats  int       `json:"total_seats" db:"total_seats"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BusRequest is used to create or update a bus
type BusRequest struct {
	BusNumber  string  `json:"bus_number" binding:"required"`
	BusTypeID  int     `json:"bus_type_id" binding:"required"`
	TotalSeats int     `json:"total_seats" binding:"required,min=1"`
	ImageURL   *string `json:"image_url,omitempty"`
}

// Validate validates the bus request
func (r *BusRequest) Validate() error {
	r.BusNumber = strings.ToUpper(strings.TrimSpace(r.BusNumber))
	if r.BusNumber == "" {
		return NewValidationError("bus_number", "is required")
	}
	if len(r.BusNumber) > 20 {
		return NewValidationError("bus_number", "must be at most 20 characters")
	}
	if r.BusTypeID <= 0 {
		return NewValidationError("bus_type_id", "is required")
	}
	if r.TotalSeats <= 0 || r.TotalSeats > 100 {
		return NewValidationError("total_seats", "must be between 1 and 100")
	}
	return nil
}
