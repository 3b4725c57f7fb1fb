package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// PriceListRepository handles database operations for price_lists table
type PriceListRepository struct {
	db DB
}

// NewPriceListRepository creates a new PriceListRepository
func NewPriceListRepository(db DB) *PriceListRepository {
	return &PriceListRepository{db: db}
}

// Upsert stores the price of a route on a bus type, replacing any previous price
func (r *PriceListRepository) Upsert(p *models.PriceList) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO price_lists (id, route_id, bus_type_id, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (route_id, bus_type_id) DO UPDATE SET price = EXCLUDED.price
		RETURNING id, created_at
	`
	if err := r.db.QueryRow(query, p.ID, p.RouteID, p.BusTypeID, p.Price).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("failed to save price list: %w", mapWriteError(err, "price_list"))
	}
	return nil
}

// List returns price lists, optionally for one route
func (r *PriceListRepository) List(routeID *uuid.UUID) ([]models.PriceList, error) {
	query := `SELECT id, route_id, bus_type_id, price, created_at FROM price_lists`
	var args []interface{}
	if routeID != nil {
		query += ` WHERE route_id = $1`
		args = append(args, *routeID)
	}
	query += ` ORDER BY route_id, bus_type_id`

	var lists []models.PriceList
	if err := r.db.Select(&lists, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list price lists: %w", err)
	}
	return lists, nil
}

// Delete removes a price list entry
func (r *PriceListRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM price_lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete price list: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.NewNotFound("price_list", id)
	}
	return nil
}
