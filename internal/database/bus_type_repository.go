package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// BusTypeRepository handles database operations for bus_types table
type BusTypeRepository struct {
	db DB
}

// NewBusTypeRepository creates a new BusTypeRepository
func NewBusTypeRepository(db DB) *BusTypeRepository {
	return &BusTypeRepository{db: db}
}

// Create inserts a bus type. A zero ID takes the next tier number.
func (r *BusTypeRepository) Create(bt *models.BusType) error {
	query := `
		INSERT INTO bus_types (id, type_name, description)
		VALUES (COALESCE(NULLIF($1, 0), (SELECT COALESCE(MAX(id), 0) + 1 FROM bus_types)), $2, $3)
		RETURNING id
	`
	if err := r.db.QueryRow(query, bt.ID, bt.TypeName, bt.Description).Scan(&bt.ID); err != nil {
		return fmt.Errorf("failed to create bus type: %w", mapWriteError(err, "bus_type"))
	}
	return nil
}

// GetByID retrieves a bus type by ID
func (r *BusTypeRepository) GetByID(id int) (*models.BusType, error) {
	var bt models.BusType
	if err := r.db.Get(&bt, `SELECT id, type_name, description FROM bus_types WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.BusTypeNotFound(id)
		}
		return nil, fmt.Errorf("failed to get bus type: %w", err)
	}
	return &bt, nil
}

// List returns all bus types by tier
func (r *BusTypeRepository) List() ([]models.BusType, error) {
	var types []models.BusType
	if err := r.db.Select(&types, `SELECT id, type_name, description FROM bus_types ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list bus types: %w", err)
	}
	return types, nil
}

// Update renames or redescribes a bus type
func (r *BusTypeRepository) Update(bt *models.BusType) error {
	result, err := r.db.Exec(`UPDATE bus_types SET type_name = $2, description = $3 WHERE id = $1`,
		bt.ID, bt.TypeName, bt.Description)
	if err != nil {
		return fmt.Errorf("failed to update bus type: %w", mapWriteError(err, "bus_type"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.BusTypeNotFound(bt.ID)
	}
	return nil
}

// Delete removes a bus type not used by any bus
func (r *BusTypeRepository) Delete(id int) error {
	result, err := r.db.Exec(`DELETE FROM bus_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bus type: %w", mapWriteError(err, "bus_type"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.BusTypeNotFound(id)
	}
	return nil
}
