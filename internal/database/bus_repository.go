package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// BusRepository handles database operations for buses table
type BusRepository struct {
	db DB
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db DB) *BusRepository {
	return &BusRepository{db: db}
}

const busSelect = `
	SELECT b.id, b.bus_number, b.bus_type_id, bt.type_name AS bus_type_name,
		   b.total_seats, b.image_url, b.created_at, b.updated_at
	FROM buses b
	JOIN bus_types bt ON bt.id = b.bus_type_id`

// Create inserts a bus; a duplicate bus number yields a ConflictError
func (r *BusRepository) Create(bus *models.Bus) error {
	if bus.ID == uuid.Nil {
		bus.ID = uuid.New()
	}
	query := `
		INSERT INTO buses (id, bus_number, bus_type_id, total_seats, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(query,
		bus.ID, bus.BusNumber, bus.BusTypeID, bus.TotalSeats, bus.ImageURL,
	).Scan(&bus.CreatedAt, &bus.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bus: %w", mapWriteError(err, "bus"))
	}
	return nil
}

// GetByID retrieves a bus with its type name
func (r *BusRepository) GetByID(id uuid.UUID) (*models.Bus, error) {
	return r.GetWith(r.db, id)
}

// GetWith is GetByID on a caller-provided connection or transaction
func (r *BusRepository) GetWith(q Queryer, id uuid.UUID) (*models.Bus, error) {
	var bus models.Bus
	if err := q.Get(&bus, busSelect+` WHERE b.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.BusNotFound(id)
		}
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}
	return &bus, nil
}

// List returns buses ordered by bus number
func (r *BusRepository) List(req models.PageRequest) ([]models.Bus, int, error) {
	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM buses`); err != nil {
		return nil, 0, fmt.Errorf("failed to count buses: %w", err)
	}

	limit, args := limitClause(req, nil)
	var buses []models.Bus
	if err := r.db.Select(&buses, busSelect+` ORDER BY b.bus_number, b.id`+limit, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list buses: %w", err)
	}
	return buses, total, nil
}

// MaxBookedSeats returns the largest active seat total across the bus's future schedules
func (r *BusRepository) MaxBookedSeats(id uuid.UUID) (int, error) {
	var seats int
	query := `
		SELECT COALESCE(MAX(x.booked), 0) FROM (
			SELECT SUM(bk.seat_count) AS booked
			FROM schedules s
			JOIN bookings bk ON bk.schedule_id = s.id AND bk.status IN ('Booked', 'Completed')
			WHERE s.bus_id = $1 AND s.departure_time > NOW()
			GROUP BY s.id
		) x
	`
	if err := r.db.Get(&seats, query, id); err != nil {
		return 0, fmt.Errorf("failed to get booked seats of bus: %w", err)
	}
	return seats, nil
}

// Update changes a bus
func (r *BusRepository) Update(bus *models.Bus) error {
	query := `
		UPDATE buses
		SET bus_number = $2, bus_type_id = $3, total_seats = $4, image_url = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(query,
		bus.ID, bus.BusNumber, bus.BusTypeID, bus.TotalSeats, bus.ImageURL,
	).Scan(&bus.CreatedAt, &bus.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.BusNotFound(bus.ID)
		}
		return fmt.Errorf("failed to update bus: %w", mapWriteError(err, "bus"))
	}
	return nil
}

// Delete removes a bus that has no schedules
func (r *BusRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM buses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bus: %w", mapWriteError(err, "bus"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.BusNotFound(id)
	}
	return nil
}
