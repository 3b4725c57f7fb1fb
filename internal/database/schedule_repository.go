package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// ScheduleRepository handles database operations for schedules and the
// seat bookkeeping that hangs off them
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, bus_id, route_id, departure_time, arrival_time,
	available_seats, price, created_at, updated_at`

const scheduleDetailSelect = `
	SELECT s.id, s.bus_id, s.route_id, s.departure_time, s.arrival_time,
		   s.available_seats, s.price, s.created_at, s.updated_at,
		   b.bus_number, b.bus_type_id, bt.type_name AS bus_type_name, b.total_seats,
		   r.starting_place, r.destination_place, r.distance, r.base_price AS route_base_price
	FROM schedules s
	JOIN buses b ON b.id = s.bus_id
	JOIN bus_types bt ON bt.id = b.bus_type_id
	JOIN routes r ON r.id = s.route_id`

// activeSeatsSubquery sums seats held by Booked and Completed bookings of s.id
const activeSeatsSubquery = `(
		SELECT COALESCE(SUM(bk.seat_count), 0) FROM bookings bk
		WHERE bk.schedule_id = s.id AND bk.status IN ('Booked', 'Completed'))`

// Create inserts a schedule
func (r *ScheduleRepository) Create(q Queryer, s *models.Schedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	query := `
		INSERT INTO schedules (id, bus_id, route_id, departure_time, arrival_time, available_seats, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := q.QueryRow(query,
		s.ID, s.BusID, s.RouteID, s.DepartureTime, s.ArrivalTime, s.AvailableSeats, s.Price,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", mapWriteError(err, "schedule"))
	}
	return nil
}

// GetByID retrieves a schedule by ID
func (r *ScheduleRepository) GetByID(id uuid.UUID) (*models.Schedule, error) {
	var s models.Schedule
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	if err := r.db.Get(&s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ScheduleNotFound(id)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &s, nil
}

// GetDetail retrieves a schedule joined with bus, bus type and route
func (r *ScheduleRepository) GetDetail(id uuid.UUID) (*models.ScheduleDetail, error) {
	return r.GetDetailWith(r.db, id)
}

// GetDetailWith is GetDetail on a caller-provided connection or transaction
func (r *ScheduleRepository) GetDetailWith(q Queryer, id uuid.UUID) (*models.ScheduleDetail, error) {
	var d models.ScheduleDetail
	if err := q.Get(&d, scheduleDetailSelect+` WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ScheduleNotFound(id)
		}
		return nil, fmt.Errorf("failed to get schedule detail: %w", err)
	}
	return &d, nil
}

// List returns schedules ordered by departure time
func (r *ScheduleRepository) List(req models.PageRequest) ([]models.ScheduleDetail, int, error) {
	return r.Search(models.ScheduleSearch{}, req)
}

// Search filters schedules by route endpoints (substring, case-insensitive)
// and optional departure date
func (r *ScheduleRepository) Search(filter models.ScheduleSearch, req models.PageRequest) ([]models.ScheduleDetail, int, error) {
	var conditions []string
	var args []interface{}

	if strings.TrimSpace(filter.StartingPlace) != "" {
		args = append(args, likePattern(filter.StartingPlace))
		conditions = append(conditions, fmt.Sprintf("r.starting_place ILIKE $%d", len(args)))
	}
	if strings.TrimSpace(filter.DestinationPlace) != "" {
		args = append(args, likePattern(filter.DestinationPlace))
		conditions = append(conditions, fmt.Sprintf("r.destination_place ILIKE $%d", len(args)))
	}
	if filter.Date != nil {
		args = append(args, filter.Date.Format("2006-01-02"))
		conditions = append(conditions, fmt.Sprintf("s.departure_time::date = $%d::date", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM schedules s JOIN routes r ON r.id = s.route_id` + where
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count schedules: %w", err)
	}

	limit, args := limitClause(req, args)
	var schedules []models.ScheduleDetail
	query := scheduleDetailSelect + where + ` ORDER BY s.departure_time, s.id` + limit
	if err := r.db.Select(&schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list schedules: %w", err)
	}

	return schedules, total, nil
}

// Update changes bus, route, times and price of a schedule
func (r *ScheduleRepository) Update(q Queryer, s *models.Schedule) error {
	query := `
		UPDATE schedules
		SET bus_id = $2, route_id = $3, departure_time = $4, arrival_time = $5,
			price = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := q.QueryRow(query, s.ID, s.BusID, s.RouteID, s.DepartureTime, s.ArrivalTime, s.Price).Scan(&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ScheduleNotFound(s.ID)
		}
		return fmt.Errorf("failed to update schedule: %w", mapWriteError(err, "schedule"))
	}
	return nil
}

// Delete removes a schedule; schedules with bookings are protected by the foreign key
func (r *ScheduleRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", mapWriteError(err, "schedule"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ScheduleNotFound(id)
	}
	return nil
}

// ============================================================================
// SEAT BOOKKEEPING
// ============================================================================

// LockForSeats reads the schedule row FOR UPDATE so concurrent reservations
// on the same trip serialize behind it
func (r *ScheduleRepository) LockForSeats(q Queryer, id uuid.UUID) (*models.SeatLock, error) {
	var lock models.SeatLock
	query := `
		SELECT s.id, s.departure_time, s.available_seats, b.total_seats
		FROM schedules s
		JOIN buses b ON b.id = s.bus_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`
	if err := q.Get(&lock, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ScheduleNotFound(id)
		}
		return nil, fmt.Errorf("failed to lock schedule: %w", err)
	}
	return &lock, nil
}

// ActiveSeats sums seats of Booked and Completed bookings, skipping excludeBookingID
func (r *ScheduleRepository) ActiveSeats(q Queryer, scheduleID, excludeBookingID uuid.UUID) (int, error) {
	var seats int
	query := `
		SELECT COALESCE(SUM(seat_count), 0)
		FROM bookings
		WHERE schedule_id = $1
		  AND status IN ('Booked', 'Completed')
		  AND id <> $2
	`
	if err := q.Get(&seats, query, scheduleID, excludeBookingID); err != nil {
		return 0, fmt.Errorf("failed to sum booked seats: %w", err)
	}
	return seats, nil
}

// SetAvailableSeats overwrites the denormalized counter
func (r *ScheduleRepository) SetAvailableSeats(q Queryer, id uuid.UUID, seats int) error {
	_, err := q.Exec(`UPDATE schedules SET available_seats = $2, updated_at = NOW() WHERE id = $1`, id, seats)
	if err != nil {
		return fmt.Errorf("failed to update available seats: %w", err)
	}
	return nil
}

// ReconcileAvailableSeats rewrites every drifted counter from booking rows and
// returns how many schedules were corrected
func (r *ScheduleRepository) ReconcileAvailableSeats() (int64, error) {
	query := `
		UPDATE schedules s
		SET available_seats = GREATEST(0, b.total_seats - ` + activeSeatsSubquery + `),
			updated_at = NOW()
		FROM buses b
		WHERE b.id = s.bus_id
		  AND s.available_seats <> GREATEST(0, b.total_seats - ` + activeSeatsSubquery + `)
	`
	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile available seats: %w", err)
	}
	return result.RowsAffected()
}

// DriftedSchedules lists schedules whose stored counter disagrees with their bookings
func (r *ScheduleRepository) DriftedSchedules() ([]models.SeatDrift, error) {
	query := `
		SELECT x.schedule_id, x.total_seats, x.booked_seats, x.stored_seats
		FROM (
			SELECT s.id AS schedule_id, b.total_seats, s.available_seats AS stored_seats,
				   ` + activeSeatsSubquery + ` AS booked_seats
			FROM schedules s
			JOIN buses b ON b.id = s.bus_id
		) x
		WHERE x.stored_seats <> GREATEST(0, x.total_seats - x.booked_seats)
		ORDER BY x.schedule_id
	`
	var drifted []models.SeatDrift
	if err := r.db.Select(&drifted, query); err != nil {
		return nil, fmt.Errorf("failed to find drifted schedules: %w", err)
	}
	return drifted, nil
}

// Availability derives seat counts of one schedule from its bookings
func (r *ScheduleRepository) Availability(id uuid.UUID) (*models.Availability, error) {
	var a models.Availability
	query := `
		SELECT x.schedule_id, x.total_seats, x.booked_seats,
			   GREATEST(0, x.total_seats - x.booked_seats) AS available_seats
		FROM (
			SELECT s.id AS schedule_id, b.total_seats, ` + activeSeatsSubquery + ` AS booked_seats
			FROM schedules s
			JOIN buses b ON b.id = s.bus_id
			WHERE s.id = $1
		) x
	`
	if err := r.db.Get(&a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ScheduleNotFound(id)
		}
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	return &a, nil
}
