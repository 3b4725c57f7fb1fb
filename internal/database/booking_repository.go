package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// BookingRepository handles database operations for bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, schedule_id, user_id, passenger_name, passenger_age,
	passenger_phone, passenger_email, seat_count, fare_per_seat, total_amount,
	status, version, created_at, updated_at`

const bookingDetailSelect = `
	SELECT bk.id, bk.schedule_id, bk.user_id, bk.passenger_name, bk.passenger_age,
		   bk.passenger_phone, bk.passenger_email, bk.seat_count, bk.fare_per_seat,
		   bk.total_amount, bk.status, bk.version, bk.created_at, bk.updated_at,
		   b.bus_number, b.bus_type_id, bt.type_name AS bus_type_name,
		   s.departure_time, s.arrival_time, s.price AS schedule_price,
		   r.starting_place, r.destination_place, r.distance
	FROM bookings bk
	JOIN schedules s ON s.id = bk.schedule_id
	JOIN buses b ON b.id = s.bus_id
	JOIN bus_types bt ON bt.id = b.bus_type_id
	JOIN routes r ON r.id = s.route_id`

// Create inserts a booking
func (r *BookingRepository) Create(q Queryer, b *models.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Version == 0 {
		b.Version = 1
	}

	query := `
		INSERT INTO bookings (
			id, schedule_id, user_id, passenger_name, passenger_age,
			passenger_phone, passenger_email, seat_count, fare_per_seat,
			total_amount, status, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := q.QueryRow(query,
		b.ID, b.ScheduleID, b.UserID, b.Name, b.Age,
		b.Phone, b.Email, b.SeatCount, b.FarePerSeat,
		b.TotalAmount, b.Status, b.Version,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapWriteError(err, "booking"))
	}
	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(q Queryer, id uuid.UUID) (*models.Booking, error) {
	return r.get(q, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// GetForUpdate retrieves a booking and locks its row until the transaction ends
func (r *BookingRepository) GetForUpdate(q Queryer, id uuid.UUID) (*models.Booking, error) {
	return r.get(q, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

// GetByPaymentCodeForUpdate locks the booking a payment code belongs to.
// Callbacks lock the booking before the payment, matching cancel and update.
func (r *BookingRepository) GetByPaymentCodeForUpdate(q Queryer, code string) (*models.Booking, error) {
	var b models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE id = (SELECT booking_id FROM payments WHERE payment_code = $1)
		FOR UPDATE`
	if err := q.Get(&b, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "payment", ID: code}
		}
		return nil, fmt.Errorf("failed to get booking for payment: %w", err)
	}
	return &b, nil
}

func (r *BookingRepository) get(q Queryer, query string, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := q.Get(&b, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.BookingNotFound(id)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// GetDetail retrieves a booking with its trip, bus and route
func (r *BookingRepository) GetDetail(id uuid.UUID) (*models.BookingDetail, error) {
	var d models.BookingDetail
	if err := r.db.Get(&d, bookingDetailSelect+` WHERE bk.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.BookingNotFound(id)
		}
		return nil, fmt.Errorf("failed to get booking detail: %w", err)
	}
	return &d, nil
}

// Update rewrites schedule, passenger, seats and fare of a Booked booking.
// The stored version must equal b.Version; on success b.Version is bumped.
func (r *BookingRepository) Update(q Queryer, b *models.Booking) error {
	query := `
		UPDATE bookings
		SET schedule_id = $2, passenger_name = $3, passenger_age = $4,
			passenger_phone = $5, passenger_email = $6, seat_count = $7,
			fare_per_seat = $8, total_amount = $9,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $10 AND status = 'Booked'
		RETURNING version, updated_at
	`
	err := q.QueryRow(query,
		b.ID, b.ScheduleID, b.Name, b.Age, b.Phone, b.Email, b.SeatCount,
		b.FarePerSeat, b.TotalAmount, b.Version,
	).Scan(&b.Version, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrConcurrencyConflict("booking")
		}
		return fmt.Errorf("failed to update booking: %w", mapWriteError(err, "booking"))
	}
	return nil
}

// TransitionStatus moves a booking from one status to another. It reports
// false when the booking was not in the expected status.
func (r *BookingRepository) TransitionStatus(q Queryer, id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	result, err := q.Exec(`
		UPDATE bookings
		SET status = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// List returns bookings newest first; userID restricts to one customer
func (r *BookingRepository) List(req models.PageRequest, userID *uuid.UUID) ([]models.BookingDetail, int, error) {
	return r.Search("", req, userID)
}

// Search matches passenger name, email or phone, route endpoints and bus number
func (r *BookingRepository) Search(term string, req models.PageRequest, userID *uuid.UUID) ([]models.BookingDetail, int, error) {
	var conditions []string
	var args []interface{}

	if userID != nil {
		args = append(args, *userID)
		conditions = append(conditions, fmt.Sprintf("bk.user_id = $%d", len(args)))
	}
	if strings.TrimSpace(term) != "" {
		args = append(args, likePattern(term))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(bk.passenger_name ILIKE $%[1]d OR bk.passenger_email ILIKE $%[1]d OR bk.passenger_phone ILIKE $%[1]d"+
				" OR r.starting_place ILIKE $%[1]d OR r.destination_place ILIKE $%[1]d OR b.bus_number ILIKE $%[1]d)", n))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM bookings bk
		JOIN schedules s ON s.id = bk.schedule_id
		JOIN buses b ON b.id = s.bus_id
		JOIN routes r ON r.id = s.route_id` + where
	if err := r.db.Get(&total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	limit, args := limitClause(req, args)
	var bookings []models.BookingDetail
	query := bookingDetailSelect + where + ` ORDER BY bk.created_at DESC, bk.id` + limit
	if err := r.db.Select(&bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return bookings, total, nil
}

// DeleteCancelled hard-deletes a cancelled booking with its cancellation and payments
func (r *BookingRepository) DeleteCancelled(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM bookings WHERE id = $1 AND status = 'Cancelled'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(r.db, id); err != nil {
			return err
		}
		return &models.ConflictError{Resource: "booking", Message: "only cancelled bookings can be deleted"}
	}
	return nil
}
