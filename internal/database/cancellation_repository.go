package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// CancellationRepository handles database operations for cancellations table
type CancellationRepository struct {
	db DB
}

// NewCancellationRepository creates a new CancellationRepository
func NewCancellationRepository(db DB) *CancellationRepository {
	return &CancellationRepository{db: db}
}

const cancellationColumns = `id, booking_id, refund_amount, refund_percent, reason, refunded, cancelled_at`

// Create inserts a cancellation record
func (r *CancellationRepository) Create(q Queryer, c *models.Cancellation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := q.Exec(`
		INSERT INTO cancellations (id, booking_id, refund_amount, refund_percent, reason, refunded, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.BookingID, c.RefundAmount, c.RefundPercent, c.Reason, c.Refunded, c.CancelledAt)
	if err != nil {
		return fmt.Errorf("failed to create cancellation: %w", mapWriteError(err, "cancellation"))
	}
	return nil
}

// GetByID retrieves a cancellation by ID
func (r *CancellationRepository) GetByID(id uuid.UUID) (*models.Cancellation, error) {
	var c models.Cancellation
	err := r.db.Get(&c, `SELECT `+cancellationColumns+` FROM cancellations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFound("cancellation", id)
		}
		return nil, fmt.Errorf("failed to get cancellation: %w", err)
	}
	return &c, nil
}

// List returns cancellations newest first; userID restricts to one customer's bookings
func (r *CancellationRepository) List(req models.PageRequest, userID *uuid.UUID) ([]models.Cancellation, int, error) {
	where := ""
	var args []interface{}
	if userID != nil {
		args = append(args, *userID)
		where = ` WHERE c.booking_id IN (SELECT id FROM bookings WHERE user_id = $1)`
	}

	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM cancellations c`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count cancellations: %w", err)
	}

	limit, args := limitClause(req, args)
	var cancellations []models.Cancellation
	query := `
		SELECT c.id, c.booking_id, c.refund_amount, c.refund_percent, c.reason, c.refunded, c.cancelled_at
		FROM cancellations c` + where + ` ORDER BY c.cancelled_at DESC, c.id` + limit
	if err := r.db.Select(&cancellations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list cancellations: %w", err)
	}
	return cancellations, total, nil
}
