package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// PaymentRepository handles database operations for payments table
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, amount, method, status, payment_code,
	gateway_transaction_no, created_at, updated_at`

// Create inserts a pending payment; a clashing payment code yields a ConflictError
func (r *PaymentRepository) Create(p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO payments (id, booking_id, amount, method, status, payment_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(query,
		p.ID, p.BookingID, p.Amount, p.Method, p.Status, p.PaymentCode,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", mapWriteError(err, "payment"))
	}
	return nil
}

// CodeExists checks whether a payment code is taken
func (r *PaymentRepository) CodeExists(code string) (bool, error) {
	var exists bool
	if err := r.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM payments WHERE payment_code = $1)`, code); err != nil {
		return false, fmt.Errorf("failed to check payment code: %w", err)
	}
	return exists, nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Get(&p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.PaymentNotFound(id)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// GetByCodeForUpdate locks the payment carrying the gateway order reference
func (r *PaymentRepository) GetByCodeForUpdate(q Queryer, code string) (*models.Payment, error) {
	var p models.Payment
	err := q.Get(&p, `SELECT `+paymentColumns+` FROM payments WHERE payment_code = $1 FOR UPDATE`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "payment", ID: code}
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// CompletedForBooking returns the most recent settled payment of a booking, or nil
func (r *PaymentRepository) CompletedForBooking(q Queryer, bookingID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE booking_id = $1 AND status = 'Completed'
		ORDER BY created_at DESC LIMIT 1`
	if err := q.Get(&p, query, bookingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get completed payment: %w", err)
	}
	return &p, nil
}

// VoidPending voids every Pending payment of a booking and returns how many
// it touched
func (r *PaymentRepository) VoidPending(q Queryer, bookingID uuid.UUID) (int64, error) {
	result, err := q.Exec(`
		UPDATE payments SET status = 'Voided', updated_at = NOW()
		WHERE booking_id = $1 AND status = 'Pending'
	`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to void pending payments: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// UpdateStatus moves a payment from one status to another. A payment no longer
// in the from status yields a ConcurrencyConflict.
func (r *PaymentRepository) UpdateStatus(q Queryer, id uuid.UUID, from, to models.PaymentStatus, transactionNo *string) error {
	result, err := q.Exec(`
		UPDATE payments
		SET status = $2, gateway_transaction_no = COALESCE($3, gateway_transaction_no), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, to, transactionNo, from)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrConcurrencyConflict("payment")
	}
	return nil
}

// List returns payments newest first; userID restricts to one customer's bookings
func (r *PaymentRepository) List(req models.PageRequest, userID *uuid.UUID) ([]models.Payment, int, error) {
	where := ""
	var args []interface{}
	if userID != nil {
		args = append(args, *userID)
		where = ` WHERE booking_id IN (SELECT id FROM bookings WHERE user_id = $1)`
	}

	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM payments`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	limit, args := limitClause(req, args)
	var payments []models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments` + where + ` ORDER BY created_at DESC, id` + limit
	if err := r.db.Select(&payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, total, nil
}

// ListStalePending returns Pending payments created before the cutoff
func (r *PaymentRepository) ListStalePending(before time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = 'Pending' AND created_at < $1 ORDER BY created_at`
	if err := r.db.Select(&payments, query, before); err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return payments, nil
}
