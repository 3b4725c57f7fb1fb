package database

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

const paymentAuditColumns = `id, payment_code, booking_id, event_type, event_source,
	expected_amount, received_amount, amounts_match, payment_status, response_code,
	transaction_no, payload, error_message, ip_address, created_at`

// PaymentAuditRepository keeps the append-only trail of gateway interactions
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends an audit entry
func (r *PaymentAuditRepository) Log(audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}

	query := `
		INSERT INTO payment_audits (` + paymentAuditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(query,
		audit.ID, audit.PaymentCode, audit.BookingID, audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.AmountsMatch, audit.PaymentStatus, audit.ResponseCode,
		audit.TransactionNo, audit.Payload, audit.ErrorMessage, audit.IPAddress, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"payment_code": audit.PaymentCode,
		}).Error("Failed to write payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}
	return nil
}

// ListByPaymentCode returns the trail of one payment, oldest first
func (r *PaymentAuditRepository) ListByPaymentCode(code string) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `SELECT ` + paymentAuditColumns + ` FROM payment_audits WHERE payment_code = $1 ORDER BY created_at ASC`
	if err := r.db.Select(&audits, query, code); err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}

// AmountMismatches returns the latest callbacks whose amount disagreed with the payment
func (r *PaymentAuditRepository) AmountMismatches(limit int) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `SELECT ` + paymentAuditColumns + ` FROM payment_audits WHERE amounts_match = FALSE ORDER BY created_at DESC LIMIT $1`
	if err := r.db.Select(&audits, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list amount mismatches: %w", err)
	}
	return audits, nil
}
