package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
	// Voided payments were still Pending when their booking was cancelled or
	// repriced; a later success callback for one is refunded.
	PaymentStatusVoided   PaymentStatus = "Voided"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

// Payment is one attempt to pay a booking through the gateway
type Payment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	BookingID     uuid.UUID       `json:"booking_id" db:"booking_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Method        string          `json:"method" db:"method"`
	Status        PaymentStatus   `json:"status" db:"status"`
	PaymentCode   string          `json:"payment_code" db:"payment_code"`
	TransactionNo *string         `json:"transaction_no,omitempty" db:"gateway_transaction_no"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// CreatePaymentRequest starts a gateway payment for a booking
type CreatePaymentRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Method    string    `json:"method"`
	BankCode  string    `json:"bank_code,omitempty"`
}

// Validate validates the create payment request
func (r *CreatePaymentRequest) Validate() error {
	if r.BookingID == uuid.Nil {
		return NewValidationError("booking_id", "is required")
	}
	r.Method = strings.TrimSpace(r.Method)
	if r.Method == "" {
		r.Method = "VNPay"
	}
	return nil
}

// CreatePaymentResponse carries the redirect for the customer
type CreatePaymentResponse struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	PaymentCode string          `json:"payment_code"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentURL  string          `json:"payment_url"`
}

// Messages set on PaymentResult for callbacks that did not settle a payment
const (
	PaymentMessageAlreadyProcessed = "payment already processed"
	PaymentMessageAmountMismatch   = "amount mismatch"
	PaymentMessageRefunded         = "payment refunded, booking is no longer payable"
)

// PaymentResult is the outcome of a gateway callback
type PaymentResult struct {
	PaymentCode   string          `json:"payment_code"`
	BookingID     uuid.UUID       `json:"booking_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
	BookingStatus BookingStatus   `json:"booking_status"`
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
}
