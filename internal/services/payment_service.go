package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

const (
	paymentCodePrefix   = "PAY-"
	paymentCodeLength   = 6
	paymentCodeAttempts = 10
	paymentCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// PaymentService starts gateway payments and settles their callbacks
type PaymentService struct {
	db       database.DB
	payments *database.PaymentRepository
	bookings *database.BookingRepository
	booking  *BookingService
	gateway  PaymentGateway
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	db database.DB,
	payments *database.PaymentRepository,
	bookings *database.BookingRepository,
	booking *BookingService,
	gateway PaymentGateway,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		db:       db,
		payments: payments,
		bookings: bookings,
		booking:  booking,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
	}
}

// CreatePayment records a Pending payment for a Booked booking and returns
// the gateway URL the customer pays at
func (s *PaymentService) CreatePayment(req *models.CreatePaymentRequest, userID *uuid.UUID, clientIP string) (*models.CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	detail, err := s.bookings.GetDetail(req.BookingID)
	if err != nil {
		return nil, err
	}
	if userID != nil && !detail.BelongsTo(*userID) {
		return nil, models.BookingNotFound(req.BookingID)
	}
	if detail.Status != models.BookingStatusBooked {
		return nil, &models.ConflictError{Resource: "booking", Message: fmt.Sprintf("cannot pay a %s booking", detail.Status)}
	}
	if !detail.TotalAmount.IsPositive() {
		return nil, models.NewValidationError("amount", "booking has nothing to pay")
	}

	code, err := s.newPaymentCode()
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		BookingID:   detail.ID,
		Amount:      detail.TotalAmount,
		Method:      req.Method,
		Status:      models.PaymentStatusPending,
		PaymentCode: code,
	}
	if err := s.payments.Create(payment); err != nil {
		return nil, err
	}

	paymentURL, err := s.gateway.CreatePaymentURL(PaymentURLRequest{
		OrderRef:  code,
		Amount:    payment.Amount,
		OrderInfo: fmt.Sprintf("Thanh toan ve xe %s %s-%s", code, detail.StartingPlace, detail.DestinationPlace),
		ClientIP:  clientIP,
		BankCode:  req.BankCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment URL: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":   payment.ID,
		"payment_code": code,
		"booking_id":   detail.ID,
		"amount":       payment.Amount.String(),
	}).Info("Payment created")

	return &models.CreatePaymentResponse{
		PaymentID:   payment.ID,
		PaymentCode: code,
		Amount:      payment.Amount,
		PaymentURL:  paymentURL,
	}, nil
}

// HandleCallback verifies a gateway callback and settles the payment it
// names. Repeated callbacks for a settled payment change nothing. Money
// captured for a booking that can no longer take it (cancelled, repriced or
// a voided payment) is returned through the gateway.
func (s *PaymentService) HandleCallback(ctx context.Context, values url.Values) (*models.PaymentResult, error) {
	cb, err := s.gateway.ParseCallback(values)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			return nil, models.NewValidationError("vnp_SecureHash", "invalid signature")
		}
		return nil, models.NewValidationError("callback", err.Error())
	}

	var result models.PaymentResult
	var completed bool
	err = database.WithTx(s.db, func(tx *sqlx.Tx) error {
		booking, err := s.bookings.GetByPaymentCodeForUpdate(tx, cb.OrderRef)
		if err != nil {
			return err
		}
		payment, err := s.payments.GetByCodeForUpdate(tx, cb.OrderRef)
		if err != nil {
			return err
		}
		result = models.PaymentResult{
			PaymentCode:   payment.PaymentCode,
			BookingID:     payment.BookingID,
			Amount:        payment.Amount,
			Status:        payment.Status,
			BookingStatus: booking.Status,
		}

		switch payment.Status {
		case models.PaymentStatusPending:
		case models.PaymentStatusVoided:
			if cb.Success {
				return s.refundCaptured(ctx, tx, payment, cb, &result)
			}
			fallthrough
		default:
			result.Success = payment.Status == models.PaymentStatusCompleted
			result.Message = models.PaymentMessageAlreadyProcessed
			return nil
		}

		switch {
		case !cb.Amount.Equal(payment.Amount):
			s.logger.WithFields(logrus.Fields{
				"payment_code": payment.PaymentCode,
				"expected":     payment.Amount.String(),
				"received":     cb.Amount.String(),
			}).Warn("Payment amount mismatch")
			result.Status = models.PaymentStatusFailed
			result.Message = models.PaymentMessageAmountMismatch
		case !cb.Success:
			result.Status = models.PaymentStatusFailed
			result.Message = fmt.Sprintf("payment failed with response code %s", cb.ResponseCode)
		case booking.Status != models.BookingStatusBooked || !cb.Amount.Equal(booking.TotalAmount):
			return s.refundCaptured(ctx, tx, payment, cb, &result)
		default:
			result.Status = models.PaymentStatusCompleted
			result.Success = true
			result.Message = "payment successful"
		}

		if err := s.payments.UpdateStatus(tx, payment.ID, payment.Status, result.Status, transactionNo(cb)); err != nil {
			return err
		}
		if !result.Success {
			return nil
		}

		if completed, err = s.booking.MarkCompleted(tx, payment.BookingID); err != nil {
			return err
		}
		if completed {
			result.BookingStatus = models.BookingStatusCompleted
		}
		return nil
	})
	if err != nil {
		if models.IsRefundFailed(err) {
			s.logger.WithError(err).WithField("payment_code", cb.OrderRef).Error("Refund of captured payment failed")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_code": result.PaymentCode,
		"booking_id":   result.BookingID,
		"status":       result.Status,
	}).Info("Payment callback processed")

	if completed {
		code := result.PaymentCode
		s.booking.PublishEvent(models.TopicBookingCompleted, result.BookingID, func(e *models.BookingEvent) {
			e.PaymentCode = code
		})
	}
	return &result, nil
}

// refundCaptured returns money the gateway captured for a payment that can no
// longer settle its booking and marks the payment Refunded. A rejected refund
// rolls the callback back so the gateway delivers it again.
func (s *PaymentService) refundCaptured(ctx context.Context, tx *sqlx.Tx, payment *models.Payment, cb *GatewayCallback, result *models.PaymentResult) error {
	err := s.gateway.Refund(ctx, RefundRequest{
		OrderRef:        payment.PaymentCode,
		Amount:          cb.Amount,
		FullAmount:      true,
		TransactionNo:   cb.TransactionNo,
		TransactionDate: payment.CreatedAt,
		Reason:          "Hoan tien thanh toan " + payment.PaymentCode,
	})
	if err != nil {
		return &models.RefundFailedError{BookingID: payment.BookingID, Err: err}
	}
	if err := s.payments.UpdateStatus(tx, payment.ID, payment.Status, models.PaymentStatusRefunded, transactionNo(cb)); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_code":   payment.PaymentCode,
		"booking_id":     payment.BookingID,
		"payment_status": payment.Status,
		"booking_status": result.BookingStatus,
		"amount":         cb.Amount.String(),
	}).Warn("Captured payment refunded, booking no longer payable")

	result.Status = models.PaymentStatusRefunded
	result.Success = false
	result.Message = models.PaymentMessageRefunded
	return nil
}

func transactionNo(cb *GatewayCallback) *string {
	if cb.TransactionNo == "" {
		return nil
	}
	return &cb.TransactionNo
}

// GetPayment returns a payment; userID restricts it to the owner's bookings
func (s *PaymentService) GetPayment(id uuid.UUID, userID *uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.GetByID(id)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		booking, err := s.bookings.GetByID(s.db, payment.BookingID)
		if err != nil {
			return nil, err
		}
		if !booking.BelongsTo(*userID) {
			return nil, models.PaymentNotFound(id)
		}
	}
	return payment, nil
}

// ListPayments pages through payments, newest first
func (s *PaymentService) ListPayments(req models.PageRequest, userID *uuid.UUID) (*models.Page[models.Payment], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.payments.List(req, userID)
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

// StalePending returns Pending payments older than age
func (s *PaymentService) StalePending(age time.Duration) ([]models.Payment, error) {
	return s.payments.ListStalePending(s.now().Add(-age))
}

func (s *PaymentService) newPaymentCode() (string, error) {
	for i := 0; i < paymentCodeAttempts; i++ {
		code, err := randomCode(paymentCodeLength)
		if err != nil {
			return "", err
		}
		code = paymentCodePrefix + code
		exists, err := s.payments.CodeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique payment code after %d attempts", paymentCodeAttempts)
}

func randomCode(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(paymentCodeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		out[i] = paymentCodeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
