package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// CancellationService cancels Booked bookings and refunds by the time left
// before departure
type CancellationService struct {
	db            database.DB
	cancellations *database.CancellationRepository
	bookings      *database.BookingRepository
	schedules     *database.ScheduleRepository
	payments      *database.PaymentRepository
	inventory     *InventoryTracker
	booking       *BookingService
	gateway       PaymentGateway
	logger        *logrus.Logger
	now           func() time.Time
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	db database.DB,
	cancellations *database.CancellationRepository,
	bookings *database.BookingRepository,
	schedules *database.ScheduleRepository,
	payments *database.PaymentRepository,
	inventory *InventoryTracker,
	booking *BookingService,
	gateway PaymentGateway,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		db:            db,
		cancellations: cancellations,
		bookings:      bookings,
		schedules:     schedules,
		payments:      payments,
		inventory:     inventory,
		booking:       booking,
		gateway:       gateway,
		logger:        logger,
		now:           time.Now,
	}
}

// CancelBooking cancels a Booked booking, returns its seats and voids any
// Pending payment. The refund window amount is recorded on the cancellation;
// the gateway is asked to return money only when a payment was captured. A
// refund the gateway rejects undoes the whole cancellation.
func (s *CancellationService) CancelBooking(ctx context.Context, id uuid.UUID, req *models.CancelBookingRequest, userID *uuid.UUID, clientIP string) (*models.Cancellation, error) {
	var cancellation *models.Cancellation
	var voided int64
	err := database.WithTx(s.db, func(tx *sqlx.Tx) error {
		booking, err := s.bookings.GetForUpdate(tx, id)
		if err != nil {
			return err
		}
		if userID != nil && !booking.BelongsTo(*userID) {
			return models.BookingNotFound(id)
		}
		switch booking.Status {
		case models.BookingStatusCancelled:
			return &models.ConflictError{Resource: "booking", Message: "booking is already cancelled"}
		case models.BookingStatusCompleted:
			return &models.ConflictError{Resource: "booking", Message: "completed bookings are final"}
		}

		lock, err := s.schedules.LockForSeats(tx, booking.ScheduleID)
		if err != nil {
			return err
		}

		now := s.now()
		hours := lock.DepartureTime.Sub(now).Hours()
		amount, percent := models.CalculateRefund(booking.TotalAmount, hours)

		changed, err := s.bookings.TransitionStatus(tx, booking.ID, models.BookingStatusBooked, models.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if !changed {
			return models.ErrConcurrencyConflict("booking")
		}

		paid, err := s.payments.CompletedForBooking(tx, booking.ID)
		if err != nil {
			return err
		}
		if voided, err = s.payments.VoidPending(tx, booking.ID); err != nil {
			return err
		}

		var reason *string
		if req != nil {
			reason = req.Reason
		}
		cancellation = &models.Cancellation{
			BookingID:     booking.ID,
			RefundAmount:  amount,
			RefundPercent: percent,
			Reason:        reason,
			Refunded:      paid != nil && amount.IsPositive(),
			CancelledAt:   now,
		}
		if err := s.cancellations.Create(tx, cancellation); err != nil {
			return err
		}

		if err := s.inventory.Release(tx, booking.ScheduleID, booking.SeatCount); err != nil {
			return err
		}

		if !cancellation.Refunded {
			return nil
		}
		if err := s.gateway.Refund(ctx, refundRequest(paid, cancellation, clientIP)); err != nil {
			return &models.RefundFailedError{BookingID: booking.ID, Err: err}
		}
		return nil
	})
	if err != nil {
		if models.IsRefundFailed(err) {
			s.logger.WithError(err).WithField("booking_id", id).Error("Refund failed, cancellation rolled back")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     id,
		"refund_amount":  cancellation.RefundAmount.String(),
		"refund_percent": cancellation.RefundPercent,
		"refunded":       cancellation.Refunded,
		"voided":         voided,
	}).Info("Booking cancelled")

	s.booking.PublishEvent(models.TopicBookingCancelled, id, func(e *models.BookingEvent) {
		if cancellation.Refunded {
			refund := cancellation.RefundAmount
			e.RefundAmount = &refund
		}
	})
	return cancellation, nil
}

// GetCancellation returns a cancellation; userID restricts it to the owner's bookings
func (s *CancellationService) GetCancellation(id uuid.UUID, userID *uuid.UUID) (*models.Cancellation, error) {
	c, err := s.cancellations.GetByID(id)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		booking, err := s.bookings.GetByID(s.db, c.BookingID)
		if err != nil {
			return nil, err
		}
		if !booking.BelongsTo(*userID) {
			return nil, models.NewNotFound("cancellation", id)
		}
	}
	return c, nil
}

// ListCancellations pages through cancellations, newest first
func (s *CancellationService) ListCancellations(req models.PageRequest, userID *uuid.UUID) (*models.Page[models.Cancellation], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.cancellations.List(req, userID)
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

func refundRequest(paid *models.Payment, c *models.Cancellation, clientIP string) RefundRequest {
	req := RefundRequest{
		OrderRef:        paid.PaymentCode,
		Amount:          c.RefundAmount,
		FullAmount:      c.RefundPercent == models.FullRefundPercent,
		TransactionDate: paid.CreatedAt,
		Reason:          "Hoan tien huy ve " + c.BookingID.String(),
		ClientIP:        clientIP,
	}
	if paid.TransactionNo != nil {
		req.TransactionNo = *paid.TransactionNo
	}
	return req
}
