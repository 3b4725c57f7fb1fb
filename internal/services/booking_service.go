package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/events"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// Fare sources
const (
	FareSourceSchedule = "schedule"
	FareSourceRoute    = "route"
)

// BookingService runs the booking lifecycle: Booked -> Completed | Cancelled
type BookingService struct {
	db         database.DB
	bookings   *database.BookingRepository
	schedules  *database.ScheduleRepository
	payments   *database.PaymentRepository
	inventory  *InventoryTracker
	fares      FarePolicy
	fareSource string
	events     events.Publisher
	logger     *logrus.Logger
	now        func() time.Time
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db database.DB,
	bookings *database.BookingRepository,
	schedules *database.ScheduleRepository,
	payments *database.PaymentRepository,
	inventory *InventoryTracker,
	fares FarePolicy,
	fareSource string,
	publisher events.Publisher,
	logger *logrus.Logger,
) *BookingService {
	if fareSource == "" {
		fareSource = FareSourceSchedule
	}
	return &BookingService{
		db:         db,
		bookings:   bookings,
		schedules:  schedules,
		payments:   payments,
		inventory:  inventory,
		fares:      fares,
		fareSource: fareSource,
		events:     publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateBooking reserves seats on a schedule and stores a Booked booking
func (s *BookingService) CreateBooking(req *models.CreateBookingRequest, userID *uuid.UUID) (*models.BookingDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var detail *models.BookingDetail
	err := database.WithTx(s.db, func(tx *sqlx.Tx) error {
		schedule, err := s.schedules.GetDetailWith(tx, req.ScheduleID)
		if err != nil {
			return err
		}
		if schedule.HasDeparted(s.now()) {
			return &models.TripDepartedError{ScheduleID: schedule.ID, DepartureTime: schedule.DepartureTime}
		}

		if _, err := s.inventory.Reserve(tx, schedule.ID, req.SeatCount, uuid.Nil); err != nil {
			return err
		}

		fare := s.computeFare(schedule, req.Passenger.Age, req.SeatCount)
		booking := &models.Booking{
			ScheduleID:  schedule.ID,
			UserID:      userID,
			Passenger:   req.Passenger,
			SeatCount:   req.SeatCount,
			FarePerSeat: fare.PerSeat,
			TotalAmount: fare.Total,
			Status:      models.BookingStatusBooked,
		}
		if err := s.bookings.Create(tx, booking); err != nil {
			return err
		}

		detail = newBookingDetail(booking, schedule, &fare)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  detail.ID,
		"schedule_id": detail.ScheduleID,
		"seats":       detail.SeatCount,
		"total":       detail.TotalAmount.String(),
	}).Info("Booking created")

	return detail, nil
}

// UpdateBooking moves a Booked booking to another schedule, seat count or
// passenger. Its own prior seats do not count against availability. A new
// total voids Pending payments opened for the old one.
// userID restricts the update to the owner's bookings when set.
func (s *BookingService) UpdateBooking(id uuid.UUID, req *models.UpdateBookingRequest, userID *uuid.UUID) (*models.BookingDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var detail *models.BookingDetail
	var voided int64
	err := database.WithTx(s.db, func(tx *sqlx.Tx) error {
		booking, err := s.bookings.GetForUpdate(tx, id)
		if err != nil {
			return err
		}
		if userID != nil && !booking.BelongsTo(*userID) {
			return models.BookingNotFound(id)
		}
		if booking.Status != models.BookingStatusBooked {
			return &models.ConflictError{Resource: "booking", Message: "only Booked bookings can be updated"}
		}
		if req.Version != 0 && req.Version != booking.Version {
			return models.ErrConcurrencyConflict("booking")
		}

		schedule, err := s.schedules.GetDetailWith(tx, req.ScheduleID)
		if err != nil {
			return err
		}
		if schedule.HasDeparted(s.now()) {
			return &models.TripDepartedError{ScheduleID: schedule.ID, DepartureTime: schedule.DepartureTime}
		}

		if _, err := s.inventory.Reserve(tx, schedule.ID, req.SeatCount, booking.ID); err != nil {
			return err
		}

		previousSchedule := booking.ScheduleID
		previousSeats := booking.SeatCount
		previousTotal := booking.TotalAmount

		fare := s.computeFare(schedule, req.Passenger.Age, req.SeatCount)
		booking.ScheduleID = schedule.ID
		booking.Passenger = req.Passenger
		booking.SeatCount = req.SeatCount
		booking.FarePerSeat = fare.PerSeat
		booking.TotalAmount = fare.Total
		if err := s.bookings.Update(tx, booking); err != nil {
			return err
		}

		if !fare.Total.Equal(previousTotal) {
			if voided, err = s.payments.VoidPending(tx, booking.ID); err != nil {
				return err
			}
		}

		if previousSchedule != schedule.ID {
			if err := s.inventory.Release(tx, previousSchedule, previousSeats); err != nil {
				return err
			}
		}

		detail = newBookingDetail(booking, schedule, &fare)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  detail.ID,
		"schedule_id": detail.ScheduleID,
		"seats":       detail.SeatCount,
		"version":     detail.Version,
		"voided":      voided,
	}).Info("Booking updated")

	return detail, nil
}

// MarkCompleted moves a Booked booking to Completed. Bookings in any other
// status are left untouched; changed reports whether a transition happened.
func (s *BookingService) MarkCompleted(q database.Queryer, id uuid.UUID) (changed bool, err error) {
	changed, err = s.bookings.TransitionStatus(q, id, models.BookingStatusBooked, models.BookingStatusCompleted)
	if err != nil {
		return false, err
	}
	if !changed {
		if _, err := s.bookings.GetByID(q, id); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// GetBooking returns a booking with trip and fare detail
func (s *BookingService) GetBooking(id uuid.UUID, userID *uuid.UUID) (*models.BookingDetail, error) {
	detail, err := s.bookings.GetDetail(id)
	if err != nil {
		return nil, err
	}
	if userID != nil && !detail.BelongsTo(*userID) {
		return nil, models.BookingNotFound(id)
	}
	s.attachFare(detail)
	return detail, nil
}

// ListBookings pages through bookings, newest first
func (s *BookingService) ListBookings(req models.PageRequest, userID *uuid.UUID) (*models.Page[models.BookingDetail], error) {
	return s.SearchBookings("", req, userID)
}

// SearchBookings pages through bookings matching a free-text query
func (s *BookingService) SearchBookings(query string, req models.PageRequest, userID *uuid.UUID) (*models.Page[models.BookingDetail], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.bookings.Search(query, req, userID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.attachFare(&items[i])
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

// DeleteBooking removes a cancelled booking with its history
func (s *BookingService) DeleteBooking(id uuid.UUID) error {
	if err := s.bookings.DeleteCancelled(id); err != nil {
		return err
	}
	s.logger.WithField("booking_id", id).Info("Cancelled booking deleted")
	return nil
}

// PublishEvent loads a booking and publishes it on topic. Failures are logged
// and never reach the caller's flow.
func (s *BookingService) PublishEvent(topic string, id uuid.UUID, decorate func(*models.BookingEvent)) {
	if s.events == nil {
		return
	}
	detail, err := s.bookings.GetDetail(id)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", id).Error("Failed to load booking for event")
		return
	}
	event := models.NewBookingEvent(detail, s.now())
	if decorate != nil {
		decorate(&event)
	}
	if err := s.events.Publish(topic, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": id,
			"topic":      topic,
		}).Error("Failed to publish booking event")
	}
}

func (s *BookingService) computeFare(schedule *models.ScheduleDetail, age, seats int) models.Fare {
	if s.fareSource == FareSourceRoute {
		return s.fares.ComputeFare(schedule.RouteBasePrice, schedule.BusTypeID, age, seats)
	}
	return s.fares.ApplyDiscount(schedule.Price, schedule.BusTypeID, age, seats)
}

// attachFare rebuilds the breakdown of a stored booking
func (s *BookingService) attachFare(d *models.BookingDetail) {
	multiplier := one
	if s.fareSource == FareSourceRoute {
		multiplier = s.fares.Multiplier(d.BusTypeID)
	}
	d.Fare = &models.Fare{
		BasePrice:      d.SchedulePrice,
		BusTypeID:      d.BusTypeID,
		Multiplier:     multiplier,
		PassengerAge:   d.Age,
		DiscountFactor: s.fares.DiscountFactor(d.Age),
		PerSeat:        d.FarePerSeat,
		SeatCount:      d.SeatCount,
		Total:          d.TotalAmount,
	}
}

func newBookingDetail(b *models.Booking, schedule *models.ScheduleDetail, fare *models.Fare) *models.BookingDetail {
	return &models.BookingDetail{
		Booking:          *b,
		BusNumber:        schedule.BusNumber,
		BusTypeID:        schedule.BusTypeID,
		BusTypeName:      schedule.BusTypeName,
		DepartureTime:    schedule.DepartureTime,
		ArrivalTime:      schedule.ArrivalTime,
		StartingPlace:    schedule.StartingPlace,
		DestinationPlace: schedule.DestinationPlace,
		Distance:         schedule.Distance,
		SchedulePrice:    schedule.Price,
		Fare:             fare,
	}
}
