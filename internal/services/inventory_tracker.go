package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// SeatStore is the schedule persistence the tracker needs
type SeatStore interface {
	LockForSeats(q database.Queryer, id uuid.UUID) (*models.SeatLock, error)
	ActiveSeats(q database.Queryer, scheduleID, excludeBookingID uuid.UUID) (int, error)
	SetAvailableSeats(q database.Queryer, id uuid.UUID, seats int) error
	ReconcileAvailableSeats() (int64, error)
	Availability(id uuid.UUID) (*models.Availability, error)
}

// InventoryTracker keeps seat accounting of schedules. Seats held by Booked and
// Completed bookings are the source of truth; schedules.available_seats is a
// projection rewritten while the schedule row is locked.
type InventoryTracker struct {
	store  SeatStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewInventoryTracker creates a new InventoryTracker
func NewInventoryTracker(store SeatStore, logger *logrus.Logger) *InventoryTracker {
	return &InventoryTracker{store: store, logger: logger, now: time.Now}
}

// Reserve claims seatCount seats on a schedule inside the caller's transaction.
// excludeBookingID (uuid.Nil for new bookings) is left out of the active sum so
// an update does not compete with its own prior seats.
func (t *InventoryTracker) Reserve(q database.Queryer, scheduleID uuid.UUID, seatCount int, excludeBookingID uuid.UUID) (*models.SeatLock, error) {
	if seatCount <= 0 {
		return nil, models.NewValidationError("seat_count", "must be at least 1")
	}

	lock, err := t.store.LockForSeats(q, scheduleID)
	if err != nil {
		return nil, err
	}

	if lock.DepartureTime.Before(t.now()) {
		return nil, &models.TripDepartedError{ScheduleID: scheduleID, DepartureTime: lock.DepartureTime}
	}

	active, err := t.store.ActiveSeats(q, scheduleID, excludeBookingID)
	if err != nil {
		return nil, err
	}

	available := lock.TotalSeats - active
	if available < 0 {
		available = 0
	}
	if seatCount > available {
		return nil, &models.InsufficientSeatsError{ScheduleID: scheduleID, Requested: seatCount, Available: available}
	}

	remaining := available - seatCount
	if err := t.store.SetAvailableSeats(q, scheduleID, remaining); err != nil {
		return nil, err
	}
	lock.AvailableSeats = remaining
	return lock, nil
}

// Release returns seats to a schedule after the booking holding them left the
// active set. The counter is recomputed from bookings and never exceeds the
// bus capacity.
func (t *InventoryTracker) Release(q database.Queryer, scheduleID uuid.UUID, seatCount int) error {
	lock, err := t.store.LockForSeats(q, scheduleID)
	if err != nil {
		return err
	}

	active, err := t.store.ActiveSeats(q, scheduleID, uuid.Nil)
	if err != nil {
		return err
	}

	available := clampSeats(lock.TotalSeats-active, lock.TotalSeats)
	if expected := clampSeats(lock.AvailableSeats+seatCount, lock.TotalSeats); expected != available {
		t.logger.WithFields(logrus.Fields{
			"schedule_id": scheduleID,
			"cached":      lock.AvailableSeats,
			"released":    seatCount,
			"derived":     available,
		}).Warn("Available seats counter drifted, rewriting from bookings")
	}

	return t.store.SetAvailableSeats(q, scheduleID, available)
}

// Reconcile rewrites every drifted counter and returns how many changed
func (t *InventoryTracker) Reconcile() (int64, error) {
	return t.store.ReconcileAvailableSeats()
}

// Availability reports seats of a schedule derived from its bookings
func (t *InventoryTracker) Availability(scheduleID uuid.UUID) (*models.Availability, error) {
	return t.store.Availability(scheduleID)
}

func clampSeats(n, total int) int {
	if n < 0 {
		return 0
	}
	if n > total {
		return total
	}
	return n
}
