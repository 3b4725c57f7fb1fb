package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// ScheduleService manages departures and their seat counts
type ScheduleService struct {
	db        database.DB
	schedules *database.ScheduleRepository
	buses     *database.BusRepository
	routes    *database.RouteRepository
	inventory *InventoryTracker
	fares     FarePolicy
	logger    *logrus.Logger
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(
	db database.DB,
	schedules *database.ScheduleRepository,
	buses *database.BusRepository,
	routes *database.RouteRepository,
	inventory *InventoryTracker,
	fares FarePolicy,
	logger *logrus.Logger,
) *ScheduleService {
	return &ScheduleService{
		db:        db,
		schedules: schedules,
		buses:     buses,
		routes:    routes,
		inventory: inventory,
		fares:     fares,
		logger:    logger,
	}
}

// CreateSchedule stores a departure with every seat free, priced from the
// route base fare and the bus type
func (s *ScheduleService) CreateSchedule(req *models.ScheduleRequest) (*models.ScheduleDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var id uuid.UUID
	err := database.WithTx(s.db, func(tx *sqlx.Tx) error {
		bus, err := s.buses.GetWith(tx, req.BusID)
		if err != nil {
			return err
		}
		route, err := s.routes.GetWith(tx, req.RouteID)
		if err != nil {
			return err
		}

		schedule := &models.Schedule{
			BusID:          bus.ID,
			RouteID:        route.ID,
			DepartureTime:  req.DepartureTime,
			ArrivalTime:    req.ArrivalTime,
			AvailableSeats: bus.TotalSeats,
			Price:          s.fares.SchedulePrice(route.BasePrice, bus.BusTypeID),
		}
		if err := s.schedules.Create(tx, schedule); err != nil {
			return err
		}
		id = schedule.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"schedule_id": id,
		"bus_id":      req.BusID,
		"route_id":    req.RouteID,
		"departure":   req.DepartureTime,
	}).Info("Schedule created")
	return s.schedules.GetDetail(id)
}

// UpdateSchedule changes bus, route and times of a departure. The new bus
// must hold every seat already booked.
func (s *ScheduleService) UpdateSchedule(id uuid.UUID, req *models.ScheduleRequest) (*models.ScheduleDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err := database.WithTx(s.db, func(tx *sqlx.Tx) error {
		if _, err := s.schedules.LockForSeats(tx, id); err != nil {
			return err
		}
		bus, err := s.buses.GetWith(tx, req.BusID)
		if err != nil {
			return err
		}
		route, err := s.routes.GetWith(tx, req.RouteID)
		if err != nil {
			return err
		}

		booked, err := s.schedules.ActiveSeats(tx, id, uuid.Nil)
		if err != nil {
			return err
		}
		if bus.TotalSeats < booked {
			return &models.ConflictError{
				Resource: "schedule",
				Message:  fmt.Sprintf("bus %s has %d seats but %d are already booked", bus.BusNumber, bus.TotalSeats, booked),
			}
		}

		schedule := &models.Schedule{
			ID:            id,
			BusID:         bus.ID,
			RouteID:       route.ID,
			DepartureTime: req.DepartureTime,
			ArrivalTime:   req.ArrivalTime,
			Price:         s.fares.SchedulePrice(route.BasePrice, bus.BusTypeID),
		}
		if err := s.schedules.Update(tx, schedule); err != nil {
			return err
		}
		return s.schedules.SetAvailableSeats(tx, id, bus.TotalSeats-booked)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("schedule_id", id).Info("Schedule updated")
	return s.schedules.GetDetail(id)
}

// DeleteSchedule removes a departure without bookings
func (s *ScheduleService) DeleteSchedule(id uuid.UUID) error {
	if err := s.schedules.Delete(id); err != nil {
		return err
	}
	s.logger.WithField("schedule_id", id).Info("Schedule deleted")
	return nil
}

// GetSchedule returns a schedule with bus and route detail
func (s *ScheduleService) GetSchedule(id uuid.UUID) (*models.ScheduleDetail, error) {
	return s.schedules.GetDetail(id)
}

// ListSchedules pages through schedules by departure time
func (s *ScheduleService) ListSchedules(req models.PageRequest) (*models.Page[models.ScheduleDetail], error) {
	return s.SearchSchedules(models.ScheduleSearch{}, req)
}

// SearchSchedules filters by route endpoints and optional travel date
func (s *ScheduleService) SearchSchedules(filter models.ScheduleSearch, req models.PageRequest) (*models.Page[models.ScheduleDetail], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.schedules.Search(filter, req)
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

// Availability reports booked and free seats of a schedule
func (s *ScheduleService) Availability(id uuid.UUID) (*models.Availability, error) {
	return s.inventory.Availability(id)
}
