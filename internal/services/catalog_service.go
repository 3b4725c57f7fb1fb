package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// CatalogService manages routes, bus types, buses and price lists
type CatalogService struct {
	routes     *database.RouteRepository
	busTypes   *database.BusTypeRepository
	buses      *database.BusRepository
	priceLists *database.PriceListRepository
	schedules  *database.ScheduleRepository
	fares      FarePolicy
	logger     *logrus.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	routes *database.RouteRepository,
	busTypes *database.BusTypeRepository,
	buses *database.BusRepository,
	priceLists *database.PriceListRepository,
	schedules *database.ScheduleRepository,
	fares FarePolicy,
	logger *logrus.Logger,
) *CatalogService {
	return &CatalogService{
		routes:     routes,
		busTypes:   busTypes,
		buses:      buses,
		priceLists: priceLists,
		schedules:  schedules,
		fares:      fares,
		logger:     logger,
	}
}

// ============================================================================
// ROUTES
// ============================================================================

// ListRoutes pages through routes
func (s *CatalogService) ListRoutes(req models.PageRequest) (*models.Page[models.Route], error) {
	return s.SearchRoutes("", "", req)
}

// SearchRoutes filters routes by endpoint text
func (s *CatalogService) SearchRoutes(start, destination string, req models.PageRequest) (*models.Page[models.Route], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.routes.Search(start, destination, req)
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

// GetRoute returns a route
func (s *CatalogService) GetRoute(id uuid.UUID) (*models.Route, error) {
	return s.routes.GetByID(id)
}

// CreateRoute stores a new route
func (s *CatalogService) CreateRoute(req *models.RouteRequest) (*models.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	route := &models.Route{
		StartingPlace:    req.StartingPlace,
		DestinationPlace: req.DestinationPlace,
		Distance:         req.Distance.Round(2),
		BasePrice:        req.BasePrice.Round(2),
	}
	if err := s.routes.Create(route); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"route_id": route.ID,
		"from":     route.StartingPlace,
		"to":       route.DestinationPlace,
	}).Info("Route created")
	return route, nil
}

// UpdateRoute replaces a route's fields. Prices already stored on schedules
// are kept.
func (s *CatalogService) UpdateRoute(id uuid.UUID, req *models.RouteRequest) (*models.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	route := &models.Route{
		ID:               id,
		StartingPlace:    req.StartingPlace,
		DestinationPlace: req.DestinationPlace,
		Distance:         req.Distance.Round(2),
		BasePrice:        req.BasePrice.Round(2),
	}
	if err := s.routes.Update(route); err != nil {
		return nil, err
	}
	return route, nil
}

// DeleteRoute removes a route together with its schedules
func (s *CatalogService) DeleteRoute(id uuid.UUID) error {
	if err := s.routes.Delete(id); err != nil {
		return err
	}
	s.logger.WithField("route_id", id).Info("Route deleted")
	return nil
}

// ============================================================================
// BUS TYPES
// ============================================================================

// ListBusTypes returns every bus type
func (s *CatalogService) ListBusTypes() ([]models.BusType, error) {
	return s.busTypes.List()
}

// GetBusType returns a bus type
func (s *CatalogService) GetBusType(id int) (*models.BusType, error) {
	return s.busTypes.GetByID(id)
}

// CreateBusType stores a bus type; a zero ID takes the next free tier
func (s *CatalogService) CreateBusType(req *models.BusTypeRequest) (*models.BusType, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	bt := &models.BusType{ID: req.ID, TypeName: req.TypeName, Description: req.Description}
	if err := s.busTypes.Create(bt); err != nil {
		return nil, err
	}
	return bt, nil
}

// UpdateBusType renames a bus type
func (s *CatalogService) UpdateBusType(id int, req *models.BusTypeRequest) (*models.BusType, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	bt := &models.BusType{ID: id, TypeName: req.TypeName, Description: req.Description}
	if err := s.busTypes.Update(bt); err != nil {
		return nil, err
	}
	return bt, nil
}

// DeleteBusType removes a bus type no bus uses
func (s *CatalogService) DeleteBusType(id int) error {
	return s.busTypes.Delete(id)
}

// ============================================================================
// BUSES
// ============================================================================

// ListBuses pages through buses
func (s *CatalogService) ListBuses(req models.PageRequest) (*models.Page[models.Bus], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	items, total, err := s.buses.List(req)
	if err != nil {
		return nil, err
	}
	page := models.NewPage(items, total, req)
	return &page, nil
}

// GetBus returns a bus
func (s *CatalogService) GetBus(id uuid.UUID) (*models.Bus, error) {
	return s.buses.GetByID(id)
}

// CreateBus stores a bus; bus numbers are unique
func (s *CatalogService) CreateBus(req *models.BusRequest) (*models.Bus, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.busTypes.GetByID(req.BusTypeID); err != nil {
		return nil, err
	}
	bus := &models.Bus{
		BusNumber:  req.BusNumber,
		BusTypeID:  req.BusTypeID,
		TotalSeats: req.TotalSeats,
		ImageURL:   req.ImageURL,
	}
	if err := s.buses.Create(bus); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"bus_id": bus.ID, "bus_number": bus.BusNumber}).Info("Bus created")
	return s.buses.GetByID(bus.ID)
}

// UpdateBus changes a bus. Capacity cannot drop below the seats already
// booked on its upcoming schedules.
func (s *CatalogService) UpdateBus(id uuid.UUID, req *models.BusRequest) (*models.Bus, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.buses.GetByID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.busTypes.GetByID(req.BusTypeID); err != nil {
		return nil, err
	}

	if req.TotalSeats < current.TotalSeats {
		booked, err := s.buses.MaxBookedSeats(id)
		if err != nil {
			return nil, err
		}
		if req.TotalSeats < booked {
			return nil, &models.ConflictError{
				Resource: "bus",
				Message:  fmt.Sprintf("total_seats %d is below the %d seats already booked on an upcoming schedule", req.TotalSeats, booked),
			}
		}
	}

	bus := &models.Bus{
		ID:         id,
		BusNumber:  req.BusNumber,
		BusTypeID:  req.BusTypeID,
		TotalSeats: req.TotalSeats,
		ImageURL:   req.ImageURL,
	}
	if err := s.buses.Update(bus); err != nil {
		return nil, err
	}

	if bus.TotalSeats != current.TotalSeats {
		changed, err := s.schedules.ReconcileAvailableSeats()
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"bus_id":    id,
			"schedules": changed,
		}).Info("Bus capacity changed, seat counters rewritten")
	}
	return s.buses.GetByID(id)
}

// DeleteBus removes a bus without schedules
func (s *CatalogService) DeleteBus(id uuid.UUID) error {
	return s.buses.Delete(id)
}

// ============================================================================
// PRICE LISTS
// ============================================================================

// ListPriceLists returns price lists, optionally of one route
func (s *CatalogService) ListPriceLists(routeID *uuid.UUID) ([]models.PriceList, error) {
	return s.priceLists.List(routeID)
}

// UpsertPriceList prices a route for a bus type with the fare engine
func (s *CatalogService) UpsertPriceList(req *models.PriceListRequest) (*models.PriceList, error) {
	if req.RouteID == uuid.Nil {
		return nil, models.NewValidationError("route_id", "is required")
	}
	route, err := s.routes.GetByID(req.RouteID)
	if err != nil {
		return nil, err
	}
	if _, err := s.busTypes.GetByID(req.BusTypeID); err != nil {
		return nil, err
	}

	pl := &models.PriceList{
		RouteID:   route.ID,
		BusTypeID: req.BusTypeID,
		Price:     s.fares.SchedulePrice(route.BasePrice, req.BusTypeID),
	}
	if err := s.priceLists.Upsert(pl); err != nil {
		return nil, err
	}
	return pl, nil
}

// DeletePriceList removes a price list entry
func (s *CatalogService) DeletePriceList(id uuid.UUID) error {
	return s.priceLists.Delete(id)
}
