package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// RouteRepository handles database operations for routes table
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

const routeColumns = `id, starting_place, destination_place, distance, base_price, created_at, updated_at`

// Create inserts a route
func (r *RouteRepository) Create(route *models.Route) error {
	if route.ID == uuid.Nil {
		route.ID = uuid.New()
	}
	query := `
		INSERT INTO routes (id, starting_place, destination_place, distance, base_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(query,
		route.ID, route.StartingPlace, route.DestinationPlace, route.Distance, route.BasePrice,
	).Scan(&route.CreatedAt, &route.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create route: %w", mapWriteError(err, "route"))
	}
	return nil
}

// GetByID retrieves a route by ID
func (r *RouteRepository) GetByID(id uuid.UUID) (*models.Route, error) {
	return r.GetWith(r.db, id)
}

// GetWith is GetByID on a caller-provided connection or transaction
func (r *RouteRepository) GetWith(q Queryer, id uuid.UUID) (*models.Route, error) {
	var route models.Route
	if err := q.Get(&route, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.RouteNotFound(id)
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return &route, nil
}

// List returns routes ordered by starting place
func (r *RouteRepository) List(req models.PageRequest) ([]models.Route, int, error) {
	return r.Search("", "", req)
}

// Search filters routes by start and destination substrings, case-insensitive
func (r *RouteRepository) Search(start, destination string, req models.PageRequest) ([]models.Route, int, error) {
	var conditions []string
	var args []interface{}
	if strings.TrimSpace(start) != "" {
		args = append(args, likePattern(start))
		conditions = append(conditions, fmt.Sprintf("starting_place ILIKE $%d", len(args)))
	}
	if strings.TrimSpace(destination) != "" {
		args = append(args, likePattern(destination))
		conditions = append(conditions, fmt.Sprintf("destination_place ILIKE $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.Get(&total, `SELECT COUNT(*) FROM routes`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count routes: %w", err)
	}

	limit, args := limitClause(req, args)
	var routes []models.Route
	query := `SELECT ` + routeColumns + ` FROM routes` + where + ` ORDER BY starting_place, destination_place, id` + limit
	if err := r.db.Select(&routes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, total, nil
}

// Update changes a route
func (r *RouteRepository) Update(route *models.Route) error {
	query := `
		UPDATE routes
		SET starting_place = $2, destination_place = $3, distance = $4, base_price = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(query,
		route.ID, route.StartingPlace, route.DestinationPlace, route.Distance, route.BasePrice,
	).Scan(&route.CreatedAt, &route.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RouteNotFound(route.ID)
		}
		return fmt.Errorf("failed to update route: %w", mapWriteError(err, "route"))
	}
	return nil
}

// Delete removes a route with its schedules and price lists; booked schedules block it
func (r *RouteRepository) Delete(id uuid.UUID) error {
	result, err := r.db.Exec(`DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", mapWriteError(err, "route"))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.RouteNotFound(id)
	}
	return nil
}
