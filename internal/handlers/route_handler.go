package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
)

// RouteHandler serves routes and their price lists
type RouteHandler struct {
	catalog *services.CatalogService
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(catalog *services.CatalogService) *RouteHandler {
	return &RouteHandler{catalog: catalog}
}

// ListRoutes lists routes, optionally filtered by endpoints
// GET /api/v1/routes?start=&destination=&page=&pageSize=
func (h *RouteHandler) ListRoutes(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	start, destination := c.Query("start"), c.Query("destination")
	var (
		result *models.Page[models.Route]
		err    error
	)
	if start != "" || destination != "" {
		result, err = h.catalog.SearchRoutes(start, destination, page)
	} else {
		result, err = h.catalog.ListRoutes(page)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRoute retrieves a route
// GET /api/v1/routes/:id
func (h *RouteHandler) GetRoute(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	route, err := h.catalog.GetRoute(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// CreateRoute creates a route
// POST /api/v1/routes
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req models.RouteRequest
	if !bindJSON(c, &req) {
		return
	}
	route, err := h.catalog.CreateRoute(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, route)
}

// UpdateRoute updates a route
// PUT /api/v1/routes/:id
func (h *RouteHandler) UpdateRoute(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req models.RouteRequest
	if !bindJSON(c, &req) {
		return
	}
	route, err := h.catalog.UpdateRoute(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// DeleteRoute deletes a route with its schedules
// DELETE /api/v1/routes/:id
func (h *RouteHandler) DeleteRoute(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteRoute(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListPriceLists lists stored prices, optionally for one route
// GET /api/v1/price-lists?route_id=
func (h *RouteHandler) ListPriceLists(c *gin.Context) {
	var routeID *uuid.UUID
	if raw := c.Query("route_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid route_id: must be a UUID")
			return
		}
		routeID = &id
	}
	prices, err := h.catalog.ListPriceLists(routeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

// UpsertPriceList computes and stores the price of a route on a bus type
// POST /api/v1/price-lists
func (h *RouteHandler) UpsertPriceList(c *gin.Context) {
	var req models.PriceListRequest
	if !bindJSON(c, &req) {
		return
	}
	price, err := h.catalog.UpsertPriceList(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

// DeletePriceList deletes a stored price
// DELETE /api/v1/price-lists/:id
func (h *RouteHandler) DeletePriceList(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeletePriceList(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
