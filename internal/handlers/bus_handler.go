package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
)

// BusHandler serves buses and bus types
type BusHandler struct {
	catalog *services.CatalogService
}

// NewBusHandler creates a new bus handler
func NewBusHandler(catalog *services.CatalogService) *BusHandler {
	return &BusHandler{catalog: catalog}
}

// ListBusTypes lists bus types
// GET /api/v1/bus-types
func (h *BusHandler) ListBusTypes(c *gin.Context) {
	types, err := h.catalog.ListBusTypes()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// GetBusType retrieves a bus type
// GET /api/v1/bus-types/:id
func (h *BusHandler) GetBusType(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	busType, err := h.catalog.GetBusType(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, busType)
}

// CreateBusType creates a bus type
// POST /api/v1/bus-types
func (h *BusHandler) CreateBusType(c *gin.Context) {
	var req models.BusTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	busType, err := h.catalog.CreateBusType(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, busType)
}

// UpdateBusType renames a bus type
// PUT /api/v1/bus-types/:id
func (h *BusHandler) UpdateBusType(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req models.BusTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	busType, err := h.catalog.UpdateBusType(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, busType)
}

// DeleteBusType deletes an unused bus type
// DELETE /api/v1/bus-types/:id
func (h *BusHandler) DeleteBusType(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteBusType(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListBuses lists buses
// GET /api/v1/buses
func (h *BusHandler) ListBuses(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	buses, err := h.catalog.ListBuses(page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buses)
}

// GetBus retrieves a bus
// GET /api/v1/buses/:id
func (h *BusHandler) GetBus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	bus, err := h.catalog.GetBus(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

// CreateBus registers a bus
// POST /api/v1/buses
func (h *BusHandler) CreateBus(c *gin.Context) {
	var req models.BusRequest
	if !bindJSON(c, &req) {
		return
	}
	bus, err := h.catalog.CreateBus(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bus)
}

// UpdateBus updates a bus; capacity cannot drop below seats already sold
// PUT /api/v1/buses/:id
func (h *BusHandler) UpdateBus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req models.BusRequest
	if !bindJSON(c, &req) {
		return
	}
	bus, err := h.catalog.UpdateBus(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

// DeleteBus deletes a bus
// DELETE /api/v1/buses/:id
func (h *BusHandler) DeleteBus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteBus(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
