package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
)

// CancellationHandler exposes cancellation records
type CancellationHandler struct {
	cancellations *services.CancellationService
}

// NewCancellationHandler creates a new cancellation handler
func NewCancellationHandler(cancellations *services.CancellationService) *CancellationHandler {
	return &CancellationHandler{cancellations: cancellations}
}

// GET /api/v1/cancellations
func (h *CancellationHandler) ListCancellations(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.cancellations.ListCancellations(page, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/cancellations/:id
func (h *CancellationHandler) GetCancellation(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	cancellation, err := h.cancellations.GetCancellation(id, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancellation)
}
