package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
	"github.com/smarttransit/bus-reservation-backend/internal/utils"
)

// BookingHandler serves the booking lifecycle. Customers only see their own
// bookings; staff and admins see all of them.
type BookingHandler struct {
	bookings      *services.BookingService
	cancellations *services.CancellationService
	tickets       *services.TicketService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(
	bookings *services.BookingService,
	cancellations *services.CancellationService,
	tickets *services.TicketService,
) *BookingHandler {
	return &BookingHandler{
		bookings:      bookings,
		cancellations: cancellations,
		tickets:       tickets,
	}
}

// CreateBooking reserves seats on a schedule
// POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	user, ok := middleware.GetUserContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{"unauthorized", "user context not found", "MISSING_USER_CONTEXT"})
		return
	}
	var req models.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookings.CreateBooking(&req, &user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings lists bookings visible to the caller
// GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.bookings.ListBookings(page, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchBookings matches passenger name, phone or email
// GET /api/v1/bookings/search?q=
func (h *BookingHandler) SearchBookings(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.bookings.SearchBookings(c.Query("q"), page, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBooking retrieves one booking
// GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	booking, err := h.bookings.GetBooking(id, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// UpdateBooking changes schedule, seats or passenger of a Booked booking
// PUT /api/v1/bookings/:id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.UpdateBooking(id, &req, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// DeleteBooking removes a booking record
// DELETE /api/v1/bookings/:id
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.bookings.DeleteBooking(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelBooking cancels a booking and refunds according to the refund window
// POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req models.CancelBookingRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	cancellation, err := h.cancellations.CancelBooking(
		c.Request.Context(), id, &req, middleware.OwnerScope(c), utils.GetRealIP(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancellation)
}

// DownloadTicket renders the PDF ticket of a completed booking
// GET /api/v1/bookings/:id/ticket
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	pdf, err := h.tickets.RenderTicket(id, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
