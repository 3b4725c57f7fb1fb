package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
)

const dateLayout = "2006-01-02"

// ScheduleHandler serves schedules and seat availability
type ScheduleHandler struct {
	schedules *services.ScheduleService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(schedules *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// ListSchedules lists schedules ordered by departure
// GET /api/v1/schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.schedules.ListSchedules(page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchSchedules finds schedules by route endpoints and departure date
// GET /api/v1/schedules/search?start=&destination=&date=YYYY-MM-DD
func (h *ScheduleHandler) SearchSchedules(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}

	filter := models.ScheduleSearch{
		StartingPlace:    c.Query("start"),
		DestinationPlace: c.Query("destination"),
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			badRequest(c, "invalid date: expected YYYY-MM-DD")
			return
		}
		filter.Date = &date
	}

	result, err := h.schedules.SearchSchedules(filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSchedule retrieves a schedule with its bus and route
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	schedule, err := h.schedules.GetSchedule(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// Availability reports seats derived from active bookings
// GET /api/v1/schedules/:id/availability
func (h *ScheduleHandler) Availability(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	availability, err := h.schedules.Availability(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

// CreateSchedule creates a schedule priced from its route and bus type
// POST /api/v1/schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req models.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	schedule, err := h.schedules.CreateSchedule(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

// UpdateSchedule updates a schedule
// PUT /api/v1/schedules/:id
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req models.ScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	schedule, err := h.schedules.UpdateSchedule(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// DeleteSchedule deletes a schedule without active bookings
// DELETE /api/v1/schedules/:id
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.schedules.DeleteSchedule(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
