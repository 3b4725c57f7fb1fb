package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// respondError maps a domain error onto its HTTP status. Unknown errors are
// recorded on the context for the request logger and reported as 500.
func respondError(c *gin.Context, err error) {
	var (
		notFound   *models.NotFoundError
		validation *models.ValidationError
		unauth     *models.UnauthorizedError
		seats      *models.InsufficientSeatsError
		departed   *models.TripDepartedError
		conflict   *models.ConflictError
		refund     *models.RefundFailedError
		limited    *models.RateLimitError
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, errorBody{"not_found", err.Error(), notFound.ErrorCode()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, errorBody{"validation_error", err.Error(), "VALIDATION_ERROR"})
	case errors.As(err, &unauth):
		c.JSON(http.StatusUnauthorized, errorBody{"unauthorized", err.Error(), "UNAUTHORIZED"})
	case errors.As(err, &seats):
		c.JSON(http.StatusConflict, errorBody{"insufficient_seats", err.Error(), "INSUFFICIENT_SEATS"})
	case errors.As(err, &departed):
		c.JSON(http.StatusConflict, errorBody{"trip_departed", err.Error(), "TRIP_DEPARTED"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, errorBody{"conflict", err.Error(), "CONFLICT"})
	case errors.As(err, &limited):
		retry := int(time.Until(limited.RetryAfter).Seconds())
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.JSON(http.StatusTooManyRequests, errorBody{"rate_limited", err.Error(), "TOO_MANY_ATTEMPTS"})
	case errors.As(err, &refund):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, errorBody{"refund_failed", "refund could not be processed, booking was not cancelled", "REFUND_FAILED"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody{"internal_error", "internal server error", "INTERNAL_ERROR"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{"invalid_request", message, "INVALID_REQUEST"})
}

// bindJSON decodes the request body, answering 400 on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

// paramUUID parses a UUID path parameter, answering 400 on failure
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// paramInt parses an integer path parameter, answering 400 on failure
func paramInt(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+": must be an integer")
		return 0, false
	}
	return n, true
}

// pageRequest reads page and pageSize query parameters; both default to 0,
// which lists every row
func pageRequest(c *gin.Context) (models.PageRequest, bool) {
	var req models.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "page and pageSize must be integers")
		return req, false
	}
	return req, true
}
