package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingDetailColumns = []string{
	"id", "schedule_id", "user_id", "passenger_name", "passenger_age",
	"passenger_phone", "passenger_email", "seat_count", "fare_per_seat", "total_amount",
	"status", "version", "created_at", "updated_at",
	"bus_number", "bus_type_id", "bus_type_name", "departure_time", "arrival_time",
	"schedule_price", "starting_place", "destination_place", "distance",
}

func expectBookingDetail(mock sqlmock.Sqlmock, id, owner uuid.UUID, status models.BookingStatus) {
	now := time.Now()
	mock.ExpectQuery(`FROM bookings bk(.+)WHERE bk.id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(bookingDetailColumns).AddRow(
			id.String(), uuid.NewString(), owner.String(), "Le Van Cuong", 34,
			"0901234567", "cuong@example.com", 2, "110000", "220000",
			string(status), 1, now, now,
			"29A-67890", 2, "Limousine", now.Add(48*time.Hour), now.Add(51*time.Hour),
			"110000", "Ha Noi", "Ninh Binh", "95",
		))
}

func TestBookingHandler_GetBooking_Scoping(t *testing.T) {
	router, mock, jwtService := setupAPI(t)
	owner := uuid.New()
	id := uuid.New()

	// Another customer sees nothing
	expectBookingDetail(mock, id, owner, models.BookingStatusBooked)
	w := doRequest(router, http.MethodGet, "/api/v1/bookings/"+id.String(), nil,
		bearer(t, jwtService, uuid.New(), models.RoleCustomer))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "BOOKING_NOT_FOUND", decodeError(t, w).Code)

	// The owner does
	expectBookingDetail(mock, id, owner, models.BookingStatusBooked)
	w = doRequest(router, http.MethodGet, "/api/v1/bookings/"+id.String(), nil,
		bearer(t, jwtService, owner, models.RoleCustomer))
	require.Equal(t, http.StatusOK, w.Code)

	var detail models.BookingDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, id, detail.ID)
	require.NotNil(t, detail.Fare)
	assert.True(t, decimal.RequireFromString("220000").Equal(detail.Fare.Total))

	// Staff see every booking
	expectBookingDetail(mock, id, owner, models.BookingStatusBooked)
	w = doRequest(router, http.MethodGet, "/api/v1/bookings/"+id.String(), nil,
		bearer(t, jwtService, uuid.New(), models.RoleStaff))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingHandler_GetBooking_InvalidID(t *testing.T) {
	router, _, jwtService := setupAPI(t)

	w := doRequest(router, http.MethodGet, "/api/v1/bookings/42", nil,
		bearer(t, jwtService, uuid.New(), models.RoleCustomer))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandler_CreateBooking_InvalidBody(t *testing.T) {
	router, mock, jwtService := setupAPI(t)

	w := doRequest(router, http.MethodPost, "/api/v1/bookings", map[string]interface{}{
		"schedule_id": uuid.NewString(),
		"seat_count":  0,
	}, bearer(t, jwtService, uuid.New(), models.RoleCustomer))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingHandler_DownloadTicket(t *testing.T) {
	router, mock, jwtService := setupAPI(t)
	owner := uuid.New()
	id := uuid.New()
	auth := bearer(t, jwtService, owner, models.RoleCustomer)

	expectBookingDetail(mock, id, owner, models.BookingStatusCompleted)
	w := doRequest(router, http.MethodGet, "/api/v1/bookings/"+id.String()+"/ticket", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ticket-"+id.String()+".pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	// Unpaid bookings have no ticket yet
	expectBookingDetail(mock, id, owner, models.BookingStatusBooked)
	w = doRequest(router, http.MethodGet, "/api/v1/bookings/"+id.String()+"/ticket", nil, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}
