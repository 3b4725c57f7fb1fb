package handlers

import (
	"crypto/hmac"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentRowColumns = []string{
	"id", "booking_id", "amount", "method", "status", "payment_code",
	"gateway_transaction_no", "created_at", "updated_at",
}

// vnpayQuery signs params with the secret configured in setupAPI
func vnpayQuery(params url.Values) string {
	mac := hmac.New(sha512.New, []byte("test-hash-secret"))
	mac.Write([]byte(params.Encode()))
	signed := url.Values{}
	for k, v := range params {
		signed[k] = v
	}
	signed.Set("vnp_SecureHash", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}

// expectAudit matches one payment_audits insert by event type and source
func expectAudit(mock sqlmock.Sqlmock, eventType, source string) {
	arg := sqlmock.AnyArg()
	mock.ExpectExec(`INSERT INTO payment_audits`).
		WithArgs(arg, arg, arg, eventType, source, arg, arg, arg, arg, arg, arg, arg, arg, arg, arg).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func decodeIPN(t *testing.T, body []byte) ipnResponse {
	t.Helper()
	var resp ipnResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestPaymentHandler_IPN_InvalidSignature(t *testing.T) {
	router, mock, _ := setupAPI(t)
	expectAudit(mock, "invalid_signature", "vnpay_ipn")

	w := doRequest(router, http.MethodGet,
		"/api/v1/payments/vnpay/ipn?vnp_TxnRef=PAY-1&vnp_Amount=100&vnp_SecureHash=deadbeef", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ipnInvalidSignature, decodeIPN(t, w.Body.Bytes()).RspCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_IPN_OrderNotFound(t *testing.T) {
	router, mock, _ := setupAPI(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT booking_id FROM payments WHERE payment_code = \$1`).
		WithArgs("PAY-MISSING").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	expectAudit(mock, "error", "vnpay_ipn")

	query := vnpayQuery(url.Values{
		"vnp_TxnRef":       {"PAY-MISSING"},
		"vnp_Amount":       {"30000000"},
		"vnp_ResponseCode": {"00"},
	})
	w := doRequest(router, http.MethodGet, "/api/v1/payments/vnpay/ipn?"+query, nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ipnOrderNotFound, decodeIPN(t, w.Body.Bytes()).RspCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_IPN_AlreadyConfirmed(t *testing.T) {
	router, mock, _ := setupAPI(t)
	bookingID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT booking_id FROM payments WHERE payment_code = \$1`).
		WithArgs("PAY-DONE").
		WillReturnRows(sqlmock.NewRows(bookingDetailColumns[:14]).AddRow(
			bookingID.String(), uuid.NewString(), nil, "Le Van Cuong", 34,
			"", "", 2, "150000", "300000", "Completed", 2, now, now,
		))
	mock.ExpectQuery(`FROM payments WHERE payment_code = \$1 FOR UPDATE`).
		WithArgs("PAY-DONE").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
			uuid.NewString(), bookingID.String(), "300000", "VNPay", "Completed", "PAY-DONE", "14012345", now, now,
		))
	mock.ExpectCommit()
	expectAudit(mock, "duplicate_callback", "vnpay_ipn")

	query := vnpayQuery(url.Values{
		"vnp_TxnRef":       {"PAY-DONE"},
		"vnp_Amount":       {"30000000"},
		"vnp_ResponseCode": {"00"},
	})
	w := doRequest(router, http.MethodGet, "/api/v1/payments/vnpay/ipn?"+query, nil, "")

	assert.Equal(t, ipnAlreadyConfirmed, decodeIPN(t, w.Body.Bytes()).RspCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_IPN_RefundsPaymentForCancelledBooking(t *testing.T) {
	router, mock, _ := setupAPI(t)
	bookingID := uuid.New()
	paymentID := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT booking_id FROM payments WHERE payment_code = \$1`).
		WithArgs("PAY-LATE22").
		WillReturnRows(sqlmock.NewRows(bookingDetailColumns[:14]).AddRow(
			bookingID.String(), uuid.NewString(), nil, "Le Van Cuong", 34,
			"", "", 2, "150000", "300000", "Cancelled", 3, now, now,
		))
	mock.ExpectQuery(`FROM payments WHERE payment_code = \$1 FOR UPDATE`).
		WithArgs("PAY-LATE22").
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
			paymentID.String(), bookingID.String(), "300000", "VNPay", "Voided", "PAY-LATE22", nil, now, now,
		))
	mock.ExpectExec(`UPDATE payments`).
		WithArgs(paymentID, models.PaymentStatusRefunded, "14077777", models.PaymentStatusVoided).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectAudit(mock, "payment_refunded", "vnpay_ipn")

	query := vnpayQuery(url.Values{
		"vnp_TxnRef":            {"PAY-LATE22"},
		"vnp_Amount":            {"30000000"},
		"vnp_ResponseCode":      {"00"},
		"vnp_TransactionStatus": {"00"},
		"vnp_TransactionNo":     {"14077777"},
	})
	w := doRequest(router, http.MethodGet, "/api/v1/payments/vnpay/ipn?"+query, nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ipnConfirmed, decodeIPN(t, w.Body.Bytes()).RspCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_Callback_RedirectsOnFailure(t *testing.T) {
	router, mock, _ := setupAPI(t)
	expectAudit(mock, "invalid_signature", "vnpay_return")

	w := doRequest(router, http.MethodGet, "/api/v1/payments/vnpay/callback?vnp_TxnRef=PAY-1", nil, "")

	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "front", location.Host)
	assert.Equal(t, "/fail", location.Path)
	assert.Contains(t, location.Query().Get("message"), "signature")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingAuditor struct{ calls int }

func (f *failingAuditor) Log(*models.PaymentAudit) error {
	f.calls++
	return errors.New("disk full")
}

func TestPaymentHandler_AuditFailureDoesNotFailCallback(t *testing.T) {
	auditor := &failingAuditor{}
	h := NewPaymentHandler(nil, &config.PaymentConfig{}, auditor, quietLogger())

	h.record(models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend))
	assert.Equal(t, 1, auditor.calls)

	h = NewPaymentHandler(nil, &config.PaymentConfig{}, nil, quietLogger())
	assert.NotPanics(t, func() {
		h.record(models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend))
	})
}

func TestAdminHandler_PaymentAudit(t *testing.T) {
	router, mock, jwtService := setupAPI(t)
	admin := bearer(t, jwtService, uuid.New(), models.RoleAdmin)
	now := time.Now()

	columns := []string{
		"id", "payment_code", "booking_id", "event_type", "event_source",
		"expected_amount", "received_amount", "amounts_match", "payment_status", "response_code",
		"transaction_no", "payload", "error_message", "ip_address", "created_at",
	}
	mock.ExpectQuery(`FROM payment_audits WHERE payment_code = \$1`).
		WithArgs("PAY-ABC123").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			uuid.NewString(), "PAY-ABC123", uuid.NewString(), "amount_mismatch", "vnpay_ipn",
			"300000", "3000", false, "Pending", "00",
			"14012345", []byte(`{"vnp_Amount":"300000"}`), nil, "10.0.0.1", now,
		))

	w := doRequest(router, http.MethodGet, "/api/v1/admin/payments/PAY-ABC123/audit", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"event_type":"amount_mismatch"`)
	assert.Contains(t, w.Body.String(), `"vnp_Amount":"300000"`)

	w = doRequest(router, http.MethodGet, "/api/v1/admin/payments/mismatches?limit=0", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithQuery(t *testing.T) {
	got := withQuery("http://localhost:4200/user/success?lang=vi", url.Values{"paymentCode": {"PAY-1"}})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "vi", u.Query().Get("lang"))
	assert.Equal(t, "PAY-1", u.Query().Get("paymentCode"))
}

func TestAdminHandler_UserAudit(t *testing.T) {
	router, mock, jwtService := setupAPI(t)
	admin := bearer(t, jwtService, uuid.New(), models.RoleAdmin)
	userID := uuid.New()

	mock.ExpectQuery(`FROM audit_logs`).
		WithArgs(userID, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "ip_address", "user_agent", "details", "created_at"}).
			AddRow(1, userID.String(), "login_failed", "10.0.0.1", "", []byte(`{"email":"an@example.com"}`), time.Now()))

	w := doRequest(router, http.MethodGet, "/api/v1/admin/users/"+userID.String()+"/audit?limit=5", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"login_failed"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
