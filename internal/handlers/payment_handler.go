package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/middleware"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
	"github.com/smarttransit/bus-reservation-backend/internal/utils"
)

// IPN response codes expected by VNPay
const (
	ipnConfirmed        = "00"
	ipnOrderNotFound    = "01"
	ipnAlreadyConfirmed = "02"
	ipnInvalidAmount    = "04"
	ipnInvalidSignature = "97"
	ipnUnknownError     = "99"
)

type ipnResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// PaymentAuditor records gateway interactions
type PaymentAuditor interface {
	Log(audit *models.PaymentAudit) error
}

// PaymentHandler starts VNPay payments and receives their callbacks
type PaymentHandler struct {
	payments *services.PaymentService
	config   *config.PaymentConfig
	audits   PaymentAuditor
	logger   *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(
	payments *services.PaymentService,
	cfg *config.PaymentConfig,
	audits PaymentAuditor,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		config:   cfg,
		audits:   audits,
		logger:   logger,
	}
}

// CreatePayment opens a pending payment and returns the gateway URL
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	clientIP := utils.GetRealIP(c)
	resp, err := h.payments.CreatePayment(&req, middleware.OwnerScope(c), clientIP)
	if err != nil {
		respondError(c, err)
		return
	}

	audit := models.NewPaymentAudit(models.PaymentEventInitiated, models.PaymentSourceBackend).
		SetPayment(resp.PaymentCode, req.BookingID).
		SetStatus(models.PaymentStatusPending).
		SetIP(clientIP)
	audit.ExpectedAmount = decimal.NewNullDecimal(resp.Amount)
	h.record(audit)

	c.JSON(http.StatusCreated, resp)
}

// GET /api/v1/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	page, ok := pageRequest(c)
	if !ok {
		return
	}
	result, err := h.payments.ListPayments(page, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.GetPayment(id, middleware.OwnerScope(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// Callback is the browser return URL. The payment is settled, then the
// customer is redirected to the frontend result page.
// GET /api/v1/payments/vnpay/callback
func (h *PaymentHandler) Callback(c *gin.Context) {
	result, err := h.settle(c, models.PaymentSourceVNPayReturn)
	if err != nil {
		h.logger.WithError(err).Warn("Rejected payment callback")
		if !models.IsValidation(err) && !models.IsNotFound(err) {
			_ = c.Error(err)
		}
		c.Redirect(http.StatusFound, withQuery(h.config.FailureURL, url.Values{"message": {err.Error()}}))
		return
	}

	params := url.Values{
		"paymentCode":   {result.PaymentCode},
		"bookingId":     {result.BookingID.String()},
		"amount":        {result.Amount.StringFixed(0)},
		"status":        {string(result.Status)},
		"bookingStatus": {string(result.BookingStatus)},
		"message":       {result.Message},
	}
	target := h.config.FailureURL
	if result.Success {
		target = h.config.SuccessURL
	}
	c.Redirect(http.StatusFound, withQuery(target, params))
}

// IPN is the server-to-server notification; VNPay retries until it gets a
// recognised RspCode.
// GET /api/v1/payments/vnpay/ipn
func (h *PaymentHandler) IPN(c *gin.Context) {
	result, err := h.settle(c, models.PaymentSourceVNPayIPN)
	if err != nil {
		var validation *models.ValidationError
		switch {
		case errors.As(err, &validation) && validation.Field == "vnp_SecureHash":
			c.JSON(http.StatusOK, ipnResponse{ipnInvalidSignature, "Invalid signature"})
		case models.IsNotFound(err):
			c.JSON(http.StatusOK, ipnResponse{ipnOrderNotFound, "Order not found"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusOK, ipnResponse{ipnUnknownError, "Unknown error"})
		}
		return
	}

	switch result.Message {
	case models.PaymentMessageAlreadyProcessed:
		c.JSON(http.StatusOK, ipnResponse{ipnAlreadyConfirmed, "Order already confirmed"})
	case models.PaymentMessageAmountMismatch:
		c.JSON(http.StatusOK, ipnResponse{ipnInvalidAmount, "Invalid amount"})
	default:
		c.JSON(http.StatusOK, ipnResponse{ipnConfirmed, "Confirm Success"})
	}
}

// settle processes a gateway callback and records its outcome
func (h *PaymentHandler) settle(c *gin.Context, source models.PaymentEventSource) (*models.PaymentResult, error) {
	values := c.Request.URL.Query()
	result, err := h.payments.HandleCallback(c.Request.Context(), values)

	var audit *models.PaymentAudit
	var validation *models.ValidationError
	switch {
	case err != nil && errors.As(err, &validation) && validation.Field == "vnp_SecureHash":
		audit = models.NewPaymentAudit(models.PaymentEventInvalidSignature, source)
	case err != nil:
		audit = models.NewPaymentAudit(models.PaymentEventError, source).SetError(err)
	case result.Message == models.PaymentMessageAlreadyProcessed:
		audit = models.NewPaymentAudit(models.PaymentEventDuplicate, source)
	case result.Message == models.PaymentMessageAmountMismatch:
		audit = models.NewPaymentAudit(models.PaymentEventAmountMismatch, source)
	case result.Status == models.PaymentStatusRefunded:
		audit = models.NewPaymentAudit(models.PaymentEventRefunded, source)
	case result.Success:
		audit = models.NewPaymentAudit(models.PaymentEventSuccess, source)
	default:
		audit = models.NewPaymentAudit(models.PaymentEventFailed, source)
	}

	audit.SetGatewayParams(values).SetIP(utils.GetRealIP(c))
	if result != nil {
		audit.SetPayment(result.PaymentCode, result.BookingID).SetStatus(result.Status)
		if received, perr := decimal.NewFromString(values.Get("vnp_Amount")); perr == nil {
			audit.SetAmounts(result.Amount, received.Div(decimal.NewFromInt(100)))
		}
	} else if ref := values.Get("vnp_TxnRef"); ref != "" {
		audit.PaymentCode = &ref
	}
	h.record(audit)

	return result, err
}

// record writes an audit entry; failures are logged and never fail the request
func (h *PaymentHandler) record(audit *models.PaymentAudit) {
	if h.audits == nil {
		return
	}
	if err := h.audits.Log(audit); err != nil {
		h.logger.WithError(err).WithField("event_type", audit.EventType).Warn("Payment audit not recorded")
	}
}

// withQuery appends params to a configured frontend URL
func withQuery(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}
