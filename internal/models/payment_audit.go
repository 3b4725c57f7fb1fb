package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType classifies an audited gateway interaction
type PaymentEventType string

const (
	PaymentEventInitiated        PaymentEventType = "payment_initiated"
	PaymentEventSuccess          PaymentEventType = "payment_success"
	PaymentEventFailed           PaymentEventType = "payment_failed"
	PaymentEventAmountMismatch   PaymentEventType = "amount_mismatch"
	PaymentEventDuplicate        PaymentEventType = "duplicate_callback"
	PaymentEventInvalidSignature PaymentEventType = "invalid_signature"
	PaymentEventRefunded         PaymentEventType = "payment_refunded"
	PaymentEventError            PaymentEventType = "error"
)

// PaymentEventSource identifies where an audited event came from
type PaymentEventSource string

const (
	PaymentSourceBackend     PaymentEventSource = "backend"
	PaymentSourceVNPayReturn PaymentEventSource = "vnpay_return"
	PaymentSourceVNPayIPN    PaymentEventSource = "vnpay_ipn"
)

// JSONB stores a JSON object column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// PaymentAudit is an append-only record of one gateway interaction
type PaymentAudit struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	PaymentCode *string            `json:"payment_code,omitempty" db:"payment_code"`
	BookingID   *uuid.UUID         `json:"booking_id,omitempty" db:"booking_id"`
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	ExpectedAmount decimal.NullDecimal `json:"expected_amount" db:"expected_amount"`
	ReceivedAmount decimal.NullDecimal `json:"received_amount" db:"received_amount"`
	AmountsMatch   *bool               `json:"amounts_match,omitempty" db:"amounts_match"`

	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`
	ResponseCode  *string `json:"response_code,omitempty" db:"response_code"`
	TransactionNo *string `json:"transaction_no,omitempty" db:"transaction_no"`

	// Gateway parameters without the signature
	Payload JSONB `json:"payload,omitempty" db:"payload"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	IPAddress    *string `json:"ip_address,omitempty" db:"ip_address"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit starts an audit entry
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

func (pa *PaymentAudit) SetPayment(code string, bookingID uuid.UUID) *PaymentAudit {
	pa.PaymentCode = &code
	if bookingID != uuid.Nil {
		pa.BookingID = &bookingID
	}
	return pa
}

// SetAmounts records both amounts and reports whether they match
func (pa *PaymentAudit) SetAmounts(expected, received decimal.Decimal) bool {
	pa.ExpectedAmount = decimal.NewNullDecimal(expected)
	pa.ReceivedAmount = decimal.NewNullDecimal(received)
	match := expected.Equal(received)
	pa.AmountsMatch = &match
	return match
}

func (pa *PaymentAudit) SetStatus(status PaymentStatus) *PaymentAudit {
	s := string(status)
	pa.PaymentStatus = &s
	return pa
}

func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	msg := err.Error()
	pa.ErrorMessage = &msg
	return pa
}

func (pa *PaymentAudit) SetIP(ip string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	return pa
}

// SetGatewayParams keeps the vnp_* parameters, dropping the signature
func (pa *PaymentAudit) SetGatewayParams(values url.Values) *PaymentAudit {
	payload := make(JSONB, len(values))
	for key := range values {
		if key == "vnp_SecureHash" {
			continue
		}
		payload[key] = values.Get(key)
	}
	pa.Payload = payload

	if code := values.Get("vnp_ResponseCode"); code != "" {
		pa.ResponseCode = &code
	}
	if txn := values.Get("vnp_TransactionNo"); txn != "" {
		pa.TransactionNo = &txn
	}
	return pa
}
