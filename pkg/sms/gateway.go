package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/pkg/validator"
)

// Gateway sends a text message to one phone number
type Gateway interface {
	SendSMS(ctx context.Context, phone, message string) error
	GetName() string
}

// Config holds configuration for the HTTP SMS gateway
type Config struct {
	Mode     string // "dev" logs messages, anything else sends them
	APIURL   string
	APIKey   string
	SenderID string
}

// New returns the gateway for cfg.Mode
func New(cfg Config, logger *logrus.Logger) Gateway {
	if cfg.Mode == "" || cfg.Mode == "dev" || cfg.APIURL == "" {
		return NewDevGateway(logger)
	}
	return NewHTTPGateway(cfg, logger)
}

// SendRequest is the JSON body posted to the provider
type SendRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	SenderID string `json:"sender_id,omitempty"`
}

// SendResponse is the provider's reply
type SendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// HTTPGateway posts messages to a JSON SMS API authenticated by bearer key
type HTTPGateway struct {
	apiURL   string
	apiKey   string
	senderID string
	client   *http.Client
	phones   *validator.PhoneValidator
	logger   *logrus.Logger
}

// NewHTTPGateway creates a new HTTP SMS gateway client
func NewHTTPGateway(cfg Config, logger *logrus.Logger) *HTTPGateway {
	return &HTTPGateway{
		apiURL:   cfg.APIURL,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		client:   &http.Client{Timeout: 30 * time.Second},
		phones:   validator.NewPhoneValidator(),
		logger:   logger,
	}
}

// SendSMS sends message to phone
func (g *HTTPGateway) SendSMS(ctx context.Context, phone, message string) error {
	to, err := g.phones.International(phone)
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}

	payload, err := json.Marshal(SendRequest{To: to, Message: message, SenderID: g.senderID})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var smsResp SendResponse
	if err := json.Unmarshal(body, &smsResp); err != nil {
		return fmt.Errorf("failed to parse SMS response: %w", err)
	}
	if smsResp.Status != "success" {
		return fmt.Errorf("SMS sending failed: %s", smsResp.Error)
	}

	g.logger.WithFields(logrus.Fields{
		"to":         to,
		"message_id": smsResp.MessageID,
	}).Debug("SMS sent")
	return nil
}

// GetName returns the name of this SMS gateway
func (g *HTTPGateway) GetName() string {
	return "HTTP SMS Gateway"
}

// DevGateway logs messages instead of sending them
type DevGateway struct {
	logger *logrus.Logger
}

// NewDevGateway creates a gateway for local development
func NewDevGateway(logger *logrus.Logger) *DevGateway {
	return &DevGateway{logger: logger}
}

// SendSMS logs the message
func (g *DevGateway) SendSMS(_ context.Context, phone, message string) error {
	g.logger.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("SMS (dev mode, not sent)")
	return nil
}

// GetName returns the name of this SMS gateway
func (g *DevGateway) GetName() string {
	return "Development SMS Gateway"
}
