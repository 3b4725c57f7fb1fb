package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
)

// PaymentGateway is the external payment provider
type PaymentGateway interface {
	CreatePaymentURL(req PaymentURLRequest) (string, error)
	ParseCallback(values url.Values) (*GatewayCallback, error)
	Refund(ctx context.Context, req RefundRequest) error
}

// PaymentURLRequest describes the order a customer is sent to pay
type PaymentURLRequest struct {
	OrderRef  string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
	BankCode  string
}

// GatewayCallback is the verified result reported by the gateway
type GatewayCallback struct {
	OrderRef      string
	Amount        decimal.Decimal
	TransactionNo string
	ResponseCode  string
	BankCode      string
	PayDate       string
	Success       bool
}

// RefundRequest asks the gateway to return money for a paid order
type RefundRequest struct {
	OrderRef        string
	Amount          decimal.Decimal
	FullAmount      bool
	TransactionNo   string
	TransactionDate time.Time
	Reason          string
	ClientIP        string
	CreatedBy       string
}

// ErrInvalidSignature is returned for callbacks whose checksum does not match
var ErrInvalidSignature = fmt.Errorf("invalid payment gateway signature")

const (
	vnpVersion        = "2.1.0"
	vnpDateLayout     = "20060102150405"
	vnpSuccessCode    = "00"
	vnpSecureHash     = "vnp_SecureHash"
	vnpSecureHashType = "vnp_SecureHashType"
)

// VNPayService implements PaymentGateway for VNPay
type VNPayService struct {
	config   *config.PaymentConfig
	logger   *logrus.Logger
	client   *http.Client
	location *time.Location
	now      func() time.Time
}

// NewVNPayService creates a new VNPay gateway client
func NewVNPayService(cfg *config.PaymentConfig, logger *logrus.Logger) *VNPayService {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*60*60)
	}
	return &VNPayService{
		config:   cfg,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		location: loc,
		now:      time.Now,
	}
}

// CreatePaymentURL builds the signed redirect to the VNPay payment page
func (s *VNPayService) CreatePaymentURL(req PaymentURLRequest) (string, error) {
	if s.config.TmnCode == "" || s.config.HashSecret == "" {
		return "", fmt.Errorf("payment gateway not configured: missing VNPay credentials")
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("payment amount must be positive")
	}

	now := s.now().In(s.location)
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := map[string]string{
		"vnp_Version":    vnpVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    s.config.TmnCode,
		"vnp_Amount":     vnpAmount(req.Amount),
		"vnp_CurrCode":   s.config.CurrencyCode,
		"vnp_BankCode":   req.BankCode,
		"vnp_TxnRef":     req.OrderRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  "billpayment",
		"vnp_Locale":     s.config.Locale,
		"vnp_ReturnUrl":  s.config.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": now.Format(vnpDateLayout),
	}
	if s.config.ExpireMinutes > 0 {
		params["vnp_ExpireDate"] = now.Add(time.Duration(s.config.ExpireMinutes) * time.Minute).Format(vnpDateLayout)
	}

	query := canonicalQuery(params)
	signature := s.sign(query)

	s.logger.WithFields(logrus.Fields{
		"order_ref": req.OrderRef,
		"amount":    req.Amount.String(),
	}).Info("VNPay payment URL created")

	return s.config.PayURL + "?" + query + "&" + vnpSecureHash + "=" + signature, nil
}

// ParseCallback verifies the checksum of a return or IPN request and
// extracts the outcome
func (s *VNPayService) ParseCallback(values url.Values) (*GatewayCallback, error) {
	received := values.Get(vnpSecureHash)
	if received == "" {
		return nil, ErrInvalidSignature
	}

	params := make(map[string]string)
	for key := range values {
		if !strings.HasPrefix(key, "vnp_") || key == vnpSecureHash || key == vnpSecureHashType {
			continue
		}
		params[key] = values.Get(key)
	}

	expected := s.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		s.logger.WithField("order_ref", params["vnp_TxnRef"]).Warn("VNPay callback signature mismatch")
		return nil, ErrInvalidSignature
	}

	amount, err := decimal.NewFromString(params["vnp_Amount"])
	if err != nil {
		return nil, fmt.Errorf("invalid vnp_Amount: %w", err)
	}

	responseCode := params["vnp_ResponseCode"]
	success := responseCode == vnpSuccessCode
	if status, ok := params["vnp_TransactionStatus"]; ok {
		success = success && status == vnpSuccessCode
	}

	return &GatewayCallback{
		OrderRef:      params["vnp_TxnRef"],
		Amount:        amount.Div(decimal.NewFromInt(100)).Round(2),
		TransactionNo: params["vnp_TransactionNo"],
		ResponseCode:  responseCode,
		BankCode:      params["vnp_BankCode"],
		PayDate:       params["vnp_PayDate"],
		Success:       success,
	}, nil
}

type vnpRefundRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TransactionType string `json:"vnp_TransactionType"`
	TxnRef          string `json:"vnp_TxnRef"`
	Amount          string `json:"vnp_Amount"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionNo   string `json:"vnp_TransactionNo,omitempty"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateBy        string `json:"vnp_CreateBy"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

type vnpRefundResponse struct {
	ResponseCode string `json:"vnp_ResponseCode"`
	Message      string `json:"vnp_Message"`
}

// Refund returns money through the VNPay merchant API. Without a configured
// refund URL the refund is only logged.
func (s *VNPayService) Refund(ctx context.Context, req RefundRequest) error {
	if !req.Amount.IsPositive() {
		return nil
	}

	if s.config.RefundURL == "" {
		s.logger.WithFields(logrus.Fields{
			"order_ref": req.OrderRef,
			"amount":    req.Amount.String(),
		}).Info("VNPay refund simulated (no refund URL configured)")
		return nil
	}

	now := s.now().In(s.location)
	transactionType := "03"
	if req.FullAmount {
		transactionType = "02"
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	body := vnpRefundRequest{
		RequestID:       strings.ReplaceAll(uuid.New().String(), "-", "")[:20],
		Version:         vnpVersion,
		Command:         "refund",
		TmnCode:         s.config.TmnCode,
		TransactionType: transactionType,
		TxnRef:          req.OrderRef,
		Amount:          vnpAmount(req.Amount),
		OrderInfo:       req.Reason,
		TransactionNo:   req.TransactionNo,
		TransactionDate: req.TransactionDate.In(s.location).Format(vnpDateLayout),
		CreateBy:        createdBy,
		CreateDate:      now.Format(vnpDateLayout),
		IPAddr:          ip,
	}
	body.SecureHash = s.sign(strings.Join([]string{
		body.RequestID, body.Version, body.Command, body.TmnCode, body.TransactionType,
		body.TxnRef, body.Amount, body.TransactionNo, body.TransactionDate, body.CreateBy,
		body.CreateDate, body.IPAddr, body.OrderInfo,
	}, "|"))

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal refund request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.RefundURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build refund request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call refund endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read refund response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refund endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result vnpRefundResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to parse refund response: %w", err)
	}
	if result.ResponseCode != vnpSuccessCode {
		return fmt.Errorf("refund rejected: code=%s message=%s", result.ResponseCode, result.Message)
	}

	s.logger.WithFields(logrus.Fields{
		"order_ref": req.OrderRef,
		"amount":    req.Amount.String(),
	}).Info("VNPay refund accepted")
	return nil
}

func (s *VNPayService) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(s.config.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery encodes non-empty params sorted by key, the form VNPay signs
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}

// vnpAmount expresses an amount in VNPay's minor units (x100)
func vnpAmount(amount decimal.Decimal) string {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).String()
}
