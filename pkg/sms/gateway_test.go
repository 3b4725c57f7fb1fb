package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNew_SelectsGatewayByMode(t *testing.T) {
	logger := quietLogger()

	assert.IsType(t, &DevGateway{}, New(Config{Mode: "dev", APIURL: "http://x"}, logger))
	assert.IsType(t, &DevGateway{}, New(Config{Mode: "production"}, logger))
	assert.IsType(t, &HTTPGateway{}, New(Config{Mode: "production", APIURL: "http://x"}, logger))
}

func TestHTTPGateway_SendSMS(t *testing.T) {
	var got SendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(SendResponse{Status: "success", MessageID: "m-1"})
	}))
	defer server.Close()

	gw := NewHTTPGateway(Config{APIURL: server.URL, APIKey: "secret-key", SenderID: "BUSVN"}, quietLogger())
	err := gw.SendSMS(context.Background(), "091 234 5678", "Your ticket is confirmed")

	require.NoError(t, err)
	assert.Equal(t, "+84912345678", got.To)
	assert.Equal(t, "BUSVN", got.SenderID)
	assert.Equal(t, "Your ticket is confirmed", got.Message)
}

func TestHTTPGateway_SendSMS_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(SendResponse{Status: "error", Error: "insufficient balance"})
	}))
	defer server.Close()

	gw := NewHTTPGateway(Config{APIURL: server.URL}, quietLogger())
	err := gw.SendSMS(context.Background(), "0912345678", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestHTTPGateway_SendSMS_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	gw := NewHTTPGateway(Config{APIURL: server.URL}, quietLogger())
	err := gw.SendSMS(context.Background(), "0912345678", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestHTTPGateway_SendSMS_InvalidPhone(t *testing.T) {
	gw := NewHTTPGateway(Config{APIURL: "http://127.0.0.1:1"}, quietLogger())
	err := gw.SendSMS(context.Background(), "12345", "hello")
	assert.Error(t, err)
}

func TestDevGateway_SendSMS(t *testing.T) {
	gw := NewDevGateway(quietLogger())
	assert.NoError(t, gw.SendSMS(context.Background(), "anything", "hello"))
	assert.Equal(t, "Development SMS Gateway", gw.GetName())
}
