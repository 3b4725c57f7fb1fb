package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFallback(t *testing.T) {
	logger, closer := New(config.ServerConfig{LogLevel: "chatty"}, config.LogConfig{})
	defer closer.Close()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger, _ = New(config.ServerConfig{LogLevel: "debug"}, config.LogConfig{})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, closer := New(config.ServerConfig{LogLevel: "info"}, config.LogConfig{File: path, MaxSizeMB: 1})

	logger.WithField("booking_id", "b-1").Info("Booking created")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "Booking created", line["msg"])
	assert.Equal(t, "b-1", line["booking_id"])
}
