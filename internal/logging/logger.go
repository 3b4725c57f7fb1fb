// Package logging builds the application logger: JSON lines on stdout and,
// when configured, a size-rotated log file.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger for the given server and log settings. The returned
// closer flushes the rotating file and is a no-op without one.
func New(server config.ServerConfig, cfg config.LogConfig) (*logrus.Logger, io.Closer) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(server.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File == "" {
		logger.SetOutput(os.Stdout)
		return logger, nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return logger, rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
