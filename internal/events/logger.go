package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
)

type logrusAdapter struct {
	logger *logrus.Logger
	fields watermill.LogFields
}

// NewLoggerAdapter routes watermill's internal logging through logrus
func NewLoggerAdapter(logger *logrus.Logger) watermill.LoggerAdapter {
	return &logrusAdapter{logger: logger, fields: watermill.LogFields{}}
}

func (a *logrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.entry(fields).WithError(err).Error(msg)
}

func (a *logrusAdapter) Info(msg string, fields watermill.LogFields) {
	a.entry(fields).Info(msg)
}

func (a *logrusAdapter) Debug(msg string, fields watermill.LogFields) {
	a.entry(fields).Debug(msg)
}

func (a *logrusAdapter) Trace(msg string, fields watermill.LogFields) {
	a.entry(fields).Trace(msg)
}

func (a *logrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &logrusAdapter{logger: a.logger, fields: a.fields.Add(fields)}
}

func (a *logrusAdapter) entry(fields watermill.LogFields) *logrus.Entry {
	all := a.fields.Add(fields)
	return a.logger.WithFields(logrus.Fields(all))
}
