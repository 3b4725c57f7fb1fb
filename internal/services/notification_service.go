package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/events"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
	"github.com/smarttransit/bus-reservation-backend/pkg/sms"
	"gopkg.in/gomail.v2"
)

// Mailer sends an HTML email
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPMailer delivers mail through an SMTP server
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *logrus.Logger
}

// NewMailer returns an SMTP mailer, or a logging one when mail is disabled
func NewMailer(cfg config.MailConfig, logger *logrus.Logger) Mailer {
	if !cfg.Enabled {
		return &LogMailer{logger: logger}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send dials the server and delivers one message
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email sent")
	return nil
}

// LogMailer only logs outgoing mail
type LogMailer struct {
	logger *logrus.Logger
}

// Send logs the message
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email (mail disabled, not sent)")
	return nil
}

var bookingMailTemplate = template.Must(template.New("booking").Funcs(template.FuncMap{
	"datetime": func(e models.BookingEvent) string { return e.DepartureTime.Format("15:04 02/01/2006") },
}).Parse(`<html><body style="font-family: Arial, sans-serif;">
<h2>{{.Title}}</h2>
<p>Xin chào {{.Event.Passenger.Name}},</p>
<p>{{.Intro}}</p>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td><b>Mã đặt vé</b></td><td>{{.Event.BookingID}}</td></tr>
<tr><td><b>Tuyến</b></td><td>{{.Event.StartingPlace}} → {{.Event.DestinationPlace}}</td></tr>
<tr><td><b>Khởi hành</b></td><td>{{datetime .Event}}</td></tr>
<tr><td><b>Xe</b></td><td>{{.Event.BusNumber}}</td></tr>
<tr><td><b>Số ghế</b></td><td>{{.Event.SeatCount}}</td></tr>
<tr><td><b>Tổng tiền</b></td><td>{{.Event.TotalAmount.StringFixed 0}} VND</td></tr>
{{- if .Event.PaymentCode}}
<tr><td><b>Mã thanh toán</b></td><td>{{.Event.PaymentCode}}</td></tr>
{{- end}}
{{- if .Event.RefundAmount}}
<tr><td><b>Hoàn tiền</b></td><td>{{.Event.RefundAmount.StringFixed 0}} VND</td></tr>
{{- end}}
</table>
<p>Cảm ơn bạn đã sử dụng dịch vụ.</p>
</body></html>`))

type bookingMail struct {
	Title string
	Intro string
	Event models.BookingEvent
}

// NotificationService tells passengers about completed and cancelled bookings
type NotificationService struct {
	mailer Mailer
	sms    sms.Gateway
	logger *logrus.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(mailer Mailer, smsGateway sms.Gateway, logger *logrus.Logger) *NotificationService {
	return &NotificationService{mailer: mailer, sms: smsGateway, logger: logger}
}

// Subscribe attaches the service to the booking topics of bus
func (s *NotificationService) Subscribe(ctx context.Context, bus *events.Bus) error {
	if err := bus.Subscribe(ctx, models.TopicBookingCompleted, s.HandleBookingCompleted); err != nil {
		return err
	}
	return bus.Subscribe(ctx, models.TopicBookingCancelled, s.HandleBookingCancelled)
}

// HandleBookingCompleted sends the payment confirmation
func (s *NotificationService) HandleBookingCompleted(ctx context.Context, payload []byte) error {
	s.notify(ctx, payload, "Xác nhận đặt vé thành công", "Thanh toán của bạn đã được xác nhận. Thông tin chuyến đi:",
		func(e models.BookingEvent) string {
			return fmt.Sprintf("Ve %s-%s khoi hanh %s da thanh toan. Ma ve: %s",
				e.StartingPlace, e.DestinationPlace, e.DepartureTime.Format("15:04 02/01"), shortID(e))
		})
	return nil
}

// HandleBookingCancelled sends the cancellation notice, with the refund when
// money was returned
func (s *NotificationService) HandleBookingCancelled(ctx context.Context, payload []byte) error {
	s.notify(ctx, payload, "Xác nhận hủy vé", "Vé của bạn đã được hủy.",
		func(e models.BookingEvent) string {
			if e.RefundAmount == nil {
				return fmt.Sprintf("Ve %s da huy.", shortID(e))
			}
			return fmt.Sprintf("Ve %s da huy. Hoan tien: %s VND", shortID(e), e.RefundAmount.StringFixed(0))
		})
	return nil
}

// notify never returns an error; delivery problems are logged so the event is
// not redelivered
func (s *NotificationService) notify(ctx context.Context, payload []byte, title, intro string, smsText func(models.BookingEvent) string) {
	var event models.BookingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.WithError(err).Error("Failed to decode booking event")
		return
	}
	log := s.logger.WithFields(logrus.Fields{
		"booking_id": event.BookingID,
		"status":     event.Status,
	})

	if event.Passenger.Email != "" {
		body, err := RenderBookingMail(title, intro, event)
		if err != nil {
			log.WithError(err).Error("Failed to render booking email")
		} else if err := s.mailer.Send(ctx, event.Passenger.Email, title, body); err != nil {
			log.WithError(err).Warn("Failed to send booking email")
		}
	}

	if event.Passenger.Phone != "" && s.sms != nil {
		if err := s.sms.SendSMS(ctx, event.Passenger.Phone, smsText(event)); err != nil {
			log.WithError(err).Warn("Failed to send booking SMS")
		}
	}
}

// RenderBookingMail renders the HTML body of a booking notification
func RenderBookingMail(title, intro string, event models.BookingEvent) (string, error) {
	var buf bytes.Buffer
	if err := bookingMailTemplate.Execute(&buf, bookingMail{Title: title, Intro: intro, Event: event}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func shortID(e models.BookingEvent) string {
	return e.BookingID.String()[:8]
}
