package services

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// TicketService renders e-tickets for paid bookings
type TicketService struct {
	bookings *BookingService
}

// NewTicketService creates a new TicketService
func NewTicketService(bookings *BookingService) *TicketService {
	return &TicketService{bookings: bookings}
}

// RenderTicket returns the PDF e-ticket of a Completed booking
func (s *TicketService) RenderTicket(id uuid.UUID, userID *uuid.UUID) ([]byte, error) {
	detail, err := s.bookings.GetBooking(id, userID)
	if err != nil {
		return nil, err
	}
	if detail.Status != models.BookingStatusCompleted {
		return nil, &models.ConflictError{Resource: "booking", Message: "tickets are issued for completed bookings only"}
	}
	return TicketPDF(detail)
}

// TicketPDF lays out one booking on an A4 page
func TicketPDF(d *models.BookingDetail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+d.ID.String(), false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Booking      : " + d.ID.String(),
		"Passenger    : " + tr(d.Name),
		fmt.Sprintf("Age          : %d", d.Age),
		"Route        : " + tr(d.StartingPlace) + " - " + tr(d.DestinationPlace),
		"Departure    : " + d.DepartureTime.Format("2006-01-02 15:04"),
		"Arrival      : " + d.ArrivalTime.Format("2006-01-02 15:04"),
		"Bus          : " + d.BusNumber + " (" + tr(d.BusTypeName) + ")",
		fmt.Sprintf("Seats        : %d", d.SeatCount),
		"Fare / seat  : " + d.FarePerSeat.StringFixed(0) + " VND",
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Total: "+d.TotalAmount.StringFixed(0)+" VND")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Please present this ticket at boarding. Arrive at least 15 minutes before departure.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}
