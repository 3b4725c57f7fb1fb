package main

import (
	"flag"
	"log"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/internal/logging"
	"github.com/smarttransit/bus-reservation-backend/internal/services"
)

// Recomputes every schedule's available seats from its active bookings
func main() {
	dryRun := flag.Bool("dry-run", false, "report drifted schedules without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, closer := logging.New(cfg.Server, cfg.Log)
	defer closer.Close()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	schedules := database.NewScheduleRepository(db)

	if *dryRun {
		drifted, err := schedules.DriftedSchedules()
		if err != nil {
			logger.Fatalf("Failed to inspect schedules: %v", err)
		}
		for _, d := range drifted {
			logger.WithFields(logrus.Fields{
				"schedule_id": d.ScheduleID,
				"stored":      d.StoredSeats,
				"derived":     d.TotalSeats - d.BookedSeats,
			}).Warn("Available seats drifted")
		}
		logger.WithField("schedules", len(drifted)).Info("Dry run finished")
		return
	}

	changed, err := services.NewInventoryTracker(schedules, logger).Reconcile()
	if err != nil {
		logger.Fatalf("Reconciliation failed: %v", err)
	}
	logger.WithField("schedules", changed).Info("Seat reconciliation finished")
}
