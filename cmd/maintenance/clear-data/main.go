package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
)

// Child tables first; TRUNCATE ... CASCADE handles the rest
var tables = []string{
	"cancellations",
	"payment_audits",
	"payments",
	"bookings",
	"schedules",
	"price_lists",
	"buses",
	"routes",
	"refresh_tokens",
	"login_attempts",
	"audit_logs",
	"users",
}

func main() {
	var (
		dbURLFlag   string
		keepCatalog bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&keepCatalog, "keep-catalog", false, "only clear bookings, payments, payment audits and cancellations")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	targets := tables
	if keepCatalog {
		targets = tables[:4]
	}

	fmt.Printf("Connected to database. Truncating %s...\n", strings.Join(targets, ", "))
	if _, err := db.Exec("TRUNCATE TABLE " + strings.Join(targets, ", ") + " CASCADE"); err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}
	if keepCatalog {
		// Seats go back to full capacity once every booking is gone
		if _, err := db.Exec(`UPDATE schedules s SET available_seats = b.total_seats FROM buses b WHERE b.id = s.bus_id`); err != nil {
			log.Fatalf("failed to reset available seats: %v", err)
		}
	}

	fmt.Println("Post-clear row counts:")
	for _, t := range targets {
		var count int
		if err := db.Get(&count, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
