package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/database"
	"github.com/smarttransit/bus-reservation-backend/migrations"
)

func main() {
	var dbURLFlag string
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
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

	applied, err := database.Migrate(db, migrations.Files)
	for _, name := range applied {
		fmt.Printf("  applied %s\n", name)
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if len(applied) == 0 {
		fmt.Println("Schema is up to date.")
		return
	}
	fmt.Printf("Applied %d migration(s).\n", len(applied))
}
