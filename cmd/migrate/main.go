package main

import (
	"context"
	"log"
	"os"
	"time"

	"skincheck/adapters/postgres"
	"skincheck/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		databaseURL = os.Args[1]
	}
	if databaseURL == "" {
		log.Fatal("Usage: migrate <database_url> (or set DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema at version %s", runner.Version())

	repo := postgres.NewPredictionRepository(db)
	summary, err := repo.Summary(ctx, time.Time{})
	if err != nil {
		log.Fatalf("Failed to read prediction log: %v", err)
	}
	log.Printf("Prediction log holds %d predictions (%d positive) across %d models",
		summary.TotalPredictions, summary.PositiveCases, len(summary.ByModel))

	recent, err := repo.Recent(ctx, 5)
	if err != nil {
		log.Fatalf("Failed to read recent predictions: %v", err)
	}
	for _, p := range recent {
		log.Printf("  %s  %-18s %d via %s", p.CreatedAt.Format(time.RFC3339), p.Model, p.Prediction, p.Channel)
	}
}
