// Command seed fills a development database with demo tenants and sanctions.
package main

import (
	"context"
	"flag"
	"log"

	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/seed"
)

func main() {
	tenants := flag.Int("tenants", 5, "Number of demo tenants to create")
	sanctions := flag.Int("sanctions", 20, "Number of sanctions per tenant")
	notes := flag.Int("notes", 5, "Number of notes per tenant")
	shouldClean := flag.Bool("clean", true, "Remove previous demo data before seeding")
	seedValue := flag.Int64("seed", 0, "Deterministic generator seed (0 for random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := seed.Guard(cfg.Env); err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	opts := seed.Options{
		Tenants:            *tenants,
		SanctionsPerTenant: *sanctions,
		NotesPerTenant:     *notes,
		Seed:               *seedValue,
	}
	s := seed.NewSeeder(db, opts)
	ctx := context.Background()

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(ctx, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d tenants, %d sanctions, %d notes", sum.Tenants, sum.Sanctions, sum.Notes)
}
