// Command main runs the database seeder for MentorLink.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"mentorlink/internal/config"
	"mentorlink/internal/database"
	"mentorlink/internal/seed"
)

func main() {
	alumni := flag.Int("alumni", 15, "Number of alumni to create")
	students := flag.Int("students", 40, "Number of students to create")
	duplicates := flag.Int("duplicates", 5, "Number of pairs given a duplicate active request")
	clean := flag.Bool("clean", true, "Clean database before seeding")
	fast := flag.Bool("fast", false, "Store the demo password unhashed (local development only)")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Printf("Target: %d alumni, %d students, %d duplicates, clean=%v\n", *alumni, *students, *duplicates, *clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	summary, err := seed.Run(db.WithContext(ctx), seed.Options{
		Alumni:         *alumni,
		Students:       *students,
		Duplicates:     *duplicates,
		Clean:          *clean,
		SkipBcrypt:     *fast,
		RandSeed:       *randSeed,
		MentorCapacity: cfg.MentorCapacity,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d alumni, %d students, %d requests (%d duplicates), %d messages",
		summary.Alumni, summary.Students, summary.Requests, summary.Duplicates, summary.Messages)
	log.Printf("📧 All demo users have the password: %s", seed.DemoPassword)
}
