// Command cleanup declines duplicate active mentorship requests so that each
// student/mentor pair keeps at most one pending or accepted request.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mentorlink/internal/cache"
	"mentorlink/internal/config"
	"mentorlink/internal/database"
	"mentorlink/internal/middleware"
	"mentorlink/internal/repository"
	"mentorlink/internal/service"

	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dry := fs.Bool("dry", false, "report duplicates without declining them")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	url, err := config.LoadDatabaseURL()
	if err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 1
	}

	db, err := database.Open(url)
	if err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 1
	}
	defer func() { _ = database.Close(db) }()

	var capacity *cache.CapacityCache
	if addr := strings.TrimSpace(os.Getenv("REDIS_URL")); addr != "" {
		if rdb := cache.ConnectOptional(ctx, addr); rdb != nil {
			defer func() { _ = rdb.Close() }()
			capacity = cache.NewCapacityCache(rdb, 0)
		}
	}

	if err := execute(ctx, db, capacity, *dry, stdout); err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, db *gorm.DB, capacity *cache.CapacityCache, dry bool, out io.Writer) error {
	svc := service.NewCleanupService(repository.NewMentorshipRepository(db), capacity)
	report, err := svc.DeclineDuplicates(ctx, dry)
	if err != nil {
		return err
	}

	if dry {
		fmt.Fprintf(out, "Dry run: %d duplicate mentorship requests would be declined\n", len(report.DeclinedIDs))
	} else {
		fmt.Fprintf(out, "Declined %d duplicate mentorship requests\n", report.Declined)
	}
	for _, id := range report.DeclinedIDs {
		middleware.Logger.DebugContext(ctx, "duplicate request", "request_id", id, "dry_run", dry)
	}
	return nil
}
