// Command migrate inspects and changes the mentorlink database schema outside
// of server startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"mentorlink/internal/config"
	"mentorlink/internal/database"

	"gorm.io/gorm"
)

const usage = `Usage:
  migrate status            Show the schema plan, migration log and missing tables
  migrate up                Apply pending SQL migrations
  migrate auto              Run GORM AutoMigrate for every mentorlink model
  migrate down <version>    Roll back one applied SQL migration
`

var errUsage = errors.New("invalid arguments, run without arguments for usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || !known(args[0]) {
		fmt.Fprint(stderr, usage)
		return 1
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	defer func() { _ = database.Close(db) }()

	if err := execute(ctx, db, cfg, args, stdout); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	return 0
}

func known(cmd string) bool {
	switch strings.ToLower(cmd) {
	case "status", "up", "auto", "down":
		return true
	}
	return false
}

func execute(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string, out io.Writer) error {
	switch strings.ToLower(args[0]) {
	case "status":
		plan, err := database.PlanSchema(cfg)
		if err != nil {
			return err
		}
		report, err := plan.Inspect(ctx, db)
		if err != nil {
			return err
		}
		printReport(out, report)
		return nil
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return err
		}
		fmt.Fprintln(out, "SQL migrations are up to date")
		return nil
	case "auto":
		auto := *cfg
		auto.DBSchemaMode = string(database.SchemaModeAuto)
		if err := database.ApplySchema(ctx, db, &auto); err != nil {
			return err
		}
		fmt.Fprintf(out, "AutoMigrate finished for %d tables\n", len(database.PersistentTables()))
		return nil
	case "down":
		if len(args) != 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return err
		}
		fmt.Fprintf(out, "Rolled back migration %06d\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printReport(out io.Writer, r *database.SchemaReport) {
	env := r.Plan.Env
	if env == "" {
		env = "unset"
	}
	fmt.Fprintf(out, "Schema mode %s (APP_ENV=%s): sql=%s automigrate=%s\n",
		r.Plan.Mode, env, yesNo(r.Plan.SQL), yesNo(r.Plan.AutoMigrate))

	fmt.Fprintf(out, "Migrations: %d applied, %d pending\n", len(r.AppliedVersions), len(r.Pending))
	for _, m := range r.Pending {
		fmt.Fprintf(out, "  pending %s\n", m.String())
	}

	if len(r.MissingTables) == 0 {
		fmt.Fprintln(out, "Tables: all present")
	} else {
		fmt.Fprintf(out, "Tables missing: %s\n", strings.Join(r.MissingTables, ", "))
	}

	if r.Ready() {
		fmt.Fprintln(out, "Schema is ready")
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
