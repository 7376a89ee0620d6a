package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	billingapp "github.com/tms/backend/internal/application/billing"
	"github.com/tms/backend/internal/domain/billing"
	"github.com/tms/backend/internal/infrastructure/config"
	"github.com/tms/backend/internal/infrastructure/logger"
	"github.com/tms/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var (
		classFlag string
		dryRun    bool
		logLevel  string
	)

	flag.StringVar(&classFlag, "class", "both", "Document class to renumber (regular, clearance, both)")
	flag.BoolVar(&dryRun, "dry-run", false, "Compute and print assignments without writing them")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	classes, err := parseClasses(classFlag)
	if err != nil {
		log.Fatal("Invalid class selector", zap.String("class", classFlag), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := persistence.NewGormInvoiceRepository(db.DB)
	allocator := billingapp.NewNumberAllocator(repo, log)

	// Per-record conflicts and errors are printed; only a whole-run failure
	// exits non-zero.
	for _, class := range classes {
		outcome, err := allocator.Migrate(ctx, class, dryRun)
		if err != nil {
			log.Fatal("Identifier migration failed",
				zap.String("document_class", class.String()),
				zap.Error(err))
		}
		printMigration(outcome, dryRun)
	}
}

func parseClasses(selector string) ([]billing.DocumentClass, error) {
	switch selector {
	case "regular":
		return []billing.DocumentClass{billing.DocumentClassRegular}, nil
	case "clearance":
		return []billing.DocumentClass{billing.DocumentClassClearance}, nil
	case "both":
		return []billing.DocumentClass{billing.DocumentClassRegular, billing.DocumentClassClearance}, nil
	default:
		return nil, fmt.Errorf("unknown document class %q", selector)
	}
}

func printMigration(outcome *billingapp.MigrationOutcome, dryRun bool) {
	header := "Identifier migration"
	if dryRun {
		header += " (dry run)"
	}
	fmt.Printf("\n=== %s: %s ===\n", header, outcome.DocumentClass)
	fmt.Printf("migrated: %d  conflicts: %d  errors: %d\n",
		outcome.MigratedCount, outcome.ConflictCount, outcome.ErrorCount)

	currentDay := ""
	for _, a := range outcome.Assignments {
		if a.Day != currentDay {
			currentDay = a.Day
			fmt.Printf("  %s:\n", a.Day)
		}
		fmt.Printf("    %-20s -> %s\n", a.OldNumber, a.NewNumber)
	}
	for _, c := range outcome.Conflicts {
		fmt.Printf("  CONFLICT %-20s (tried %v)\n", c.OldNumber, c.Attempted)
	}
	for _, e := range outcome.Errors {
		fmt.Printf("  ERROR    %-20s %s\n", e.InvoiceNumber, e.Message)
	}
}
