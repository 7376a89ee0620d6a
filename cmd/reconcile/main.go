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
		logLevel  string
	)

	flag.StringVar(&classFlag, "class", "both", "Document class to reconcile (regular, clearance, both)")
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

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	classes, err := selectClasses(classFlag, &cfg.Sync)
	if err != nil {
		log.Fatal("Invalid class selector", zap.String("class", classFlag), zap.Error(err))
	}
	if len(classes) == 0 {
		log.Warn("All selected document classes are disabled, nothing to do")
		return
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := persistence.NewGormInvoiceRepository(db.DB)
	synchronizer := billingapp.NewInvoiceSynchronizer(repo, log,
		billingapp.WithSampleLimit(cfg.Sync.SampleLimit))
	reporter := billingapp.NewReconciliationReporter(repo, log)

	// Per-record errors are reported in the outcome; only a whole-run
	// failure (unreachable store, cancellation) exits non-zero.
	for _, class := range classes {
		outcome, err := synchronizer.SyncCollection(ctx, class)
		if err != nil {
			log.Fatal("Reconciliation run failed",
				zap.String("document_class", class.String()),
				zap.Error(err))
		}
		printOutcome(outcome)
	}

	report, err := reporter.BuildReport(ctx, classes...)
	if err != nil {
		log.Fatal("Failed to build reconciliation report", zap.Error(err))
	}
	printReport(report)

	if stats, err := db.Stats(); err == nil {
		log.Debug("Connection pool after run",
			zap.Int("open", stats.OpenConnections),
			zap.Int("in_use", stats.InUse),
			zap.Int("idle", stats.Idle),
			zap.Int64("wait_count", stats.WaitCount),
			zap.Duration("wait_duration", stats.WaitDuration))
	}
}

// selectClasses maps the -class flag onto document classes, honoring the
// per-class enable switches from configuration.
func selectClasses(selector string, sync *config.SyncConfig) ([]billing.DocumentClass, error) {
	var classes []billing.DocumentClass
	switch selector {
	case "regular":
		classes = []billing.DocumentClass{billing.DocumentClassRegular}
	case "clearance":
		classes = []billing.DocumentClass{billing.DocumentClassClearance}
	case "both":
		classes = []billing.DocumentClass{billing.DocumentClassRegular, billing.DocumentClassClearance}
	default:
		return nil, fmt.Errorf("unknown document class %q", selector)
	}

	enabled := classes[:0]
	for _, class := range classes {
		switch class {
		case billing.DocumentClassRegular:
			if sync.RegularEnabled {
				enabled = append(enabled, class)
			}
		case billing.DocumentClassClearance:
			if sync.ClearanceEnabled {
				enabled = append(enabled, class)
			}
		}
	}
	return enabled, nil
}

func printOutcome(outcome *billingapp.SyncOutcome) {
	fmt.Printf("\n=== Reconciliation: %s ===\n", outcome.DocumentClass)
	fmt.Printf("updated: %d  unchanged: %d  errors: %d\n",
		outcome.UpdatedCount, outcome.UnchangedCount, outcome.ErrorCount)

	if len(outcome.Changes) > 0 {
		fmt.Println("corrected invoices:")
		for _, c := range outcome.Changes {
			fmt.Printf("  %-20s paid %s -> %s  remaining %s -> %s  status %s -> %s\n",
				c.InvoiceNumber,
				c.OldAmountPaid.StringFixed(2), c.NewAmountPaid.StringFixed(2),
				c.OldRemainingAmount.StringFixed(2), c.NewRemainingAmount.StringFixed(2),
				c.OldPaymentStatus, c.NewPaymentStatus)
		}
		if outcome.UpdatedCount > len(outcome.Changes) {
			fmt.Printf("  ... and %d more\n", outcome.UpdatedCount-len(outcome.Changes))
		}
	}
	if len(outcome.Errors) > 0 {
		fmt.Println("failed invoices:")
		for _, e := range outcome.Errors {
			fmt.Printf("  %-20s %s\n", e.InvoiceNumber, e.Message)
		}
		if outcome.ErrorCount > len(outcome.Errors) {
			fmt.Printf("  ... and %d more\n", outcome.ErrorCount-len(outcome.Errors))
		}
	}
}

func printReport(report *billingapp.Report) {
	fmt.Printf("\n=== Reconciliation report (%s) ===\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	for _, class := range report.Classes {
		fmt.Printf("\n%s:\n", class.DocumentClass)
		fmt.Printf("  %-12s %8s %14s %14s %14s\n", "status", "count", "total", "paid", "remaining")
		for _, row := range class.StatusRows {
			fmt.Printf("  %-12s %8d %14s %14s %14s\n",
				row.PaymentStatus, row.Count,
				row.Total.StringFixed(2), row.AmountPaid.StringFixed(2), row.RemainingAmount.StringFixed(2))
		}
		if len(class.Installments) > 0 {
			fmt.Println("  installment plans:")
			for _, entry := range class.Installments {
				next := "-"
				if entry.NextInstallmentDate != nil {
					next = entry.NextInstallmentDate.Format("2006-01-02")
				}
				fmt.Printf("    %-20s %d/%d x %s  next %s\n",
					entry.InvoiceNumber, entry.InstallmentsPaid, entry.InstallmentCount,
					entry.InstallmentAmount.StringFixed(2), next)
			}
		}
	}
}
