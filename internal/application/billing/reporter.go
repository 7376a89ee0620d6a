package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tms/backend/internal/domain/billing"
	"github.com/tms/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InstallmentEntry is one invoice currently on an installment plan.
type InstallmentEntry struct {
	InvoiceNumber       string
	CustomerName        string
	InstallmentCount    int
	InstallmentsPaid    int
	InstallmentAmount   decimal.Decimal
	NextInstallmentDate *time.Time
}

// ClassReport aggregates one document class: per-status rows plus the
// installment listing.
type ClassReport struct {
	DocumentClass billing.DocumentClass
	StatusRows    []billing.StatusSummary
	Installments  []InstallmentEntry
}

// Report is the reconciliation report over the requested document classes.
// The reporter derives nothing itself; the numbers are only as correct as
// the preceding synchronization run left them.
type Report struct {
	GeneratedAt time.Time
	Classes     []ClassReport
}

// ReconciliationReporter builds read-only financial summaries from the
// record store.
type ReconciliationReporter struct {
	repo   billing.InvoiceRepository
	logger *zap.Logger
	nowFn  func() time.Time
}

// ReporterOption is a functional option for configuring ReconciliationReporter
type ReporterOption func(*ReconciliationReporter)

// WithReporterClock injects the time source used for report timestamps
func WithReporterClock(nowFn func() time.Time) ReporterOption {
	return func(r *ReconciliationReporter) {
		r.nowFn = nowFn
	}
}

// NewReconciliationReporter creates a new ReconciliationReporter
func NewReconciliationReporter(repo billing.InvoiceRepository, logger *zap.Logger, opts ...ReporterOption) *ReconciliationReporter {
	r := &ReconciliationReporter{
		repo:   repo,
		logger: logger,
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildReport aggregates the given document classes. Any failed query is
// fatal for the report: a partial report would misstate the books.
func (r *ReconciliationReporter) BuildReport(ctx context.Context, classes ...billing.DocumentClass) (*Report, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation_report", "build")
	defer span.End()

	report := &Report{GeneratedAt: r.nowFn()}

	for _, class := range classes {
		classReport, err := r.buildClassReport(ctx, class)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		report.Classes = append(report.Classes, *classReport)
	}

	telemetry.SetOK(span)
	return report, nil
}

func (r *ReconciliationReporter) buildClassReport(ctx context.Context, class billing.DocumentClass) (*ClassReport, error) {
	rows, err := r.repo.SummarizeByStatus(ctx, class)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s invoices: %w", class, err)
	}

	installments, err := r.repo.FindByStatus(ctx, class, billing.PaymentStatusInstallment)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s installment invoices: %w", class, err)
	}

	entries := make([]InstallmentEntry, 0, len(installments))
	for i := range installments {
		inv := &installments[i]
		entry := InstallmentEntry{
			InvoiceNumber:       inv.InvoiceNumber,
			CustomerName:        inv.CustomerName,
			InstallmentsPaid:    inv.InstallmentsPaid,
			NextInstallmentDate: inv.NextInstallmentDate,
		}
		if inv.InstallmentCount != nil {
			entry.InstallmentCount = *inv.InstallmentCount
		}
		if inv.InstallmentAmount != nil {
			entry.InstallmentAmount = *inv.InstallmentAmount
		}
		entries = append(entries, entry)
	}

	r.logger.Debug("Built class report",
		zap.String("document_class", class.String()),
		zap.Int("status_rows", len(rows)),
		zap.Int("installment_invoices", len(entries)),
	)

	return &ClassReport{
		DocumentClass: class,
		StatusRows:    rows,
		Installments:  entries,
	}, nil
}
