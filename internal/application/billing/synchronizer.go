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

// DefaultSampleLimit caps the per-run change and error samples so a large
// drifted collection cannot produce unbounded report volume.
const DefaultSampleLimit = 25

// ChangeSample is a before/after summary of one corrected invoice.
type ChangeSample struct {
	InvoiceNumber      string
	OldAmountPaid      decimal.Decimal
	NewAmountPaid      decimal.Decimal
	OldRemainingAmount decimal.Decimal
	NewRemainingAmount decimal.Decimal
	OldPaymentStatus   billing.PaymentStatus
	NewPaymentStatus   billing.PaymentStatus
}

// ErrorSample captures the failure of a single invoice without aborting the run.
type ErrorSample struct {
	InvoiceNumber string
	Message       string
}

// SyncOutcome is the result of one reconciliation run over a document class.
type SyncOutcome struct {
	DocumentClass  billing.DocumentClass
	UpdatedCount   int
	UnchangedCount int
	ErrorCount     int
	Changes        []ChangeSample
	Errors         []ErrorSample
}

// InvoiceSynchronizer reconciles the stored derived fields of every invoice
// in a document class against its payment history. Runs are idempotent and
// safe to repeat at any time: a run that finds no drift writes nothing.
type InvoiceSynchronizer struct {
	repo        billing.InvoiceRepository
	calculator  *billing.StatusCalculator
	logger      *zap.Logger
	sampleLimit int
	nowFn       func() time.Time
}

// SynchronizerOption is a functional option for configuring InvoiceSynchronizer
type SynchronizerOption func(*InvoiceSynchronizer)

// WithSampleLimit bounds the change and error samples collected per run
func WithSampleLimit(limit int) SynchronizerOption {
	return func(s *InvoiceSynchronizer) {
		if limit >= 0 {
			s.sampleLimit = limit
		}
	}
}

// WithClock injects the time source used for overdue checks and paid dates
func WithClock(nowFn func() time.Time) SynchronizerOption {
	return func(s *InvoiceSynchronizer) {
		s.nowFn = nowFn
	}
}

// NewInvoiceSynchronizer creates a new InvoiceSynchronizer
func NewInvoiceSynchronizer(repo billing.InvoiceRepository, logger *zap.Logger, opts ...SynchronizerOption) *InvoiceSynchronizer {
	s := &InvoiceSynchronizer{
		repo:        repo,
		calculator:  billing.NewStatusCalculator(),
		logger:      logger,
		sampleLimit: DefaultSampleLimit,
		nowFn:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncCollection recomputes the derived state of every invoice in the given
// document class and persists corrections. A bulk-read failure is fatal for
// the run; a failure on a single invoice is counted and sampled but never
// stops the remainder of the batch.
func (s *InvoiceSynchronizer) SyncCollection(ctx context.Context, class billing.DocumentClass) (*SyncOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_sync", "sync_collection")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentClass, class.String())

	invoices, err := s.repo.FindAllWithPayments(ctx, class)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load %s invoices: %w", class, err)
	}

	now := s.nowFn()
	outcome := &SyncOutcome{DocumentClass: class}

	for i := range invoices {
		select {
		case <-ctx.Done():
			telemetry.RecordError(span, ctx.Err())
			return outcome, ctx.Err()
		default:
		}

		inv := &invoices[i]

		state, err := s.calculator.Compute(inv, decimal.Zero, now)
		if err != nil {
			s.recordFailure(outcome, inv, err)
			continue
		}

		if !inv.DriftsFrom(state) {
			outcome.UnchangedCount++
			continue
		}

		change := ChangeSample{
			InvoiceNumber:      inv.InvoiceNumber,
			OldAmountPaid:      inv.AmountPaid,
			NewAmountPaid:      state.AmountPaid,
			OldRemainingAmount: inv.RemainingAmount,
			NewRemainingAmount: state.RemainingAmount,
			OldPaymentStatus:   inv.PaymentStatus,
			NewPaymentStatus:   state.PaymentStatus,
		}

		inv.ApplyDerivedState(state, now)

		if err := s.repo.SaveWithLock(ctx, inv); err != nil {
			s.recordFailure(outcome, inv, err)
			continue
		}

		outcome.UpdatedCount++
		if len(outcome.Changes) < s.sampleLimit {
			outcome.Changes = append(outcome.Changes, change)
		}
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrUpdatedCount, outcome.UpdatedCount,
		telemetry.SpanAttrErrorCount, outcome.ErrorCount,
	)
	telemetry.SetOK(span)

	s.logger.Info("Invoice reconciliation run finished",
		zap.String("document_class", class.String()),
		zap.Int("total", len(invoices)),
		zap.Int("updated", outcome.UpdatedCount),
		zap.Int("unchanged", outcome.UnchangedCount),
		zap.Int("errors", outcome.ErrorCount),
	)

	return outcome, nil
}

func (s *InvoiceSynchronizer) recordFailure(outcome *SyncOutcome, inv *billing.Invoice, err error) {
	outcome.ErrorCount++
	if len(outcome.Errors) < s.sampleLimit {
		outcome.Errors = append(outcome.Errors, ErrorSample{
			InvoiceNumber: inv.InvoiceNumber,
			Message:       err.Error(),
		})
	}
	s.logger.Warn("Failed to reconcile invoice",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Error(err),
	)
}
