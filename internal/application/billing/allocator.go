package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tms/backend/internal/domain/billing"
	"github.com/tms/backend/internal/domain/shared"
	"github.com/tms/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// maxDailySequence is the highest sequence the 3-digit identifier segment
// can carry for one calendar day.
const maxDailySequence = 999

// MigrationAssignment records one successfully renumbered invoice.
type MigrationAssignment struct {
	Day       string
	OldNumber string
	NewNumber string
}

// MigrationConflict records an invoice left unmigrated because both the
// computed identifier and its retry were already taken.
type MigrationConflict struct {
	Day       string
	OldNumber string
	Attempted []string
}

// MigrationOutcome is the result of one legacy-identifier migration pass.
type MigrationOutcome struct {
	DocumentClass billing.DocumentClass
	MigratedCount int
	ConflictCount int
	ErrorCount    int
	Assignments   []MigrationAssignment
	Conflicts     []MigrationConflict
	Errors        []ErrorSample
}

// NumberAllocator assigns sequential document identifiers of the form
// PREFIX-YYYYMMDD-NNN, where the sequence restarts at 1 per calendar day
// per document class. It never overwrites an existing identifier.
type NumberAllocator struct {
	repo   billing.InvoiceRepository
	logger *zap.Logger
}

// NewNumberAllocator creates a new NumberAllocator
func NewNumberAllocator(repo billing.InvoiceRepository, logger *zap.Logger) *NumberAllocator {
	return &NumberAllocator{repo: repo, logger: logger}
}

// FormatIdentifier renders the canonical identifier for a document class,
// creation date, and daily sequence number.
func FormatIdentifier(class billing.DocumentClass, createdAt time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-%03d", class.NumberPrefix(), createdAt.Format("20060102"), sequence)
}

// Allocate computes the identifier for the given creation date and sequence
// index. When the computed identifier is already taken it retries once with
// the next sequence; a second collision is reported as a conflict, never
// resolved by overwriting.
func (a *NumberAllocator) Allocate(ctx context.Context, class billing.DocumentClass, createdAt time.Time, sequence int) (string, error) {
	if class.NumberPrefix() == "" {
		return "", fmt.Errorf("%w: document class %s has no identifier prefix", shared.ErrInvalidInput, class)
	}
	if sequence < 1 || sequence > maxDailySequence {
		return "", fmt.Errorf("%w: sequence %d out of range", shared.ErrInvalidInput, sequence)
	}

	for _, seq := range []int{sequence, sequence + 1} {
		if seq > maxDailySequence {
			break
		}
		id := FormatIdentifier(class, createdAt, seq)
		exists, err := a.repo.ExistsByInvoiceNumber(ctx, class, id)
		if err != nil {
			return "", fmt.Errorf("failed to check identifier %s: %w", id, err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", shared.ErrIdentifierConflict
}

// NextNumber finds the lowest free identifier for a document created now.
// It is used when a new document needs an identifier outside of migration.
func (a *NumberAllocator) NextNumber(ctx context.Context, class billing.DocumentClass, now time.Time) (string, error) {
	if class.NumberPrefix() == "" {
		return "", fmt.Errorf("%w: document class %s has no identifier prefix", shared.ErrInvalidInput, class)
	}

	for seq := 1; seq <= maxDailySequence; seq++ {
		id := FormatIdentifier(class, now, seq)
		exists, err := a.repo.ExistsByInvoiceNumber(ctx, class, id)
		if err != nil {
			return "", fmt.Errorf("failed to check identifier %s: %w", id, err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", shared.ErrIdentifierConflict
}

// Migrate renumbers every legacy-format invoice of a document class. Records
// are processed in creation order, grouped by calendar day, with sequences
// assigned from 1 within each day. A collision retries once with the next
// sequence; a second collision leaves the record unmigrated and reports a
// conflict. Per-record failures never abort the pass. With dryRun set the
// pass computes and reports assignments without writing any of them.
func (a *NumberAllocator) Migrate(ctx context.Context, class billing.DocumentClass, dryRun bool) (*MigrationOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "number_allocator", "migrate")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentClass, class.String())

	records, err := a.repo.FindLegacyNumbered(ctx, class)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load legacy-numbered %s invoices: %w", class, err)
	}

	outcome := &MigrationOutcome{DocumentClass: class}

	// Identifiers assigned earlier in this pass count as taken even before
	// they are written, so a dry run reports the same plan a real run would
	// execute.
	assigned := make(map[string]bool)

	currentDay := ""
	nextSeq := 1

	for i := range records {
		select {
		case <-ctx.Done():
			telemetry.RecordError(span, ctx.Err())
			return outcome, ctx.Err()
		default:
		}

		rec := &records[i]
		day := rec.CreatedAt.Format("20060102")
		if day != currentDay {
			currentDay = day
			nextSeq = 1
		}

		newNumber, used, err := a.assignWithinDay(ctx, class, rec.CreatedAt, nextSeq, assigned)
		if err != nil {
			if errors.Is(err, shared.ErrIdentifierConflict) {
				outcome.ConflictCount++
				outcome.Conflicts = append(outcome.Conflicts, MigrationConflict{
					Day:       day,
					OldNumber: rec.InvoiceNumber,
					Attempted: []string{
						FormatIdentifier(class, rec.CreatedAt, nextSeq),
						FormatIdentifier(class, rec.CreatedAt, nextSeq+1),
					},
				})
				a.logger.Warn("Identifier conflict during migration",
					zap.String("invoice_number", rec.InvoiceNumber),
					zap.String("day", day),
				)
				// Both attempted identifiers are taken, move past them
				nextSeq += 2
			} else {
				outcome.ErrorCount++
				outcome.Errors = append(outcome.Errors, ErrorSample{
					InvoiceNumber: rec.InvoiceNumber,
					Message:       err.Error(),
				})
				a.logger.Warn("Failed to migrate invoice identifier",
					zap.String("invoice_number", rec.InvoiceNumber),
					zap.Error(err),
				)
			}
			continue
		}

		if !dryRun {
			if err := a.repo.UpdateInvoiceNumber(ctx, class, rec.ID, newNumber); err != nil {
				outcome.ErrorCount++
				outcome.Errors = append(outcome.Errors, ErrorSample{
					InvoiceNumber: rec.InvoiceNumber,
					Message:       err.Error(),
				})
				a.logger.Warn("Failed to write migrated identifier",
					zap.String("invoice_number", rec.InvoiceNumber),
					zap.String("new_number", newNumber),
					zap.Error(err),
				)
				continue
			}
		}

		assigned[newNumber] = true
		outcome.MigratedCount++
		outcome.Assignments = append(outcome.Assignments, MigrationAssignment{
			Day:       day,
			OldNumber: rec.InvoiceNumber,
			NewNumber: newNumber,
		})
		nextSeq = used + 1
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrUpdatedCount, outcome.MigratedCount,
		telemetry.SpanAttrErrorCount, outcome.ErrorCount,
	)
	telemetry.SetOK(span)

	a.logger.Info("Identifier migration pass finished",
		zap.String("document_class", class.String()),
		zap.Bool("dry_run", dryRun),
		zap.Int("total", len(records)),
		zap.Int("migrated", outcome.MigratedCount),
		zap.Int("conflicts", outcome.ConflictCount),
		zap.Int("errors", outcome.ErrorCount),
	)

	return outcome, nil
}

// assignWithinDay finds a free identifier starting at seq, retrying once on
// collision. Returns the identifier and the sequence it used.
func (a *NumberAllocator) assignWithinDay(ctx context.Context, class billing.DocumentClass, createdAt time.Time, seq int, assigned map[string]bool) (string, int, error) {
	for _, candidate := range []int{seq, seq + 1} {
		if candidate > maxDailySequence {
			break
		}
		id := FormatIdentifier(class, createdAt, candidate)
		if assigned[id] {
			continue
		}
		exists, err := a.repo.ExistsByInvoiceNumber(ctx, class, id)
		if err != nil {
			return "", 0, fmt.Errorf("failed to check identifier %s: %w", id, err)
		}
		if !exists {
			return id, candidate, nil
		}
	}
	return "", 0, shared.ErrIdentifierConflict
}
