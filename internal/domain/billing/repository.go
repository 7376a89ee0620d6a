package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatusSummary is one aggregation row of a document class grouped by payment status
type StatusSummary struct {
	PaymentStatus   PaymentStatus
	Count           int64
	Total           decimal.Decimal
	AmountPaid      decimal.Decimal
	RemainingAmount decimal.Decimal
}

// InvoiceRepository defines the record-store contract for invoices.
// The reconciliation core is written against this interface only; the
// persistence technology behind it is an injected collaborator.
type InvoiceRepository interface {
	// FindByID finds an invoice by its ID within a document class
	FindByID(ctx context.Context, class DocumentClass, id uuid.UUID) (*Invoice, error)

	// FindAllWithPayments loads every invoice of a document class together with
	// its payment history in a single bulk read
	FindAllWithPayments(ctx context.Context, class DocumentClass) ([]Invoice, error)

	// FindByStatus loads the invoices of a class currently in the given status
	FindByStatus(ctx context.Context, class DocumentClass, status PaymentStatus) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, inv *Invoice) error

	// SaveWithLock updates an invoice with an optimistic version check so a
	// reconciliation write never overwrites a payment recorded after the read.
	// Returns shared.ErrConcurrencyConflict when the stored version moved on.
	SaveWithLock(ctx context.Context, inv *Invoice) error

	// ExistsByInvoiceNumber checks whether an identifier is already assigned
	// within a document class
	ExistsByInvoiceNumber(ctx context.Context, class DocumentClass, invoiceNumber string) (bool, error)

	// FindLegacyNumbered loads invoices whose identifier does not match the
	// PREFIX-YYYYMMDD-NNN format, ordered by creation date ascending. The
	// ordering is load-bearing for migration conflict avoidance.
	FindLegacyNumbered(ctx context.Context, class DocumentClass) ([]Invoice, error)

	// UpdateInvoiceNumber rewrites the identifier of a single invoice
	UpdateInvoiceNumber(ctx context.Context, class DocumentClass, id uuid.UUID, invoiceNumber string) error

	// SummarizeByStatus aggregates counts and monetary sums per payment status
	SummarizeByStatus(ctx context.Context, class DocumentClass) ([]StatusSummary, error)
}
