package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/tms/backend/internal/domain/billing"
	"github.com/tms/backend/internal/domain/shared"
	"github.com/tms/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	// TableTripInvoices stores invoices issued for completed trips.
	TableTripInvoices = "trip_invoices"
	// TableClearanceInvoices stores invoices issued for customs clearances.
	TableClearanceInvoices = "clearance_invoices"
)

// tableFor resolves the backing table of a document class. Trip sheets
// carry identifiers but are not stored as invoices, so only invoice
// classes resolve to a table.
func tableFor(class billing.DocumentClass) (string, error) {
	switch class {
	case billing.DocumentClassRegular:
		return TableTripInvoices, nil
	case billing.DocumentClassClearance:
		return TableClearanceInvoices, nil
	default:
		return "", fmt.Errorf("%w: document class %s has no invoice table", shared.ErrInvalidInput, class)
	}
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM.
// One model serves both invoice tables; the table is selected per call
// from the document class.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID within a document class
func (r *GormInvoiceRepository) FindByID(ctx context.Context, class billing.DocumentClass, id uuid.UUID) (*billing.Invoice, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Table(table).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllWithPayments loads every invoice of a document class. Payment
// history rides in the payments JSONB column, so one bulk read returns
// complete aggregates without follow-up queries.
func (r *GormInvoiceRepository) FindAllWithPayments(ctx context.Context, class billing.DocumentClass) ([]billing.Invoice, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).Table(table).
		Order("created_at ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindByStatus loads the invoices of a class currently in the given status
func (r *GormInvoiceRepository) FindByStatus(ctx context.Context, class billing.DocumentClass, status billing.PaymentStatus) ([]billing.Invoice, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).Table(table).
		Where("payment_status = ?", status).
		Order("created_at ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	table, err := tableFor(inv.DocumentClass)
	if err != nil {
		return err
	}
	model := models.InvoiceModelFromDomain(inv)
	return r.db.WithContext(ctx).Table(table).Save(model).Error
}

// SaveWithLock updates an invoice with an optimistic version check.
// All columns are written explicitly so a correction to zero is not
// skipped as an empty field.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	table, err := tableFor(inv.DocumentClass)
	if err != nil {
		return err
	}
	model := models.InvoiceModelFromDomain(inv)
	result := r.db.WithContext(ctx).Table(table).
		Where("id = ? AND version = ?", inv.ID, inv.Version-1).
		Select("*").Omit("id", "created_at").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// ExistsByInvoiceNumber checks whether an identifier is already assigned
// within a document class
func (r *GormInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, class billing.DocumentClass, invoiceNumber string) (bool, error) {
	table, err := tableFor(class)
	if err != nil {
		return false, err
	}
	var count int64
	if err := r.db.WithContext(ctx).Table(table).
		Where("invoice_number = ?", invoiceNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindLegacyNumbered loads invoices whose identifier does not match the
// PREFIX-YYYYMMDD-NNN format, ordered by creation date ascending. The
// ordering drives deterministic sequence assignment during migration.
func (r *GormInvoiceRepository) FindLegacyNumbered(ctx context.Context, class billing.DocumentClass) ([]billing.Invoice, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}
	// LIKE wildcards cannot require digits, so format validation happens
	// in Go. A number with the right width but letters in the date or
	// sequence segment is still legacy.
	structured := structuredNumberPattern(class.NumberPrefix())
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).Table(table).
		Order("created_at ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, 0, len(invoiceModels))
	for _, model := range invoiceModels {
		if structured.MatchString(model.InvoiceNumber) {
			continue
		}
		invoices = append(invoices, *model.ToDomain())
	}
	return invoices, nil
}

func structuredNumberPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `-[0-9]{8}-[0-9]{3}$`)
}

// UpdateInvoiceNumber rewrites the identifier of a single invoice
func (r *GormInvoiceRepository) UpdateInvoiceNumber(ctx context.Context, class billing.DocumentClass, id uuid.UUID, invoiceNumber string) error {
	table, err := tableFor(class)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Table(table).
		Where("id = ?", id).
		Update("invoice_number", invoiceNumber)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SummarizeByStatus aggregates counts and monetary sums per payment status
func (r *GormInvoiceRepository) SummarizeByStatus(ctx context.Context, class billing.DocumentClass) ([]billing.StatusSummary, error) {
	table, err := tableFor(class)
	if err != nil {
		return nil, err
	}
	var summaries []billing.StatusSummary
	if err := r.db.WithContext(ctx).Table(table).
		Select("payment_status",
			"COUNT(*) AS count",
			"COALESCE(SUM(total), 0) AS total",
			"COALESCE(SUM(amount_paid), 0) AS amount_paid",
			"COALESCE(SUM(remaining_amount), 0) AS remaining_amount").
		Group("payment_status").
		Order("payment_status ASC").
		Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}
