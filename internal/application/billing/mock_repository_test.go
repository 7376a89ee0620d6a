package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tms/backend/internal/domain/billing"
	"go.uber.org/zap"
)

// MockInvoiceRepository is a mock implementation of billing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, class billing.DocumentClass, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, class, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAllWithPayments(ctx context.Context, class billing.DocumentClass) ([]billing.Invoice, error) {
	args := m.Called(ctx, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByStatus(ctx context.Context, class billing.DocumentClass, status billing.PaymentStatus) ([]billing.Invoice, error) {
	args := m.Called(ctx, class, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, class billing.DocumentClass, invoiceNumber string) (bool, error) {
	args := m.Called(ctx, class, invoiceNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) FindLegacyNumbered(ctx context.Context, class billing.DocumentClass) ([]billing.Invoice, error) {
	args := m.Called(ctx, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) UpdateInvoiceNumber(ctx context.Context, class billing.DocumentClass, id uuid.UUID, invoiceNumber string) error {
	args := m.Called(ctx, class, id, invoiceNumber)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SummarizeByStatus(ctx context.Context, class billing.DocumentClass) ([]billing.StatusSummary, error) {
	args := m.Called(ctx, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.StatusSummary), args.Error(1)
}

// Verify interface compliance
var _ billing.InvoiceRepository = (*MockInvoiceRepository)(nil)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}
