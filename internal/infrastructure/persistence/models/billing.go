package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tms/backend/internal/domain/billing"
	"github.com/tms/backend/internal/domain/shared"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The same model is mapped onto one table per document class (trip
// invoices and clearance invoices), selected with db.Table at query time,
// so it carries no TableName method.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber       string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	DocumentClass       billing.DocumentClass `gorm:"type:varchar(20);not null"`
	CustomerName        string                `gorm:"type:varchar(200);not null"`
	Subtotal            decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	TaxAmount           decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Total               decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	DueDate             time.Time             `gorm:"not null;index"`
	PaymentStatus       billing.PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AmountPaid          decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	RemainingAmount     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	InstallmentCount    *int
	InstallmentAmount   *decimal.Decimal `gorm:"type:decimal(18,4)"`
	InstallmentsPaid    int              `gorm:"not null;default:0"`
	NextInstallmentDate *time.Time
	PaidDate            *time.Time
	Payments            billing.Payments `gorm:"type:jsonb;default:'[]'"`
	Remark              string           `gorm:"type:text"`
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		InvoiceNumber:       m.InvoiceNumber,
		DocumentClass:       m.DocumentClass,
		CustomerName:        m.CustomerName,
		Subtotal:            m.Subtotal,
		TaxAmount:           m.TaxAmount,
		Total:               m.Total,
		DueDate:             m.DueDate,
		PaymentStatus:       m.PaymentStatus,
		AmountPaid:          m.AmountPaid,
		RemainingAmount:     m.RemainingAmount,
		InstallmentCount:    m.InstallmentCount,
		InstallmentAmount:   m.InstallmentAmount,
		InstallmentsPaid:    m.InstallmentsPaid,
		NextInstallmentDate: m.NextInstallmentDate,
		PaidDate:            m.PaidDate,
		Payments:            m.Payments,
		Remark:              m.Remark,
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.DocumentClass = inv.DocumentClass
	m.CustomerName = inv.CustomerName
	m.Subtotal = inv.Subtotal
	m.TaxAmount = inv.TaxAmount
	m.Total = inv.Total
	m.DueDate = inv.DueDate
	m.PaymentStatus = inv.PaymentStatus
	m.AmountPaid = inv.AmountPaid
	m.RemainingAmount = inv.RemainingAmount
	m.InstallmentCount = inv.InstallmentCount
	m.InstallmentAmount = inv.InstallmentAmount
	m.InstallmentsPaid = inv.InstallmentsPaid
	m.NextInstallmentDate = inv.NextInstallmentDate
	m.PaidDate = inv.PaidDate
	m.Payments = inv.Payments
	m.Remark = inv.Remark
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
