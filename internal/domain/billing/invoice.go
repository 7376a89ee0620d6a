package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tms/backend/internal/domain/shared"
)

// PaymentStatus represents the payment state of an invoice
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "PENDING"     // Created, nothing received yet
	PaymentStatusSent        PaymentStatus = "SENT"        // Delivered to the customer, nothing received yet
	PaymentStatusPartial     PaymentStatus = "PARTIAL"     // Partially paid without an installment plan
	PaymentStatusInstallment PaymentStatus = "INSTALLMENT" // Partially paid under an installment plan
	PaymentStatusOverdue     PaymentStatus = "OVERDUE"     // Past due date with an outstanding balance
	PaymentStatusPaid        PaymentStatus = "PAID"        // Fully paid
	PaymentStatusCancelled   PaymentStatus = "CANCELLED"   // Cancelled, no further payment expected
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusSent, PaymentStatusPartial,
		PaymentStatusInstallment, PaymentStatusOverdue, PaymentStatusPaid,
		PaymentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsSettled returns true if no further money is expected for this status
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusPaid || s == PaymentStatusCancelled
}

// DocumentClass partitions billable documents into their parallel collections
type DocumentClass string

const (
	DocumentClassRegular   DocumentClass = "REGULAR"   // Trip invoices
	DocumentClassClearance DocumentClass = "CLEARANCE" // Customs-clearance invoices
	DocumentClassTripSheet DocumentClass = "TRIP"      // Trip documents (numbering only, not billable)
)

// IsValid checks if the document class is valid
func (c DocumentClass) IsValid() bool {
	switch c {
	case DocumentClassRegular, DocumentClassClearance, DocumentClassTripSheet:
		return true
	}
	return false
}

// IsInvoiceClass returns true for classes that carry billable invoices
func (c DocumentClass) IsInvoiceClass() bool {
	return c == DocumentClassRegular || c == DocumentClassClearance
}

// String returns the string representation of DocumentClass
func (c DocumentClass) String() string {
	return string(c)
}

// NumberPrefix returns the identifier prefix used for documents of this class
func (c DocumentClass) NumberPrefix() string {
	switch c {
	case DocumentClassRegular:
		return "INV"
	case DocumentClassClearance:
		return "CCL"
	case DocumentClassTripSheet:
		return "TRP"
	}
	return ""
}

// Payment represents money received against an invoice.
// It is an immutable value object within the Invoice aggregate, stored as JSONB.
// Payments are appended by the payment-recording workflow and never mutated or
// deleted by the reconciliation core.
type Payment struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      string          `json:"method,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

// Payments is a slice of Payment that implements GORM Scanner/Valuer for JSONB storage
type Payments []Payment

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Payments) Scan(value interface{}) error {
	if value == nil {
		*p = Payments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Payments: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// Total returns the sum of all payment amounts
func (p Payments) Total() decimal.Decimal {
	total := decimal.Zero
	for _, payment := range p {
		total = total.Add(payment.Amount)
	}
	return total
}

// LatestDate returns the most recent payment date, or false when no payments exist
func (p Payments) LatestDate() (time.Time, bool) {
	if len(p) == 0 {
		return time.Time{}, false
	}
	latest := p[0].PaymentDate
	for _, payment := range p[1:] {
		if payment.PaymentDate.After(latest) {
			latest = payment.PaymentDate
		}
	}
	return latest, true
}

// NewPayment creates a new payment record
func NewPayment(amount decimal.Decimal, paymentDate time.Time, method, reference string) *Payment {
	return &Payment{
		ID:          uuid.New(),
		Amount:      amount,
		PaymentDate: paymentDate,
		Method:      method,
		Reference:   reference,
	}
}

// Invoice represents a billable document aggregate root.
// The same shape serves trip invoices and customs-clearance invoices; the two
// collections are distinguished by DocumentClass and stored in parallel tables.
//
// Total, Subtotal, TaxAmount and DueDate are fixed at creation. AmountPaid,
// RemainingAmount, PaymentStatus and the installment progress fields are derived
// from the payment history and owned exclusively by the reconciliation core.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber       string
	DocumentClass       DocumentClass
	CustomerName        string
	Subtotal            decimal.Decimal
	TaxAmount           decimal.Decimal
	Total               decimal.Decimal
	DueDate             time.Time
	PaymentStatus       PaymentStatus
	AmountPaid          decimal.Decimal
	RemainingAmount     decimal.Decimal
	InstallmentCount    *int
	InstallmentAmount   *decimal.Decimal
	InstallmentsPaid    int
	NextInstallmentDate *time.Time
	PaidDate            *time.Time
	Payments            Payments
	Remark              string
}

// NewInvoice creates a new invoice in its initial state
func NewInvoice(
	documentClass DocumentClass,
	invoiceNumber string,
	customerName string,
	subtotal decimal.Decimal,
	taxAmount decimal.Decimal,
	total decimal.Decimal,
	dueDate time.Time,
) (*Invoice, error) {
	if !documentClass.IsInvoiceClass() {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_CLASS", fmt.Sprintf("Document class %s cannot carry invoices", documentClass))
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total amount cannot be negative")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date is required")
	}

	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		DocumentClass:     documentClass,
		CustomerName:      customerName,
		Subtotal:          subtotal,
		TaxAmount:         taxAmount,
		Total:             total,
		DueDate:           dueDate,
		PaymentStatus:     PaymentStatusPending,
		AmountPaid:        decimal.Zero,
		RemainingAmount:   total,
		Payments:          Payments{},
	}, nil
}

// ConfigureInstallmentPlan sets a fixed installment schedule on the invoice
func (inv *Invoice) ConfigureInstallmentPlan(count int, amount decimal.Decimal) error {
	if count < 1 {
		return shared.NewDomainError("INVALID_INSTALLMENT_PLAN", "Installment count must be at least 1")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_INSTALLMENT_PLAN", "Installment amount must be positive")
	}
	inv.InstallmentCount = &count
	inv.InstallmentAmount = &amount
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// HasInstallmentPlan returns true when a usable installment plan is configured
func (inv *Invoice) HasInstallmentPlan() bool {
	return inv.InstallmentCount != nil && *inv.InstallmentCount > 0 &&
		inv.InstallmentAmount != nil && inv.InstallmentAmount.IsPositive()
}

// RecordPayment appends a payment to the invoice history.
// The derived fields are not touched here; reconciliation recomputes them.
func (inv *Invoice) RecordPayment(amount decimal.Decimal, paymentDate time.Time, method, reference string) (*Payment, error) {
	if inv.PaymentStatus == PaymentStatusCancelled {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot record a payment on a cancelled invoice")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if paymentDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_DATE", "Payment date is required")
	}

	payment := NewPayment(amount, paymentDate, method, reference)
	inv.Payments = append(inv.Payments, *payment)
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return payment, nil
}

// MarkSent marks a pending invoice as delivered to the customer
func (inv *Invoice) MarkSent() error {
	if inv.PaymentStatus != PaymentStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot mark invoice in %s status as sent", inv.PaymentStatus))
	}
	inv.PaymentStatus = PaymentStatusSent
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// Cancel cancels the invoice (only if no payments have been recorded)
func (inv *Invoice) Cancel(reason string) error {
	if inv.PaymentStatus == PaymentStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a fully paid invoice")
	}
	if len(inv.Payments) > 0 {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel an invoice with recorded payments")
	}
	inv.PaymentStatus = PaymentStatusCancelled
	inv.Remark = reason
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// ApplyDerivedState writes a calculator result back onto the invoice.
// PaidDate is an append-only fact: it is set the first time the invoice becomes
// fully paid and never cleared by later recomputation.
func (inv *Invoice) ApplyDerivedState(state DerivedState, now time.Time) {
	inv.AmountPaid = state.AmountPaid
	inv.RemainingAmount = state.RemainingAmount
	inv.PaymentStatus = state.PaymentStatus
	inv.InstallmentsPaid = state.InstallmentsPaid
	inv.NextInstallmentDate = state.NextInstallmentDate
	if state.IsFullyPaid && inv.PaidDate == nil {
		paidAt := now
		inv.PaidDate = &paidAt
	}
	inv.UpdatedAt = now
	inv.IncrementVersion()
}

// DriftsFrom reports whether any of the five derived fields differ from the
// given calculator result. Dates compare by instant, not by location.
func (inv *Invoice) DriftsFrom(state DerivedState) bool {
	if !inv.AmountPaid.Equal(state.AmountPaid) {
		return true
	}
	if !inv.RemainingAmount.Equal(state.RemainingAmount) {
		return true
	}
	if inv.PaymentStatus != state.PaymentStatus {
		return true
	}
	if inv.InstallmentsPaid != state.InstallmentsPaid {
		return true
	}
	return !datesEqual(inv.NextInstallmentDate, state.NextInstallmentDate)
}

func datesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// IsFullyPaid returns true when payments cover the invoice total
func (inv *Invoice) IsFullyPaid() bool {
	return inv.AmountPaid.GreaterThanOrEqual(inv.Total)
}

// IsOverdue returns true if the invoice is past due with an outstanding balance
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return now.After(inv.DueDate) && inv.RemainingAmount.IsPositive()
}

// PaymentCount returns the number of payments recorded
func (inv *Invoice) PaymentCount() int {
	return len(inv.Payments)
}
