// Package billing provides domain models for trip and customs-clearance invoicing.
//
// This package implements the invoicing bounded context, which is responsible for:
//   - Representing billable documents (trip invoices and clearance invoices) with
//     their totals, due dates and recorded payment history
//   - Deriving the authoritative financial state of an invoice from its payments
//     (amount paid, remaining amount, payment status, installment progress)
//   - Defining the repository contract the batch reconciliation relies on
//
// Key Aggregates:
//   - Invoice: A billable document with a fixed total and an append-only payment history
//
// Value Objects:
//   - Payment: Immutable record of money received against an invoice
//   - PaymentStatus: Enumeration of invoice payment states
//   - DocumentClass: Partition of invoices into trip vs. clearance collections
//
// The derivation logic lives in StatusCalculator, a pure function over an invoice,
// its payments and an injected "now" so that overdue and installment projections
// are deterministic under test.
package billing
