package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tms/backend/internal/domain/shared"
)

// epsilon is the tolerance under which a remaining balance is treated as zero.
// Summing many decimal payments that originated as binary floats accumulates
// drift; without the tolerance a fully paid invoice never reaches exact zero.
var epsilon = decimal.NewFromFloat(0.01)

// DerivedState is the authoritative financial state of an invoice, computed
// from its total, its payment history and an optional in-flight payment.
type DerivedState struct {
	AmountPaid          decimal.Decimal
	RemainingAmount     decimal.Decimal
	PaymentStatus       PaymentStatus
	InstallmentsPaid    int
	NextInstallmentDate *time.Time
	IsFullyPaid         bool
	IsOverdue           bool
}

// StatusCalculator derives invoice payment state. It is a pure function holder:
// no I/O and no wall clock; "now" is always passed in by the caller.
type StatusCalculator struct{}

// NewStatusCalculator creates a new StatusCalculator
func NewStatusCalculator() *StatusCalculator {
	return &StatusCalculator{}
}

// Compute derives the financial state of the invoice from its payments plus an
// optional pending payment amount not yet persisted (pass decimal.Zero when
// reconciling stored state). It never mutates the invoice.
func (c *StatusCalculator) Compute(inv *Invoice, pendingPayment decimal.Decimal, now time.Time) (DerivedState, error) {
	if inv.Total.IsNegative() {
		return DerivedState{}, shared.ErrInvalidInput
	}
	if pendingPayment.IsNegative() {
		return DerivedState{}, shared.ErrInvalidInput
	}
	for _, p := range inv.Payments {
		if p.Amount.IsNegative() {
			return DerivedState{}, shared.ErrInvalidInput
		}
	}

	amountPaid := inv.Payments.Total().Add(pendingPayment)

	rawRemaining := inv.Total.Sub(amountPaid)
	remaining := rawRemaining
	if rawRemaining.Abs().LessThan(epsilon) {
		remaining = decimal.Zero
	} else if rawRemaining.IsNegative() {
		remaining = decimal.Zero
	}

	state := DerivedState{
		AmountPaid:      amountPaid,
		RemainingAmount: remaining,
		IsFullyPaid:     remaining.IsZero() || amountPaid.GreaterThanOrEqual(inv.Total),
		IsOverdue:       now.After(inv.DueDate) && remaining.IsPositive(),
	}

	switch {
	case remaining.IsZero() || amountPaid.GreaterThanOrEqual(inv.Total):
		state.PaymentStatus = PaymentStatusPaid
		if inv.HasInstallmentPlan() {
			// Force the plan to completion even when the per-installment
			// arithmetic would land short of the configured count.
			state.InstallmentsPaid = *inv.InstallmentCount
		}

	case amountPaid.IsPositive():
		if inv.HasInstallmentPlan() {
			state.PaymentStatus = PaymentStatusInstallment
			paid := int(amountPaid.Div(*inv.InstallmentAmount).Floor().IntPart())
			if paid > *inv.InstallmentCount {
				paid = *inv.InstallmentCount
			}
			state.InstallmentsPaid = paid
			if paid < *inv.InstallmentCount && remaining.IsPositive() {
				base, ok := inv.Payments.LatestDate()
				if !ok {
					base = now
				}
				next := addCalendarMonth(base)
				state.NextInstallmentDate = &next
			}
		} else {
			state.PaymentStatus = PaymentStatusPartial
		}

	default:
		// Nothing received: SENT and CANCELLED survive, anything else
		// falls back to PENDING.
		switch inv.PaymentStatus {
		case PaymentStatusSent, PaymentStatusCancelled:
			state.PaymentStatus = inv.PaymentStatus
		default:
			state.PaymentStatus = PaymentStatusPending
		}
	}

	if state.IsOverdue && !state.PaymentStatus.IsSettled() {
		state.PaymentStatus = PaymentStatusOverdue
	}

	return state, nil
}

// addCalendarMonth advances a date by exactly one calendar month, clamping to
// the last day of the target month when the source day does not exist there
// (Jan 31 -> Feb 28/29). A plain AddDate would roll Jan 31 into March.
func addCalendarMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	lastDay := daysInMonth(year, month+1)
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month; month may be
// outside 1..12 and is normalized the way time.Date normalizes it.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
