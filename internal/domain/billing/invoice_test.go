package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// PaymentStatus Tests
// ============================================

func TestPaymentStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  PaymentStatus
		isValid bool
	}{
		{PaymentStatusPending, true},
		{PaymentStatusSent, true},
		{PaymentStatusPartial, true},
		{PaymentStatusInstallment, true},
		{PaymentStatusOverdue, true},
		{PaymentStatusPaid, true},
		{PaymentStatusCancelled, true},
		{PaymentStatus("INVALID"), false},
		{PaymentStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestPaymentStatus_IsSettled(t *testing.T) {
	tests := []struct {
		status    PaymentStatus
		isSettled bool
	}{
		{PaymentStatusPending, false},
		{PaymentStatusSent, false},
		{PaymentStatusPartial, false},
		{PaymentStatusInstallment, false},
		{PaymentStatusOverdue, false},
		{PaymentStatusPaid, true},
		{PaymentStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isSettled, tt.status.IsSettled())
		})
	}
}

// ============================================
// DocumentClass Tests
// ============================================

func TestDocumentClass_NumberPrefix(t *testing.T) {
	assert.Equal(t, "INV", DocumentClassRegular.NumberPrefix())
	assert.Equal(t, "CCL", DocumentClassClearance.NumberPrefix())
	assert.Equal(t, "TRP", DocumentClassTripSheet.NumberPrefix())
	assert.Equal(t, "", DocumentClass("BOGUS").NumberPrefix())
}

func TestDocumentClass_IsInvoiceClass(t *testing.T) {
	assert.True(t, DocumentClassRegular.IsInvoiceClass())
	assert.True(t, DocumentClassClearance.IsInvoiceClass())
	assert.False(t, DocumentClassTripSheet.IsInvoiceClass())
}

// ============================================
// Invoice Tests
// ============================================

func TestNewInvoice(t *testing.T) {
	dueDate := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates invoice in initial state", func(t *testing.T) {
		inv, err := NewInvoice(
			DocumentClassClearance,
			"CCL-20250301-001",
			"Acme Freight",
			decimal.NewFromInt(900),
			decimal.NewFromInt(100),
			decimal.NewFromInt(1000),
			dueDate,
		)
		require.NoError(t, err)

		assert.Equal(t, PaymentStatusPending, inv.PaymentStatus)
		assert.True(t, inv.AmountPaid.IsZero())
		assert.True(t, inv.RemainingAmount.Equal(decimal.NewFromInt(1000)))
		assert.Nil(t, inv.PaidDate)
		assert.Empty(t, inv.Payments)
		assert.Equal(t, 1, inv.Version)
	})

	t.Run("rejects empty invoice number", func(t *testing.T) {
		_, err := NewInvoice(DocumentClassRegular, "", "Acme", decimal.Zero, decimal.Zero, decimal.NewFromInt(100), dueDate)
		assert.Error(t, err)
	})

	t.Run("rejects negative total", func(t *testing.T) {
		_, err := NewInvoice(DocumentClassRegular, "INV-20250301-001", "Acme", decimal.Zero, decimal.Zero, decimal.NewFromInt(-100), dueDate)
		assert.Error(t, err)
	})

	t.Run("rejects non-invoice document class", func(t *testing.T) {
		_, err := NewInvoice(DocumentClassTripSheet, "TRP-20250301-001", "Acme", decimal.Zero, decimal.Zero, decimal.NewFromInt(100), dueDate)
		assert.Error(t, err)
	})

	t.Run("rejects zero due date", func(t *testing.T) {
		_, err := NewInvoice(DocumentClassRegular, "INV-20250301-001", "Acme", decimal.Zero, decimal.Zero, decimal.NewFromInt(100), time.Time{})
		assert.Error(t, err)
	})
}

func TestInvoice_RecordPayment(t *testing.T) {
	inv := createTestInvoice(t, 1000, testNow.AddDate(0, 1, 0))

	payment, err := inv.RecordPayment(decimal.NewFromInt(250), testNow, "bank_transfer", "TRX-1")
	require.NoError(t, err)

	assert.Len(t, inv.Payments, 1)
	assert.True(t, payment.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "bank_transfer", payment.Method)
	assert.Equal(t, 2, inv.Version)

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := inv.RecordPayment(decimal.Zero, testNow, "", "")
		assert.Error(t, err)
	})

	t.Run("rejects cancelled invoice", func(t *testing.T) {
		cancelled := createTestInvoice(t, 100, testNow.AddDate(0, 1, 0))
		require.NoError(t, cancelled.Cancel("duplicate"))
		_, err := cancelled.RecordPayment(decimal.NewFromInt(10), testNow, "", "")
		assert.Error(t, err)
	})
}

func TestInvoice_ConfigureInstallmentPlan(t *testing.T) {
	inv := createTestInvoice(t, 1000, testNow.AddDate(0, 1, 0))

	require.NoError(t, inv.ConfigureInstallmentPlan(4, decimal.NewFromInt(250)))
	assert.True(t, inv.HasInstallmentPlan())

	assert.Error(t, inv.ConfigureInstallmentPlan(0, decimal.NewFromInt(250)))
	assert.Error(t, inv.ConfigureInstallmentPlan(4, decimal.Zero))
}

func TestInvoice_Cancel(t *testing.T) {
	t.Run("cancels untouched invoice", func(t *testing.T) {
		inv := createTestInvoice(t, 100, testNow.AddDate(0, 1, 0))
		require.NoError(t, inv.Cancel("booked twice"))
		assert.Equal(t, PaymentStatusCancelled, inv.PaymentStatus)
	})

	t.Run("refuses when payments exist", func(t *testing.T) {
		inv := createTestInvoice(t, 100, testNow.AddDate(0, 1, 0))
		addPayment(t, inv, 50, testNow)
		assert.Error(t, inv.Cancel("late cancel"))
	})
}

func TestInvoice_ApplyDerivedState(t *testing.T) {
	t.Run("applies derived fields", func(t *testing.T) {
		inv := createTestInvoice(t, 1000, testNow.AddDate(0, 1, 0))
		next := testNow.AddDate(0, 1, 0)
		state := DerivedState{
			AmountPaid:          decimal.NewFromInt(500),
			RemainingAmount:     decimal.NewFromInt(500),
			PaymentStatus:       PaymentStatusInstallment,
			InstallmentsPaid:    2,
			NextInstallmentDate: &next,
		}

		inv.ApplyDerivedState(state, testNow)

		assert.Equal(t, PaymentStatusInstallment, inv.PaymentStatus)
		assert.Equal(t, 2, inv.InstallmentsPaid)
		assert.True(t, inv.RemainingAmount.Equal(decimal.NewFromInt(500)))
		assert.Nil(t, inv.PaidDate)
		assert.Equal(t, 2, inv.Version)
	})

	t.Run("sets PaidDate exactly once", func(t *testing.T) {
		inv := createTestInvoice(t, 1000, testNow.AddDate(0, 1, 0))
		paidState := DerivedState{
			AmountPaid:      decimal.NewFromInt(1000),
			RemainingAmount: decimal.Zero,
			PaymentStatus:   PaymentStatusPaid,
			IsFullyPaid:     true,
		}

		inv.ApplyDerivedState(paidState, testNow)
		require.NotNil(t, inv.PaidDate)
		firstPaidDate := *inv.PaidDate

		later := testNow.AddDate(0, 0, 7)
		inv.ApplyDerivedState(paidState, later)
		assert.Equal(t, firstPaidDate, *inv.PaidDate, "PaidDate is append-only")
	})
}

func TestInvoice_DriftsFrom(t *testing.T) {
	inv := createTestInvoice(t, 1000, testNow.AddDate(0, 1, 0))
	clean := DerivedState{
		AmountPaid:      decimal.Zero,
		RemainingAmount: decimal.NewFromInt(1000),
		PaymentStatus:   PaymentStatusPending,
	}

	assert.False(t, inv.DriftsFrom(clean))

	t.Run("detects status drift", func(t *testing.T) {
		drifted := clean
		drifted.PaymentStatus = PaymentStatusOverdue
		assert.True(t, inv.DriftsFrom(drifted))
	})

	t.Run("detects amount drift", func(t *testing.T) {
		drifted := clean
		drifted.AmountPaid = decimal.NewFromInt(10)
		assert.True(t, inv.DriftsFrom(drifted))
	})

	t.Run("compares dates by instant", func(t *testing.T) {
		utc := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
		shifted := utc.In(time.FixedZone("UTC+2", 2*3600))

		inv.NextInstallmentDate = &utc
		withShifted := clean
		withShifted.NextInstallmentDate = &shifted
		assert.False(t, inv.DriftsFrom(withShifted), "same instant in another zone is not drift")

		inv.NextInstallmentDate = nil
		assert.True(t, inv.DriftsFrom(withShifted))
	})
}

func TestPayments_LatestDate(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		_, ok := Payments{}.LatestDate()
		assert.False(t, ok)
	})

	t.Run("maximum date regardless of order", func(t *testing.T) {
		p := Payments{
			{PaymentDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
			{PaymentDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
			{PaymentDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
		latest, ok := p.LatestDate()
		require.True(t, ok)
		assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), latest)
	})
}

func TestPayments_ScanValue(t *testing.T) {
	payments := Payments{*NewPayment(decimal.NewFromInt(100), testNow, "cash", "")}

	value, err := payments.Value()
	require.NoError(t, err)

	var decoded Payments
	require.NoError(t, decoded.Scan(value))
	require.Len(t, decoded, 1)
	assert.True(t, decoded[0].Amount.Equal(decimal.NewFromInt(100)))

	t.Run("nil value scans to empty slice", func(t *testing.T) {
		var p Payments
		require.NoError(t, p.Scan(nil))
		assert.Empty(t, p)
	})

	t.Run("unsupported type is rejected", func(t *testing.T) {
		var p Payments
		assert.Error(t, p.Scan(42))
	})
}
