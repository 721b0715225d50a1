package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/models"
	"github.com/villagesacco/sacco/pkg/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger() (*Ledger, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	return NewLedger(mem, zap.NewNop()), mem
}

// disbursedLoan walks a fresh application through approval and disbursement.
func disbursedLoan(t *testing.T, l *Ledger, principal, rate string, term int) *models.Loan {
	t.Helper()
	loan, err := l.SubmitApplication("member-1", "farm inputs", d(principal), d(rate), term)
	require.NoError(t, err)
	_, err = l.Approve(loan.ID, "admin-1")
	require.NoError(t, err)
	loan, err = l.Disburse(loan.ID)
	require.NoError(t, err)
	return loan
}

func TestSubmitApplication(t *testing.T) {
	l, mem := newTestLedger()

	loan, err := l.SubmitApplication("member-1", "school fees", d("5000"), d("0.15"), 12)
	require.NoError(t, err)

	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.True(t, loan.RemainingBalance.Equal(d("5000")))
	assert.Equal(t, "451.29", loan.MonthlyPayment.StringFixed(2))
	assert.Equal(t, 0, mem.TransactionCount(), "no money moves before disbursement")
}

func TestSubmitApplication_DuplicatePending(t *testing.T) {
	l, _ := newTestLedger()

	first, err := l.SubmitApplication("member-1", "seeds", d("1000"), d("0.10"), 6)
	require.NoError(t, err)

	_, err = l.SubmitApplication("member-1", "fertilizer", d("2000"), d("0.10"), 6)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicatePendingApplication))

	// A different borrower is unaffected.
	_, err = l.SubmitApplication("member-2", "tools", d("500"), d("0.10"), 6)
	assert.NoError(t, err)

	// Rejection frees the borrower to apply again.
	_, err = l.Reject(first.ID, "admin-1")
	require.NoError(t, err)
	_, err = l.SubmitApplication("member-1", "fertilizer", d("2000"), d("0.10"), 6)
	assert.NoError(t, err)
}

func TestSubmitApplication_Validation(t *testing.T) {
	l, _ := newTestLedger()

	_, err := l.SubmitApplication("member-1", "x", d("0"), d("0.15"), 12)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = l.SubmitApplication("member-1", "x", d("1000"), d("0.15"), -1)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestStateMachine_RejectsSkips(t *testing.T) {
	l, _ := newTestLedger()

	loan, err := l.SubmitApplication("member-1", "x", d("1000"), d("0.10"), 6)
	require.NoError(t, err)

	// Disburse straight from PENDING is illegal.
	_, err = l.Disburse(loan.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStateTransition))

	approved, err := l.Approve(loan.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, approved.Status)
	assert.Equal(t, "admin-1", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	// Approving twice is illegal, as is rejecting an approved loan.
	_, err = l.Approve(loan.ID, "admin-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStateTransition))
	_, err = l.Reject(loan.ID, "admin-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStateTransition))
}

func TestDisburse(t *testing.T) {
	l, mem := newTestLedger()
	loan := disbursedLoan(t, l, "5000", "0.15", 12)

	assert.Equal(t, models.LoanStatusDisbursed, loan.Status)
	require.NotNil(t, loan.DisbursedAt)
	require.NotNil(t, loan.NextPaymentDue)

	entries, err := l.Schedule(loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 12)

	sum := decimal.Zero
	for i, entry := range entries {
		assert.Equal(t, i+1, entry.Sequence)
		assert.Equal(t, models.RepaymentStatusPending, entry.Status)
		sum = sum.Add(entry.PrincipalPortion)
	}
	assert.True(t, sum.Equal(d("5000")), "schedule principal sums to %s", sum)

	txns, err := l.Transactions(loan.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionTypeDisbursement, txns[0].Type)
	assert.True(t, txns[0].Amount.Equal(d("5000")))
	assert.Equal(t, 1, mem.TransactionCount())
}

func TestRecordPayment_ZeroRateRoundTrip(t *testing.T) {
	l, _ := newTestLedger()
	loan := disbursedLoan(t, l, "1200", "0", 12)

	entries, err := l.Schedule(loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 12)
	for _, entry := range entries {
		assert.True(t, entry.Amount.Equal(d("100")))
		assert.True(t, entry.InterestPortion.IsZero())
	}

	for i := 0; i < 12; i++ {
		_, err := l.RecordPayment(loan.ID, d("100"), "")
		require.NoError(t, err, "payment %d", i+1)
	}

	final, err := l.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, final.RemainingBalance.IsZero())
	assert.Equal(t, models.LoanStatusCompleted, final.Status)
	assert.Nil(t, final.NextPaymentDue)

	// A COMPLETED loan accepts no further payments.
	_, err = l.RecordPayment(loan.ID, d("100"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStateTransition))
}

func TestRecordPayment_FullPayoffWithInterest(t *testing.T) {
	l, _ := newTestLedger()
	loan := disbursedLoan(t, l, "5000", "0.15", 12)

	entries, err := l.Schedule(loan.ID)
	require.NoError(t, err)

	for _, entry := range entries {
		final, err := l.GetLoan(loan.ID)
		require.NoError(t, err)
		if final.Status == models.LoanStatusCompleted {
			break
		}
		_, err = l.RecordPayment(loan.ID, entry.Amount, "")
		require.NoError(t, err, "installment %d", entry.Sequence)
	}

	final, err := l.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, final.RemainingBalance.IsZero(), "remaining %s", final.RemainingBalance)
	assert.Equal(t, models.LoanStatusCompleted, final.Status)
}

func TestRecordPayment_PartialThenSettle(t *testing.T) {
	l, mem := newTestLedger()
	loan := disbursedLoan(t, l, "1200", "0", 12)

	_, err := l.RecordPayment(loan.ID, d("50"), "pay-1")
	require.NoError(t, err)

	entries, err := l.Schedule(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepaymentStatusPartial, entries[0].Status)
	assert.True(t, entries[0].PaidAmount.Equal(d("50")))

	after, err := l.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingBalance.Equal(d("1150")))
	firstDue := *after.NextPaymentDue

	_, err = l.RecordPayment(loan.ID, d("50"), "pay-2")
	require.NoError(t, err)

	entries, err = l.Schedule(loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 12, "settling a partial must not create a new row")
	assert.Equal(t, models.RepaymentStatusPaid, entries[0].Status)
	require.NotNil(t, entries[0].PaidDate)

	after, err = l.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingBalance.Equal(d("1100")))
	assert.True(t, after.NextPaymentDue.After(firstDue), "due date rolls only once the installment settles")

	// Disbursement plus two repayments.
	assert.Equal(t, 3, mem.TransactionCount())
}

func TestRecordPayment_OverpaymentCappedAtInstallment(t *testing.T) {
	l, _ := newTestLedger()
	loan := disbursedLoan(t, l, "1200", "0", 12)

	txn, err := l.RecordPayment(loan.ID, d("250"), "")
	require.NoError(t, err)
	assert.True(t, txn.Amount.Equal(d("100")), "applied %s", txn.Amount)

	after, err := l.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingBalance.Equal(d("1100")))
}

func TestRecordPayment_DuplicateReference(t *testing.T) {
	l, mem := newTestLedger()
	loan := disbursedLoan(t, l, "1200", "0", 12)

	_, err := l.RecordPayment(loan.ID, d("100"), "mpesa-123")
	require.NoError(t, err)

	_, err = l.RecordPayment(loan.ID, d("100"), "mpesa-123")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateReference))

	// The rejected retry must not have double-charged.
	after, err := l.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, after.RemainingBalance.Equal(d("1100")))
	assert.Equal(t, 2, mem.TransactionCount())
}

func TestRecordPayment_InvalidAmount(t *testing.T) {
	l, _ := newTestLedger()
	loan := disbursedLoan(t, l, "1200", "0", 12)

	_, err := l.RecordPayment(loan.ID, decimal.Zero, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = l.RecordPayment(loan.ID, d("-5"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestRecordPayment_FallbackEntry(t *testing.T) {
	l, _ := newTestLedger()

	// Simulate schedule drift: mark every entry settled while the loan
	// still carries a balance.
	loan := disbursedLoan(t, l, "1200", "0", 12)
	entries, err := l.Schedule(loan.ID)
	require.NoError(t, err)
	now := time.Now()
	for _, entry := range entries {
		entry.PaidAmount = entry.Amount
		entry.Status = models.RepaymentStatusPaid
		entry.PaidDate = &now
		stored, err := l.GetLoan(loan.ID)
		require.NoError(t, err)
		require.NoError(t, l.storage.ApplyLoanPayment(stored, entry, &models.Transaction{
			ID:        entry.ID,
			OwnerID:   "member-1",
			Type:      models.TransactionTypeRepayment,
			Amount:    entry.Amount,
			Reference: "drift-" + entry.ID.String(),
			LoanID:    &loan.ID,
			Status:    models.TransactionStatusCompleted,
			CreatedAt: now,
		}))
	}

	_, err = l.RecordPayment(loan.ID, d("100"), "")
	require.NoError(t, err)

	entries, err = l.Schedule(loan.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 13, "a fallback installment is generated on the fly")
	assert.Equal(t, 13, entries[12].Sequence)
}

func TestNotFound(t *testing.T) {
	l, _ := newTestLedger()

	_, err := l.GetLoan(uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	_, err = l.Approve(uuid.New(), "admin-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	_, err = l.RecordPayment(uuid.New(), d("10"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
