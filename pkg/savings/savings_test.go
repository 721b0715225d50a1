package savings

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

// newTestService pins the clock so accrual day counts are deterministic.
func newTestService(at time.Time) (*Service, *store.MemoryStore) {
	mem := store.NewMemoryStore()
	svc := NewService(mem, zap.NewNop()).WithClock(func() time.Time { return at })
	return svc, mem
}

var openedAt = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func TestOpen(t *testing.T) {
	svc, _ := newTestService(openedAt)

	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	assert.True(t, account.Balance.IsZero())
	assert.True(t, account.IsActive)
	assert.Equal(t, openedAt, account.LastInterestCalculated)
}

func TestOpen_Validation(t *testing.T) {
	svc, _ := newTestService(openedAt)

	_, err := svc.Open("member-1", models.AccountType("CHECKING"), d("0.05"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = svc.Open("member-1", models.AccountTypeRegular, d("-0.01"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestDepositAndWithdraw(t *testing.T) {
	svc, mem := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	txn, err := svc.Deposit(account.ID, d("500"), "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeDeposit, txn.Type)

	_, err = svc.Withdraw(account.ID, d("120.50"), "wd-1")
	require.NoError(t, err)

	account, err = svc.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(d("379.50")), "balance %s", account.Balance)

	txns, err := svc.Transactions(account.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Equal(t, 2, mem.TransactionCount())
}

func TestWithdraw_ExactBalance(t *testing.T) {
	svc, _ := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	_, err = svc.Deposit(account.ID, d("75.25"), "")
	require.NoError(t, err)
	_, err = svc.Withdraw(account.ID, d("75.25"), "")
	require.NoError(t, err)

	account, err = svc.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	svc, mem := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	_, err = svc.Deposit(account.ID, d("100"), "")
	require.NoError(t, err)

	_, err = svc.Withdraw(account.ID, d("100.01"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientFunds))

	// The failed withdrawal must not have touched the balance or journal.
	account, err = svc.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(d("100")))
	assert.Equal(t, 1, mem.TransactionCount())
}

func TestPost_InvalidAmount(t *testing.T) {
	svc, _ := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	_, err = svc.Deposit(account.ID, decimal.Zero, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	_, err = svc.Withdraw(account.ID, d("-10"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestPost_InactiveAccount(t *testing.T) {
	svc, _ := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(account.ID))

	_, err = svc.Deposit(account.ID, d("10"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStateTransition))
}

func TestPost_DuplicateReference(t *testing.T) {
	svc, mem := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	_, err = svc.Deposit(account.ID, d("100"), "mpesa-777")
	require.NoError(t, err)
	_, err = svc.Deposit(account.ID, d("100"), "mpesa-777")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateReference))

	account, err = svc.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(d("100")), "retry must not double-credit")
	assert.Equal(t, 1, mem.TransactionCount())
}

func TestPost_UnknownAccount(t *testing.T) {
	svc, _ := newTestService(openedAt)

	_, err := svc.Deposit(uuid.New(), d("10"), "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAccrueAll(t *testing.T) {
	svc, _ := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)
	_, err = svc.Deposit(account.ID, d("1000"), "")
	require.NoError(t, err)

	// 1000 * (0.05/365) * 30 = 4.1095... -> 4.11
	asOf := openedAt.AddDate(0, 0, 30)
	results := svc.AccrueAll(asOf)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, 30, results[0].Days)
	assert.Equal(t, "4.11", results[0].Interest.StringFixed(2))

	account, err = svc.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(d("1004.11")), "balance %s", account.Balance)
	assert.True(t, account.TotalInterestEarned.Equal(d("4.11")))
	assert.Equal(t, asOf, account.LastInterestCalculated)

	var interestTxns int
	txns, err := svc.Transactions(account.ID)
	require.NoError(t, err)
	for _, txn := range txns {
		if txn.Type == models.TransactionTypeInterestPayment {
			interestTxns++
			assert.True(t, txn.Amount.Equal(d("4.11")))
		}
	}
	assert.Equal(t, 1, interestTxns)
}

func TestAccrueAll_RerunIsNoOp(t *testing.T) {
	svc, mem := newTestService(openedAt)
	account, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)
	_, err = svc.Deposit(account.ID, d("1000"), "")
	require.NoError(t, err)

	asOf := openedAt.AddDate(0, 0, 30)
	svc.AccrueAll(asOf)
	posted := mem.TransactionCount()

	results := svc.AccrueAll(asOf)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, posted, mem.TransactionCount(), "same-day rerun posts nothing")

	account, err = svc.GetAccount(account.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(d("1004.11")))
}

func TestAccrueAll_SkipsDustAndEmptyAndInactive(t *testing.T) {
	svc, mem := newTestService(openedAt)

	// Dust: 1.00 * (0.05/365) * 2 rounds to zero cents.
	dust, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)
	_, err = svc.Deposit(dust.ID, d("1"), "")
	require.NoError(t, err)

	empty, err := svc.Open("member-2", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)

	inactive, err := svc.Open("member-3", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)
	_, err = svc.Deposit(inactive.ID, d("5000"), "")
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(inactive.ID))

	posted := mem.TransactionCount()
	results := svc.AccrueAll(openedAt.AddDate(0, 0, 2))

	// Deactivated accounts are not part of the run at all.
	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.Skipped)
		assert.NotEqual(t, inactive.ID, result.AccountID)
	}
	assert.Equal(t, posted, mem.TransactionCount())

	account, err := svc.GetAccount(empty.ID)
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero())
}

func TestAccrueAll_MultipleAccounts(t *testing.T) {
	svc, mem := newTestService(openedAt)

	first, err := svc.Open("member-1", models.AccountTypeRegular, d("0.05"))
	require.NoError(t, err)
	_, err = svc.Deposit(first.ID, d("1000"), "")
	require.NoError(t, err)

	second, err := svc.Open("member-2", models.AccountTypeFixedDeposit, d("0.08"))
	require.NoError(t, err)
	_, err = svc.Deposit(second.ID, d("2000"), "")
	require.NoError(t, err)

	results := svc.AccrueAll(openedAt.AddDate(0, 0, 30))
	require.Len(t, results, 2)
	for _, result := range results {
		assert.NoError(t, result.Err)
		assert.False(t, result.Skipped)
	}
	// Two interest postings on top of the two deposits.
	assert.Equal(t, 4, mem.TransactionCount())
}
