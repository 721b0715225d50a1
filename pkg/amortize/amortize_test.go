package amortize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villagesacco/sacco/pkg/apperrors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute_LevelPayment(t *testing.T) {
	quote, err := Compute(d("5000"), d("0.15"), 12)
	require.NoError(t, err)

	assert.Equal(t, "451.29", quote.MonthlyPayment.StringFixed(2))
	assert.Equal(t, "5415.48", quote.TotalRepayment.StringFixed(2))
	assert.Equal(t, "415.48", quote.TotalInterest.StringFixed(2))
}

func TestCompute_ZeroRate(t *testing.T) {
	quote, err := Compute(d("1200"), decimal.Zero, 12)
	require.NoError(t, err)

	assert.True(t, quote.MonthlyPayment.Equal(d("100")), "got %s", quote.MonthlyPayment)
	assert.True(t, quote.TotalRepayment.Equal(d("1200")))
	assert.True(t, quote.TotalInterest.IsZero())
}

func TestCompute_PaymentTimesTermMatchesTotal(t *testing.T) {
	cases := []struct {
		principal string
		rate      string
		term      int
	}{
		{"5000", "0.15", 12},
		{"1200", "0", 12},
		{"250000", "0.08", 60},
		{"750.50", "0.12", 6},
	}

	for _, tc := range cases {
		quote, err := Compute(d(tc.principal), d(tc.rate), tc.term)
		require.NoError(t, err)

		product := quote.MonthlyPayment.Mul(decimal.NewFromInt(int64(tc.term)))
		diff := product.Sub(quote.TotalRepayment).Abs()
		assert.True(t, diff.LessThanOrEqual(d("0.01")),
			"payment*term %s vs total %s for %+v", product, quote.TotalRepayment, tc)
		assert.True(t, quote.TotalRepayment.GreaterThanOrEqual(d(tc.principal)),
			"total %s below principal for %+v", quote.TotalRepayment, tc)
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	_, err := Compute(decimal.Zero, d("0.15"), 12)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = Compute(d("-100"), d("0.15"), 12)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = Compute(d("5000"), d("0.15"), 0)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = Compute(d("5000"), d("-0.01"), 12)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestSchedule_PrincipalPortionsSumToPrincipal(t *testing.T) {
	principal := d("5000")
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	entries, err := Schedule(principal, d("0.15"), 12, start)
	require.NoError(t, err)
	require.Len(t, entries, 12)

	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.PrincipalPortion)
		assert.False(t, entry.PrincipalPortion.IsNegative())
	}
	assert.True(t, sum.Equal(principal), "principal portions sum to %s", sum)

	// Due dates are one month apart, starting at start.
	assert.Equal(t, start, entries[0].DueDate)
	assert.Equal(t, start.AddDate(0, 11, 0), entries[11].DueDate)
}

func TestSchedule_ZeroRateEvenSplit(t *testing.T) {
	entries, err := Schedule(d("1200"), decimal.Zero, 12, time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 12)

	for _, entry := range entries {
		assert.True(t, entry.PrincipalPortion.Equal(d("100")), "entry %d principal %s", entry.Sequence, entry.PrincipalPortion)
		assert.True(t, entry.InterestPortion.IsZero())
		assert.True(t, entry.Amount.Equal(d("100")))
	}
}

func TestSplitPayment_Clamps(t *testing.T) {
	// Payment larger than the remaining balance: principal is capped.
	split := SplitPayment(d("50"), d("0.12"), d("100"))
	assert.True(t, split.PrincipalPortion.Equal(d("50")))
	assert.True(t, split.InterestPortion.Equal(d("0.50")))
	assert.True(t, split.Amount.Equal(d("50.50")))

	// Payment below one month's interest: principal clamps to zero.
	split = SplitPayment(d("10000"), d("0.60"), d("100"))
	assert.True(t, split.PrincipalPortion.IsZero())
	assert.True(t, split.InterestPortion.Equal(d("500")))
}
