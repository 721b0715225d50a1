// Package amortize is the single source of truth for loan payment math.
// Every call site (application quotes, disbursement schedule generation,
// the payment fallback split) goes through here rather than re-deriving
// the formulas.
package amortize

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/villagesacco/sacco/pkg/apperrors"
)

var (
	one          = decimal.NewFromInt(1)
	monthsInYear = decimal.NewFromInt(12)
)

// Quote is the level-payment summary for a prospective loan.
type Quote struct {
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalRepayment decimal.Decimal `json:"total_repayment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
}

// Entry is one projected installment of a repayment schedule.
type Entry struct {
	Sequence         int
	DueDate          time.Time
	Amount           decimal.Decimal
	PrincipalPortion decimal.Decimal
	InterestPortion  decimal.Decimal
}

// Compute returns the level monthly payment for the given terms.
//
//	monthlyRate = annualRate / 12
//	payment     = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degrades to an even principal split. Monetary outputs are
// rounded to 2 decimal places, half up. Loans whose level payment would not
// cover the first month's interest can never amortize and are rejected.
func Compute(principal, annualRate decimal.Decimal, termMonths int) (Quote, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return Quote{}, apperrors.Validation("principal must be positive, got %s", principal)
	}
	if termMonths <= 0 {
		return Quote{}, apperrors.Validation("term must be positive, got %d months", termMonths)
	}
	if annualRate.IsNegative() {
		return Quote{}, apperrors.Validation("interest rate must not be negative, got %s", annualRate)
	}

	term := decimal.NewFromInt(int64(termMonths))
	monthlyRate := annualRate.Div(monthsInYear)

	var payment decimal.Decimal
	if monthlyRate.IsZero() {
		payment = principal.Div(term).Round(2)
	} else {
		factor := one.Add(monthlyRate).Pow(term)
		payment = principal.Mul(monthlyRate).Mul(factor).Div(factor.Sub(one)).Round(2)

		firstInterest := principal.Mul(monthlyRate).Round(2)
		if payment.LessThanOrEqual(firstInterest) {
			return Quote{}, apperrors.Validation(
				"loan does not amortize: payment %s does not cover first month's interest %s",
				payment, firstInterest)
		}
	}

	total := payment.Mul(term).Round(2)
	return Quote{
		MonthlyPayment: payment,
		TotalRepayment: total,
		TotalInterest:  total.Sub(principal),
	}, nil
}

// Schedule projects the full installment schedule for the given terms,
// with the first payment due at firstDue and one installment per month.
//
// Each month's interest is computed on the running balance; the principal
// portion is capped at the balance so the loop stops early if the balance
// is exhausted. Rounding residue is absorbed by the final installment so
// the principal portions sum to the disbursed principal exactly.
func Schedule(principal, annualRate decimal.Decimal, termMonths int, firstDue time.Time) ([]Entry, error) {
	quote, err := Compute(principal, annualRate, termMonths)
	if err != nil {
		return nil, err
	}

	monthlyRate := annualRate.Div(monthsInYear)
	entries := make([]Entry, 0, termMonths)
	running := principal

	for m := 1; m <= termMonths; m++ {
		interest := running.Mul(monthlyRate).Round(2)
		principalPart := quote.MonthlyPayment.Sub(interest)
		if m == termMonths || principalPart.GreaterThan(running) {
			principalPart = running
		}

		running = running.Sub(principalPart)
		entries = append(entries, Entry{
			Sequence:         m,
			DueDate:          firstDue.AddDate(0, m-1, 0),
			Amount:           principalPart.Add(interest),
			PrincipalPortion: principalPart,
			InterestPortion:  interest,
		})

		if running.LessThanOrEqual(decimal.Zero) {
			break
		}
	}

	return entries, nil
}

// SplitPayment applies one month of interest to an outstanding balance and
// returns the resulting installment. Used when a payment arrives and no
// open schedule entry exists.
func SplitPayment(balance, annualRate, monthlyPayment decimal.Decimal) Entry {
	interest := balance.Mul(annualRate.Div(monthsInYear)).Round(2)
	principalPart := monthlyPayment.Sub(interest)
	if principalPart.IsNegative() {
		principalPart = decimal.Zero
	}
	if principalPart.GreaterThan(balance) {
		principalPart = balance
	}
	return Entry{
		Amount:           principalPart.Add(interest),
		PrincipalPortion: principalPart,
		InterestPortion:  interest,
	}
}
