// Package ledger implements the loan lifecycle: application intake,
// approval, disbursement with schedule generation, and payment application.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/villagesacco/sacco/pkg/amortize"
	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/metrics"
	"github.com/villagesacco/sacco/pkg/models"
	"github.com/villagesacco/sacco/pkg/store"
)

// Ledger handles the business logic for loans and their repayments.
type Ledger struct {
	storage store.Storage
	log     *zap.Logger
	now     func() time.Time
}

// NewLedger creates a Ledger over the given Storage implementation.
func NewLedger(s store.Storage, log *zap.Logger) *Ledger {
	return &Ledger{storage: s, log: log, now: time.Now}
}

// WithClock overrides the ledger's clock. Intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// SubmitApplication creates a new loan application in PENDING state.
// A borrower may hold at most one pending application at a time.
func (l *Ledger) SubmitApplication(borrowerID, purpose string, principal, annualRate decimal.Decimal, termMonths int) (*models.Loan, error) {
	quote, err := amortize.Compute(principal, annualRate, termMonths)
	if err != nil {
		return nil, fail("submit_application", err)
	}

	pending, err := l.storage.HasPendingLoan(borrowerID)
	if err != nil {
		return nil, fail("submit_application", err)
	}
	if pending {
		return nil, fail("submit_application", apperrors.DuplicatePendingApplication(borrowerID))
	}

	now := l.now()
	loan := &models.Loan{
		ID:                 uuid.New(),
		BorrowerID:         borrowerID,
		Principal:          principal,
		Purpose:            purpose,
		TermMonths:         termMonths,
		AnnualInterestRate: annualRate,
		MonthlyPayment:     quote.MonthlyPayment,
		TotalRepayment:     quote.TotalRepayment,
		RemainingBalance:   principal,
		Status:             models.LoanStatusPending,
		AppliedAt:          now,
		UpdatedAt:          now,
	}
	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fail("submit_application", err)
	}

	metrics.LoansByTransition.WithLabelValues(string(models.LoanStatusPending)).Inc()
	l.log.Info("loan application submitted",
		zap.String("loan_id", loan.ID.String()),
		zap.String("borrower_id", borrowerID),
		zap.String("principal", principal.StringFixed(2)),
		zap.Int("term_months", termMonths))
	return loan, nil
}

// Approve moves a PENDING loan to APPROVED and stamps the approver.
func (l *Ledger) Approve(loanID uuid.UUID, adminID string) (*models.Loan, error) {
	return l.review(loanID, adminID, models.LoanStatusApproved)
}

// Reject moves a PENDING loan to REJECTED. The application is retained for
// audit; rejection frees the borrower to apply again.
func (l *Ledger) Reject(loanID uuid.UUID, adminID string) (*models.Loan, error) {
	return l.review(loanID, adminID, models.LoanStatusRejected)
}

func (l *Ledger) review(loanID uuid.UUID, adminID string, to models.LoanStatus) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, fail("review", err)
	}
	if err := transition(loan, to); err != nil {
		return nil, fail("review", err)
	}

	now := l.now()
	if to == models.LoanStatusApproved {
		loan.ApprovedAt = &now
		loan.ApprovedBy = adminID
	}
	loan.UpdatedAt = now
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fail("review", err)
	}

	metrics.LoansByTransition.WithLabelValues(string(to)).Inc()
	l.log.Info("loan reviewed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("status", string(to)),
		zap.String("admin_id", adminID))
	return loan, nil
}

// Disburse releases an APPROVED loan: it writes the disbursement
// transaction, materializes the repayment schedule and moves the loan to
// DISBURSED, all in one atomic unit. The first payment falls due one month
// after disbursement.
func (l *Ledger) Disburse(loanID uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, fail("disburse", err)
	}
	if err := transition(loan, models.LoanStatusDisbursed); err != nil {
		return nil, fail("disburse", err)
	}

	now := l.now()
	firstDue := now.AddDate(0, 1, 0)

	projected, err := amortize.Schedule(loan.Principal, loan.AnnualInterestRate, loan.TermMonths, firstDue)
	if err != nil {
		return nil, fail("disburse", err)
	}
	entries := make([]*models.RepaymentEntry, 0, len(projected))
	for _, p := range projected {
		entries = append(entries, &models.RepaymentEntry{
			ID:               uuid.New(),
			LoanID:           loan.ID,
			Sequence:         p.Sequence,
			DueDate:          p.DueDate,
			Amount:           p.Amount,
			PrincipalPortion: p.PrincipalPortion,
			InterestPortion:  p.InterestPortion,
			PaidAmount:       decimal.Zero,
			Status:           models.RepaymentStatusPending,
		})
	}

	txn := &models.Transaction{
		ID:          uuid.New(),
		OwnerID:     loan.BorrowerID,
		Type:        models.TransactionTypeDisbursement,
		Amount:      loan.Principal,
		Description: fmt.Sprintf("Disbursement of loan %s", loan.ID),
		Reference:   "DISB-" + loan.ID.String(),
		LoanID:      &loan.ID,
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   now,
		ProcessedAt: &now,
	}

	loan.DisbursedAt = &now
	loan.NextPaymentDue = &firstDue
	loan.UpdatedAt = now

	if err := l.storage.DisburseLoan(loan, txn, entries); err != nil {
		return nil, fail("disburse", err)
	}

	metrics.TransactionsPosted.WithLabelValues(string(txn.Type)).Inc()
	metrics.LoansByTransition.WithLabelValues(string(models.LoanStatusDisbursed)).Inc()
	l.log.Info("loan disbursed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("principal", loan.Principal.StringFixed(2)),
		zap.Int("schedule_entries", len(entries)))
	return loan, nil
}

// RecordPayment applies a payment against the earliest open schedule entry
// of a DISBURSED loan. reference is the caller's idempotency key; a blank
// reference gets a generated one, and a duplicate is rejected without
// touching any state. Overpayment beyond the entry's outstanding amount is
// not applied.
func (l *Ledger) RecordPayment(loanID uuid.UUID, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fail("record_payment", apperrors.Validation("payment amount must be positive, got %s", amount))
	}

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, fail("record_payment", err)
	}
	if loan.Status != models.LoanStatusDisbursed || !loan.RemainingBalance.IsPositive() {
		return nil, fail("record_payment", apperrors.InvalidStateTransition(
			"loan %s does not accept payments in status %s", loan.ID, loan.Status))
	}

	now := l.now()
	entry, err := l.storage.GetEarliestOpenEntry(loanID)
	if err != nil {
		return nil, fail("record_payment", err)
	}
	if entry == nil {
		entry = l.fallbackEntry(loan, now)
	}

	applied := decimal.Min(amount, entry.Outstanding())
	entry.PaidAmount = entry.PaidAmount.Add(applied)

	txn := &models.Transaction{
		ID:          uuid.New(),
		OwnerID:     loan.BorrowerID,
		Type:        models.TransactionTypeRepayment,
		Amount:      applied,
		Description: fmt.Sprintf("Repayment on loan %s, installment %d", loan.ID, entry.Sequence),
		Reference:   reference,
		LoanID:      &loan.ID,
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	if txn.Reference == "" {
		txn.Reference = "RPMT-" + txn.ID.String()
	}
	entry.TransactionID = &txn.ID

	settled := entry.PaidAmount.GreaterThanOrEqual(entry.Amount)
	if settled {
		entry.Status = models.RepaymentStatusPaid
		entry.PaidDate = &now
	} else {
		entry.Status = models.RepaymentStatusPartial
	}

	loan.RemainingBalance = loan.RemainingBalance.Sub(applied)
	if loan.RemainingBalance.IsNegative() {
		loan.RemainingBalance = decimal.Zero
	}
	loan.UpdatedAt = now

	if loan.RemainingBalance.IsPositive() {
		// The due date only rolls forward once the current installment is
		// fully settled; partials stay due.
		if settled && loan.NextPaymentDue != nil {
			next := loan.NextPaymentDue.AddDate(0, 1, 0)
			loan.NextPaymentDue = &next
		}
	} else {
		loan.NextPaymentDue = nil
		if err := transition(loan, models.LoanStatusCompleted); err != nil {
			return nil, fail("record_payment", err)
		}
	}

	if err := l.storage.ApplyLoanPayment(loan, entry, txn); err != nil {
		return nil, fail("record_payment", err)
	}

	metrics.TransactionsPosted.WithLabelValues(string(txn.Type)).Inc()
	if loan.Status == models.LoanStatusCompleted {
		metrics.LoansByTransition.WithLabelValues(string(models.LoanStatusCompleted)).Inc()
		l.log.Info("loan fully repaid", zap.String("loan_id", loan.ID.String()))
	}
	l.log.Info("payment recorded",
		zap.String("loan_id", loan.ID.String()),
		zap.String("amount", applied.StringFixed(2)),
		zap.String("remaining_balance", loan.RemainingBalance.StringFixed(2)),
		zap.String("reference", txn.Reference))
	return txn, nil
}

// fallbackEntry builds an on-the-fly installment when a payment arrives and
// no open schedule entry exists. The split uses the same calculator as
// disbursement-time generation.
func (l *Ledger) fallbackEntry(loan *models.Loan, now time.Time) *models.RepaymentEntry {
	split := amortize.SplitPayment(loan.RemainingBalance, loan.AnnualInterestRate, loan.MonthlyPayment)

	sequence := 1
	if entries, err := l.storage.GetSchedule(loan.ID); err == nil {
		sequence = len(entries) + 1
	}
	dueDate := now
	if loan.NextPaymentDue != nil {
		dueDate = *loan.NextPaymentDue
	}

	l.log.Warn("no open schedule entry, generating fallback installment",
		zap.String("loan_id", loan.ID.String()),
		zap.Int("sequence", sequence))
	return &models.RepaymentEntry{
		ID:               uuid.New(),
		LoanID:           loan.ID,
		Sequence:         sequence,
		DueDate:          dueDate,
		Amount:           split.Amount,
		PrincipalPortion: split.PrincipalPortion,
		InterestPortion:  split.InterestPortion,
		PaidAmount:       decimal.Zero,
		Status:           models.RepaymentStatusPending,
	}
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	return l.storage.GetAllLoans()
}

// GetLoansByBorrower retrieves all loans held by a borrower.
func (l *Ledger) GetLoansByBorrower(borrowerID string) ([]*models.Loan, error) {
	return l.storage.GetLoansByBorrower(borrowerID)
}

// Schedule retrieves a loan's repayment schedule.
func (l *Ledger) Schedule(loanID uuid.UUID) ([]*models.RepaymentEntry, error) {
	if _, err := l.storage.GetLoan(loanID); err != nil {
		return nil, err
	}
	return l.storage.GetSchedule(loanID)
}

// Transactions retrieves a loan's journal entries.
func (l *Ledger) Transactions(loanID uuid.UUID) ([]*models.Transaction, error) {
	if _, err := l.storage.GetLoan(loanID); err != nil {
		return nil, err
	}
	return l.storage.GetTransactionsForLoan(loanID)
}

// transition applies a status change after validating it against the
// central transition table.
func transition(loan *models.Loan, to models.LoanStatus) error {
	if !models.CanTransition(loan.Status, to) {
		return apperrors.InvalidStateTransition("loan %s cannot move from %s to %s", loan.ID, loan.Status, to)
	}
	loan.Status = to
	return nil
}

func fail(operation string, err error) error {
	metrics.OperationsFailed.WithLabelValues(operation, string(apperrors.CodeOf(err))).Inc()
	return err
}
