package store

import (
	"github.com/google/uuid"

	"github.com/villagesacco/sacco/pkg/models"
)

// Storage defines the persistence operations for loans, repayment
// schedules, savings accounts and the transaction journal.
//
// The three composite methods (DisburseLoan, ApplyLoanPayment,
// PostAccountTransaction) are each a single all-or-nothing unit: a failure
// partway through must leave the previously committed state untouched.
type Storage interface {
	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	GetAllLoans() ([]*models.Loan, error)
	GetLoansByBorrower(borrowerID string) ([]*models.Loan, error)
	HasPendingLoan(borrowerID string) (bool, error)

	GetSchedule(loanID uuid.UUID) ([]*models.RepaymentEntry, error)
	// GetEarliestOpenEntry returns the earliest PENDING or PARTIAL entry for
	// the loan, or (nil, nil) if every entry is settled.
	GetEarliestOpenEntry(loanID uuid.UUID) (*models.RepaymentEntry, error)

	// DisburseLoan atomically records the disbursement transaction, inserts
	// the full repayment schedule and updates the loan.
	DisburseLoan(loan *models.Loan, txn *models.Transaction, entries []*models.RepaymentEntry) error
	// ApplyLoanPayment atomically upserts the schedule entry, records the
	// repayment transaction and updates the loan.
	ApplyLoanPayment(loan *models.Loan, entry *models.RepaymentEntry, txn *models.Transaction) error
	// PostAccountTransaction atomically records a journal entry and updates
	// the account it moves money on.
	PostAccountTransaction(account *models.SavingsAccount, txn *models.Transaction) error

	CreateAccount(account *models.SavingsAccount) error
	GetAccount(id uuid.UUID) (*models.SavingsAccount, error)
	UpdateAccount(account *models.SavingsAccount) error
	GetActiveAccounts() ([]*models.SavingsAccount, error)

	GetTransactionsForLoan(loanID uuid.UUID) ([]*models.Transaction, error)
	GetTransactionsForAccount(accountID uuid.UUID) ([]*models.Transaction, error)

	Close() error
}
