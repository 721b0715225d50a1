package store

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/villagesacco/sacco/pkg/models"
)

// rowScanner lets the scan helpers work with both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var idStr string
	var approvedAt, disbursedAt, nextDue sql.NullTime

	err := row.Scan(
		&idStr, &loan.BorrowerID, &loan.Principal, &loan.Purpose, &loan.TermMonths,
		&loan.AnnualInterestRate, &loan.MonthlyPayment, &loan.TotalRepayment,
		&loan.RemainingBalance, &loan.Status, &loan.AppliedAt,
		&approvedAt, &loan.ApprovedBy, &disbursedAt, &nextDue, &loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	if approvedAt.Valid {
		loan.ApprovedAt = &approvedAt.Time
	}
	if disbursedAt.Valid {
		loan.DisbursedAt = &disbursedAt.Time
	}
	if nextDue.Valid {
		loan.NextPaymentDue = &nextDue.Time
	}
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loans, nil
}

func scanEntry(row rowScanner) (*models.RepaymentEntry, error) {
	var entry models.RepaymentEntry
	var idStr, loanIDStr string
	var paidDate sql.NullTime
	var txnID sql.NullString

	err := row.Scan(
		&idStr, &loanIDStr, &entry.Sequence, &entry.DueDate, &entry.Amount,
		&entry.PrincipalPortion, &entry.InterestPortion, &entry.PaidAmount,
		&entry.Status, &paidDate, &txnID,
	)
	if err != nil {
		return nil, err
	}
	entry.ID = uuid.MustParse(idStr)
	entry.LoanID = uuid.MustParse(loanIDStr)
	if paidDate.Valid {
		entry.PaidDate = &paidDate.Time
	}
	if txnID.Valid {
		parsed := uuid.MustParse(txnID.String)
		entry.TransactionID = &parsed
	}
	return &entry, nil
}

func scanAccount(row rowScanner) (*models.SavingsAccount, error) {
	var account models.SavingsAccount
	var idStr string

	err := row.Scan(
		&idStr, &account.OwnerID, &account.AccountType, &account.Balance,
		&account.AnnualInterestRate, &account.TotalInterestEarned,
		&account.LastInterestCalculated, &account.IsActive,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.ID = uuid.MustParse(idStr)
	return &account, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var txn models.Transaction
	var idStr string
	var accountID, loanID sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&idStr, &txn.OwnerID, &txn.Type, &txn.Amount, &txn.Description, &txn.Reference,
		&accountID, &loanID, &txn.Status, &txn.CreatedAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.ID = uuid.MustParse(idStr)
	if accountID.Valid {
		parsed := uuid.MustParse(accountID.String)
		txn.AccountID = &parsed
	}
	if loanID.Valid {
		parsed := uuid.MustParse(loanID.String)
		txn.LoanID = &parsed
	}
	if processedAt.Valid {
		txn.ProcessedAt = &processedAt.Time
	}
	return &txn, nil
}
