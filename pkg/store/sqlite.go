package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
// Decimal fields are stored as TEXT so no precision is lost.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and initializes the schema.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		purpose TEXT NOT NULL DEFAULT '',
		term_months INTEGER NOT NULL,
		annual_interest_rate TEXT NOT NULL,
		monthly_payment TEXT NOT NULL,
		total_repayment TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		status TEXT NOT NULL,
		applied_at DATETIME NOT NULL,
		approved_at DATETIME,
		approved_by TEXT NOT NULL DEFAULT '',
		disbursed_at DATETIME,
		next_payment_due DATETIME,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS repayment_schedule_entries (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		amount TEXT NOT NULL,
		principal_portion TEXT NOT NULL,
		interest_portion TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		paid_date DATETIME,
		transaction_id TEXT,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS savings_accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		balance TEXT NOT NULL,
		annual_interest_rate TEXT NOT NULL,
		total_interest_earned TEXT NOT NULL DEFAULT '0',
		last_interest_calculated DATETIME NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL UNIQUE,
		account_id TEXT,
		loan_id TEXT,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_schedule_loan ON repayment_schedule_entries(loan_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_transactions_loan ON transactions(loan_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueReferenceError checks for a violation of the journal's unique
// reference constraint.
func isUniqueReferenceError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "transactions.reference")
}

const loanColumns = `id, borrower_id, principal, purpose, term_months, annual_interest_rate,
	monthly_payment, total_repayment, remaining_balance, status, applied_at,
	approved_at, approved_by, disbursed_at, next_payment_due, updated_at`

// CreateLoan inserts a new loan application.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.BorrowerID, loan.Principal, loan.Purpose, loan.TermMonths,
		loan.AnnualInterestRate, loan.MonthlyPayment, loan.TotalRepayment, loan.RemainingBalance,
		loan.Status, loan.AppliedAt, nullTime(loan.ApprovedAt), loan.ApprovedBy,
		nullTime(loan.DisbursedAt), nullTime(loan.NextPaymentDue), loan.UpdatedAt,
	)
	if err != nil {
		return apperrors.Storage("failed to create loan", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("loan")
	}
	if err != nil {
		return nil, apperrors.Storage("failed to get loan", err)
	}
	return loan, nil
}

// UpdateLoan persists loan mutations.
func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	result, err := s.db.Exec(
		`UPDATE loans SET borrower_id = ?, principal = ?, purpose = ?, term_months = ?,
			annual_interest_rate = ?, monthly_payment = ?, total_repayment = ?,
			remaining_balance = ?, status = ?, applied_at = ?, approved_at = ?,
			approved_by = ?, disbursed_at = ?, next_payment_due = ?, updated_at = ?
		WHERE id = ?`,
		loan.BorrowerID, loan.Principal, loan.Purpose, loan.TermMonths,
		loan.AnnualInterestRate, loan.MonthlyPayment, loan.TotalRepayment,
		loan.RemainingBalance, loan.Status, loan.AppliedAt, nullTime(loan.ApprovedAt),
		loan.ApprovedBy, nullTime(loan.DisbursedAt), nullTime(loan.NextPaymentDue),
		loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return apperrors.Storage("failed to update loan", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage("failed to check rows affected", err)
	}
	if affected == 0 {
		return apperrors.NotFound("loan")
	}
	return nil
}

// GetAllLoans retrieves all loans.
func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loans ORDER BY applied_at`)
	if err != nil {
		return nil, apperrors.Storage("failed to get all loans", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

// GetLoansByBorrower retrieves all loans held by one borrower.
func (s *SQLiteStore) GetLoansByBorrower(borrowerID string) ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE borrower_id = ? ORDER BY applied_at`, borrowerID)
	if err != nil {
		return nil, apperrors.Storage("failed to get borrower loans", err)
	}
	defer rows.Close()
	return scanLoans(rows)
}

// HasPendingLoan reports whether the borrower has an open application.
func (s *SQLiteStore) HasPendingLoan(borrowerID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM loans WHERE borrower_id = ? AND status = ?`,
		borrowerID, models.LoanStatusPending,
	).Scan(&count)
	if err != nil {
		return false, apperrors.Storage("failed to count pending loans", err)
	}
	return count > 0, nil
}

const entryColumns = `id, loan_id, sequence, due_date, amount, principal_portion,
	interest_portion, paid_amount, status, paid_date, transaction_id`

// GetSchedule retrieves the full repayment schedule for a loan, ordered by
// sequence.
func (s *SQLiteStore) GetSchedule(loanID uuid.UUID) ([]*models.RepaymentEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryColumns+` FROM repayment_schedule_entries WHERE loan_id = ? ORDER BY sequence`,
		loanID.String(),
	)
	if err != nil {
		return nil, apperrors.Storage("failed to get schedule", err)
	}
	defer rows.Close()

	var entries []*models.RepaymentEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.Storage("failed to scan schedule entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("error during schedule iteration", err)
	}
	return entries, nil
}

// GetEarliestOpenEntry returns the earliest unsettled entry, or (nil, nil).
func (s *SQLiteStore) GetEarliestOpenEntry(loanID uuid.UUID) (*models.RepaymentEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryColumns+` FROM repayment_schedule_entries
		WHERE loan_id = ? AND status IN (?, ?) ORDER BY due_date, sequence LIMIT 1`,
		loanID.String(), models.RepaymentStatusPending, models.RepaymentStatusPartial,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Storage("failed to get open schedule entry", err)
	}
	return entry, nil
}

// DisburseLoan writes the disbursement transaction, the schedule rows and
// the loan update in one database transaction.
func (s *SQLiteStore) DisburseLoan(loan *models.Loan, txn *models.Transaction, entries []*models.RepaymentEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Storage("failed to begin disbursement", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(tx, txn); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := upsertEntry(tx, entry); err != nil {
			return err
		}
	}
	if err := updateLoanTx(tx, loan); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage("failed to commit disbursement", err)
	}
	return nil
}

// ApplyLoanPayment writes the schedule entry mutation, the repayment
// transaction and the loan update in one database transaction.
func (s *SQLiteStore) ApplyLoanPayment(loan *models.Loan, entry *models.RepaymentEntry, txn *models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Storage("failed to begin payment", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(tx, txn); err != nil {
		return err
	}
	if err := upsertEntry(tx, entry); err != nil {
		return err
	}
	if err := updateLoanTx(tx, loan); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage("failed to commit payment", err)
	}
	return nil
}

// PostAccountTransaction writes a journal entry and the account update in
// one database transaction.
func (s *SQLiteStore) PostAccountTransaction(account *models.SavingsAccount, txn *models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Storage("failed to begin account posting", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(tx, txn); err != nil {
		return err
	}

	result, err := tx.Exec(
		`UPDATE savings_accounts SET balance = ?, total_interest_earned = ?,
			last_interest_calculated = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		account.Balance, account.TotalInterestEarned, account.LastInterestCalculated,
		account.IsActive, account.UpdatedAt, account.ID.String(),
	)
	if err != nil {
		return apperrors.Storage("failed to update account", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage("failed to check rows affected", err)
	}
	if affected == 0 {
		return apperrors.NotFound("savings account")
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage("failed to commit account posting", err)
	}
	return nil
}

const accountColumns = `id, owner_id, account_type, balance, annual_interest_rate,
	total_interest_earned, last_interest_calculated, is_active, created_at, updated_at`

// CreateAccount inserts a new savings account.
func (s *SQLiteStore) CreateAccount(account *models.SavingsAccount) error {
	_, err := s.db.Exec(
		`INSERT INTO savings_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID.String(), account.OwnerID, account.AccountType, account.Balance,
		account.AnnualInterestRate, account.TotalInterestEarned,
		account.LastInterestCalculated, account.IsActive, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return apperrors.Storage("failed to create account", err)
	}
	return nil
}

// GetAccount retrieves a savings account by its ID.
func (s *SQLiteStore) GetAccount(id uuid.UUID) (*models.SavingsAccount, error) {
	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM savings_accounts WHERE id = ?`, id.String())
	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("savings account")
	}
	if err != nil {
		return nil, apperrors.Storage("failed to get account", err)
	}
	return account, nil
}

// UpdateAccount persists account mutations outside of a money movement.
func (s *SQLiteStore) UpdateAccount(account *models.SavingsAccount) error {
	result, err := s.db.Exec(
		`UPDATE savings_accounts SET owner_id = ?, account_type = ?, balance = ?,
			annual_interest_rate = ?, total_interest_earned = ?, last_interest_calculated = ?,
			is_active = ?, updated_at = ? WHERE id = ?`,
		account.OwnerID, account.AccountType, account.Balance, account.AnnualInterestRate,
		account.TotalInterestEarned, account.LastInterestCalculated, account.IsActive,
		account.UpdatedAt, account.ID.String(),
	)
	if err != nil {
		return apperrors.Storage("failed to update account", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage("failed to check rows affected", err)
	}
	if affected == 0 {
		return apperrors.NotFound("savings account")
	}
	return nil
}

// GetActiveAccounts retrieves all active savings accounts.
func (s *SQLiteStore) GetActiveAccounts() ([]*models.SavingsAccount, error) {
	rows, err := s.db.Query(`SELECT ` + accountColumns + ` FROM savings_accounts WHERE is_active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, apperrors.Storage("failed to get active accounts", err)
	}
	defer rows.Close()

	var accounts []*models.SavingsAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, apperrors.Storage("failed to scan account row", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("error during account iteration", err)
	}
	return accounts, nil
}

const txnColumns = `id, owner_id, type, amount, description, reference,
	account_id, loan_id, status, created_at, processed_at`

// GetTransactionsForLoan retrieves the journal entries for a loan.
func (s *SQLiteStore) GetTransactionsForLoan(loanID uuid.UUID) ([]*models.Transaction, error) {
	return s.queryTransactions(`SELECT `+txnColumns+` FROM transactions WHERE loan_id = ? ORDER BY created_at`, loanID.String())
}

// GetTransactionsForAccount retrieves the journal entries for an account.
func (s *SQLiteStore) GetTransactionsForAccount(accountID uuid.UUID) ([]*models.Transaction, error) {
	return s.queryTransactions(`SELECT `+txnColumns+` FROM transactions WHERE account_id = ? ORDER BY created_at`, accountID.String())
}

func (s *SQLiteStore) queryTransactions(query string, arg interface{}) ([]*models.Transaction, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, apperrors.Storage("failed to get transactions", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apperrors.Storage("failed to scan transaction row", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("error during transaction iteration", err)
	}
	return txns, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers shared by the composite operations ---

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertTransaction(db execer, txn *models.Transaction) error {
	_, err := db.Exec(
		`INSERT INTO transactions (`+txnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID.String(), txn.OwnerID, txn.Type, txn.Amount, txn.Description, txn.Reference,
		nullUUID(txn.AccountID), nullUUID(txn.LoanID), txn.Status, txn.CreatedAt,
		nullTime(txn.ProcessedAt),
	)
	if isUniqueReferenceError(err) {
		return apperrors.DuplicateReference(txn.Reference)
	}
	if err != nil {
		return apperrors.Storage("failed to create transaction", err)
	}
	return nil
}

func upsertEntry(db execer, entry *models.RepaymentEntry) error {
	_, err := db.Exec(
		`INSERT INTO repayment_schedule_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			principal_portion = excluded.principal_portion,
			interest_portion = excluded.interest_portion,
			paid_amount = excluded.paid_amount,
			status = excluded.status,
			paid_date = excluded.paid_date,
			transaction_id = excluded.transaction_id`,
		entry.ID.String(), entry.LoanID.String(), entry.Sequence, entry.DueDate,
		entry.Amount, entry.PrincipalPortion, entry.InterestPortion, entry.PaidAmount,
		entry.Status, nullTime(entry.PaidDate), nullUUID(entry.TransactionID),
	)
	if err != nil {
		return apperrors.Storage("failed to upsert schedule entry", err)
	}
	return nil
}

func updateLoanTx(db execer, loan *models.Loan) error {
	result, err := db.Exec(
		`UPDATE loans SET remaining_balance = ?, status = ?, disbursed_at = ?,
			next_payment_due = ?, updated_at = ? WHERE id = ?`,
		loan.RemainingBalance, loan.Status, nullTime(loan.DisbursedAt),
		nullTime(loan.NextPaymentDue), loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return apperrors.Storage("failed to update loan", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage("failed to check rows affected", err)
	}
	if affected == 0 {
		return apperrors.NotFound("loan")
	}
	return nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
