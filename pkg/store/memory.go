package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/models"
)

// MemoryStore is an in-memory Storage implementation used by tests and
// local experiments. All values are copied on the way in and out so callers
// never share state with the store.
type MemoryStore struct {
	mu           sync.Mutex
	loans        map[uuid.UUID]models.Loan
	entries      map[uuid.UUID]models.RepaymentEntry
	accounts     map[uuid.UUID]models.SavingsAccount
	transactions []models.Transaction
	references   map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loans:      make(map[uuid.UUID]models.Loan),
		entries:    make(map[uuid.UUID]models.RepaymentEntry),
		accounts:   make(map[uuid.UUID]models.SavingsAccount),
		references: make(map[string]bool),
	}
}

func (m *MemoryStore) CreateLoan(loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = *loan
	return nil
}

func (m *MemoryStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, apperrors.NotFound("loan")
	}
	out := loan
	return &out, nil
}

func (m *MemoryStore) UpdateLoan(loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; !ok {
		return apperrors.NotFound("loan")
	}
	m.loans[loan.ID] = *loan
	return nil
}

func (m *MemoryStore) GetAllLoans() ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loans := make([]*models.Loan, 0, len(m.loans))
	for _, loan := range m.loans {
		out := loan
		loans = append(loans, &out)
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].AppliedAt.Before(loans[j].AppliedAt) })
	return loans, nil
}

func (m *MemoryStore) GetLoansByBorrower(borrowerID string) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*models.Loan
	for _, loan := range m.loans {
		if loan.BorrowerID == borrowerID {
			out := loan
			loans = append(loans, &out)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].AppliedAt.Before(loans[j].AppliedAt) })
	return loans, nil
}

func (m *MemoryStore) HasPendingLoan(borrowerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, loan := range m.loans {
		if loan.BorrowerID == borrowerID && loan.Status == models.LoanStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetSchedule(loanID uuid.UUID) ([]*models.RepaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduleLocked(loanID), nil
}

func (m *MemoryStore) scheduleLocked(loanID uuid.UUID) []*models.RepaymentEntry {
	var entries []*models.RepaymentEntry
	for _, entry := range m.entries {
		if entry.LoanID == loanID {
			out := entry
			entries = append(entries, &out)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries
}

func (m *MemoryStore) GetEarliestOpenEntry(loanID uuid.UUID) (*models.RepaymentEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.scheduleLocked(loanID) {
		if entry.Status == models.RepaymentStatusPending || entry.Status == models.RepaymentStatusPartial {
			return entry, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) DisburseLoan(loan *models.Loan, txn *models.Transaction, entries []*models.RepaymentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertTransactionLocked(txn); err != nil {
		return err
	}
	for _, entry := range entries {
		m.entries[entry.ID] = *entry
	}
	m.loans[loan.ID] = *loan
	return nil
}

func (m *MemoryStore) ApplyLoanPayment(loan *models.Loan, entry *models.RepaymentEntry, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertTransactionLocked(txn); err != nil {
		return err
	}
	m.entries[entry.ID] = *entry
	m.loans[loan.ID] = *loan
	return nil
}

func (m *MemoryStore) PostAccountTransaction(account *models.SavingsAccount, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; !ok {
		return apperrors.NotFound("savings account")
	}
	if err := m.insertTransactionLocked(txn); err != nil {
		return err
	}
	m.accounts[account.ID] = *account
	return nil
}

// insertTransactionLocked enforces journal reference uniqueness before any
// other mutation, so a duplicate leaves prior state untouched.
func (m *MemoryStore) insertTransactionLocked(txn *models.Transaction) error {
	if m.references[txn.Reference] {
		return apperrors.DuplicateReference(txn.Reference)
	}
	m.references[txn.Reference] = true
	m.transactions = append(m.transactions, *txn)
	return nil
}

func (m *MemoryStore) CreateAccount(account *models.SavingsAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = *account
	return nil
}

func (m *MemoryStore) GetAccount(id uuid.UUID) (*models.SavingsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("savings account")
	}
	out := account
	return &out, nil
}

func (m *MemoryStore) UpdateAccount(account *models.SavingsAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; !ok {
		return apperrors.NotFound("savings account")
	}
	m.accounts[account.ID] = *account
	return nil
}

func (m *MemoryStore) GetActiveAccounts() ([]*models.SavingsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var accounts []*models.SavingsAccount
	for _, account := range m.accounts {
		if account.IsActive {
			out := account
			accounts = append(accounts, &out)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (m *MemoryStore) GetTransactionsForLoan(loanID uuid.UUID) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txns []*models.Transaction
	for i := range m.transactions {
		if m.transactions[i].LoanID != nil && *m.transactions[i].LoanID == loanID {
			out := m.transactions[i]
			txns = append(txns, &out)
		}
	}
	return txns, nil
}

func (m *MemoryStore) GetTransactionsForAccount(accountID uuid.UUID) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txns []*models.Transaction
	for i := range m.transactions {
		if m.transactions[i].AccountID != nil && *m.transactions[i].AccountID == accountID {
			out := m.transactions[i]
			txns = append(txns, &out)
		}
	}
	return txns, nil
}

// TransactionCount reports the journal size, used by tests asserting that
// an operation was a no-op.
func (m *MemoryStore) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

func (m *MemoryStore) Close() error { return nil }
