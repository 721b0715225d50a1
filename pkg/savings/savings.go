// Package savings implements savings accounts: deposits, withdrawals and
// the batch interest accrual job.
package savings

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/metrics"
	"github.com/villagesacco/sacco/pkg/models"
	"github.com/villagesacco/sacco/pkg/store"
)

var (
	daysInYear = decimal.NewFromInt(365)
	// Accruals below one cent are skipped rather than posted as dust.
	minAccrual = decimal.NewFromFloat(0.01)
)

// Service handles the business logic for savings accounts.
type Service struct {
	storage store.Storage
	log     *zap.Logger
	now     func() time.Time
}

// NewService creates a savings Service over the given Storage.
func NewService(s store.Storage, log *zap.Logger) *Service {
	return &Service{storage: s, log: log, now: time.Now}
}

// WithClock overrides the service's clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Open creates a new active savings account with a zero balance. The
// accrual watermark starts at open time.
func (s *Service) Open(ownerID string, accountType models.AccountType, annualRate decimal.Decimal) (*models.SavingsAccount, error) {
	if accountType != models.AccountTypeRegular && accountType != models.AccountTypeFixedDeposit {
		return nil, apperrors.Validation("unknown account type %q", accountType)
	}
	if annualRate.IsNegative() {
		return nil, apperrors.Validation("interest rate must not be negative, got %s", annualRate)
	}

	now := s.now()
	account := &models.SavingsAccount{
		ID:                     uuid.New(),
		OwnerID:                ownerID,
		AccountType:            accountType,
		Balance:                decimal.Zero,
		AnnualInterestRate:     annualRate,
		TotalInterestEarned:    decimal.Zero,
		LastInterestCalculated: now,
		IsActive:               true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.storage.CreateAccount(account); err != nil {
		return nil, err
	}

	s.log.Info("savings account opened",
		zap.String("account_id", account.ID.String()),
		zap.String("owner_id", ownerID),
		zap.String("account_type", string(accountType)))
	return account, nil
}

// Deposit credits an active account. reference is the caller's idempotency
// key; blank gets a generated one.
func (s *Service) Deposit(accountID uuid.UUID, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	return s.post(accountID, amount, reference, models.TransactionTypeDeposit)
}

// Withdraw debits an active account. The balance can never go negative.
func (s *Service) Withdraw(accountID uuid.UUID, amount decimal.Decimal, reference string) (*models.Transaction, error) {
	return s.post(accountID, amount, reference, models.TransactionTypeWithdrawal)
}

func (s *Service) post(accountID uuid.UUID, amount decimal.Decimal, reference string, txType models.TransactionType) (*models.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.Validation("amount must be positive, got %s", amount)
	}

	account, err := s.storage.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, apperrors.InvalidStateTransition("account %s is not active", account.ID)
	}

	switch txType {
	case models.TransactionTypeDeposit:
		account.Balance = account.Balance.Add(amount)
	case models.TransactionTypeWithdrawal:
		if amount.GreaterThan(account.Balance) {
			return nil, apperrors.InsufficientFunds(
				"withdrawal of %s exceeds balance %s", amount.StringFixed(2), account.Balance.StringFixed(2))
		}
		account.Balance = account.Balance.Sub(amount)
	default:
		return nil, apperrors.Validation("unsupported transaction type %q", txType)
	}

	now := s.now()
	account.UpdatedAt = now
	txn := &models.Transaction{
		ID:          uuid.New(),
		OwnerID:     account.OwnerID,
		Type:        txType,
		Amount:      amount,
		Description: fmt.Sprintf("%s on account %s", txType, account.ID),
		Reference:   reference,
		AccountID:   &account.ID,
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	if txn.Reference == "" {
		txn.Reference = "ACCT-" + txn.ID.String()
	}

	if err := s.storage.PostAccountTransaction(account, txn); err != nil {
		return nil, err
	}

	metrics.TransactionsPosted.WithLabelValues(string(txType)).Inc()
	s.log.Info("account transaction posted",
		zap.String("account_id", account.ID.String()),
		zap.String("type", string(txType)),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", account.Balance.StringFixed(2)))
	return txn, nil
}

// Deactivate soft-disables an account. Accounts are never hard-deleted.
func (s *Service) Deactivate(accountID uuid.UUID) error {
	account, err := s.storage.GetAccount(accountID)
	if err != nil {
		return err
	}
	account.IsActive = false
	account.UpdatedAt = s.now()
	return s.storage.UpdateAccount(account)
}

// GetAccount retrieves an account by its ID.
func (s *Service) GetAccount(id uuid.UUID) (*models.SavingsAccount, error) {
	return s.storage.GetAccount(id)
}

// Transactions retrieves an account's journal entries.
func (s *Service) Transactions(accountID uuid.UUID) ([]*models.Transaction, error) {
	if _, err := s.storage.GetAccount(accountID); err != nil {
		return nil, err
	}
	return s.storage.GetTransactionsForAccount(accountID)
}

// AccrualResult reports the outcome of one account's interest accrual.
type AccrualResult struct {
	AccountID uuid.UUID       `json:"account_id"`
	Days      int             `json:"days"`
	Interest  decimal.Decimal `json:"interest"`
	Skipped   bool            `json:"skipped"`
	Err       error           `json:"-"`
	Error     string          `json:"error,omitempty"`
}

// AccrueAll runs simple daily interest accrual for every active account:
// interest = balance * (annualRate/365) * wholeDaysSinceWatermark, rounded
// to the cent. Whole days are measured against the stored watermark, so a
// same-day rerun is a no-op. One account's failure does not abort the rest;
// each account is its own atomic unit.
func (s *Service) AccrueAll(now time.Time) []AccrualResult {
	started := s.now()

	accounts, err := s.storage.GetActiveAccounts()
	if err != nil {
		s.log.Error("accrual run could not list accounts", zap.Error(err))
		return nil
	}

	results := make([]AccrualResult, 0, len(accounts))
	for _, account := range accounts {
		result := s.accrueOne(account, now)
		if result.Err != nil {
			result.Error = result.Err.Error()
			s.log.Error("account accrual failed",
				zap.String("account_id", account.ID.String()),
				zap.Error(result.Err))
		}
		results = append(results, result)
		metrics.AccrualAccountsProcessed.Inc()
	}

	metrics.AccrualRunDuration.Observe(s.now().Sub(started).Seconds())
	s.log.Info("interest accrual run finished",
		zap.Int("accounts", len(results)),
		zap.Time("as_of", now))
	return results
}

func (s *Service) accrueOne(account *models.SavingsAccount, now time.Time) AccrualResult {
	result := AccrualResult{AccountID: account.ID}

	days := int(now.Sub(account.LastInterestCalculated).Hours() / 24)
	if days <= 0 || !account.Balance.IsPositive() {
		result.Skipped = true
		result.Interest = decimal.Zero
		return result
	}
	result.Days = days

	dailyRate := account.AnnualInterestRate.Div(daysInYear)
	interest := account.Balance.Mul(dailyRate).Mul(decimal.NewFromInt(int64(days))).Round(2)
	if interest.LessThan(minAccrual) {
		result.Skipped = true
		result.Interest = decimal.Zero
		return result
	}
	result.Interest = interest

	account.Balance = account.Balance.Add(interest)
	account.TotalInterestEarned = account.TotalInterestEarned.Add(interest)
	account.LastInterestCalculated = now
	account.UpdatedAt = now

	txn := &models.Transaction{
		ID:          uuid.New(),
		OwnerID:     account.OwnerID,
		Type:        models.TransactionTypeInterestPayment,
		Amount:      interest,
		Description: fmt.Sprintf("Interest for %d day(s) on account %s", days, account.ID),
		AccountID:   &account.ID,
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   now,
		ProcessedAt: &now,
	}
	txn.Reference = "INT-" + txn.ID.String()

	if err := s.storage.PostAccountTransaction(account, txn); err != nil {
		result.Err = err
		return result
	}

	metrics.TransactionsPosted.WithLabelValues(string(txn.Type)).Inc()
	return result
}
