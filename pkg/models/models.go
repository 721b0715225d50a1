package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "PENDING"
	LoanStatusApproved  LoanStatus = "APPROVED"
	LoanStatusRejected  LoanStatus = "REJECTED"
	LoanStatusDisbursed LoanStatus = "DISBURSED"
	LoanStatusCompleted LoanStatus = "COMPLETED"
)

// loanTransitions is the only place legal status changes are defined.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:   {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved:  {LoanStatusDisbursed},
	LoanStatusDisbursed: {LoanStatusCompleted},
}

// CanTransition reports whether a loan may move from one status to another.
func CanTransition(from, to LoanStatus) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status accepts no further transitions.
func (s LoanStatus) Terminal() bool {
	return len(loanTransitions[s]) == 0
}

type Loan struct {
	ID                 uuid.UUID       `json:"id"`
	BorrowerID         string          `json:"borrower_id"` // Link to external member system
	Principal          decimal.Decimal `json:"principal"`
	Purpose            string          `json:"purpose"`
	TermMonths         int             `json:"term_months"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"` // e.g. 0.15 for 15% APR
	MonthlyPayment     decimal.Decimal `json:"monthly_payment"`
	TotalRepayment     decimal.Decimal `json:"total_repayment"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
	Status             LoanStatus      `json:"status"`
	AppliedAt          time.Time       `json:"applied_at"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy         string          `json:"approved_by,omitempty"`
	DisbursedAt        *time.Time      `json:"disbursed_at,omitempty"`
	NextPaymentDue     *time.Time      `json:"next_payment_due,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type RepaymentStatus string

const (
	RepaymentStatusPending RepaymentStatus = "PENDING"
	RepaymentStatusPartial RepaymentStatus = "PARTIAL"
	RepaymentStatusPaid    RepaymentStatus = "PAID"
)

// RepaymentEntry is one row of a loan's repayment schedule, created in a
// batch at disbursement time and mutated in place as payments arrive.
type RepaymentEntry struct {
	ID               uuid.UUID       `json:"id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	Sequence         int             `json:"sequence"`
	DueDate          time.Time       `json:"due_date"`
	Amount           decimal.Decimal `json:"amount"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PaidAmount       decimal.Decimal `json:"paid_amount"` // Cumulative, supports PARTIAL
	Status           RepaymentStatus `json:"status"`
	PaidDate         *time.Time      `json:"paid_date,omitempty"`
	TransactionID    *uuid.UUID      `json:"transaction_id,omitempty"` // Last transaction applied to this entry
}

// Outstanding returns how much of the entry is still unpaid.
func (e *RepaymentEntry) Outstanding() decimal.Decimal {
	out := e.Amount.Sub(e.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

type AccountType string

const (
	AccountTypeRegular      AccountType = "REGULAR"
	AccountTypeFixedDeposit AccountType = "FIXED_DEPOSIT"
)

type SavingsAccount struct {
	ID                     uuid.UUID       `json:"id"`
	OwnerID                string          `json:"owner_id"` // Link to external member system
	AccountType            AccountType     `json:"account_type"`
	Balance                decimal.Decimal `json:"balance"`
	AnnualInterestRate     decimal.Decimal `json:"annual_interest_rate"`
	TotalInterestEarned    decimal.Decimal `json:"total_interest_earned"`
	LastInterestCalculated time.Time       `json:"last_interest_calculated"` // Accrual watermark
	IsActive               bool            `json:"is_active"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit         TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal      TransactionType = "WITHDRAWAL"
	TransactionTypeInterestPayment TransactionType = "INTEREST_PAYMENT"
	TransactionTypeDisbursement    TransactionType = "LOAN_DISBURSEMENT"
	TransactionTypeRepayment       TransactionType = "LOAN_REPAYMENT"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an append-only journal entry. Amount is always positive;
// the direction is carried by Type, not by sign.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Reference   string            `json:"reference"` // Unique, doubles as idempotency key
	AccountID   *uuid.UUID        `json:"account_id,omitempty"`
	LoanID      *uuid.UUID        `json:"loan_id,omitempty"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}
