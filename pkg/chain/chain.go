// Package chain is the boundary to the on-chain mirror of SACCO
// operations. The financial core never depends on chain state for its own
// correctness; mirroring is best-effort and failures are only logged.
package chain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger mirrors money movements to an external smart-contract ledger.
type Ledger interface {
	RegisterMember(address, memberID string) error
	MirrorDeposit(accountID uuid.UUID, amount decimal.Decimal, reference string) error
	MirrorWithdrawal(accountID uuid.UUID, amount decimal.Decimal, reference string) error
	MirrorLoanRequest(loanID uuid.UUID, principal decimal.Decimal) error
	MirrorRepayment(loanID uuid.UUID, amount decimal.Decimal, reference string) error
}

// Noop is a Ledger that records nothing. Used when no chain endpoint is
// configured.
type Noop struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) *Noop {
	return &Noop{log: log}
}

func (n *Noop) RegisterMember(address, memberID string) error {
	n.log.Debug("chain mirror disabled, skipping member registration", zap.String("member_id", memberID))
	return nil
}

func (n *Noop) MirrorDeposit(accountID uuid.UUID, amount decimal.Decimal, reference string) error {
	n.log.Debug("chain mirror disabled, skipping deposit", zap.String("reference", reference))
	return nil
}

func (n *Noop) MirrorWithdrawal(accountID uuid.UUID, amount decimal.Decimal, reference string) error {
	n.log.Debug("chain mirror disabled, skipping withdrawal", zap.String("reference", reference))
	return nil
}

func (n *Noop) MirrorLoanRequest(loanID uuid.UUID, principal decimal.Decimal) error {
	n.log.Debug("chain mirror disabled, skipping loan request", zap.String("loan_id", loanID.String()))
	return nil
}

func (n *Noop) MirrorRepayment(loanID uuid.UUID, amount decimal.Decimal, reference string) error {
	n.log.Debug("chain mirror disabled, skipping repayment", zap.String("reference", reference))
	return nil
}
