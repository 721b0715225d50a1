package main

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/models"
)

type openAccountRequest struct {
	AccountType string `json:"account_type" validate:"required,oneof=REGULAR FIXED_DEPOSIT"`
}

func (s *Server) openAccountHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !actor.CanBorrow() {
		writeError(w, apperrors.Validation("member %s is not approved", actor.ID))
		return
	}

	var req openAccountRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := s.savings.Open(actor.ID, models.AccountType(req.AccountType), s.savingsRates[req.AccountType])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) getAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	account, err := s.savings.GetAccount(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) deactivateAccountHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.savings.Deactivate(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type accountTransactionRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

func (s *Server) depositHandler(w http.ResponseWriter, r *http.Request) {
	s.postAccountTransaction(w, r, true)
}

func (s *Server) withdrawHandler(w http.ResponseWriter, r *http.Request) {
	s.postAccountTransaction(w, r, false)
}

func (s *Server) postAccountTransaction(w http.ResponseWriter, r *http.Request, deposit bool) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req accountTransactionRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var txn *models.Transaction
	if deposit {
		txn, err = s.savings.Deposit(id, req.Amount, req.Reference)
	} else {
		txn, err = s.savings.Withdraw(id, req.Amount, req.Reference)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if deposit {
		err = s.chain.MirrorDeposit(id, txn.Amount, txn.Reference)
	} else {
		err = s.chain.MirrorWithdrawal(id, txn.Amount, txn.Reference)
	}
	if err != nil {
		s.log.Warn("chain mirror failed for account transaction", zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) accountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	txns, err := s.savings.Transactions(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// runAccrualHandler triggers an interest accrual run immediately instead of
// waiting for the scheduler.
func (s *Server) runAccrualHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	results := s.savings.AccrueAll(time.Now())
	writeJSON(w, http.StatusOK, results)
}
