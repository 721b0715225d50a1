package main

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/villagesacco/sacco/pkg/amortize"
	"github.com/villagesacco/sacco/pkg/apperrors"
	"github.com/villagesacco/sacco/pkg/members"
)

// actorHeader carries the authenticated caller's member ID. Authentication
// itself is the responsibility of the gateway in front of this service.
const actorHeader = "X-Member-ID"

func (s *Server) actor(r *http.Request) (members.Member, error) {
	id := r.Header.Get(actorHeader)
	if id == "" {
		return members.Member{}, apperrors.Validation("missing %s header", actorHeader)
	}
	return s.directory.Lookup(id)
}

func (s *Server) requireAdmin(r *http.Request) (members.Member, error) {
	m, err := s.actor(r)
	if err != nil {
		return members.Member{}, err
	}
	if !m.IsAdmin() {
		return members.Member{}, apperrors.Validation("member %s is not an admin", m.ID)
	}
	return m, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeInvalidStateTransition,
		apperrors.CodeDuplicatePendingApplication,
		apperrors.CodeInsufficientFunds,
		apperrors.CodeDuplicateReference:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

func (s *Server) decodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("invalid request body: %v", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return apperrors.Validation("invalid request: %v", err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid %s", name)
	}
	return id, nil
}

type applicationRequest struct {
	Purpose    string          `json:"purpose"`
	Principal  decimal.Decimal `json:"principal"`
	TermMonths int             `json:"term_months" validate:"gt=0"`
}

func (s *Server) submitApplicationHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !actor.CanBorrow() {
		writeError(w, apperrors.Validation("member %s is not approved for borrowing", actor.ID))
		return
	}

	var req applicationRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.maxTerm > 0 && req.TermMonths > s.maxTerm {
		writeError(w, apperrors.Validation("term %d exceeds maximum of %d months", req.TermMonths, s.maxTerm))
		return
	}

	loan, err := s.ledger.SubmitApplication(actor.ID, req.Purpose, req.Principal, s.loanRate, req.TermMonths)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.chain.MirrorLoanRequest(loan.ID, loan.Principal); err != nil {
		s.log.Warn("chain mirror failed for loan request", zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, loan)
}

type quoteRequest struct {
	Principal          decimal.Decimal  `json:"principal"`
	TermMonths         int              `json:"term_months" validate:"gt=0"`
	AnnualInterestRate *decimal.Decimal `json:"annual_interest_rate,omitempty"`
}

// quoteHandler previews a loan's payment terms without creating anything.
func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	rate := s.loanRate
	if req.AnnualInterestRate != nil {
		rate = *req.AnnualInterestRate
	}
	quote, err := amortize.Compute(req.Principal, rate, req.TermMonths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if actor.IsAdmin() {
		loans, err := s.ledger.GetAllLoans()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, loans)
		return
	}

	loans, err := s.ledger.GetLoansByBorrower(actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	loan, err := s.ledger.GetLoan(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.reviewLoan(w, r, true)
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.reviewLoan(w, r, false)
}

func (s *Server) reviewLoan(w http.ResponseWriter, r *http.Request, approve bool) {
	admin, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	review := s.ledger.Reject
	if approve {
		review = s.ledger.Approve
	}
	loan, err := review(id, admin.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) disburseLoanHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	loan, err := s.ledger.Disburse(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

type paymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req paymentRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	txn, err := s.ledger.RecordPayment(id, req.Amount, req.Reference)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.chain.MirrorRepayment(id, txn.Amount, txn.Reference); err != nil {
		s.log.Warn("chain mirror failed for repayment", zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) getScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.ledger.Schedule(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) loanTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	txns, err := s.ledger.Transactions(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}
