package main

import (
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/villagesacco/sacco/pkg/chain"
	"github.com/villagesacco/sacco/pkg/config"
	"github.com/villagesacco/sacco/pkg/ledger"
	"github.com/villagesacco/sacco/pkg/logger"
	"github.com/villagesacco/sacco/pkg/members"
	"github.com/villagesacco/sacco/pkg/savings"
	"github.com/villagesacco/sacco/pkg/store"
)

// Server wires the core services behind the HTTP handlers.
type Server struct {
	ledger    *ledger.Ledger
	savings   *savings.Service
	storage   store.Storage
	directory members.Directory
	chain     chain.Ledger
	validate  *validator.Validate
	log       *zap.Logger

	loanRate     decimal.Decimal
	maxTerm      int
	savingsRates map[string]decimal.Decimal
}

// NewServer builds a Server from its collaborators.
func NewServer(s store.Storage, directory members.Directory, mirror chain.Ledger, cfg *config.Config, log *zap.Logger) (*Server, error) {
	loanRate, err := decimal.NewFromString(cfg.Loans.AnnualInterestRate)
	if err != nil {
		return nil, err
	}
	regularRate, err := decimal.NewFromString(cfg.Savings.RegularAnnualRate)
	if err != nil {
		return nil, err
	}
	fixedRate, err := decimal.NewFromString(cfg.Savings.FixedDepositAnnualRate)
	if err != nil {
		return nil, err
	}

	return &Server{
		ledger:    ledger.NewLedger(s, log),
		savings:   savings.NewService(s, log),
		storage:   s,
		directory: directory,
		chain:     mirror,
		validate:  validator.New(),
		log:       log,
		loanRate:  loanRate,
		maxTerm:   cfg.Loans.MaxTermMonths,
		savingsRates: map[string]decimal.Decimal{
			"REGULAR":       regularRate,
			"FIXED_DEPOSIT": fixedRate,
		},
	}, nil
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.submitApplicationHandler).Methods("POST")
	router.HandleFunc("/loans/quote", s.quoteHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/approve", s.approveLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/reject", s.rejectLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/disburse", s.disburseLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/schedule", s.getScheduleHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/transactions", s.loanTransactionsHandler).Methods("GET")

	router.HandleFunc("/accounts", s.openAccountHandler).Methods("POST")
	router.HandleFunc("/accounts/{id}", s.getAccountHandler).Methods("GET")
	router.HandleFunc("/accounts/{id}", s.deactivateAccountHandler).Methods("DELETE")
	router.HandleFunc("/accounts/{id}/deposits", s.depositHandler).Methods("POST")
	router.HandleFunc("/accounts/{id}/withdrawals", s.withdrawHandler).Methods("POST")
	router.HandleFunc("/accounts/{id}/transactions", s.accountTransactionsHandler).Methods("GET")

	router.HandleFunc("/admin/accruals", s.runAccrualHandler).Methods("POST")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize store", zap.Error(err))
	}
	defer sqliteStore.Close()
	log.Info("database ready", zap.String("path", cfg.Database.Path))

	// Membership lives in the external auth subsystem; until that is wired
	// up the directory is seeded with a bootstrap admin.
	adminID := os.Getenv("SACCO_ADMIN_ID")
	if adminID == "" {
		adminID = "admin"
	}
	directory := members.NewStaticDirectory(members.Member{
		ID:               adminID,
		Role:             members.RoleAdmin,
		MembershipStatus: members.MembershipApproved,
	})

	server, err := NewServer(sqliteStore, directory, chain.NewNoop(log), cfg, log)
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}

	// Background interest accrual, admin endpoint triggers the same run.
	go func() {
		ticker := time.NewTicker(cfg.Savings.AccrualInterval)
		defer ticker.Stop()

		for range ticker.C {
			server.savings.AccrueAll(time.Now())
		}
	}()

	log.Info("server starting", zap.String("address", cfg.Server.Address))
	if err := http.ListenAndServe(cfg.Server.Address, server.Router()); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
