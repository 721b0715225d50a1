package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sacco_transactions_posted_total",
			Help: "Total number of journal transactions posted",
		},
		[]string{"type"},
	)

	OperationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sacco_operations_failed_total",
			Help: "Total number of core operations rejected or failed",
		},
		[]string{"operation", "error_code"},
	)

	LoansByTransition = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sacco_loan_transitions_total",
			Help: "Total number of loan status transitions",
		},
		[]string{"to_status"},
	)

	AccrualRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "sacco_interest_accrual_run_seconds",
			Help: "Duration of savings interest accrual runs in seconds",
		},
	)

	AccrualAccountsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sacco_interest_accrual_accounts_total",
			Help: "Total number of accounts visited by accrual runs",
		},
	)
)
