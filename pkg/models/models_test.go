package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to LoanStatus
		ok       bool
	}{
		{LoanStatusPending, LoanStatusApproved, true},
		{LoanStatusPending, LoanStatusRejected, true},
		{LoanStatusApproved, LoanStatusDisbursed, true},
		{LoanStatusDisbursed, LoanStatusCompleted, true},

		{LoanStatusPending, LoanStatusDisbursed, false},
		{LoanStatusPending, LoanStatusCompleted, false},
		{LoanStatusApproved, LoanStatusRejected, false},
		{LoanStatusApproved, LoanStatusPending, false},
		{LoanStatusRejected, LoanStatusApproved, false},
		{LoanStatusCompleted, LoanStatusDisbursed, false},
		{LoanStatusDisbursed, LoanStatusDisbursed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, LoanStatusPending.Terminal())
	assert.False(t, LoanStatusApproved.Terminal())
	assert.False(t, LoanStatusDisbursed.Terminal())
	assert.True(t, LoanStatusRejected.Terminal())
	assert.True(t, LoanStatusCompleted.Terminal())
}
