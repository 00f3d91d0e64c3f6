package tapbank_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/tapbank"
)

func loans(amounts ...int64) []tapbank.Loan {
	out := make([]tapbank.Loan, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, tapbank.Loan{Amount: a})
	}
	return out
}

func TestInterestRate(t *testing.T) {
	tests := []struct {
		outstanding int
		want        string
	}{
		{0, "0.05"},
		{1, "0.05"},
		{2, "0.06"},
		{3, "0.07"},
		{10, "0.14"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tapbank.InterestRate(tc.outstanding).String(), "outstanding %d", tc.outstanding)
	}
}

func TestQuoteRepayment(t *testing.T) {
	tests := []struct {
		name         string
		acct         tapbank.Account
		wantInterest int64
		wantTotal    int64
	}{
		{
			name:         "two bids and two loans",
			acct:         tapbank.Account{OutstandingCount: 2, Loans: loans(1000, 2000)},
			wantInterest: 180,
			wantTotal:    3180,
		},
		{
			name:         "half rounds up",
			acct:         tapbank.Account{OutstandingCount: 1, Loans: loans(50)},
			wantInterest: 3,
			wantTotal:    53,
		},
		{
			name:         "below half rounds down",
			acct:         tapbank.Account{OutstandingCount: 1, Loans: loans(49)},
			wantInterest: 2,
			wantTotal:    51,
		},
		{
			name: "paid loans are ignored",
			acct: tapbank.Account{OutstandingCount: 3, Loans: []tapbank.Loan{
				{Amount: 9_000_000, Paid: true},
				{Amount: 1_000_000},
			}},
			wantInterest: 70_000,
			wantTotal:    1_070_000,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			q, err := tapbank.QuoteRepayment(tc.acct)
			require.NoError(tt, err)
			assert.Equal(tt, tc.wantInterest, q.Interest)
			assert.Equal(tt, tc.wantTotal, q.Total)
			assert.Equal(tt, q.LoanTotal+q.Interest, q.Total)
		})
	}

	t.Run("no outstanding bids", func(tt *testing.T) {
		_, err := tapbank.QuoteRepayment(tapbank.Account{Loans: loans(100)})
		assert.ErrorIs(tt, err, tapbank.ErrNothingToRepay)
	})

	t.Run("no unpaid loans", func(tt *testing.T) {
		_, err := tapbank.QuoteRepayment(tapbank.Account{OutstandingCount: 4, Loans: []tapbank.Loan{{Amount: 5, Paid: true}}})
		assert.ErrorIs(tt, err, tapbank.ErrNothingToRepay)
	})
}
