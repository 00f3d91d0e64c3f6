package tapbank

import (
	"github.com/shopspring/decimal"
)

var (
	baseInterestRate = decimal.New(5, -2)
	interestRateStep = decimal.New(1, -2)
)

// Quote is the amount due to settle every unpaid loan of a card.
type Quote struct {
	Loans     int             `json:"loans"`
	LoanTotal int64           `json:"loan_total"`
	Rate      decimal.Decimal `json:"rate"`
	Interest  int64           `json:"interest"`
	Total     int64           `json:"total"`
}

// InterestRate is 5% plus 1% for every bid obligation after the first.
func InterestRate(outstanding int) decimal.Decimal {
	extra := outstanding - 1
	if extra < 0 {
		extra = 0
	}
	return baseInterestRate.Add(interestRateStep.Mul(decimal.NewFromInt(int64(extra))))
}

// QuoteRepayment charges interest on the sum of all unpaid loans at once. Interest is
// rounded half up to a whole currency unit.
func QuoteRepayment(acct Account) (Quote, error) {
	if acct.OutstandingCount == 0 {
		return Quote{}, ErrNothingToRepay
	}
	unpaid := acct.UnpaidLoans()
	if len(unpaid) == 0 {
		return Quote{}, ErrNothingToRepay
	}

	var total int64
	for _, l := range unpaid {
		total += l.Amount
	}
	rate := InterestRate(acct.OutstandingCount)
	interest := decimal.NewFromInt(total).Mul(rate).Round(0).IntPart()

	return Quote{
		Loans:     len(unpaid),
		LoanTotal: total,
		Rate:      rate,
		Interest:  interest,
		Total:     total + interest,
	}, nil
}
