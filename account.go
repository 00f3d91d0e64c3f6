package tapbank

import (
	"strings"
	"time"
)

// DefaultBalance is the starting balance of both cards.
const DefaultBalance int64 = 1_500_000

type CardID string

const (
	Card1 CardID = "card1"
	Card2 CardID = "card2"
)

// Cards lists the only two accounts the ledger ever holds.
var Cards = []CardID{Card1, Card2}

func (c CardID) Valid() bool {
	return c == Card1 || c == Card2
}

// Label is the short form shown to players, e.g. "Card 1".
func (c CardID) Label() string {
	return "Card " + strings.TrimPrefix(string(c), "card")
}

type Account struct {
	ID               CardID `json:"id"`
	Balance          int64  `json:"balance"`
	OutstandingCount int    `json:"transactions"`
	Loans            []Loan `json:"loans"`
}

type Loan struct {
	Amount    int64      `json:"amount"`
	Paid      bool       `json:"paid"`
	CreatedAt time.Time  `json:"created_at"`
	RepaidAt  *time.Time `json:"repaid_at,omitempty"`
}

// UnpaidLoans returns the loans not yet settled, oldest first.
func (a *Account) UnpaidLoans() []Loan {
	var out []Loan
	for _, l := range a.Loans {
		if !l.Paid {
			out = append(out, l)
		}
	}
	return out
}

func (a *Account) clone() Account {
	cp := *a
	cp.Loans = make([]Loan, len(a.Loans))
	for i, l := range a.Loans {
		cp.Loans[i] = l
		if l.RepaidAt != nil {
			t := *l.RepaidAt
			cp.Loans[i].RepaidAt = &t
		}
	}
	return cp
}

func newAccount(id CardID, balance int64) *Account {
	return &Account{
		ID:      id,
		Balance: balance,
		Loans:   []Loan{},
	}
}
