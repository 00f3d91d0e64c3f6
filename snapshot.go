package tapbank

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the persisted form of the ledger, keyed by card ID. Timestamps are
// epoch milliseconds.
type Snapshot map[string]AccountSnapshot

type AccountSnapshot struct {
	Balance      int64          `json:"balance"`
	Transactions int            `json:"transactions"`
	Loans        []LoanSnapshot `json:"loans"`
}

type LoanSnapshot struct {
	Amount          int64  `json:"amount"`
	Paid            bool   `json:"paid"`
	Timestamp       int64  `json:"timestamp"`
	RepaidTimestamp *int64 `json:"repaidTimestamp,omitempty"`
}

func DecodeSnapshot(bits []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(bits, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return snap, nil
}

func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// Validate checks that both cards are present and every record is well formed.
func (s Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: empty", ErrMalformedSnapshot)
	}
	for _, id := range Cards {
		as, ok := s[string(id)]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, id)
		}
		if as.Transactions < 0 {
			return fmt.Errorf("%w: %s has negative transactions", ErrMalformedSnapshot, id)
		}
		for i, l := range as.Loans {
			if l.Amount <= 0 {
				return fmt.Errorf("%w: %s loan %d has non-positive amount", ErrMalformedSnapshot, id, i)
			}
			if l.Paid != (l.RepaidTimestamp != nil) {
				return fmt.Errorf("%w: %s loan %d repaid timestamp mismatch", ErrMalformedSnapshot, id, i)
			}
		}
	}
	if len(s) != len(Cards) {
		return fmt.Errorf("%w: unexpected cards", ErrMalformedSnapshot)
	}
	return nil
}

func snapshotAccount(a *Account) AccountSnapshot {
	as := AccountSnapshot{
		Balance:      a.Balance,
		Transactions: a.OutstandingCount,
		Loans:        make([]LoanSnapshot, 0, len(a.Loans)),
	}
	for _, l := range a.Loans {
		ls := LoanSnapshot{
			Amount:    l.Amount,
			Paid:      l.Paid,
			Timestamp: l.CreatedAt.UnixMilli(),
		}
		if l.RepaidAt != nil {
			ms := l.RepaidAt.UnixMilli()
			ls.RepaidTimestamp = &ms
		}
		as.Loans = append(as.Loans, ls)
	}
	return as
}

func restoreAccount(id CardID, as AccountSnapshot) *Account {
	a := newAccount(id, as.Balance)
	a.OutstandingCount = as.Transactions
	for _, ls := range as.Loans {
		l := Loan{
			Amount:    ls.Amount,
			Paid:      ls.Paid,
			CreatedAt: time.UnixMilli(ls.Timestamp),
		}
		if ls.RepaidTimestamp != nil {
			t := time.UnixMilli(*ls.RepaidTimestamp)
			l.RepaidAt = &t
		}
		a.Loans = append(a.Loans, l)
	}
	return a
}
