package tapbank

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Ledger owns the authoritative state of both cards. It knows nothing about modes;
// bound checks belong to the engine and are done before any mutation.
//
// Ledger is not safe for concurrent use.
type Ledger struct {
	repo           Repository
	log            *zerolog.Logger
	now            func() time.Time
	defaultBalance int64

	accts map[CardID]*Account
	dirty bool
}

type LedgerOption func(*Ledger)

func WithDefaultBalance(balance int64) LedgerOption {
	return func(l *Ledger) {
		l.defaultBalance = balance
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger loads the stored snapshot. A missing or malformed snapshot is replaced by
// the default state, which is persisted right away; any other load error is returned.
func NewLedger(ctx context.Context, repo Repository, log *zerolog.Logger, opts ...LedgerOption) (*Ledger, error) {
	l := &Ledger{
		repo:           repo,
		log:            log,
		now:            time.Now,
		defaultBalance: DefaultBalance,
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, err := repo.Load(ctx)
	switch {
	case err == nil:
		if err = l.Restore(ctx, snap); err != nil {
			l.log.Warn().Err(err).Msg("stored snapshot rejected, starting from defaults")
		}
	case errors.Is(err, ErrNoSnapshot), errors.Is(err, ErrMalformedSnapshot):
		l.log.Info().Err(err).Msg("starting from default ledger")
		if err = l.ResetAll(ctx); err != nil {
			l.log.Warn().Err(err).Msg("default ledger not persisted")
		}
	default:
		return nil, err
	}

	return l, nil
}

func (l *Ledger) account(id CardID) (*Account, error) {
	a, ok := l.accts[id]
	if !ok {
		return nil, ErrUnknownAccount{ID: id}
	}
	return a, nil
}

// GetAccount returns a copy of the card's state.
func (l *Ledger) GetAccount(id CardID) (Account, error) {
	a, err := l.account(id)
	if err != nil {
		return Account{}, err
	}
	return a.clone(), nil
}

func (l *Ledger) ApplyDelta(id CardID, delta int64) error {
	a, err := l.account(id)
	if err != nil {
		return err
	}
	a.Balance += delta
	l.dirty = true
	return nil
}

func (l *Ledger) RecordBidObligation(id CardID) error {
	a, err := l.account(id)
	if err != nil {
		return err
	}
	a.OutstandingCount++
	l.dirty = true
	return nil
}

func (l *Ledger) AddLoan(id CardID, amount int64) error {
	a, err := l.account(id)
	if err != nil {
		return err
	}
	a.Loans = append(a.Loans, Loan{
		Amount:    amount,
		CreatedAt: l.timestamp(),
	})
	l.dirty = true
	return nil
}

// SettleLoans marks every unpaid loan of the card as paid and zeroes its outstanding
// count. paidTotal is only logged.
func (l *Ledger) SettleLoans(id CardID, paidTotal int64) error {
	a, err := l.account(id)
	if err != nil {
		return err
	}
	now := l.timestamp()
	settled := 0
	for i := range a.Loans {
		if a.Loans[i].Paid {
			continue
		}
		repaid := now
		a.Loans[i].Paid = true
		a.Loans[i].RepaidAt = &repaid
		settled++
	}
	a.OutstandingCount = 0
	l.dirty = true
	l.log.Debug().
		Str("card", string(id)).
		Int("loans", settled).
		Int64("paid_total", paidTotal).
		Msg("loans settled")
	return nil
}

func (l *Ledger) Snapshot() Snapshot {
	snap := make(Snapshot, len(l.accts))
	for id, a := range l.accts {
		snap[string(id)] = snapshotAccount(a)
	}
	return snap
}

// Restore replaces the whole ledger with snap. Invalid input resets the ledger to the
// default state, persists it, and returns the validation error.
func (l *Ledger) Restore(ctx context.Context, snap Snapshot) error {
	if verr := snap.Validate(); verr != nil {
		if err := l.ResetAll(ctx); err != nil {
			l.log.Warn().Err(err).Msg("default ledger not persisted")
		}
		return verr
	}
	accts := make(map[CardID]*Account, len(Cards))
	for _, id := range Cards {
		accts[id] = restoreAccount(id, snap[string(id)])
	}
	l.accts = accts
	l.dirty = false
	return nil
}

// ResetAll recreates both cards at the default balance and persists immediately.
func (l *Ledger) ResetAll(ctx context.Context) error {
	l.accts = make(map[CardID]*Account, len(Cards))
	for _, id := range Cards {
		l.accts[id] = newAccount(id, l.defaultBalance)
	}
	l.dirty = true
	return l.Persist(ctx)
}

// Persist flushes the current state. The ledger stays dirty on failure so the next
// call retries.
func (l *Ledger) Persist(ctx context.Context) error {
	if err := l.repo.Save(ctx, l.Snapshot()); err != nil {
		return err
	}
	l.dirty = false
	return nil
}

// Dirty reports whether there are mutations not yet persisted.
func (l *Ledger) Dirty() bool {
	return l.dirty
}

func (l *Ledger) timestamp() time.Time {
	return l.now().Truncate(time.Millisecond)
}
