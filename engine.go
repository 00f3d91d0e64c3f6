package tapbank

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Result is what a front-end shows after an event.
type Result struct {
	State   State
	Prompt  string
	Card    *Account
	Outcome *Outcome
	// Warning is set when a completed operation could not be persisted. The
	// operation itself stands; the next completed operation retries the write.
	Warning error
}

// Outcome describes a completed operation.
type Outcome struct {
	Kind     OpKind `json:"kind"`
	Card     CardID `json:"card"`
	Counter  CardID `json:"counter,omitempty"`
	Amount   int64  `json:"amount"`
	Interest int64  `json:"interest,omitempty"`
	Message  string `json:"message"`
}

// Engine drives one session through the mode flows against a shared Ledger. Events
// are processed one at a time; callers serialize access to the ledger.
type Engine struct {
	ledger *Ledger
	log    *zerolog.Logger
	state  State
}

func NewEngine(ledger *Ledger, log *zerolog.Logger) *Engine {
	return &Engine{
		ledger: ledger,
		log:    log,
		state:  Idle{},
	}
}

func (e *Engine) State() State {
	return e.state
}

// Dispatch applies ev. Rejected events return the unchanged state with the error so
// the front-end can re-prompt.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (*Result, error) {
	next, eff, err := Transition(e.state, ev, e.ledger)
	if err != nil {
		e.log.Debug().
			Err(err).
			Str("phase", string(e.state.Phase())).
			Str("event", ev.Name()).
			Msg("event rejected")
		return &Result{State: e.state, Prompt: rejectionPrompt(err, e.state)}, err
	}

	res := &Result{State: next, Prompt: next.Prompt()}
	if eff == nil {
		e.state = next
		if tap, ok := ev.(IdentifyCard); ok {
			acct, _ := e.ledger.GetAccount(tap.Card)
			res.Card = &acct
			if _, idle := next.(Idle); idle {
				res.Prompt = cardGreeting(acct)
			}
		}
		return res, nil
	}

	out, err := e.apply(eff)
	if err != nil {
		e.log.Err(err).
			Str("phase", string(e.state.Phase())).
			Str("op", string(eff.Kind())).
			Msg("effect not applied")
		return &Result{State: e.state, Prompt: e.state.Prompt()}, err
	}
	e.state = next
	res.Outcome = out
	res.Prompt = out.Message
	acct, _ := e.ledger.GetAccount(out.Card)
	if eff.Kind() == OpTransfer {
		acct, _ = e.ledger.GetAccount(out.Counter)
	}
	res.Card = &acct

	if perr := e.ledger.Persist(ctx); perr != nil {
		e.log.Warn().Err(perr).Str("op", string(out.Kind)).Msg("ledger not persisted")
		res.Warning = perr
	}
	e.log.Info().
		Str("op", string(out.Kind)).
		Str("card", string(out.Card)).
		Int64("amount", out.Amount).
		Msg(out.Message)
	return res, nil
}

// apply commits eff to the ledger. Every card the effect touches is looked up before
// the first mutation.
func (e *Engine) apply(eff Effect) (*Outcome, error) {
	l := e.ledger
	for _, id := range effectCards(eff) {
		if _, err := l.GetAccount(id); err != nil {
			return nil, err
		}
	}
	switch eff := eff.(type) {
	case TransferFunds:
		if err := l.ApplyDelta(eff.From, -eff.Amount); err != nil {
			return nil, err
		}
		if err := l.ApplyDelta(eff.To, eff.Amount); err != nil {
			return nil, err
		}
		return &Outcome{
			Kind:    OpTransfer,
			Card:    eff.From,
			Counter: eff.To,
			Amount:  eff.Amount,
			Message: fmt.Sprintf("Transferred %s from %s to %s", FormatAmount(eff.Amount), eff.From.Label(), eff.To.Label()),
		}, nil
	case PayBid:
		if err := l.ApplyDelta(eff.Payer, -eff.Amount); err != nil {
			return nil, err
		}
		if err := l.RecordBidObligation(eff.Payer); err != nil {
			return nil, err
		}
		return &Outcome{
			Kind:    OpBid,
			Card:    eff.Payer,
			Amount:  eff.Amount,
			Message: fmt.Sprintf("Bid of %s paid successfully", FormatAmount(eff.Amount)),
		}, nil
	case IssueLoan:
		if err := l.ApplyDelta(eff.Card, eff.Amount); err != nil {
			return nil, err
		}
		if err := l.AddLoan(eff.Card, eff.Amount); err != nil {
			return nil, err
		}
		return &Outcome{
			Kind:    OpLoan,
			Card:    eff.Card,
			Amount:  eff.Amount,
			Message: fmt.Sprintf("Loan of %s added to %s", FormatAmount(eff.Amount), eff.Card.Label()),
		}, nil
	case SettleRepayment:
		if err := l.ApplyDelta(eff.Card, -eff.Quote.Total); err != nil {
			return nil, err
		}
		if err := l.SettleLoans(eff.Card, eff.Quote.Total); err != nil {
			return nil, err
		}
		return &Outcome{
			Kind:     OpRepay,
			Card:     eff.Card,
			Amount:   eff.Quote.Total,
			Interest: eff.Quote.Interest,
			Message:  fmt.Sprintf("Repaid %s (incl. %s interest)", FormatAmount(eff.Quote.Total), FormatAmount(eff.Quote.Interest)),
		}, nil
	}
	return nil, fmt.Errorf("unsupported effect %T", eff)
}

func effectCards(eff Effect) []CardID {
	switch eff := eff.(type) {
	case TransferFunds:
		return []CardID{eff.From, eff.To}
	case PayBid:
		return []CardID{eff.Payer}
	case IssueLoan:
		return []CardID{eff.Card}
	case SettleRepayment:
		return []CardID{eff.Card}
	}
	return nil
}

func cardGreeting(acct Account) string {
	if acct.OutstandingCount > 0 {
		return fmt.Sprintf("Please repay %d", acct.OutstandingCount)
	}
	return acct.ID.Label() + " - Ready"
}

func rejectionPrompt(err error, st State) string {
	switch err.(type) {
	case ErrInvalidAmount:
		return "Please enter a valid amount"
	case ErrUnknownAccount, ErrUnexpectedEvent, ErrBadRequest:
		return st.Prompt()
	}
	switch err {
	case ErrSameAccountTransfer:
		return "Cannot transfer to the same card"
	case ErrNothingToRepay:
		return "No loans to repay"
	case ErrInsufficientFunds:
		switch st.(type) {
		case BidSelectPayer:
			return "Insufficient funds for bid"
		case RepaySelectAccount:
			return "Insufficient funds to repay loans"
		case TransferSelectReceiver:
			return "Insufficient funds for transfer"
		}
		return "Insufficient funds"
	}
	return st.Prompt()
}
