package tapbank

import (
	"math"
	"strconv"
)

type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseTransferSelectSender   Phase = "transfer_select_sender"
	PhaseTransferEnterAmount    Phase = "transfer_enter_amount"
	PhaseTransferSelectReceiver Phase = "transfer_select_receiver"
	PhaseBidSelectBidder        Phase = "bid_select_bidder"
	PhaseBidEnterBase           Phase = "bid_enter_base"
	PhaseBidAdjustIncrement     Phase = "bid_adjust_increment"
	PhaseBidSelectPayer         Phase = "bid_select_payer"
	PhaseLoanSelectAccount      Phase = "loan_select_account"
	PhaseLoanEnterAmount        Phase = "loan_enter_amount"
	PhaseRepaySelectAccount     Phase = "repay_select_account"
)

type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeTransfer Mode = "transfer"
	ModeBid      Mode = "bid"
	ModeLoan     Mode = "loan"
	ModeRepay    Mode = "repay"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeTransfer, ModeBid, ModeLoan, ModeRepay:
		return true
	}
	return false
}

// State is the session state. Each phase is its own type carrying only the fields
// that are meaningful in it.
type State interface {
	Phase() Phase
	Mode() Mode
	Prompt() string
}

type Idle struct{}

type TransferSelectSender struct{}

type TransferEnterAmount struct {
	Sender CardID
}

type TransferSelectReceiver struct {
	Sender CardID
	Amount int64
}

type BidSelectBidder struct{}

type BidEnterBase struct {
	Bidder CardID
}

type BidAdjustIncrement struct {
	Bidder  CardID
	Base    int64
	Current int64
}

type BidSelectPayer struct {
	Bidder CardID
	Base   int64
	Amount int64
}

type LoanSelectAccount struct{}

type LoanEnterAmount struct {
	Card CardID
}

type RepaySelectAccount struct{}

func (Idle) Phase() Phase                   { return PhaseIdle }
func (TransferSelectSender) Phase() Phase   { return PhaseTransferSelectSender }
func (TransferEnterAmount) Phase() Phase    { return PhaseTransferEnterAmount }
func (TransferSelectReceiver) Phase() Phase { return PhaseTransferSelectReceiver }
func (BidSelectBidder) Phase() Phase        { return PhaseBidSelectBidder }
func (BidEnterBase) Phase() Phase           { return PhaseBidEnterBase }
func (BidAdjustIncrement) Phase() Phase     { return PhaseBidAdjustIncrement }
func (BidSelectPayer) Phase() Phase         { return PhaseBidSelectPayer }
func (LoanSelectAccount) Phase() Phase      { return PhaseLoanSelectAccount }
func (LoanEnterAmount) Phase() Phase        { return PhaseLoanEnterAmount }
func (RepaySelectAccount) Phase() Phase     { return PhaseRepaySelectAccount }

func (Idle) Mode() Mode                   { return ModeIdle }
func (TransferSelectSender) Mode() Mode   { return ModeTransfer }
func (TransferEnterAmount) Mode() Mode    { return ModeTransfer }
func (TransferSelectReceiver) Mode() Mode { return ModeTransfer }
func (BidSelectBidder) Mode() Mode        { return ModeBid }
func (BidEnterBase) Mode() Mode           { return ModeBid }
func (BidAdjustIncrement) Mode() Mode     { return ModeBid }
func (BidSelectPayer) Mode() Mode         { return ModeBid }
func (LoanSelectAccount) Mode() Mode      { return ModeLoan }
func (LoanEnterAmount) Mode() Mode        { return ModeLoan }
func (RepaySelectAccount) Mode() Mode     { return ModeRepay }

func (Idle) Prompt() string                   { return "Tap a card to begin" }
func (TransferSelectSender) Prompt() string   { return "Tap sender's card" }
func (TransferEnterAmount) Prompt() string    { return "Enter amount to transfer" }
func (TransferSelectReceiver) Prompt() string { return "Tap receiver's card" }
func (BidSelectBidder) Prompt() string        { return "Tap card of bidder" }
func (BidEnterBase) Prompt() string           { return "Enter base bid amount" }
func (BidAdjustIncrement) Prompt() string     { return "Adjust bid with increments" }
func (BidSelectPayer) Prompt() string         { return "Tap card to confirm and pay bid" }
func (LoanSelectAccount) Prompt() string      { return "Tap card to receive loan" }
func (LoanEnterAmount) Prompt() string        { return "Enter loan amount" }
func (RepaySelectAccount) Prompt() string     { return "Tap card to repay loan" }

// Event is an input from a front-end.
type Event interface {
	Name() string
}

type SelectMode struct {
	Mode Mode
}

type IdentifyCard struct {
	Card CardID
}

// EnterAmount carries the raw keypad text; it is parsed by the engine.
type EnterAmount struct {
	Value string
}

type AdjustBid struct {
	Delta int64
}

// ResetBid puts the current bid back to the base bid.
type ResetBid struct{}

type ConfirmBid struct{}

type Reset struct{}

func (SelectMode) Name() string   { return "select_mode" }
func (IdentifyCard) Name() string { return "identify_card" }
func (EnterAmount) Name() string  { return "enter_amount" }
func (AdjustBid) Name() string    { return "adjust_bid" }
func (ResetBid) Name() string     { return "reset_bid" }
func (ConfirmBid) Name() string   { return "confirm_bid" }
func (Reset) Name() string        { return "reset" }

// BidIncrements is the fixed menu of bid adjustments.
var BidIncrements = []int64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000}

func validIncrement(delta int64) bool {
	for _, inc := range BidIncrements {
		if inc == delta {
			return true
		}
	}
	return false
}

// Effect is a ledger command produced by a completed flow.
type Effect interface {
	Kind() OpKind
}

type OpKind string

const (
	OpTransfer OpKind = "transfer"
	OpBid      OpKind = "bid"
	OpLoan     OpKind = "loan"
	OpRepay    OpKind = "repay"
)

type TransferFunds struct {
	From   CardID
	To     CardID
	Amount int64
}

type PayBid struct {
	Payer  CardID
	Amount int64
}

type IssueLoan struct {
	Card   CardID
	Amount int64
}

type SettleRepayment struct {
	Card  CardID
	Quote Quote
}

func (TransferFunds) Kind() OpKind   { return OpTransfer }
func (PayBid) Kind() OpKind          { return OpBid }
func (IssueLoan) Kind() OpKind       { return OpLoan }
func (SettleRepayment) Kind() OpKind { return OpRepay }

// AccountReader is the read side of the ledger that transitions validate against.
type AccountReader interface {
	GetAccount(id CardID) (Account, error)
}

// Transition is the single dispatch step of the session state machine. It never
// mutates the ledger: a completed flow is returned as an Effect for the caller to
// apply. On error the returned state is st unchanged.
func Transition(st State, ev Event, accts AccountReader) (State, Effect, error) {
	switch ev := ev.(type) {
	case Reset:
		return Idle{}, nil, nil
	case SelectMode:
		next, err := enterMode(ev.Mode)
		if err != nil {
			return st, nil, err
		}
		return next, nil, nil
	case IdentifyCard:
		if _, err := accts.GetAccount(ev.Card); err != nil {
			return st, nil, err
		}
	}

	switch s := st.(type) {
	case Idle:
		if _, ok := ev.(IdentifyCard); ok {
			return s, nil, nil
		}
	case TransferSelectSender:
		if ev, ok := ev.(IdentifyCard); ok {
			return TransferEnterAmount{Sender: ev.Card}, nil, nil
		}
	case TransferEnterAmount:
		if ev, ok := ev.(EnterAmount); ok {
			v, err := ParseAmount(ev.Value)
			if err != nil {
				return st, nil, err
			}
			if err = ensureFunds(accts, s.Sender, v); err != nil {
				return st, nil, err
			}
			return TransferSelectReceiver{Sender: s.Sender, Amount: v}, nil, nil
		}
	case TransferSelectReceiver:
		if ev, ok := ev.(IdentifyCard); ok {
			if ev.Card == s.Sender {
				return st, nil, ErrSameAccountTransfer
			}
			if err := ensureFunds(accts, s.Sender, s.Amount); err != nil {
				return st, nil, err
			}
			if err := ensureCredit(accts, ev.Card, s.Amount); err != nil {
				return st, nil, err
			}
			return Idle{}, TransferFunds{From: s.Sender, To: ev.Card, Amount: s.Amount}, nil
		}
	case BidSelectBidder:
		if ev, ok := ev.(IdentifyCard); ok {
			return BidEnterBase{Bidder: ev.Card}, nil, nil
		}
	case BidEnterBase:
		if ev, ok := ev.(EnterAmount); ok {
			v, err := ParseAmount(ev.Value)
			if err != nil {
				return st, nil, err
			}
			return BidAdjustIncrement{Bidder: s.Bidder, Base: v, Current: v}, nil, nil
		}
	case BidAdjustIncrement:
		switch ev := ev.(type) {
		case AdjustBid:
			if !validIncrement(ev.Delta) {
				return st, nil, ErrInvalidAmount{Input: FormatAmount(ev.Delta), Reason: "not a bid increment"}
			}
			if s.Current > math.MaxInt64-ev.Delta {
				return st, nil, ErrInvalidAmount{Input: FormatAmount(ev.Delta), Reason: "bid would overflow"}
			}
			s.Current += ev.Delta
			return s, nil, nil
		case ResetBid:
			s.Current = s.Base
			return s, nil, nil
		case ConfirmBid:
			return BidSelectPayer{Bidder: s.Bidder, Base: s.Base, Amount: s.Current}, nil, nil
		}
	case BidSelectPayer:
		if ev, ok := ev.(IdentifyCard); ok {
			if err := ensureFunds(accts, ev.Card, s.Amount); err != nil {
				return st, nil, err
			}
			return Idle{}, PayBid{Payer: ev.Card, Amount: s.Amount}, nil
		}
	case LoanSelectAccount:
		if ev, ok := ev.(IdentifyCard); ok {
			return LoanEnterAmount{Card: ev.Card}, nil, nil
		}
	case LoanEnterAmount:
		if ev, ok := ev.(EnterAmount); ok {
			v, err := ParseAmount(ev.Value)
			if err != nil {
				return st, nil, err
			}
			if err = ensureCredit(accts, s.Card, v); err != nil {
				return st, nil, err
			}
			return Idle{}, IssueLoan{Card: s.Card, Amount: v}, nil
		}
	case RepaySelectAccount:
		if ev, ok := ev.(IdentifyCard); ok {
			acct, err := accts.GetAccount(ev.Card)
			if err != nil {
				return st, nil, err
			}
			q, err := QuoteRepayment(acct)
			if err != nil {
				return st, nil, err
			}
			if q.Total > acct.Balance {
				return st, nil, ErrInsufficientFunds
			}
			return Idle{}, SettleRepayment{Card: ev.Card, Quote: q}, nil
		}
	}

	return st, nil, ErrUnexpectedEvent{Phase: st.Phase(), Event: ev.Name()}
}

func enterMode(m Mode) (State, error) {
	switch m {
	case ModeTransfer:
		return TransferSelectSender{}, nil
	case ModeBid:
		return BidSelectBidder{}, nil
	case ModeLoan:
		return LoanSelectAccount{}, nil
	case ModeRepay:
		return RepaySelectAccount{}, nil
	}
	return nil, ErrBadRequest{Fields: map[string]string{"mode": "unknown mode"}}
}

func ensureFunds(accts AccountReader, id CardID, amount int64) error {
	acct, err := accts.GetAccount(id)
	if err != nil {
		return err
	}
	if amount > acct.Balance {
		return ErrInsufficientFunds
	}
	return nil
}

// ensureCredit rejects a credit that would overflow the card's balance.
func ensureCredit(accts AccountReader, id CardID, amount int64) error {
	acct, err := accts.GetAccount(id)
	if err != nil {
		return err
	}
	if acct.Balance > math.MaxInt64-amount {
		return ErrInvalidAmount{Input: strconv.FormatInt(amount, 10), Reason: "balance would overflow"}
	}
	return nil
}
