package tapbank

import (
	"errors"
	"fmt"
)

var (
	ErrInternalServer      = errors.New("internal server error")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSameAccountTransfer = errors.New("cannot transfer to the same card")
	ErrNothingToRepay      = errors.New("no loans to repay")
	ErrBusy                = errors.New("too many requests in flight")

	// ErrNoSnapshot is returned by a Repository that has never been saved to.
	ErrNoSnapshot = errors.New("snapshot not found")
	// ErrMalformedSnapshot wraps decode and validation failures of stored state.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

// ErrNotFound is returned for unknown sessions.
type ErrNotFound struct {
	ID string `json:"id"`
}

func (e ErrNotFound) Error() string {
	return "record not found"
}

type ErrUnknownAccount struct {
	ID CardID `json:"id"`
}

func (e ErrUnknownAccount) Error() string {
	return fmt.Sprintf("unknown card %q", e.ID)
}

type ErrInvalidAmount struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

func (e ErrInvalidAmount) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

// ErrUnexpectedEvent is returned when an event has no transition from the current phase.
type ErrUnexpectedEvent struct {
	Phase Phase  `json:"phase"`
	Event string `json:"event"`
}

func (e ErrUnexpectedEvent) Error() string {
	return fmt.Sprintf("event %s not accepted in phase %s", e.Event, e.Phase)
}
