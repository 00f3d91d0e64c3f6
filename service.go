package tapbank

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// SessionView is the read-only state of one session.
type SessionView struct {
	ID     snowflake.ID `json:"id"`
	Phase  Phase        `json:"phase"`
	Mode   Mode         `json:"mode"`
	Prompt string       `json:"prompt"`
	Bid    *BidView     `json:"bid,omitempty"`
}

type BidView struct {
	Bidder  CardID `json:"bidder"`
	Base    int64  `json:"base"`
	Current int64  `json:"current"`
}

type Service interface {
	OpenSession() (*SessionView, error)
	CloseSession(id snowflake.ID) error
	Session(id snowflake.ID) (*SessionView, error)
	Dispatch(ctx context.Context, id snowflake.ID, ev Event) (*Result, error)
	Account(id CardID) (*Account, error)
	Statement(w io.Writer, id CardID) error
	ResetLedger(ctx context.Context) error
}

// NewService exposes one Engine per session over a shared Ledger. Every step that
// touches the ledger holds the single-weight semaphore, so steps from different
// sessions never interleave.
func NewService(ledger *Ledger, log *zerolog.Logger) (*serviceImpl, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}
	return &serviceImpl{
		ledger:   ledger,
		log:      log,
		node:     node,
		step:     semaphore.NewWeighted(1),
		sessions: make(map[snowflake.ID]*Engine),
		now:      time.Now,
	}, nil
}

var (
	_ Service = (*serviceImpl)(nil)
)

type serviceImpl struct {
	ledger   *Ledger
	log      *zerolog.Logger
	node     *snowflake.Node
	step     *semaphore.Weighted
	sessions map[snowflake.ID]*Engine
	now      func() time.Time
}

func (s *serviceImpl) lock(ctx context.Context) error {
	return s.step.Acquire(ctx, 1)
}

func (s *serviceImpl) unlock() {
	s.step.Release(1)
}

func (s *serviceImpl) OpenSession() (*SessionView, error) {
	if err := s.lock(context.Background()); err != nil {
		return nil, err
	}
	defer s.unlock()

	id := s.node.Generate()
	eng := NewEngine(s.ledger, s.log)
	s.sessions[id] = eng
	return viewSession(id, eng.State()), nil
}

func (s *serviceImpl) CloseSession(id snowflake.ID) error {
	if err := s.lock(context.Background()); err != nil {
		return err
	}
	defer s.unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound{ID: id.String()}
	}
	delete(s.sessions, id)
	return nil
}

func (s *serviceImpl) Session(id snowflake.ID) (*SessionView, error) {
	if err := s.lock(context.Background()); err != nil {
		return nil, err
	}
	defer s.unlock()

	eng, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound{ID: id.String()}
	}
	return viewSession(id, eng.State()), nil
}

func (s *serviceImpl) Dispatch(ctx context.Context, id snowflake.ID, ev Event) (*Result, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	eng, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound{ID: id.String()}
	}
	return eng.Dispatch(ctx, ev)
}

func (s *serviceImpl) Account(id CardID) (*Account, error) {
	if err := s.lock(context.Background()); err != nil {
		return nil, err
	}
	defer s.unlock()

	acct, err := s.ledger.GetAccount(id)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *serviceImpl) Statement(w io.Writer, id CardID) error {
	acct, err := s.Account(id)
	if err != nil {
		return err
	}
	return WriteStatement(w, *acct, s.now())
}

// ResetLedger restores both cards to the default balance and returns every session
// to idle.
func (s *serviceImpl) ResetLedger(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	for _, eng := range s.sessions {
		eng.state = Idle{}
	}
	return s.ledger.ResetAll(ctx)
}

func viewSession(id snowflake.ID, st State) *SessionView {
	v := &SessionView{
		ID:     id,
		Phase:  st.Phase(),
		Mode:   st.Mode(),
		Prompt: st.Prompt(),
	}
	switch b := st.(type) {
	case BidAdjustIncrement:
		v.Bid = &BidView{Bidder: b.Bidder, Base: b.Base, Current: b.Current}
	case BidSelectPayer:
		v.Bid = &BidView{Bidder: b.Bidder, Base: b.Base, Current: b.Amount}
	}
	return v
}
