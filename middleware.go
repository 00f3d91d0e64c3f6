package tapbank

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

// Chain wraps svc so that the first middleware is the outermost.
func Chain(svc Service, mws ...Middleware) Service {
	for i := len(mws) - 1; i >= 0; i-- {
		svc = mws[i](svc)
	}
	return svc
}

//
// Logging middleware
//

type loggingMiddleware struct {
	next Service
	log  *zerolog.Logger
}

var (
	_ Service = (*loggingMiddleware)(nil)
)

func NewLoggingMiddleware(log *zerolog.Logger) Middleware {
	return func(next Service) Service {
		return &loggingMiddleware{
			next: next,
			log:  log,
		}
	}
}

func (l *loggingMiddleware) OpenSession() (*SessionView, error) {
	v, err := l.next.OpenSession()
	if err == nil {
		l.log.Info().Str("session", v.ID.String()).Msg("session opened")
	}
	return v, err
}

func (l *loggingMiddleware) CloseSession(id snowflake.ID) error {
	err := l.next.CloseSession(id)
	l.log.Info().Err(err).Str("session", id.String()).Msg("session closed")
	return err
}

func (l *loggingMiddleware) Session(id snowflake.ID) (*SessionView, error) {
	return l.next.Session(id)
}

func (l *loggingMiddleware) Dispatch(ctx context.Context, id snowflake.ID, ev Event) (*Result, error) {
	start := time.Now()
	res, err := l.next.Dispatch(ctx, id, ev)
	evt := l.log.Debug()
	if err != nil {
		evt = l.log.Info().Err(err)
	}
	if res != nil {
		evt = evt.Str("phase", string(res.State.Phase()))
	}
	evt.Str("session", id.String()).
		Str("event", ev.Name()).
		Dur("took", time.Since(start)).
		Msg("dispatch")
	return res, err
}

func (l *loggingMiddleware) Account(id CardID) (*Account, error) {
	return l.next.Account(id)
}

func (l *loggingMiddleware) Statement(w io.Writer, id CardID) error {
	err := l.next.Statement(w, id)
	if err != nil {
		l.log.Err(err).Str("card", string(id)).Msg("statement failed")
	}
	return err
}

func (l *loggingMiddleware) ResetLedger(ctx context.Context) error {
	err := l.next.ResetLedger(ctx)
	l.log.Warn().Err(err).Msg("ledger reset to defaults")
	return err
}

//
// Rate limiting middlewares
//

// limitMiddleware bounds in-flight PDF statement renders with a weighted semaphore
// and an acquisition timeout. Everything else passes through; ledger steps are
// already serialized by the service.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	Statement     *semaphore.Weighted
	StatementWait time.Duration
}

func NewLimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func (l *limitMiddleware) OpenSession() (*SessionView, error) {
	return l.next.OpenSession()
}

func (l *limitMiddleware) CloseSession(id snowflake.ID) error {
	return l.next.CloseSession(id)
}

func (l *limitMiddleware) Session(id snowflake.ID) (*SessionView, error) {
	return l.next.Session(id)
}

func (l *limitMiddleware) Dispatch(ctx context.Context, id snowflake.ID, ev Event) (*Result, error) {
	return l.next.Dispatch(ctx, id, ev)
}

func (l *limitMiddleware) Account(id CardID) (*Account, error) {
	return l.next.Account(id)
}

func (l *limitMiddleware) Statement(w io.Writer, id CardID) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.limits.StatementWait)
	defer cancel()
	if err := l.limits.Statement.Acquire(ctx, 1); err != nil {
		return ErrBusy
	}
	defer l.limits.Statement.Release(1)
	return l.next.Statement(w, id)
}

func (l *limitMiddleware) ResetLedger(ctx context.Context) error {
	return l.next.ResetLedger(ctx)
}
