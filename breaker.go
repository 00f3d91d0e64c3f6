package tapbank

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// breakerRepository trips after consecutive failed saves so a broken backend fails
// fast instead of stalling every completed operation. Loads pass straight through.
type breakerRepository struct {
	next Repository
	brkr *gobreaker.CircuitBreaker[struct{}]
}

var (
	_ Repository = (*breakerRepository)(nil)
)

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func NewBreakerRepository(next Repository, st BreakerSettings, log *zerolog.Logger) Repository {
	maxFailures := st.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	brkr := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "snapshot-save",
		Timeout: st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &breakerRepository{
		next: next,
		brkr: brkr,
	}
}

func (b *breakerRepository) Load(ctx context.Context) (Snapshot, error) {
	return b.next.Load(ctx)
}

func (b *breakerRepository) Save(ctx context.Context, snap Snapshot) error {
	_, err := b.brkr.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Save(ctx, snap)
	})
	return err
}
