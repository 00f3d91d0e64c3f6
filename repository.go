package tapbank

import (
	"context"
)

// Repository stores and retrieves whole-ledger snapshots. Load returns ErrNoSnapshot
// when nothing has been stored yet and an error wrapping ErrMalformedSnapshot when the
// stored state cannot be decoded.
type Repository interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}
