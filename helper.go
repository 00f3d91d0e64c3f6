package tapbank

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
)

// LocalHelper prepares a postgres database for the snapshot tables. Used by the
// seeder and the postgres tests.
type LocalHelper struct {
	Conn *pgx.Conn
}

func NewLocalHelper(ctx context.Context, connStr string) (*LocalHelper, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, err
	}
	return &LocalHelper{
		Conn: conn,
	}, nil
}

// InitDB creates the tables and returns a func that drops them again.
func (lh *LocalHelper) InitDB(ctx context.Context) (func(), error) {
	if _, err := lh.Conn.Exec(ctx, pgSchemaSQL); err != nil {
		return nil, err
	}
	return lh.teardownDB(), nil
}

func (lh *LocalHelper) Close(ctx context.Context) error {
	return lh.Conn.Close(ctx)
}

func (lh *LocalHelper) teardownDB() func() {
	return func() {
		ctx := context.Background()
		defer lh.Conn.Close(ctx)

		if _, err := lh.Conn.Exec(ctx, pgTeardownSQL); err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup exec teardown sql: %s", err.Error())
			return
		}
	}
}
