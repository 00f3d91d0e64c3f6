package tapbank

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var (
	pgSchemaSQL = `
		CREATE TABLE IF NOT EXISTS cards (
			id           TEXT PRIMARY KEY,
			balance      BIGINT NOT NULL,
			transactions INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS loans (
			card_id    TEXT NOT NULL REFERENCES cards (id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			amount     BIGINT NOT NULL,
			paid       BOOLEAN NOT NULL DEFAULT FALSE,
			created_ms BIGINT NOT NULL,
			repaid_ms  BIGINT,
			PRIMARY KEY (card_id, seq)
		);
	`

	pgTeardownSQL = `
		DROP TABLE IF EXISTS loans;
		DROP TABLE IF EXISTS cards;
	`

	pgSelectCardsSQL = `
		SELECT id, balance, transactions
		FROM cards;
	`

	pgSelectLoansSQL = `
		SELECT card_id, amount, paid, created_ms, repaid_ms
		FROM loans
		ORDER BY card_id, seq;
	`

	pgUpsertCardSQL = `
		INSERT INTO cards (id, balance, transactions)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET balance = EXCLUDED.balance, transactions = EXCLUDED.transactions;
	`

	pgDeleteLoansSQL = `
		DELETE FROM loans;
	`

	pgInsertLoanSQL = `
		INSERT INTO loans (card_id, seq, amount, paid, created_ms, repaid_ms)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
)

// PostgresRepository stores the snapshot as card and loan rows, rewritten in one
// transaction per save.
type PostgresRepository struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

var (
	_ Repository = (*PostgresRepository)(nil)
)

func NewPostgresRepository(ctx context.Context, connStr string, log *zerolog.Logger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	repo := &PostgresRepository{
		pool: pool,
		log:  log,
	}
	return repo, err
}

func (pg *PostgresRepository) Close() {
	pg.pool.Close()
}

func (pg *PostgresRepository) Load(ctx context.Context) (Snapshot, error) {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, pgSelectCardsSQL)
	if err != nil {
		return nil, err
	}
	snap := Snapshot{}
	for rows.Next() {
		var (
			id  string
			bal int64
			txn int
		)
		if err = rows.Scan(&id, &bal, &txn); err != nil {
			rows.Close()
			return nil, err
		}
		snap[id] = AccountSnapshot{Balance: bal, Transactions: txn, Loans: []LoanSnapshot{}}
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(snap) == 0 {
		return nil, ErrNoSnapshot
	}

	rows, err = conn.Query(ctx, pgSelectLoansSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cardID string
			ls     LoanSnapshot
		)
		if err = rows.Scan(&cardID, &ls.Amount, &ls.Paid, &ls.Timestamp, &ls.RepaidTimestamp); err != nil {
			return nil, err
		}
		as := snap[cardID]
		as.Loans = append(as.Loans, ls)
		snap[cardID] = as
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

func (pg *PostgresRepository) Save(ctx context.Context, snap Snapshot) error {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(pgDeleteLoansSQL)
	for id, as := range snap {
		batch.Queue(pgUpsertCardSQL, id, as.Balance, as.Transactions)
	}
	for id, as := range snap {
		for seq, ls := range as.Loans {
			batch.Queue(pgInsertLoanSQL, id, seq, ls.Amount, ls.Paid, ls.Timestamp, ls.RepaidTimestamp)
		}
	}

	btresults := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err = btresults.Exec(); err != nil {
			btresults.Close()
			if rerr := tx.Rollback(ctx); rerr != nil {
				pg.log.Err(rerr).Msg("snapshot save rollback fail")
			}
			return err
		}
	}
	if err = btresults.Close(); err != nil {
		if rerr := tx.Rollback(ctx); rerr != nil {
			pg.log.Err(rerr).Msg("snapshot save rollback fail")
		}
		return err
	}

	return tx.Commit(ctx)
}
