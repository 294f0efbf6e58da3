package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SwapExecution is one executed swap recorded in the ledger.
type SwapExecution struct {
	ChainID     uint64
	PoolAddress string
	TokenIn     string
	TokenOut    string
	AmountIn    string
	AmountOut   string
	TxHash      string
	Status      string
	ExecutedAt  time.Time
}

// Store provides Postgres persistence for the swap ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Record inserts or updates one swap execution keyed by transaction hash.
func (s *Store) Record(ctx context.Context, exec SwapExecution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO swap_executions (
			chain_id, pool_address, token_in, token_out,
			amount_in, amount_out, tx_hash, status, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tx_hash)
		DO UPDATE SET
			status = EXCLUDED.status,
			amount_out = EXCLUDED.amount_out,
			executed_at = EXCLUDED.executed_at
	`,
		int64(exec.ChainID),
		exec.PoolAddress,
		exec.TokenIn,
		exec.TokenOut,
		exec.AmountIn,
		exec.AmountOut,
		exec.TxHash,
		exec.Status,
		exec.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record swap %s: %w", exec.TxHash, err)
	}
	return nil
}

// Recent returns the latest executions for a chain, newest first.
func (s *Store) Recent(ctx context.Context, chainID uint64, limit int) ([]SwapExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, pool_address, token_in, token_out,
		       amount_in, amount_out, tx_hash, status, executed_at
		FROM swap_executions
		WHERE chain_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`, int64(chainID), limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var out []SwapExecution
	for rows.Next() {
		var exec SwapExecution
		var chain int64
		if err := rows.Scan(
			&chain,
			&exec.PoolAddress,
			&exec.TokenIn,
			&exec.TokenOut,
			&exec.AmountIn,
			&exec.AmountOut,
			&exec.TxHash,
			&exec.Status,
			&exec.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		exec.ChainID = uint64(chain)
		out = append(out, exec)
	}
	return out, rows.Err()
}

// Schema is the DDL for the swap ledger table.
const Schema = `
CREATE TABLE IF NOT EXISTS swap_executions (
	chain_id     BIGINT NOT NULL,
	pool_address TEXT NOT NULL,
	token_in     TEXT NOT NULL,
	token_out    TEXT NOT NULL,
	amount_in    NUMERIC NOT NULL,
	amount_out   NUMERIC NOT NULL,
	tx_hash      TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	executed_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS swap_executions_chain_time_idx
	ON swap_executions (chain_id, executed_at DESC);
`

// EnsureSchema creates the ledger table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
