package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures the pooled Postgres-backed CheckpointStore,
// the same kind of tunables a production job store exposes for its
// own connection pool.
type PostgresConfig struct {
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

// DefaultPostgresConfig returns conservative pool sizing suited to a
// single graph-runner process.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{MaxConns: 10, MinConns: 1, ConnectTimeout: 10 * time.Second}
}

// PostgresCheckpointStore persists Checkpoints to a `graph_checkpoints`
// table via pgx. This is an optional external binding; the core engine
// only depends on the CheckpointStore interface.
type PostgresCheckpointStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCheckpointStore opens a pooled connection and verifies
// connectivity with a bounded ping.
func NewPostgresCheckpointStore(ctx context.Context, dsn string, cfg PostgresConfig) (*PostgresCheckpointStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresCheckpointStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresCheckpointStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	mwJSON, err := json.Marshal(cp.MiddlewareState)
	if err != nil {
		return fmt.Errorf("marshal middleware state: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO graph_checkpoints (run_id, graph_id, node_id, state, middleware_state, pending_resume_token, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (run_id) DO UPDATE SET
			graph_id = EXCLUDED.graph_id,
			node_id = EXCLUDED.node_id,
			state = EXCLUDED.state,
			middleware_state = EXCLUDED.middleware_state,
			pending_resume_token = EXCLUDED.pending_resume_token,
			updated_at = EXCLUDED.updated_at
	`, cp.RunID, cp.GraphID, cp.NodeID, stateJSON, mwJSON, nullableString(cp.PendingResumeToken), cp.Timestamp)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresCheckpointStore) Load(ctx context.Context, runID string) (Checkpoint, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, graph_id, node_id, state, middleware_state, pending_resume_token, updated_at
		FROM graph_checkpoints WHERE run_id = $1
	`, runID)
	return scanCheckpoint(row)
}

func (s *PostgresCheckpointStore) LoadByToken(ctx context.Context, token string) (Checkpoint, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, graph_id, node_id, state, middleware_state, pending_resume_token, updated_at
		FROM graph_checkpoints WHERE pending_resume_token = $1
	`, token)
	return scanCheckpoint(row)
}

func (s *PostgresCheckpointStore) Delete(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM graph_checkpoints WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func scanCheckpoint(row pgx.Row) (Checkpoint, bool, error) {
	var cp Checkpoint
	var stateJSON, mwJSON []byte
	var token *string

	if err := row.Scan(&cp.RunID, &cp.GraphID, &cp.NodeID, &stateJSON, &mwJSON, &token, &cp.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("scan checkpoint: %w", err)
	}
	if token != nil {
		cp.PendingResumeToken = *token
	}
	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return Checkpoint{}, false, fmt.Errorf("unmarshal state: %w", err)
	}
	if err := json.Unmarshal(mwJSON, &cp.MiddlewareState); err != nil {
		return Checkpoint{}, false, fmt.Errorf("unmarshal middleware state: %w", err)
	}
	return cp, true, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
