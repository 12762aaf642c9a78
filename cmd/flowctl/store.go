package main

import (
	"context"
	"fmt"

	"github.com/flowctl/orchestrator/internal/config"
	"github.com/flowctl/orchestrator/internal/store"
)

// buildCheckpointStore opens the CheckpointStore named by cfg.Store.Backend.
// The memory backend only survives for the lifetime of one flowctl process,
// so a run suspended on a HITL node can only be resumed with "postgres"
// configured once that process exits.
func buildCheckpointStore(ctx context.Context, cfg *config.Config) (store.CheckpointStore, error) {
	switch cfg.Store.Backend {
	case "", "memory":
		return store.NewMemoryCheckpointStore(), nil
	case "postgres":
		pgCfg := store.PostgresConfig{
			MaxConns:       cfg.Store.Postgres.MaxConns,
			ConnectTimeout: cfg.Store.Postgres.ConnectTimeout,
		}
		if pgCfg.MaxConns == 0 {
			pgCfg.MaxConns = store.DefaultPostgresConfig().MaxConns
		}
		if pgCfg.ConnectTimeout == 0 {
			pgCfg.ConnectTimeout = store.DefaultPostgresConfig().ConnectTimeout
		}
		return store.NewPostgresCheckpointStore(ctx, cfg.Store.Postgres.DSN, pgCfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
