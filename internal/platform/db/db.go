package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"restopay/internal/platform/config"
)

func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConnLifetime = time.Hour
	// Collect holds up to four connections per run.
	poolCfg.MaxConns = 12
	poolCfg.MinConns = 2
	return pgxpool.NewWithConfig(ctx, poolCfg)
}
