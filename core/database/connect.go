package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/guideshop/core/logger"
)

const (
	driverName     = "postgres"
	connectTimeout = 5 * time.Second
	waitInterval   = 2 * time.Second
	connIdleTime   = 5 * time.Minute
)

func (c Config) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// Connect opens a pooled connection and pings it within connectTimeout.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	attrs := append(cfg.logAttrs(), slog.String("event", "db.connect"), slog.Duration("duration", logger.Took(start)))
	if err != nil {
		attrs = append(attrs, slog.String("status", "fail"))
		logger.DB.LogAttrs(ctx, slog.LevelError, "db connect failed", append(attrs, logger.ErrAttrs(err)...)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(max(1, cfg.MaxConnections/2))
	db.SetConnMaxIdleTime(connIdleTime)

	logger.DB.LogAttrs(ctx, slog.LevelInfo, "db connected",
		append(attrs, slog.String("status", "ok"), slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// WaitForPostgres retries a ping every two seconds until the server answers or timeout elapses.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close()

	tick := time.NewTicker(waitInterval)
	defer tick.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-tick.C:
		}
	}
}
