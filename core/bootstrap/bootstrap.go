// Package bootstrap prepares process-wide infrastructure: the logger, then the
// optional Postgres schema and pool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/guideshop/core/config"
	coredatabase "github.com/m3rciful/guideshop/core/database"
	"github.com/m3rciful/guideshop/core/logger"
)

// Options select the pipeline steps. Hook fields replace a step in tests.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot keeps everything in memory.
	Database       *coredatabase.Config
	SkipMigrations bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

func (o *Options) fill() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
}

// Result holds what Run initialized.
type Result struct {
	// DB is nil without a database.
	DB *sqlx.DB
}

// Close releases the database pool, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when Database is set, migrates the schema and
// opens the pool. Migrations run first so the pool never sees an old schema.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.fill()
	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if opts.Database == nil {
		logger.Info(context.Background(), "bootstrap", "storage.memory", slog.String("status", "ok"))
		return &Result{}, nil
	}

	start := time.Now()
	if !opts.SkipMigrations {
		if err := opts.Migrate(*opts.Database); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}
	db, err := opts.Connect(*opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	logger.Info(context.Background(), "bootstrap", "storage.postgres",
		slog.String("status", "ok"),
		slog.Bool("migrated", !opts.SkipMigrations),
		slog.Duration("duration", logger.Took(start)),
	)
	return &Result{DB: db}, nil
}
