package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/guideshop/core/logger"
)

const (
	readyTimeout = 30 * time.Second
	previewLimit = 6
)

// ErrDirtySchema means a previous migration stopped halfway and needs manual repair.
var ErrDirtySchema = errors.New("database: schema is dirty")

// RunMigrations applies every pending up migration from cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	if err := WaitForPostgres(context.Background(), cfg.DSN(), readyTimeout); err != nil {
		migFail("db not ready", "db.wait", err)
		return fmt.Errorf("database not ready: %w", err)
	}

	dir, err := resolveDir(cfg.MigrationsDir)
	if err != nil {
		return err
	}
	set := scanMigrations(dir)
	preview, cut := logger.SummarizeStrings(set, previewLimit)
	logger.MIG.Debug("migrations resolved",
		slog.String("event", "resolve"),
		slog.String("path", dir),
		slog.Int("files_total", len(set)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", cut),
	)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		migFail("init failed", "init", err)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		migFail("version failed", "version", err)
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		migFail("schema dirty", "version", ErrDirtySchema)
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		migFail("migration failed", "apply", err)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := set.between(uint64(from), uint64(to))
	names, cut := logger.SummarizeStrings(applied, previewLimit)
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.String("files_preview", names),
		slog.Bool("files_truncated", cut),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func migFail(msg, event string, err error) {
	logger.MIG.LogAttrs(context.Background(), slog.LevelError, msg,
		append([]slog.Attr{slog.String("event", event), slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
}

func resolveDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve migrations dir: %w", err)
	}
	return abs, nil
}

// migrationSet is the sorted list of *.up.sql file names in a directory.
type migrationSet []string

func scanMigrations(dir string) migrationSet {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var set migrationSet
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".up.sql") {
			set = append(set, name)
		}
	}
	slices.Sort(set)
	return set
}

// between returns the files with from < version <= to.
func (s migrationSet) between(from, to uint64) []string {
	var out []string
	for _, f := range s {
		if v := migrationVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func migrationVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}
