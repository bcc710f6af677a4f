package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/internal/shop"
)

const uniqueViolation = "23505"

// Postgres is a Catalog over the items table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres returns a catalog using db.
func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

type itemRow struct {
	shop.Item
	KindKey string `db:"kind"`
}

func (r itemRow) item() (shop.Item, error) {
	kind, err := shop.ParseKind(r.KindKey)
	if err != nil {
		return shop.Item{}, err
	}
	it := r.Item
	it.Kind = kind
	return it, nil
}

const itemColumns = `id, kind, name, photo_ref, description, file_ref, file_name, price_minor, price_stars, created_at`

func (p *Postgres) FindByName(ctx context.Context, kind shop.Kind, name string) (shop.Item, error) {
	var row itemRow
	err := p.db.GetContext(ctx, &row,
		`SELECT `+itemColumns+` FROM items WHERE kind = $1 AND name = $2`, kind.String(), name)
	if errors.Is(err, sql.ErrNoRows) {
		return shop.Item{}, shop.ErrNotFound
	}
	if err != nil {
		return shop.Item{}, fmt.Errorf("catalog: find %s %q: %w", kind, name, err)
	}
	return row.item()
}

func (p *Postgres) Create(ctx context.Context, item shop.Item) (int64, error) {
	start := time.Now()
	var id int64
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO items (kind, name, photo_ref, description, file_ref, file_name, price_minor, price_stars)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		item.Kind.String(), item.Name, item.PhotoRef, item.Description,
		item.FileRef, item.FileName, item.PriceMinor, item.PriceStars,
	).Scan(&id)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		err = shop.ErrConflict
	} else if err != nil {
		err = fmt.Errorf("catalog: create %s %q: %w", item.Kind, item.Name, err)
	}
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("kind", item.Kind.String()),
		slog.String("item", item.Name),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		logger.Warn(ctx, "catalog", "catalog.create", append(attrs, logger.ErrAttrs(err)...)...)
		return 0, err
	}
	logger.Info(ctx, "catalog", "catalog.create", append(attrs, slog.Int64("id", id))...)
	return id, nil
}

func (p *Postgres) Delete(ctx context.Context, kind shop.Kind, name string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM items WHERE kind = $1 AND name = $2`, kind.String(), name)
	if err != nil {
		return fmt.Errorf("catalog: delete %s %q: %w", kind, name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: delete %s %q: %w", kind, name, err)
	}
	if n == 0 {
		return shop.ErrNotFound
	}
	logger.Info(ctx, "catalog", "catalog.delete",
		slog.String("status", "ok"),
		slog.String("kind", kind.String()),
		slog.String("item", name),
	)
	return nil
}

func (p *Postgres) List(ctx context.Context, kind shop.Kind) ([]shop.Item, error) {
	var rows []itemRow
	if err := p.db.SelectContext(ctx, &rows,
		`SELECT `+itemColumns+` FROM items WHERE kind = $1 ORDER BY id`, kind.String()); err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", kind, err)
	}
	out := make([]shop.Item, 0, len(rows))
	for _, r := range rows {
		it, err := r.item()
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// PostgresViewLog stores views in item_views.
type PostgresViewLog struct {
	db *sqlx.DB
}

func NewPostgresViewLog(db *sqlx.DB) *PostgresViewLog { return &PostgresViewLog{db: db} }

type viewRow struct {
	shop.View
	KindKey string `db:"kind"`
}

func (l *PostgresViewLog) RecordView(ctx context.Context, v shop.View) error {
	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO item_views (buyer_id, username, kind, item_name) VALUES ($1, $2, $3, $4)`,
		v.BuyerID, v.Username, v.Kind.String(), v.ItemName); err != nil {
		return fmt.Errorf("catalog: record view: %w", err)
	}
	return nil
}

func (l *PostgresViewLog) Views(ctx context.Context) ([]shop.View, error) {
	var rows []viewRow
	if err := l.db.SelectContext(ctx, &rows,
		`SELECT buyer_id, username, kind, item_name, viewed_at FROM item_views ORDER BY viewed_at, id`); err != nil {
		return nil, fmt.Errorf("catalog: list views: %w", err)
	}
	out := make([]shop.View, 0, len(rows))
	for _, r := range rows {
		v := r.View
		if k, err := shop.ParseKind(r.KindKey); err == nil {
			v.Kind = k
		}
		out = append(out, v)
	}
	return out, nil
}
