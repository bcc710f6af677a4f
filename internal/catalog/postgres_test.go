package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/guideshop/internal/shop"
)

var itemCols = []string{"id", "kind", "name", "photo_ref", "description", "file_ref", "file_name", "price_minor", "price_stars", "created_at"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestPostgresCreate(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewPostgres(db)
	item := shop.Item{Kind: shop.Guide, Name: "Alpha", PhotoRef: "ph", Description: "desc", FileRef: "f", FileName: "a.pdf", PriceMinor: 500, PriceStars: 100}

	mock.ExpectQuery(`INSERT INTO items`).
		WithArgs("guide", "Alpha", "ph", "desc", "f", "a.pdf", 500, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	id, err := p.Create(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateConflict(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewPostgres(db)

	mock.ExpectQuery(`INSERT INTO items`).WillReturnError(&pq.Error{Code: "23505", Constraint: "items_kind_name_key"})
	_, err := p.Create(context.Background(), shop.Item{Kind: shop.Course, Name: "Beta"})
	assert.ErrorIs(t, err, shop.ErrConflict)

	mock.ExpectQuery(`INSERT INTO items`).WillReturnError(&pq.Error{Code: "23502"})
	_, err = p.Create(context.Background(), shop.Item{Kind: shop.Course, Name: "Beta"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, shop.ErrConflict)
	assert.Contains(t, err.Error(), `catalog: create course "Beta"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByName(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewPostgres(db)
	ctx := context.Background()
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, kind, name .* FROM items WHERE kind = \$1 AND name = \$2`).
		WithArgs("course", "Gamma").
		WillReturnRows(sqlmock.NewRows(itemCols).AddRow(int64(4), "course", "Gamma", "ph", "d", "f", "g.pdf", 0, 50, created))
	it, err := p.FindByName(ctx, shop.Course, "Gamma")
	require.NoError(t, err)
	assert.Equal(t, shop.Course, it.Kind)
	assert.Equal(t, int64(4), it.ID)
	assert.Equal(t, 50, it.PriceStars)
	assert.Equal(t, created, it.CreatedAt)

	mock.ExpectQuery(`FROM items WHERE kind`).WithArgs("guide", "Nope").WillReturnRows(sqlmock.NewRows(itemCols))
	_, err = p.FindByName(ctx, shop.Guide, "Nope")
	assert.ErrorIs(t, err, shop.ErrNotFound)

	mock.ExpectQuery(`FROM items WHERE kind`).WithArgs("guide", "Down").WillReturnError(errors.New("connection refused"))
	_, err = p.FindByName(ctx, shop.Guide, "Down")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shop.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewPostgres(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM items WHERE kind = \$1 AND name = \$2`).
		WithArgs("guide", "Alpha").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Delete(ctx, shop.Guide, "Alpha"))

	mock.ExpectExec(`DELETE FROM items`).
		WithArgs("guide", "Alpha").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, p.Delete(ctx, shop.Guide, "Alpha"), shop.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewPostgres(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM items WHERE kind = \$1 ORDER BY id`).WithArgs("guide").
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(int64(1), "guide", "Alpha", "", "", "", "", 0, 0, now).
			AddRow(int64(2), "guide", "Beta", "", "", "", "", 0, 0, now))
	list, err := p.List(context.Background(), shop.Guide)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, shop.Guide, list[1].Kind)

	mock.ExpectQuery(`FROM items WHERE kind`).WithArgs("course").
		WillReturnRows(sqlmock.NewRows(itemCols).AddRow(int64(3), "video", "Bad", "", "", "", "", 0, 0, now))
	_, err = p.List(context.Background(), shop.Course)
	assert.Error(t, err, "unknown kind in a row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresViewLog(t *testing.T) {
	db, mock := newMockDB(t)
	l := NewPostgresViewLog(db)
	ctx := context.Background()
	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO item_views`).
		WithArgs(int64(500), "bob", "guide", "Alpha").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, l.RecordView(ctx, shop.View{BuyerID: 500, Username: "bob", Kind: shop.Guide, ItemName: "Alpha"}))

	mock.ExpectQuery(`SELECT buyer_id, username, kind, item_name, viewed_at FROM item_views`).
		WillReturnRows(sqlmock.NewRows([]string{"buyer_id", "username", "kind", "item_name", "viewed_at"}).
			AddRow(int64(500), "bob", "guide", "Alpha", at))
	views, err := l.Views(ctx)
	require.NoError(t, err)
	assert.Equal(t, []shop.View{{BuyerID: 500, Username: "bob", Kind: shop.Guide, ItemName: "Alpha", ViewedAt: at}}, views)
	assert.NoError(t, mock.ExpectationsWereMet())
}
