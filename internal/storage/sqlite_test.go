package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layofflens/aggregator/internal/database"
	"layofflens/aggregator/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "items.db")))
	require.NoError(t, err)
	s := NewSQLiteStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItem(rowKey string, date time.Time, score float64) *models.FeedItem {
	return &models.FeedItem{
		PartitionKey: models.DefaultPartition,
		RowKey:       rowKey,
		Title:        "Title " + rowKey,
		Link:         "https://example.com/" + rowKey,
		Source:       "example.com",
		Snippet:      "snippet",
		Date:         date,
		Type:         models.TypeNews,
		Tags:         `["Layoffs"]`,
		Score:        score,
	}
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	date := time.Date(2024, 3, 1, 8, 30, 15, 123000000, time.UTC)
	item := testItem("k1", date, 12.5)
	item.ImageURL = "https://cdn.example.com/a.jpg"
	item.CompanyName = "Acme Corp"
	item.LayoffCount = 200
	item.Sector = "Tech"
	require.NoError(t, s.Upsert(ctx, item))

	got, err := s.Get(ctx, models.DefaultPartition, "k1")
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), models.DefaultPartition, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpsertMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := testItem("k1", date, 10)
	first.ImageURL = "https://cdn.example.com/a.jpg"
	first.CompanyName = "Acme Corp"
	require.NoError(t, s.Upsert(ctx, first))

	second := testItem("k1", date, 7)
	second.Title = "Updated title"
	second.Sector = "Retail"
	require.NoError(t, s.Upsert(ctx, second))

	got, err := s.Get(ctx, models.DefaultPartition, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Updated title", got.Title)
	assert.Equal(t, 7.0, got.Score)
	assert.Equal(t, "https://cdn.example.com/a.jpg", got.ImageURL)
	assert.Equal(t, "Acme Corp", got.CompanyName)
	assert.Equal(t, "Retail", got.Sector)

	all, err := s.List(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_DropImageClearsStoredImage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := testItem("k1", date, 10)
	first.ImageURL = "https://encrypted-tbn0.gstatic.com/images?q=tbn:abc"
	require.NoError(t, s.Upsert(ctx, first))

	require.NoError(t, s.Upsert(ctx, testItem("k1", date, 9)))
	got, err := s.Get(ctx, models.DefaultPartition, "k1")
	require.NoError(t, err)
	assert.Equal(t, first.ImageURL, got.ImageURL, "an empty image alone keeps the stored one")

	cleared := testItem("k1", date, 8)
	cleared.DropImage = true
	require.NoError(t, s.Upsert(ctx, cleared))
	got, err = s.Get(ctx, models.DefaultPartition, "k1")
	require.NoError(t, err)
	assert.Empty(t, got.ImageURL)
	assert.Equal(t, 8.0, got.Score)
}

func TestSQLiteStore_ListOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testItem("a", day("2024-01-02"), 5)))
	require.NoError(t, s.Upsert(ctx, testItem("b", day("2024-01-01"), 100)))
	require.NoError(t, s.Upsert(ctx, testItem("c", day("2024-01-02"), 9)))

	items, err := s.List(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c", items[0].RowKey)
	assert.Equal(t, "a", items[1].RowKey)
	assert.Equal(t, "b", items[2].RowKey)

	recent, err := s.List(ctx, day("2024-01-02"))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSQLiteStore_DeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -90)

	require.NoError(t, s.Upsert(ctx, testItem("fresh", now.AddDate(0, 0, -1), 1)))
	require.NoError(t, s.Upsert(ctx, testItem("edge", cutoff, 1)))
	require.NoError(t, s.Upsert(ctx, testItem("stale", cutoff.Add(-time.Second), 1)))
	require.NoError(t, s.Upsert(ctx, testItem("ancient", now.AddDate(-1, 0, 0), 1)))

	deleted, err := s.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	items, err := s.List(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "fresh", items[0].RowKey)
	assert.Equal(t, "edge", items[1].RowKey)
}

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewSQLiteStore(&database.DB{DB: sqlx.NewDb(conn, "sqlite3")})
	t.Cleanup(func() { _ = conn.Close() })
	return s, mock
}

func TestSQLiteStore_UpsertFailure(t *testing.T) {
	s, mock := newMockStore(t)
	s.ready = true
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feed_items")).WillReturnError(errors.New("disk I/O error"))

	err := s.Upsert(context.Background(), testItem("k1", day("2024-01-01"), 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert item k1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_EnsureFailureIsRetried(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnError(errors.New("unable to open database file"))

	_, err := s.List(context.Background(), time.Time{})
	require.Error(t, err)
	assert.False(t, s.ready)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListFailure(t *testing.T) {
	s, mock := newMockStore(t)
	s.ready = true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT partition_key")).WillReturnError(errors.New("database is locked"))

	_, err := s.DeleteOlderThan(context.Background(), day("2024-01-01"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
