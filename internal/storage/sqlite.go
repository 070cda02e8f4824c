package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/database"
	"layofflens/aggregator/internal/models"
)

const itemColumns = `partition_key, row_key, title, link, source, snippet, date, type, tags, score,
	image_url, company_name, layoff_count, sector, channel, duration, position`

// Optional columns are merged with COALESCE so a NULL in the incoming row
// keeps whatever is stored. The stored image is cleared only on :drop_image.
const upsertItemQuery = `
	INSERT INTO feed_items (` + itemColumns + `, updated_at)
	VALUES (:partition_key, :row_key, :title, :link, :source, :snippet, :date, :type, :tags, :score,
		:image_url, :company_name, :layoff_count, :sector, :channel, :duration, :position, :updated_at)
	ON CONFLICT (partition_key, row_key) DO UPDATE SET
		title        = excluded.title,
		link         = excluded.link,
		source       = excluded.source,
		snippet      = excluded.snippet,
		date         = excluded.date,
		type         = excluded.type,
		tags         = excluded.tags,
		score        = excluded.score,
		image_url    = CASE WHEN :drop_image THEN excluded.image_url
			ELSE COALESCE(excluded.image_url, feed_items.image_url) END,
		company_name = COALESCE(excluded.company_name, feed_items.company_name),
		layoff_count = COALESCE(excluded.layoff_count, feed_items.layoff_count),
		sector       = COALESCE(excluded.sector, feed_items.sector),
		channel      = COALESCE(excluded.channel, feed_items.channel),
		duration     = COALESCE(excluded.duration, feed_items.duration),
		position     = COALESCE(excluded.position, feed_items.position),
		updated_at   = excluded.updated_at`

// itemRow is the sqlite representation of a FeedItem.
type itemRow struct {
	PartitionKey string         `db:"partition_key"`
	RowKey       string         `db:"row_key"`
	Title        string         `db:"title"`
	Link         string         `db:"link"`
	Source       string         `db:"source"`
	Snippet      string         `db:"snippet"`
	Date         string         `db:"date"`
	Type         string         `db:"type"`
	Tags         string         `db:"tags"`
	Score        float64        `db:"score"`
	ImageURL     sql.NullString `db:"image_url"`
	CompanyName  sql.NullString `db:"company_name"`
	LayoffCount  sql.NullInt64  `db:"layoff_count"`
	Sector       sql.NullString `db:"sector"`
	Channel      sql.NullString `db:"channel"`
	Duration     sql.NullString `db:"duration"`
	Position     sql.NullInt64  `db:"position"`
	UpdatedAt    string         `db:"updated_at"`
	DropImage    bool           `db:"drop_image"`
}

func toRow(it *models.FeedItem) itemRow {
	tags := it.Tags
	if tags == "" {
		tags = "[]"
	}
	return itemRow{
		PartitionKey: it.PartitionKey,
		RowKey:       it.RowKey,
		Title:        it.Title,
		Link:         it.Link,
		Source:       it.Source,
		Snippet:      it.Snippet,
		Date:         models.FormatDate(it.Date),
		Type:         string(it.Type),
		Tags:         tags,
		Score:        it.Score,
		ImageURL:     nullString(it.ImageURL),
		CompanyName:  nullString(it.CompanyName),
		LayoffCount:  nullInt(it.LayoffCount),
		Sector:       nullString(it.Sector),
		Channel:      nullString(it.Channel),
		Duration:     nullString(it.Duration),
		Position:     nullInt(it.Position),
		UpdatedAt:    models.FormatDate(time.Now()),
		DropImage:    it.DropImage && it.ImageURL == "",
	}
}

func (r *itemRow) toItem() models.FeedItem {
	date, err := models.ParseDate(r.Date)
	if err != nil {
		log.Warn().Err(err).Str("row_key", r.RowKey).Str("date", r.Date).Msg("Stored item has unreadable date")
	}
	return models.FeedItem{
		PartitionKey: r.PartitionKey,
		RowKey:       r.RowKey,
		Title:        r.Title,
		Link:         r.Link,
		Source:       r.Source,
		Snippet:      r.Snippet,
		Date:         date,
		Type:         models.ItemType(r.Type),
		Tags:         r.Tags,
		Score:        r.Score,
		ImageURL:     r.ImageURL.String,
		CompanyName:  r.CompanyName.String,
		LayoffCount:  int(r.LayoffCount.Int64),
		Sector:       r.Sector.String,
		Channel:      r.Channel.String,
		Duration:     r.Duration.String,
		Position:     int(r.Position.Int64),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}

// SQLiteStore keeps feed items in a local sqlite database.
type SQLiteStore struct {
	db *database.DB

	mu    sync.Mutex
	ready bool
}

// NewSQLiteStore wraps an open database. The schema is migrated on first use.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable applies pending migrations once per store.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.db.Migrate(ctx); err != nil {
		return errors.Wrap(err, "ensure feed_items table")
	}
	s.ready = true
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, item *models.FeedItem) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertItemQuery, toRow(item)); err != nil {
		return errors.Wrapf(err, "upsert item %s", item.RowKey)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, partitionKey, rowKey string) (*models.FeedItem, error) {
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	var row itemRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+itemColumns+` FROM feed_items WHERE partition_key = ? AND row_key = ?`,
		partitionKey, rowKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get item %s", rowKey)
	}

	item := row.toItem()
	return &item, nil
}

// List reads every row and filters by date in Go, so both backends share the
// same filtering and ordering rules.
func (s *SQLiteStore) List(ctx context.Context, since time.Time) ([]models.FeedItem, error) {
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM feed_items`); err != nil {
		return nil, errors.Wrap(err, "list items")
	}

	items := make([]models.FeedItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toItem())
	}
	items = filterSince(items, since)
	sortItems(items)
	return items, nil
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	items, err := s.List(ctx, time.Time{})
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin sweep")
	}
	defer tx.Rollback()

	var deleted int64
	for i := range items {
		if !expired(&items[i], cutoff) {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM feed_items WHERE partition_key = ? AND row_key = ?`,
			items[i].PartitionKey, items[i].RowKey)
		if err != nil {
			return 0, errors.Wrapf(err, "delete item %s", items[i].RowKey)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit sweep")
	}
	return deleted, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
