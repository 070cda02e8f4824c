package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/models"
)

// DefaultTableName is the table used when none is configured.
const DefaultTableName = "layoffitems"

// tableEntity is the wire shape of a FeedItem in Azure Table Storage.
// Optional properties are omitted when empty so a merge keeps stored values.
// ImageURL is a pointer so an explicit "" can overwrite a stored image.
type tableEntity struct {
	PartitionKey string  `json:"PartitionKey"`
	RowKey       string  `json:"RowKey"`
	Title        string  `json:"title"`
	Link         string  `json:"link"`
	Source       string  `json:"source"`
	Snippet      string  `json:"snippet"`
	Date         string  `json:"date"`
	Type         string  `json:"type"`
	Tags         string  `json:"tags"`
	Score        float64 `json:"score"`
	// Whole-number scores would otherwise be inferred as Edm.Int32.
	ScoreType   string  `json:"score@odata.type,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	CompanyName string  `json:"companyName,omitempty"`
	LayoffCount int     `json:"layoffCount,omitempty"`
	Sector      string  `json:"sector,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	Duration    string  `json:"duration,omitempty"`
	Position    int     `json:"position,omitempty"`
}

func toEntity(it *models.FeedItem) tableEntity {
	tags := it.Tags
	if tags == "" {
		tags = "[]"
	}
	var image *string
	if it.ImageURL != "" || it.DropImage {
		image = &it.ImageURL
	}
	return tableEntity{
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
		ScoreType:    "Edm.Double",
		ImageURL:     image,
		CompanyName:  it.CompanyName,
		LayoffCount:  it.LayoffCount,
		Sector:       it.Sector,
		Channel:      it.Channel,
		Duration:     it.Duration,
		Position:     it.Position,
	}
}

func decodeEntity(raw []byte) (models.FeedItem, error) {
	var e tableEntity
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.FeedItem{}, errors.Wrap(err, "decode entity")
	}

	date, err := models.ParseDate(e.Date)
	if err != nil {
		log.Warn().Err(err).Str("row_key", e.RowKey).Str("date", e.Date).Msg("Stored item has unreadable date")
	}
	tags := e.Tags
	if tags == "" {
		tags = "[]"
	}
	image := ""
	if e.ImageURL != nil {
		image = *e.ImageURL
	}

	return models.FeedItem{
		PartitionKey: e.PartitionKey,
		RowKey:       e.RowKey,
		Title:        e.Title,
		Link:         e.Link,
		Source:       e.Source,
		Snippet:      e.Snippet,
		Date:         date,
		Type:         models.ItemType(e.Type),
		Tags:         tags,
		Score:        e.Score,
		ImageURL:     image,
		CompanyName:  e.CompanyName,
		LayoffCount:  e.LayoffCount,
		Sector:       e.Sector,
		Channel:      e.Channel,
		Duration:     e.Duration,
		Position:     e.Position,
	}, nil
}

// TableStore keeps feed items in an Azure Storage table (or the local
// emulator).
type TableStore struct {
	client *aztables.Client
	name   string

	mu    sync.Mutex
	ready bool
}

// NewTableStore returns a store for the named table reachable through svc.
func NewTableStore(svc *aztables.ServiceClient, name string) *TableStore {
	if name == "" {
		name = DefaultTableName
	}
	return &TableStore{client: svc.NewClient(name), name: name}
}

// EnsureTable creates the table once. A conflict means it already exists.
func (s *TableStore) EnsureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	_, err := s.client.CreateTable(ctx, nil)
	if err != nil && !hasStatus(err, http.StatusConflict) {
		return errors.Wrapf(err, "create table %s", s.name)
	}
	log.Debug().Str("table", s.name).Msg("Table ready")
	s.ready = true
	return nil
}

func (s *TableStore) Upsert(ctx context.Context, item *models.FeedItem) error {
	if err := s.EnsureTable(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(toEntity(item))
	if err != nil {
		return errors.Wrap(err, "encode entity")
	}
	_, err = s.client.UpsertEntity(ctx, body, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeMerge,
	})
	return errors.Wrapf(err, "upsert entity %s", item.RowKey)
}

func (s *TableStore) Get(ctx context.Context, partitionKey, rowKey string) (*models.FeedItem, error) {
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.GetEntity(ctx, partitionKey, rowKey, nil)
	if hasStatus(err, http.StatusNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get entity %s", rowKey)
	}

	item, err := decodeEntity(resp.Value)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List pages through the whole table; the date filter is applied in Go
// because the stored timestamp is a plain string property.
func (s *TableStore) List(ctx context.Context, since time.Time) ([]models.FeedItem, error) {
	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	var items []models.FeedItem
	pager := s.client.NewListEntitiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list entities")
		}
		for _, raw := range page.Entities {
			item, err := decodeEntity(raw)
			if err != nil {
				log.Warn().Err(err).Msg("Skipping undecodable entity")
				continue
			}
			items = append(items, item)
		}
	}

	items = filterSince(items, since)
	sortItems(items)
	return items, nil
}

func (s *TableStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	items, err := s.List(ctx, time.Time{})
	if err != nil {
		return 0, err
	}

	var deleted int64
	for i := range items {
		if !expired(&items[i], cutoff) {
			continue
		}
		_, err := s.client.DeleteEntity(ctx, items[i].PartitionKey, items[i].RowKey, nil)
		if hasStatus(err, http.StatusNotFound) {
			continue
		}
		if err != nil {
			return deleted, errors.Wrapf(err, "delete entity %s", items[i].RowKey)
		}
		deleted++
	}
	return deleted, nil
}

// Close is a no-op; the table client holds no resources.
func (s *TableStore) Close() error {
	return nil
}

func hasStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}
