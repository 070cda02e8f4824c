// Package storage persists feed items in a partitioned key-value table.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"layofflens/aggregator/internal/models"
)

// ErrNotFound is returned by Get when no item has the given key.
var ErrNotFound = errors.New("item not found")

// Store is a table of feed items keyed by (partition key, row key).
//
// Implementations create their table lazily on first use, and List always
// returns items ordered by date descending, then score descending.
type Store interface {
	// EnsureTable creates the backing table if it does not exist yet.
	EnsureTable(ctx context.Context) error
	// Upsert merges item into the stored record with the same key, creating
	// it if absent. Empty optional fields do not clear stored values.
	Upsert(ctx context.Context, item *models.FeedItem) error
	Get(ctx context.Context, partitionKey, rowKey string) (*models.FeedItem, error)
	// List returns items dated at or after since. A zero since lists everything.
	List(ctx context.Context, since time.Time) ([]models.FeedItem, error)
	// DeleteOlderThan removes items dated strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// filterSince keeps items dated at or after since. Items whose date could not
// be read carry the zero time and only survive an unfiltered listing.
func filterSince(items []models.FeedItem, since time.Time) []models.FeedItem {
	if since.IsZero() {
		return items
	}
	kept := items[:0]
	for _, it := range items {
		if !it.Date.Before(since) {
			kept = append(kept, it)
		}
	}
	return kept
}

// sortItems orders items by date descending, then score descending.
func sortItems(items []models.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].Score > items[j].Score
	})
}

// expired reports whether item falls before the retention cutoff. Undated
// items are never swept.
func expired(item *models.FeedItem, cutoff time.Time) bool {
	return !item.Date.IsZero() && item.Date.Before(cutoff)
}
