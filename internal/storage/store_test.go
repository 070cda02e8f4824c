package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"layofflens/aggregator/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSortItems_DateThenScore(t *testing.T) {
	items := []models.FeedItem{
		{RowKey: "a", Date: day("2024-01-02"), Score: 5},
		{RowKey: "b", Date: day("2024-01-01"), Score: 100},
		{RowKey: "c", Date: day("2024-01-02"), Score: 9},
	}
	sortItems(items)

	var keys []string
	for _, it := range items {
		keys = append(keys, it.RowKey)
	}
	assert.Equal(t, []string{"c", "a", "b"}, keys)
}

func TestFilterSince(t *testing.T) {
	items := []models.FeedItem{
		{RowKey: "old", Date: day("2024-01-01")},
		{RowKey: "edge", Date: day("2024-01-10")},
		{RowKey: "new", Date: day("2024-01-20")},
		{RowKey: "undated"},
	}

	all := filterSince(append([]models.FeedItem(nil), items...), time.Time{})
	assert.Len(t, all, 4)

	kept := filterSince(append([]models.FeedItem(nil), items...), day("2024-01-10"))
	assert.Len(t, kept, 2)
	assert.Equal(t, "edge", kept[0].RowKey)
	assert.Equal(t, "new", kept[1].RowKey)
}

func TestExpired(t *testing.T) {
	cutoff := day("2024-01-10")
	assert.True(t, expired(&models.FeedItem{Date: day("2024-01-09")}, cutoff))
	assert.False(t, expired(&models.FeedItem{Date: cutoff}, cutoff))
	assert.False(t, expired(&models.FeedItem{}, cutoff))
}
