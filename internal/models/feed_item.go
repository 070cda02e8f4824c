package models

import (
	"encoding/json"
	"time"
)

// ItemType discriminates news articles from videos.
type ItemType string

const (
	TypeNews  ItemType = "news"
	TypeVideo ItemType = "video"
)

// DefaultPartition is the fixed partition key every item is stored under.
// A stable partition is what lets a re-fetched link resolve to the same record.
const DefaultPartition = "news"

// DateLayout matches the millisecond ISO-8601 form the dashboard expects.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Sectors lists the industry sectors the extractor is asked to choose from.
var Sectors = []string{
	"Tech", "Finance", "Retail", "Healthcare", "Manufacturing", "Energy",
	"Transportation", "Hospitality", "Education", "Media", "Other",
}

// FeedItem is one persisted news article or video.
type FeedItem struct {
	PartitionKey string    `json:"partitionKey"`
	RowKey       string    `json:"rowKey"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	Source       string    `json:"source"`
	Snippet      string    `json:"snippet"`
	Date         time.Time `json:"date"`
	Type         ItemType  `json:"type"`
	Tags         string    `json:"tags"` // JSON array text, e.g. ["Layoffs","AI"]
	Score        float64   `json:"score"`
	ImageURL     string    `json:"imageUrl,omitempty"`

	// Extracted by the language model; zero values mean unknown.
	CompanyName string `json:"companyName,omitempty"`
	LayoffCount int    `json:"layoffCount,omitempty"`
	Sector      string `json:"sector,omitempty"`

	// Video search metadata.
	Channel  string `json:"channel,omitempty"`
	Duration string `json:"duration,omitempty"`
	Position int    `json:"position,omitempty"`

	// DropImage asks Upsert to clear a stored image even though ImageURL is
	// empty. It is never persisted.
	DropImage bool `json:"-"`
}

// MarshalJSON renders Date in DateLayout.
func (i FeedItem) MarshalJSON() ([]byte, error) {
	type alias FeedItem
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{alias: alias(i), Date: FormatDate(i.Date)})
}

// TagList decodes Tags, returning an empty slice for missing or malformed text.
func (i *FeedItem) TagList() []string {
	return DecodeTags(i.Tags)
}

// HasTag reports whether tag is among the item's tags.
func (i *FeedItem) HasTag(tag string) bool {
	for _, t := range i.TagList() {
		if t == tag {
			return true
		}
	}
	return false
}

// SetTags stores tags as JSON array text. A nil slice is stored as "[]".
func (i *FeedItem) SetTags(tags []string) {
	i.Tags = EncodeTags(tags)
}

// EncodeTags serializes tags, never producing "null".
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeTags parses JSON array text into a slice.
func DecodeTags(s string) []string {
	tags := []string{}
	if s == "" {
		return tags
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// FormatDate renders t in UTC using DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts any RFC 3339 timestamp, including DateLayout output.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
