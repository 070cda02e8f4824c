package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"layofflens/aggregator/internal/models"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func item(age time.Duration) *models.FeedItem {
	return &models.FeedItem{
		Type: models.TypeNews,
		Date: now.Add(-age),
		Tags: `["Layoffs"]`,
	}
}

func TestScore_Fresh(t *testing.T) {
	assert.Equal(t, 13.0, Score(item(0), now))
}

func TestScore_NonIncreasingWithAge(t *testing.T) {
	ages := []time.Duration{0, time.Minute, time.Hour, 12 * time.Hour, 24 * time.Hour, 7 * 24 * time.Hour, 90 * 24 * time.Hour, 365 * 24 * time.Hour}
	prev := Score(item(0), now)
	for _, age := range ages {
		s := Score(item(age), now)
		assert.LessOrEqual(t, s, prev, "age %s", age)
		assert.GreaterOrEqual(t, s, 0.0)
		prev = s
	}
}

func TestScore_HalfLife(t *testing.T) {
	assert.Equal(t, 6.5, Score(item(24*time.Hour), now))
}

func TestScore_FutureDatesCountAsFresh(t *testing.T) {
	assert.Equal(t, Score(item(0), now), Score(item(-time.Hour), now))
}

func TestScore_Pure(t *testing.T) {
	it := item(3 * time.Hour)
	assert.Equal(t, Score(it, now), Score(it, now))
}

func TestScore_Boosts(t *testing.T) {
	plain := &models.FeedItem{Type: models.TypeVideo, Date: now, Tags: "[]"}
	assert.Equal(t, 8.0, Score(plain, now))

	enriched := *plain
	enriched.Type = models.TypeNews
	enriched.CompanyName = "Acme"
	enriched.LayoffCount = 200
	enriched.Sector = "Tech"
	enriched.ImageURL = "https://cdn.example.com/a.jpg"
	enriched.Tags = `["Layoffs","AI"]`
	assert.Equal(t, 26.0, Score(&enriched, now))
}

func TestScore_BlurryImageEarnsNoBoost(t *testing.T) {
	plain := &models.FeedItem{Type: models.TypeNews, Date: now, Tags: "[]"}

	lowRes := *plain
	lowRes.ImageURL = "https://encrypted-tbn0.gstatic.com/images?q=tbn:abc"
	assert.Equal(t, Score(plain, now), Score(&lowRes, now))

	favicon := *plain
	favicon.ImageURL = "https://www.google.com/s2/favicons?domain=example.com"
	assert.Equal(t, Score(plain, now), Score(&favicon, now))
}
