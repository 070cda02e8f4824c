// Package scoring ranks feed items by freshness and enrichment.
package scoring

import (
	"math"
	"time"

	"layofflens/aggregator/internal/images"
	"layofflens/aggregator/internal/models"
)

const (
	newsBase  = 10.0
	videoBase = 8.0

	companyBoost = 5.0
	countBoost   = 5.0
	sectorBoost  = 2.0
	imageBoost   = 1.0
	layoffBoost  = 3.0

	// halfLife is the age at which the recency factor reaches one half.
	halfLife = 24 * time.Hour
)

// Score computes the ranking score of item as of now. It depends only on its
// arguments, and for otherwise identical items it never increases with age.
func Score(item *models.FeedItem, now time.Time) float64 {
	base := newsBase
	if item.Type == models.TypeVideo {
		base = videoBase
	}

	if item.CompanyName != "" {
		base += companyBoost
	}
	if item.LayoffCount > 0 {
		base += countBoost
	}
	if item.Sector != "" {
		base += sectorBoost
	}
	if images.IsGoodImage(item.ImageURL) {
		base += imageBoost
	}
	if item.HasTag("Layoffs") {
		base += layoffBoost
	}

	age := now.Sub(item.Date)
	if age < 0 {
		age = 0
	}
	recency := 1 / (1 + float64(age)/float64(halfLife))

	return math.Round(base*recency*100) / 100
}
