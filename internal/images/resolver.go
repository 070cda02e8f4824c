// Package images picks the display image for a feed item.
package images

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/links"
	"layofflens/aggregator/internal/serper"
)

const (
	// lowResProxyHost serves thumbnails that blur when scaled to card size.
	lowResProxyHost = "encrypted-tbn0.gstatic.com"
	faviconPattern  = "favicons"
)

// Source says which step of the chain produced an image.
type Source string

const (
	SourceNone     Source = ""
	SourceProvided Source = "provided"
	SourceYouTube  Source = "youtube"
	SourceSearch   Source = "search"
)

// Candidate is what the resolver knows about an item.
type Candidate struct {
	Link         string
	Title        string
	ImageURL     string
	ThumbnailURL string
}

// Resolution is the outcome of BestImage. Searched is set whenever an image
// search call was issued, whether or not it produced a usable image.
type Resolution struct {
	URL      string
	Source   Source
	Searched bool
}

// ImageSearcher runs a free-text image query.
type ImageSearcher interface {
	SearchImages(ctx context.Context, q string) ([]serper.Image, error)
}

// Resolver evaluates the image priority chain.
type Resolver struct {
	searcher ImageSearcher
}

// NewResolver creates a resolver. A nil searcher disables the search step.
func NewResolver(searcher ImageSearcher) *Resolver {
	return &Resolver{searcher: searcher}
}

// IsLowRes reports whether url is served by the low-resolution thumbnail proxy.
func IsLowRes(url string) bool {
	return strings.Contains(url, lowResProxyHost)
}

// IsFavicon reports whether url looks like a site favicon.
func IsFavicon(url string) bool {
	return strings.Contains(url, faviconPattern)
}

// IsGoodImage reports whether url is worth keeping on a stored item.
func IsGoodImage(url string) bool {
	return url != "" && !IsLowRes(url) && !IsFavicon(url)
}

// BestImage walks the chain: provided image, YouTube thumbnail, then one image
// search when allowSearch is set. The first step that yields an image wins.
func (r *Resolver) BestImage(ctx context.Context, c Candidate, allowSearch bool) Resolution {
	for _, direct := range []string{c.ImageURL, c.ThumbnailURL} {
		if direct != "" && !IsLowRes(direct) {
			return Resolution{URL: direct, Source: SourceProvided}
		}
	}

	if thumb := links.YouTubeThumbnail(c.Link); thumb != "" {
		return Resolution{URL: thumb, Source: SourceYouTube}
	}

	if !allowSearch || r.searcher == nil {
		return Resolution{}
	}

	host := links.BareHostname(c.Link)
	if host == "" {
		return Resolution{}
	}

	q := c.Title + " site:" + host
	results, err := r.searcher.SearchImages(ctx, q)
	res := Resolution{Searched: true}
	if err != nil {
		log.Warn().Err(err).Str("query", q).Msg("Image search failed")
		return res
	}
	if len(results) == 0 {
		return res
	}

	first := results[0]
	switch {
	case first.ImageURL != "" && !IsFavicon(first.ImageURL):
		res.URL, res.Source = first.ImageURL, SourceSearch
	case first.ThumbnailURL != "" && !IsFavicon(first.ThumbnailURL):
		res.URL, res.Source = first.ThumbnailURL, SourceSearch
	}
	return res
}
