package images

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"layofflens/aggregator/internal/serper"
)

type fakeSearcher struct {
	results []serper.Image
	err     error
	queries []string
}

func (f *fakeSearcher) SearchImages(_ context.Context, q string) ([]serper.Image, error) {
	f.queries = append(f.queries, q)
	return f.results, f.err
}

func TestBestImage_ProvidedImageWins(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewResolver(searcher)

	res := r.BestImage(context.Background(), Candidate{
		Link:     "https://www.youtube.com/watch?v=abc",
		ImageURL: "https://cdn.example.com/hero.jpg",
	}, true)

	assert.Equal(t, Resolution{URL: "https://cdn.example.com/hero.jpg", Source: SourceProvided}, res)
	assert.Empty(t, searcher.queries)
}

func TestBestImage_ThumbnailUsedWhenNoImage(t *testing.T) {
	r := NewResolver(&fakeSearcher{})
	res := r.BestImage(context.Background(), Candidate{
		Link:         "https://example.com/a",
		ThumbnailURL: "https://cdn.example.com/thumb.jpg",
	}, false)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", res.URL)
}

func TestBestImage_LowResRejectedThenYouTube(t *testing.T) {
	searcher := &fakeSearcher{}
	r := NewResolver(searcher)

	res := r.BestImage(context.Background(), Candidate{
		Link:     "https://youtu.be/xyz",
		ImageURL: "https://encrypted-tbn0.gstatic.com/images?q=tbn:abc",
	}, true)

	assert.Equal(t, "https://img.youtube.com/vi/xyz/maxresdefault.jpg", res.URL)
	assert.Equal(t, SourceYouTube, res.Source)
	assert.False(t, res.Searched)
	assert.Empty(t, searcher.queries)
}

func TestBestImage_SearchQueryAndResult(t *testing.T) {
	searcher := &fakeSearcher{results: []serper.Image{{ImageURL: "https://cdn.reuters.com/big.jpg"}}}
	r := NewResolver(searcher)

	res := r.BestImage(context.Background(), Candidate{
		Link:  "https://www.reuters.com/business/acme",
		Title: "Acme Corp lays off 200 workers",
	}, true)

	assert.Equal(t, Resolution{URL: "https://cdn.reuters.com/big.jpg", Source: SourceSearch, Searched: true}, res)
	assert.Equal(t, []string{"Acme Corp lays off 200 workers site:reuters.com"}, searcher.queries)
}

func TestBestImage_SearchFallsBackToThumbnail(t *testing.T) {
	searcher := &fakeSearcher{results: []serper.Image{{
		ImageURL:     "https://www.google.com/s2/favicons?domain=reuters.com",
		ThumbnailURL: "https://cdn.reuters.com/thumb.jpg",
	}}}
	res := NewResolver(searcher).BestImage(context.Background(), Candidate{Link: "https://reuters.com/a", Title: "t"}, true)
	assert.Equal(t, "https://cdn.reuters.com/thumb.jpg", res.URL)
}

func TestBestImage_FaviconsRejected(t *testing.T) {
	searcher := &fakeSearcher{results: []serper.Image{{
		ImageURL:     "https://www.google.com/s2/favicons?domain=a.com",
		ThumbnailURL: "https://www.google.com/s2/favicons?domain=a.com&sz=64",
	}}}
	res := NewResolver(searcher).BestImage(context.Background(), Candidate{Link: "https://a.com/x", Title: "t"}, true)
	assert.Equal(t, "", res.URL)
	assert.True(t, res.Searched)
}

func TestBestImage_SearchNotAllowed(t *testing.T) {
	searcher := &fakeSearcher{results: []serper.Image{{ImageURL: "https://cdn.example.com/x.jpg"}}}
	res := NewResolver(searcher).BestImage(context.Background(), Candidate{Link: "https://example.com/a", Title: "t"}, false)
	assert.Equal(t, Resolution{}, res)
	assert.Empty(t, searcher.queries)
}

func TestBestImage_SearchErrorIsNoImage(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("boom")}
	res := NewResolver(searcher).BestImage(context.Background(), Candidate{Link: "https://example.com/a", Title: "t"}, true)
	assert.Equal(t, "", res.URL)
	assert.True(t, res.Searched)
}

func TestIsGoodImage(t *testing.T) {
	assert.True(t, IsGoodImage("https://cdn.example.com/a.jpg"))
	assert.False(t, IsGoodImage(""))
	assert.False(t, IsGoodImage("https://encrypted-tbn0.gstatic.com/images?q=1"))
	assert.False(t, IsGoodImage("https://www.google.com/s2/favicons?domain=x"))
}
