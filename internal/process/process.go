// Package process runs ingestion: fetch search results, reconcile them with
// storage, enrich, score and persist. It also owns the retention sweep and the
// cron schedule that drives both.
package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/extract"
	"layofflens/aggregator/internal/images"
	"layofflens/aggregator/internal/links"
	"layofflens/aggregator/internal/metrics"
	"layofflens/aggregator/internal/models"
	"layofflens/aggregator/internal/scoring"
	"layofflens/aggregator/internal/serper"
	"layofflens/aggregator/internal/storage"
)

const (
	DefaultImageLookupCap = 8
	DefaultRetentionDays  = 90
)

// Write paths taken by a candidate.
const (
	pathEnriched  = "enriched"
	pathRefreshed = "refreshed"
)

// Searcher supplies the candidates of a run.
type Searcher interface {
	FetchNews(ctx context.Context) []serper.Result
	FetchVideos(ctx context.Context) []serper.Result
}

// ImageResolver picks an image for a candidate.
type ImageResolver interface {
	BestImage(ctx context.Context, c images.Candidate, allowSearch bool) images.Resolution
}

// Extractor pulls layoff facts out of a title and snippet.
type Extractor interface {
	Extract(ctx context.Context, title, snippet string) extract.LayoffData
}

// Config wires a Pipeline. Searcher and Store are required.
type Config struct {
	Searcher       Searcher
	Images         ImageResolver
	Extractor      Extractor
	Store          storage.Store
	Metrics        *metrics.Metrics
	ImageLookupCap int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs ingestion and retention against one store.
type Pipeline struct {
	searcher  Searcher
	images    ImageResolver
	extractor Extractor
	store     storage.Store
	metrics   *metrics.Metrics
	imageCap  int
	now       func() time.Time
}

// RunResult summarizes one ingestion run.
type RunResult struct {
	RunID        string `json:"runId"`
	Saved        int    `json:"saved"`
	Enriched     int    `json:"enriched"`
	Refreshed    int    `json:"refreshed"`
	Skipped      int    `json:"skipped"`
	ImageLookups int    `json:"imageLookups"`
}

// NewPipeline validates cfg and fills defaults.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, errors.New("pipeline needs a store")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("pipeline needs a searcher")
	}
	if cfg.Images == nil {
		cfg.Images = images.NewResolver(nil)
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.NewExtractor(nil)
	}
	if cfg.ImageLookupCap < 0 {
		cfg.ImageLookupCap = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		searcher:  cfg.Searcher,
		images:    cfg.Images,
		extractor: cfg.Extractor,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		imageCap:  cfg.ImageLookupCap,
		now:       cfg.Now,
	}, nil
}

// candidate is a search hit not yet reconciled with storage.
type candidate struct {
	serper.Result
	fromVideo bool
}

// imageBudget caps external image searches within one run.
type imageBudget struct {
	cap  int
	used int
}

func (b *imageBudget) available() bool { return b.used < b.cap }

// Run performs one ingestion run. Candidates are handled one at a time; an
// enrichment problem only costs that candidate some data, while a storage
// error stops the run. Items written before the error stay written.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString()}
	logger := log.With().Str("run_id", res.RunID).Logger()
	start := time.Now()

	if err := p.store.EnsureTable(ctx); err != nil {
		return res, fmt.Errorf("prepare storage: %w", err)
	}

	var candidates []candidate
	for _, r := range p.searcher.FetchNews(ctx) {
		candidates = append(candidates, candidate{Result: r})
	}
	for _, r := range p.searcher.FetchVideos(ctx) {
		candidates = append(candidates, candidate{Result: r, fromVideo: true})
	}
	logger.Info().Int("candidates", len(candidates)).Msg("Fetched candidates")

	budget := &imageBudget{cap: p.imageCap}
	for _, c := range candidates {
		path, err := p.ingest(ctx, logger, c, budget)
		if err != nil {
			res.ImageLookups = budget.used
			logger.Error().Err(err).Int("saved", res.Saved).Msg("Run aborted by storage failure")
			return res, err
		}

		switch path {
		case "":
			res.Skipped++
			p.metrics.ItemSkipped()
			continue
		case pathRefreshed:
			res.Refreshed++
		case pathEnriched:
			res.Enriched++
		}
		res.Saved++
	}
	res.ImageLookups = budget.used

	logger.Info().
		Int("saved", res.Saved).
		Int("enriched", res.Enriched).
		Int("refreshed", res.Refreshed).
		Int("skipped", res.Skipped).
		Int("image_lookups", res.ImageLookups).
		Dur("elapsed", time.Since(start)).
		Msg("Ingestion run complete")
	return res, nil
}

// ingest reconciles one candidate with storage and writes it. It returns the
// path taken, or "" when the candidate was skipped.
func (p *Pipeline) ingest(ctx context.Context, logger zerolog.Logger, c candidate, budget *imageBudget) (string, error) {
	link := links.Canonical(c.Link)
	if link == "" || links.Hostname(link) == "" {
		logger.Debug().Str("link", c.Link).Str("title", c.Title).Msg("Skipping candidate without usable link")
		return "", nil
	}

	key := links.RowKey(link)
	existing, err := p.store.Get(ctx, models.DefaultPartition, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		existing = nil
	case err != nil:
		return "", fmt.Errorf("look up %s: %w", key, err)
	}

	now := p.now().UTC()
	item := p.newItem(c, link, key, now)
	if existing != nil {
		mergeInto(item, existing)
	}

	data := p.extractor.Extract(ctx, item.Title, item.Snippet)
	p.metrics.Extraction(!data.IsEmpty())
	applyLayoffData(item, data)

	path := pathEnriched
	if existing != nil && images.IsGoodImage(existing.ImageURL) {
		path = pathRefreshed
		item.ImageURL = existing.ImageURL
	} else {
		resolution := p.images.BestImage(ctx, images.Candidate{
			Link:         link,
			Title:        item.Title,
			ImageURL:     c.ImageURL,
			ThumbnailURL: c.ThumbnailURL,
		}, budget.available())
		if resolution.Searched {
			budget.used++
			p.metrics.ImageLookup()
		}
		p.metrics.ImageResolved(string(resolution.Source))
		if resolution.URL != "" {
			item.ImageURL = resolution.URL
		}
		// A blurry stored image counts as none and must not survive the merge.
		if item.ImageURL == "" && existing != nil && existing.ImageURL != "" {
			item.DropImage = true
		}
	}

	item.SetTags(Tags(item.Title, item.Snippet))
	item.Score = scoring.Score(item, now)

	if err := p.store.Upsert(ctx, item); err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	p.metrics.ItemSaved(string(item.Type), path)

	logger.Debug().
		Str("row_key", key).
		Str("link", link).
		Str("type", string(item.Type)).
		Str("path", path).
		Float64("score", item.Score).
		Msg("Saved item")
	return path, nil
}

// newItem maps a search hit onto a fresh item dated now.
func (p *Pipeline) newItem(c candidate, link, key string, now time.Time) *models.FeedItem {
	item := &models.FeedItem{
		PartitionKey: models.DefaultPartition,
		RowKey:       key,
		Title:        c.Title,
		Link:         link,
		Source:       c.Source,
		Snippet:      c.Snippet,
		Date:         now,
		Type:         models.TypeNews,
		Tags:         models.EncodeTags(nil),
	}
	if item.Source == "" {
		item.Source = links.BareHostname(link)
	}

	// Video queries discover content; only the host decides the type.
	if c.fromVideo && links.IsVideoPlatform(link) {
		item.Type = models.TypeVideo
		item.Channel = c.Channel
		item.Duration = c.Duration
		item.Position = c.Position
	}
	return item
}

// mergeInto carries over what the store already knows: the first-seen date and
// any optional field the fresh result leaves empty. A low-res or favicon image
// is not carried over.
func mergeInto(item, existing *models.FeedItem) {
	if !existing.Date.IsZero() {
		item.Date = existing.Date
	}
	if item.Title == "" {
		item.Title = existing.Title
	}
	if item.Snippet == "" {
		item.Snippet = existing.Snippet
	}
	if item.ImageURL == "" && images.IsGoodImage(existing.ImageURL) {
		item.ImageURL = existing.ImageURL
	}
	if item.CompanyName == "" {
		item.CompanyName = existing.CompanyName
	}
	if item.LayoffCount == 0 {
		item.LayoffCount = existing.LayoffCount
	}
	if item.Sector == "" {
		item.Sector = existing.Sector
	}
	if item.Channel == "" {
		item.Channel = existing.Channel
	}
	if item.Duration == "" {
		item.Duration = existing.Duration
	}
	if item.Position == 0 {
		item.Position = existing.Position
	}
}

func applyLayoffData(item *models.FeedItem, data extract.LayoffData) {
	if data.CompanyName != "" {
		item.CompanyName = data.CompanyName
	}
	if data.LayoffCount > 0 {
		item.LayoffCount = data.LayoffCount
	}
	if data.Sector != "" {
		item.Sector = data.Sector
	}
}

// Sweep deletes items first seen more than days before now.
func (p *Pipeline) Sweep(ctx context.Context, now time.Time, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}

	cutoff := now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
	deleted, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("retention sweep: %w", err)
	}
	p.metrics.Purged(deleted)

	log.Info().
		Int("retention_days", days).
		Str("cutoff", models.FormatDate(cutoff)).
		Int64("deleted", deleted).
		Msg("Retention sweep complete")
	return deleted, nil
}

// Now returns the pipeline clock's current time.
func (p *Pipeline) Now() time.Time {
	return p.now()
}

// Metrics returns the collectors the pipeline reports to, possibly nil.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}
