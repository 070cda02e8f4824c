// Package serper talks to the Serper news, video and image search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"layofflens/aggregator/internal/queries"
)

const (
	DefaultBaseURL         = "https://google.serper.dev"
	DefaultResultsPerQuery = 10
	DefaultRequestsPerSec  = 5
	imageResults           = 3
	maxErrorBodyBytes      = 512
)

// Result is one news or video search hit.
type Result struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Snippet      string `json:"snippet"`
	Source       string `json:"source,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Date         string `json:"date,omitempty"`
	Position     int    `json:"position,omitempty"`

	// Video endpoint only.
	Channel  string `json:"channel,omitempty"`
	Duration string `json:"duration,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

// Image is one image search hit.
type Image struct {
	Title        string `json:"title,omitempty"`
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Link         string `json:"link,omitempty"`
}

type searchResponse struct {
	Organic []Result `json:"organic"`
	News    []Result `json:"news"`
	Videos  []Result `json:"videos"`
	Images  []Image  `json:"images"`
}

// Config configures a Client.
type Config struct {
	APIKey          string
	BaseURL         string
	ResultsPerQuery int
	RequestsPerSec  int
	Queries         queries.Set
	HTTPClient      *http.Client
}

// Client issues search queries. Its zero value is not usable; use NewClient.
type Client struct {
	apiKey     string
	baseURL    string
	num        int
	queries    queries.Set
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a search client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ResultsPerQuery <= 0 {
		cfg.ResultsPerQuery = DefaultResultsPerQuery
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = DefaultRequestsPerSec
	}
	// Calls are bounded by the caller's context only.
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if len(cfg.Queries.News) == 0 && len(cfg.Queries.Videos) == 0 {
		cfg.Queries = queries.Defaults()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		num:        cfg.ResultsPerQuery,
		queries:    cfg.Queries,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

// FetchNews runs every news query and concatenates the results in query order.
// A failing query is logged and skipped.
func (c *Client) FetchNews(ctx context.Context) []Result {
	return c.fetchAll(ctx, "news", c.queries.News)
}

// FetchVideos runs every video query and concatenates the results in query order.
// A failing query is logged and skipped.
func (c *Client) FetchVideos(ctx context.Context) []Result {
	return c.fetchAll(ctx, "videos", c.queries.Videos)
}

func (c *Client) fetchAll(ctx context.Context, endpoint string, qs []string) []Result {
	var all []Result

	for _, q := range qs {
		var resp searchResponse
		err := c.post(ctx, endpoint, map[string]any{"q": q, "num": c.num}, &resp)
		if err != nil {
			log.Error().
				Err(err).
				Str("endpoint", endpoint).
				Str("query", q).
				Msg("Search query failed, skipping")
			continue
		}

		results := resp.News
		if endpoint == "videos" {
			results = resp.Videos
		}
		if len(results) == 0 {
			results = resp.Organic
		}

		log.Debug().
			Str("endpoint", endpoint).
			Str("query", q).
			Int("results", len(results)).
			Msg("Search query succeeded")

		all = append(all, results...)
	}

	return all
}

// SearchImages runs a single image query.
func (c *Client) SearchImages(ctx context.Context, q string) ([]Image, error) {
	var resp searchResponse
	body := map[string]any{"q": q, "num": imageResults, "gl": "us", "hl": "en"}
	if err := c.post(ctx, "images", body, &resp); err != nil {
		return nil, fmt.Errorf("image search failed: %w", err)
	}
	if len(resp.Images) > imageResults {
		resp.Images = resp.Images[:imageResults]
	}
	return resp.Images, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
