package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"layofflens/aggregator/internal/analytics"
	"layofflens/aggregator/internal/metrics"
	"layofflens/aggregator/internal/models"
	"layofflens/aggregator/internal/process"
	"layofflens/aggregator/internal/server/pagination"
	"layofflens/aggregator/internal/storage"
)

const (
	defaultArchiveLimit = 500
	defaultStatsDays    = 30
)

// Pipeline is the ingestion side the admin endpoints trigger.
type Pipeline interface {
	Run(ctx context.Context) (process.RunResult, error)
	Sweep(ctx context.Context, now time.Time, days int) (int64, error)
}

// Config wires a Handler.
type Config struct {
	Store         storage.Store
	Pipeline      Pipeline
	Metrics       *metrics.Metrics
	RetentionDays int
	// Production hides error details from response bodies.
	Production bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler serves the dashboard API.
type Handler struct {
	store         storage.Store
	pipeline      Pipeline
	metrics       *metrics.Metrics
	retentionDays int
	production    bool
	now           func() time.Time
}

// NewHandler creates a handler instance.
func NewHandler(cfg Config) *Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = process.DefaultRetentionDays
	}
	return &Handler{
		store:         cfg.Store,
		pipeline:      cfg.Pipeline,
		metrics:       cfg.Metrics,
		retentionDays: cfg.RetentionDays,
		production:    cfg.Production,
		now:           cfg.Now,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// FetchResponse is the FetchNow response body.
type FetchResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"runId"`
	Saved   int    `json:"saved"`
	Deleted int64  `json:"deleted"`
}

// SweepResponse is the SweepNow response body.
type SweepResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

// ListResponse is the ListItems body when no limit is given.
type ListResponse struct {
	Items      []models.FeedItem `json:"items"`
	Pagination pagination.Info   `json:"pagination"`
}

// FetchNow runs one ingestion run. The retention sweep only follows when
// sweep=true.
func (h *Handler) FetchNow(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	sweep, _ := strconv.ParseBool(r.URL.Query().Get("sweep"))

	// The run finishes even if the caller hangs up.
	ctx := context.WithoutCancel(r.Context())

	started := time.Now()
	res, err := h.pipeline.Run(ctx)
	h.metrics.ObserveRun(process.TriggerManual, started, err)
	if err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Msg("Manual ingestion run failed")
		h.writeError(w, r, http.StatusInternalServerError, "ingestion run failed", err)
		return
	}

	resp := FetchResponse{Success: true, RunID: res.RunID, Saved: res.Saved}
	if sweep {
		deleted, err := h.pipeline.Sweep(ctx, h.now(), h.retentionDays)
		if err != nil {
			log.Error().Err(err).Msg("Retention sweep after manual run failed")
			h.writeError(w, r, http.StatusInternalServerError, "retention sweep failed", err)
			return
		}
		resp.Deleted = deleted
	}

	log.Info().Str("run_id", res.RunID).Int("saved", res.Saved).Int64("deleted", resp.Deleted).Msg("Manual ingestion run complete")
	h.writeJSON(w, r, http.StatusOK, resp)
}

// SweepNow deletes items older than days (default: the retention horizon).
func (h *Handler) SweepNow(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"), h.retentionDays)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	deleted, err := h.pipeline.Sweep(context.WithoutCancel(r.Context()), h.now(), days)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Retention sweep failed")
		h.writeError(w, r, http.StatusInternalServerError, "retention sweep failed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, SweepResponse{Success: true, Deleted: deleted})
}

// ListItems returns stored items newest first.
//
// With days, only items from that window are listed; without it the 500 most
// recent. A limit truncates the list and switches the body to a bare array.
// Otherwise the body carries pagination metadata and, when page is given,
// just that page.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	var since time.Time
	if raw := query.Get("days"); raw != "" {
		days, err := parseDays(raw, 0)
		if err != nil {
			log.Warn().Str("days", raw).Msg("Invalid 'days' parameter")
			h.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		since = h.since(days)
	}

	pageRaw := query.Get("page")
	page, err := pagination.ParsePage(pageRaw)
	if err != nil {
		log.Warn().Str("page", pageRaw).Msg("Invalid 'page' parameter")
		h.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items, err := h.store.List(r.Context(), since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list items")
		h.writeError(w, r, http.StatusInternalServerError, "failed to list items", err)
		return
	}
	if since.IsZero() && len(items) > defaultArchiveLimit {
		items = items[:defaultArchiveLimit]
	}
	if items == nil {
		items = []models.FeedItem{}
	}

	if query.Has("limit") {
		if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 && limit < len(items) {
			items = items[:limit]
		}
		h.writeJSON(w, r, http.StatusOK, items)
		return
	}

	resp := ListResponse{Items: items, Pagination: pagination.Describe(len(items), 1, pagination.DefaultPageSize)}
	if pageRaw != "" {
		resp.Items, resp.Pagination = pagination.Paginate(items, page, pagination.DefaultPageSize)
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// GetTopChannels aggregates video items per channel over the last days
// (default 30).
func (h *Handler) GetTopChannels(w http.ResponseWriter, r *http.Request) {
	items, ok := h.windowItems(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, analytics.TopChannels(items))
}

// GetLayoffStats summarizes layoff coverage over the last days (default 30).
func (h *Handler) GetLayoffStats(w http.ResponseWriter, r *http.Request) {
	items, ok := h.windowItems(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, analytics.LayoffStats(items, h.now()))
}

func (h *Handler) windowItems(w http.ResponseWriter, r *http.Request) ([]models.FeedItem, bool) {
	days, err := parseDays(r.URL.Query().Get("days"), defaultStatsDays)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}

	items, err := h.store.List(r.Context(), h.since(days))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int("days", days).Msg("Failed to list items")
		h.writeError(w, r, http.StatusInternalServerError, "failed to list items", err)
		return nil, false
	}
	return items, true
}

func (h *Handler) since(days int) time.Time {
	return h.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

// parseDays reads a positive day count; empty means def.
func parseDays(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return 0, fmt.Errorf("invalid days parameter %q: must be a positive integer", raw)
	}
	return days, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
		return
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}

// writeError sends {error, details?}. Details carry the error's stack trace
// and are left out in production.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	body := errorResponse{Error: msg}
	if err != nil && !h.production {
		body.Details = fmt.Sprintf("%+v", err)
	}
	h.writeJSON(w, r, status, body)
}
