package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"layofflens/aggregator/internal/models"
)

var exportHeader = []string{
	"rowKey", "date", "type", "title", "link", "source", "score", "tags",
	"companyName", "layoffCount", "sector", "channel", "duration", "imageUrl",
}

// ExportItems streams stored items as CSV, newest first. An optional days
// parameter limits the export to that window.
func (h *Handler) ExportItems(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Export items request received")

	var since time.Time
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := parseDays(raw, 0)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		since = h.since(days)
	}

	items, err := h.store.List(r.Context(), since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list items for export")
		h.writeError(w, r, http.StatusInternalServerError, "failed to list items", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=layoffitems.csv")

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(exportHeader); err != nil {
		log.Error().Err(err).Msg("Failed to write CSV header")
		http.Error(w, "Error generating CSV", http.StatusInternalServerError)
		return
	}

	for i := range items {
		if err := csvWriter.Write(exportRecord(&items[i])); err != nil {
			log.Error().Err(err).Msg("Failed to write CSV record")
			return
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		log.Error().Err(err).Msg("Error flushing CSV data")
		return
	}

	log.Info().Int("item_count", len(items)).Msg("Exported items as CSV")
}

func exportRecord(item *models.FeedItem) []string {
	count := ""
	if item.LayoffCount > 0 {
		count = strconv.Itoa(item.LayoffCount)
	}
	return []string{
		item.RowKey,
		models.FormatDate(item.Date),
		string(item.Type),
		item.Title,
		item.Link,
		item.Source,
		strconv.FormatFloat(item.Score, 'f', 2, 64),
		strings.Join(item.TagList(), ";"),
		item.CompanyName,
		count,
		item.Sector,
		item.Channel,
		item.Duration,
		item.ImageURL,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error writing health check response")
	}
}
