// Package queries holds the topical search queries issued on every ingestion run.
package queries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Set is the query list for each search endpoint.
type Set struct {
	News   []string
	Videos []string
}

// Defaults returns the built-in query lists.
func Defaults() Set {
	return Set{
		News: []string{
			"tech layoffs OR job cuts",
			"AI layoffs OR automation job losses",
			"unemployment rate BLS",
			"finance layoffs OR banking job cuts",
			"healthcare layoffs OR hospital job cuts",
			"retail layoffs OR store closures",
		},
		Videos: []string{
			"tech layoffs analysis site:youtube.com",
			"resume writing tips site:youtube.com",
			"ATS resume tips site:youtube.com",
			"job interview tips site:youtube.com",
			"how to interview site:youtube.com",
			"career advice layoffs site:youtube.com",
			"resume tips recruiter site:youtube.com",
		},
	}
}

// Load reads queries from a CSV file with a "kind,query" header, where kind is
// "news" or "video". An empty path yields Defaults.
func Load(path string) (Set, error) {
	if path == "" {
		return Defaults(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to open queries file: %w", err)
	}
	defer f.Close()

	set, err := Parse(f)
	if err != nil {
		return Set{}, fmt.Errorf("failed to parse queries file %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("news_queries", len(set.News)).
		Int("video_queries", len(set.Videos)).
		Msg("Loaded search queries")

	return set, nil
}

// Parse reads the CSV form described in Load.
func Parse(r io.Reader) (Set, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Set{}, fmt.Errorf("failed to read header: %w", err)
	}

	kindIdx, queryIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "kind":
			kindIdx = i
		case "query":
			queryIdx = i
		}
	}
	if kindIdx < 0 || queryIdx < 0 {
		return Set{}, errors.New("header must contain 'kind' and 'query' columns")
	}

	var set Set
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return Set{}, fmt.Errorf("line %d: %w", line, err)
		}
		if kindIdx >= len(record) || queryIdx >= len(record) {
			log.Warn().Int("line", line).Msg("Skipping short query record")
			continue
		}

		query := strings.TrimSpace(record[queryIdx])
		if query == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(record[kindIdx])) {
		case "news":
			set.News = append(set.News, query)
		case "video", "videos":
			set.Videos = append(set.Videos, query)
		default:
			log.Warn().Int("line", line).Str("kind", record[kindIdx]).Msg("Skipping query with unknown kind")
		}
	}

	if len(set.News) == 0 && len(set.Videos) == 0 {
		return Set{}, errors.New("no queries found")
	}
	return set, nil
}
