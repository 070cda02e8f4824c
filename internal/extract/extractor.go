// Package extract pulls structured layoff facts out of headlines with a language model.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"layofflens/aggregator/internal/models"
)

const systemPrompt = "You are a data extraction assistant. Return only valid JSON."

// LayoffData holds the fields the model could confidently extract.
type LayoffData struct {
	CompanyName string `json:"companyName,omitempty"`
	LayoffCount int    `json:"layoffCount,omitempty"`
	Sector      string `json:"sector,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (d LayoffData) IsEmpty() bool {
	return d.CompanyName == "" && d.LayoffCount == 0 && d.Sector == ""
}

// Completer sends a prompt to a language model and returns its text answer.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Extractor turns a title and snippet into LayoffData.
type Extractor struct {
	completer Completer
}

// NewExtractor creates an extractor. With a nil completer every extraction is empty.
func NewExtractor(c Completer) *Extractor {
	return &Extractor{completer: c}
}

// Extract asks the model about one article. It never fails: any transport,
// parse or validation problem yields an empty (or partial) result.
func (e *Extractor) Extract(ctx context.Context, title, snippet string) LayoffData {
	if e == nil || e.completer == nil {
		return LayoffData{}
	}

	answer, err := e.completer.Complete(ctx, systemPrompt, BuildPrompt(title, snippet))
	if err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Layoff extraction request failed")
		return LayoffData{}
	}

	data, err := ParseResponse(answer)
	if err != nil {
		log.Warn().Err(err).Str("title", title).Msg("Layoff extraction response unusable")
		return LayoffData{}
	}
	return data
}

// BuildPrompt renders the extraction instructions for one article.
func BuildPrompt(title, snippet string) string {
	var b strings.Builder
	b.WriteString("Analyze this news article and extract layoff information. Return ONLY a JSON object with these fields:\n")
	b.WriteString("- companyName: The company name if mentioned (null if not a specific company layoff)\n")
	b.WriteString("- layoffCount: Number of employees laid off as an integer (null if not specified)\n")
	fmt.Fprintf(&b, "- sector: Industry sector from this list: %s (null if unclear)\n\n", strings.Join(models.Sectors, ", "))
	b.WriteString("Article:\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Snippet: %s\n\n", snippet)
	b.WriteString("Rules:\n")
	b.WriteString("- Only extract if the article is ACTUALLY about layoffs/job cuts\n")
	b.WriteString("- If it's general job market news or tips, return all nulls\n")
	b.WriteString("- Be conservative with layoffCount - only include if a specific number is mentioned\n")
	b.WriteString("- Use null for any field you're not confident about\n\n")
	b.WriteString("Return only valid JSON, no explanation.")
	return b.String()
}

var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")
)

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseResponse decodes the model's answer and keeps only valid fields:
// non-empty strings for companyName and sector, a positive number for
// layoffCount (truncated to an integer).
func ParseResponse(answer string) (LayoffData, error) {
	body := StripCodeFence(answer)
	if body == "" {
		return LayoffData{}, fmt.Errorf("empty response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return LayoffData{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var data LayoffData
	if s, ok := raw["companyName"].(string); ok && strings.TrimSpace(s) != "" {
		data.CompanyName = strings.TrimSpace(s)
	}
	if n, ok := raw["layoffCount"].(float64); ok && n >= 1 && n <= math.MaxInt32 {
		data.LayoffCount = int(math.Trunc(n))
	}
	if s, ok := raw["sector"].(string); ok && strings.TrimSpace(s) != "" {
		data.Sector = strings.TrimSpace(s)
	}
	return data, nil
}
