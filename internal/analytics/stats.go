package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"layofflens/aggregator/internal/models"
)

const (
	topCompanyLimit = 10
	layoffTag       = "Layoffs"
	noSector        = "N/A"
	week            = 7 * 24 * time.Hour
)

// StatsSummary compares the trailing seven days with the seven before.
type StatsSummary struct {
	TotalArticlesThisWeek int    `json:"totalArticlesThisWeek"`
	TotalArticlesLastWeek int    `json:"totalArticlesLastWeek"`
	PercentChange         int    `json:"percentChange"`
	TopSector             string `json:"topSector"`
	TodayCount            int    `json:"todayCount"`
}

// WeekCount is the number of layoff items in one ISO week, e.g. "2024-W46".
type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

type SectorCount struct {
	Sector string `json:"sector"`
	Count  int    `json:"count"`
}

type CompanyCount struct {
	Company string `json:"company"`
	Count   int    `json:"count"`
}

// LayoffStatsReport is the GetLayoffStats response body.
type LayoffStatsReport struct {
	Summary      StatsSummary   `json:"summary"`
	ByWeek       []WeekCount    `json:"byWeek"`
	BySector     []SectorCount  `json:"bySector"`
	TopCompanies []CompanyCount `json:"topCompanies"`
}

// LayoffStats summarizes the layoff-tagged items among items as of now.
func LayoffStats(items []models.FeedItem, now time.Time) LayoffStatsReport {
	now = now.UTC()
	today := now.Truncate(24 * time.Hour)

	report := LayoffStatsReport{
		ByWeek:       []WeekCount{},
		BySector:     []SectorCount{},
		TopCompanies: []CompanyCount{},
	}
	weeks := make(map[string]int)
	sectors := make(map[string]int)
	companies := make(map[string]int)

	for i := range items {
		it := &items[i]
		if !it.HasTag(layoffTag) || it.Date.IsZero() {
			continue
		}

		age := now.Sub(it.Date)
		switch {
		case age < week:
			report.Summary.TotalArticlesThisWeek++
		case age < 2*week:
			report.Summary.TotalArticlesLastWeek++
		}
		if !it.Date.Before(today) {
			report.Summary.TodayCount++
		}

		weeks[isoWeek(it.Date)]++
		if it.Sector != "" {
			sectors[it.Sector]++
		}
		if it.CompanyName != "" {
			companies[it.CompanyName]++
		}
	}

	report.Summary.PercentChange = percentChange(report.Summary.TotalArticlesThisWeek, report.Summary.TotalArticlesLastWeek)

	for w, n := range weeks {
		report.ByWeek = append(report.ByWeek, WeekCount{Week: w, Count: n})
	}
	sort.Slice(report.ByWeek, func(i, j int) bool { return report.ByWeek[i].Week < report.ByWeek[j].Week })

	for s, n := range sectors {
		report.BySector = append(report.BySector, SectorCount{Sector: s, Count: n})
	}
	sort.Slice(report.BySector, func(i, j int) bool {
		a, b := report.BySector[i], report.BySector[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Sector < b.Sector
	})
	report.Summary.TopSector = noSector
	if len(report.BySector) > 0 {
		report.Summary.TopSector = report.BySector[0].Sector
	}

	for c, n := range companies {
		report.TopCompanies = append(report.TopCompanies, CompanyCount{Company: c, Count: n})
	}
	sort.Slice(report.TopCompanies, func(i, j int) bool {
		a, b := report.TopCompanies[i], report.TopCompanies[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Company < b.Company
	})
	if len(report.TopCompanies) > topCompanyLimit {
		report.TopCompanies = report.TopCompanies[:topCompanyLimit]
	}

	return report
}

func percentChange(current, previous int) int {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return int(math.Round(float64(current-previous) / float64(previous) * 100))
}

func isoWeek(t time.Time) string {
	year, wk := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, wk)
}
