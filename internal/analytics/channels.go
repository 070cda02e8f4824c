// Package analytics aggregates stored items for the dashboard's read
// endpoints.
package analytics

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"layofflens/aggregator/internal/models"
)

const topChannelLimit = 10

// ChannelStats aggregates the videos of one channel. Durations are seconds.
type ChannelStats struct {
	Channel       string  `json:"channel"`
	VideoCount    int     `json:"videoCount"`
	TotalDuration int     `json:"totalDuration"`
	AvgDuration   int     `json:"avgDuration"`
	AvgPosition   float64 `json:"avgPosition"`
}

// ChannelSummary counts videos and channels across the whole window, while
// TotalWatchTime only sums the channels returned.
type ChannelSummary struct {
	TotalVideos    int `json:"totalVideos"`
	TotalChannels  int `json:"totalChannels"`
	TotalWatchTime int `json:"totalWatchTime"`
}

// TopChannelsReport is the GetTopChannels response body.
type TopChannelsReport struct {
	Channels []ChannelStats `json:"channels"`
	Summary  ChannelSummary `json:"summary"`
}

type channelAcc struct {
	count         int
	totalDuration int
	totalPosition int
	positions     int
}

// TopChannels ranks channels by video count, ties broken by name, keeping the
// top ten. Only video items with a channel are counted.
func TopChannels(items []models.FeedItem) TopChannelsReport {
	byChannel := make(map[string]*channelAcc)
	var report TopChannelsReport

	for i := range items {
		it := &items[i]
		if it.Type != models.TypeVideo || !validChannel(it.Channel) {
			continue
		}
		acc, ok := byChannel[it.Channel]
		if !ok {
			acc = &channelAcc{}
			byChannel[it.Channel] = acc
		}
		acc.count++
		secs := DurationToSeconds(it.Duration)
		acc.totalDuration += secs
		if it.Position > 0 {
			acc.totalPosition += it.Position
			acc.positions++
		}

		report.Summary.TotalVideos++
	}
	report.Summary.TotalChannels = len(byChannel)

	channels := make([]ChannelStats, 0, len(byChannel))
	for name, acc := range byChannel {
		cs := ChannelStats{
			Channel:       name,
			VideoCount:    acc.count,
			TotalDuration: acc.totalDuration,
			AvgDuration:   int(math.Round(float64(acc.totalDuration) / float64(acc.count))),
		}
		if acc.positions > 0 {
			cs.AvgPosition = math.Round(float64(acc.totalPosition)/float64(acc.positions)*10) / 10
		}
		channels = append(channels, cs)
	}

	sort.Slice(channels, func(i, j int) bool {
		if channels[i].VideoCount != channels[j].VideoCount {
			return channels[i].VideoCount > channels[j].VideoCount
		}
		return channels[i].Channel < channels[j].Channel
	})
	if len(channels) > topChannelLimit {
		channels = channels[:topChannelLimit]
	}
	for _, cs := range channels {
		report.Summary.TotalWatchTime += cs.TotalDuration
	}
	report.Channels = channels
	return report
}

func validChannel(ch string) bool {
	return ch != "" && ch != "null" && ch != "undefined"
}

// DurationToSeconds parses "MM:SS" or "HH:MM:SS". Anything else is 0.
func DurationToSeconds(d string) int {
	parts := strings.Split(strings.TrimSpace(d), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}

	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
