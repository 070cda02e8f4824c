package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layofflens/aggregator/internal/models"
)

func video(channel, duration string, position int) models.FeedItem {
	return models.FeedItem{Type: models.TypeVideo, Channel: channel, Duration: duration, Position: position}
}

func TestDurationToSeconds(t *testing.T) {
	assert.Equal(t, 515, DurationToSeconds("8:35"))
	assert.Equal(t, 3735, DurationToSeconds("1:02:15"))
	assert.Equal(t, 0, DurationToSeconds(""))
	assert.Equal(t, 0, DurationToSeconds("45"))
	assert.Equal(t, 0, DurationToSeconds("1:2:3:4"))
	assert.Equal(t, 0, DurationToSeconds("ab:cd"))
}

func TestTopChannels(t *testing.T) {
	items := []models.FeedItem{
		video("CNBC", "10:00", 1),
		video("CNBC", "5:00", 2),
		video("CNBC", "", 4),
		video("Bloomberg", "1:00:00", 3),
		video("null", "1:00", 1),
		video("", "1:00", 1),
		{Type: models.TypeNews, Channel: "CNBC", Duration: "9:00"},
	}

	report := TopChannels(items)
	require.Len(t, report.Channels, 2)

	cnbc := report.Channels[0]
	assert.Equal(t, "CNBC", cnbc.Channel)
	assert.Equal(t, 3, cnbc.VideoCount)
	assert.Equal(t, 900, cnbc.TotalDuration)
	assert.Equal(t, 300, cnbc.AvgDuration)
	assert.Equal(t, 2.3, cnbc.AvgPosition)

	assert.Equal(t, "Bloomberg", report.Channels[1].Channel)
	assert.Equal(t, ChannelSummary{TotalVideos: 4, TotalChannels: 2, TotalWatchTime: 4500}, report.Summary)
}

func TestTopChannels_LimitAndTies(t *testing.T) {
	var items []models.FeedItem
	for i := 0; i < 12; i++ {
		items = append(items, video(fmt.Sprintf("ch%02d", i), "1:00", 0))
	}
	items = append(items, video("ch11", "1:00", 0))

	report := TopChannels(items)
	require.Len(t, report.Channels, 10)
	assert.Equal(t, "ch11", report.Channels[0].Channel)
	assert.Equal(t, "ch00", report.Channels[1].Channel)
	assert.Equal(t, 0.0, report.Channels[1].AvgPosition)
	assert.Equal(t, 12, report.Summary.TotalChannels)
	assert.Equal(t, 13, report.Summary.TotalVideos)
	assert.Equal(t, 11*60, report.Summary.TotalWatchTime, "watch time covers only the ten channels returned")
}

func TestTopChannels_Empty(t *testing.T) {
	report := TopChannels(nil)
	assert.NotNil(t, report.Channels)
	assert.Empty(t, report.Channels)
}
