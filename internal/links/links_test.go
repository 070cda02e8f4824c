package links

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestRowKey_DeterministicAndSafe(t *testing.T) {
	inputs := []string{
		"https://example.com/news/acme-layoffs",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://example.com/" + strings.Repeat("very-long-path/", 50),
		"https://example.com/search?q=a+b&x=%2F",
	}

	for _, link := range inputs {
		key := RowKey(link)
		assert.Equal(t, key, RowKey(link), "row key must be stable for %s", link)
		assert.LessOrEqual(t, len(key), MaxRowKeyLength)
		assert.NotEmpty(t, key)
		assert.Regexp(t, urlSafe, key)
	}
}

func TestRowKey_LongLinksWithSharedPrefixDiffer(t *testing.T) {
	prefix := "https://www.example.com/business/2025/01/15/" + strings.Repeat("x", 80)
	assert.NotEqual(t, RowKey(prefix+"/a"), RowKey(prefix+"/b"))
}

func TestRowKey_IgnoresFragmentAndWhitespace(t *testing.T) {
	assert.Equal(t, RowKey("https://example.com/a"), RowKey("  https://example.com/a#comments \n"))
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "www.reuters.com", Hostname("https://WWW.Reuters.com/world"))
	assert.Equal(t, "reuters.com", BareHostname("https://www.reuters.com/world"))
	assert.Equal(t, "", Hostname("not a url"))
	assert.Equal(t, "", Hostname(""))
}

func TestIsVideoPlatform(t *testing.T) {
	tests := []struct {
		link string
		want bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"https://m.youtube.com/watch?v=abc", true},
		{"https://youtu.be/abc", true},
		{"https://vimeo.com/12345", true},
		{"https://www.tiktok.com/@user/video/1", true},
		{"https://www.twitch.tv/videos/1", true},
		{"https://www.dailymotion.com/video/x1", true},
		{"https://fast.wistia.net/embed/iframe/1", true},
		{"https://www.loom.com/share/1", true},
		{"https://www.linkedin.com/learning/resume-tips", true},
		{"https://www.linkedin.com/pulse/layoffs", false},
		{"https://www.cnbc.com/video/2025/layoffs.html", false},
		{"https://notyoutube.com/watch?v=abc", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVideoPlatform(tt.link))
		})
	}
}

func TestYouTubeThumbnail(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{"https://youtu.be/dQw4w9WgXcQ?t=10", "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg"},
		{"https://www.youtube.com/shorts/abc123", "https://img.youtube.com/vi/abc123/maxresdefault.jpg"},
		{"https://www.youtube.com/channel/UC123", ""},
		{"https://vimeo.com/1", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, YouTubeThumbnail(tt.link), tt.link)
	}
}
