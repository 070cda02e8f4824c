// Package links derives identities and platform facts from article and video URLs.
package links

import (
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strings"
)

// MaxRowKeyLength caps derived row keys.
const MaxRowKeyLength = 63

// Canonical strips surrounding whitespace and any #fragment from link.
func Canonical(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return link
}

// RowKey returns the storage row key for link. It is URL and filesystem safe
// (base64url without padding) and depends only on the canonical link.
func RowKey(link string) string {
	sum := sha256.Sum256([]byte(Canonical(link)))
	key := base64.RawURLEncoding.EncodeToString(sum[:])
	if len(key) > MaxRowKeyLength {
		key = key[:MaxRowKeyLength]
	}
	return key
}

// Hostname returns the lowercased host of link, or "" when link is not an absolute URL.
func Hostname(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// BareHostname is Hostname without a leading "www.".
func BareHostname(link string) string {
	return strings.TrimPrefix(Hostname(link), "www.")
}

// videoHosts are matched as a suffix of the link's host.
var videoHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"tiktok.com",
	"twitch.tv",
	"dailymotion.com",
	"wistia.com",
	"wistia.net",
	"loom.com",
}

// IsVideoPlatform reports whether link points at a known video-hosting platform.
func IsVideoPlatform(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	for _, h := range videoHosts {
		if hostMatches(host, h) {
			return true
		}
	}

	// LinkedIn only hosts video under its learning catalogue.
	if hostMatches(host, "linkedin.com") && strings.Contains(u.Path, "/learning/") {
		return true
	}

	return false
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// YouTubeID extracts the video identifier from a YouTube watch, short, embed or
// youtu.be link. It returns "" for anything else.
func YouTubeID(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case hostMatches(host, "youtu.be"):
		return firstSegment(u.Path)
	case hostMatches(host, "youtube.com"):
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return firstSegment(strings.TrimPrefix(u.Path, prefix))
			}
		}
	}
	return ""
}

// YouTubeThumbnail returns the high-resolution thumbnail for a YouTube link, or "".
func YouTubeThumbnail(link string) string {
	id := YouTubeID(link)
	if id == "" {
		return ""
	}
	return "https://img.youtube.com/vi/" + url.PathEscape(id) + "/maxresdefault.jpg"
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}
