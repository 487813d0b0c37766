// Package contentid derives a platform-specific content identifier from a
// content URL. Every platform tries its URL shapes in a fixed priority order;
// when none matches, a deterministic identifier is derived from the
// normalized URL so repeated extraction always yields the same value.
package contentid

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"contentpulse/internal/model"
	"contentpulse/internal/urlnorm"
)

const (
	// FallbackPrefix marks identifiers derived from the URL hash.
	FallbackPrefix = "url-"
	fallbackHexLen = 16

	youtubeShortHost = "youtu.be"

	// slackSeparator joins the channel and message timestamp of a chat permalink.
	slackSeparator = ":"
)

var (
	linkedInActivity = regexp.MustCompile(`activity[-:](\d+)`)
	slackMessageTS   = regexp.MustCompile(`^p(\d{10})(\d{6})$`)
)

// ServiceNow knowledge-base query parameters carrying the article id.
var kbArticleParams = []string{"sysparm_article", "sys_kb_id", "kb_article"}

// Extract returns the platform content id for rawURL. It never fails: URLs
// that cannot be parsed, unknown platforms and URLs matching none of the
// platform's shapes all produce Fallback(rawURL).
func Extract(rawURL string, platform model.Platform) string {
	u, ok := urlnorm.Parse(rawURL)
	if !ok {
		return Fallback(rawURL)
	}
	var id string
	switch platform {
	case model.PlatformYouTube:
		id = youtubeID(u)
	case model.PlatformLinkedIn:
		id = linkedInID(u)
	case model.PlatformTwitter:
		id = segmentAfter(u.Path, "status")
	case model.PlatformReddit:
		id = segmentAfter(u.Path, "comments")
	case model.PlatformServiceNow:
		id = serviceNowID(u)
	case model.PlatformSlack:
		id = slackID(u)
	}
	if id == "" {
		return Fallback(rawURL)
	}
	return id
}

// Fallback derives an opaque identifier from the normalized form of rawURL.
func Fallback(rawURL string) string {
	sum := sha256.Sum256([]byte(urlnorm.Normalize(rawURL)))
	return FallbackPrefix + hex.EncodeToString(sum[:])[:fallbackHexLen]
}

// IsFallback reports whether id was produced by Fallback.
func IsFallback(id string) bool {
	return strings.HasPrefix(id, FallbackPrefix) && len(id) == len(FallbackPrefix)+fallbackHexLen
}

func youtubeID(u *url.URL) string {
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if strings.EqualFold(u.Hostname(), youtubeShortHost) {
		return strings.Trim(u.Path, "/")
	}
	if id := segmentAfter(u.Path, "embed"); id != "" {
		return id
	}
	if id := segmentAfter(u.Path, "v"); id != "" {
		return id
	}
	return lastSegment(u.Path)
}

func linkedInID(u *url.URL) string {
	if strings.Contains(u.Path, "/posts/") {
		if m := linkedInActivity.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	}
	if id := segmentAfter(u.Path, "pulse"); id != "" {
		return id
	}
	return lastSegment(u.Path)
}

func serviceNowID(u *url.URL) string {
	q := u.Query()
	for _, key := range kbArticleParams {
		if v := q.Get(key); v != "" {
			return v
		}
	}
	return lastSegment(u.Path)
}

// slackID handles archive permalinks: /archives/<channel>/p<seconds><micros>.
func slackID(u *url.URL) string {
	channel := segmentAfter(u.Path, "archives")
	if channel == "" {
		return ""
	}
	msg := segmentAfter(u.Path, channel)
	m := slackMessageTS.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	return channel + slackSeparator + m[1] + "." + m[2]
}

// segmentAfter returns the path segment following the first segment equal to name.
func segmentAfter(p, name string) string {
	segs := strings.Split(p, "/")
	for i := 0; i < len(segs)-1; i++ {
		if segs[i] == name {
			return segs[i+1]
		}
	}
	return ""
}

// lastSegment returns the last non-empty path segment.
func lastSegment(p string) string {
	segs := strings.Split(strings.TrimRight(p, "/"), "/")
	return segs[len(segs)-1]
}
