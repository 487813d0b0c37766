package model

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Platform is the wire tag of a publishing platform.
type Platform string

const (
	PlatformYouTube    Platform = "youtube"    // video
	PlatformServiceNow Platform = "servicenow" // enterprise blog
	PlatformLinkedIn   Platform = "linkedin"   // professional network
	PlatformReddit     Platform = "reddit"     // forum
	PlatformTwitter    Platform = "twitter"    // microblog
	PlatformSlack      Platform = "slack"      // chat
)

var (
	// ErrUnknownPlatform is returned by ParsePlatform for unrecognised tags.
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrNotFound is returned by stores and the library for missing records.
	ErrNotFound = errors.New("not found")
)

var platformAliases = map[string]Platform{
	"youtube":    PlatformYouTube,
	"video":      PlatformYouTube,
	"servicenow": PlatformServiceNow,
	"blog":       PlatformServiceNow,
	"linkedin":   PlatformLinkedIn,
	"network":    PlatformLinkedIn,
	"reddit":     PlatformReddit,
	"forum":      PlatformReddit,
	"twitter":    PlatformTwitter,
	"x":          PlatformTwitter,
	"microblog":  PlatformTwitter,
	"slack":      PlatformSlack,
	"chat":       PlatformSlack,
}

// Platforms lists every supported platform in display order.
func Platforms() []Platform {
	return []Platform{PlatformYouTube, PlatformServiceNow, PlatformLinkedIn, PlatformReddit, PlatformTwitter, PlatformSlack}
}

// ParsePlatform accepts a platform tag or its class name (video, blog, ...).
func ParsePlatform(s string) (Platform, error) {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return "", ErrUnknownPlatform
}

// ContentItem is one piece of published content tracked for an owner.
type ContentItem struct {
	ID                string    `json:"id" db:"id"`
	Owner             string    `json:"owner" db:"owner_id"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description,omitempty" db:"description"`
	Platform          Platform  `json:"platform" db:"platform"`
	URL               string    `json:"url" db:"url"`
	PlatformContentID string    `json:"platformContentId" db:"platform_content_id"`
	PublishedAt       time.Time `json:"publishedAt" db:"published_at"`
	Duration          string    `json:"duration,omitempty" db:"duration"` // video only
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}

// EngagementSnapshot is a point-in-time measurement of a content item's metrics.
type EngagementSnapshot struct {
	ID         string    `json:"id" db:"id"`
	ContentID  string    `json:"contentId" db:"content_id"`
	Views      int64     `json:"views" db:"views"`
	Likes      int64     `json:"likes" db:"likes"`
	Comments   int64     `json:"comments" db:"comments"`
	Shares     int64     `json:"shares" db:"shares"`
	WatchTime  float64   `json:"watchTime" db:"watch_time"` // hours
	CapturedAt time.Time `json:"capturedAt" db:"captured_at"`
}

// RawMetrics is what every platform collector returns.
type RawMetrics struct {
	Views          int64
	Likes          int64
	Comments       int64
	Shares         int64
	WatchTimeHours float64
}

// Snapshot turns fetched metrics into a snapshot for contentID at capturedAt.
func (m RawMetrics) Snapshot(contentID string, capturedAt time.Time) EngagementSnapshot {
	return EngagementSnapshot{
		ContentID:  contentID,
		Views:      m.Views,
		Likes:      m.Likes,
		Comments:   m.Comments,
		Shares:     m.Shares,
		WatchTime:  m.WatchTimeHours,
		CapturedAt: capturedAt,
	}
}

// ContentInfo is metadata looked up from a platform when adding content.
type ContentInfo struct {
	Title       string
	PublishedAt time.Time
	Duration    string
}

// Owner is the session user.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Credentials holds per-platform API configuration blobs for one owner.
type Credentials map[Platform]map[string]string

// Get returns the value of key for platform p, or "".
func (c Credentials) Get(p Platform, key string) string {
	if c == nil {
		return ""
	}
	return c[p][key]
}

// Merge copies every non-empty value of other into c key by key.
// Platforms whose blob is empty are ignored. It returns the platforms that changed.
func (c Credentials) Merge(other Credentials) []Platform {
	var changed []Platform
	for p, blob := range other {
		if len(blob) == 0 {
			continue
		}
		dirty := false
		for k, v := range blob {
			if v == "" {
				continue
			}
			if c[p] == nil {
				c[p] = make(map[string]string)
			}
			if c[p][k] != v {
				c[p][k] = v
				dirty = true
			}
		}
		if dirty {
			changed = append(changed, p)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	return changed
}
