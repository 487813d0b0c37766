// Package archive reads and writes the JSON library export file.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"contentpulse/internal/library"
	"contentpulse/internal/model"
)

// Version is written into every export.
const Version = "1.0"

const dateLayout = "2006-01-02"

// ErrInvalidArchive is returned when a file is not a usable export.
var ErrInvalidArchive = errors.New("invalid archive")

// Document is the top-level export file.
type Document struct {
	Version    string                       `json:"version"`
	Timestamp  string                       `json:"timestamp"`
	User       User                         `json:"user"`
	Content    []ContentRecord              `json:"content"`
	Engagement []EngagementRecord           `json:"engagement"`
	APIConfig  map[string]map[string]string `json:"apiConfig"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ContentRecord uses the hosted table's column names.
type ContentRecord struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Platform      string `json:"platform"`
	URL           string `json:"url"`
	ContentID     string `json:"content_id"`
	PublishedDate string `json:"published_date"`
	Duration      string `json:"duration"`
	CreatedAt     string `json:"created_at"`
}

type EngagementRecord struct {
	ID        string  `json:"id"`
	ContentID string  `json:"content_id"`
	Views     Count   `json:"views"`
	Likes     Count   `json:"likes"`
	Comments  Count   `json:"comments"`
	Shares    Count   `json:"shares"`
	WatchTime float64 `json:"watch_time"`
	Timestamp string  `json:"timestamp"`
}

// Count is a metric counter that also accepts floats, numeric strings and null.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Count(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("count %q: %w", s, err)
	}
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return fmt.Errorf("count %q: not a finite number", s)
	case f >= math.MaxInt64:
		*c = math.MaxInt64
	case f <= math.MinInt64:
		*c = math.MinInt64
	default:
		*c = Count(int64(f))
	}
	return nil
}

var requiredKeys = []string{"content", "engagement", "user"}

// Decode parses and validates an export file. Any missing or null
// content, engagement or user key rejects the whole file.
func Decode(data []byte) (Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	var missing []string
	for _, k := range requiredKeys {
		raw, ok := top[k]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Document{}, fmt.Errorf("%w: missing %s", ErrInvalidArchive, strings.Join(missing, ", "))
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return doc, nil
}

// Encode renders doc as indented JSON.
func Encode(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// FileName is the suggested download name for an export taken at now.
func FileName(now time.Time) string {
	return "contentpulse-export-" + now.UTC().Format(time.DateOnly) + ".json"
}

// Export serialises the library and credentials at now.
func Export(lib *library.Library, creds model.Credentials, now time.Time) Document {
	owner := lib.Owner()
	doc := Document{
		Version:    Version,
		Timestamp:  now.UTC().Format(time.RFC3339),
		User:       User{ID: owner.ID, Name: owner.Name, Email: owner.Email},
		Content:    []ContentRecord{},
		Engagement: []EngagementRecord{},
		APIConfig:  map[string]map[string]string{},
	}
	for _, it := range lib.Content() {
		doc.Content = append(doc.Content, ContentRecord{
			ID:            it.ID,
			UserID:        it.Owner,
			Name:          it.Name,
			Description:   it.Description,
			Platform:      string(it.Platform),
			URL:           it.URL,
			ContentID:     it.PlatformContentID,
			PublishedDate: formatTime(it.PublishedAt, dateLayout),
			Duration:      it.Duration,
			CreatedAt:     formatTime(it.CreatedAt, time.RFC3339Nano),
		})
	}
	for _, s := range lib.Engagement() {
		doc.Engagement = append(doc.Engagement, EngagementRecord{
			ID:        s.ID,
			ContentID: s.ContentID,
			Views:     Count(s.Views),
			Likes:     Count(s.Likes),
			Comments:  Count(s.Comments),
			Shares:    Count(s.Shares),
			WatchTime: s.WatchTime,
			Timestamp: formatTime(s.CapturedAt, time.RFC3339Nano),
		})
	}
	for p, blob := range creds {
		if len(blob) == 0 {
			continue
		}
		cp := make(map[string]string, len(blob))
		for k, v := range blob {
			cp[k] = v
		}
		doc.APIConfig[string(p)] = cp
	}
	return doc
}

// Owner returns the user recorded in the file.
func (d Document) Owner() model.Owner {
	return model.Owner{ID: d.User.ID, Name: d.User.Name, Email: d.User.Email}
}

// ExportedAt parses the timestamp; zero when absent or malformed.
func (d Document) ExportedAt() time.Time { return parseTime(d.Timestamp) }

// ContentItems converts the content records. Platform tags that do not
// parse are kept verbatim.
func (d Document) ContentItems() []model.ContentItem {
	out := make([]model.ContentItem, 0, len(d.Content))
	for _, r := range d.Content {
		p, err := model.ParsePlatform(r.Platform)
		if err != nil {
			p = model.Platform(r.Platform)
		}
		out = append(out, model.ContentItem{
			ID:                r.ID,
			Owner:             r.UserID,
			Name:              r.Name,
			Description:       r.Description,
			Platform:          p,
			URL:               r.URL,
			PlatformContentID: r.ContentID,
			PublishedAt:       parseTime(r.PublishedDate),
			Duration:          r.Duration,
			CreatedAt:         parseTime(r.CreatedAt),
		})
	}
	return out
}

func (d Document) Snapshots() []model.EngagementSnapshot {
	out := make([]model.EngagementSnapshot, 0, len(d.Engagement))
	for _, r := range d.Engagement {
		out = append(out, model.EngagementSnapshot{
			ID:         r.ID,
			ContentID:  r.ContentID,
			Views:      int64(r.Views),
			Likes:      int64(r.Likes),
			Comments:   int64(r.Comments),
			Shares:     int64(r.Shares),
			WatchTime:  r.WatchTime,
			CapturedAt: parseTime(r.Timestamp),
		})
	}
	return out
}

// Credentials converts apiConfig; unknown platform keys are dropped.
func (d Document) Credentials() model.Credentials {
	out := model.Credentials{}
	for k, blob := range d.APIConfig {
		p, err := model.ParsePlatform(k)
		if err != nil || len(blob) == 0 {
			continue
		}
		out[p] = blob
	}
	return out
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05", dateLayout}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(layout)
}
