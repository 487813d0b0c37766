package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"contentpulse/internal/model"
)

// Summary is the dashboard headline numbers.
type Summary struct {
	TotalContent int `json:"totalContent"`
	// TotalViews sums the latest snapshot of every item.
	TotalViews        int64                    `json:"totalViews"`
	ViewsByPlatform   map[model.Platform]int64 `json:"viewsByPlatform"`
	ContentByPlatform map[model.Platform]int   `json:"contentByPlatform"`
	TopPlatform       model.Platform           `json:"topPlatform,omitempty"`
}

// Latest returns the most recent snapshot per content id.
func Latest(snapshots []model.EngagementSnapshot) map[string]model.EngagementSnapshot {
	out := make(map[string]model.EngagementSnapshot)
	for _, s := range snapshots {
		if cur, ok := out[s.ContentID]; !ok || cur.CapturedAt.Before(s.CapturedAt) {
			out[s.ContentID] = s
		}
	}
	return out
}

// Summarize aggregates latest views over content. Snapshots of items not in
// content are ignored. Ties for top platform go to the smaller tag.
func Summarize(content []model.ContentItem, snapshots []model.EngagementSnapshot) Summary {
	sum := Summary{
		TotalContent:      len(content),
		ViewsByPlatform:   map[model.Platform]int64{},
		ContentByPlatform: map[model.Platform]int{},
	}
	latest := Latest(snapshots)
	for _, it := range content {
		sum.ContentByPlatform[it.Platform]++
		s, ok := latest[it.ID]
		if !ok {
			continue
		}
		sum.TotalViews += s.Views
		sum.ViewsByPlatform[it.Platform] += s.Views
	}
	var best int64 = -1
	for _, p := range sortedPlatforms(sum.ViewsByPlatform) {
		if v := sum.ViewsByPlatform[p]; v > best {
			best = v
			sum.TopPlatform = p
		}
	}
	return sum
}

func sortedPlatforms(m map[model.Platform]int64) []model.Platform {
	out := make([]model.Platform, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ContentViews pairs an item with its latest snapshot.
type ContentViews struct {
	Item   model.ContentItem        `json:"item"`
	Latest model.EngagementSnapshot `json:"latest"`
}

// TopContent returns up to n items ranked by latest views, highest first.
func TopContent(content []model.ContentItem, snapshots []model.EngagementSnapshot, n int) []ContentViews {
	latest := Latest(snapshots)
	var out []ContentViews
	for _, it := range content {
		if s, ok := latest[it.ID]; ok {
			out = append(out, ContentViews{Item: it, Latest: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Latest.Views > out[j].Latest.Views })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// History returns the snapshots of contentID, oldest first.
func History(snapshots []model.EngagementSnapshot, contentID string) []model.EngagementSnapshot {
	var out []model.EngagementSnapshot
	for _, s := range snapshots {
		if s.ContentID == contentID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out
}

// HourlyCaptures counts snapshots per UTC hour and platform.
func HourlyCaptures(content []model.ContentItem, snapshots []model.EngagementSnapshot) map[time.Time]map[model.Platform]int {
	platform := make(map[string]model.Platform, len(content))
	for _, it := range content {
		platform[it.ID] = it.Platform
	}
	buckets := make(map[time.Time]map[model.Platform]int)
	for _, s := range snapshots {
		p, ok := platform[s.ContentID]
		if !ok {
			continue
		}
		key := s.CapturedAt.UTC().Truncate(time.Hour)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[model.Platform]int)
		}
		buckets[key][p]++
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]map[model.Platform]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// FormatWatchTime renders hours as "Xh Ym"; zero or negative is "0h".
func FormatWatchTime(hours float64) string {
	if hours <= 0 || math.IsNaN(hours) {
		return "0h"
	}
	total := int64(math.Round(hours * 60))
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
