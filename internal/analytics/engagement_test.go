package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpulse/internal/model"
)

var base = time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)

func fixture() ([]model.ContentItem, []model.EngagementSnapshot) {
	content := []model.ContentItem{
		{ID: "yt1", Platform: model.PlatformYouTube},
		{ID: "yt2", Platform: model.PlatformYouTube},
		{ID: "li1", Platform: model.PlatformLinkedIn},
		{ID: "rd1", Platform: model.PlatformReddit},
	}
	snaps := []model.EngagementSnapshot{
		{ContentID: "yt1", Views: 100, CapturedAt: base},
		{ContentID: "yt1", Views: 150, CapturedAt: base.Add(2 * time.Hour)},
		{ContentID: "yt2", Views: 50, CapturedAt: base.Add(time.Hour)},
		{ContentID: "li1", Views: 400, CapturedAt: base.Add(90 * time.Minute)},
		{ContentID: "deleted", Views: 9999, CapturedAt: base},
	}
	return content, snaps
}

func TestSummarize(t *testing.T) {
	content, snaps := fixture()
	s := Summarize(content, snaps)
	assert.Equal(t, 4, s.TotalContent)
	assert.Equal(t, int64(600), s.TotalViews)
	assert.Equal(t, int64(200), s.ViewsByPlatform[model.PlatformYouTube])
	assert.Equal(t, 2, s.ContentByPlatform[model.PlatformYouTube])
	assert.Equal(t, model.PlatformLinkedIn, s.TopPlatform)
	_, ok := s.ViewsByPlatform[model.PlatformReddit]
	assert.False(t, ok)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Equal(t, 0, s.TotalContent)
	assert.Equal(t, model.Platform(""), s.TopPlatform)
}

func TestTopContentAndHistory(t *testing.T) {
	content, snaps := fixture()
	top := TopContent(content, snaps, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "li1", top[0].Item.ID)
	assert.Equal(t, "yt1", top[1].Item.ID)
	assert.Equal(t, int64(150), top[1].Latest.Views)

	h := History(snaps, "yt1")
	require.Len(t, h, 2)
	assert.True(t, h[0].CapturedAt.Before(h[1].CapturedAt))
}

func TestHourlyCaptures(t *testing.T) {
	content, snaps := fixture()
	b := HourlyCaptures(content, snaps)
	keys := SortedBucketKeys(b)
	require.Len(t, keys, 3)
	assert.Equal(t, base, keys[0])
	assert.Equal(t, 1, b[base][model.PlatformYouTube])
	assert.Equal(t, 1, b[base.Add(time.Hour)][model.PlatformLinkedIn])
	assert.Equal(t, 1, b[base.Add(time.Hour)][model.PlatformYouTube])
}

func TestFormatWatchTime(t *testing.T) {
	assert.Equal(t, "0h", FormatWatchTime(0))
	assert.Equal(t, "1h 30m", FormatWatchTime(1.5))
	assert.Equal(t, "0h 15m", FormatWatchTime(0.25))
	assert.Equal(t, "12h 0m", FormatWatchTime(12))
}
