package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpulse/internal/model"
)

type fakeSource struct {
	content    []model.ContentItem
	engagement []model.EngagementSnapshot
	err        error
}

func (f fakeSource) ListContent(context.Context, string) ([]model.ContentItem, error) {
	return f.content, f.err
}

func (f fakeSource) ListSnapshots(context.Context, string) ([]model.EngagementSnapshot, error) {
	return f.engagement, nil
}

var base = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func TestLookupNormalizes(t *testing.T) {
	l := New(model.Owner{ID: "u1"})
	l.AddContent(model.ContentItem{ID: "c1", URL: "https://youtube.com/watch?v=abc"})

	id, ok := l.Lookup("https://youtube.com/watch?v=abc&utm_source=x#t=10")
	require.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok = l.Lookup("https://youtube.com/watch?v=ABC")
	assert.False(t, ok)
}

func TestRemoveContentCascades(t *testing.T) {
	l := New(model.Owner{ID: "u1"})
	l.AddContent(model.ContentItem{ID: "c1", URL: "https://a.example/1"})
	l.AddContent(model.ContentItem{ID: "c2", URL: "https://a.example/2"})
	l.AddSnapshot(model.EngagementSnapshot{ID: "e1", ContentID: "c1", CapturedAt: base})
	l.AddSnapshot(model.EngagementSnapshot{ID: "e2", ContentID: "c2", CapturedAt: base})

	require.NoError(t, l.RemoveContent("c1"))
	assert.Len(t, l.Content(), 1)
	assert.Equal(t, []model.EngagementSnapshot{{ID: "e2", ContentID: "c2", CapturedAt: base}}, l.Engagement())
	_, ok := l.Lookup("https://a.example/1")
	assert.False(t, ok)

	assert.ErrorIs(t, l.RemoveContent("c1"), model.ErrNotFound)
}

func TestSnapshotsForAndLatest(t *testing.T) {
	l := New(model.Owner{ID: "u1"})
	l.AddSnapshot(model.EngagementSnapshot{ID: "late", ContentID: "c1", Views: 30, CapturedAt: base.Add(2 * time.Hour)})
	l.AddSnapshot(model.EngagementSnapshot{ID: "early", ContentID: "c1", Views: 10, CapturedAt: base})
	l.AddSnapshot(model.EngagementSnapshot{ID: "other", ContentID: "c2", CapturedAt: base.Add(5 * time.Hour)})

	hist := l.SnapshotsFor("c1")
	require.Len(t, hist, 2)
	assert.Equal(t, "early", hist[0].ID)

	latest, ok := l.LatestFor("c1")
	require.True(t, ok)
	assert.Equal(t, int64(30), latest.Views)

	_, ok = l.LatestFor("missing")
	assert.False(t, ok)
}

func TestLoadAndReset(t *testing.T) {
	src := fakeSource{
		content:    []model.ContentItem{{ID: "c1", URL: "https://reddit.com/r/go/comments/x1"}},
		engagement: []model.EngagementSnapshot{{ID: "e1", ContentID: "c1", CapturedAt: base}},
	}
	l, err := Load(context.Background(), src, model.Owner{ID: "u1"})
	require.NoError(t, err)
	_, ok := l.Lookup("https://reddit.com/r/go/comments/x1")
	assert.True(t, ok)
	assert.Len(t, l.Engagement(), 1)

	l.Reset()
	assert.Empty(t, l.Content())
	assert.Empty(t, l.Engagement())
	_, ok = l.Lookup("https://reddit.com/r/go/comments/x1")
	assert.False(t, ok)
}

func TestLoadSurfacesStoreError(t *testing.T) {
	_, err := Load(context.Background(), fakeSource{err: errors.New("down")}, model.Owner{ID: "u1"})
	assert.ErrorContains(t, err, "down")
}

func TestFirstItemWinsIndex(t *testing.T) {
	l := New(model.Owner{ID: "u1"})
	l.AddContent(model.ContentItem{ID: "first", URL: "https://a.example/p?utm_term=1"})
	l.AddContent(model.ContentItem{ID: "second", URL: "https://a.example/p"})
	id, _ := l.Lookup("https://a.example/p")
	assert.Equal(t, "first", id)
}
