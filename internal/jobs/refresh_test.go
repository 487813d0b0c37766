package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpulse/internal/library"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
	"contentpulse/internal/store/sqlite"
)

type fakeFetcher struct {
	calls int32
	fail  map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, item model.ContentItem) (model.RawMetrics, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail[item.ID] {
		return model.RawMetrics{}, errors.New("api down")
	}
	return model.RawMetrics{Views: 10, Likes: 1}, nil
}

func newRec(t *testing.T, n int) *reconcile.Reconciler {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	lib := library.New(model.Owner{ID: "me"})
	base := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	clock := func() time.Time { i++; return base.Add(time.Duration(i) * time.Hour) }
	rec := reconcile.New(st, lib, reconcile.WithClock(clock))
	for k := 0; k < n; k++ {
		_, err := rec.AddContent(context.Background(), model.ContentItem{
			Name: fmt.Sprintf("v%d", k), Platform: model.PlatformYouTube,
			URL: fmt.Sprintf("https://youtube.com/watch?v=v%d", k),
		})
		require.NoError(t, err)
	}
	return rec
}

func TestSelectRecent(t *testing.T) {
	base := time.Now()
	items := []model.ContentItem{
		{ID: "old", CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "new", CreatedAt: base},
		{ID: "mid", CreatedAt: base.Add(-time.Hour)},
	}
	got := SelectRecent(items, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Len(t, SelectRecent(items, 0), 3)
	assert.Equal(t, "old", items[0].ID)
}

func TestRunRefreshOnce(t *testing.T) {
	rec := newRec(t, 3)
	content := rec.Library().Content()
	f := &fakeFetcher{fail: map[string]bool{content[2].ID: true}}

	res, err := RunRefreshOnce(context.Background(), rec, f, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.calls)
	assert.Len(t, res.Added, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "fetch", res.Failures[0].Kind)
	assert.Equal(t, content[2].ID, res.Failures[0].ID)
	assert.Len(t, rec.Library().Engagement(), 2)
}

func TestRunRefreshOnceHonoursLimit(t *testing.T) {
	rec := newRec(t, 4)
	f := &fakeFetcher{}
	res, err := RunRefreshOnce(context.Background(), rec, f, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls)
	assert.Len(t, res.Added, 2)
}

func TestRunRefreshOnceCancelled(t *testing.T) {
	rec := newRec(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunRefreshOnce(ctx, rec, &fakeFetcher{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Library().Engagement())
}

func TestRunRefreshLoopStopsOnCancel(t *testing.T) {
	rec := newRec(t, 1)
	f := &fakeFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var mu sync.Mutex
	go func() { done <- RunRefreshLoop(ctx, rec, f, 0, 10*time.Millisecond, &mu) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&f.calls) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

type countingLocker struct {
	sync.Mutex
	locks int
}

func (c *countingLocker) Lock() { c.Mutex.Lock(); c.locks++ }

func TestRunRefreshGuardedTakesLock(t *testing.T) {
	rec := newRec(t, 2)
	mu := &countingLocker{}
	res, err := RunRefreshGuarded(context.Background(), rec, &fakeFetcher{}, 0, mu)
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	assert.Equal(t, 2, mu.locks)
}
