package reconcile

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpulse/internal/archive"
	"contentpulse/internal/model"
)

func urls(items []model.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.URL)
	}
	sort.Strings(out)
	return out
}

func TestImportMergeSkipsNormalizedDuplicate(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	existing := mustAdd(t, r, "https://youtube.com/watch?v=abc", model.PlatformYouTube)
	r.ApplyFetchedSnapshots(context.Background(), []model.ContentItem{existing}, map[string]model.RawMetrics{existing.ID: {Views: 10}})

	in := Incoming{
		Content: []model.ContentItem{
			{ID: "old-1", Name: "Dup", Platform: model.PlatformYouTube, URL: "https://youtube.com/watch?v=abc&utm_source=x"},
		},
		Engagement: []model.EngagementSnapshot{
			{ID: "old-e1", ContentID: "old-1", Views: 99, CapturedAt: t0.Add(-time.Hour)},
		},
	}
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ContentAdded)
	assert.Equal(t, 1, res.ContentSkipped)
	assert.Equal(t, 0, res.EngagementAdded)
	assert.Equal(t, 1, res.EngagementSkipped)

	content := r.Library().Content()
	require.Len(t, content, 1)
	assert.Equal(t, existing.ID, content[0].ID)
	assert.Equal(t, "item", content[0].Name)
	require.Len(t, r.Library().Engagement(), 1)
	assert.Equal(t, existing.ID, r.Library().Engagement()[0].ContentID)
}

func TestImportMergeAddsAndRemaps(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	mustAdd(t, r, "https://youtube.com/watch?v=keep", model.PlatformYouTube)

	in := Incoming{
		Content: []model.ContentItem{
			{ID: "old-1", Owner: "someone-else", Name: "Thread", Platform: model.PlatformReddit, URL: "https://reddit.com/r/go/comments/t1/x"},
		},
		Engagement: []model.EngagementSnapshot{
			{ID: "old-e1", ContentID: "old-1", Views: 5, CapturedAt: t0.Add(-2 * time.Hour)},
			{ID: "old-e2", ContentID: "old-1", Views: 9, CapturedAt: t0.Add(-time.Hour)},
		},
	}
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContentAdded)
	assert.Equal(t, 2, res.EngagementAdded)

	id, ok := r.Library().Lookup("https://reddit.com/r/go/comments/t1/x")
	require.True(t, ok)
	assert.NotEqual(t, "old-1", id)
	added, _ := r.Library().Get(id)
	assert.Equal(t, "me", added.Owner)
	assert.Equal(t, "t1", added.PlatformContentID)
	hist := r.Library().SnapshotsFor(id)
	require.Len(t, hist, 2)
	for _, s := range hist {
		assert.Equal(t, id, s.ContentID)
		assert.NotEqual(t, "old-e1", s.ID)
	}
	assert.Len(t, r.Library().Content(), 2)
}

func TestImportReplaceLeavesOnlyIncoming(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	a := mustAdd(t, r, "https://youtube.com/watch?v=old1", model.PlatformYouTube)
	b := mustAdd(t, r, "https://youtube.com/watch?v=old2", model.PlatformYouTube)
	r.ApplyFetchedSnapshots(context.Background(), []model.ContentItem{a, b}, map[string]model.RawMetrics{a.ID: {Views: 1}, b.ID: {Views: 2}})

	in := Incoming{
		Content: []model.ContentItem{
			{ID: "n1", Name: "New", Platform: model.PlatformYouTube, URL: "https://youtube.com/watch?v=new1"},
			{ID: "n2", Name: "Old again", Platform: model.PlatformYouTube, URL: "https://youtube.com/watch?v=old1"},
		},
		Engagement: []model.EngagementSnapshot{
			{ContentID: "n1", Views: 10, CapturedAt: t0.Add(-time.Hour)},
			{ContentID: "n2", Views: 20, CapturedAt: t0.Add(-time.Hour)},
		},
	}
	res, err := r.ImportLibrary(context.Background(), in, PolicyReplace)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, res.Deleted)
	assert.Equal(t, 2, res.ContentAdded)
	assert.Equal(t, 0, res.ContentSkipped)
	assert.Equal(t, 2, res.EngagementAdded)

	assert.Equal(t, []string{"https://youtube.com/watch?v=new1", "https://youtube.com/watch?v=old1"}, urls(r.Library().Content()))
	for _, it := range r.Library().Content() {
		assert.NotEqual(t, a.ID, it.ID)
		assert.NotEqual(t, b.ID, it.ID)
	}
	eng := r.Library().Engagement()
	require.Len(t, eng, 2)
	var views []int64
	for _, s := range eng {
		views = append(views, s.Views)
	}
	assert.ElementsMatch(t, []int64{10, 20}, views)
	assert.Len(t, st.content, 2)
	assert.Len(t, st.snaps, 2)
}

func TestImportReplacePartialDeleteFailure(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	a := mustAdd(t, r, "https://youtube.com/watch?v=1", model.PlatformYouTube)
	mustAdd(t, r, "https://youtube.com/watch?v=2", model.PlatformYouTube)
	mustAdd(t, r, "https://youtube.com/watch?v=3", model.PlatformYouTube)
	st.failDeleteAt = 2
	st.insertContentSeen = nil

	in := Incoming{Content: []model.ContentItem{{ID: "n1", Name: "New", Platform: model.PlatformYouTube, URL: "https://youtube.com/watch?v=new"}}}
	res, err := r.ImportLibrary(context.Background(), in, PolicyReplace)
	require.ErrorIs(t, err, ErrReplaceIncomplete)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{a.ID}, res.Deleted)
	assert.Equal(t, 0, res.ContentAdded)
	assert.Empty(t, st.insertContentSeen)
	assert.Len(t, r.Library().Content(), 2)
}

func TestImportOrphanSnapshots(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	in := Incoming{
		Content: []model.ContentItem{
			{ID: "n1", Name: "Post", Platform: model.PlatformLinkedIn, URL: "https://www.linkedin.com/pulse/go-tips"},
			{ID: "n2", Name: "No url", Platform: model.PlatformLinkedIn},
		},
		Engagement: []model.EngagementSnapshot{
			{ContentID: "missing", Views: 1, CapturedAt: t0},
			{ContentID: "n2", Views: 2, CapturedAt: t0},
			{ContentID: "", Views: 3, CapturedAt: t0},
			{ContentID: "n1", Views: 4, CapturedAt: t0},
		},
	}
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContentAdded)
	assert.Equal(t, 1, res.ContentSkipped)
	assert.Equal(t, 1, res.EngagementAdded)
	assert.Equal(t, 3, res.EngagementSkipped)
	require.Len(t, st.snaps, 1)
	assert.Equal(t, int64(4), st.snaps[0].Views)
	for _, s := range r.Library().Engagement() {
		assert.NotEmpty(t, s.ContentID)
	}
}

func TestImportSkipsRepeatsWithinFile(t *testing.T) {
	for _, policy := range []Policy{PolicyMerge, PolicyReplace} {
		t.Run(string(policy), func(t *testing.T) {
			r, _ := newTestReconciler(newMemStore())
			in := Incoming{
				Content: []model.ContentItem{
					{ID: "n1", Name: "A", Platform: model.PlatformTwitter, URL: "https://x.com/a/status/9"},
					{ID: "n2", Name: "A copy", Platform: model.PlatformTwitter, URL: "https://x.com/a/status/9?utm_campaign=z"},
				},
				Engagement: []model.EngagementSnapshot{
					{ContentID: "n2", Views: 1, CapturedAt: t0},
				},
			}
			res, err := r.ImportLibrary(context.Background(), in, policy)
			require.NoError(t, err)
			assert.Equal(t, 1, res.ContentAdded)
			assert.Equal(t, 1, res.ContentSkipped)
			// n2 resolves by URL to the item created from n1
			assert.Equal(t, 1, res.EngagementAdded)
		})
	}
}

func TestImportDeduplicatesSnapshots(t *testing.T) {
	r, _ := newTestReconciler(newMemStore())
	at := time.Date(2024, 6, 30, 8, 0, 5, 0, time.UTC)
	in := Incoming{
		Content: []model.ContentItem{{ID: "n1", Name: "V", Platform: model.PlatformYouTube, URL: "https://youtu.be/zz"}},
		Engagement: []model.EngagementSnapshot{
			{ContentID: "n1", Views: 1, CapturedAt: at},
			{ContentID: "n1", Views: 2, CapturedAt: at.Add(30 * time.Second)},
			{ContentID: "n1", Views: 3, CapturedAt: at.Add(time.Minute)},
		},
	}
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 2, res.EngagementAdded)
	assert.Equal(t, 1, res.EngagementSkipped)
}

func TestImportCountsStoreFailures(t *testing.T) {
	st := newMemStore()
	st.failContentURL["https://youtu.be/bad"] = true
	r, _ := newTestReconciler(st)
	in := Incoming{
		Content: []model.ContentItem{
			{ID: "n1", Name: "Bad", Platform: model.PlatformYouTube, URL: "https://youtu.be/bad"},
			{ID: "n2", Name: "Good", Platform: model.PlatformYouTube, URL: "https://youtu.be/good"},
		},
		Engagement: []model.EngagementSnapshot{
			{ContentID: "n1", Views: 1, CapturedAt: t0},
			{ContentID: "n2", Views: 2, CapturedAt: t0},
		},
	}
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContentFailed)
	assert.Equal(t, 1, res.ContentAdded)
	assert.Equal(t, 1, res.EngagementAdded)
	assert.Equal(t, 1, res.EngagementSkipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "content", res.Failures[0].Kind)
	assert.Equal(t, "n1", res.Failures[0].ID)
}

func TestImportMergesCredentials(t *testing.T) {
	st := newMemStore()
	st.creds[model.PlatformYouTube] = map[string]string{"apiKey": "old", "channel": "c"}
	r, _ := newTestReconciler(st)
	in := Incoming{Credentials: model.Credentials{
		model.PlatformYouTube:  {"apiKey": "new", "channel": ""},
		model.PlatformLinkedIn: {},
		model.PlatformTwitter:  {"bearerToken": "b"},
	}}
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, []model.Platform{model.PlatformTwitter, model.PlatformYouTube}, res.CredentialsUpdated)
	assert.Equal(t, map[string]string{"apiKey": "new", "channel": "c"}, st.creds[model.PlatformYouTube])
	assert.NotContains(t, st.creds, model.PlatformLinkedIn)
}

func TestImportCredentialFailureIsReported(t *testing.T) {
	st := newMemStore()
	st.failSaveCredsFor = model.PlatformTwitter
	r, _ := newTestReconciler(st)
	res, err := r.ImportLibrary(context.Background(), Incoming{Credentials: model.Credentials{
		model.PlatformTwitter: {"bearerToken": "b"},
	}}, PolicyMerge)
	require.NoError(t, err)
	assert.Empty(t, res.CredentialsUpdated)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "apiConfig", res.Failures[0].Kind)
}

func TestImportRejectsUnknownPolicy(t *testing.T) {
	r, _ := newTestReconciler(newMemStore())
	_, err := r.ImportLibrary(context.Background(), Incoming{}, Policy("wipe"))
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestImportIsIdempotentUnderMerge(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	in := Incoming{
		Content:    []model.ContentItem{{ID: "n1", Name: "V", Platform: model.PlatformYouTube, URL: "https://youtube.com/watch?v=same"}},
		Engagement: []model.EngagementSnapshot{{ContentID: "n1", Views: 1, CapturedAt: t0}},
	}
	_, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	res, err := r.ImportLibrary(context.Background(), in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ContentAdded)
	assert.Equal(t, 1, res.ContentSkipped)
	assert.Equal(t, 1, res.EngagementSkipped)
	assert.Len(t, st.content, 1)
	assert.Len(t, st.snaps, 1)
}

func TestImportRejectsSnapshotsWithoutCaptureTime(t *testing.T) {
	st := newMemStore()
	r, _ := newTestReconciler(st)
	doc, err := archive.Decode([]byte(`{
  "version": "1.0",
  "user": {"id": "old"},
  "content": [{"id": "c1", "name": "V", "platform": "youtube", "url": "https://youtu.be/ts1"}],
  "engagement": [
    {"id": "e1", "content_id": "c1", "views": 5, "timestamp": "2024-06-01T10:00:00Z"},
    {"id": "e2", "content_id": "c1", "views": 6},
    {"id": "e3", "content_id": "c1", "views": 7, "timestamp": "garbage"}
  ]
}`))
	require.NoError(t, err)

	res, err := r.ImportLibrary(context.Background(), Incoming{
		Content:    doc.ContentItems(),
		Engagement: doc.Snapshots(),
	}, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EngagementAdded)
	assert.Equal(t, 0, res.EngagementSkipped)
	assert.Equal(t, 2, res.EngagementInvalid)
	require.Len(t, res.Failures, 2)
	for i, id := range []string{"e2", "e3"} {
		assert.Equal(t, "engagement", res.Failures[i].Kind)
		assert.Equal(t, id, res.Failures[i].ID)
		assert.ErrorIs(t, res.Failures[i].Err, ErrInvalidSnapshot)
	}

	require.Len(t, st.snaps, 1)
	for _, s := range r.Library().Engagement() {
		assert.False(t, s.CapturedAt.IsZero())
		assert.Equal(t, int64(5), s.Views)
	}
}
