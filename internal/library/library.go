// Package library holds the session's in-memory content and engagement
// collections together with the derived normalized-URL index.
package library

import (
	"context"
	"fmt"
	"sort"

	"contentpulse/internal/model"
	"contentpulse/internal/urlnorm"
)

// Source is the read side of a record store.
type Source interface {
	ListContent(ctx context.Context, owner string) ([]model.ContentItem, error)
	ListSnapshots(ctx context.Context, owner string) ([]model.EngagementSnapshot, error)
}

// Library is the state of one logical user session.
// It is not safe for concurrent use; callers serialise access.
type Library struct {
	owner      model.Owner
	content    []model.ContentItem
	engagement []model.EngagementSnapshot
	index      map[string]string // normalized url -> content id
}

// New returns an empty library for owner.
func New(owner model.Owner) *Library {
	return &Library{owner: owner, index: map[string]string{}}
}

// Load reads owner's records from src into a new library.
func Load(ctx context.Context, src Source, owner model.Owner) (*Library, error) {
	content, err := src.ListContent(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	engagement, err := src.ListSnapshots(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("load engagement: %w", err)
	}
	l := New(owner)
	l.content = content
	l.engagement = engagement
	l.RebuildIndex()
	return l, nil
}

func (l *Library) Owner() model.Owner { return l.owner }

// Content returns a copy of the content collection.
func (l *Library) Content() []model.ContentItem {
	return append([]model.ContentItem(nil), l.content...)
}

// Engagement returns a copy of the engagement collection.
func (l *Library) Engagement() []model.EngagementSnapshot {
	return append([]model.EngagementSnapshot(nil), l.engagement...)
}

// Get returns the content item with id.
func (l *Library) Get(id string) (model.ContentItem, bool) {
	for _, it := range l.content {
		if it.ID == id {
			return it, true
		}
	}
	return model.ContentItem{}, false
}

// AddContent appends item and rebuilds the index.
func (l *Library) AddContent(item model.ContentItem) {
	l.content = append(l.content, item)
	l.RebuildIndex()
}

// RemoveContent drops the item and its snapshots.
func (l *Library) RemoveContent(id string) error {
	pos := -1
	for i, it := range l.content {
		if it.ID == id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("content %s: %w", id, model.ErrNotFound)
	}
	l.content = append(l.content[:pos:pos], l.content[pos+1:]...)
	kept := l.engagement[:0:0]
	for _, s := range l.engagement {
		if s.ContentID != id {
			kept = append(kept, s)
		}
	}
	l.engagement = kept
	l.RebuildIndex()
	return nil
}

// AddSnapshot appends s to the engagement collection.
func (l *Library) AddSnapshot(s model.EngagementSnapshot) {
	l.engagement = append(l.engagement, s)
}

// Lookup returns the id of the tracked item whose normalized URL matches rawURL.
func (l *Library) Lookup(rawURL string) (string, bool) {
	id, ok := l.index[urlnorm.Normalize(rawURL)]
	return id, ok
}

// RebuildIndex recomputes the normalized-URL index from the content collection.
// The first item wins when two share a normalized URL.
func (l *Library) RebuildIndex() {
	idx := make(map[string]string, len(l.content))
	for _, it := range l.content {
		key := urlnorm.Normalize(it.URL)
		if _, ok := idx[key]; !ok {
			idx[key] = it.ID
		}
	}
	l.index = idx
}

// SnapshotsFor returns the snapshots of contentID, oldest first.
func (l *Library) SnapshotsFor(contentID string) []model.EngagementSnapshot {
	var out []model.EngagementSnapshot
	for _, s := range l.engagement {
		if s.ContentID == contentID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out
}

// LatestFor returns the most recent snapshot of contentID.
func (l *Library) LatestFor(contentID string) (model.EngagementSnapshot, bool) {
	var latest model.EngagementSnapshot
	found := false
	for _, s := range l.engagement {
		if s.ContentID != contentID {
			continue
		}
		if !found || s.CapturedAt.After(latest.CapturedAt) {
			latest = s
			found = true
		}
	}
	return latest, found
}

// Reset empties both collections and the index.
func (l *Library) Reset() {
	l.content = nil
	l.engagement = nil
	l.index = map[string]string{}
}
