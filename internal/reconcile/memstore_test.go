package reconcile

import (
	"context"
	"errors"
	"fmt"

	"contentpulse/internal/model"
)

var errStoreDown = errors.New("store down")

// memStore is an in-memory Store with failure injection.
type memStore struct {
	seq     int
	content map[string]model.ContentItem
	snaps   []model.EngagementSnapshot
	creds   model.Credentials
	deletes int

	failContentURL    map[string]bool
	failSnapshotFor   map[string]bool
	failDeleteAt      int // 1-based delete call that fails; 0 never
	failLoadCreds     bool
	failSaveCredsFor  model.Platform
	insertContentSeen []string
}

func newMemStore() *memStore {
	return &memStore{
		content:         map[string]model.ContentItem{},
		creds:           model.Credentials{},
		failContentURL:  map[string]bool{},
		failSnapshotFor: map[string]bool{},
	}
}

func (m *memStore) InsertContent(_ context.Context, item model.ContentItem) (model.ContentItem, error) {
	m.insertContentSeen = append(m.insertContentSeen, item.URL)
	if m.failContentURL[item.URL] {
		return model.ContentItem{}, errStoreDown
	}
	m.seq++
	item.ID = fmt.Sprintf("c%d", m.seq)
	m.content[item.ID] = item
	return item, nil
}

func (m *memStore) DeleteContent(_ context.Context, id string) error {
	m.deletes++
	if m.failDeleteAt > 0 && m.deletes == m.failDeleteAt {
		return errStoreDown
	}
	if _, ok := m.content[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.content, id)
	kept := m.snaps[:0]
	for _, s := range m.snaps {
		if s.ContentID != id {
			kept = append(kept, s)
		}
	}
	m.snaps = kept
	return nil
}

func (m *memStore) InsertSnapshot(_ context.Context, s model.EngagementSnapshot) (model.EngagementSnapshot, error) {
	if m.failSnapshotFor[s.ContentID] {
		return model.EngagementSnapshot{}, errStoreDown
	}
	if _, ok := m.content[s.ContentID]; !ok {
		return model.EngagementSnapshot{}, fmt.Errorf("content %s: %w", s.ContentID, model.ErrNotFound)
	}
	m.seq++
	s.ID = fmt.Sprintf("e%d", m.seq)
	m.snaps = append(m.snaps, s)
	return s, nil
}

func (m *memStore) SaveCredentials(_ context.Context, _ string, p model.Platform, blob map[string]string) error {
	if p == m.failSaveCredsFor {
		return errStoreDown
	}
	cp := map[string]string{}
	for k, v := range blob {
		cp[k] = v
	}
	m.creds[p] = cp
	return nil
}

func (m *memStore) LoadCredentials(context.Context, string) (model.Credentials, error) {
	if m.failLoadCreds {
		return nil, errStoreDown
	}
	out := model.Credentials{}
	for p, blob := range m.creds {
		cp := map[string]string{}
		for k, v := range blob {
			cp[k] = v
		}
		out[p] = cp
	}
	return out, nil
}
