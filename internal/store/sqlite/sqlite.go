// Package sqlite is the embedded record store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"contentpulse/internal/model"
)

// Store wraps a SQLite database holding content, engagement and api config.
type Store struct{ sql *sql.DB }

func Open(path string) (*Store, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// pragmas and :memory: databases are per connection
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	s := &Store{sql: d}
	if err := s.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) migrate() error {
	_, err := s.sql.Exec(`
	CREATE TABLE IF NOT EXISTS content_items (
	  id TEXT PRIMARY KEY,
	  owner_id TEXT NOT NULL,
	  name TEXT NOT NULL,
	  description TEXT NOT NULL DEFAULT '',
	  platform TEXT NOT NULL,
	  url TEXT NOT NULL,
	  platform_content_id TEXT NOT NULL DEFAULT '',
	  published_at INTEGER NOT NULL DEFAULT 0,
	  duration TEXT NOT NULL DEFAULT '',
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_content_owner ON content_items(owner_id);
	CREATE TABLE IF NOT EXISTS engagement_data (
	  id TEXT PRIMARY KEY,
	  content_id TEXT NOT NULL REFERENCES content_items(id),
	  views INTEGER NOT NULL DEFAULT 0,
	  likes INTEGER NOT NULL DEFAULT 0,
	  comments INTEGER NOT NULL DEFAULT 0,
	  shares INTEGER NOT NULL DEFAULT 0,
	  watch_time REAL NOT NULL DEFAULT 0,
	  captured_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_engagement_content ON engagement_data(content_id, captured_at);
	CREATE TABLE IF NOT EXISTS api_config (
	  owner_id TEXT NOT NULL,
	  platform TEXT NOT NULL,
	  config TEXT NOT NULL,
	  updated_at INTEGER NOT NULL,
	  PRIMARY KEY (owner_id, platform)
	);
	`)
	return err
}

// InsertContent assigns a fresh id when item has none.
func (s *Store) InsertContent(ctx context.Context, item model.ContentItem) (model.ContentItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	_, err := s.sql.ExecContext(ctx, `INSERT INTO content_items(id, owner_id, name, description, platform, url, platform_content_id, published_at, duration, created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		item.ID, item.Owner, item.Name, item.Description, string(item.Platform), item.URL, item.PlatformContentID,
		toMillis(item.PublishedAt), item.Duration, toMillis(item.CreatedAt))
	if err != nil {
		return model.ContentItem{}, fmt.Errorf("insert content: %w", err)
	}
	return item, nil
}

// DeleteContent removes the item and its snapshots in one transaction.
func (s *Store) DeleteContent(ctx context.Context, id string) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM engagement_data WHERE content_id=?`, id); err != nil {
		return fmt.Errorf("delete engagement: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM content_items WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("content %s: %w", id, model.ErrNotFound)
	}
	return tx.Commit()
}

func (s *Store) ListContent(ctx context.Context, owner string) ([]model.ContentItem, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT id, owner_id, name, description, platform, url, platform_content_id, published_at, duration, created_at FROM content_items WHERE owner_id=? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ContentItem
	for rows.Next() {
		var it model.ContentItem
		var platform string
		var published, created int64
		if err := rows.Scan(&it.ID, &it.Owner, &it.Name, &it.Description, &platform, &it.URL, &it.PlatformContentID, &published, &it.Duration, &created); err != nil {
			return nil, err
		}
		it.Platform = model.Platform(platform)
		it.PublishedAt = fromMillis(published)
		it.CreatedAt = fromMillis(created)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) InsertSnapshot(ctx context.Context, e model.EngagementSnapshot) (model.EngagementSnapshot, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.sql.ExecContext(ctx, `INSERT INTO engagement_data(id, content_id, views, likes, comments, shares, watch_time, captured_at) VALUES(?,?,?,?,?,?,?,?)`,
		e.ID, e.ContentID, e.Views, e.Likes, e.Comments, e.Shares, e.WatchTime, toMillis(e.CapturedAt))
	if err != nil {
		return model.EngagementSnapshot{}, fmt.Errorf("insert engagement: %w", err)
	}
	return e, nil
}

func (s *Store) ListSnapshots(ctx context.Context, owner string) ([]model.EngagementSnapshot, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT e.id, e.content_id, e.views, e.likes, e.comments, e.shares, e.watch_time, e.captured_at
	FROM engagement_data e JOIN content_items c ON c.id = e.content_id
	WHERE c.owner_id=? ORDER BY e.captured_at, e.id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.EngagementSnapshot
	for rows.Next() {
		var e model.EngagementSnapshot
		var captured int64
		if err := rows.Scan(&e.ID, &e.ContentID, &e.Views, &e.Likes, &e.Comments, &e.Shares, &e.WatchTime, &captured); err != nil {
			return nil, err
		}
		e.CapturedAt = fromMillis(captured)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveCredentials upserts the config blob for (owner, platform).
func (s *Store) SaveCredentials(ctx context.Context, owner string, p model.Platform, blob map[string]string) error {
	b, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx, `INSERT INTO api_config(owner_id, platform, config, updated_at) VALUES(?,?,?,?)
	ON CONFLICT(owner_id, platform) DO UPDATE SET config=excluded.config, updated_at=excluded.updated_at`,
		owner, string(p), string(b), time.Now().UTC().UnixMilli())
	return err
}

func (s *Store) LoadCredentials(ctx context.Context, owner string) (model.Credentials, error) {
	rows, err := s.sql.QueryContext(ctx, `SELECT platform, config FROM api_config WHERE owner_id=?`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.Credentials{}
	for rows.Next() {
		var platform, raw string
		if err := rows.Scan(&platform, &raw); err != nil {
			return nil, err
		}
		blob := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &blob); err != nil {
			return nil, fmt.Errorf("api config %s: %w", platform, err)
		}
		out[model.Platform(platform)] = blob
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
