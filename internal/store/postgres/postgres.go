// Package postgres is the hosted relational record store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"contentpulse/internal/model"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 10

	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 2

	// DefaultConnMaxLifetime is the default maximum lifetime of a connection
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout is the default timeout for pinging the database
	DefaultPingTimeout = 5 * time.Second
)

// NewPostgresConnection opens a pooled connection to dsn and verifies it.
func NewPostgresConnection(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// Store implements the record store on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// New wraps an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS content_items (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL,
	url TEXT NOT NULL,
	platform_content_id TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	duration TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_owner ON content_items(owner_id);
CREATE TABLE IF NOT EXISTS engagement_data (
	id TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES content_items(id) ON DELETE CASCADE,
	views BIGINT NOT NULL DEFAULT 0,
	likes BIGINT NOT NULL DEFAULT 0,
	comments BIGINT NOT NULL DEFAULT 0,
	shares BIGINT NOT NULL DEFAULT 0,
	watch_time DOUBLE PRECISION NOT NULL DEFAULT 0,
	captured_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_engagement_content ON engagement_data(content_id, captured_at);
CREATE TABLE IF NOT EXISTS api_config (
	owner_id TEXT NOT NULL,
	platform TEXT NOT NULL,
	config JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_id, platform)
);`

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// contentRow mirrors content_items; published_at is nullable.
type contentRow struct {
	model.ContentItem
	Published *time.Time `db:"published"`
}

// InsertContent assigns a fresh id when item has none.
func (s *Store) InsertContent(ctx context.Context, item model.ContentItem) (model.ContentItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	var published *time.Time
	if !item.PublishedAt.IsZero() {
		p := item.PublishedAt.UTC()
		published = &p
	}
	query := `
		INSERT INTO content_items (id, owner_id, name, description, platform, url, platform_content_id, published_at, duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.Owner, item.Name, item.Description, string(item.Platform), item.URL,
		item.PlatformContentID, published, item.Duration, item.CreatedAt.UTC())
	if err != nil {
		return model.ContentItem{}, fmt.Errorf("failed to insert content: %w", err)
	}
	return item, nil
}

// DeleteContent removes the item; engagement rows cascade in the schema and
// are also deleted explicitly for databases migrated without the constraint.
func (s *Store) DeleteContent(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM engagement_data WHERE content_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete engagement: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("content %s: %w", id, model.ErrNotFound)
	}
	return tx.Commit()
}

func (s *Store) ListContent(ctx context.Context, owner string) ([]model.ContentItem, error) {
	var rows []contentRow
	query := `
		SELECT id, owner_id, name, description, platform, url, platform_content_id,
			published_at AS published, duration, created_at
		FROM content_items
		WHERE owner_id = $1
		ORDER BY created_at, id
	`
	if err := s.db.SelectContext(ctx, &rows, query, owner); err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	out := make([]model.ContentItem, 0, len(rows))
	for _, r := range rows {
		it := r.ContentItem
		if r.Published != nil {
			it.PublishedAt = r.Published.UTC()
		}
		it.CreatedAt = it.CreatedAt.UTC()
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) InsertSnapshot(ctx context.Context, e model.EngagementSnapshot) (model.EngagementSnapshot, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO engagement_data (id, content_id, views, likes, comments, shares, watch_time, captured_at)
		VALUES (:id, :content_id, :views, :likes, :comments, :shares, :watch_time, :captured_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, e); err != nil {
		return model.EngagementSnapshot{}, fmt.Errorf("failed to insert engagement: %w", err)
	}
	return e, nil
}

func (s *Store) ListSnapshots(ctx context.Context, owner string) ([]model.EngagementSnapshot, error) {
	var out []model.EngagementSnapshot
	query := `
		SELECT e.id, e.content_id, e.views, e.likes, e.comments, e.shares, e.watch_time, e.captured_at
		FROM engagement_data e
		JOIN content_items c ON c.id = e.content_id
		WHERE c.owner_id = $1
		ORDER BY e.captured_at, e.id
	`
	if err := s.db.SelectContext(ctx, &out, query, owner); err != nil {
		return nil, fmt.Errorf("failed to list engagement: %w", err)
	}
	for i := range out {
		out[i].CapturedAt = out[i].CapturedAt.UTC()
	}
	return out, nil
}

// SaveCredentials upserts the config blob for (owner, platform).
func (s *Store) SaveCredentials(ctx context.Context, owner string, p model.Platform, blob map[string]string) error {
	b, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to marshal api config: %w", err)
	}
	query := `
		INSERT INTO api_config (owner_id, platform, config, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, platform) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, owner, string(p), b, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save api config: %w", err)
	}
	return nil
}

func (s *Store) LoadCredentials(ctx context.Context, owner string) (model.Credentials, error) {
	var rows []struct {
		Platform string `db:"platform"`
		Config   []byte `db:"config"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT platform, config FROM api_config WHERE owner_id = $1`, owner); err != nil {
		return nil, fmt.Errorf("failed to load api config: %w", err)
	}
	out := model.Credentials{}
	for _, r := range rows {
		blob := map[string]string{}
		if err := json.Unmarshal(r.Config, &blob); err != nil {
			return nil, fmt.Errorf("failed to unmarshal api config %s: %w", r.Platform, err)
		}
		out[model.Platform(r.Platform)] = blob
	}
	return out, nil
}
