// Package store defines the record store the reconciler persists through
// and opens the configured backend.
package store

import (
	"context"
	"fmt"

	"contentpulse/internal/config"
	"contentpulse/internal/model"
	"contentpulse/internal/store/postgres"
	"contentpulse/internal/store/sqlite"
)

// Store persists content items, engagement snapshots and platform credentials.
// Every failure is returned as an error; nothing is silently dropped.
type Store interface {
	// InsertContent stores item and returns it with its store-assigned id.
	InsertContent(ctx context.Context, item model.ContentItem) (model.ContentItem, error)
	// DeleteContent removes the item and every snapshot that references it.
	DeleteContent(ctx context.Context, id string) error
	ListContent(ctx context.Context, owner string) ([]model.ContentItem, error)

	InsertSnapshot(ctx context.Context, s model.EngagementSnapshot) (model.EngagementSnapshot, error)
	// ListSnapshots returns the snapshots of every item owned by owner, oldest first.
	ListSnapshots(ctx context.Context, owner string) ([]model.EngagementSnapshot, error)

	SaveCredentials(ctx context.Context, owner string, p model.Platform, blob map[string]string) error
	LoadCredentials(ctx context.Context, owner string) (model.Credentials, error)

	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.DBPath
		if path == "" {
			path = "./contentpulse.db"
		}
		return sqlite.Open(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres driver requires a database url")
		}
		db, err := postgres.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := postgres.New(db)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
