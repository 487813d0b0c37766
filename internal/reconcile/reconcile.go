// Package reconcile applies fetched and imported records to a session's
// library, skipping duplicate content and duplicate engagement snapshots.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contentpulse/internal/contentid"
	"contentpulse/internal/library"
	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
)

var (
	// ErrDuplicateURL matches a *DuplicateError.
	ErrDuplicateURL      = errors.New("content url already tracked")
	ErrInvalidContent    = errors.New("invalid content item")
	ErrUnknownPolicy     = errors.New("unknown import policy")
	ErrReplaceIncomplete = errors.New("replace import incomplete")
	// ErrInvalidSnapshot marks an imported snapshot without a usable capture time.
	ErrInvalidSnapshot = errors.New("invalid engagement snapshot")
)

// Store is the persistence the reconciler writes through.
type Store interface {
	InsertContent(ctx context.Context, item model.ContentItem) (model.ContentItem, error)
	DeleteContent(ctx context.Context, id string) error
	InsertSnapshot(ctx context.Context, s model.EngagementSnapshot) (model.EngagementSnapshot, error)
	SaveCredentials(ctx context.Context, owner string, p model.Platform, blob map[string]string) error
	LoadCredentials(ctx context.Context, owner string) (model.Credentials, error)
}

// DuplicateError reports that a URL is already tracked as ExistingID.
type DuplicateError struct {
	URL        string
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %s (content %s)", ErrDuplicateURL, e.URL, e.ExistingID)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateURL }

// RecordFailure is one record that could not be fetched or stored.
type RecordFailure struct {
	Kind    string `json:"kind"` // content, engagement, apiConfig, fetch
	ID      string `json:"id"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// NewFailure records err against the record id.
func NewFailure(kind, id string, err error) RecordFailure {
	return RecordFailure{Kind: kind, ID: id, Message: err.Error(), Err: err}
}

// Reconciler owns the mutation paths of one session's library.
// Like the library it is driven from a single control flow.
type Reconciler struct {
	store Store
	lib   *library.Library
	log   logging.Logger
	now   func() time.Time
}

type Option func(*Reconciler)

func WithLogger(l logging.Logger) Option { return func(r *Reconciler) { r.log = l } }

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option { return func(r *Reconciler) { r.now = now } }

func New(store Store, lib *library.Library, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: store,
		lib:   lib,
		log:   logging.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reconciler) Library() *library.Library { return r.lib }

func (r *Reconciler) Logger() logging.Logger { return r.log }

// CheckDuplicate returns the tracked item whose normalized URL equals rawURL.
func (r *Reconciler) CheckDuplicate(rawURL string) (model.ContentItem, bool) {
	id, ok := r.lib.Lookup(rawURL)
	if !ok {
		return model.ContentItem{}, false
	}
	return r.lib.Get(id)
}

// AddContent tracks a new item for the session owner.
func (r *Reconciler) AddContent(ctx context.Context, item model.ContentItem) (model.ContentItem, error) {
	item.URL = strings.TrimSpace(item.URL)
	switch {
	case item.URL == "":
		return model.ContentItem{}, fmt.Errorf("%w: url is required", ErrInvalidContent)
	case strings.TrimSpace(item.Name) == "":
		return model.ContentItem{}, fmt.Errorf("%w: name is required", ErrInvalidContent)
	case item.Platform == "":
		return model.ContentItem{}, fmt.Errorf("%w: platform is required", ErrInvalidContent)
	}
	if id, ok := r.lib.Lookup(item.URL); ok {
		return model.ContentItem{}, &DuplicateError{URL: item.URL, ExistingID: id}
	}
	item.ID = ""
	item.Owner = r.lib.Owner().ID
	if item.PlatformContentID == "" {
		item.PlatformContentID = contentid.Extract(item.URL, item.Platform)
	}
	item.CreatedAt = r.now()
	saved, err := r.store.InsertContent(ctx, item)
	if err != nil {
		metrics.IncStoreFailure("insert_content")
		return model.ContentItem{}, err
	}
	r.lib.AddContent(saved)
	r.log.Info("content_added",
		logging.String("content_id", saved.ID),
		logging.String("platform", string(saved.Platform)),
		logging.String("platform_content_id", saved.PlatformContentID))
	return saved, nil
}

// DeleteContent removes the item and its snapshots from the store and the library.
func (r *Reconciler) DeleteContent(ctx context.Context, id string) error {
	if _, ok := r.lib.Get(id); !ok {
		return fmt.Errorf("content %s: %w", id, model.ErrNotFound)
	}
	if err := r.store.DeleteContent(ctx, id); err != nil {
		metrics.IncStoreFailure("delete_content")
		return err
	}
	r.log.Info("content_deleted", logging.String("content_id", id))
	return r.lib.RemoveContent(id)
}
