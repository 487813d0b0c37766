package api

import (
	"context"
	"sync"
	"time"

	"contentpulse/internal/logging"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
)

// Collectors fetches metrics and metadata from the platforms.
type Collectors interface {
	Fetch(ctx context.Context, item model.ContentItem) (model.RawMetrics, error)
	Info(ctx context.Context, p model.Platform, contentID string) (model.ContentInfo, error)
	Test(ctx context.Context, p model.Platform) error
}

// CredentialStore reads the owner's stored platform credentials.
type CredentialStore interface {
	LoadCredentials(ctx context.Context, owner string) (model.Credentials, error)
}

// Handler serves the content library over HTTP. Every request that reads
// or mutates the library holds mu; a background refresh loop should share it.
type Handler struct {
	rec          *reconcile.Reconciler
	creds        CredentialStore
	collectors   Collectors
	reload       func(ctx context.Context) error
	refreshLimit int
	log          logging.Logger
	mu           sync.Locker
	now          func() time.Time
}

// Options configures a Handler. Collectors may be nil, in which case refresh
// and metadata lookup are unavailable. ReloadCollectors is called after
// stored credentials change so Collectors picks them up.
type Options struct {
	Reconciler       *reconcile.Reconciler
	Credentials      CredentialStore
	Collectors       Collectors
	ReloadCollectors func(ctx context.Context) error
	RefreshLimit     int
	Logger           logging.Logger
	Mu               sync.Locker
	Now              func() time.Time
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		rec:          opts.Reconciler,
		creds:        opts.Credentials,
		collectors:   opts.Collectors,
		reload:       opts.ReloadCollectors,
		refreshLimit: opts.RefreshLimit,
		log:          opts.Logger,
		mu:           opts.Mu,
		now:          opts.Now,
	}
	if h.log == nil {
		h.log = logging.NewNop()
	}
	if h.mu == nil {
		h.mu = &sync.Mutex{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// reloadCollectors rebuilds the collectors from stored credentials. A failed
// reload is logged; the old collectors stay in place.
func (h *Handler) reloadCollectors(ctx context.Context) bool {
	if h.reload == nil {
		return false
	}
	if err := h.reload(ctx); err != nil {
		h.log.Error("collectors_reload_failed", logging.Err(err))
		return false
	}
	h.log.Info("collectors_reloaded")
	return true
}
