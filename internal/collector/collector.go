// Package collector fetches engagement metrics from each platform's API.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"contentpulse/internal/contentid"
	"contentpulse/internal/model"
)

var (
	// ErrNotConfigured is returned for platforms with no usable credentials.
	ErrNotConfigured = errors.New("platform not configured")
	// ErrUnresolvedID is returned when an item has only a fallback content id.
	ErrUnresolvedID = errors.New("content id cannot be queried")
)

// Collector fetches current metrics for one platform.
type Collector interface {
	Platform() model.Platform
	FetchMetrics(ctx context.Context, item model.ContentItem) (model.RawMetrics, error)
}

// InfoFetcher looks up title, publish date and duration by platform content id.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, contentID string) (model.ContentInfo, error)
}

// Tester checks that a platform accepts the configured credentials.
type Tester interface {
	TestConnection(ctx context.Context) error
}

// tunable collectors expose their HTTP client so the registry can apply limits.
type tunable interface {
	client() *httpClient
}

// Registry maps platforms to their collectors. It is safe for concurrent
// use; Reload swaps the whole set while refreshes are running.
type Registry struct {
	mu         sync.RWMutex
	collectors map[model.Platform]Collector
	limits     map[model.Platform]Limits
}

type Option func(*Registry)

// WithLimits overrides the built-in limits of the given platforms.
func WithLimits(limits map[model.Platform]Limits) Option {
	return func(r *Registry) { r.limits = limits }
}

// NewRegistry builds collectors for every platform creds configures.
// Reddit's public JSON needs no credentials and is always present.
func NewRegistry(creds model.Credentials, opts ...Option) *Registry {
	r := &Registry{}
	for _, o := range opts {
		o(r)
	}
	r.Reload(creds)
	return r
}

// Reload rebuilds every collector from creds, dropping registered ones.
func (r *Registry) Reload(creds model.Credentials) {
	set := buildCollectors(creds)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors = make(map[model.Platform]Collector, len(set))
	for _, c := range set {
		r.register(c)
	}
}

func buildCollectors(creds model.Credentials) []Collector {
	var out []Collector
	if key := creds.Get(model.PlatformYouTube, "apiKey"); key != "" {
		out = append(out, NewYouTube(key))
	}
	if inst, user := creds.Get(model.PlatformServiceNow, "instance"), creds.Get(model.PlatformServiceNow, "username"); inst != "" && user != "" {
		out = append(out, NewServiceNow(inst, user, creds.Get(model.PlatformServiceNow, "password")))
	}
	if tok := creds.Get(model.PlatformLinkedIn, "accessToken"); tok != "" {
		out = append(out, NewLinkedIn(tok))
	}
	if tok := creds.Get(model.PlatformTwitter, "bearerToken"); tok != "" {
		out = append(out, NewTwitter(tok))
	}
	return append(out, NewReddit(creds.Get(model.PlatformReddit, "userAgent")))
}

// Register adds or replaces the collector for c.Platform().
func (r *Registry) Register(c Collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(c)
}

func (r *Registry) register(c Collector) {
	p := c.Platform()
	if t, ok := c.(tunable); ok {
		if l, ok := r.limits[p]; ok {
			t.client().apply(l.Or(DefaultLimits(p)))
		}
	}
	r.collectors[p] = c
}

// For returns the collector of p.
func (r *Registry) For(p model.Platform) (Collector, error) {
	r.mu.RLock()
	c, ok := r.collectors[p]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotConfigured)
	}
	return c, nil
}

// Platforms lists the configured platforms, sorted.
func (r *Registry) Platforms() []model.Platform {
	r.mu.RLock()
	out := make([]model.Platform, 0, len(r.collectors))
	for p := range r.collectors {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Fetch fetches metrics for item with its platform's collector.
func (r *Registry) Fetch(ctx context.Context, item model.ContentItem) (model.RawMetrics, error) {
	c, err := r.For(item.Platform)
	if err != nil {
		return model.RawMetrics{}, err
	}
	return c.FetchMetrics(ctx, item)
}

// Info looks up content metadata for platforms that support it.
func (r *Registry) Info(ctx context.Context, p model.Platform, contentID string) (model.ContentInfo, error) {
	c, err := r.For(p)
	if err != nil {
		return model.ContentInfo{}, err
	}
	f, ok := c.(InfoFetcher)
	if !ok {
		return model.ContentInfo{}, fmt.Errorf("%s: info lookup: %w", p, ErrNotConfigured)
	}
	return f.FetchInfo(ctx, contentID)
}

// Test checks the credentials configured for p against the platform.
func (r *Registry) Test(ctx context.Context, p model.Platform) error {
	c, err := r.For(p)
	if err != nil {
		return err
	}
	t, ok := c.(Tester)
	if !ok {
		return fmt.Errorf("%s: connection test: %w", p, ErrNotConfigured)
	}
	return t.TestConnection(ctx)
}

// queryID returns the platform id to query for item.
func queryID(item model.ContentItem) (string, error) {
	id := item.PlatformContentID
	if id == "" {
		id = contentid.Extract(item.URL, item.Platform)
	}
	if contentid.IsFallback(id) {
		return "", fmt.Errorf("%s %s: %w", item.Platform, item.ID, ErrUnresolvedID)
	}
	return id, nil
}
