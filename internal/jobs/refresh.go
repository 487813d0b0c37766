package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
)

// Fetcher fetches current metrics for one item.
type Fetcher interface {
	Fetch(ctx context.Context, item model.ContentItem) (model.RawMetrics, error)
}

// SelectRecent returns the limit most recently created items, newest first.
// A limit of zero or less selects everything.
func SelectRecent(items []model.ContentItem, limit int) []model.ContentItem {
	out := append([]model.ContentItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// RunRefreshOnce fetches metrics for the selected items one at a time and
// records them through rec. Fetch failures are reported per item alongside
// store failures; only cancellation aborts the run.
func RunRefreshOnce(ctx context.Context, rec *reconcile.Reconciler, f Fetcher, limit int) (reconcile.RefreshResult, error) {
	return runRefresh(ctx, rec, f, limit, nopLocker{})
}

// RunRefreshGuarded is RunRefreshOnce for a library shared with other
// goroutines; mu is held while the library is read or mutated.
func RunRefreshGuarded(ctx context.Context, rec *reconcile.Reconciler, f Fetcher, limit int, mu sync.Locker) (reconcile.RefreshResult, error) {
	if mu == nil {
		mu = nopLocker{}
	}
	return runRefresh(ctx, rec, f, limit, mu)
}

// runRefresh holds mu while it reads or mutates the library, not while fetching.
func runRefresh(ctx context.Context, rec *reconcile.Reconciler, f Fetcher, limit int, mu sync.Locker) (reconcile.RefreshResult, error) {
	start := time.Now()
	metrics.RefreshRuns.Inc()
	log := rec.Logger()

	mu.Lock()
	items := SelectRecent(rec.Library().Content(), limit)
	mu.Unlock()

	fetched := make(map[string]model.RawMetrics, len(items))
	var failures []reconcile.RecordFailure
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return reconcile.RefreshResult{Failures: failures}, err
		}
		m, err := f.Fetch(ctx, it)
		if err != nil {
			failures = append(failures, reconcile.NewFailure("fetch", it.ID, err))
			metrics.RefreshErrors.Inc()
			log.Warn("refresh_fetch_failed",
				logging.String("content_id", it.ID),
				logging.String("platform", string(it.Platform)),
				logging.Err(err))
			continue
		}
		fetched[it.ID] = m
	}

	mu.Lock()
	res := rec.ApplyFetchedSnapshots(ctx, items, fetched)
	mu.Unlock()
	metrics.RefreshErrors.Add(float64(len(res.Failures)))
	res.Failures = append(failures, res.Failures...)

	log.Info("refresh_once",
		logging.Int("items", len(items)),
		logging.Int("added", len(res.Added)),
		logging.Int("duplicates", res.Duplicates),
		logging.Int("failures", len(res.Failures)),
		logging.Duration("took", time.Since(start)))
	metrics.ObserveRefreshDuration(start)
	return res, nil
}

// RunRefreshLoop runs a refresh immediately and then on every tick until ctx
// is cancelled. mu, when not nil, guards the library against other users.
func RunRefreshLoop(ctx context.Context, rec *reconcile.Reconciler, f Fetcher, limit int, interval time.Duration, mu sync.Locker) error {
	if mu == nil {
		mu = nopLocker{}
	}
	log := rec.Logger()
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	if _, err := runRefresh(ctx, rec, f, limit, mu); err != nil {
		log.Error("refresh_once_error", logging.Err(err))
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("refresh_loop_stop")
			return ctx.Err()
		case <-t.C:
			if _, err := runRefresh(ctx, rec, f, limit, mu); err != nil {
				log.Error("refresh_once_error", logging.Err(err))
			}
		}
	}
}
