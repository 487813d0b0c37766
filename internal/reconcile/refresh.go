package reconcile

import (
	"context"

	"contentpulse/internal/dedup"
	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
)

// RefreshResult reports what a refresh recorded.
type RefreshResult struct {
	Added      []model.EngagementSnapshot `json:"added"`
	Duplicates int                        `json:"duplicates"`
	Failures   []RecordFailure            `json:"failures"`
}

// ApplyFetchedSnapshots records one snapshot per item that has fetched metrics,
// all stamped with the same capture time. Snapshots that duplicate an existing
// one within the same minute are discarded. A store failure is reported for
// that item and the remaining items are still processed.
func (r *Reconciler) ApplyFetchedSnapshots(ctx context.Context, items []model.ContentItem, fetched map[string]model.RawMetrics) RefreshResult {
	var res RefreshResult
	now := r.now()
	for _, item := range items {
		m, ok := fetched[item.ID]
		if !ok {
			continue
		}
		cand := m.Snapshot(item.ID, now)
		if dedup.IsDuplicate(cand, r.lib.SnapshotsFor(item.ID)) {
			res.Duplicates++
			metrics.IncSnapshot(metrics.OutcomeDuplicate)
			r.log.Debug("snapshot_duplicate", logging.String("content_id", item.ID), logging.Time("captured_at", now))
			continue
		}
		saved, err := r.store.InsertSnapshot(ctx, cand)
		if err != nil {
			res.Failures = append(res.Failures, NewFailure("engagement", item.ID, err))
			metrics.IncStoreFailure("insert_engagement")
			metrics.IncSnapshot(metrics.OutcomeFailed)
			r.log.Warn("snapshot_store_failed", logging.String("content_id", item.ID), logging.Err(err))
			continue
		}
		r.lib.AddSnapshot(saved)
		res.Added = append(res.Added, saved)
		metrics.IncSnapshot(metrics.OutcomeRecorded)
	}
	return res
}
