package reconcile

import (
	"context"
	"fmt"
	"strings"

	"contentpulse/internal/contentid"
	"contentpulse/internal/dedup"
	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
)

// Policy selects how an import treats the existing library.
type Policy string

const (
	// PolicyMerge keeps existing content and skips incoming duplicates.
	PolicyMerge Policy = "merge"
	// PolicyReplace deletes every existing item first. It cannot be undone.
	PolicyReplace Policy = "replace"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyMerge, "":
		return PolicyMerge, nil
	case PolicyReplace:
		return PolicyReplace, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Incoming is the payload of an import.
type Incoming struct {
	Content     []model.ContentItem
	Engagement  []model.EngagementSnapshot
	Credentials model.Credentials
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	ContentAdded      int `json:"contentAdded"`
	ContentSkipped    int `json:"contentSkipped"`
	EngagementAdded   int `json:"engagementAdded"`
	EngagementSkipped int `json:"engagementSkipped"`
	ContentFailed     int `json:"contentFailed"`
	EngagementFailed  int `json:"engagementFailed"`
	// EngagementInvalid counts snapshots rejected for a missing or unparseable capture time.
	EngagementInvalid  int              `json:"engagementInvalid"`
	Deleted            []string         `json:"deleted,omitempty"`
	CredentialsUpdated []model.Platform `json:"credentialsUpdated,omitempty"`
	Failures           []RecordFailure  `json:"failures,omitempty"`
}

// ImportLibrary reconciles in into the library under policy.
//
// Incoming content whose normalized URL is already tracked is skipped, which
// under replace only happens for repeats within the file. Accepted items get a
// new id and the session owner. Each incoming snapshot is remapped through its
// original item's normalized URL to the item created by this import; when that
// item was skipped or is absent the snapshot is dropped as an orphan.
//
// Per-record store failures are counted and do not stop the import. A failed
// delete during replace stops before anything is inserted and returns the ids
// already deleted with an error wrapping ErrReplaceIncomplete.
func (r *Reconciler) ImportLibrary(ctx context.Context, in Incoming, policy Policy) (ImportResult, error) {
	var res ImportResult
	if policy != PolicyMerge && policy != PolicyReplace {
		return res, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	b := newBatch(r)
	owner := r.lib.Owner()
	log := r.log.With(logging.String("policy", string(policy)), logging.String("owner", owner.ID))

	if policy == PolicyReplace {
		existing := r.lib.Content()
		for _, it := range existing {
			if err := b.deleteContent(ctx, it.ID); err != nil {
				res.Deleted = b.ids(opDeleteContent)
				log.Error("replace_delete_failed",
					logging.String("content_id", it.ID),
					logging.Int("deleted", len(res.Deleted)),
					logging.Int("total", len(existing)),
					logging.Err(err))
				return res, fmt.Errorf("%w: deleted %d of %d items before %s failed: %w",
					ErrReplaceIncomplete, len(res.Deleted), len(existing), it.ID, err)
			}
		}
		res.Deleted = b.ids(opDeleteContent)
	}

	origURL := make(map[string]string, len(in.Content))
	created := make(map[string]bool, len(in.Content))
	now := r.now()
	for _, it := range in.Content {
		if it.ID != "" {
			origURL[it.ID] = it.URL
		}
		if strings.TrimSpace(it.URL) == "" {
			res.ContentSkipped++
			metrics.IncImport("content", metrics.OutcomeSkipped)
			log.Warn("import_content_without_url", logging.String("source_id", it.ID))
			continue
		}
		if existing, ok := r.lib.Lookup(it.URL); ok {
			res.ContentSkipped++
			metrics.IncImport("content", metrics.OutcomeSkipped)
			log.Debug("import_content_duplicate", logging.String("source_id", it.ID), logging.String("existing_id", existing))
			continue
		}
		item := it
		item.ID = ""
		item.Owner = owner.ID
		if item.PlatformContentID == "" {
			item.PlatformContentID = contentid.Extract(item.URL, item.Platform)
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		saved, err := b.insertContent(ctx, item)
		if err != nil {
			res.ContentFailed++
			res.Failures = append(res.Failures, NewFailure("content", it.ID, err))
			metrics.IncImport("content", metrics.OutcomeFailed)
			log.Warn("import_content_failed", logging.String("source_id", it.ID), logging.Err(err))
			continue
		}
		created[saved.ID] = true
		res.ContentAdded++
		metrics.IncImport("content", metrics.OutcomeAdded)
	}

	for _, s := range in.Engagement {
		if s.CapturedAt.IsZero() {
			res.EngagementInvalid++
			res.Failures = append(res.Failures, NewFailure("engagement", s.ID,
				fmt.Errorf("%w: missing capture time for content %s", ErrInvalidSnapshot, s.ContentID)))
			metrics.IncImport("engagement", metrics.OutcomeInvalid)
			log.Warn("import_engagement_invalid", logging.String("source_id", s.ID), logging.String("source_content_id", s.ContentID))
			continue
		}
		newID, ok := r.resolve(s.ContentID, origURL, created)
		if !ok {
			res.EngagementSkipped++
			metrics.IncImport("engagement", metrics.OutcomeOrphan)
			log.Debug("import_engagement_orphan", logging.String("source_content_id", s.ContentID))
			continue
		}
		snap := s
		snap.ID = ""
		snap.ContentID = newID
		if dedup.IsDuplicate(snap, r.lib.SnapshotsFor(newID)) {
			res.EngagementSkipped++
			metrics.IncImport("engagement", metrics.OutcomeDuplicate)
			log.Debug("import_engagement_duplicate", logging.String("content_id", newID), logging.Time("captured_at", snap.CapturedAt))
			continue
		}
		if _, err := b.insertSnapshot(ctx, snap); err != nil {
			res.EngagementFailed++
			res.Failures = append(res.Failures, NewFailure("engagement", s.ID, err))
			metrics.IncImport("engagement", metrics.OutcomeFailed)
			log.Warn("import_engagement_failed", logging.String("source_id", s.ID), logging.Err(err))
			continue
		}
		res.EngagementAdded++
		metrics.IncImport("engagement", metrics.OutcomeAdded)
	}

	updated, failures := r.mergeCredentials(ctx, in.Credentials)
	res.CredentialsUpdated = updated
	res.Failures = append(res.Failures, failures...)

	log.Info("import_done",
		logging.Int("content_added", res.ContentAdded),
		logging.Int("content_skipped", res.ContentSkipped),
		logging.Int("engagement_added", res.EngagementAdded),
		logging.Int("engagement_skipped", res.EngagementSkipped),
		logging.Int("engagement_invalid", res.EngagementInvalid),
		logging.Int("failures", len(res.Failures)))
	return res, nil
}

// resolve maps an incoming snapshot's content id to the item this import created.
func (r *Reconciler) resolve(sourceID string, origURL map[string]string, created map[string]bool) (string, bool) {
	u, ok := origURL[sourceID]
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	id, ok := r.lib.Lookup(u)
	if !ok || !created[id] {
		return "", false
	}
	return id, true
}

// mergeCredentials folds imported api config into the owner's stored config.
func (r *Reconciler) mergeCredentials(ctx context.Context, incoming model.Credentials) ([]model.Platform, []RecordFailure) {
	if len(incoming) == 0 {
		return nil, nil
	}
	owner := r.lib.Owner().ID
	current, err := r.store.LoadCredentials(ctx, owner)
	if err != nil {
		r.log.Warn("import_api_config_load_failed", logging.Err(err))
		return nil, []RecordFailure{NewFailure("apiConfig", owner, err)}
	}
	if current == nil {
		current = model.Credentials{}
	}
	var saved []model.Platform
	var failures []RecordFailure
	for _, p := range current.Merge(incoming) {
		if err := r.store.SaveCredentials(ctx, owner, p, current[p]); err != nil {
			metrics.IncStoreFailure("save_api_config")
			failures = append(failures, NewFailure("apiConfig", string(p), err))
			r.log.Warn("import_api_config_failed", logging.String("platform", string(p)), logging.Err(err))
			continue
		}
		saved = append(saved, p)
	}
	return saved, failures
}
