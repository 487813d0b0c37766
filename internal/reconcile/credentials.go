package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
)

// ErrInvalidCredentials is returned for an unknown platform or an empty blob.
var ErrInvalidCredentials = errors.New("invalid api credentials")

// SaveCredentials merges blob into the stored credentials of platform p key
// by key; empty values leave the stored value untouched. It reports whether
// anything changed. Nothing is written when nothing changed.
func (r *Reconciler) SaveCredentials(ctx context.Context, p model.Platform, blob map[string]string) (bool, error) {
	if _, err := model.ParsePlatform(string(p)); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	nonEmpty := false
	for _, v := range blob {
		if v != "" {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		return false, fmt.Errorf("%w: no values for %s", ErrInvalidCredentials, p)
	}

	owner := r.lib.Owner().ID
	current, err := r.store.LoadCredentials(ctx, owner)
	if err != nil {
		return false, fmt.Errorf("load credentials: %w", err)
	}
	if current == nil {
		current = model.Credentials{}
	}
	if len(current.Merge(model.Credentials{p: blob})) == 0 {
		return false, nil
	}
	if err := r.store.SaveCredentials(ctx, owner, p, current[p]); err != nil {
		metrics.IncStoreFailure("save_api_config")
		return false, fmt.Errorf("save %s credentials: %w", p, err)
	}
	keys := make([]string, 0, len(current[p]))
	for k := range current[p] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r.log.Info("api_config_saved", logging.String("platform", string(p)), logging.Strings("keys", keys))
	return true, nil
}
