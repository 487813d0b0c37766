package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"contentpulse/internal/analytics"
	"contentpulse/internal/archive"
	"contentpulse/internal/jobs"
	"contentpulse/internal/logging"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
)

const (
	maxImportBytes  = 32 << 20
	defaultTopCount = 5
)

type refreshResponse struct {
	Added      int                       `json:"added"`
	Duplicates int                       `json:"duplicates"`
	Failures   []reconcile.RecordFailure `json:"failures,omitempty"`
}

type importResponse struct {
	Preview reconcile.Preview       `json:"preview"`
	Policy  reconcile.Policy        `json:"policy,omitempty"`
	Result  *reconcile.ImportResult `json:"result,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

type statsResponse struct {
	analytics.Summary
	TotalWatchTime string                   `json:"totalWatchTime"`
	Top            []analytics.ContentViews `json:"top"`
}

// HandleRefresh fetches fresh metrics for the most recently added items.
// The limit query parameter overrides the configured limit; 0 means all.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) error {
	if h.collectors == nil {
		return NewHTTPError(http.StatusServiceUnavailable, "No platform collectors configured")
	}
	limit := h.refreshLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ErrBadRequest("Invalid limit: " + v)
		}
		limit = n
	}
	res, err := jobs.RunRefreshGuarded(r.Context(), h.rec, h.collectors, limit, h.mu)
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusOK, refreshResponse{
		Added:      len(res.Added),
		Duplicates: res.Duplicates,
		Failures:   res.Failures,
	})
	return nil
}

// HandleImport validates an exported library file and, unless preview=true,
// reconciles it under policy. Replace deletes the whole library and
// requires confirm=true.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	policy, err := reconcile.ParsePolicy(q.Get("policy"))
	if err != nil {
		return err
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		return ErrBadRequestWrap("Could not read import file", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sess := h.rec.NewImportSession()
	if err := sess.Validate(data); err != nil {
		return err
	}
	preview, err := sess.Preview()
	if err != nil {
		return err
	}
	if q.Get("preview") == "true" {
		_ = sess.Cancel()
		respondWithJSON(w, http.StatusOK, importResponse{Preview: preview})
		return nil
	}
	if policy == reconcile.PolicyReplace && q.Get("confirm") != "true" {
		_ = sess.Cancel()
		return ErrBadRequest("Replace deletes all existing content; pass confirm=true")
	}
	if err := sess.Confirm(policy); err != nil {
		return err
	}

	res, err := sess.Run(r.Context())
	resp := importResponse{Preview: preview, Policy: policy, Result: &res}
	if err != nil {
		h.log.Error("import_failed", logging.String("policy", string(policy)), logging.Err(err))
		resp.Error = err.Error()
		respondWithJSON(w, http.StatusInternalServerError, resp)
		return nil
	}
	if len(res.CredentialsUpdated) > 0 {
		h.reloadCollectors(r.Context())
	}
	respondWithJSON(w, http.StatusOK, resp)
	return nil
}

// HandleExport writes the library as a downloadable archive file.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	lib := h.rec.Library()
	var creds model.Credentials
	if h.creds != nil {
		c, err := h.creds.LoadCredentials(r.Context(), lib.Owner().ID)
		if err != nil {
			return ErrInternalServerWrap("load credentials", err)
		}
		creds = c
	}
	now := h.now()
	body, err := archive.Encode(archive.Export(lib, creds, now))
	if err != nil {
		return ErrInternalServerWrap("encode archive", err)
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, archive.FileName(now)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) error {
	top := defaultTopCount
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ErrBadRequest("Invalid top: " + v)
		}
		top = n
	}
	h.mu.Lock()
	content := h.rec.Library().Content()
	snapshots := h.rec.Library().Engagement()
	h.mu.Unlock()

	var watch float64
	for _, s := range analytics.Latest(snapshots) {
		watch += s.WatchTime
	}
	resp := statsResponse{
		Summary:        analytics.Summarize(content, snapshots),
		TotalWatchTime: analytics.FormatWatchTime(watch),
		Top:            analytics.TopContent(content, snapshots, top),
	}
	if resp.Top == nil {
		resp.Top = []analytics.ContentViews{}
	}
	respondWithJSON(w, http.StatusOK, resp)
	return nil
}
