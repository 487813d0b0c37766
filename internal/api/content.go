package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contentpulse/internal/contentid"
	"contentpulse/internal/logging"
	"contentpulse/internal/model"
)

type contentView struct {
	model.ContentItem
	Latest *model.EngagementSnapshot `json:"latest,omitempty"`
}

type addContentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Duration    string `json:"duration"`
	// LookupInfo fills missing name, published date and duration from the platform.
	LookupInfo bool `json:"lookupInfo"`
}

type duplicateResponse struct {
	Duplicate bool               `json:"duplicate"`
	Existing  *model.ContentItem `json:"existing,omitempty"`
}

func (h *Handler) HandleListContent(w http.ResponseWriter, r *http.Request) error {
	h.mu.Lock()
	lib := h.rec.Library()
	items := lib.Content()
	views := make([]contentView, 0, len(items))
	for _, it := range items {
		v := contentView{ContentItem: it}
		if s, ok := lib.LatestFor(it.ID); ok {
			v.Latest = &s
		}
		views = append(views, v)
	}
	h.mu.Unlock()

	respondWithJSON(w, http.StatusOK, views)
	return nil
}

func (h *Handler) HandleAddContent(w http.ResponseWriter, r *http.Request) error {
	defer r.Body.Close()
	var req addContentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return ErrBadRequest("Invalid request payload: " + err.Error())
	}
	p, err := model.ParsePlatform(req.Platform)
	if err != nil {
		return ErrBadRequestWrap("Invalid platform: "+req.Platform, err)
	}
	item := model.ContentItem{
		Name:        req.Name,
		Description: req.Description,
		Platform:    p,
		URL:         req.URL,
		Duration:    req.Duration,
	}
	if req.PublishedAt != "" {
		t, err := parseDate(req.PublishedAt)
		if err != nil {
			return ErrBadRequest("Invalid publishedAt: " + req.PublishedAt)
		}
		item.PublishedAt = t
	}
	if req.LookupInfo {
		h.fillInfo(r, &item)
	}

	h.mu.Lock()
	created, err := h.rec.AddContent(r.Context(), item)
	h.mu.Unlock()
	if err != nil {
		return err
	}
	respondWithJSON(w, http.StatusCreated, created)
	return nil
}

// fillInfo completes item from the platform. Lookup failures leave item as is.
func (h *Handler) fillInfo(r *http.Request, item *model.ContentItem) {
	if h.collectors == nil {
		return
	}
	id := contentid.Extract(item.URL, item.Platform)
	if contentid.IsFallback(id) {
		return
	}
	info, err := h.collectors.Info(r.Context(), item.Platform, id)
	if err != nil {
		h.log.Warn("content_info_lookup_failed",
			logging.String("platform", string(item.Platform)),
			logging.String("url", item.URL),
			logging.Err(err))
		return
	}
	if item.Name == "" {
		item.Name = info.Title
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = info.PublishedAt
	}
	if item.Duration == "" {
		item.Duration = info.Duration
	}
}

func (h *Handler) HandleDeleteContent(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, paramID)
	if id == "" {
		return ErrBadRequest("Missing content id")
	}
	h.mu.Lock()
	err := h.rec.DeleteContent(r.Context(), id)
	h.mu.Unlock()
	if errors.Is(err, model.ErrNotFound) {
		return ErrNotFound("Content not found")
	}
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) HandleCheckDuplicate(w http.ResponseWriter, r *http.Request) error {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		return ErrBadRequest("Missing url query parameter")
	}
	h.mu.Lock()
	existing, ok := h.rec.CheckDuplicate(rawURL)
	h.mu.Unlock()

	resp := duplicateResponse{Duplicate: ok}
	if ok {
		resp.Existing = &existing
	}
	respondWithJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) HandleContentEngagement(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, paramID)
	h.mu.Lock()
	lib := h.rec.Library()
	_, ok := lib.Get(id)
	history := lib.SnapshotsFor(id)
	h.mu.Unlock()
	if !ok {
		return ErrNotFound("Content not found")
	}
	if history == nil {
		history = []model.EngagementSnapshot{}
	}
	respondWithJSON(w, http.StatusOK, history)
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
