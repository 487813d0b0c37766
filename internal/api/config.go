package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"contentpulse/internal/logging"
	"contentpulse/internal/model"
)

const maxConfigBytes = 64 << 10

type platformConfigView struct {
	Platform model.Platform `json:"platform"`
	Keys     []string       `json:"keys"`
}

type saveConfigResponse struct {
	Platform model.Platform `json:"platform"`
	Changed  bool           `json:"changed"`
	Reloaded bool           `json:"reloaded"`
}

type testConfigResponse struct {
	Platform model.Platform `json:"platform"`
	OK       bool           `json:"ok"`
	Error    string         `json:"error,omitempty"`
}

// HandleListConfig lists the credential keys stored per platform. Values are
// never returned.
func (h *Handler) HandleListConfig(w http.ResponseWriter, r *http.Request) error {
	if h.creds == nil {
		respondWithJSON(w, http.StatusOK, []platformConfigView{})
		return nil
	}
	h.mu.Lock()
	owner := h.rec.Library().Owner().ID
	h.mu.Unlock()

	creds, err := h.creds.LoadCredentials(r.Context(), owner)
	if err != nil {
		return ErrInternalServerWrap("load credentials", err)
	}
	out := make([]platformConfigView, 0, len(creds))
	for p, blob := range creds {
		keys := make([]string, 0, len(blob))
		for k, v := range blob {
			if v != "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		out = append(out, platformConfigView{Platform: p, Keys: keys})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	respondWithJSON(w, http.StatusOK, out)
	return nil
}

// HandleSaveConfig merges a JSON object of credential values into the
// platform's stored config and reloads the collectors when it changed.
func (h *Handler) HandleSaveConfig(w http.ResponseWriter, r *http.Request) error {
	p, err := model.ParsePlatform(chi.URLParam(r, paramPlatform))
	if err != nil {
		return err
	}
	defer r.Body.Close()
	var blob map[string]string
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfigBytes))
	if err := decoder.Decode(&blob); err != nil {
		return ErrBadRequestWrap("Invalid config body: expected an object of string values", err)
	}

	h.mu.Lock()
	changed, err := h.rec.SaveCredentials(r.Context(), p, blob)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	resp := saveConfigResponse{Platform: p, Changed: changed}
	if changed {
		resp.Reloaded = h.reloadCollectors(r.Context())
	}
	respondWithJSON(w, http.StatusOK, resp)
	return nil
}

// HandleTestConfig makes one cheap authenticated call against the platform.
// A failed connection is reported in the body with status 200.
func (h *Handler) HandleTestConfig(w http.ResponseWriter, r *http.Request) error {
	p, err := model.ParsePlatform(chi.URLParam(r, paramPlatform))
	if err != nil {
		return err
	}
	if h.collectors == nil {
		return NewHTTPError(http.StatusServiceUnavailable, "No platform collectors configured")
	}
	resp := testConfigResponse{Platform: p, OK: true}
	if err := h.collectors.Test(r.Context(), p); err != nil {
		h.log.Warn("connection_test_failed", logging.String("platform", string(p)), logging.Err(err))
		resp.OK = false
		resp.Error = err.Error()
	}
	respondWithJSON(w, http.StatusOK, resp)
	return nil
}
