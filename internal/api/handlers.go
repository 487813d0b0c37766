package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"contentpulse/internal/archive"
	"contentpulse/internal/logging"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
)

// AppHandler is a handler that returns an error instead of writing one.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler, turning returned errors into JSON
// error responses. Known sentinel errors map to 4xx codes; anything else is a 500.
func MakeHandler(log logging.Logger, handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler(w, r)
		if err == nil {
			return
		}
		httpErr := classify(err)
		fields := []logging.Field{
			logging.Int("code", httpErr.Code),
			logging.String("path", r.URL.Path),
			logging.String("method", r.Method),
			logging.String("request_id", middleware.GetReqID(r.Context())),
			logging.Err(err),
		}
		if httpErr.Code >= 500 {
			log.Error("request_failed", fields...)
		} else {
			log.Warn("request_rejected", fields...)
		}
		body := map[string]string{"error": httpErr.Message}
		var dup *reconcile.DuplicateError
		if errors.As(err, &dup) {
			body["existingId"] = dup.ExistingID
		}
		respondWithJSON(w, httpErr.Code, body)
	}
}

func classify(err error) *HTTPError {
	var httpErr *HTTPError
	var dup *reconcile.DuplicateError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.As(err, &dup):
		return ErrConflictWrap(dup.Error(), err)
	case errors.Is(err, model.ErrNotFound):
		return ErrNotFound("")
	case errors.Is(err, archive.ErrInvalidArchive),
		errors.Is(err, reconcile.ErrInvalidContent),
		errors.Is(err, reconcile.ErrUnknownPolicy),
		errors.Is(err, reconcile.ErrInvalidCredentials),
		errors.Is(err, model.ErrUnknownPlatform):
		return ErrBadRequestWrap(err.Error(), err)
	case errors.Is(err, reconcile.ErrInvalidTransition):
		return ErrConflictWrap(err.Error(), err)
	default:
		return ErrInternalServerWrap("unhandled", err)
	}
}
