package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
)

const (
	apiBasePath     = "/api"
	contentBasePath = "/content"
	refreshPath     = "/refresh"
	importPath      = "/import"
	exportPath      = "/export"
	statsPath       = "/stats"
	configBasePath  = "/config"
)

const (
	duplicateSubPath  = "/duplicate"
	engagementSubPath = "/engagement"
	testSubPath       = "/test"
)

const (
	paramID       = "id"
	paramPlatform = "platform"
)

const requestTimeout = 60 * time.Second

// Routes builds the HTTP surface of h.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Route(apiBasePath, func(r chi.Router) {
		r.Use(setHeader(headerContentType, contentTypeJSONUTF8))
		configureContentRoutes(r, h)
		configureConfigRoutes(r, h)
		r.Post(refreshPath, MakeHandler(h.log, h.HandleRefresh))
		r.Post(importPath, MakeHandler(h.log, h.HandleImport))
		r.Get(exportPath, MakeHandler(h.log, h.HandleExport))
		r.Get(statsPath, MakeHandler(h.log, h.HandleStats))
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", handleHealthCheck)

	return r
}

func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

func configureContentRoutes(r chi.Router, h *Handler) {
	r.Route(contentBasePath, func(r chi.Router) {
		r.Get("/", MakeHandler(h.log, h.HandleListContent))
		r.Post("/", MakeHandler(h.log, h.HandleAddContent))
		// registered before /{id} so "duplicate" is not taken as an id
		r.Get(duplicateSubPath, MakeHandler(h.log, h.HandleCheckDuplicate))
		r.Route(pathWithParam("", paramID), func(r chi.Router) {
			r.Delete("/", MakeHandler(h.log, h.HandleDeleteContent))
			r.Get(engagementSubPath, MakeHandler(h.log, h.HandleContentEngagement))
		})
	})
}

func configureConfigRoutes(r chi.Router, h *Handler) {
	r.Route(configBasePath, func(r chi.Router) {
		r.Get("/", MakeHandler(h.log, h.HandleListConfig))
		r.Route(pathWithParam("", paramPlatform), func(r chi.Router) {
			r.Put("/", MakeHandler(h.log, h.HandleSaveConfig))
			r.Post(testSubPath, MakeHandler(h.log, h.HandleTestConfig))
		})
	})
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(headerContentType, "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http_request",
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.Int("status", ww.Status()),
					logging.Int("bytes", ww.BytesWritten()),
					logging.Duration("elapsed", time.Since(start)),
					logging.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func setHeader(key, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(key, value)
			next.ServeHTTP(w, r)
		})
	}
}
