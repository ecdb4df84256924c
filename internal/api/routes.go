package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/ledger"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Post("/webhook", webhookHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.AuthToken, cfg.Logger))

		r.Post("/upload/direct", directUploadHandler(cfg))
		r.Post("/upload/url", urlUploadHandler(cfg))
		r.Post("/upload/stream", streamUploadHandler(cfg))
		r.Get("/uploads", listUploadsHandler(cfg))
		r.Get("/status/{uid}", statusHandler(cfg))
		r.Get("/captions/{uid}", getCaptionsHandler(cfg))
		r.Post("/captions/generate/{uid}", generateCaptionHandler(cfg))
		r.Post("/analyze/{uid}", analyzeHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			Components: ComponentsResponse{
				Ingest:   cfg.Ingest != nil,
				Status:   cfg.Status != nil,
				Analysis: cfg.Analyzer != nil,
				Captions: cfg.Captions != nil,
				Ledger:   cfg.Ledger != nil,
				Webhooks: cfg.Webhooks != nil,
			},
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Status == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("video store"))
			return
		}

		payload, err := cfg.Status.GetStatus(r.Context(), chi.URLParam(r, "uid"))
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, payload)
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Analyzer == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("model backend"))
			return
		}

		report, err := cfg.Analyzer.Synthesize(r.Context(), chi.URLParam(r, "uid"))
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

func listUploadsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ledger == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("ledger"))
			return
		}

		limit := ledger.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		uploads, err := cfg.Ledger.RecentUploads(r.Context(), limit)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, UploadsResponse{Uploads: uploads})
	}
}

func notConfigured(component string) error {
	return apperr.Configuration(component+" is not configured", nil)
}
