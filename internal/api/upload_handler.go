package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/heimdex/heimdex-stream/internal/ingest"
)

const maxJSONBody = 1 << 20

// UploadNameHeader names the file for raw stream uploads.
const UploadNameHeader = "X-Upload-Name"

func directUploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ingest == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("video store"))
			return
		}

		var req DirectUploadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.MaxDurationSeconds < 0 || req.UploadLength < 0 {
			WriteError(w, http.StatusBadRequest, "maxDurationSeconds and uploadLength must not be negative", "BAD_REQUEST")
			return
		}

		result, err := cfg.Ingest.DirectUpload(r.Context(), ingest.DirectRequest{
			Length:             req.UploadLength,
			MaxDurationSeconds: req.MaxDurationSeconds,
			Name:               req.Name,
			Meta:               req.Meta,
			RequireSigned:      req.RequireSignedURLs,
		})
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, result)
	}
}

func urlUploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ingest == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("video store"))
			return
		}

		var req URLUploadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			WriteError(w, http.StatusBadRequest, "url is required", "BAD_REQUEST")
			return
		}

		result, err := cfg.Ingest.Ingest(r.Context(), ingest.Source{URL: strings.TrimSpace(req.URL), Size: -1}, req.Meta)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, result)
	}
}

// streamUploadHandler forwards the raw request body through a resumable
// session without a copy attempt.
func streamUploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ingest == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("video store"))
			return
		}

		name := strings.TrimSpace(r.Header.Get(UploadNameHeader))
		var meta map[string]string
		if name != "" {
			meta = map[string]string{"name": name}
		}

		// One byte past the ceiling lets the orchestrator tell "exactly at
		// the limit" from "over it".
		body := http.MaxBytesReader(w, r.Body, cfg.Ingest.MaxStreamBytes()+1)

		result, err := cfg.Ingest.Ingest(r.Context(), ingest.Source{
			Body: body,
			Size: r.ContentLength,
			Name: name,
		}, meta)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, result)
	}
}

// decodeJSON decodes an optional JSON body. An empty body leaves v at its
// zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
