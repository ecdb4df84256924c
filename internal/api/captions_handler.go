package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/captions"
	"github.com/heimdex/heimdex-stream/internal/stream"
)

const defaultCaptionLanguage = "en"

func generateCaptionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Captions == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("video store"))
			return
		}

		var req GenerateCaptionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		lang := strings.TrimSpace(req.Language)
		if lang == "" {
			lang = defaultCaptionLanguage
		}

		track, err := cfg.Captions.GenerateCaption(r.Context(), chi.URLParam(r, "uid"), lang)
		if err != nil {
			WriteAppError(w, r, cfg.Logger, stream.Classify(err, "generate caption"))
			return
		}
		WriteJSON(w, http.StatusAccepted, track)
	}
}

// getCaptionsHandler renders a caption track as json (default), text, csv
// or the raw vtt.
func getCaptionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Captions == nil {
			WriteAppError(w, r, cfg.Logger, notConfigured("video store"))
			return
		}

		uid := chi.URLParam(r, "uid")
		lang := r.URL.Query().Get("lang")
		if lang == "" {
			lang = defaultCaptionLanguage
		}
		format := strings.ToLower(r.URL.Query().Get("format"))
		switch format {
		case "":
			format = "json"
		case "json", "text", "csv", "vtt":
		default:
			WriteError(w, http.StatusBadRequest, "format must be one of json, text, csv, vtt", "BAD_REQUEST")
			return
		}

		raw, err := cfg.Captions.GetCaptionVTT(r.Context(), uid, lang)
		if err != nil {
			if stream.IsNotFound(err) {
				err = apperr.NotFound("caption track not found")
			} else {
				err = stream.Classify(err, "fetch caption track")
			}
			WriteAppError(w, r, cfg.Logger, err)
			return
		}

		switch format {
		case "vtt":
			writeText(w, "text/vtt; charset=utf-8", raw)
		case "text":
			writeText(w, "text/plain; charset=utf-8", captions.RenderText(captions.Parse(raw)))
		case "csv":
			writeText(w, "text/csv; charset=utf-8", captions.RenderCSV(captions.Parse(raw)))
		default:
			transcript := captions.Transcode(raw)
			WriteJSON(w, http.StatusOK, CaptionsResponse{
				UID:       uid,
				Language:  lang,
				Segments:  transcript.Segments,
				PlainText: transcript.PlainText,
				CSV:       transcript.CSV,
			})
		}
	}
}

func writeText(w http.ResponseWriter, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
