package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/heimdex/heimdex-stream/internal/logging"
	"github.com/heimdex/heimdex-stream/internal/stream"
	"github.com/heimdex/heimdex-stream/internal/webhook"
)

// webhookHandler accepts processing notifications from the store. Ledger
// failures are logged and still acknowledged so the store does not retry.
func webhookHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "cannot read request body", "BAD_REQUEST")
			return
		}

		if cfg.Webhooks != nil {
			if err := cfg.Webhooks.Verify(r.Header.Get(webhook.SignatureHeader), body); err != nil {
				cfg.Logger.Warn("webhook signature rejected", "error", err)
				WriteError(w, http.StatusUnauthorized, "invalid webhook signature", "UNAUTHORIZED")
				return
			}
		}

		var video stream.VideoRecord
		if err := json.Unmarshal(body, &video); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if video.UID == "" {
			WriteError(w, http.StatusBadRequest, "uid is required", "BAD_REQUEST")
			return
		}

		logger := logging.WithVideoID(cfg.Logger, video.UID)
		logger.Info("webhook received", "state", video.Status.State, "ready_to_stream", video.ReadyToStream)

		if cfg.Ledger != nil {
			if _, err := cfg.Ledger.RecordWebhook(r.Context(), &video); err != nil {
				logger.Error("failed to record webhook", "error", err)
			}
		}

		WriteJSON(w, http.StatusOK, WebhookResponse{Received: true})
	}
}
