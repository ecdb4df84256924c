package api

import (
	"github.com/heimdex/heimdex-stream/internal/captions"
	"github.com/heimdex/heimdex-stream/internal/ledger"
)

type HealthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version"`
	UptimeS    int64              `json:"uptime_s"`
	Components ComponentsResponse `json:"components"`
}

// ComponentsResponse reports which optional services were configured at
// startup.
type ComponentsResponse struct {
	Ingest   bool `json:"ingest"`
	Status   bool `json:"status"`
	Analysis bool `json:"analysis"`
	Captions bool `json:"captions"`
	Ledger   bool `json:"ledger"`
	Webhooks bool `json:"webhooks"`
}

type DirectUploadRequest struct {
	MaxDurationSeconds int               `json:"maxDurationSeconds,omitempty"`
	UploadLength       int64             `json:"uploadLength,omitempty"`
	Name               string            `json:"name,omitempty"`
	Meta               map[string]string `json:"meta,omitempty"`
	RequireSignedURLs  *bool             `json:"requireSignedURLs,omitempty"`
}

type URLUploadRequest struct {
	URL  string            `json:"url"`
	Meta map[string]string `json:"meta,omitempty"`
}

type GenerateCaptionRequest struct {
	Language string `json:"language,omitempty"`
}

type CaptionsResponse struct {
	UID       string             `json:"uid"`
	Language  string             `json:"language"`
	Segments  []captions.Segment `json:"segments"`
	PlainText string             `json:"plainText"`
	CSV       string             `json:"csvTranscript"`
}

type UploadsResponse struct {
	Uploads []*ledger.UploadSummary `json:"uploads"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
