// Package ledger records operational facts about ingests and store
// notifications. Analysis results are never stored here.
package ledger

import "time"

type Upload struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Method    string    `json:"method"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type WebhookEvent struct {
	ID            string    `json:"id"`
	UID           string    `json:"uid"`
	State         string    `json:"state"`
	ReadyToStream bool      `json:"ready_to_stream"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// UploadSummary is an upload joined with the latest webhook event for its
// uid, if one has arrived.
type UploadSummary struct {
	Upload
	LatestEvent *WebhookEvent `json:"latest_event,omitempty"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)
