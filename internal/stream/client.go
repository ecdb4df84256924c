// Package stream is the client for the remote video store: a Stream-style
// REST API that ingests, transcodes and serves videos and their captions.
package stream

import (
	"context"
	"encoding/json"
	"strconv"
)

// Client is the set of store operations the pipeline consumes. Every call
// is a single attempt; callers decide whether to retry.
type Client interface {
	CopyFromURL(ctx context.Context, req CopyRequest) (*VideoRecord, error)
	CreateTusSession(ctx context.Context, req TusSessionRequest) (*TusSession, error)
	PatchTus(ctx context.Context, uploadURL string, payload []byte) (string, error)
	GetVideo(ctx context.Context, uid string) (*VideoRecord, error)
	UpdateMeta(ctx context.Context, uid string, meta map[string]string) error
	ListCaptions(ctx context.Context, uid string) ([]CaptionTrack, error)
	GetCaptionVTT(ctx context.Context, uid, lang string) (string, error)
	GenerateCaption(ctx context.Context, uid, lang string) (*CaptionTrack, error)
}

const (
	StateQueued     = "queued"
	StateInProgress = "inprogress"
	StateReady      = "ready"
	StateError      = "error"
)

type VideoStatus struct {
	State           string `json:"state"`
	PctComplete     string `json:"pctComplete,omitempty"`
	ErrorReasonCode string `json:"errorReasonCode,omitempty"`
	ErrorReasonText string `json:"errorReasonText,omitempty"`
}

// Percent parses PctComplete, which the store reports as a decimal string.
func (s VideoStatus) Percent() float64 {
	if s.PctComplete == "" {
		return 0
	}
	pct, err := strconv.ParseFloat(s.PctComplete, 64)
	if err != nil {
		return 0
	}
	return pct
}

type Playback struct {
	HLS  string `json:"hls,omitempty"`
	DASH string `json:"dash,omitempty"`
}

type VideoRecord struct {
	UID               string         `json:"uid"`
	Thumbnail         string         `json:"thumbnail,omitempty"`
	ReadyToStream     bool           `json:"readyToStream"`
	Status            VideoStatus    `json:"status"`
	Meta              map[string]any `json:"meta,omitempty"`
	Duration          float64        `json:"duration"`
	Playback          Playback       `json:"playback"`
	RequireSignedURLs bool           `json:"requireSignedURLs"`
	Created           string         `json:"created,omitempty"`
}

// DurationSeconds reports the video length. The store uses -1 (or omits
// the field) until transcoding has measured it.
func (v *VideoRecord) DurationSeconds() (float64, bool) {
	if v == nil || v.Duration <= 0 {
		return 0, false
	}
	return v.Duration, true
}

// ErrorInfo returns the store's failure code and message, if any.
func (v *VideoRecord) ErrorInfo() (code, message string, ok bool) {
	if v == nil {
		return "", "", false
	}
	if v.Status.ErrorReasonCode == "" && v.Status.ErrorReasonText == "" {
		return "", "", false
	}
	return v.Status.ErrorReasonCode, v.Status.ErrorReasonText, true
}

type CaptionTrack struct {
	Language  string `json:"language"`
	Label     string `json:"label"`
	Generated bool   `json:"generated,omitempty"`
	Status    string `json:"status,omitempty"`
}

type CopyRequest struct {
	URL           string
	Meta          map[string]string
	RequireSigned bool
}

type TusSessionRequest struct {
	// Length is the total payload size declared up front.
	Length             int64
	Name               string
	MaxDurationSeconds int
	RequireSigned      bool
	// DirectUser asks for a one-time URL the browser can upload to
	// without the account credential.
	DirectUser bool
}

type TusSession struct {
	UploadURL string `json:"uploadURL"`
	UID       string `json:"uid"`
}

type envelope struct {
	Success bool            `json:"success"`
	Errors  []envelopeError `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type envelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
