// Package ingest drives videos into the remote store: a server-side copy
// first, then a single buffered stream-through upload when copy fails, or
// a browser-facing resumable session that never touches the payload.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/logging"
	"github.com/heimdex/heimdex-stream/internal/stream"
)

const (
	MethodCopy          = "copy"
	MethodStreamThrough = "stream-through"
	MethodDirectBrowser = "direct-browser"

	DefaultMaxStreamBytes     int64 = 100 << 20
	DefaultMaxDurationSeconds       = 3600

	maxErrorBody = 4096
)

// Source is either a URL or an already open byte stream. Size is -1 when
// the stream length is unknown.
type Source struct {
	URL  string
	Body io.Reader
	Size int64
	Name string
}

type Result struct {
	UID       string `json:"uid"`
	Method    string `json:"method"`
	Thumbnail string `json:"thumbnail,omitempty"`
	UploadURL string `json:"uploadURL,omitempty"`
}

type DirectRequest struct {
	// Length is the size the browser will upload. Zero reserves the
	// stream-through ceiling.
	Length             int64
	MaxDurationSeconds int
	Name               string
	Meta               map[string]string
	// RequireSigned overrides the configured default when set.
	RequireSigned *bool
}

// Recorder persists the operational fact that an ingest succeeded.
type Recorder interface {
	RecordUpload(ctx context.Context, uid, method, sourceURL string) error
}

type Config struct {
	RequireSigned      bool
	MaxStreamBytes     int64
	MaxDurationSeconds int
}

type Orchestrator struct {
	store    stream.Client
	fetcher  *http.Client
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
}

// New builds an Orchestrator. fetcher downloads stream-through sources and
// defaults to a client without a global timeout; recorder may be nil.
func New(store stream.Client, fetcher *http.Client, cfg Config, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if fetcher == nil {
		fetcher = &http.Client{}
	}
	if cfg.MaxStreamBytes <= 0 {
		cfg.MaxStreamBytes = DefaultMaxStreamBytes
	}
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = DefaultMaxDurationSeconds
	}
	return &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
	}
}

func (o *Orchestrator) MaxStreamBytes() int64 {
	return o.cfg.MaxStreamBytes
}

// Ingest chooses exactly one strategy per call. URL sources try copy and
// fall back to stream-through once; byte streams go straight to
// stream-through because there is nothing for the store to fetch.
func (o *Orchestrator) Ingest(ctx context.Context, src Source, meta map[string]string) (*Result, error) {
	switch {
	case src.URL != "":
		if err := validateSourceURL(src.URL); err != nil {
			return nil, err
		}
		return o.ingestURL(ctx, src, meta)
	case src.Body != nil:
		return o.ingestStream(ctx, src, meta)
	default:
		return nil, apperr.BadRequest("a source url or request body is required")
	}
}

func (o *Orchestrator) ingestURL(ctx context.Context, src Source, meta map[string]string) (*Result, error) {
	tagged := cloneMeta(meta)
	tagged["source"] = src.URL

	logger := o.logger.With("source_url", logging.SanitizeURL(src.URL))

	video, err := o.store.CopyFromURL(ctx, stream.CopyRequest{
		URL:           src.URL,
		Meta:          tagged,
		RequireSigned: o.cfg.RequireSigned,
	})
	if err == nil {
		result := &Result{UID: video.UID, Method: MethodCopy, Thumbnail: video.Thumbnail}
		o.record(ctx, result, src.URL)
		logger.Info("ingested via copy", "uid", video.UID)
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, apperr.Upstream("copy from url interrupted", "", ctx.Err())
	}

	logger.Warn("copy failed, falling back to stream-through", "error", err)

	payload, err := o.fetchSource(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	name := src.Name
	if name == "" {
		name = nameFromURL(src.URL)
	}

	result, err := o.streamThrough(ctx, payload, name, tagged)
	if err != nil {
		return nil, err
	}
	o.record(ctx, result, src.URL)
	return result, nil
}

func (o *Orchestrator) ingestStream(ctx context.Context, src Source, meta map[string]string) (*Result, error) {
	if src.Size > o.cfg.MaxStreamBytes {
		return nil, apperr.PayloadTooLarge(src.Size, o.cfg.MaxStreamBytes)
	}

	payload, err := readCapped(src.Body, o.cfg.MaxStreamBytes)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, apperr.BadRequest("request body is empty")
	}

	result, err := o.streamThrough(ctx, payload, src.Name, cloneMeta(meta))
	if err != nil {
		return nil, err
	}
	o.record(ctx, result, "")
	return result, nil
}

// fetchSource downloads url fully into memory, refusing anything larger
// than the configured ceiling whether or not Content-Length is declared.
func (o *Orchestrator) fetchSource(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, apperr.BadRequest(fmt.Sprintf("invalid source url: %v", err))
	}

	resp, err := o.fetcher.Do(req)
	if err != nil {
		return nil, apperr.Upstream("fetch source failed", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperr.Upstream(fmt.Sprintf("fetch source returned HTTP %d", resp.StatusCode), string(body), nil)
	}

	if resp.ContentLength > o.cfg.MaxStreamBytes {
		return nil, apperr.PayloadTooLarge(resp.ContentLength, o.cfg.MaxStreamBytes)
	}

	payload, err := readCapped(resp.Body, o.cfg.MaxStreamBytes)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, apperr.Upstream("fetch source returned an empty body", "", nil)
	}
	return payload, nil
}

// streamThrough opens a resumable session sized to payload and writes it
// in one request at offset 0. It is attempted at most once per call.
func (o *Orchestrator) streamThrough(ctx context.Context, payload []byte, name string, meta map[string]string) (*Result, error) {
	started := time.Now()

	session, err := o.store.CreateTusSession(ctx, stream.TusSessionRequest{
		Length:             int64(len(payload)),
		Name:               name,
		MaxDurationSeconds: o.cfg.MaxDurationSeconds,
		RequireSigned:      o.cfg.RequireSigned,
	})
	if err != nil {
		return nil, storeError("create upload session", err)
	}

	uid, err := o.store.PatchTus(ctx, session.UploadURL, payload)
	if err != nil {
		return nil, storeError("upload payload", err)
	}
	if uid == "" {
		uid = session.UID
	}
	if uid == "" {
		return nil, apperr.Upstream("video store did not report a video id", "", nil)
	}

	if len(meta) > 0 {
		if err := o.store.UpdateMeta(ctx, uid, meta); err != nil {
			o.logger.Warn("failed to attach metadata after stream-through", "uid", uid, "error", err)
		}
	}

	o.logger.Info("ingested via stream-through",
		"uid", uid,
		"bytes", len(payload),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return &Result{UID: uid, Method: MethodStreamThrough}, nil
}

// DirectUpload mints a resumable session the caller uploads to directly.
func (o *Orchestrator) DirectUpload(ctx context.Context, req DirectRequest) (*Result, error) {
	maxDuration := req.MaxDurationSeconds
	if maxDuration <= 0 {
		maxDuration = o.cfg.MaxDurationSeconds
	}
	requireSigned := o.cfg.RequireSigned
	if req.RequireSigned != nil {
		requireSigned = *req.RequireSigned
	}
	name := req.Name
	if name == "" {
		name = req.Meta["name"]
	}

	length := req.Length
	if length <= 0 {
		length = o.cfg.MaxStreamBytes
	}

	session, err := o.store.CreateTusSession(ctx, stream.TusSessionRequest{
		Length:             length,
		Name:               name,
		MaxDurationSeconds: maxDuration,
		RequireSigned:      requireSigned,
		DirectUser:         true,
	})
	if err != nil {
		return nil, storeError("create direct upload session", err)
	}

	result := &Result{UID: session.UID, Method: MethodDirectBrowser, UploadURL: session.UploadURL}
	o.record(ctx, result, "")
	o.logger.Info("direct upload session created", "uid", session.UID, "max_duration_seconds", maxDuration)
	return result, nil
}

func (o *Orchestrator) record(ctx context.Context, result *Result, sourceURL string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordUpload(ctx, result.UID, result.Method, sourceURL); err != nil {
		o.logger.Warn("failed to record upload", "uid", result.UID, "method", result.Method, "error", err)
	}
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperr.Upstream("read source failed", "", err)
	}
	if int64(len(payload)) > limit {
		return nil, apperr.New(apperr.KindPayloadTooLarge, fmt.Sprintf("source exceeds the %d byte limit", limit))
	}
	return payload, nil
}

func storeError(op string, err error) error {
	var apiErr *stream.APIError
	if errors.As(err, &apiErr) {
		return apperr.Upstream(op+" failed", apiErr.Body, err)
	}
	return apperr.Upstream(op+" failed", "", err)
}

func validateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.BadRequest("source url must be an absolute http(s) url")
	}
	return nil
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(base)
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
