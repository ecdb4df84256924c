package stream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultTimeout = 30 * time.Second

	tusVersion       = "1.0.0"
	mediaIDHeader    = "stream-media-id"
	maxResponseBytes = 1 << 20
)

// HTTPClient talks to the store's REST API under
// {baseURL}/accounts/{accountID}/stream with a bearer credential.
type HTTPClient struct {
	baseURL   string
	accountID string
	token     string
	logger    *slog.Logger

	// httpClient carries the per-call timeout; transferClient is used for
	// payload uploads and is bounded only by the request context.
	httpClient     *http.Client
	transferClient *http.Client
}

func NewHTTPClient(baseURL, accountID, token string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		accountID:      accountID,
		token:          token,
		logger:         logger,
		httpClient:     &http.Client{Timeout: timeout},
		transferClient: &http.Client{},
	}
}

func (c *HTTPClient) endpoint(path string) string {
	return fmt.Sprintf("%s/accounts/%s/stream%s", c.baseURL, url.PathEscape(c.accountID), path)
}

func (c *HTTPClient) CopyFromURL(ctx context.Context, req CopyRequest) (*VideoRecord, error) {
	body := map[string]any{
		"url":               req.URL,
		"requireSignedURLs": req.RequireSigned,
	}
	if len(req.Meta) > 0 {
		body["meta"] = req.Meta
	}

	var video VideoRecord
	if err := c.doJSON(ctx, http.MethodPost, "/copy", body, &video); err != nil {
		return nil, err
	}

	c.logger.Info("copy accepted by video store", "uid", video.UID)
	return &video, nil
}

func (c *HTTPClient) CreateTusSession(ctx context.Context, req TusSessionRequest) (*TusSession, error) {
	target := c.endpoint("")
	if req.DirectUser {
		target += "?direct_user=true"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Tus-Resumable", tusVersion)
	httpReq.Header.Set("Upload-Length", strconv.FormatInt(req.Length, 10))
	if md := uploadMetadata(req); md != "" {
		httpReq.Header.Set("Upload-Metadata", md)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: "resumable session response has no Location header"}
	}

	uid := resp.Header.Get(mediaIDHeader)
	if uid == "" {
		uid = lastPathSegment(location)
	}

	c.logger.Info("resumable upload session created",
		"uid", uid,
		"length", req.Length,
		"direct_user", req.DirectUser,
	)
	return &TusSession{UploadURL: location, UID: uid}, nil
}

// PatchTus writes payload at offset 0 of the session in a single request
// and returns the identifier the store reports for the finished upload.
func (c *HTTPClient) PatchTus(ctx context.Context, uploadURL string, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, uploadURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Tus-Resumable", tusVersion)
	req.Header.Set("Upload-Offset", "0")
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	if strings.HasPrefix(uploadURL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.transferClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	uid := resp.Header.Get(mediaIDHeader)
	c.logger.Info("payload written to video store", "uid", uid, "bytes", len(payload))
	return uid, nil
}

func (c *HTTPClient) GetVideo(ctx context.Context, uid string) (*VideoRecord, error) {
	var video VideoRecord
	if err := c.doJSON(ctx, http.MethodGet, "/"+url.PathEscape(uid), nil, &video); err != nil {
		return nil, err
	}
	return &video, nil
}

func (c *HTTPClient) UpdateMeta(ctx context.Context, uid string, meta map[string]string) error {
	body := map[string]any{"meta": meta}
	return c.doJSON(ctx, http.MethodPost, "/"+url.PathEscape(uid), body, nil)
}

func (c *HTTPClient) ListCaptions(ctx context.Context, uid string) ([]CaptionTrack, error) {
	var tracks []CaptionTrack
	if err := c.doJSON(ctx, http.MethodGet, "/"+url.PathEscape(uid)+"/captions", nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// GetCaptionVTT returns the raw WebVTT body. Unlike the other endpoints it
// is not wrapped in a JSON envelope.
func (c *HTTPClient) GetCaptionVTT(ctx context.Context, uid, lang string) (string, error) {
	path := fmt.Sprintf("/%s/captions/%s/vtt", url.PathEscape(uid), url.PathEscape(lang))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err != nil {
		return "", fmt.Errorf("read caption track: %w", err)
	}
	return string(body), nil
}

func (c *HTTPClient) GenerateCaption(ctx context.Context, uid, lang string) (*CaptionTrack, error) {
	path := fmt.Sprintf("/%s/captions/%s/generate", url.PathEscape(uid), url.PathEscape(lang))
	var track CaptionTrack
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		c.logger.Warn("video store request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"retryable", apiErr.IsRetryable(),
		)
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("unmarshal %s %s response: %w", method, path, err)
	}
	if !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("unmarshal %s %s result: %w", method, path, err)
	}
	return nil
}

// uploadMetadata encodes the tus Upload-Metadata header: comma separated
// "key base64(value)" pairs, with bare keys for boolean flags.
func uploadMetadata(req TusSessionRequest) string {
	var pairs []string
	if req.Name != "" {
		pairs = append(pairs, "name "+b64(req.Name))
	}
	if req.MaxDurationSeconds > 0 {
		pairs = append(pairs, "maxDurationSeconds "+b64(strconv.Itoa(req.MaxDurationSeconds)))
	}
	if req.RequireSigned {
		pairs = append(pairs, "requiresignedurls")
	}
	return strings.Join(pairs, ",")
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func lastPathSegment(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		raw = u.Path
	}
	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
