package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultProbeTimeout = 10 * time.Second

// Prober checks that a keyframe URL resolves to something before it is
// handed to the model.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber issues a HEAD request per URL.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProber(client *http.Client, timeout time.Duration) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &HTTPProber{client: client, timeout: timeout}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("head request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("head request returned HTTP %d", resp.StatusCode)
	}
	return nil
}
