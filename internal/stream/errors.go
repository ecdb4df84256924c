package stream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/heimdex/heimdex-stream/internal/apperr"
)

// APIError is a non-success answer from the store. Body is kept verbatim
// (truncated) for diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("video store: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// Classify converts a store failure into the shared taxonomy: 404 becomes
// NotFound, everything else (including transport failures) is Upstream.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsNotFound() {
			return apperr.Wrap(apperr.KindNotFound, "video not found", err)
		}
		return apperr.Upstream(op+" failed", apiErr.Body, err)
	}
	return apperr.Upstream(op+" failed", "", err)
}
