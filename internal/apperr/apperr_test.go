package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", BadRequest("x"), http.StatusBadRequest},
		{"unauthorized", New(KindUnauthorized, "x"), http.StatusUnauthorized},
		{"not found", NotFound("x"), http.StatusNotFound},
		{"conflict", Conflict("x"), http.StatusConflict},
		{"upstream", Upstream("x", "body", nil), http.StatusBadGateway},
		{"too large", PayloadTooLarge(10, 5), http.StatusRequestEntityTooLarge},
		{"unprocessable", Unprocessable("x", nil), http.StatusUnprocessableEntity},
		{"configuration", Configuration("x", nil), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("inner")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDetails_CarriesUpstreamBody(t *testing.T) {
	err := fmt.Errorf("status: %w", Upstream("store rejected request", `{"errors":[1]}`, nil))
	if got := Details(err); got != `{"errors":[1]}` {
		t.Fatalf("Details() = %q, want upstream body", got)
	}
	if Details(errors.New("plain")) != "" {
		t.Fatal("Details() of plain error should be empty")
	}
}

func TestWrap_Unwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindUpstream, "fetch failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find wrapped cause")
	}
	if !Is(err, KindUpstream) {
		t.Fatal("Is(KindUpstream) = false, want true")
	}
	if Is(nil, KindInternal) {
		t.Fatal("Is(nil) should be false")
	}
}

func TestKind_String(t *testing.T) {
	if KindUnprocessable.String() != "UNPROCESSABLE_ENTITY" {
		t.Errorf("KindUnprocessable.String() = %q", KindUnprocessable.String())
	}
	if Kind(99).String() != "INTERNAL_ERROR" {
		t.Errorf("unknown kind string = %q", Kind(99).String())
	}
}
