package webhook

import (
	"errors"
	"testing"
	"time"
)

func TestVerifier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"uid":"vid-1","readyToStream":true,"status":{"state":"ready"}}`)

	v := NewVerifier("whsec", 0)
	v.now = func() time.Time { return now }

	tests := []struct {
		name   string
		header string
		body   []byte
		want   error
	}{
		{"valid", Header("whsec", now, body), body, nil},
		{"valid within tolerance", Header("whsec", now.Add(-4*time.Minute), body), body, nil},
		{"missing", "", body, ErrMissingSignature},
		{"no sig", "time=1700000000", body, ErrMalformedSignature},
		{"bad time", "time=abc,sig1=00", body, ErrMalformedSignature},
		{"bad hex", "time=1700000000,sig1=zz", body, ErrMalformedSignature},
		{"expired", Header("whsec", now.Add(-6*time.Minute), body), body, ErrSignatureExpired},
		{"future", Header("whsec", now.Add(6*time.Minute), body), body, ErrSignatureExpired},
		{"wrong secret", Header("other", now, body), body, ErrSignatureMismatch},
		{"tampered body", Header("whsec", now, body), []byte(`{"uid":"vid-2"}`), ErrSignatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.header, tt.body)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Verify() = %v, want %v", err, tt.want)
			}
		})
	}
}
