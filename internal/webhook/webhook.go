// Package webhook authenticates processing notifications sent by the
// video store.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader  = "Webhook-Signature"
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingSignature   = errors.New("webhook signature header is missing")
	ErrMalformedSignature = errors.New("webhook signature header is malformed")
	ErrSignatureMismatch  = errors.New("webhook signature does not match")
	ErrSignatureExpired   = errors.New("webhook signature timestamp is outside the tolerance")
)

// Verifier checks "time=<unix>,sig1=<hex>" headers, where sig1 is
// HMAC-SHA256 over "<time>.<body>" keyed with the shared secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

func (v *Verifier) Verify(header string, body []byte) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "time":
			ts = value
		case "sig1":
			sig = value
		}
	}
	if ts == "" || sig == "" {
		return ErrMalformedSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return ErrMalformedSignature
	}

	age := v.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return ErrSignatureExpired
	}

	if !hmac.Equal(got, Sign(v.secret, ts, body)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes the raw sig1 value for a timestamp and body.
func Sign(secret []byte, ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Header builds a signature header, mainly for tests and local tooling.
func Header(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "time=" + ts + ",sig1=" + hex.EncodeToString(Sign([]byte(secret), ts, body))
}
