// Package signing issues time-limited RS256 tokens that stand in for a
// video identifier in playback and thumbnail URLs.
package signing

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heimdex/heimdex-stream/internal/apperr"
)

const (
	DefaultTTL = time.Hour

	// ClockSkew backdates nbf so verifiers with a slightly fast clock do not
	// reject a freshly minted token.
	ClockSkew = 60 * time.Second

	thumbnailHeight = 480
)

type Options struct {
	Downloadable bool
	// ThumbnailTime selects the frame (seconds) for ThumbnailURL; zero
	// leaves the choice to the store.
	ThumbnailTime float64
	// Domain overrides the delivery domain for this call only.
	Domain string
}

type SignedURLs struct {
	Token        string    `json:"token"`
	PlaybackURL  string    `json:"playbackUrl"`
	DashURL      string    `json:"dashUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type playbackClaims struct {
	KeyID        string `json:"kid"`
	Downloadable bool   `json:"downloadable,omitempty"`
	jwt.RegisteredClaims
}

// Issuer holds the parsed signing key. It is immutable after NewIssuer and
// safe for concurrent use.
type Issuer struct {
	key    *rsa.PrivateKey
	keyID  string
	domain string
	now    func() time.Time
}

// NewIssuer parses keyPEM, which may be raw PEM, PEM with escaped newlines,
// or base64-encoded PEM. Any problem is a configuration error.
func NewIssuer(keyPEM, keyID, domain string) (*Issuer, error) {
	if strings.TrimSpace(keyPEM) == "" {
		return nil, apperr.Configuration("signing key is not configured", nil)
	}
	if keyID == "" {
		return nil, apperr.Configuration("signing key id is not configured", nil)
	}
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, apperr.Configuration("delivery domain is not configured", nil)
	}

	material, err := decodeKeyMaterial(keyPEM)
	if err != nil {
		return nil, apperr.Configuration("signing key is not valid PEM or base64", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(material)
	if err != nil {
		return nil, apperr.Configuration("cannot parse signing key", err)
	}

	return &Issuer{key: key, keyID: keyID, domain: domain, now: time.Now}, nil
}

// NewIssuerFromKey builds an Issuer around an already parsed key.
func NewIssuerFromKey(key *rsa.PrivateKey, keyID, domain string) *Issuer {
	return &Issuer{key: key, keyID: keyID, domain: NormalizeDomain(domain), now: time.Now}
}

func (i *Issuer) KeyID() string {
	return i.keyID
}

func (i *Issuer) Domain() string {
	return i.domain
}

// Token signs a token for videoID that expires ttl from now.
func (i *Issuer) Token(videoID string, ttl time.Duration, downloadable bool) (string, time.Time, error) {
	if videoID == "" {
		return "", time.Time{}, errors.New("video id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := i.now()
	expiresAt := now.Add(ttl)

	claims := playbackClaims{
		KeyID:        i.keyID,
		Downloadable: downloadable,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   videoID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now.Add(-ClockSkew)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keyID

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Issue signs a token and embeds it in the manifest and thumbnail URLs in
// place of the video id.
func (i *Issuer) Issue(videoID string, ttl time.Duration, opts Options) (*SignedURLs, error) {
	token, expiresAt, err := i.Token(videoID, ttl, opts.Downloadable)
	if err != nil {
		return nil, err
	}

	domain := i.domain
	if opts.Domain != "" {
		domain = NormalizeDomain(opts.Domain)
	}

	return &SignedURLs{
		Token:        token,
		PlaybackURL:  ManifestURL(domain, token),
		DashURL:      DashURL(domain, token),
		ThumbnailURL: ThumbnailURL(domain, token, opts.ThumbnailTime),
		ExpiresAt:    expiresAt,
	}, nil
}

// ManifestURL is the HLS manifest for pathID, which is either a video id
// (public videos) or a signed token.
func ManifestURL(domain, pathID string) string {
	return fmt.Sprintf("https://%s/%s/manifest/video.m3u8", domain, pathID)
}

func DashURL(domain, pathID string) string {
	return fmt.Sprintf("https://%s/%s/manifest/video.mpd", domain, pathID)
}

func ThumbnailURL(domain, pathID string, seconds float64) string {
	base := fmt.Sprintf("https://%s/%s/thumbnails/thumbnail.jpg", domain, pathID)
	if seconds <= 0 {
		return base
	}
	return fmt.Sprintf("%s?time=%ss&height=%d", base, strconv.FormatFloat(seconds, 'f', -1, 64), thumbnailHeight)
}

// NormalizeDomain strips a scheme and trailing slash from a configured host.
func NormalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}

func decodeKeyMaterial(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "-----BEGIN") {
		return []byte(strings.ReplaceAll(raw, `\n`, "\n")), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}
