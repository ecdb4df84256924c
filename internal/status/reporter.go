// Package status composes the store's processing state with signed
// playback and thumbnail URLs into the payload clients poll.
package status

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/keyframes"
	"github.com/heimdex/heimdex-stream/internal/signing"
	"github.com/heimdex/heimdex-stream/internal/stream"
)

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Playback struct {
	HLS  string `json:"hls"`
	DASH string `json:"dash"`
}

type Thumbnail struct {
	Time float64 `json:"time"`
	URL  string  `json:"url"`
}

type Payload struct {
	UID           string                `json:"uid"`
	State         string                `json:"state"`
	PctComplete   float64               `json:"pctComplete"`
	ReadyToStream bool                  `json:"readyToStream"`
	Duration      *float64              `json:"duration,omitempty"`
	Error         *ErrorInfo            `json:"error,omitempty"`
	Signed        bool                  `json:"signed"`
	Playback      *Playback             `json:"playback,omitempty"`
	Thumbnail     string                `json:"thumbnail,omitempty"`
	Thumbnails    []Thumbnail           `json:"thumbnails,omitempty"`
	Captions      []stream.CaptionTrack `json:"captions"`
	ExpiresAt     *time.Time            `json:"expiresAt,omitempty"`
}

// Reporter builds status payloads. issuer may be nil, in which case only
// public videos can be given playback URLs.
type Reporter struct {
	store  stream.Client
	issuer *signing.Issuer
	domain string
	ttl    time.Duration
	logger *slog.Logger
}

func NewReporter(store stream.Client, issuer *signing.Issuer, domain string, ttl time.Duration, logger *slog.Logger) *Reporter {
	if ttl <= 0 {
		ttl = signing.DefaultTTL
	}
	return &Reporter{
		store:  store,
		issuer: issuer,
		domain: signing.NormalizeDomain(domain),
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Reporter) GetStatus(ctx context.Context, uid string) (*Payload, error) {
	video, err := r.store.GetVideo(ctx, uid)
	if err != nil {
		return nil, stream.Classify(err, "get video")
	}

	payload := &Payload{
		UID:           uid,
		State:         video.Status.State,
		PctComplete:   video.Status.Percent(),
		ReadyToStream: video.ReadyToStream,
		Captions:      []stream.CaptionTrack{},
	}
	if payload.ReadyToStream || payload.State == stream.StateReady {
		payload.PctComplete = 100
	}
	if d, ok := video.DurationSeconds(); ok {
		payload.Duration = &d
	}
	if code, msg, ok := video.ErrorInfo(); ok {
		payload.Error = &ErrorInfo{Code: code, Message: msg}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tracks, err := r.store.ListCaptions(gctx, uid)
		if err != nil {
			r.logger.Warn("caption listing unavailable", "uid", uid, "error", err)
			return nil
		}
		if tracks != nil {
			payload.Captions = tracks
		}
		return nil
	})

	if video.ReadyToStream {
		if err := r.composeURLs(g, video, payload); err != nil {
			_ = g.Wait()
			return nil, err
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payload, nil
}

// composeURLs schedules one signing call for the manifest and one per
// keyframe on g. Each call writes only its own slot.
func (r *Reporter) composeURLs(g *errgroup.Group, video *stream.VideoRecord, payload *Payload) error {
	duration, _ := video.DurationSeconds()
	times := keyframes.Sample(duration, keyframes.DefaultCount)
	payload.Thumbnails = make([]Thumbnail, len(times))

	if r.issuer == nil {
		if video.RequireSignedURLs {
			return apperr.Configuration("video requires signed urls but no signing key is configured", nil)
		}
		r.publicURLs(video, times, payload)
		return nil
	}

	payload.Signed = true
	payload.Playback = &Playback{}

	g.Go(func() error {
		urls, err := r.issuer.Issue(video.UID, r.ttl, signing.Options{})
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "sign playback url", err)
		}
		payload.Playback.HLS = urls.PlaybackURL
		payload.Playback.DASH = urls.DashURL
		payload.Thumbnail = urls.ThumbnailURL
		expires := urls.ExpiresAt
		payload.ExpiresAt = &expires
		return nil
	})

	for i, ts := range times {
		i, ts := i, ts
		g.Go(func() error {
			urls, err := r.issuer.Issue(video.UID, r.ttl, signing.Options{ThumbnailTime: ts})
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "sign thumbnail url", err)
			}
			payload.Thumbnails[i] = Thumbnail{Time: ts, URL: urls.ThumbnailURL}
			return nil
		})
	}
	return nil
}

func (r *Reporter) publicURLs(video *stream.VideoRecord, times []float64, payload *Payload) {
	domain := r.domain
	payload.Playback = &Playback{HLS: video.Playback.HLS, DASH: video.Playback.DASH}
	if payload.Playback.HLS == "" && domain != "" {
		payload.Playback.HLS = signing.ManifestURL(domain, video.UID)
		payload.Playback.DASH = signing.DashURL(domain, video.UID)
	}
	payload.Thumbnail = video.Thumbnail
	if payload.Thumbnail == "" && domain != "" {
		payload.Thumbnail = signing.ThumbnailURL(domain, video.UID, 0)
	}
	if domain == "" {
		payload.Thumbnails = nil
		return
	}
	for i, ts := range times {
		payload.Thumbnails[i] = Thumbnail{Time: ts, URL: signing.ThumbnailURL(domain, video.UID, ts)}
	}
}
