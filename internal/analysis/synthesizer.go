// Package analysis produces descriptive metadata for a stored video by
// showing sampled keyframes and its caption transcript to a
// vision-language model, then writes the answer back to the store.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/captions"
	"github.com/heimdex/heimdex-stream/internal/keyframes"
	"github.com/heimdex/heimdex-stream/internal/lease"
	"github.com/heimdex/heimdex-stream/internal/logging"
	"github.com/heimdex/heimdex-stream/internal/model"
	"github.com/heimdex/heimdex-stream/internal/signing"
	"github.com/heimdex/heimdex-stream/internal/stream"
)

const (
	DefaultTimeout          = 2 * time.Minute
	DefaultCaptionLanguage  = "en"
	DefaultProbeParallelism = 4

	WriteBackSaved  = "saved"
	WriteBackFailed = "failed"

	CaptionsAvailable   = "available"
	CaptionsUnavailable = "unavailable"

	tagSeparator = ","
)

type WriteBack struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type CaptionInfo struct {
	Status   string `json:"status"`
	Language string `json:"language,omitempty"`
	Segments int    `json:"segments"`
}

type KeyframeInfo struct {
	Sampled    int       `json:"sampled"`
	Valid      int       `json:"valid"`
	Timestamps []float64 `json:"timestamps"`
}

// Report is the outcome of one Synthesize call. Result is always set when
// err is nil, even if WriteBack failed.
type Report struct {
	UID       string       `json:"uid"`
	Result    *Result      `json:"result"`
	WriteBack WriteBack    `json:"writeBack"`
	Captions  CaptionInfo  `json:"captions"`
	Keyframes KeyframeInfo `json:"keyframes"`
	Duration  *float64     `json:"duration,omitempty"`
}

type Config struct {
	// Timeout bounds the whole call, including the model request.
	Timeout          time.Duration
	CaptionLanguage  string
	ProbeParallelism int
	TokenTTL         time.Duration
	// Domain is the delivery host used for unsigned thumbnail URLs.
	Domain string
}

// Synthesizer is safe for concurrent use. issuer and locker may be nil:
// without an issuer keyframe URLs are public, without a locker concurrent
// calls for the same uid are not excluded.
type Synthesizer struct {
	store  stream.Client
	model  model.Client
	issuer *signing.Issuer
	prober Prober
	locker lease.Locker
	cfg    Config
	logger *slog.Logger
}

func NewSynthesizer(store stream.Client, backend model.Client, issuer *signing.Issuer, prober Prober, locker lease.Locker, cfg Config, logger *slog.Logger) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CaptionLanguage == "" {
		cfg.CaptionLanguage = DefaultCaptionLanguage
	}
	if cfg.ProbeParallelism <= 0 {
		cfg.ProbeParallelism = DefaultProbeParallelism
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = signing.DefaultTTL
	}
	cfg.Domain = signing.NormalizeDomain(cfg.Domain)
	if prober == nil {
		prober = NewHTTPProber(nil, 0)
	}
	return &Synthesizer{
		store:  store,
		model:  backend,
		issuer: issuer,
		prober: prober,
		locker: locker,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, uid string) (*Report, error) {
	if uid == "" {
		return nil, apperr.BadRequest("video id is required")
	}
	if s.issuer == nil && s.cfg.Domain == "" {
		return nil, apperr.Configuration("no delivery domain or signing key configured for keyframe urls", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, uid, s.cfg.Timeout)
		if errors.Is(err, lease.ErrHeld) {
			return nil, apperr.Conflict("analysis is already running for this video")
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "acquire analysis lease", err)
		}
		defer release()
	}

	logger := logging.WithVideoID(s.logger, uid)
	started := time.Now()
	report := &Report{UID: uid}

	// Step 1: duration. Without it the sampler uses its fallback set.
	var existingMeta map[string]any
	duration, hasDuration := 0.0, false
	if video, err := s.store.GetVideo(ctx, uid); err != nil {
		logger.Warn("video record unavailable, sampling without duration", "error", err)
	} else {
		existingMeta = video.Meta
		duration, hasDuration = video.DurationSeconds()
		if hasDuration {
			report.Duration = &duration
		}
	}

	// Step 2: captions.
	transcript := s.transcript(ctx, uid, report, logger)

	// Step 3: keyframes, the one hard dependency.
	times := keyframes.Sample(duration, keyframes.DefaultCount)
	frameURLs, frameTimes, err := s.validKeyframes(ctx, uid, times)
	if err != nil {
		return nil, err
	}
	report.Keyframes = KeyframeInfo{Sampled: len(times), Valid: len(frameURLs), Timestamps: frameTimes}
	if len(frameURLs) == 0 {
		logger.Warn("no keyframe survived validation", "sampled", len(times))
		return nil, apperr.Unprocessable("no keyframes could be retrieved for this video", nil)
	}

	// Steps 4 and 5: prompt the model and validate its answer.
	content, err := s.model.Complete(ctx, model.Prompt{
		System:    systemPrompt(),
		User:      userPrompt(duration, hasDuration, transcript, frameTimes),
		ImageURLs: frameURLs,
	})
	if err != nil {
		logger.Error("model request failed", "error", err)
		return nil, err
	}

	result, err := ParseResult(content)
	if err != nil {
		logger.Error("model response rejected", "error", err)
		return nil, apperr.Unprocessable("model response does not match the metadata schema", err)
	}
	report.Result = result

	// Step 6: write back. Failure is reported, not returned.
	if err := s.store.UpdateMeta(ctx, uid, writeBackMeta(existingMeta, result)); err != nil {
		logger.Error("metadata write-back failed", "error", err)
		report.WriteBack = WriteBack{Status: WriteBackFailed, Error: err.Error()}
	} else {
		report.WriteBack = WriteBack{Status: WriteBackSaved}
	}

	logger.Info("analysis complete",
		"keyframes", len(frameURLs),
		"captions", report.Captions.Status,
		"write_back", report.WriteBack.Status,
		"confidence", result.Confidence,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

// transcript returns the CSV rendering of the preferred caption track, or
// "" when none can be fetched.
func (s *Synthesizer) transcript(ctx context.Context, uid string, report *Report, logger *slog.Logger) string {
	report.Captions = CaptionInfo{Status: CaptionsUnavailable}

	tracks, err := s.store.ListCaptions(ctx, uid)
	if err != nil {
		logger.Warn("caption listing unavailable", "error", err)
		return ""
	}
	lang, ok := pickTrack(tracks, s.cfg.CaptionLanguage)
	if !ok {
		return ""
	}

	raw, err := s.store.GetCaptionVTT(ctx, uid, lang)
	if err != nil {
		logger.Warn("caption track unavailable", "language", lang, "error", err)
		return ""
	}

	tr := captions.Transcode(raw)
	if len(tr.Segments) == 0 {
		return ""
	}
	report.Captions = CaptionInfo{Status: CaptionsAvailable, Language: lang, Segments: len(tr.Segments)}
	return tr.CSV
}

func pickTrack(tracks []stream.CaptionTrack, preferred string) (string, bool) {
	for _, t := range tracks {
		if t.Language == preferred && t.Status != "inprogress" && t.Status != "error" {
			return t.Language, true
		}
	}
	for _, t := range tracks {
		if t.Language != "" && t.Status != "inprogress" && t.Status != "error" {
			return t.Language, true
		}
	}
	return "", false
}

// validKeyframes builds one thumbnail URL per timestamp and probes them in
// parallel, keeping the survivors in timestamp order.
func (s *Synthesizer) validKeyframes(ctx context.Context, uid string, times []float64) ([]string, []float64, error) {
	candidates := make([]string, len(times))
	for i, ts := range times {
		if s.issuer == nil {
			candidates[i] = signing.ThumbnailURL(s.cfg.Domain, uid, ts)
			continue
		}
		urls, err := s.issuer.Issue(uid, s.cfg.TokenTTL, signing.Options{ThumbnailTime: ts})
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.KindInternal, "sign keyframe url", err)
		}
		candidates[i] = urls.ThumbnailURL
	}

	ok := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ProbeParallelism)
	for i, u := range candidates {
		i, u := i, u
		g.Go(func() error {
			if err := s.prober.Probe(gctx, u); err != nil {
				s.logger.Debug("keyframe rejected", "uid", uid, "time", times[i], "error", err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var urls []string
	var kept []float64
	for i, valid := range ok {
		if valid && len(urls) < model.MaxImages {
			urls = append(urls, candidates[i])
			kept = append(kept, times[i])
		}
	}
	return urls, kept, nil
}

// writeBackMeta merges the analysis into the record's existing metadata,
// which the store replaces wholesale on update.
func writeBackMeta(existing map[string]any, r *Result) map[string]string {
	meta := make(map[string]string, len(existing)+5)
	for k, v := range existing {
		switch val := v.(type) {
		case string:
			meta[k] = val
		case nil:
		default:
			meta[k] = fmt.Sprint(val)
		}
	}
	meta["name"] = r.Title
	meta["description"] = r.Description
	meta["tags"] = strings.Join(r.Tags, tagSeparator)
	meta["aiGenerated"] = "true"
	meta["aiConfidence"] = strconv.FormatFloat(r.Confidence, 'f', 2, 64)
	return meta
}
