package status

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/signing"
	"github.com/heimdex/heimdex-stream/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func testIssuer(t *testing.T) *signing.Issuer {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return signing.NewIssuerFromKey(testKey, "kid-1", "customer-x.example.com")
}

type fakeStore struct {
	stream.Client
	video      *stream.VideoRecord
	videoErr   error
	tracks     []stream.CaptionTrack
	captionErr error
}

func (f *fakeStore) GetVideo(ctx context.Context, uid string) (*stream.VideoRecord, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.video, nil
}

func (f *fakeStore) ListCaptions(ctx context.Context, uid string) ([]stream.CaptionTrack, error) {
	return f.tracks, f.captionErr
}

func readyVideo() *stream.VideoRecord {
	return &stream.VideoRecord{
		UID:               "vid-1",
		ReadyToStream:     true,
		Duration:          120,
		RequireSignedURLs: true,
		Status:            stream.VideoStatus{State: stream.StateReady, PctComplete: "100.000000"},
		Playback:          stream.Playback{HLS: "https://customer-x.example.com/vid-1/manifest/video.m3u8"},
	}
}

func TestGetStatus_ReadySigned(t *testing.T) {
	store := &fakeStore{
		video:  readyVideo(),
		tracks: []stream.CaptionTrack{{Language: "en", Label: "English"}},
	}
	r := NewReporter(store, testIssuer(t), "customer-x.example.com", time.Hour, testLogger())

	p, err := r.GetStatus(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !p.Signed || p.Playback == nil || p.ExpiresAt == nil {
		t.Fatalf("payload = %+v, want signed playback", p)
	}
	if strings.Contains(p.Playback.HLS, "/vid-1/") {
		t.Errorf("signed manifest must not expose the uid: %q", p.Playback.HLS)
	}
	if !strings.HasSuffix(p.Playback.HLS, "/manifest/video.m3u8") || !strings.HasSuffix(p.Playback.DASH, "/manifest/video.mpd") {
		t.Errorf("playback = %+v", p.Playback)
	}
	if len(p.Thumbnails) != 8 {
		t.Fatalf("thumbnails = %d, want 8", len(p.Thumbnails))
	}
	wantTimes := []float64{2.4, 12, 24, 42, 60, 78, 96, 114}
	for i, th := range p.Thumbnails {
		if th.Time != wantTimes[i] {
			t.Errorf("thumbnail[%d].time = %v, want %v", i, th.Time, wantTimes[i])
		}
		if !strings.Contains(th.URL, "/thumbnails/thumbnail.jpg?time=") {
			t.Errorf("thumbnail[%d].url = %q", i, th.URL)
		}
	}
	if p.PctComplete != 100 || p.Duration == nil || *p.Duration != 120 {
		t.Errorf("progress = %v duration = %v", p.PctComplete, p.Duration)
	}
	if len(p.Captions) != 1 {
		t.Errorf("captions = %+v", p.Captions)
	}
}

func TestGetStatus_Processing(t *testing.T) {
	store := &fakeStore{video: &stream.VideoRecord{
		UID:      "vid-2",
		Duration: -1,
		Status:   stream.VideoStatus{State: stream.StateInProgress, PctComplete: "37.5"},
	}}
	r := NewReporter(store, testIssuer(t), "customer-x.example.com", 0, testLogger())

	p, err := r.GetStatus(context.Background(), "vid-2")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if p.PctComplete != 37.5 || p.ReadyToStream {
		t.Errorf("payload = %+v", p)
	}
	if p.Playback != nil || len(p.Thumbnails) != 0 || p.Duration != nil {
		t.Errorf("processing video must not carry urls or duration: %+v", p)
	}
}

func TestGetStatus_ErrorInfo(t *testing.T) {
	store := &fakeStore{video: &stream.VideoRecord{
		UID: "vid-3",
		Status: stream.VideoStatus{
			State:           stream.StateError,
			ErrorReasonCode: "ERR_NON_VIDEO",
			ErrorReasonText: "The file was not recognized as a valid video file.",
		},
	}}
	r := NewReporter(store, nil, "", 0, testLogger())

	p, err := r.GetStatus(context.Background(), "vid-3")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if p.Error == nil || p.Error.Code != "ERR_NON_VIDEO" {
		t.Errorf("error = %+v", p.Error)
	}
}

func TestGetStatus_CaptionFailureDegrades(t *testing.T) {
	store := &fakeStore{video: readyVideo(), captionErr: errors.New("captions down")}
	r := NewReporter(store, testIssuer(t), "customer-x.example.com", 0, testLogger())

	p, err := r.GetStatus(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if p.Captions == nil || len(p.Captions) != 0 {
		t.Errorf("captions = %#v, want empty list", p.Captions)
	}
}

func TestGetStatus_StoreErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
		body string
	}{
		{"unknown uid", &stream.APIError{StatusCode: http.StatusNotFound, Body: "nope"}, apperr.KindNotFound, ""},
		{"store failure", &stream.APIError{StatusCode: http.StatusServiceUnavailable, Body: "maintenance"}, apperr.KindUpstream, "maintenance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter(&fakeStore{videoErr: tt.err}, nil, "", 0, testLogger())
			_, err := r.GetStatus(context.Background(), "vid-x")
			if !apperr.Is(err, tt.kind) {
				t.Fatalf("kind = %v, want %v", apperr.KindOf(err), tt.kind)
			}
			if tt.body != "" && apperr.Details(err) != tt.body {
				t.Errorf("details = %q, want %q", apperr.Details(err), tt.body)
			}
		})
	}
}

func TestGetStatus_PublicWithoutIssuer(t *testing.T) {
	video := readyVideo()
	video.RequireSignedURLs = false
	r := NewReporter(&fakeStore{video: video}, nil, "customer-x.example.com", 0, testLogger())

	p, err := r.GetStatus(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if p.Signed || p.ExpiresAt != nil {
		t.Errorf("public payload must not be marked signed: %+v", p)
	}
	if p.Playback.HLS != video.Playback.HLS {
		t.Errorf("hls = %q", p.Playback.HLS)
	}
	if len(p.Thumbnails) != 8 || !strings.HasPrefix(p.Thumbnails[0].URL, "https://customer-x.example.com/vid-1/") {
		t.Errorf("thumbnails = %+v", p.Thumbnails)
	}
}

func TestGetStatus_SignedVideoWithoutIssuer(t *testing.T) {
	r := NewReporter(&fakeStore{video: readyVideo()}, nil, "customer-x.example.com", 0, testLogger())

	_, err := r.GetStatus(context.Background(), "vid-1")
	if !apperr.Is(err, apperr.KindConfiguration) {
		t.Fatalf("kind = %v, want configuration", apperr.KindOf(err))
	}
}
