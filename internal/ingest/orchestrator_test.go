package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/heimdex/heimdex-stream/internal/apperr"
	"github.com/heimdex/heimdex-stream/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu sync.Mutex

	copyErr    error
	createErr  error
	patchErr   error
	patchUID   string
	copyCalls  int
	createReqs []stream.TusSessionRequest
	patches    [][]byte
	metaCalls  map[string]map[string]string
}

func (f *fakeStore) CopyFromURL(ctx context.Context, req stream.CopyRequest) (*stream.VideoRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyCalls++
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	return &stream.VideoRecord{UID: "copied-uid", Thumbnail: "https://thumb.example.com/copied-uid.jpg"}, nil
}

func (f *fakeStore) CreateTusSession(ctx context.Context, req stream.TusSessionRequest) (*stream.TusSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createReqs = append(f.createReqs, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &stream.TusSession{UploadURL: "https://upload.example.com/tus/session-uid", UID: "session-uid"}, nil
}

func (f *fakeStore) PatchTus(ctx context.Context, uploadURL string, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, payload)
	if f.patchErr != nil {
		return "", f.patchErr
	}
	return f.patchUID, nil
}

func (f *fakeStore) GetVideo(ctx context.Context, uid string) (*stream.VideoRecord, error) {
	return nil, errors.New("not used")
}

func (f *fakeStore) UpdateMeta(ctx context.Context, uid string, meta map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaCalls == nil {
		f.metaCalls = make(map[string]map[string]string)
	}
	f.metaCalls[uid] = meta
	return nil
}

func (f *fakeStore) ListCaptions(ctx context.Context, uid string) ([]stream.CaptionTrack, error) {
	return nil, nil
}

func (f *fakeStore) GetCaptionVTT(ctx context.Context, uid, lang string) (string, error) {
	return "", nil
}

func (f *fakeStore) GenerateCaption(ctx context.Context, uid, lang string) (*stream.CaptionTrack, error) {
	return nil, nil
}

type fakeRecorder struct {
	uploads []string
}

func (r *fakeRecorder) RecordUpload(ctx context.Context, uid, method, sourceURL string) error {
	r.uploads = append(r.uploads, uid+"|"+method+"|"+sourceURL)
	return nil
}

func sourceServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIngest_CopySucceeds(t *testing.T) {
	store := &fakeStore{}
	rec := &fakeRecorder{}
	o := New(store, nil, Config{}, rec, testLogger())

	result, err := o.Ingest(context.Background(), Source{URL: "https://media.example.com/a.mp4"}, map[string]string{"owner": "u1"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Method != MethodCopy || result.UID != "copied-uid" {
		t.Errorf("result = %+v", result)
	}
	if result.Thumbnail == "" {
		t.Error("copy result should carry the thumbnail")
	}
	if len(store.createReqs) != 0 || len(store.patches) != 0 {
		t.Error("stream-through must not run after a successful copy")
	}
	if len(rec.uploads) != 1 || rec.uploads[0] != "copied-uid|copy|https://media.example.com/a.mp4" {
		t.Errorf("recorded = %v", rec.uploads)
	}
}

func TestIngest_FallbackStreamsThroughExactlyOnce(t *testing.T) {
	payload := []byte("fake video bytes")
	src := sourceServer(t, payload)

	store := &fakeStore{
		copyErr:  &stream.APIError{StatusCode: http.StatusBadRequest, Body: `{"success":false}`},
		patchUID: "streamed-uid",
	}
	o := New(store, src.Client(), Config{}, nil, testLogger())

	result, err := o.Ingest(context.Background(), Source{URL: src.URL + "/clip.mp4"}, map[string]string{"owner": "u1"})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Method != MethodStreamThrough || result.UID != "streamed-uid" {
		t.Errorf("result = %+v", result)
	}
	if store.copyCalls != 1 {
		t.Errorf("copy calls = %d, want 1", store.copyCalls)
	}
	if len(store.createReqs) != 1 || len(store.patches) != 1 {
		t.Fatalf("stream-through attempts: create=%d patch=%d, want 1/1", len(store.createReqs), len(store.patches))
	}
	if !bytes.Equal(store.patches[0], payload) {
		t.Errorf("patched payload = %q", store.patches[0])
	}
	req := store.createReqs[0]
	if req.Length != int64(len(payload)) {
		t.Errorf("declared length = %d, want %d", req.Length, len(payload))
	}
	if req.Name != "clip.mp4" {
		t.Errorf("name = %q, want clip.mp4", req.Name)
	}
	if req.RequireSigned || req.DirectUser {
		t.Errorf("session flags = %+v, want public non-direct", req)
	}
	if store.metaCalls["streamed-uid"]["source"] != src.URL+"/clip.mp4" {
		t.Errorf("meta = %v, want source tag", store.metaCalls["streamed-uid"])
	}
}

func TestIngest_StreamThroughFailureIsTerminal(t *testing.T) {
	src := sourceServer(t, []byte("bytes"))
	store := &fakeStore{
		copyErr:  errors.New("copy refused"),
		patchErr: &stream.APIError{StatusCode: http.StatusInternalServerError, Body: "store exploded"},
	}
	o := New(store, src.Client(), Config{}, nil, testLogger())

	_, err := o.Ingest(context.Background(), Source{URL: src.URL + "/v.mp4"}, nil)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("error kind = %v, want upstream", apperr.KindOf(err))
	}
	if apperr.Details(err) != "store exploded" {
		t.Errorf("details = %q, want store body", apperr.Details(err))
	}
	if store.copyCalls != 1 || len(store.patches) != 1 {
		t.Errorf("attempts: copy=%d patch=%d, want 1/1", store.copyCalls, len(store.patches))
	}
}

func TestIngest_SessionCreateFailure(t *testing.T) {
	src := sourceServer(t, []byte("bytes"))
	store := &fakeStore{
		copyErr:   errors.New("copy refused"),
		createErr: &stream.APIError{StatusCode: http.StatusForbidden, Body: "quota"},
	}
	o := New(store, src.Client(), Config{}, nil, testLogger())

	_, err := o.Ingest(context.Background(), Source{URL: src.URL + "/v.mp4"}, nil)
	if !apperr.Is(err, apperr.KindUpstream) || apperr.Details(err) != "quota" {
		t.Fatalf("error = %v (details %q)", err, apperr.Details(err))
	}
	if len(store.patches) != 0 {
		t.Error("payload must not be written without a session")
	}
}

func TestIngest_DeclaredLengthTooLarge(t *testing.T) {
	src := sourceServer(t, bytes.Repeat([]byte("x"), 64))
	store := &fakeStore{copyErr: errors.New("copy refused")}
	o := New(store, src.Client(), Config{MaxStreamBytes: 32}, nil, testLogger())

	_, err := o.Ingest(context.Background(), Source{URL: src.URL + "/big.mp4"}, nil)
	if !apperr.Is(err, apperr.KindPayloadTooLarge) {
		t.Fatalf("error kind = %v, want payload too large", apperr.KindOf(err))
	}
	if len(store.createReqs) != 0 {
		t.Error("no session may be opened for an oversized source")
	}
}

func TestIngest_UndeclaredLengthTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 8; i++ {
			w.Write(bytes.Repeat([]byte("x"), 16))
			flusher.Flush()
		}
	}))
	defer server.Close()

	store := &fakeStore{copyErr: errors.New("copy refused")}
	o := New(store, server.Client(), Config{MaxStreamBytes: 32}, nil, testLogger())

	_, err := o.Ingest(context.Background(), Source{URL: server.URL + "/chunked.mp4"}, nil)
	if !apperr.Is(err, apperr.KindPayloadTooLarge) {
		t.Fatalf("error kind = %v, want payload too large", apperr.KindOf(err))
	}
}

func TestIngest_SourceFetchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	store := &fakeStore{copyErr: errors.New("copy refused")}
	o := New(store, server.Client(), Config{}, nil, testLogger())

	_, err := o.Ingest(context.Background(), Source{URL: server.URL + "/v.mp4"}, nil)
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("error kind = %v, want upstream", apperr.KindOf(err))
	}
	if !strings.Contains(apperr.Details(err), "gone") {
		t.Errorf("details = %q", apperr.Details(err))
	}
}

func TestIngest_ByteStreamSkipsCopy(t *testing.T) {
	store := &fakeStore{}
	rec := &fakeRecorder{}
	o := New(store, nil, Config{}, rec, testLogger())

	result, err := o.Ingest(context.Background(), Source{Body: strings.NewReader("raw"), Size: 3, Name: "raw.mp4"}, nil)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Method != MethodStreamThrough || result.UID != "session-uid" {
		t.Errorf("result = %+v, want stream-through using the session uid", result)
	}
	if store.copyCalls != 0 {
		t.Error("byte streams must not attempt copy")
	}
	if len(rec.uploads) != 1 {
		t.Errorf("recorded = %v", rec.uploads)
	}
}

func TestIngest_ByteStreamTooLarge(t *testing.T) {
	store := &fakeStore{}
	o := New(store, nil, Config{MaxStreamBytes: 4}, nil, testLogger())

	_, err := o.Ingest(context.Background(), Source{Body: strings.NewReader("too many bytes"), Size: -1}, nil)
	if !apperr.Is(err, apperr.KindPayloadTooLarge) {
		t.Fatalf("error kind = %v, want payload too large", apperr.KindOf(err))
	}
	if len(store.createReqs) != 0 {
		t.Error("no session may be opened for an oversized body")
	}
}

func TestIngest_InvalidSource(t *testing.T) {
	o := New(&fakeStore{}, nil, Config{}, nil, testLogger())

	for _, src := range []Source{{}, {URL: "ftp://example.com/a.mp4"}, {URL: "not a url"}} {
		if _, err := o.Ingest(context.Background(), src, nil); !apperr.Is(err, apperr.KindBadRequest) {
			t.Errorf("Ingest(%+v) error = %v, want bad request", src, err)
		}
	}
}

func TestDirectUpload(t *testing.T) {
	store := &fakeStore{}
	o := New(store, nil, Config{RequireSigned: true}, nil, testLogger())

	public := false
	result, err := o.DirectUpload(context.Background(), DirectRequest{
		MaxDurationSeconds: 600,
		Meta:               map[string]string{"name": "holiday.mov"},
		RequireSigned:      &public,
	})
	if err != nil {
		t.Fatalf("DirectUpload() error = %v", err)
	}
	if result.Method != MethodDirectBrowser || result.UploadURL == "" || result.UID != "session-uid" {
		t.Errorf("result = %+v", result)
	}
	if len(store.patches) != 0 {
		t.Error("direct uploads must never transfer the payload")
	}

	req := store.createReqs[0]
	if !req.DirectUser || req.RequireSigned || req.MaxDurationSeconds != 600 || req.Name != "holiday.mov" {
		t.Errorf("session request = %+v", req)
	}
}
