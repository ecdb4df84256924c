package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-stream/internal/analysis"
	"github.com/heimdex/heimdex-stream/internal/ingest"
	"github.com/heimdex/heimdex-stream/internal/ledger"
	"github.com/heimdex/heimdex-stream/internal/status"
	"github.com/heimdex/heimdex-stream/internal/stream"
	"github.com/heimdex/heimdex-stream/internal/webhook"
)

// Ingester is implemented by *ingest.Orchestrator.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source, meta map[string]string) (*ingest.Result, error)
	DirectUpload(ctx context.Context, req ingest.DirectRequest) (*ingest.Result, error)
	MaxStreamBytes() int64
}

type StatusReporter interface {
	GetStatus(ctx context.Context, uid string) (*status.Payload, error)
}

type Analyzer interface {
	Synthesize(ctx context.Context, uid string) (*analysis.Report, error)
}

// CaptionStore is the subset of the store client the caption endpoints use.
type CaptionStore interface {
	GetCaptionVTT(ctx context.Context, uid, lang string) (string, error)
	GenerateCaption(ctx context.Context, uid, lang string) (*stream.CaptionTrack, error)
}

type Ledger interface {
	RecentUploads(ctx context.Context, limit int) ([]*ledger.UploadSummary, error)
	RecordWebhook(ctx context.Context, video *stream.VideoRecord) (*ledger.WebhookEvent, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ServerConfig wires the services behind each route. A nil service makes
// its routes answer 503.
type ServerConfig struct {
	Port      int
	Ingest    Ingester
	Status    StatusReporter
	Analyzer  Analyzer
	Captions  CaptionStore
	Ledger    Ledger
	Webhooks  *webhook.Verifier
	AuthToken string
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
