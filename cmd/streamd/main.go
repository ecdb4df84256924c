package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/heimdex-stream/internal/analysis"
	"github.com/heimdex/heimdex-stream/internal/api"
	"github.com/heimdex/heimdex-stream/internal/config"
	"github.com/heimdex/heimdex-stream/internal/db"
	"github.com/heimdex/heimdex-stream/internal/ingest"
	"github.com/heimdex/heimdex-stream/internal/lease"
	"github.com/heimdex/heimdex-stream/internal/ledger"
	"github.com/heimdex/heimdex-stream/internal/logging"
	"github.com/heimdex/heimdex-stream/internal/model"
	"github.com/heimdex/heimdex-stream/internal/signing"
	"github.com/heimdex/heimdex-stream/internal/status"
	"github.com/heimdex/heimdex-stream/internal/stream"
	"github.com/heimdex/heimdex-stream/internal/webhook"
)

const (
	webhookRetention = 30 * 24 * time.Hour
	pruneInterval    = 24 * time.Hour
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting heimdex stream", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logging.WithComponent(logger, "db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ledgerSvc := ledger.NewService(ledger.NewRepository(database.Conn()), logging.WithComponent(logger, "ledger"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	issuer := newIssuer(cfg, logger)

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	serverCfg := api.ServerConfig{
		Port:      cfg.Port(),
		Ledger:    ledgerSvc,
		AuthToken: cfg.AuthToken(),
		Logger:    logging.WithComponent(logger, "api"),
		StartTime: startTime,
		Version:   config.Version,
	}

	if cfg.AuthToken() == "" {
		logger.Warn("no auth token configured, protected routes are open", "env", config.EnvAuthToken)
	}

	if cfg.WebhookSecret() != "" {
		serverCfg.Webhooks = webhook.NewVerifier(cfg.WebhookSecret(), webhook.DefaultTolerance)
	} else {
		logger.Warn("no webhook secret configured, notifications are accepted unsigned", "env", config.EnvWebhookSecret)
	}

	if cfg.StoreConfigured() {
		store := stream.NewHTTPClient(cfg.APIBaseURL(), cfg.AccountID(), cfg.APIToken(), cfg.UpstreamTimeout(),
			logging.WithComponent(logger, "stream"))

		serverCfg.Ingest = ingest.New(store, nil, ingest.Config{
			RequireSigned:  cfg.RequireSignedURLs(),
			MaxStreamBytes: cfg.MaxStreamBytes(),
		}, ledgerSvc, logging.WithComponent(logger, "ingest"))

		serverCfg.Status = status.NewReporter(store, issuer, cfg.CustomerDomain(), cfg.TokenTTL(),
			logging.WithComponent(logger, "status"))

		serverCfg.Captions = store

		if cfg.ModelConfigured() {
			backend := model.NewOpenAIClient(cfg.ModelAPIKey(), cfg.ModelBaseURL(), cfg.ModelName(), cfg.AnalyzeTimeout(),
				logging.WithComponent(logger, "model"))
			logger.Info("model backend configured", "model", backend.Model())

			serverCfg.Analyzer = analysis.NewSynthesizer(store, backend, issuer, nil, locker, analysis.Config{
				Timeout:         cfg.AnalyzeTimeout(),
				CaptionLanguage: cfg.CaptionLanguage(),
				TokenTTL:        cfg.TokenTTL(),
				Domain:          cfg.CustomerDomain(),
			}, logging.WithComponent(logger, "analysis"))
		} else {
			logger.Warn("model backend not configured, analysis disabled", "env", config.EnvModelAPIKey)
		}

		logger.Info("video store configured",
			"base_url", cfg.APIBaseURL(),
			"account_id", cfg.AccountID(),
			"token", logging.SanitizeToken(cfg.APIToken()),
		)
	} else {
		logger.Warn("video store not configured, upload/status/caption/analysis routes disabled",
			"env", []string{config.EnvAccountID, config.EnvAPIToken})
	}

	go pruneWebhookEvents(ctx, database, logger)

	apiServer := api.NewServer(serverCfg)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newIssuer returns nil when signing is unavailable; token-dependent
// routes then fail closed.
func newIssuer(cfg config.Config, logger *slog.Logger) *signing.Issuer {
	if cfg.SigningKey() == "" && cfg.SigningKeyID() == "" {
		logger.Warn("signing key not configured, signed playback disabled", "env", config.EnvSigningKey)
		return nil
	}
	issuer, err := signing.NewIssuer(cfg.SigningKey(), cfg.SigningKeyID(), cfg.CustomerDomain())
	if err != nil {
		logger.Error("signing key unusable, signed playback disabled", "error", err)
		return nil
	}
	logger.Info("signing key loaded", "key_id", issuer.KeyID(), "domain", issuer.Domain())
	return issuer
}

func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (lease.Locker, error) {
	if cfg.RedisAddr() == "" {
		return lease.NewMemoryLocker(), nil
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()

	client, err := lease.NewRedisClient(connectCtx, cfg.RedisAddr(), cfg.RedisPassword())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("using redis analysis lease", "addr", cfg.RedisAddr())
	return lease.NewRedisLocker(client, lease.DefaultKeyPrefix, logging.WithComponent(logger, "lease")), nil
}

func pruneWebhookEvents(ctx context.Context, database *db.DB, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := database.Prune(ctx, time.Now().Add(-webhookRetention))
		if err != nil {
			logger.Warn("webhook event prune failed", "error", err)
		} else if n > 0 {
			logger.Info("pruned webhook events", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
