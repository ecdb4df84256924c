// Package config provides configuration management for heimdex-stream.
// Configuration is loaded from environment variables with sensible defaults.
// Secrets are optional at load time; a component whose secret is missing
// is simply not constructed.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort            = 8790
	DefaultLogLevel        = "info"
	DefaultDataDir         = ".heimdex-stream"
	DefaultAPIBaseURL      = "https://api.cloudflare.com/client/v4"
	DefaultTokenTTL        = time.Hour
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultAnalyzeTimeout  = 2 * time.Minute
	DefaultMaxStreamBytes  = 100 << 20

	// Environment variable names
	EnvPort     = "STREAM_PORT"
	EnvLogLevel = "STREAM_LOG_LEVEL"
	EnvDataDir  = "STREAM_DATA_DIR"

	// Video store
	EnvAccountID         = "STREAM_ACCOUNT_ID"
	EnvAPIToken          = "STREAM_API_TOKEN"
	EnvAPIBaseURL        = "STREAM_API_BASE_URL"
	EnvCustomerDomain    = "STREAM_CUSTOMER_DOMAIN"
	EnvRequireSignedURLs = "STREAM_REQUIRE_SIGNED_URLS"
	EnvUpstreamTimeout   = "STREAM_UPSTREAM_TIMEOUT"
	EnvMaxStreamBytes    = "STREAM_MAX_STREAM_BYTES"

	// Signing
	EnvSigningKey   = "STREAM_SIGNING_KEY"
	EnvSigningKeyID = "STREAM_SIGNING_KEY_ID"
	EnvTokenTTL     = "STREAM_TOKEN_TTL"

	// Model backend
	EnvModelAPIKey     = "STREAM_MODEL_API_KEY"
	EnvModelBaseURL    = "STREAM_MODEL_BASE_URL"
	EnvModelName       = "STREAM_MODEL_NAME"
	EnvAnalyzeTimeout  = "STREAM_ANALYZE_TIMEOUT"
	EnvCaptionLanguage = "STREAM_CAPTION_LANGUAGE"

	// Inbound auth
	EnvAuthToken     = "STREAM_AUTH_TOKEN"
	EnvWebhookSecret = "STREAM_WEBHOOK_SECRET"

	// Shared lease store
	EnvRedisAddr     = "STREAM_REDIS_ADDR"
	EnvRedisPassword = "STREAM_REDIS_PASSWORD"

	// Database filename
	DBFilename = "stream.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string

	AccountID() string
	APIToken() string
	APIBaseURL() string
	CustomerDomain() string
	RequireSignedURLs() bool
	UpstreamTimeout() time.Duration
	MaxStreamBytes() int64

	SigningKey() string
	SigningKeyID() string
	TokenTTL() time.Duration

	ModelAPIKey() string
	ModelBaseURL() string
	ModelName() string
	AnalyzeTimeout() time.Duration
	CaptionLanguage() string

	AuthToken() string
	WebhookSecret() string

	RedisAddr() string
	RedisPassword() string

	StoreConfigured() bool
	SigningConfigured() bool
	ModelConfigured() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	accountID         string
	apiToken          string
	apiBaseURL        string
	customerDomain    string
	requireSignedURLs bool
	upstreamTimeout   time.Duration
	maxStreamBytes    int64

	signingKey   string
	signingKeyID string
	tokenTTL     time.Duration

	modelAPIKey     string
	modelBaseURL    string
	modelName       string
	analyzeTimeout  time.Duration
	captionLanguage string

	authToken     string
	webhookSecret string

	redisAddr     string
	redisPassword string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		apiBaseURL:      DefaultAPIBaseURL,
		upstreamTimeout: DefaultUpstreamTimeout,
		maxStreamBytes:  DefaultMaxStreamBytes,
		tokenTTL:        DefaultTokenTTL,
		analyzeTimeout:  DefaultAnalyzeTimeout,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if u := os.Getenv(EnvAPIBaseURL); u != "" {
		cfg.apiBaseURL = strings.TrimRight(u, "/")
	}

	cfg.accountID = os.Getenv(EnvAccountID)
	cfg.apiToken = os.Getenv(EnvAPIToken)
	cfg.customerDomain = os.Getenv(EnvCustomerDomain)
	cfg.signingKey = os.Getenv(EnvSigningKey)
	cfg.signingKeyID = os.Getenv(EnvSigningKeyID)
	cfg.modelAPIKey = os.Getenv(EnvModelAPIKey)
	cfg.modelBaseURL = os.Getenv(EnvModelBaseURL)
	cfg.modelName = os.Getenv(EnvModelName)
	cfg.captionLanguage = os.Getenv(EnvCaptionLanguage)
	cfg.authToken = os.Getenv(EnvAuthToken)
	cfg.webhookSecret = os.Getenv(EnvWebhookSecret)
	cfg.redisAddr = os.Getenv(EnvRedisAddr)
	cfg.redisPassword = os.Getenv(EnvRedisPassword)

	if v := os.Getenv(EnvRequireSignedURLs); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvRequireSignedURLs, err)
		}
		cfg.requireSignedURLs = b
	}

	if v := os.Getenv(EnvMaxStreamBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive byte count", EnvMaxStreamBytes)
		}
		cfg.maxStreamBytes = n
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{EnvUpstreamTimeout, &cfg.upstreamTimeout},
		{EnvTokenTTL, &cfg.tokenTTL},
		{EnvAnalyzeTimeout, &cfg.analyzeTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.target = parsed
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite ledger file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) AccountID() string { return c.accountID }
func (c *EnvConfig) APIToken() string { return c.apiToken }
func (c *EnvConfig) APIBaseURL() string { return c.apiBaseURL }
func (c *EnvConfig) CustomerDomain() string { return c.customerDomain }
func (c *EnvConfig) RequireSignedURLs() bool { return c.requireSignedURLs }
func (c *EnvConfig) UpstreamTimeout() time.Duration { return c.upstreamTimeout }
func (c *EnvConfig) MaxStreamBytes() int64 { return c.maxStreamBytes }

func (c *EnvConfig) SigningKey() string { return c.signingKey }
func (c *EnvConfig) SigningKeyID() string { return c.signingKeyID }
func (c *EnvConfig) TokenTTL() time.Duration { return c.tokenTTL }

func (c *EnvConfig) ModelAPIKey() string { return c.modelAPIKey }
func (c *EnvConfig) ModelBaseURL() string { return c.modelBaseURL }
func (c *EnvConfig) ModelName() string { return c.modelName }
func (c *EnvConfig) AnalyzeTimeout() time.Duration { return c.analyzeTimeout }

// CaptionLanguage is the preferred transcript language for analysis.
func (c *EnvConfig) CaptionLanguage() string {
	if c.captionLanguage != "" {
		return c.captionLanguage
	}
	return "en"
}

// AuthToken is the bearer credential required on protected routes. Empty
// disables inbound auth.
func (c *EnvConfig) AuthToken() string {
	return c.authToken
}

func (c *EnvConfig) WebhookSecret() string { return c.webhookSecret }

func (c *EnvConfig) RedisAddr() string { return c.redisAddr }
func (c *EnvConfig) RedisPassword() string { return c.redisPassword }

// StoreConfigured reports whether the video store credentials are present.
func (c *EnvConfig) StoreConfigured() bool {
	return c.accountID != "" && c.apiToken != ""
}

func (c *EnvConfig) SigningConfigured() bool {
	return c.signingKey != "" && c.signingKeyID != ""
}

func (c *EnvConfig) ModelConfigured() bool {
	return c.modelAPIKey != ""
}

// parseDuration accepts Go duration syntax ("90s", "2m") or a bare number
// of seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
