package config

import "time"

// Config represents the complete inboxd configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	HTTP     HTTPConfig     `yaml:"http"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`

	// SourceFile is the path the config was loaded from, empty when built
	// from defaults and environment only.
	SourceFile string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// PIDFile, when set, is locked for the life of the process so a second
	// instance refuses to start.
	PIDFile string `yaml:"pid_file"`
}

// HTTPConfig defines the listener and server timeouts.
type HTTPConfig struct {
	Listen         string        `yaml:"listen"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WebhookConfig defines the signed ingestion endpoint.
type WebhookConfig struct {
	// Secret is the shared HMAC secret. Usually "${WEBHOOK_SECRET}".
	Secret string `yaml:"secret"`

	// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
	SignatureHeader string `yaml:"signature_header"`

	// MaxBodySize accepts plain bytes or KB/MB/GB suffixes.
	MaxBodySize string `yaml:"max_body_size"`
}

// DatabaseConfig points at the message store.
type DatabaseConfig struct {
	// URL uses the sqlite:///path form, e.g. sqlite:////data/app.db.
	URL string `yaml:"url"`
}

// StoreConfig tunes store behaviour.
type StoreConfig struct {
	// TopSenders caps messages_per_sender in stats. 0 means unlimited.
	TopSenders int                  `yaml:"top_senders"`
	Breaker    CircuitBreakerConfig `yaml:"breaker"`
}

// CircuitBreakerConfig defines circuit breaker settings around the store.
type CircuitBreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
	Interval     time.Duration `yaml:"interval"`
	ResetAfter   time.Duration `yaml:"reset_after"`
	HalfOpenMax  uint32        `yaml:"half_open_max"`
}

// DedupeConfig selects the delivery dedupe cache in front of the store.
type DedupeConfig struct {
	Backend    string        `yaml:"backend"` // memory, redis, none
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	RedisURL   string        `yaml:"redis_url"`
	KeyPrefix  string        `yaml:"key_prefix"`
}

// Dedupe backends.
const (
	DedupeMemory = "memory"
	DedupeRedis  = "redis"
	DedupeNone   = "none"
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "inboxd",
			LogLevel:  "info",
			LogFormat: "json",
		},
		HTTP: HTTPConfig{
			Listen:         "0.0.0.0:8000",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Webhook: WebhookConfig{
			SignatureHeader: "X-Signature",
			MaxBodySize:     "1MB",
		},
		Database: DatabaseConfig{
			URL: "sqlite:////data/app.db",
		},
		Store: StoreConfig{
			TopSenders: 10,
			Breaker: CircuitBreakerConfig{
				Enabled:      true,
				MinRequests:  10,
				FailureRatio: 0.5,
				Interval:     60 * time.Second,
				ResetAfter:   15 * time.Second,
				HalfOpenMax:  1,
			},
		},
		Dedupe: DedupeConfig{
			Backend:    DedupeMemory,
			TTL:        24 * time.Hour,
			MaxEntries: 100_000,
			KeyPrefix:  "inboxd:seen:",
		},
	}
}
