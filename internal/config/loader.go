package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const sqliteURLPrefix = "sqlite:///"

// Environment variables applied on top of the file.
const (
	EnvWebhookSecret = "WEBHOOK_SECRET"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvLogLevel      = "LOG_LEVEL"
	EnvListen        = "INBOXD_LISTEN"
	EnvRedisURL      = "REDIS_URL"
	EnvConfigPath    = "INBOXD_CONFIG"
)

// Load reads configuration from configPath, or from defaults alone when
// configPath is empty. Environment overrides are applied last, then the
// result is validated.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		if info.IsDir() {
			absPath = filepath.Join(absPath, "config.yaml")
			if _, err := os.Stat(absPath); err != nil {
				return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
			}
		}

		if err := loadConfigFile(absPath, cfg); err != nil {
			return nil, err
		}
		cfg.SourceFile = absPath
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigFile finds a config file by checking standard locations.
// Priority order: $INBOXD_CONFIG, ~/.config/inboxd/config.yaml,
// /etc/inboxd/config.yaml, ./config.yaml. Returns "" when nothing exists,
// which means defaults plus environment.
func DiscoverConfigFile() string {
	candidates := []string{}
	if p := os.Getenv(EnvConfigPath); p != "" {
		candidates = append(candidates, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "inboxd", "config.yaml"))
	}
	candidates = append(candidates, "/etc/inboxd/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadConfigFile parses path on top of the values already in cfg.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv(EnvWebhookSecret); ok {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Service.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.HTTP.Listen = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Dedupe.RedisURL = v
	}
}

func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Leave the placeholder; Validate reports it where it matters.
		return match
	})
}

// UnresolvedVar returns the name of the first ${VAR} placeholder left in s.
func UnresolvedVar(s string) (string, bool) {
	m := envVarPattern.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// SQLitePath extracts the database file path from a sqlite:///path URL.
func (c *Config) SQLitePath() (string, error) {
	return ParseSQLiteURL(c.Database.URL)
}

// ParseSQLiteURL extracts the file path from a sqlite:///path URL.
// sqlite:////data/app.db is absolute, sqlite:///app.db is relative.
func ParseSQLiteURL(url string) (string, error) {
	if !strings.HasPrefix(url, sqliteURLPrefix) {
		return "", fmt.Errorf("unsupported database URL format: %q", url)
	}
	path := strings.TrimPrefix(url, sqliteURLPrefix)
	if path == "" {
		return "", fmt.Errorf("database URL %q has no path", url)
	}
	return path, nil
}

// MaxBodyBytes returns the parsed webhook body limit.
func (c *Config) MaxBodyBytes() (int64, error) {
	return ParseSize(c.Webhook.MaxBodySize)
}

// Validate performs basic validation on the configuration.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required")
	}
	if cfg.HTTP.RequestTimeout < 0 {
		return fmt.Errorf("http.request_timeout must not be negative")
	}

	if name, ok := UnresolvedVar(cfg.Webhook.Secret); ok {
		return fmt.Errorf("webhook.secret: environment variable ${%s} is not set", name)
	}
	if cfg.Webhook.SignatureHeader == "" {
		return fmt.Errorf("webhook.signature_header is required")
	}
	if _, err := cfg.MaxBodyBytes(); err != nil {
		return fmt.Errorf("webhook.max_body_size: %w", err)
	}

	if _, err := cfg.SQLitePath(); err != nil {
		return fmt.Errorf("database.url: %w", err)
	}

	if cfg.Store.TopSenders < 0 {
		return fmt.Errorf("store.top_senders must not be negative")
	}
	if b := cfg.Store.Breaker; b.Enabled {
		if b.FailureRatio <= 0 || b.FailureRatio > 1 {
			return fmt.Errorf("store.breaker.failure_ratio must be in (0, 1] (got %v)", b.FailureRatio)
		}
		if b.ResetAfter <= 0 {
			return fmt.Errorf("store.breaker.reset_after must be positive")
		}
	}

	switch cfg.Dedupe.Backend {
	case DedupeNone:
	case DedupeMemory:
		if cfg.Dedupe.TTL <= 0 {
			return fmt.Errorf("dedupe.ttl must be positive")
		}
		if cfg.Dedupe.MaxEntries <= 0 {
			return fmt.Errorf("dedupe.max_entries must be positive")
		}
	case DedupeRedis:
		if cfg.Dedupe.TTL <= 0 {
			return fmt.Errorf("dedupe.ttl must be positive")
		}
		if cfg.Dedupe.RedisURL == "" {
			return fmt.Errorf("dedupe.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("dedupe.backend must be one of: memory, redis, none (got %q)", cfg.Dedupe.Backend)
	}

	return nil
}
