// Package doctor checks an inboxd configuration for problems that loading
// alone does not catch: missing secrets, unsafe database placement and
// unreachable dedupe backends.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mattjoyce/inboxd/internal/config"
	"github.com/mattjoyce/inboxd/internal/storage"
)

const (
	minSecretLength = 16

	// A 4096 character text of 4-byte runes plus the envelope.
	minSafeBodySize = 17 * 1024
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg     *config.Config
	checkFS func(path string) error
}

// New creates a Doctor for cfg.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, checkFS: storage.ValidateFilesystem}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateWebhook(r)
	d.validateDatabase(r)
	d.validateHTTP(r)
	d.validateStore(r)
	d.validateDedupe(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateWebhook checks the secret and body limit.
func (d *Doctor) validateWebhook(r *Result) {
	wh := d.cfg.Webhook
	switch {
	case wh.Secret == "":
		d.addError(r, "webhook", "webhook.secret",
			fmt.Sprintf("secret is empty; set %s. Every delivery is rejected and /health/ready reports not ready", config.EnvWebhookSecret))
	case len(wh.Secret) < minSecretLength:
		d.addWarning(r, "webhook", "webhook.secret",
			fmt.Sprintf("secret is shorter than %d characters", minSecretLength))
	}

	size, err := config.ParseSize(wh.MaxBodySize)
	if err != nil {
		d.addError(r, "webhook", "webhook.max_body_size", err.Error())
		return
	}
	if size < minSafeBodySize {
		d.addWarning(r, "webhook", "webhook.max_body_size",
			fmt.Sprintf("limit of %d bytes may reject valid messages with long text", size))
	}
}

// validateDatabase checks the database URL and where the file will live.
func (d *Doctor) validateDatabase(r *Result) {
	path, err := d.cfg.SQLitePath()
	if err != nil {
		d.addError(r, "database", "database.url", err.Error())
		return
	}
	if !filepath.IsAbs(path) {
		d.addWarning(r, "database", "database.url",
			fmt.Sprintf("path %q is relative and resolves against the working directory", path))
	}

	if err := d.checkFS(path); err != nil {
		if errors.Is(err, storage.ErrDetectUnsupported) {
			d.addWarning(r, "database", "database.url", "filesystem type could not be checked on this platform")
			return
		}
		d.addError(r, "database", "database.url", err.Error())
	}
}

// validateHTTP checks timeouts.
func (d *Doctor) validateHTTP(r *Result) {
	h := d.cfg.HTTP
	if h.RequestTimeout == 0 {
		d.addWarning(r, "http", "http.request_timeout", "store calls run without a deadline")
		return
	}
	if h.WriteTimeout > 0 && h.RequestTimeout >= h.WriteTimeout {
		d.addWarning(r, "http", "http.request_timeout",
			fmt.Sprintf("request_timeout %s is not below write_timeout %s; clients may see a dropped connection instead of 503",
				h.RequestTimeout, h.WriteTimeout))
	}
}

// validateStore checks stats and breaker tuning.
func (d *Doctor) validateStore(r *Result) {
	s := d.cfg.Store
	if s.TopSenders == 0 {
		d.addWarning(r, "store", "store.top_senders", "0 lists every sender in /stats")
	}

	b := s.Breaker
	if !b.Enabled {
		return
	}
	if b.MinRequests == 0 {
		d.addWarning(r, "store", "store.breaker.min_requests", "0 lets a single failure open the breaker")
	}
	if b.HalfOpenMax == 0 {
		d.addWarning(r, "store", "store.breaker.half_open_max", "0 is treated as 1")
	}
	if b.Interval == 0 {
		d.addWarning(r, "store", "store.breaker.interval", "0 never clears failure counts while closed")
	}
}

// validateDedupe checks the dedupe backend settings.
func (d *Doctor) validateDedupe(r *Result) {
	dd := d.cfg.Dedupe
	switch dd.Backend {
	case config.DedupeRedis:
		if _, err := redis.ParseURL(dd.RedisURL); err != nil {
			d.addError(r, "dedupe", "dedupe.redis_url", fmt.Sprintf("invalid redis url: %v", err))
		}
		if dd.KeyPrefix == "" {
			d.addWarning(r, "dedupe", "dedupe.key_prefix", "empty prefix shares the redis keyspace with other tenants")
		}
	case config.DedupeMemory:
		d.addWarning(r, "dedupe", "dedupe.backend", "memory cache is per process; replicas fall back to the store for duplicates")
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
