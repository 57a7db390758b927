package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/inboxd/internal/api"
	"github.com/mattjoyce/inboxd/internal/config"
	"github.com/mattjoyce/inboxd/internal/dedupe"
	"github.com/mattjoyce/inboxd/internal/doctor"
	"github.com/mattjoyce/inboxd/internal/lock"
	"github.com/mattjoyce/inboxd/internal/log"
	"github.com/mattjoyce/inboxd/internal/storage"
	"github.com/mattjoyce/inboxd/internal/store"
	"github.com/mattjoyce/inboxd/internal/tui/watch"
	"github.com/mattjoyce/inboxd/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "config":
		return runConfigNoun(args)
	case "sign":
		if hasHelpFlag(args) {
			printSignHelp()
			return 0
		}
		return runSign(args, os.Stdin)
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			return 0
		}
		return runWatch(args)
	case "doctor":
		return runConfigCheck(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: inboxd version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("inboxd %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`inboxd - Signed webhook inbox with a query API

Usage:
  inboxd <command> [flags]

Commands:
  serve             Run the HTTP service in the foreground
  config check      Validate configuration and environment
  doctor            Alias for config check
  sign              Print the X-Signature value for a request body
  watch             Live dashboard over /stats and /health/ready
  version           Show version information
  help              Show this help message

Environment:
  WEBHOOK_SECRET    Shared HMAC secret (required for readiness)
  DATABASE_URL      sqlite:///path database location
  LOG_LEVEL         debug, info, warn or error
  INBOXD_LISTEN     Listen address, e.g. 0.0.0.0:8000
  REDIS_URL         Redis URL for the shared dedupe cache
  INBOXD_CONFIG     Path to a YAML config file

Examples:
  inboxd serve --config /etc/inboxd/config.yaml
  inboxd sign --file body.json
  inboxd watch --url http://localhost:8000

Use 'inboxd <command> --help' for command-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printServeHelp() {
	fmt.Println("Usage: inboxd serve [--config PATH]")
	fmt.Println("Run the HTTP service in the foreground. Stops on SIGINT or SIGTERM.")
}

func printConfigNounHelp(w io.Writer) {
	fmt.Fprintln(w, "Usage: inboxd config <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: inboxd config check [--config PATH] [--json]")
	fmt.Println("Validate configuration, secret, database placement and dedupe backend.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  No errors (warnings allowed)")
	fmt.Println("  1  Configuration could not be loaded or has errors")
}

func printSignHelp() {
	fmt.Println("Usage: inboxd sign [--secret S] [--file PATH]")
	fmt.Println("Print the hex HMAC-SHA256 of a body read from --file or stdin.")
	fmt.Println("The secret defaults to $WEBHOOK_SECRET.")
}

func printWatchHelp() {
	fmt.Println("Usage: inboxd watch [flags]")
	fmt.Println()
	fmt.Println("Live dashboard showing readiness, ingest rate and top senders.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --url URL          Service base URL (default: http://localhost:8000)")
	fmt.Println("  --interval DUR     Poll interval (default: 2s)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C          Quit")
	fmt.Println("  r                  Refresh now")
	fmt.Println("  ↑/↓, k/j           Scroll senders")
}

// --- CONFIG ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		printConfigNounHelp(os.Stderr)
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output the report as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

// loadConfig loads configPath, falling back to the discovered file and then
// to defaults plus environment.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.DiscoverConfigFile()
	}
	return config.Load(configPath)
}

// --- SIGN ---

func runSign(args []string, stdin io.Reader) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv(config.EnvWebhookSecret), "Shared HMAC secret")
	file := fs.String("file", "", "Read the body from PATH instead of stdin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret required. Use --secret or %s env var.\n", config.EnvWebhookSecret)
		return 1
	}

	var (
		body []byte
		err  error
	)
	if *file != "" {
		body, err = os.ReadFile(*file)
	} else {
		body, err = io.ReadAll(stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read body: %v\n", err)
		return 1
	}

	// The signature covers the exact bytes sent, trailing newline included.
	fmt.Println(webhook.Sign(body, *secret))
	return 0
}

// --- WATCH ---

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	url := fs.String("url", "http://localhost:8000", "Service base URL")
	interval := fs.Duration("interval", watch.DefaultInterval, "Poll interval")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(strings.TrimRight(*url, "/"), *interval)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// --- SERVE ---

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("inboxd starting", "version", version, "config", cfg.SourceFile)

	if cfg.Service.PIDFile != "" {
		pidLock, err := lock.Acquire(cfg.Service.PIDFile)
		if err != nil {
			logger.Error("failed to acquire pid file (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
			return 1
		}
		defer pidLock.Release()
		logger.Info("acquired pid file", "path", cfg.Service.PIDFile)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer app.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := app.server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
		close(errCh)
	}()

	logger.Info("inboxd running (press Ctrl+C to stop)", "listen", cfg.HTTP.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		// Start returns once in-flight requests drain.
		if err := <-errCh; err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed", "error", err)
			return 1
		}
	}

	logger.Info("inboxd stopped")
	return 0
}

// app is the wired service and the resources it owns.
type app struct {
	db     *sql.DB
	cache  dedupe.Cache
	server *api.Server
}

// newApp opens the database and dedupe cache and wires the handlers.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook secret is not set; deliveries will be rejected and readiness will fail",
			"env", config.EnvWebhookSecret)
	}

	dbPath, err := cfg.SQLitePath()
	if err != nil {
		return nil, fmt.Errorf("database.url: %w", err)
	}
	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", dbPath, err)
	}
	logger.Info("database opened", "path", dbPath)

	var st store.Backend = store.New(db, store.Options{
		TopSenders: cfg.Store.TopSenders,
		Logger:     log.WithComponent("store"),
	})
	if b := cfg.Store.Breaker; b.Enabled {
		st = store.NewGuarded(st, store.BreakerSettings{
			MinRequests:  b.MinRequests,
			FailureRatio: b.FailureRatio,
			Interval:     b.Interval,
			ResetAfter:   b.ResetAfter,
			HalfOpenMax:  b.HalfOpenMax,
			Logger:       log.WithComponent("store"),
		})
	}

	cache, err := dedupe.New(ctx, cfg.Dedupe)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	logger.Info("dedupe cache ready", "backend", cfg.Dedupe.Backend)

	settings, err := webhook.FromConfig(cfg.Webhook)
	if err != nil {
		_ = cache.Close()
		_ = db.Close()
		return nil, err
	}
	ingest := webhook.NewHandler(settings, st, cache, log.WithComponent("webhook"))

	server := api.New(api.Config{
		Listen:           cfg.HTTP.Listen,
		ReadTimeout:      cfg.HTTP.ReadTimeout,
		WriteTimeout:     cfg.HTTP.WriteTimeout,
		IdleTimeout:      cfg.HTTP.IdleTimeout,
		RequestTimeout:   cfg.HTTP.RequestTimeout,
		SecretConfigured: cfg.Webhook.Secret != "",
	}, st, ingest, log.WithComponent("api"))

	return &app{db: db, cache: cache, server: server}, nil
}

func (a *app) Close() error {
	return errors.Join(a.cache.Close(), a.db.Close())
}
