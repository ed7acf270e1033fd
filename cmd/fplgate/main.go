package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/fplmcp/fplgate"
	"github.com/fplmcp/fplgate/fpl"
	"github.com/fplmcp/fplgate/servers/fantasy"
)

const version = "0.1.0"

// Options holds the command line and environment configuration.
type Options struct {
	Addr string `short:"a" long:"addr" env:"FPLGATE_ADDR" default:":8080" description:"listen address"`

	BaseURL          string        `long:"base-url" env:"FPLGATE_BASE_URL" description:"upstream FPL API base URL"`
	ProxyURLs        []string      `long:"proxy" env:"FPLGATE_PROXY_URLS" env-delim:"," description:"proxy URL for upstream fallback, repeatable"`
	ProxyEnabled     bool          `long:"proxy-enabled" env:"FPLGATE_PROXY_ENABLED" description:"enable proxy fallback"`
	AttemptTimeout   time.Duration `long:"attempt-timeout" env:"FPLGATE_ATTEMPT_TIMEOUT" default:"30s" description:"timeout per upstream attempt"`
	FailureThreshold int           `long:"failure-threshold" env:"FPLGATE_FAILURE_THRESHOLD" default:"3" description:"consecutive failures before a proxy is benched"`
	Cooldown         time.Duration `long:"cooldown" env:"FPLGATE_COOLDOWN" default:"5m" description:"how long a benched proxy stays benched"`

	CacheTTL           time.Duration `long:"cache-ttl" env:"FPLGATE_CACHE_TTL" default:"1h" description:"TTL for cached upstream responses"`
	CurrentGameweekTTL time.Duration `long:"current-gameweek-ttl" env:"FPLGATE_CURRENT_GAMEWEEK_TTL" default:"10m" description:"TTL for the current gameweek"`
	RateLimit          int           `long:"rate-limit" env:"FPLGATE_RATE_LIMIT" default:"20" description:"upstream requests allowed per rate period"`
	RatePeriod         time.Duration `long:"rate-period" env:"FPLGATE_RATE_PERIOD" default:"1m" description:"upstream rate limit period"`

	LogLevel string `long:"log-level" env:"FPLGATE_LOG_LEVEL" default:"info" description:"log level (debug, info, warn, error)" choice:"debug" choice:"info" choice:"warn" choice:"error"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fplgate: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(opts.LogLevel),
	}))
	slog.SetDefault(logger)

	client, err := fpl.NewClient(fpl.Config{
		BaseURL:            opts.BaseURL,
		ProxyURLs:          opts.ProxyURLs,
		ProxyEnabled:       opts.ProxyEnabled,
		AttemptTimeout:     opts.AttemptTimeout,
		FailureThreshold:   opts.FailureThreshold,
		Cooldown:           opts.Cooldown,
		CacheTTL:           opts.CacheTTL,
		CurrentGameweekTTL: opts.CurrentGameweekTTL,
		RateLimit:          opts.RateLimit,
		RatePeriod:         opts.RatePeriod,
	}, fpl.WithClientLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create fpl client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client.StartCacheSweeper(ctx, 5*time.Minute)

	registry := fantasy.NewServer(client, fantasy.WithServerLogger(logger)).Registry()
	dispatcher := fplgate.NewDispatcher(fplgate.Info{
		Name:    "fplgate",
		Version: version,
	}, registry, fplgate.WithDispatcherLogger(logger))

	sseServer := fplgate.NewSSEServer("/message", dispatcher, fplgate.WithSSEServerLogger(logger))
	wsServer := fplgate.NewWSServer(dispatcher, fplgate.WithWSServerLogger(logger))
	postServer := fplgate.NewPostServer(dispatcher, fplgate.WithPostServerLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.HandleSSE())
	mux.Handle("/message", sseServer.HandleMessage())
	mux.Handle("/ws", wsServer.Handler())
	mux.Handle("/mcp", postServer.Handler())
	mux.HandleFunc("/health", healthHandler(client))
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fplgate " + version + "\n"))
	})

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", opts.Addr),
			slog.Bool("proxyEnabled", opts.ProxyEnabled),
			slog.Int("proxyCount", len(opts.ProxyURLs)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("sse server shutdown failed", slog.String("err", err.Error()))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ws server shutdown failed", slog.String("err", err.Error()))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func healthHandler(client *fpl.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": version,
			"proxies": client.Fetcher().ProxyStatus(),
		})
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
