// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/4n4n4s/enigma2jellyfin/internal/api"
	"github.com/4n4n4s/enigma2jellyfin/internal/cache"
	"github.com/4n4n4s/enigma2jellyfin/internal/config"
	"github.com/4n4n4s/enigma2jellyfin/internal/jobs"
	xglog "github.com/4n4n4s/enigma2jellyfin/internal/log"
	"github.com/4n4n4s/enigma2jellyfin/internal/openwebif"
	"github.com/4n4n4s/enigma2jellyfin/internal/scheduler"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")

	// The remaining flags override environment variables and the config
	// file. Their defaults are resolved after config loading, so flag
	// parsing is deferred via flag.Visit below.
	host := flag.String("host", config.DefaultHost, "Enigma2 box IP or hostname (E2J_HOST)")
	controlPort := flag.Int("control-port", config.DefaultControlPort, "OpenWebIf port (E2J_CONTROL_PORT)")
	streamPort := flag.Int("stream-port", config.DefaultStreamPort, "OpenWebIf stream port (E2J_STREAM_PORT)")
	bouquet := flag.String("bouquet", config.DefaultBouquet, "bouquet name (E2J_BOUQUET)")
	dataDir := flag.String("data", config.DefaultDataDir, "data directory (E2J_DATA)")
	epgFile := flag.String("epg-file", config.DefaultXMLTVFile, "XMLTV output filename (E2J_EPG_FILE)")
	m3uFile := flag.String("m3u-file", config.DefaultM3UFile, "M3U output filename (E2J_M3U_FILE)")
	interval := flag.Duration("interval", config.DefaultInterval, "regeneration interval (E2J_INTERVAL)")
	listen := flag.String("listen", config.DefaultListenAddr, "HTTP listen address (E2J_LISTEN)")
	cacheTTL := flag.Duration("cache-ttl", config.DefaultCacheTTL, "upstream response cache TTL, 0 disables (E2J_CACHE_TTL)")
	logLevel := flag.String("log-level", "info", "log level (E2J_LOG_LEVEL)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("enigma2jellyfin %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	// Flags set on the command line win over environment and file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "control-port":
			cfg.ControlPort = *controlPort
		case "stream-port":
			cfg.StreamPort = *streamPort
		case "bouquet":
			cfg.Bouquet = *bouquet
		case "data":
			cfg.DataDir = *dataDir
		case "epg-file":
			cfg.XMLTVFile = *epgFile
		case "m3u-file":
			cfg.M3UFile = *m3uFile
		case "interval":
			cfg.Interval = *interval
		case "listen":
			cfg.ListenAddr = *listen
		case "cache-ttl":
			cfg.CacheTTL = *cacheTTL
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: "enigma2jellyfin",
	})
	logger := xglog.WithComponent("daemon")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup conditions that cannot be retried are fatal; everything after
	// this point recovers on the next scheduled tick instead.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "datadir.create_failed").
			Str("path", cfg.DataDir).
			Msg("cannot create data directory")
	}

	clientOpts := openwebif.Options{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 10,
	}

	// The response cache is an optional collaborator: if it cannot be
	// opened the daemon runs uncached rather than not at all.
	if cfg.CacheTTL > 0 {
		cacheDir := filepath.Join(cfg.DataDir, "cache")
		transport, err := cache.Open(cacheDir, cfg.CacheTTL, nil)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("event", "cache.open_failed").
				Str("path", cacheDir).
				Msg("response cache unavailable, continuing without it")
		} else {
			defer func() {
				if err := transport.Close(); err != nil {
					logger.Warn().Err(err).Msg("close response cache")
				}
			}()
			clientOpts.Transport = transport
		}
	}

	client := openwebif.New(cfg.ControlBaseURL(), clientOpts)

	logger.Info().
		Str("event", "daemon.start").
		Str("version", version).
		Str("box", cfg.ControlBaseURL()).
		Str("bouquet", cfg.Bouquet).
		Dur("interval", cfg.Interval).
		Str("listen", cfg.ListenAddr).
		Msg("starting enigma2jellyfin")

	var lastStatus atomic.Pointer[jobs.Status]
	sched := scheduler.New(cfg.Interval, func(ctx context.Context) error {
		status, err := jobs.Refresh(ctx, cfg, client)
		if err != nil {
			return err
		}
		lastStatus.Store(status)
		return nil
	})
	go sched.Run(ctx)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.New(cfg, sched, lastStatus.Load).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		// Failing to bind the serving port is an unrecoverable startup
		// condition.
		logger.Fatal().
			Err(err).
			Str("event", "http.serve_failed").
			Str("listen", cfg.ListenAddr).
			Msg("HTTP server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Str("event", "http.shutdown_failed").Msg("HTTP server shutdown")
	}
	logger.Info().Str("event", "daemon.stop").Msg("shutdown complete")
}
