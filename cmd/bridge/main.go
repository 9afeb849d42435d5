package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/mazda_agent/internal/bridgeapi"
	"github.com/dgnsrekt/mazda_agent/internal/config"
	"github.com/dgnsrekt/mazda_agent/internal/coordinator"
	"github.com/dgnsrekt/mazda_agent/internal/mazda"
	"github.com/dgnsrekt/mazda_agent/internal/metrics"
	"github.com/dgnsrekt/mazda_agent/internal/netutil"
	"github.com/dgnsrekt/mazda_agent/internal/tokenstore"
)

func main() {
	cfg, err := config.LoadBridge()
	if err != nil {
		slog.Error("failed to load bridge config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("bridge config loaded",
		"region", cfg.Region,
		"poll_interval_sec", cfg.PollIntervalSec,
		"bind_addr", cfg.BindAddr,
		"bind_auto_fallback", cfg.BindAutoFallback,
		"oauth_enabled", cfg.OAuthClientID != "",
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	region, err := mazda.RegionByCode(cfg.Region)
	if err != nil {
		slog.Error("unknown region", "region", cfg.Region, "error", err)
		os.Exit(1)
	}

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.BindCandidates, cfg.BindAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	client := mazda.NewClient(cfg.Email, cfg.Password, region)
	m := metrics.New()

	coord := coordinator.New(client, coordinator.Config{
		PollInterval:       time.Duration(cfg.PollIntervalSec) * time.Second,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerTimeout:     time.Duration(cfg.BreakerTimeoutSec) * time.Second,
	}, m)

	pollCtx, stopPolling := context.WithCancel(context.Background())
	defer stopPolling()
	go coord.Run(pollCtx)

	var auth *bridgeapi.AuthHandler
	if cfg.OAuthClientID != "" {
		auth = bridgeapi.NewAuthHandler(mazda.OAuthConfig{
			ClientID:    cfg.OAuthClientID,
			RedirectURI: cfg.OAuthRedirectURI,
			Scopes:      cfg.OAuthScopes,
			Host:        cfg.OAuthHost,
		}, tokenstore.New(cfg.TokenPath))
	}

	h := bridgeapi.NewServer(coord, auth, m)
	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("bridge listening", "addr", bindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("bridge server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopPolling()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("bridge shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
