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

	"github.com/dgnsrekt/mazda_agent/internal/browser"
	"github.com/dgnsrekt/mazda_agent/internal/captureapi"
	"github.com/dgnsrekt/mazda_agent/internal/config"
	"github.com/dgnsrekt/mazda_agent/internal/indicator"
	"github.com/dgnsrekt/mazda_agent/internal/interceptor"
	"github.com/dgnsrekt/mazda_agent/internal/journal"
	"github.com/dgnsrekt/mazda_agent/internal/netutil"
	"github.com/dgnsrekt/mazda_agent/internal/stream"
)

func main() {
	cfg, err := config.LoadCapture()
	if err != nil {
		slog.Error("failed to load capture config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("capture config loaded",
		"cdp_url", cfg.CDPURL(),
		"launch_browser", cfg.LaunchBrowser,
		"bind_addr", cfg.BindAddr,
		"bind_auto_fallback", cfg.BindAutoFallback,
		"journal_dir", cfg.JournalDir,
		"notify_enabled", cfg.NotifyEndpoint != "",
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.BindCandidates, cfg.BindAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	jw, err := journal.NewWriter(cfg.JournalDir, cfg.JournalBufferSize, cfg.JournalMaxSizeMB)
	if err != nil {
		slog.Error("failed to open capture journal", "dir", cfg.JournalDir, "error", err)
		os.Exit(1)
	}
	defer func() { _ = jw.Close() }()

	badge := indicator.New()
	broker := stream.NewBroker()

	capturePageURL := "http://" + bindAddr + "/capture"
	dispatcher := interceptor.NewDispatcher(capturePageURL, badge, jw, broker, cfg.NotifyEndpoint)

	cdpClient := interceptor.NewClient(cfg.CDPURL(), dispatcher)
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect interceptor", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() { _ = cdpClient.Close() }()

	h := captureapi.NewServer(cdpClient, badge, broker)
	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("capture agent listening", "addr", bindAddr, "capture_page", capturePageURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("capture server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("capture shutdown failed", "error", err)
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
