package config

import "testing"

func TestLoadCaptureDefaults(t *testing.T) {
	cfg, err := LoadCapture()
	if err != nil {
		t.Fatalf("LoadCapture() error = %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:8699" {
		t.Fatalf("unexpected default bind addr: %q", cfg.BindAddr)
	}
	if got, want := cfg.CDPURL(), "http://127.0.0.1:9222"; got != want {
		t.Fatalf("CDPURL() = %q, want %q", got, want)
	}
	if !cfg.LaunchBrowser {
		t.Fatalf("expected browser launch enabled by default")
	}
	if cfg.BindAutoFallback {
		t.Fatalf("expected port fallback disabled by default")
	}
	if len(cfg.BindCandidates) != 2 {
		t.Fatalf("unexpected default bind candidates: %v", cfg.BindCandidates)
	}
}

func TestLoadCaptureEnvOverrides(t *testing.T) {
	t.Setenv("CHROMIUM_CDP_PORT", "9333")
	t.Setenv("CAPTURE_LAUNCH_BROWSER", "false")
	t.Setenv("CAPTURE_NOTIFY_ENDPOINT", "http://ntfy.local/captures")

	cfg, err := LoadCapture()
	if err != nil {
		t.Fatalf("LoadCapture() error = %v", err)
	}
	if cfg.CDPPort != 9333 {
		t.Fatalf("expected CDP port override, got %d", cfg.CDPPort)
	}
	if cfg.LaunchBrowser {
		t.Fatalf("expected launch disabled")
	}
	if cfg.NotifyEndpoint != "http://ntfy.local/captures" {
		t.Fatalf("expected notify endpoint override, got %q", cfg.NotifyEndpoint)
	}
}

func TestLoadBridgeClampsPollInterval(t *testing.T) {
	t.Setenv("MAZDA_EMAIL", "driver@example.com")
	t.Setenv("MAZDA_PASSWORD", "hunter2")
	t.Setenv("BRIDGE_POLL_INTERVAL_SEC", "5")
	t.Setenv("MAZDA_REGION", "mme")

	cfg, err := LoadBridge()
	if err != nil {
		t.Fatalf("LoadBridge() error = %v", err)
	}
	if cfg.PollIntervalSec != 60 {
		t.Fatalf("expected poll interval clamped to 60, got %d", cfg.PollIntervalSec)
	}
	if cfg.Region != "MME" {
		t.Fatalf("expected region upper-cased, got %q", cfg.Region)
	}
	if len(cfg.OAuthScopes) != 3 {
		t.Fatalf("expected default scopes, got %v", cfg.OAuthScopes)
	}
}

func TestLoadBridgeRequiresCredentials(t *testing.T) {
	t.Setenv("MAZDA_EMAIL", "")
	t.Setenv("MAZDA_PASSWORD", "")

	if _, err := LoadBridge(); err == nil {
		t.Fatal("expected error without credentials")
	}
}
