// Package config reads configuration for both binaries from environment
// variables and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// CaptureConfig holds configuration for the OAuth capture agent.
type CaptureConfig struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Browser launch settings
	LaunchBrowser bool
	ProfileDir    string
	StartURL      string

	// Local HTTP surface (capture page, status API, event stream)
	BindAddr         string
	BindCandidates   []string
	BindAutoFallback bool

	// Capture journal
	JournalDir        string
	JournalBufferSize int
	JournalMaxSizeMB  int

	// Optional ntfy endpoint for capture notifications; empty disables.
	NotifyEndpoint string

	LogLevel string
	LogFile  string
}

// BridgeConfig holds configuration for the vehicle data service.
type BridgeConfig struct {
	Region string

	// Mazda account credentials for the signed application API
	Email    string
	Password string

	// OAuth (Azure AD B2C) application settings; ClientID empty disables the
	// auth helper endpoints.
	OAuthClientID    string
	OAuthRedirectURI string
	OAuthScopes      []string
	OAuthHost        string

	// OAuth token persistence
	TokenPath string

	// Polling
	PollIntervalSec int

	// Circuit breaker around the Mazda API
	BreakerMaxFailures uint32
	BreakerTimeoutSec  int

	BindAddr         string
	BindCandidates   []string
	BindAutoFallback bool

	LogLevel string
	LogFile  string
}

// LoadCapture reads capture agent configuration.
func LoadCapture() (*CaptureConfig, error) {
	loadDotEnv()

	cfg := &CaptureConfig{
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		LaunchBrowser:     getEnvBoolOrDefault("CAPTURE_LAUNCH_BROWSER", true),
		ProfileDir:        getEnvOrDefault("CAPTURE_PROFILE_DIR", "./browser_profile"),
		StartURL:          getEnvOrDefault("CAPTURE_START_URL", ""),
		BindAddr:          getEnvOrDefault("CAPTURE_BIND_ADDR", "127.0.0.1:8699"),
		BindCandidates:    splitList(getEnvOrDefault("CAPTURE_BIND_CANDIDATES", "127.0.0.1:8700 127.0.0.1:8701")),
		BindAutoFallback:  getEnvBoolOrDefault("CAPTURE_BIND_AUTO_FALLBACK", false),
		JournalDir:        getEnvOrDefault("CAPTURE_JOURNAL_DIR", "./capture_journal"),
		JournalBufferSize: getEnvIntOrDefault("CAPTURE_JOURNAL_BUFFER_SIZE", 256),
		JournalMaxSizeMB:  getEnvIntOrDefault("CAPTURE_JOURNAL_MAX_SIZE_MB", 10),
		NotifyEndpoint:    getEnvOrDefault("CAPTURE_NOTIFY_ENDPOINT", ""),
		LogLevel:          strings.ToLower(getEnvOrDefault("CAPTURE_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("CAPTURE_LOG_FILE", "logs/capture.log"),
	}
	return cfg, nil
}

// LoadBridge reads bridge service configuration.
func LoadBridge() (*BridgeConfig, error) {
	loadDotEnv()

	cfg := &BridgeConfig{
		Region:             strings.ToUpper(getEnvOrDefault("MAZDA_REGION", "MNAO")),
		Email:              getEnvOrDefault("MAZDA_EMAIL", ""),
		Password:           getEnvOrDefault("MAZDA_PASSWORD", ""),
		OAuthClientID:      getEnvOrDefault("MAZDA_OAUTH_CLIENT_ID", ""),
		OAuthRedirectURI:   getEnvOrDefault("MAZDA_OAUTH_REDIRECT_URI", "msauth://com.interrait.mymazda/auth"),
		OAuthScopes:        splitList(getEnvOrDefault("MAZDA_OAUTH_SCOPES", "openid profile offline_access")),
		OAuthHost:          getEnvOrDefault("MAZDA_OAUTH_HOST", ""),
		TokenPath:          getEnvOrDefault("MAZDA_TOKEN_PATH", "./mazda_token.json"),
		PollIntervalSec:    getEnvIntOrDefault("BRIDGE_POLL_INTERVAL_SEC", 300),
		BreakerMaxFailures: uint32(getEnvIntOrDefault("BRIDGE_BREAKER_MAX_FAILURES", 5)),
		BreakerTimeoutSec:  getEnvIntOrDefault("BRIDGE_BREAKER_TIMEOUT_SEC", 60),
		BindAddr:           getEnvOrDefault("BRIDGE_BIND_ADDR", "127.0.0.1:8698"),
		BindCandidates:     splitList(getEnvOrDefault("BRIDGE_BIND_CANDIDATES", "127.0.0.1:8696 127.0.0.1:8697")),
		BindAutoFallback:   getEnvBoolOrDefault("BRIDGE_BIND_AUTO_FALLBACK", false),
		LogLevel:           strings.ToLower(getEnvOrDefault("BRIDGE_LOG_LEVEL", "info")),
		LogFile:            getEnvOrDefault("BRIDGE_LOG_FILE", "logs/bridge.log"),
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("MAZDA_EMAIL and MAZDA_PASSWORD are required")
	}
	if cfg.PollIntervalSec < 60 {
		cfg.PollIntervalSec = 60
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *CaptureConfig) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

func splitList(val string) []string {
	return strings.Fields(val)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
