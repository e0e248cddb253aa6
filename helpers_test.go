package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// testLogger returns a logger that discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a goroutine-safe log sink for asserting on log output.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// captureLogger returns a debug-level logger and the buffer it writes to.
func captureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, buf
}

// newTestConfig builds a config pointed at a test server. Rate limiting
// is effectively disabled so tests are not throttled.
func newTestConfig(serverURL string) *Config {
	cfg := DefaultConfig()
	cfg.APIURL = serverURL + "/"
	cfg.APIKey = "test-key"
	cfg.Cron = "*/5 * * * *"
	cfg.StatusDelay = 0
	cfg.RateLimit = 10000
	return cfg
}

// writeConfigFile writes a JSON config file into a temp dir.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// clearKickerEnv blanks out every environment variable loadConfig reads,
// so tests do not leak host configuration.
func clearKickerEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"ST_API_URL", "ST_API_KEY", "ST_CRON", "ST_FOLDER_CRON", "ST_FOLDERS",
		"ST_TLS_VERIFY", "ST_REQUEST_TIMEOUT", "ST_STATUS_DELAY", "ST_RATE_LIMIT",
		"ST_DATABASE_PATH", "ST_HTTP_ENABLED", "ST_HTTP_PORT",
		"DRY_RUN", "RUN_ONCE", "SCAN_ON_STARTUP", "CRON_TZ", "TZ", "LOG_LEVEL",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}
