package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds daemon configuration
type Config struct {
	// Syncthing API endpoint and key
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`

	// TLS certificate verification for https endpoints
	VerifyTLS bool `json:"verify_tls"`

	// Request timeout override in seconds (0 = per-operation defaults)
	RequestTimeout float64 `json:"request_timeout"`

	// Scan behaviour
	DryRun        bool `json:"dry_run"`
	RunOnce       bool `json:"run_once"`
	ScanOnStartup bool `json:"scan_on_startup"`

	// Global cron schedule (5-field, may be empty when folder_cron is set)
	Cron string `json:"cron"`

	// Per-folder schedules, newline-delimited "folderId: <cron expr>" lines.
	// Blank lines and #-prefixed lines are ignored.
	FolderCron string `json:"folder_cron"`

	// Comma-separated folder list for the global schedule ("*" = all folders)
	Folders string `json:"folders"`

	// Advisory timezone. Validated and logged, not applied to cron math;
	// schedules always evaluate against local wall-clock time.
	Timezone string `json:"timezone"`

	// Delay in seconds before checking sync status after a scan trigger
	StatusDelay float64 `json:"status_delay"`

	// Rate limiting for status/config requests (requests per second)
	RateLimit float64 `json:"rate_limit"`

	// Scan history database (empty = history disabled)
	DatabasePath string `json:"database_path"`

	// HTTP status API server
	HTTPPort    int  `json:"http_port"`
	HTTPEnabled bool `json:"http_enabled"`

	// Logging
	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		APIURL:      "http://127.0.0.1:8384",
		VerifyTLS:   true,
		Folders:     "*",
		StatusDelay: 5.0,
		RateLimit:   4.0, // 4 requests per second
		HTTPPort:    8080,
		LogLevel:    "info",
	}
}

// getDefaultConfigPaths returns list of default config file paths to check
func getDefaultConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		"./config.json",
		"./syncthing-kicker.json",
		homeDir + "/.config/syncthing-kicker/config.json",
	}
}

// loadConfig loads configuration from .env, config file, env vars, and defaults
func loadConfig(configPath string) (*Config, error) {
	// Load .env into the process environment first; existing variables win.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	// Determine which config file to use
	var configFile string
	if configPath != "" {
		configFile = configPath
	} else {
		for _, path := range getDefaultConfigPaths() {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	// Environment variables override config file
	if val := os.Getenv("ST_API_URL"); val != "" {
		cfg.APIURL = val
	}
	if val := os.Getenv("ST_API_KEY"); val != "" {
		cfg.APIKey = val
	}
	if val := os.Getenv("ST_TLS_VERIFY"); val != "" {
		cfg.VerifyTLS = parseEnvBool(val, cfg.VerifyTLS)
	}
	if val := os.Getenv("ST_REQUEST_TIMEOUT"); val != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && v >= 0 {
			cfg.RequestTimeout = v
		}
	}
	if val := os.Getenv("DRY_RUN"); val != "" {
		cfg.DryRun = parseEnvBool(val, cfg.DryRun)
	}
	if val := os.Getenv("RUN_ONCE"); val != "" {
		cfg.RunOnce = parseEnvBool(val, cfg.RunOnce)
	}
	if val := os.Getenv("SCAN_ON_STARTUP"); val != "" {
		cfg.ScanOnStartup = parseEnvBool(val, cfg.ScanOnStartup)
	}
	if val := os.Getenv("ST_CRON"); val != "" {
		cfg.Cron = val
	}
	if val := os.Getenv("ST_FOLDER_CRON"); val != "" {
		cfg.FolderCron = val
	}
	if val := os.Getenv("ST_FOLDERS"); val != "" {
		cfg.Folders = val
	}
	if val := os.Getenv("CRON_TZ"); val != "" {
		cfg.Timezone = val
	} else if val := os.Getenv("TZ"); val != "" {
		cfg.Timezone = val
	}
	if val := os.Getenv("ST_STATUS_DELAY"); val != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && v >= 0 {
			cfg.StatusDelay = v
		}
	}
	if val := os.Getenv("ST_RATE_LIMIT"); val != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil && v > 0 {
			cfg.RateLimit = v
		}
	}
	if val := os.Getenv("ST_DATABASE_PATH"); val != "" {
		cfg.DatabasePath = val
	}
	if val := os.Getenv("ST_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			cfg.HTTPPort = port
		}
	}
	if val := os.Getenv("ST_HTTP_ENABLED"); val != "" {
		cfg.HTTPEnabled = parseEnvBool(val, cfg.HTTPEnabled)
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	cfg.Cron = strings.TrimSpace(cfg.Cron)
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api_url must not be empty (set ST_API_URL or use config file)")
	}
	// Normalize the trailing slash exactly once.
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/") + "/"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api_key is required (set ST_API_KEY or use config file)")
	}

	folderCron, err := parseFolderCron(c.FolderCron)
	if err != nil {
		return err
	}
	if c.Cron == "" && len(folderCron) == 0 {
		return fmt.Errorf("set cron (ST_CRON, global schedule) and/or folder_cron (ST_FOLDER_CRON, per-folder schedules)")
	}

	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive")
	}

	return nil
}

// GlobalFolders returns the folder set the global schedule applies to.
// Defaults to the wildcard when unset.
func (c *Config) GlobalFolders() []string {
	parts := strings.Split(c.Folders, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{wildcardFolder}
	}
	return out
}

// timeoutFor resolves the per-operation timeout, honoring the
// request_timeout override when set.
func (c *Config) timeoutFor(def time.Duration) time.Duration {
	if c.RequestTimeout > 0 {
		return time.Duration(c.RequestTimeout * float64(time.Second))
	}
	return def
}

// statusDelay returns the delay before a post-scan status check.
func (c *Config) statusDelay() time.Duration {
	if c.StatusDelay < 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StatusDelay * float64(time.Second))
}

func parseEnvBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
