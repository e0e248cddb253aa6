package main

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_API_KEY", "abc123")
	t.Setenv("ST_CRON", "*/5 * * * *")

	cfg, err := loadConfig(writeConfigFile(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIURL != "http://127.0.0.1:8384/" {
		t.Fatalf("expected default URL with normalized trailing slash, got %q", cfg.APIURL)
	}
	if !cfg.VerifyTLS {
		t.Fatalf("expected TLS verification enabled by default")
	}
	if cfg.StatusDelay != 5.0 {
		t.Fatalf("expected default status delay 5, got %v", cfg.StatusDelay)
	}
	if cfg.RateLimit != 4.0 {
		t.Fatalf("expected default rate limit 4, got %v", cfg.RateLimit)
	}
	if got := cfg.GlobalFolders(); !reflect.DeepEqual(got, []string{"*"}) {
		t.Fatalf("expected wildcard global folders, got %v", got)
	}
	if cfg.DryRun || cfg.RunOnce || cfg.ScanOnStartup {
		t.Fatalf("expected all toggles off by default")
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_CRON", "*/5 * * * *")

	_, err := loadConfig(writeConfigFile(t, "{}"))
	if err == nil {
		t.Fatalf("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got: %v", err)
	}
}

func TestLoadConfigRequiresSchedule(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_API_KEY", "abc123")

	_, err := loadConfig(writeConfigFile(t, "{}"))
	if err == nil {
		t.Fatalf("expected error when neither cron nor folder_cron is set")
	}
}

func TestLoadConfigAcceptsFolderCronOnly(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_API_KEY", "abc123")
	t.Setenv("ST_FOLDER_CRON", "docs: 0 2 * * *")

	cfg, err := loadConfig(writeConfigFile(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cron != "" {
		t.Fatalf("expected empty global cron, got %q", cfg.Cron)
	}
}

func TestLoadConfigNormalizesTrailingSlashOnce(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:8384", "http://127.0.0.1:8384/"},
		{"http://127.0.0.1:8384/", "http://127.0.0.1:8384/"},
		{"https://example.com:8384///", "https://example.com:8384/"},
	}

	for _, tc := range cases {
		clearKickerEnv(t)
		t.Setenv("ST_API_KEY", "abc123")
		t.Setenv("ST_CRON", "*/5 * * * *")
		t.Setenv("ST_API_URL", tc.in)

		cfg, err := loadConfig(writeConfigFile(t, "{}"))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.in, err)
		}
		if cfg.APIURL != tc.want {
			t.Fatalf("URL %q: expected %q, got %q", tc.in, tc.want, cfg.APIURL)
		}
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	clearKickerEnv(t)
	path := writeConfigFile(t, `{"api_key": "from-file", "cron": "0 0 * * *", "log_level": "debug"}`)
	t.Setenv("ST_CRON", "*/10 * * * *")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cron != "*/10 * * * *" {
		t.Fatalf("expected env to override file cron, got %q", cfg.Cron)
	}
	if cfg.APIKey != "from-file" {
		t.Fatalf("expected file api_key to survive, got %q", cfg.APIKey)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected file log_level to survive, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigRejectsInvalidTimezone(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_API_KEY", "abc123")
	t.Setenv("ST_CRON", "*/5 * * * *")
	t.Setenv("CRON_TZ", "Invalid/Zone")

	_, err := loadConfig(writeConfigFile(t, "{}"))
	if err == nil {
		t.Fatalf("expected error for invalid timezone")
	}
}

func TestLoadConfigRejectsInvalidFolderCron(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_API_KEY", "abc123")
	t.Setenv("ST_FOLDER_CRON", "missing-a-colon-entirely")

	_, err := loadConfig(writeConfigFile(t, "{}"))
	if err == nil {
		t.Fatalf("expected error for malformed folder_cron")
	}
}

func TestLoadConfigIgnoresNegativeStatusDelay(t *testing.T) {
	clearKickerEnv(t)
	t.Setenv("ST_API_KEY", "abc123")
	t.Setenv("ST_CRON", "*/5 * * * *")
	t.Setenv("ST_STATUS_DELAY", "-3")

	cfg, err := loadConfig(writeConfigFile(t, "{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StatusDelay != 5.0 {
		t.Fatalf("expected negative delay to be ignored, got %v", cfg.StatusDelay)
	}
}

func TestTimeoutForHonorsOverride(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.timeoutFor(defaultScanTimeout); got != defaultScanTimeout {
		t.Fatalf("expected per-operation default, got %v", got)
	}

	cfg.RequestTimeout = 2.5
	if got := cfg.timeoutFor(defaultScanTimeout); got != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s override, got %v", got)
	}
}

func TestGlobalFoldersParsing(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Folders = "alpha, beta ,, gamma "
	if got := cfg.GlobalFolders(); !reflect.DeepEqual(got, []string{"alpha", "beta", "gamma"}) {
		t.Fatalf("unexpected folder list: %v", got)
	}

	cfg.Folders = "  ,  "
	if got := cfg.GlobalFolders(); !reflect.DeepEqual(got, []string{"*"}) {
		t.Fatalf("expected wildcard fallback, got %v", got)
	}
}

func TestParseEnvBool(t *testing.T) {
	cases := []struct {
		in   string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"true", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"0", true, false},
		{"false", true, false},
		{"no", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		if got := parseEnvBool(tc.in, tc.def); got != tc.want {
			t.Fatalf("parseEnvBool(%q, %v) = %v, want %v", tc.in, tc.def, got, tc.want)
		}
	}
}
