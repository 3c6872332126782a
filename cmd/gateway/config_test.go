package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policies file: %v", err)
	}
	return path
}

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")

	cfg, err := readConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.defaultPolicy.Window() != 60*time.Second || cfg.defaultPolicy.MaxRequests() != 5 {
		t.Fatalf("expected default 5/60s, got %s", cfg.defaultPolicy)
	}
	if cfg.storeBackend != "redis" || cfg.retryBackoff != 5*time.Second {
		t.Fatalf("unexpected store defaults: backend=%s backoff=%s", cfg.storeBackend, cfg.retryBackoff)
	}
	if cfg.perRoute {
		t.Fatalf("expected per-route scoping disabled by default")
	}
}

func TestReadConfig_RejectsNonNumericPolicy(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_MAX_REQUESTS", "five")

	_, err := readConfig()
	if !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestReadConfig_RejectsNonPositivePolicy(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_WINDOW_SECONDS", "0")

	_, err := readConfig()
	if !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestReadConfig_RequiresUpstream(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	if _, err := readConfig(); err == nil {
		t.Fatalf("expected error without UPSTREAM_URL")
	}
}

func TestReadConfig_PoliciesFile(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_WHITELIST", "10.0.0.1, 10.0.0.2")
	t.Setenv("RATE_POLICIES_FILE", writeFile(t, `
policies:
  default: {window_seconds: 30, max_requests: 10}
  premium: {window_seconds: 60, max_requests: 100}
routes:
  - {pattern: /api/*, policy: premium}
whitelist: [10.0.0.3]
`))

	cfg, err := readConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.defaultPolicy.MaxRequests() != 10 || cfg.defaultPolicy.Window() != 30*time.Second {
		t.Fatalf("expected file default policy, got %s", cfg.defaultPolicy)
	}
	if len(cfg.routes) != 1 || cfg.routes[0].pattern != "/api/*" || cfg.routes[0].policy.MaxRequests() != 100 {
		t.Fatalf("unexpected routes %+v", cfg.routes)
	}
	if cfg.whitelist.Len() != 3 || !cfg.whitelist.Contains("10.0.0.3") {
		t.Fatalf("expected env and file whitelist merged, got %d entries", cfg.whitelist.Len())
	}
}

func TestReadConfig_PoliciesFileRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_POLICIES_FILE", writeFile(t, `
routes:
  - {pattern: /api/*, policy: gold}
`))

	if _, err := readConfig(); !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestReadConfig_PoliciesFileRejectsNonNumeric(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_POLICIES_FILE", writeFile(t, `
policies:
  premium: {window_seconds: "sixty", max_requests: 100}
`))

	if _, err := readConfig(); !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestReadConfig_PoliciesFileRejectsZero(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("RATE_POLICIES_FILE", writeFile(t, `
policies:
  premium: {window_seconds: 60, max_requests: 0}
`))

	if _, err := readConfig(); !errors.Is(err, domain.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestReadConfig_PoliciesFileRejectsNonIntegers(t *testing.T) {
	for _, body := range []string{
		`premium: {window_seconds: 60, max_requests: 5.9}`,
		`premium: {window_seconds: 60.5, max_requests: 5}`,
		`premium: {window_seconds: 6e1, max_requests: 5}`,
		`premium: {window_seconds: "60", max_requests: 5}`,
		`premium: {window_seconds: 60, max_requests: true}`,
		`premium: {window_seconds: 60}`,
	} {
		t.Run(body, func(t *testing.T) {
			t.Setenv("UPSTREAM_URL", "http://localhost:9000")
			t.Setenv("RATE_POLICIES_FILE", writeFile(t, "policies:\n  "+body+"\n"))

			cfg, err := readConfig()
			if !errors.Is(err, domain.ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v (policy %s)", err, cfg.defaultPolicy)
			}
		})
	}
}

func TestReadConfig_RejectsMalformedEnv(t *testing.T) {
	for _, tc := range []struct{ key, value string }{
		{"STORE_TIMEOUT", "250"},
		{"STORE_RETRY_BACKOFF", "5 seconds"},
		{"STORE_HEALTH_INTERVAL", "2x"},
		{"REDIS_DB", "abc"},
		{"RATE_PER_ROUTE", "maybe"},
		{"RATE_STATS_TTL", "1d"},
	} {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv("UPSTREAM_URL", "http://localhost:9000")
			t.Setenv(tc.key, tc.value)

			_, err := readConfig()
			if err == nil {
				t.Fatalf("expected %s=%q to be rejected", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error to name %s, got %v", tc.key, err)
			}
		})
	}
}

func TestReadConfig_ParsesStoreEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://localhost:9000")
	t.Setenv("STORE_TIMEOUT", "300ms")
	t.Setenv("REDIS_DB", "2")

	cfg, err := readConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.storeTimeout != 300*time.Millisecond || cfg.redisDB != 2 {
		t.Fatalf("unexpected store config: timeout=%s db=%d", cfg.storeTimeout, cfg.redisDB)
	}
}
