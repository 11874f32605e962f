package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/VoteVerify/voteguard/internal/config"
)

// writeYAML drops a config file into a temp dir and returns its path.
func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voteguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Judges.Gemini.Model != "gemini-1.5-flash" {
		t.Errorf("Gemini model = %q", cfg.Judges.Gemini.Model)
	}
	if !cfg.Judges.MultiEvaluator {
		t.Error("multi-evaluator must default to on")
	}
	if cfg.Reloop.MaxAttempts != 3 || cfg.Reloop.Backoff != 2*time.Second {
		t.Errorf("Reloop = %+v, want 3 attempts / 2s backoff", cfg.Reloop)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry must default to off")
	}
}

func TestLoadFrom_YAMLOverridesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	path := writeYAML(t, `
server:
  port: "9090"
judges:
  timeout: 30s
  multi_evaluator: false
reloop:
  max_attempts: 5
`)

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Server.Port)
	}
	if cfg.Judges.Timeout != 30*time.Second {
		t.Errorf("Judges.Timeout = %v, want 30s", cfg.Judges.Timeout)
	}
	if cfg.Judges.MultiEvaluator {
		t.Error("yaml must be able to turn multi-evaluator off")
	}
	if cfg.Reloop.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Reloop.MaxAttempts)
	}
	// Untouched values keep their defaults.
	if cfg.Cache.MaxSizeMB != 64 {
		t.Errorf("Cache.MaxSizeMB = %d, want default 64", cfg.Cache.MaxSizeMB)
	}
}

func TestLoadFrom_EnvOverridesYAML(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("VOTEGUARD_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/voteguard")
	t.Setenv("VOTEGUARD_RELOOP_BACKOFF", "500ms")

	path := writeYAML(t, `
server:
  port: "9090"
postgres:
  dsn: "postgres://yaml-host:5432/voteguard"
`)

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Port = %q, want the env value 7070", cfg.Server.Port)
	}
	if !strings.Contains(cfg.Postgres.DSN, "env-host") {
		t.Errorf("DSN = %q, want the env value", cfg.Postgres.DSN)
	}
	if cfg.Reloop.Backoff != 500*time.Millisecond {
		t.Errorf("Backoff = %v, want 500ms", cfg.Reloop.Backoff)
	}
}

func TestLoadFrom_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
		want string
	}{
		{
			name: "missing gemini api key",
			want: "judges.gemini.api_key is required",
		},
		{
			name: "zero reloop attempts",
			yaml: "reloop:\n  max_attempts: 0\n",
			env:  map[string]string{"GEMINI_API_KEY": "k"},
			want: "reloop.max_attempts",
		},
		{
			name: "zero breaker failures",
			yaml: "breaker:\n  max_failures: 0\n",
			env:  map[string]string{"GEMINI_API_KEY": "k"},
			want: "breaker.max_failures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Neutralize ambient credentials so the zero-value paths trigger.
			t.Setenv("GEMINI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "voteguard.yaml")
			if tt.yaml != "" {
				if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
					t.Fatalf("write yaml: %v", err)
				}
			}

			_, err := config.LoadFrom(path)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	path := writeYAML(t, "server: [not a mapping")
	if _, err := config.LoadFrom(path); err == nil {
		t.Fatal("expected a parse error")
	}
}
