package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "voteguard.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "VOTEGUARD_PORT")
	setString(&cfg.Server.CORSOrigin, "VOTEGUARD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "VOTEGUARD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "VOTEGUARD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "VOTEGUARD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "VOTEGUARD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "VOTEGUARD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "VOTEGUARD_CACHE_SIZE_MB")

	setString(&cfg.Judges.Gemini.BaseURL, "VOTEGUARD_GEMINI_BASE_URL")
	setString(&cfg.Judges.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Judges.Gemini.Model, "VOTEGUARD_GEMINI_MODEL")
	setString(&cfg.Judges.Workers.BaseURL, "VOTEGUARD_WORKERS_BASE_URL")
	setString(&cfg.Judges.Workers.AccountID, "CLOUDFLARE_ACCOUNT_ID")
	setString(&cfg.Judges.Workers.APIToken, "CLOUDFLARE_API_TOKEN")
	setString(&cfg.Judges.Workers.Model, "VOTEGUARD_WORKERS_MODEL")
	setDuration(&cfg.Judges.Timeout, "VOTEGUARD_JUDGE_TIMEOUT")
	setBool(&cfg.Judges.MultiEvaluator, "VOTEGUARD_MULTI_EVALUATOR")

	setString(&cfg.Generator.BaseURL, "VOTEGUARD_PERPLEXITY_BASE_URL")
	setString(&cfg.Generator.APIKey, "PERPLEXITY_API_KEY")
	setString(&cfg.Generator.Model, "VOTEGUARD_PERPLEXITY_MODEL")
	setDuration(&cfg.Generator.Timeout, "VOTEGUARD_GENERATOR_TIMEOUT")

	setBool(&cfg.Markets.Enabled, "VOTEGUARD_MARKETS_ENABLED")
	setString(&cfg.Markets.BaseURL, "VOTEGUARD_MARKETS_BASE_URL")
	setDuration(&cfg.Markets.Timeout, "VOTEGUARD_MARKETS_TIMEOUT")

	setInt(&cfg.Reloop.MaxAttempts, "VOTEGUARD_RELOOP_MAX_ATTEMPTS")
	setDuration(&cfg.Reloop.Backoff, "VOTEGUARD_RELOOP_BACKOFF")

	setString(&cfg.Admin.APIKeyHash, "VOTEGUARD_ADMIN_KEY_HASH")

	setString(&cfg.Logging.Level, "VOTEGUARD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "VOTEGUARD_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "VOTEGUARD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "VOTEGUARD_BREAKER_TIMEOUT")

	setBool(&cfg.Telemetry.Enabled, "VOTEGUARD_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "VOTEGUARD_OTLP_ENDPOINT")
	setFloat64(&cfg.Telemetry.SampleRate, "VOTEGUARD_TELEMETRY_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Judges.Gemini.APIKey == "" {
		return errors.New("judges.gemini.api_key is required")
	}
	if cfg.Reloop.MaxAttempts < 1 {
		return errors.New("reloop.max_attempts must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setParsed overlays dst with the parsed value of the env var when it is
// set and parses cleanly. Unparseable values are ignored, keeping the
// YAML/default value in place.
func setParsed[T any](dst *T, key string, parse func(string) (T, error)) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := parse(v); err == nil {
		*dst = parsed
	}
}

func setInt(dst *int, key string) { setParsed(dst, key, strconv.Atoi) }

func setBool(dst *bool, key string) { setParsed(dst, key, strconv.ParseBool) }

func setInt32(dst *int32, key string) {
	setParsed(dst, key, func(s string) (int32, error) {
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	})
}

func setInt64(dst *int64, key string) {
	setParsed(dst, key, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func setFloat64(dst *float64, key string) {
	setParsed(dst, key, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func setDuration(dst *time.Duration, key string) {
	setParsed(dst, key, time.ParseDuration)
}
