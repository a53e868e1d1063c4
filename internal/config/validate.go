package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only and never mutates cfg.
func Validate(cfg *AppConfig) error {
	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port: invalid port %q", cfg.Server.Port)
	}

	rc := cfg.RemoteConfig
	if strings.TrimSpace(rc.Key) == "" {
		return fmt.Errorf("remote_config.key must not be empty")
	}
	if rc.MinimumFetchInterval < 0 {
		return fmt.Errorf("remote_config.minimum_fetch_interval must not be negative")
	}
	if rc.FetchTimeout < 0 {
		return fmt.Errorf("remote_config.fetch_timeout must not be negative")
	}

	switch rc.Backend {
	case BackendFirebase:
		if cfg.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase.projectId is required for the firebase backend")
		}
		if cfg.Firebase.APIKey == "" {
			return fmt.Errorf("firebase.apiKey is required for the firebase backend")
		}
	case BackendRedis:
		if rc.RedisURL == "" {
			return fmt.Errorf("remote_config.redis_url is required for the redis backend")
		}
	case BackendPostgres:
		if rc.DatabaseURL == "" {
			return fmt.Errorf("remote_config.database_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("remote_config.backend: unknown backend %q", rc.Backend)
	}

	if cfg.Loader.MaxAttempts < 1 {
		return fmt.Errorf("loader.max_attempts must be at least 1, got %d", cfg.Loader.MaxAttempts)
	}
	if cfg.Loader.AttemptTimeout <= 0 {
		return fmt.Errorf("loader.attempt_timeout must be positive, got %s", cfg.Loader.AttemptTimeout)
	}

	if h := cfg.Admin.PasswordHash; h != "" && !strings.HasPrefix(h, "$2") {
		return fmt.Errorf("admin.password_hash must be a bcrypt hash (set it through ADMIN_PASSWORD_HASH)")
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", cfg.Logging.Format)
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	return nil
}
