package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gurkanfikretgunak/bio/internal/loader"
	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

const DefaultPath = "config.yaml"

// Load reads configuration from a YAML file. ${VAR} references are
// expanded from the environment before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault is Load, except a missing file yields the defaults with
// environment overrides applied.
func LoadOrDefault(path string) (*AppConfig, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = &AppConfig{}
		applyEnv(cfg)
		applyDefaults(cfg)
		return cfg, nil
	}
	return cfg, err
}

func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if url := os.Getenv("DATABASE_URL"); url != "" && cfg.RemoteConfig.DatabaseURL == "" {
		cfg.RemoteConfig.DatabaseURL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" && cfg.RemoteConfig.RedisURL == "" {
		cfg.RemoteConfig.RedisURL = url
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" && cfg.Admin.PasswordHash == "" {
		cfg.Admin.PasswordHash = hash
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}

	rc := &cfg.RemoteConfig
	if rc.Backend == "" {
		rc.Backend = BackendFirebase
	}
	if rc.Key == "" {
		rc.Key = "bio"
	}
	if rc.BaseURL == "" {
		rc.BaseURL = remoteconfig.DefaultFirebaseURL
	}
	if rc.MinimumFetchInterval == 0 {
		rc.MinimumFetchInterval = remoteconfig.DefaultSettings.MinimumFetchInterval
	}
	if rc.FetchTimeout == 0 {
		rc.FetchTimeout = remoteconfig.DefaultSettings.FetchTimeout
	}
	if rc.RedisKey == "" {
		rc.RedisKey = remoteconfig.DefaultRedisKey
	}

	if cfg.Loader.MaxAttempts == 0 {
		cfg.Loader.MaxAttempts = loader.DefaultOptions.MaxAttempts
	}
	if cfg.Loader.AttemptTimeout == 0 {
		cfg.Loader.AttemptTimeout = loader.DefaultOptions.AttemptTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
