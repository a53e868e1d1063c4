package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

// validConfig returns a config that passes Validate.
func validConfig() *AppConfig {
	return &AppConfig{
		Server:   ServerConfig{Port: "8080"},
		Firebase: remoteconfig.ConnectionConfig{APIKey: "key", ProjectID: "project"},
		RemoteConfig: RemoteConfigConfig{
			Backend:              BackendFirebase,
			Key:                  "bio",
			MinimumFetchInterval: time.Minute,
			FetchTimeout:         30 * time.Second,
		},
		Loader:  LoaderConfig{MaxAttempts: 3, AttemptTimeout: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"bad port", func(c *AppConfig) { c.Server.Port = "http" }, "server.port"},
		{"port out of range", func(c *AppConfig) { c.Server.Port = "70000" }, "server.port"},
		{"empty key", func(c *AppConfig) { c.RemoteConfig.Key = " " }, "remote_config.key"},
		{"negative interval", func(c *AppConfig) { c.RemoteConfig.MinimumFetchInterval = -time.Second }, "minimum_fetch_interval"},
		{"firebase without project", func(c *AppConfig) { c.Firebase.ProjectID = "" }, "projectId"},
		{"firebase without key", func(c *AppConfig) { c.Firebase.APIKey = "" }, "apiKey"},
		{"redis without url", func(c *AppConfig) { c.RemoteConfig.Backend = BackendRedis }, "redis_url"},
		{"postgres without url", func(c *AppConfig) { c.RemoteConfig.Backend = BackendPostgres }, "database_url"},
		{"unknown backend", func(c *AppConfig) { c.RemoteConfig.Backend = "etcd" }, "unknown backend"},
		{"zero attempts", func(c *AppConfig) { c.Loader.MaxAttempts = 0 }, "max_attempts"},
		{"zero timeout", func(c *AppConfig) { c.Loader.AttemptTimeout = 0 }, "attempt_timeout"},
		{"plain password", func(c *AppConfig) { c.Admin.PasswordHash = "hunter2" }, "bcrypt"},
		{"bad log format", func(c *AppConfig) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log level", func(c *AppConfig) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_OtherBackends(t *testing.T) {
	cfg := validConfig()
	cfg.Firebase = remoteconfig.ConnectionConfig{}
	cfg.RemoteConfig.Backend = BackendRedis
	cfg.RemoteConfig.RedisURL = "redis://localhost:6379/0"
	if err := Validate(cfg); err != nil {
		t.Errorf("redis: unexpected error: %v", err)
	}

	cfg.RemoteConfig.Backend = BackendPostgres
	cfg.RemoteConfig.DatabaseURL = "postgres://localhost:5432/bio"
	if err := Validate(cfg); err != nil {
		t.Errorf("postgres: unexpected error: %v", err)
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
	before := *cfg

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(before, *cfg) {
		t.Error("Validate mutated the configuration")
	}
}
