package config

import (
	"time"

	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

type AppConfig struct {
	Server       ServerConfig                  `yaml:"server"`
	Firebase     remoteconfig.ConnectionConfig `yaml:"firebase"`
	RemoteConfig RemoteConfigConfig            `yaml:"remote_config"`
	Loader       LoaderConfig                  `yaml:"loader"`
	Admin        AdminConfig                   `yaml:"admin"`
	Logging      LoggingConfig                 `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// Backend names accepted by remote_config.backend.
const (
	BackendFirebase = "firebase"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type RemoteConfigConfig struct {
	Backend              string        `yaml:"backend"`
	Key                  string        `yaml:"key"`
	BaseURL              string        `yaml:"base_url"`
	MinimumFetchInterval time.Duration `yaml:"minimum_fetch_interval"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout"`
	RedisURL             string        `yaml:"redis_url"`
	RedisKey             string        `yaml:"redis_key"`
	DatabaseURL          string        `yaml:"database_url"`
}

// Settings is the store fetch policy of this section.
func (c RemoteConfigConfig) Settings() remoteconfig.Settings {
	return remoteconfig.Settings{
		MinimumFetchInterval: c.MinimumFetchInterval,
		FetchTimeout:         c.FetchTimeout,
	}
}

type LoaderConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

type AdminConfig struct {
	// PasswordHash is a bcrypt hash. The admin pages are disabled when empty.
	PasswordHash string `yaml:"password_hash"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
