package main

import (
	"context"
	"fmt"

	"github.com/gurkanfikretgunak/bio/internal/config"
	"github.com/gurkanfikretgunak/bio/internal/database"
	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

// openStore connects the configured remote config backend. The returned
// publisher is nil for read-only backends.
func openStore(ctx context.Context, cfg *config.AppConfig) (remoteconfig.Store, remoteconfig.Publisher, error) {
	rc := cfg.RemoteConfig
	settings := rc.Settings()

	switch rc.Backend {
	case config.BackendFirebase:
		client, err := remoteconfig.NewFirebaseClient(cfg.Firebase, settings, rc.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil

	case config.BackendRedis:
		store, err := remoteconfig.NewRedisStore(ctx, remoteconfig.RedisConfig{URL: rc.RedisURL, Key: rc.RedisKey}, settings)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case config.BackendPostgres:
		store, err := database.NewStore(ctx, rc.DatabaseURL, settings)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown remote config backend %q", rc.Backend)
	}
}
