// Package remoteconfig talks to the key-value configuration store that
// publishes the page content.
package remoteconfig

import (
	"context"
	"errors"
	"time"
)

// ConnectionConfig addresses the remote configuration store. It is built
// once at start and passed by value; nothing mutates it afterwards.
type ConnectionConfig struct {
	APIKey            string `yaml:"apiKey"`
	AuthDomain        string `yaml:"authDomain"`
	ProjectID         string `yaml:"projectId"`
	StorageBucket     string `yaml:"storageBucket"`
	MessagingSenderID string `yaml:"messagingSenderId"`
	AppID             string `yaml:"appId"`
	MeasurementID     string `yaml:"measurementId"`
}

// Settings is the fetch policy of a store client. It is separate from the
// per-attempt timeout applied by callers.
type Settings struct {
	MinimumFetchInterval time.Duration
	FetchTimeout         time.Duration
}

// DefaultSettings matches the policy the page has always used.
var DefaultSettings = Settings{
	MinimumFetchInterval: 60 * time.Second,
	FetchTimeout:         30 * time.Second,
}

// Values are the latest string parameters published by the store.
type Values map[string]string

// Store returns the latest parameter values of a named connection.
type Store interface {
	Fetch(ctx context.Context) (Values, error)
	Close() error
}

// Publisher is implemented by stores that accept writes.
type Publisher interface {
	Publish(ctx context.Context, key, value string) error
}

// ErrUnavailable wraps every transport or connectivity failure of a store.
var ErrUnavailable = errors.New("remote config store unavailable")
