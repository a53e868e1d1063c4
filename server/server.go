package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gurkanfikretgunak/bio/internal/loader"
	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

type ExecuteTemplateFunc func(wr io.Writer, name string, data any) error

// Loader is the load state the pages render. *loader.Sequencer
// implements it.
type Loader interface {
	State() loader.State
	Retry() error
	Reset() error
}

type Config struct {
	Version string
	Port    string

	// Backend names the remote config store, shown on the admin page.
	Backend string
	// Key is the store parameter the admin publish action writes.
	Key     string

	// PasswordHash is the bcrypt hash of the admin password. Admin login
	// is refused when empty.
	PasswordHash string
}

type Server struct {
	version    string
	backend    string
	key        string
	adminHash  []byte
	server     *http.Server
	assets     http.FileSystem
	tmplFunc   ExecuteTemplateFunc
	sessions   map[string]time.Time
	sessionsMu sync.RWMutex
	loader     Loader
	publisher  remoteconfig.Publisher
}

// NewServer builds the HTTP server. publisher may be nil when the store
// backend is read-only.
func NewServer(cfg Config, assets http.FileSystem, tmplFunc ExecuteTemplateFunc, ld Loader, publisher remoteconfig.Publisher) *Server {

	s := &Server{
		version:    cfg.Version,
		backend:    cfg.Backend,
		key:        cfg.Key,
		adminHash:  []byte(cfg.PasswordHash),
		assets:     assets,
		tmplFunc:   tmplFunc,
		sessions:   make(map[string]time.Time),
		sessionsMu: sync.RWMutex{},
		loader:     ld,
		publisher:  publisher,
	}

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.server.Addr
}

func FormatBuildVersion(version string) string {
	return fmt.Sprintf("Go Version: %s\nVersion: %s\nOS/Arch: %s/%s", runtime.Version(), version, runtime.GOOS, runtime.GOARCH)
}
