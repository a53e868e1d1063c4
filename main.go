package main

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/gurkanfikretgunak/bio/internal/config"
	"github.com/gurkanfikretgunak/bio/internal/fetcher"
	"github.com/gurkanfikretgunak/bio/internal/loader"
	"github.com/gurkanfikretgunak/bio/internal/logging"
	"github.com/gurkanfikretgunak/bio/server"
)

var (
	version = "dev"
)

//go:embed templates/*.html
var templatesFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

var (
	cfgPath string
	isDebug bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bio",
		Short:         "Biolink page server",
		Long:          `bio serves a personal link page whose content is published in a remote configuration store.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	defaultPath := config.DefaultPath
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		defaultPath = p
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the page (default)",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "check",
			Short: "Check that the remote config store publishes a bio document",
			Args:  cobra.NoArgs,
			RunE:  runCheck,
		},
		&cobra.Command{
			Use:   "hash-password [password]",
			Short: "Print a bcrypt hash for admin.password_hash",
			Long:  "Print a bcrypt hash for admin.password_hash. The password is read from stdin when not given as an argument.",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runHashPassword,
		},
	)

	return rootCmd
}

// loadConfig reads .env and the config file, then installs the logger.
func loadConfig() (*config.AppConfig, error) {
	_ = godotenv.Load()

	logging.Setup(os.Stderr, slog.LevelInfo, "text")

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if isDebug {
		level = slog.LevelDebug
	}
	logging.Setup(os.Stderr, level, cfg.Logging.Format)

	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tmpl, err := template.New("").ParseFS(templatesFiles, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, publisher, err := openStore(openCtx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open remote config store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close remote config store", slog.Any("error", err))
		}
	}()

	f := fetcher.New(store, fetcher.WithKey(cfg.RemoteConfig.Key))
	seq := loader.New(f, loader.Options{
		MaxAttempts:    cfg.Loader.MaxAttempts,
		AttemptTimeout: cfg.Loader.AttemptTimeout,
	})
	defer seq.Close()

	srv := server.NewServer(server.Config{
		Version:      version,
		Port:         cfg.Server.Port,
		Backend:      cfg.RemoteConfig.Backend,
		Key:          cfg.RemoteConfig.Key,
		PasswordHash: cfg.Admin.PasswordHash,
	}, http.FS(staticFiles), tmpl.ExecuteTemplate, seq, publisher)

	if err := seq.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		seq.Close()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("Started server",
		slog.String("listen_addr", srv.Addr()),
		slog.String("backend", cfg.RemoteConfig.Backend),
		slog.String("version", version),
	)
	if isDebug {
		slog.Debug(server.FormatBuildVersion(version))
	}

	return g.Wait()
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Loader.AttemptTimeout)
	defer cancel()

	store, _, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open remote config store: %w", err)
	}
	defer func() { _ = store.Close() }()

	f := fetcher.New(store, fetcher.WithKey(cfg.RemoteConfig.Key))
	ok, err := f.Available(ctx)
	if err != nil {
		return fmt.Errorf("remote config store unreachable: %w", err)
	}
	if !ok {
		return fmt.Errorf("parameter %q is missing or empty in the %s store", cfg.RemoteConfig.Key, cfg.RemoteConfig.Backend)
	}

	doc, err := f.FetchWithRetry(ctx, 1, cfg.Loader.AttemptTimeout)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s store publishes %q (%d links, %d favorites)\n",
		cfg.RemoteConfig.Backend, doc.Profile.Name, len(doc.Links), len(doc.Favorites))
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(hash))
	return nil
}

func readPassword(in io.Reader, args []string) (string, error) {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if len(password) < 6 {
		return "", errors.New("password must be at least 6 characters")
	}
	return password, nil
}
