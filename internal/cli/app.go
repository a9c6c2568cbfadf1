// Package cli holds the weddingsync commands and the start-up steps they
// share: configuration, logging and storage.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weddingsync/internal/backend"
	"weddingsync/internal/config"
	"weddingsync/internal/log"
	"weddingsync/internal/services"
	"weddingsync/internal/storage"
)

// globals are the persistent flags of the root command.
type globals struct {
	configPath string
	envFiles   []string
	backend    string
	dbPath     string
	logLevel   string
}

// app is what every command gets after start-up.
type app struct {
	cfg    *config.Config
	logger *log.Logger
}

// setup loads .env files and the configuration, applies flag overrides,
// validates the result and installs the default logger. Logs go to the
// command's stderr so stdout stays usable for exports.
func (g *globals) setup(cmd *cobra.Command) (*app, error) {
	if err := config.LoadDotEnv(g.envFiles...); err != nil {
		return nil, err
	}
	if g.configPath != "" {
		if err := os.Setenv("WEDDINGSYNC_CONFIG", g.configPath); err != nil {
			return nil, fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.backend != "" {
		cfg.DataBackend = g.backend
	}
	if g.dbPath != "" {
		cfg.SQLiteDBPath = g.dbPath
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: SetupLogger(cfg, cmd.ErrOrStderr())}, nil
}

// SetupLogger builds the application logger and makes it the default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentCLI,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// openKV opens the configured backend. The returned close function is
// always safe to call.
func (a *app) openKV() (*backend.Result, func(), error) {
	bc, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.Open(bc, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return res, func() {
		if err := res.Cleanup(); err != nil {
			a.logger.Error("Failed to close storage", log.FieldError, err)
		}
	}, nil
}

func openWorkspace(ctx context.Context, kv storage.KV, opts ...services.Option) (*services.WorkspaceService, error) {
	ws, err := services.Open(ctx, storage.NewStore(kv), opts...)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	return ws, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
