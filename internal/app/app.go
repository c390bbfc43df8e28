// Package app wires a workspace's database, configuration, and providers
// into a ready engine for the CLI and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"boardroom/internal/config"
	"boardroom/internal/db"
	"boardroom/internal/engine"
	"boardroom/internal/generation"
	"boardroom/internal/journal"
	"boardroom/internal/logging"
	"boardroom/internal/metrics"
	"boardroom/internal/migrate"
	"boardroom/internal/persona"
	"boardroom/internal/repo"
)

type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/boardroom.yml.
	ConfigPath string
	// Logger replaces the logger built from the config.
	Logger *zap.Logger
	// Backend replaces the configured generation provider.
	Backend generation.Backend
}

type App struct {
	DB       *sql.DB
	Repo     repo.Repo
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Personas *persona.Registry
	Gateway  *generation.Gateway
	Journal  journal.Journal
	Engine   engine.Engine
}

// LoadConfig reads the explicit path when given, otherwise the workspace
// config, falling back to the defaults when it does not exist.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(workspace)
}

// Open migrates the workspace database and builds the engine. A missing
// provider key leaves the gateway unconfigured: CRUD keeps working and turns
// fail with generation.ErrNotConfigured.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := LoadConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	reg := persona.Default()
	if err := engine.CheckPersonas(cfg, reg); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		if log, err = logging.New(cfg.Logging); err != nil {
			return nil, err
		}
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()
	backend := opts.Backend
	if backend == nil {
		backend, err = generation.NewBackend(ctx, cfg.Generation)
		switch {
		case errors.Is(err, generation.ErrNotConfigured):
			log.Warn("generation backend not configured; turns will fail",
				zap.String("provider", cfg.Generation.Provider), zap.String("api_key_env", cfg.Generation.APIKeyEnv))
			backend = nil
		case err != nil:
			conn.Close()
			return nil, fmt.Errorf("generation backend: %w", err)
		}
	}
	gw := generation.NewGateway(backend, generation.Options{
		TextProtocol: cfg.Generation.CallProtocol == "text",
		Logger:       log.Named("generation"),
		Metrics:      m,
	})

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	r := repo.New(conn)
	eng := engine.New(r, gw, cfg, engine.Options{
		Personas: reg,
		Journal:  j,
		Logger:   log.Named("engine"),
		Metrics:  m,
	})
	return &App{
		DB:       conn,
		Repo:     r,
		Config:   cfg,
		Logger:   log,
		Metrics:  m,
		Personas: reg,
		Gateway:  gw,
		Journal:  j,
		Engine:   eng,
	}, nil
}

// Close releases the journal and the database.
func (a *App) Close() error {
	_ = a.Logger.Sync()
	return errors.Join(a.Journal.Close(), a.DB.Close())
}
