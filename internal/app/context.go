// Package app wires a workspace into a ready engine.
package app

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"mdversion/internal/config"
	"mdversion/internal/db"
	"mdversion/internal/engine"
	"mdversion/internal/logger"
	"mdversion/internal/metrics"
	"mdversion/internal/migrate"
)

type Options struct {
	Workspace  string
	ConfigPath string
	LogLevel   string
	LogPretty  bool
	LogOutput  io.Writer
}

// Runtime holds everything opened for one workspace. Close releases the database.
type Runtime struct {
	DB      *sql.DB
	Config  *config.Config
	Engine  engine.Engine
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// Open loads config (defaults when no file exists), opens and migrates the workspace database
// and builds the engine.
func Open(opts Options) (*Runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: opts.LogPretty || cfg.Logging.Pretty,
		Output: out,
	})

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applied, err := migrate.Migrate(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, m := range applied {
		log.Info().Str("migration", m.Name).Msg("applied migration")
	}

	m := metrics.New()
	eng := engine.New(conn, cfg)
	eng.Metrics = m
	eng.Log = log.Component("engine")
	return &Runtime{DB: conn, Config: cfg, Engine: eng, Log: log, Metrics: m}, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.FromFile(opts.ConfigPath)
	}
	return config.LoadOptional(opts.Workspace)
}

func (r *Runtime) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}
