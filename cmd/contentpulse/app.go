package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"contentpulse/internal/collector"
	"contentpulse/internal/config"
	"contentpulse/internal/library"
	"contentpulse/internal/logging"
	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
	"contentpulse/internal/reconcile"
	"contentpulse/internal/store"
)

// app is everything a command needs once config, store and library are loaded.
type app struct {
	cfg      config.Config
	log      logging.Logger
	store    store.Store
	rec      *reconcile.Reconciler
	registry *collector.Registry
}

func loadConfig(path string) (config.Config, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return config.Config{}, fmt.Errorf("load env files: %w", err)
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (logging.Logger, error) {
	return logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
}

func setup(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	owner := cfg.Owner()
	log = log.With(logging.String("owner", owner.ID))

	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	lib, err := library.Load(ctx, st, owner)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	creds, err := credentials(ctx, st, cfg, owner.ID)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics.StartServer(cfg.Metrics.Addr)
	log.Debug("library_loaded",
		logging.Int("content", len(lib.Content())),
		logging.Int("engagement", len(lib.Engagement())),
		logging.String("driver", cfg.Storage.Driver))

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		rec:      reconcile.New(st, lib, reconcile.WithLogger(log)),
		registry: collector.NewRegistry(creds, collector.WithLimits(collectorLimits(cfg))),
	}, nil
}

// credentials layers config file and environment credentials over the
// stored ones.
func credentials(ctx context.Context, st store.Store, cfg config.Config, owner string) (model.Credentials, error) {
	stored, err := st.LoadCredentials(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	creds := model.Credentials{}
	creds.Merge(stored)
	creds.Merge(cfg.PlatformCredentials())
	return creds, nil
}

func collectorLimits(cfg config.Config) map[model.Platform]collector.Limits {
	out := map[model.Platform]collector.Limits{}
	for p, l := range cfg.RateLimits() {
		out[p] = collector.Limits{RPS: l.RPS, Burst: l.Burst, MaxAttempts: l.MaxAttempts, BaseBackoff: l.BaseBackoff}
	}
	return out
}

// reloadCollectors rebuilds the registry in place after stored credentials change.
func (a *app) reloadCollectors(ctx context.Context) error {
	creds, err := credentials(ctx, a.store, a.cfg, a.rec.Library().Owner().ID)
	if err != nil {
		return err
	}
	a.registry.Reload(creds)
	return nil
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.log.Sync()
}
