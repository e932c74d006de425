package main

import (
	"context"
	"os"

	"github.com/ChamsBouzaiene/localchat/internal/config"
	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/ChamsBouzaiene/localchat/internal/engine"
	"github.com/ChamsBouzaiene/localchat/internal/providers"
	"github.com/ChamsBouzaiene/localchat/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type runtimeEnv struct {
	Config  *config.Config
	Session *conversation.Session
	Store   store.Store
}

func (r *runtimeEnv) Close() {
	if r.Store == nil {
		return
	}
	if err := r.Store.Close(); err != nil {
		log.Warn().Err(err).Msg("closing store")
	}
}

func newManager(flags *rootFlags) (*config.Manager, error) {
	if flags.configDir != "" {
		return config.NewManagerAt(flags.configDir), nil
	}
	return config.NewManager()
}

func loadConfig(flags *rootFlags) (*config.Manager, *config.Config, error) {
	mgr, err := newManager(flags)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := mgr.Load()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load %s", mgr.GetConfigPath())
	}
	if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, nil, errors.Wrap(err, "environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if flags.logLevel == "" {
		setLogLevel(cfg.LogLevel)
	}
	return mgr, cfg, nil
}

// prepareRuntimeEnv loads the configuration and opens the store. The store
// is always usable: an unreachable backend yields a disabled one.
func prepareRuntimeEnv(ctx context.Context, flags *rootFlags) (*runtimeEnv, error) {
	mgr, cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("config_dir", mgr.Dir()).Str("backend", cfg.Backend).Str("provider", cfg.Provider).Msg("configuration loaded")

	if cfg.Backend == store.BackendSQLite || cfg.Backend == store.BackendBleve {
		if err := os.MkdirAll(mgr.Dir(), 0o755); err != nil {
			log.Warn().Err(err).Str("dir", mgr.Dir()).Msg("cannot create data directory")
		}
	}

	session := conversation.NewSession()
	st, err := store.Open(ctx, store.Config{
		Backend:     cfg.Backend,
		SQLitePath:  cfg.SQLitePath,
		RedisAddr:   cfg.RedisAddr,
		RedisStream: cfg.RedisStream,
		BlevePath:   cfg.BlevePath,
		Timeout:     cfg.StoreTimeout.Std(),
		Retry:       store.DefaultRetryPolicy(),
		SessionID:   session.ID,
	})
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.Backend).Msg("history store unavailable, continuing without persistence")
	}

	return &runtimeEnv{Config: cfg, Session: session, Store: st}, nil
}

func newAggregator(cfg *config.Config) (*engine.Aggregator, engine.ModelClient, error) {
	client, err := providers.NewClient(providers.Settings{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, nil, err
	}
	agg := engine.NewAggregator(client,
		engine.WithTimeout(cfg.ModelTimeout.Std()),
		engine.WithChatOptions(engine.ChatOptions{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}),
		engine.WithTokenizer(engine.NewTiktokenTokenizer()),
	)
	return agg, client, nil
}
