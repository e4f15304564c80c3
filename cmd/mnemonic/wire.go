// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package main

import (
	"os"
	"time"

	"github.com/Chasewhip8/mnemonic-sub000/internal/config"
	"github.com/Chasewhip8/mnemonic-sub000/internal/embedder"
	"github.com/Chasewhip8/mnemonic-sub000/internal/memory"
	"github.com/Chasewhip8/mnemonic-sub000/internal/retention"
	"github.com/Chasewhip8/mnemonic-sub000/internal/retrieval"
	"github.com/Chasewhip8/mnemonic-sub000/internal/server"
	"github.com/Chasewhip8/mnemonic-sub000/internal/state"
	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	_ "github.com/Chasewhip8/mnemonic-sub000/internal/store/sqlite" // register sqlite backend
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Backends  *store.Backends
	Memory    *memory.Service
	Retrieval *retrieval.Engine
	State     *state.Service
	Retention *retention.Policy
}

// WireApp creates all subsystems from config and wires them together.
func WireApp(cfg *config.Config) (*App, error) {
	dataDir := cfg.Storage.Path
	if dataDir == "" {
		var err error
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, mnerr.Errorf(mnerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	embed, err := embedder.New(embedder.Config{
		Provider:   cfg.Embedder.Provider,
		APIKey:     cfg.Embedder.APIKey,
		BaseURL:    cfg.Embedder.BaseURL,
		Model:      cfg.Embedder.Model,
		Dimensions: cfg.Storage.VectorDimensions,
	})
	if err != nil {
		return nil, err
	}

	backends, err := store.Open(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		VectorDimensions: embed.Dimensions(),
	}, dataDir)
	if err != nil {
		return nil, err
	}

	retry := store.DefaultRetryPolicy()

	memSvc := memory.NewService(backends.Learnings, backends.Secrets, embed, retry, nil)
	engine := retrieval.NewEngine(backends.Learnings, backends.Vectors, embed, retry, nil)
	stateSvc := state.NewService(backends.State, memSvc, retry, nil)
	policy := retention.NewPolicy(backends.Learnings, retry, retention.Config{
		Interval:      cfg.Retention.Interval,
		SessionMaxAge: time.Duration(cfg.Retention.SessionMaxAgeDays) * 24 * time.Hour,
		AgentMaxAge:   time.Duration(cfg.Retention.AgentMaxAgeDays) * 24 * time.Hour,
		MinConfidence: cfg.Retention.MinConfidence,
	}, nil)

	return &App{
		Backends:  backends,
		Memory:    memSvc,
		Retrieval: engine,
		State:     stateSvc,
		Retention: policy,
	}, nil
}

// Services adapts the app for HTTP route registration.
func (a *App) Services() *server.Services {
	return &server.Services{
		Memory:    a.Memory,
		Retrieval: a.Retrieval,
		State:     a.State,
		Retention: a.Retention,
	}
}

// Close releases all storage resources.
func (a *App) Close() error {
	return a.Backends.Close()
}
