// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package store

import (
	"sync"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// defaultVectorDimensions matches all-MiniLM-class sentence embedders.
const defaultVectorDimensions = 384

// StorageConfig controls which backend the store factory uses.
type StorageConfig struct {
	Backend          string // "sqlite" is the only supported backend for now.
	VectorDimensions int    // Embedding dimensions; 0 uses the default (384).
}

// Backends bundles the capability implementations a backend provides.
// The learning and vector stores share a database file so scope and
// soft-delete filters can join in a single query.
type Backends struct {
	Learnings LearningStore
	Secrets   SecretStore
	Vectors   VectorIndex
	State     StateStore

	closers []func() error
}

// AddCloser registers an extra resource to close after the stores
// (e.g. a shared database connection).
func (b *Backends) AddCloser(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close closes every store and registered resource, joining errors.
func (b *Backends) Close() error {
	var errs []error
	for _, c := range []func() error{
		b.Learnings.Close,
		b.Secrets.Close,
		b.Vectors.Close,
		b.State.Close,
	} {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return mnerr.Join(errs...)
	}
	return nil
}

// BackendFactory creates all stores for a data directory.
type BackendFactory func(dataPath string, vectorDims int) (*Backends, error)

var (
	factories   = map[string]BackendFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). Goroutine-safe.
func RegisterBackend(name string, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Open creates all stores for the configured backend rooted at dataPath.
func Open(cfg *StorageConfig, dataPath string) (*Backends, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mnerr.Errorf(mnerr.CodeStorageBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}

	dims := cfg.VectorDimensions
	if dims <= 0 {
		dims = defaultVectorDimensions
	}

	return factory(dataPath, dims)
}
