// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite

import (
	"path/filepath"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newBackends)
}

func newBackends(dataPath string, vectorDims int) (*store.Backends, error) {
	ls, err := NewLearningStore(filepath.Join(dataPath, "memory.db"), vectorDims)
	if err != nil {
		return nil, mnerr.Wrapf(err, mnerr.CodeStorageUnavailable, "creating learning store")
	}

	// Secrets and the vector index share the memory database so learn,
	// search, and scope stats stay in one file.
	ss := NewSecretStoreWithDB(ls.DB())
	vi := NewVectorIndexWithDB(ls.DB())

	st, err := NewStateStore(filepath.Join(dataPath, "state.db"))
	if err != nil {
		_ = ls.Close()
		return nil, mnerr.Wrapf(err, mnerr.CodeStorageUnavailable, "creating state store")
	}

	return &store.Backends{
		Learnings: ls,
		Secrets:   ss,
		Vectors:   vi,
		State:     st,
	}, nil
}
