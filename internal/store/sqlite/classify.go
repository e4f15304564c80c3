// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite

import (
	"context"
	"errors"

	"github.com/mattn/go-sqlite3"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// classify maps an opaque driver error onto the storage error taxonomy:
//
//   - busy/locked            -> transient, eligible for retry
//   - constraint violations  -> surfaced immediately, never retried
//   - mismatch/range/too-big -> malformed input, never retried
//   - everything else        -> availability failure
//
// Unclassifiable errors default to availability, so an unknown failure is
// reported rather than silently retried.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return mnerr.Wrapf(err, mnerr.CodeStorageUnavailable, "%s: cancelled", op)
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return mnerr.Wrapf(err, mnerr.CodeStorageTransientBusy, "%s", op)
		case sqlite3.ErrConstraint:
			return mnerr.Wrapf(err, mnerr.CodeStorageConstraintViolation, "%s", op)
		case sqlite3.ErrMismatch, sqlite3.ErrRange, sqlite3.ErrTooBig:
			return mnerr.Wrapf(err, mnerr.CodeStorageDataInvalid, "%s", op)
		}
	}

	return mnerr.Wrapf(err, mnerr.CodeStorageUnavailable, "%s", op)
}
