// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

func TestCodeOf(t *testing.T) {
	err := mnerr.New(mnerr.CodeMemoryLearningNotFound, "learning missing")
	assert.Equal(t, mnerr.CodeMemoryLearningNotFound, mnerr.CodeOf(err))

	assert.Equal(t, mnerr.Code(""), mnerr.CodeOf(nil))
	assert.Equal(t, mnerr.Code(""), mnerr.CodeOf(stderrors.New("plain")))
}

func TestWrapPreservesNil(t *testing.T) {
	assert.NoError(t, mnerr.Wrap(nil, mnerr.CodeStorageUnavailable, "ignored"))
	assert.NoError(t, mnerr.Wrapf(nil, mnerr.CodeStorageUnavailable, "ignored %d", 1))
	assert.NoError(t, mnerr.With(nil, mnerr.Field("k", "v")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := mnerr.Wrap(cause, mnerr.CodeStorageUnavailable, "write failed")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, mnerr.CodeStorageUnavailable, mnerr.CodeOf(err))
}

func TestFieldsOf(t *testing.T) {
	err := mnerr.New(mnerr.CodeStateRunNotFound, "run missing",
		mnerr.FieldRunID("run-42"),
		mnerr.Field("", "dropped"),
	)
	fields := mnerr.FieldsOf(err)
	require.NotNil(t, fields)
	assert.Equal(t, "run-42", fields["run_id"])
	assert.NotContains(t, fields, "")
}

func TestClassificationHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", mnerr.New(mnerr.CodeMemoryLearningNotFound, "x"), mnerr.IsNotFound, true},
		{"conflict", mnerr.New(mnerr.CodeStateRevisionConflict, "x"), mnerr.IsConflict, true},
		{"invalid input", mnerr.New(mnerr.CodeMemoryDeleteFilterInvalid, "x"), mnerr.IsInvalidInput, true},
		{"retryable busy", mnerr.New(mnerr.CodeStorageTransientBusy, "x"), mnerr.IsRetryable, true},
		{"constraint", mnerr.New(mnerr.CodeStorageConstraintViolation, "x"), mnerr.IsConstraint, true},
		{"unavailable", mnerr.New(mnerr.CodeStorageUnavailable, "x"), mnerr.IsUnavailable, true},
		{"embedder", mnerr.New(mnerr.CodeEmbedderFailure, "x"), mnerr.IsEmbedderFailure, true},
		{"constraint is not retryable", mnerr.New(mnerr.CodeStorageConstraintViolation, "x"), mnerr.IsRetryable, false},
		{"unavailable is not retryable", mnerr.New(mnerr.CodeStorageUnavailable, "x"), mnerr.IsRetryable, false},
		{"plain error matches nothing", stderrors.New("plain"), mnerr.IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", mnerr.New(mnerr.CodeStateRunNotFound, "x"), http.StatusNotFound},
		{"conflict", mnerr.New(mnerr.CodeStateRevisionConflict, "x"), http.StatusConflict},
		{"constraint", mnerr.New(mnerr.CodeStorageConstraintViolation, "x"), http.StatusConflict},
		{"invalid", mnerr.New(mnerr.CodeServerRequestInvalid, "x"), http.StatusBadRequest},
		{"unavailable", mnerr.New(mnerr.CodeStorageUnavailable, "x"), http.StatusServiceUnavailable},
		{"unknown", stderrors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mnerr.HTTPStatus(tt.err))
		})
	}
}

func TestHasCode(t *testing.T) {
	err := mnerr.Errorf(mnerr.CodeEmbedderFailure, "model unreachable: %w", stderrors.New("timeout"))
	assert.True(t, mnerr.HasCode(err, mnerr.CodeEmbedderFailure))
	assert.False(t, mnerr.HasCode(err, mnerr.CodeStorageUnavailable))
	assert.False(t, mnerr.HasCode(nil, mnerr.CodeEmbedderFailure))
}
