// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Chasewhip8/mnemonic-sub000/internal/scope"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		want   []string
	}{
		{
			name:   "empty input",
			scopes: nil,
			want:   nil,
		},
		{
			name:   "session outranks everything",
			scopes: []string{"shared", "agent:planner", "session:run-1"},
			want:   []string{"session:run-1"},
		},
		{
			name:   "all session scopes kept, not just the first",
			scopes: []string{"session:run-1", "agent:planner", "session:run-2"},
			want:   []string{"session:run-1", "session:run-2"},
		},
		{
			name:   "agent outranks shared",
			scopes: []string{"shared", "agent:planner", "agent:coder"},
			want:   []string{"agent:planner", "agent:coder"},
		},
		{
			name:   "shared only",
			scopes: []string{"shared"},
			want:   []string{"shared"},
		},
		{
			name:   "shared listed twice collapses to one",
			scopes: []string{"shared", "shared"},
			want:   []string{"shared"},
		},
		{
			name:   "order of input does not change the winning tier",
			scopes: []string{"agent:planner", "session:run-9"},
			want:   []string{"session:run-9"},
		},
		{
			name:   "unrecognised scopes resolve to nothing",
			scopes: []string{"global", "workspace:default"},
			want:   nil,
		},
		{
			name:   "unrecognised mixed with shared falls back to shared",
			scopes: []string{"global", "shared"},
			want:   []string{"shared"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scope.Resolve(tt.scopes))
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, scope.Valid("shared"))
	assert.True(t, scope.Valid("session:abc"))
	assert.True(t, scope.Valid("agent:planner"))
	assert.False(t, scope.Valid("session:"))
	assert.False(t, scope.Valid("agent:"))
	assert.False(t, scope.Valid(""))
	assert.False(t, scope.Valid("Shared"))
}
