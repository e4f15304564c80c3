// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

// Package scope resolves which memory scopes govern a read.
//
// Scopes form three priority tiers: "session:<id>" outranks "agent:<id>",
// which outranks the exact scope "shared". A read only ever consults the
// highest tier present in the request, never a union across tiers.
package scope

import "strings"

const (
	// Shared is the global scope visible to every agent.
	Shared = "shared"

	// SessionPrefix marks ephemeral per-run scopes.
	SessionPrefix = "session:"

	// AgentPrefix marks per-agent scopes.
	AgentPrefix = "agent:"
)

// Resolve selects the scopes that govern a read.
//
// It returns the full subset of the input matching the first non-empty
// priority tier (session, then agent, then shared). An empty result means
// no eligible scope; callers must short-circuit to an empty result instead
// of querying storage.
func Resolve(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}

	var session, agent []string
	shared := false

	for _, s := range scopes {
		switch {
		case strings.HasPrefix(s, SessionPrefix):
			session = append(session, s)
		case strings.HasPrefix(s, AgentPrefix):
			agent = append(agent, s)
		case s == Shared:
			shared = true
		}
	}

	switch {
	case len(session) > 0:
		return session
	case len(agent) > 0:
		return agent
	case shared:
		return []string{Shared}
	default:
		return nil
	}
}

// Valid reports whether s is a well-formed scope: "shared", or a session/
// agent prefix followed by a non-empty identifier.
func Valid(s string) bool {
	switch {
	case s == Shared:
		return true
	case strings.HasPrefix(s, SessionPrefix):
		return len(s) > len(SessionPrefix)
	case strings.HasPrefix(s, AgentPrefix):
		return len(s) > len(AgentPrefix)
	default:
		return false
	}
}
