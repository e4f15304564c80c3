// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// Compile-time interface check.
var _ store.StateStore = (*StateStore)(nil)

// StateStore implements store.StateStore backed by SQLite. Working state
// is one mutable row per run; state_revisions and state_events are
// append-only and never updated or deleted.
type StateStore struct {
	db *sql.DB
}

// NewStateStore opens (or creates) a SQLite database at dbPath and
// initialises the working_state, state_revisions, and state_events tables.
func NewStateStore(dbPath string) (*StateStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, classify(err, "opening state db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, classify(err, "pinging state db")
	}

	if err := migrateState(db); err != nil {
		_ = db.Close()
		return nil, classify(err, "migrating state tables")
	}

	return &StateStore{db: db}, nil
}

func migrateState(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS working_state (
	run_id      TEXT PRIMARY KEY,
	revision    INTEGER NOT NULL,
	status      TEXT NOT NULL DEFAULT 'active',
	state       TEXT NOT NULL DEFAULT '{}',
	updated_by  TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	resolved_at INTEGER
);

CREATE TABLE IF NOT EXISTS state_revisions (
	run_id         TEXT NOT NULL,
	revision       INTEGER NOT NULL,
	state          TEXT NOT NULL,
	change_summary TEXT NOT NULL DEFAULT '',
	updated_by     TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	PRIMARY KEY (run_id, revision)
);

CREATE TABLE IF NOT EXISTS state_events (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}',
	created_by TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_events_run ON state_events(run_id, created_at);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *StateStore) Close() error {
	return s.db.Close()
}

func (s *StateStore) Get(ctx context.Context, runID string) (*store.WorkingState, error) {
	const q = `SELECT run_id, revision, status, state, updated_by, created_at, updated_at, resolved_at
FROM working_state WHERE run_id = ?`

	return s.scanState(s.db.QueryRowContext(ctx, q, runID), runID)
}

func (s *StateStore) scanState(row *sql.Row, runID string) (*store.WorkingState, error) {
	var ws store.WorkingState
	var stateJSON string
	var createdAt, updatedAt int64
	var resolvedAt sql.NullInt64

	err := row.Scan(
		&ws.RunID,
		&ws.Revision,
		&ws.Status,
		&stateJSON,
		&ws.UpdatedBy,
		&createdAt,
		&updatedAt,
		&resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mnerr.New(mnerr.CodeStateRunNotFound, "working state not found",
			mnerr.FieldRunID(runID))
	}
	if err != nil {
		return nil, classify(err, "getting working state "+runID)
	}

	if err := json.Unmarshal([]byte(stateJSON), &ws.State); err != nil {
		return nil, mnerr.Wrapf(err, mnerr.CodeStatePayloadInvalid,
			"unmarshalling state payload for %s", runID)
	}

	ws.CreatedAt = fromMillis(createdAt)
	ws.UpdatedAt = fromMillis(updatedAt)
	ws.ResolvedAt = fromNullMillis(resolvedAt)
	return &ws, nil
}

// Upsert commits revision expectedRevision+1 and its immutable snapshot in
// one transaction. The conditional write on the last-read revision closes
// the read-then-write race: a concurrent writer that commits first makes
// this call fail with a conflict the caller can retry.
func (s *StateStore) Upsert(ctx context.Context, runID string, payload store.StatePayload, updatedBy, changeSummary string, expectedRevision int) (*store.WorkingState, error) {
	stateJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, mnerr.Wrapf(err, mnerr.CodeStatePayloadInvalid,
			"marshalling state payload for %s", runID)
	}

	now := time.Now()
	nowMs := toMillis(now)
	newRevision := expectedRevision + 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err, "beginning state upsert")
	}
	defer func() { _ = tx.Rollback() }()

	if expectedRevision == 0 {
		const ins = `INSERT INTO working_state (run_id, revision, status, state, updated_by, created_at, updated_at, resolved_at)
VALUES (?, 1, 'active', ?, ?, ?, ?, NULL)`
		if _, err := tx.ExecContext(ctx, ins, runID, string(stateJSON), updatedBy, nowMs, nowMs); err != nil {
			if c := classify(err, "creating working state "+runID); mnerr.IsConstraint(c) {
				return nil, mnerr.New(mnerr.CodeStateRevisionConflict,
					"working state created concurrently", mnerr.FieldRunID(runID))
			}
			return nil, classify(err, "creating working state "+runID)
		}
	} else {
		const upd = `UPDATE working_state SET revision = ?, state = ?, updated_by = ?, updated_at = ?
WHERE run_id = ? AND revision = ?`
		result, err := tx.ExecContext(ctx, upd, newRevision, string(stateJSON), updatedBy, nowMs, runID, expectedRevision)
		if err != nil {
			return nil, classify(err, "updating working state "+runID)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, classify(err, "checking rows affected for state "+runID)
		}
		if rows == 0 {
			return nil, mnerr.New(mnerr.CodeStateRevisionConflict,
				"working state revision changed concurrently",
				mnerr.FieldRunID(runID),
				mnerr.Field("expected_revision", expectedRevision))
		}
	}

	// One immutable snapshot per committed mutation. The (run_id, revision)
	// primary key rejects a duplicate commit of the same revision.
	const rev = `INSERT INTO state_revisions (run_id, revision, state, change_summary, updated_by, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, rev, runID, newRevision, string(stateJSON), changeSummary, updatedBy, nowMs); err != nil {
		if c := classify(err, "appending state revision"); mnerr.IsConstraint(c) {
			return nil, mnerr.New(mnerr.CodeStateRevisionConflict,
				"state revision committed concurrently",
				mnerr.FieldRunID(runID),
				mnerr.Field("revision", newRevision))
		}
		return nil, classify(err, "appending state revision")
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err, "committing state upsert "+runID)
	}

	return s.Get(ctx, runID)
}

// Resolve marks a run resolved without touching its revision. The first
// resolution sets resolved_at; later resolutions keep the original
// timestamp so the operation is idempotent.
func (s *StateStore) Resolve(ctx context.Context, runID string, at time.Time, updatedBy string) (*store.WorkingState, error) {
	const q = `UPDATE working_state
SET status = 'resolved', resolved_at = COALESCE(resolved_at, ?), updated_by = ?, updated_at = ?
WHERE run_id = ?`

	result, err := s.db.ExecContext(ctx, q, toMillis(at), updatedBy, toMillis(at), runID)
	if err != nil {
		return nil, classify(err, "resolving working state "+runID)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, classify(err, "checking rows affected for resolve "+runID)
	}
	if rows == 0 {
		return nil, mnerr.New(mnerr.CodeStateRunNotFound, "working state not found",
			mnerr.FieldRunID(runID))
	}

	return s.Get(ctx, runID)
}

// AppendEvent always appends; an event does not require an existing
// working-state row for its run.
func (s *StateStore) AppendEvent(ctx context.Context, ev *store.StateEvent) error {
	payload := []byte("{}")
	if len(ev.Payload) > 0 {
		var err error
		payload, err = json.Marshal(ev.Payload)
		if err != nil {
			return mnerr.Wrapf(err, mnerr.CodeStatePayloadInvalid,
				"marshalling event payload for %s", ev.RunID)
		}
	}

	const q = `INSERT INTO state_events (id, run_id, event_type, payload, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, q,
		ev.ID,
		ev.RunID,
		ev.EventType,
		string(payload),
		ev.CreatedBy,
		toMillis(ev.CreatedAt),
	); err != nil {
		return classify(err, "appending state event "+ev.ID)
	}
	return nil
}

func (s *StateStore) Revisions(ctx context.Context, runID string, limit int) ([]*store.StateRevision, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `SELECT run_id, revision, state, change_summary, updated_by, created_at
FROM state_revisions WHERE run_id = ? ORDER BY revision DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, runID, limit)
	if err != nil {
		return nil, classify(err, "listing state revisions for "+runID)
	}
	defer func() { _ = rows.Close() }()

	var revisions []*store.StateRevision
	for rows.Next() {
		var r store.StateRevision
		var stateJSON string
		var createdAt int64

		if err := rows.Scan(&r.RunID, &r.Revision, &stateJSON, &r.ChangeSummary, &r.UpdatedBy, &createdAt); err != nil {
			return nil, classify(err, "scanning state revision")
		}
		if err := json.Unmarshal([]byte(stateJSON), &r.State); err != nil {
			return nil, mnerr.Wrapf(err, mnerr.CodeStatePayloadInvalid,
				"unmarshalling revision %d for %s", r.Revision, runID)
		}
		r.CreatedAt = fromMillis(createdAt)
		revisions = append(revisions, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating state revisions")
	}

	return revisions, nil
}

func (s *StateStore) Events(ctx context.Context, runID string, limit int) ([]*store.StateEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `SELECT id, run_id, event_type, payload, created_by, created_at
FROM state_events WHERE run_id = ? ORDER BY created_at DESC, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, runID, limit)
	if err != nil {
		return nil, classify(err, "listing state events for "+runID)
	}
	defer func() { _ = rows.Close() }()

	var events []*store.StateEvent
	for rows.Next() {
		var ev store.StateEvent
		var payloadJSON string
		var createdAt int64

		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.EventType, &payloadJSON, &ev.CreatedBy, &createdAt); err != nil {
			return nil, classify(err, "scanning state event")
		}
		if payloadJSON != "" && payloadJSON != "{}" {
			if err := json.Unmarshal([]byte(payloadJSON), &ev.Payload); err != nil {
				return nil, mnerr.Wrapf(err, mnerr.CodeStatePayloadInvalid,
					"unmarshalling event %s", ev.ID)
			}
		}
		ev.CreatedAt = fromMillis(createdAt)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating state events")
	}

	return events, nil
}
