// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.LearningStore = (*LearningStore)(nil)

// LearningStore implements store.LearningStore backed by SQLite.
// Learnings, secrets, and the vec0 embedding index live in the same
// database file so scope and soft-delete filters join with vector search
// in a single query.
type LearningStore struct {
	db         *sql.DB
	dimensions int
}

// NewLearningStore opens (or creates) a SQLite database at dbPath and
// initialises the learnings, secrets, and vec0 vectors tables.
func NewLearningStore(dbPath string, dimensions int) (*LearningStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, classify(err, "opening memory db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, classify(err, "pinging memory db")
	}

	if err := migrateMemory(db, dimensions); err != nil {
		_ = db.Close()
		return nil, classify(err, "migrating memory tables")
	}

	return &LearningStore{db: db, dimensions: dimensions}, nil
}

func migrateMemory(db *sql.DB, dimensions int) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS learnings (
	id               TEXT PRIMARY KEY,
	trigger_text     TEXT NOT NULL,
	learning_text    TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	source           TEXT NOT NULL DEFAULT '',
	scope            TEXT NOT NULL,
	confidence       REAL NOT NULL DEFAULT 0.5,
	created_at       INTEGER NOT NULL,
	last_recalled_at INTEGER,
	recall_count     INTEGER NOT NULL DEFAULT 0,
	deleted_at       INTEGER
);

CREATE INDEX IF NOT EXISTS idx_learnings_scope ON learnings(scope, created_at);
CREATE INDEX IF NOT EXISTS idx_learnings_deleted ON learnings(deleted_at);

CREATE TABLE IF NOT EXISTS secrets (
	name       TEXT NOT NULL,
	scope      TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (name, scope)
);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	_, err := db.Exec(vecDDL)
	return err
}

// Close closes the underlying database connection.
func (s *LearningStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the vector index, which shares
// this database file.
func (s *LearningStore) DB() *sql.DB {
	return s.db
}

const learningColumns = `id, trigger_text, learning_text, reason, source, scope, confidence,
	created_at, last_recalled_at, recall_count, deleted_at`

func scanLearning(row interface{ Scan(...any) error }) (*store.Learning, error) {
	var l store.Learning
	var createdAt int64
	var lastRecalled, deletedAt sql.NullInt64

	if err := row.Scan(
		&l.ID,
		&l.Trigger,
		&l.Learning,
		&l.Reason,
		&l.Source,
		&l.Scope,
		&l.Confidence,
		&createdAt,
		&lastRecalled,
		&l.RecallCount,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	l.CreatedAt = fromMillis(createdAt)
	l.LastRecalledAt = fromNullMillis(lastRecalled)
	l.DeletedAt = fromNullMillis(deletedAt)
	return &l, nil
}

func (s *LearningStore) Insert(ctx context.Context, l *store.Learning) error {
	blob, err := sqlite_vec.SerializeFloat32(l.Embedding)
	if err != nil {
		return mnerr.Wrapf(err, mnerr.CodeStorageDataInvalid, "serializing embedding for %s", l.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "beginning learning insert")
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO learnings (id, trigger_text, learning_text, reason, source, scope, confidence, created_at, last_recalled_at, recall_count, deleted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, 0, NULL)`

	if _, err := tx.ExecContext(ctx, q,
		l.ID,
		l.Trigger,
		l.Learning,
		l.Reason,
		l.Source,
		l.Scope,
		l.Confidence,
		toMillis(l.CreatedAt),
	); err != nil {
		return classify(err, "inserting learning "+l.ID)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, l.ID, blob); err != nil {
		return classify(err, "inserting embedding "+l.ID)
	}

	if err := tx.Commit(); err != nil {
		return classify(err, "committing learning "+l.ID)
	}
	return nil
}

// Get returns a non-deleted learning with its stored embedding.
func (s *LearningStore) Get(ctx context.Context, id string) (*store.Learning, error) {
	const q = `SELECT l.id, l.trigger_text, l.learning_text, l.reason, l.source, l.scope, l.confidence,
	l.created_at, l.last_recalled_at, l.recall_count, l.deleted_at, v.embedding
FROM learnings l LEFT JOIN vectors v ON v.id = l.id
WHERE l.id = ? AND l.deleted_at IS NULL`

	var l store.Learning
	var createdAt int64
	var lastRecalled, deletedAt sql.NullInt64
	var blob []byte

	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&l.ID,
		&l.Trigger,
		&l.Learning,
		&l.Reason,
		&l.Source,
		&l.Scope,
		&l.Confidence,
		&createdAt,
		&lastRecalled,
		&l.RecallCount,
		&deletedAt,
		&blob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mnerr.New(mnerr.CodeMemoryLearningNotFound, "learning not found",
			mnerr.FieldLearningID(id))
	}
	if err != nil {
		return nil, classify(err, "getting learning "+id)
	}

	l.CreatedAt = fromMillis(createdAt)
	l.LastRecalledAt = fromNullMillis(lastRecalled)
	l.DeletedAt = fromNullMillis(deletedAt)
	l.Embedding = decodeFloat32(blob)
	return &l, nil
}

func (s *LearningStore) List(ctx context.Context, query store.LearningQuery) ([]*store.Learning, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT ` + learningColumns + ` FROM learnings WHERE deleted_at IS NULL`)

	if query.Scope != "" {
		qb.WriteString(` AND scope = ?`)
		args = append(args, query.Scope)
	}

	qb.WriteString(` ORDER BY created_at DESC`)

	if query.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, classify(err, "listing learnings")
	}
	defer func() { _ = rows.Close() }()

	var learnings []*store.Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, classify(err, "scanning learning row")
		}
		learnings = append(learnings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating learnings")
	}

	return learnings, nil
}

// SoftDelete marks a learning deleted. Missing or already-deleted ids are
// a no-op.
func (s *LearningStore) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE learnings SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`
	if _, err := s.db.ExecContext(ctx, q, toMillis(time.Now()), id); err != nil {
		return classify(err, "soft-deleting learning "+id)
	}
	return nil
}

// SoftDeleteMatching marks every non-deleted row matching the filter and
// returns the deleted ids. The row set and the delete run in one
// transaction so a concurrent writer cannot widen the result.
func (s *LearningStore) SoftDeleteMatching(ctx context.Context, f store.DeleteFilter) ([]string, error) {
	where, args := deleteFilterWhere(f)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err, "beginning bulk delete")
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM learnings WHERE `+where, args...)
	if err != nil {
		return nil, classify(err, "selecting learnings for bulk delete")
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, classify(err, "scanning bulk delete id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, classify(err, "iterating bulk delete ids")
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	delArgs := make([]any, 0, 1+len(ids))
	delArgs = append(delArgs, toMillis(time.Now()))
	for _, id := range ids {
		delArgs = append(delArgs, id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE learnings SET deleted_at = ? WHERE id IN (`+placeholders+`)`, delArgs...); err != nil {
		return nil, classify(err, "applying bulk delete")
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err, "committing bulk delete")
	}
	return ids, nil
}

// deleteFilterWhere builds the WHERE clause for a bulk delete filter.
func deleteFilterWhere(f store.DeleteFilter) (string, []any) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`deleted_at IS NULL`)

	if f.ConfidenceLT != nil {
		qb.WriteString(` AND confidence < ?`)
		args = append(args, *f.ConfidenceLT)
	}
	if f.NotRecalledInDays != nil {
		if *f.NotRecalledInDays == 0 {
			qb.WriteString(` AND last_recalled_at IS NULL`)
		} else {
			cutoff := time.Now().AddDate(0, 0, -*f.NotRecalledInDays)
			qb.WriteString(` AND COALESCE(last_recalled_at, created_at) < ?`)
			args = append(args, toMillis(cutoff))
		}
	}
	if f.Scope != "" {
		qb.WriteString(` AND scope = ?`)
		args = append(args, f.Scope)
	}
	if f.ScopePrefix != "" {
		qb.WriteString(` AND scope LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(f.ScopePrefix)+"%")
	}
	if !f.CreatedBefore.IsZero() {
		qb.WriteString(` AND created_at < ?`)
		args = append(args, toMillis(f.CreatedBefore))
	}

	return qb.String(), args
}

// escapeLike escapes LIKE metacharacters so a scope prefix matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

func (s *LearningStore) Rescope(ctx context.Context, id, newScope string) (*store.Learning, error) {
	const q = `UPDATE learnings SET scope = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := s.db.ExecContext(ctx, q, newScope, id)
	if err != nil {
		return nil, classify(err, "rescoping learning "+id)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, classify(err, "checking rows affected for rescope "+id)
	}
	if rows == 0 {
		return nil, mnerr.New(mnerr.CodeMemoryLearningNotFound, "learning not found",
			mnerr.FieldLearningID(id))
	}

	return s.Get(ctx, id)
}

// BumpRecall records a recall for each id: last_recalled_at is set to the
// given instant and recall_count increments by one.
func (s *LearningStore) BumpRecall(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, 1+len(ids))
	args = append(args, toMillis(at))
	for _, id := range ids {
		args = append(args, id)
	}

	q := `UPDATE learnings SET last_recalled_at = ?, recall_count = recall_count + 1
WHERE id IN (` + placeholders + `) AND deleted_at IS NULL`

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return classify(err, "bumping recall stats")
	}
	return nil
}

func (s *LearningStore) Stats(ctx context.Context) (*store.Stats, error) {
	stats := &store.Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM learnings WHERE deleted_at IS NULL`).Scan(&stats.TotalLearnings)
	if err != nil {
		return nil, classify(err, "counting learnings")
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&stats.TotalSecrets)
	if err != nil {
		return nil, classify(err, "counting secrets")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT scope, COUNT(*) FROM learnings WHERE deleted_at IS NULL GROUP BY scope ORDER BY scope`)
	if err != nil {
		return nil, classify(err, "counting learnings by scope")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sc store.ScopeCount
		if err := rows.Scan(&sc.Scope, &sc.Count); err != nil {
			return nil, classify(err, "scanning scope count")
		}
		stats.Scopes = append(stats.Scopes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating scope counts")
	}

	return stats, nil
}
