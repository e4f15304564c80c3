// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemonic Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Chasewhip8/mnemonic-sub000/internal/store"
	mnerr "github.com/Chasewhip8/mnemonic-sub000/pkg/errors"
)

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements store.VectorIndex over the vec0 virtual table in
// the memory database, joining learnings so scope and soft-delete filters
// apply inside the search query.
type VectorIndex struct {
	db *sql.DB
}

// NewVectorIndexWithDB wraps the memory database opened by the learning
// store. The vec0 table is created by migrateMemory.
func NewVectorIndexWithDB(db *sql.DB) *VectorIndex {
	return &VectorIndex{db: db}
}

// Close is a no-op; the shared connection is closed by its owner.
func (v *VectorIndex) Close() error {
	return nil
}

// knnOverfetch widens the raw KNN result before the join filters drop
// soft-deleted and out-of-scope rows.
func knnOverfetch(topK int) int {
	k := topK * 8
	if k < 64 {
		k = 64
	}
	if k > 512 {
		k = 512
	}
	return k
}

// Search returns the topK nearest non-deleted learnings by ascending
// cosine distance. A nil scopes slice applies no scope filter; callers
// with an empty scope resolution must short-circuit before reaching the
// index.
func (v *VectorIndex) Search(ctx context.Context, query []float32, scopes []string, topK int) ([]store.Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, mnerr.Wrapf(err, mnerr.CodeStorageDataInvalid, "serializing query vector")
	}

	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(`SELECT l.id, l.trigger_text, l.learning_text, l.reason, l.source, l.scope, l.confidence,
	l.created_at, l.last_recalled_at, l.recall_count, v.distance
FROM vectors v JOIN learnings l ON l.id = v.id
WHERE v.embedding MATCH ? AND k = ? AND l.deleted_at IS NULL`)
	args = append(args, blob, knnOverfetch(topK))

	if len(scopes) > 0 {
		placeholders := strings.Repeat("?,", len(scopes))
		placeholders = placeholders[:len(placeholders)-1]
		qb.WriteString(` AND l.scope IN (` + placeholders + `)`)
		for _, s := range scopes {
			args = append(args, s)
		}
	}

	qb.WriteString(` ORDER BY v.distance LIMIT ?`)
	args = append(args, topK)

	rows, err := v.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, classify(err, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []store.Candidate
	for rows.Next() {
		var l store.Learning
		var createdAt int64
		var lastRecalled sql.NullInt64
		var distance float64

		if err := rows.Scan(
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
			&distance,
		); err != nil {
			return nil, classify(err, "scanning vector result")
		}

		l.CreatedAt = fromMillis(createdAt)
		l.LastRecalledAt = fromNullMillis(lastRecalled)
		results = append(results, store.Candidate{Learning: &l, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterating vector results")
	}

	return results, nil
}

// decodeFloat32 converts a vec0 embedding BLOB back to a float32 slice
// (4 bytes per element, little endian).
func decodeFloat32(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	n := len(blob) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
