package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

const edgeColumns = `source, target, etype, created_time, modified_time`

// PutEdge inserts or replaces an edge row and its attributes in one
// transaction. Both endpoints must already exist as nodes.
func (db *DB) PutEdge(e models.Edge) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return apperr.Storage("put edge", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO edges (source, target, etype, created_time, modified_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, target) DO UPDATE SET
			etype         = excluded.etype,
			created_time  = excluded.created_time,
			modified_time = excluded.modified_time
	`, e.Source.String(), e.Target.String(), string(e.EType), e.CreatedTime, e.ModifiedTime)
	if err != nil {
		return apperr.Storage("put edge", err)
	}
	if err := replaceEdgeAttrs(tx, e.Source, e.Target, e.Attributes); err != nil {
		return apperr.Storage("put edge", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("put edge", err)
	}
	return nil
}

// GetEdge returns the edge from source to target, or nil when absent.
// Direction matters; callers probing both orientations call twice.
func (db *DB) GetEdge(source, target uuid.UUID) (*models.Edge, error) {
	return db.getEdge(`SELECT `+edgeColumns+` FROM edges WHERE source = ? AND target = ?`,
		source.String(), target.String())
}

// ParentOf returns the contains edge pointing at id, or nil for the root
// and for unindexed ids.
func (db *DB) ParentOf(id uuid.UUID) (*models.Edge, error) {
	return db.getEdge(`SELECT `+edgeColumns+` FROM edges WHERE target = ? AND etype = ?`,
		id.String(), string(models.EdgeContains))
}

func (db *DB) getEdge(query string, args ...any) (*models.Edge, error) {
	row := db.conn.QueryRow(query, args...)
	e, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("get edge", err)
	}
	attrs, err := db.edgeAttrs(e.Source, e.Target)
	if err != nil {
		return nil, apperr.Storage("get edge", err)
	}
	e.Attributes = attrs
	return &e, nil
}

// ChildrenOf returns the contains edges leaving id.
func (db *DB) ChildrenOf(id uuid.UUID) ([]models.Edge, error) {
	return db.listEdges(`SELECT `+edgeColumns+` FROM edges WHERE source = ? AND etype = ? ORDER BY target`,
		id.String(), string(models.EdgeContains))
}

// EdgesTouching returns every edge with id as source or target.
func (db *DB) EdgesTouching(id uuid.UUID) ([]models.Edge, error) {
	return db.listEdges(`SELECT `+edgeColumns+` FROM edges WHERE source = ? OR target = ? ORDER BY source, target`,
		id.String(), id.String())
}

// ReconnectEdge moves an edge to new endpoints, keeping its attributes.
// A no-op when the old edge is absent.
func (db *DB) ReconnectEdge(oldSource, oldTarget, newSource, newTarget uuid.UUID, modified int64) error {
	_, err := db.conn.Exec(`
		UPDATE edges SET source = ?, target = ?, modified_time = ?
		WHERE source = ? AND target = ?
	`, newSource.String(), newTarget.String(), modified, oldSource.String(), oldTarget.String())
	if err != nil {
		return apperr.Storage("reconnect edge", err)
	}
	return nil
}

// DeleteEdge removes an edge row and its attributes. Deleting an absent
// edge is a no-op.
func (db *DB) DeleteEdge(source, target uuid.UUID) error {
	_, err := db.conn.Exec(`DELETE FROM edges WHERE source = ? AND target = ?`,
		source.String(), target.String())
	if err != nil {
		return apperr.Storage("delete edge", err)
	}
	return nil
}

func (db *DB) listEdges(query string, args ...any) ([]models.Edge, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, apperr.Storage("list edges", err)
	}
	defer rows.Close()

	var out []models.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, apperr.Storage("list edges", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list edges", err)
	}
	for i := range out {
		attrs, err := db.edgeAttrs(out[i].Source, out[i].Target)
		if err != nil {
			return nil, apperr.Storage("list edges", err)
		}
		out[i].Attributes = attrs
	}
	return out, nil
}

func scanEdge(r rowScanner) (models.Edge, error) {
	var (
		srcStr, tgtStr, etype string
		created, modified     int64
	)
	if err := r.Scan(&srcStr, &tgtStr, &etype, &created, &modified); err != nil {
		return models.Edge{}, err
	}
	src, err := uuid.Parse(srcStr)
	if err != nil {
		return models.Edge{}, fmt.Errorf("parse source %q: %w", srcStr, err)
	}
	tgt, err := uuid.Parse(tgtStr)
	if err != nil {
		return models.Edge{}, fmt.Errorf("parse target %q: %w", tgtStr, err)
	}
	return models.Edge{
		Source:       src,
		Target:       tgt,
		EType:        models.EdgeType(etype),
		CreatedTime:  created,
		ModifiedTime: modified,
	}, nil
}
