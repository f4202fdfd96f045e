package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

const nodeColumns = `uuid, path, ntype, created_time, modified_time`

// PutNode inserts or replaces a node row and its attributes in one
// transaction.
func (db *DB) PutNode(n models.DataNode) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return apperr.Storage("put node", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO nodes (uuid, path, ntype, created_time, modified_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			path          = excluded.path,
			ntype         = excluded.ntype,
			created_time  = excluded.created_time,
			modified_time = excluded.modified_time
	`, n.UUID.String(), n.Path.String(), n.NType.String(), n.CreatedTime, n.ModifiedTime)
	if err != nil {
		return apperr.Storage("put node", err)
	}
	if err := replaceNodeAttrs(tx, n.UUID, n.Attributes); err != nil {
		return apperr.Storage("put node", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("put node", err)
	}
	return nil
}

// NodeByUUID returns the node with the given id, or nil when absent.
func (db *DB) NodeByUUID(id uuid.UUID) (*models.DataNode, error) {
	return db.getNode(`SELECT `+nodeColumns+` FROM nodes WHERE uuid = ?`, id.String())
}

// NodeByPath returns the node at the given path, or nil when absent.
func (db *DB) NodeByPath(p models.NodePath) (*models.DataNode, error) {
	return db.getNode(`SELECT `+nodeColumns+` FROM nodes WHERE path = ?`, p.String())
}

func (db *DB) getNode(query string, arg any) (*models.DataNode, error) {
	row := db.conn.QueryRow(query, arg)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("get node", err)
	}
	attrs, err := db.nodeAttrs(n.UUID)
	if err != nil {
		return nil, apperr.Storage("get node", err)
	}
	n.Attributes = attrs
	return &n, nil
}

// AllNodes returns every indexed node ordered by path.
func (db *DB) AllNodes() ([]models.DataNode, error) {
	return db.listNodes(`SELECT `+nodeColumns+` FROM nodes ORDER BY path`,
		`SELECT node_uuid, name, kind, str_val, num_val, int_val, blob_val FROM node_attrs`)
}

// AllUUIDs returns the set of every indexed node id.
func (db *DB) AllUUIDs() (map[uuid.UUID]struct{}, error) {
	rows, err := db.conn.Query(`SELECT uuid FROM nodes`)
	if err != nil {
		return nil, apperr.Storage("all uuids", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, apperr.Storage("all uuids", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Storage("all uuids", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("all uuids", err)
	}
	return out, nil
}

// NodesUnder returns the strict descendants of prefix, ordered by path.
func (db *DB) NodesUnder(prefix models.NodePath) ([]models.DataNode, error) {
	pattern := likePrefix(prefix)
	return db.listNodes(
		`SELECT `+nodeColumns+` FROM nodes WHERE path LIKE ? ESCAPE '\' ORDER BY path`,
		`SELECT a.node_uuid, a.name, a.kind, a.str_val, a.num_val, a.int_val, a.blob_val
		 FROM node_attrs a JOIN nodes n ON n.uuid = a.node_uuid
		 WHERE n.path LIKE ? ESCAPE '\'`,
		pattern)
}

// RebasePaths rewrites the path of the node at oldPrefix and of every
// strict descendant so they hang under newPrefix instead. Timestamps are
// untouched; callers stamp the moved node themselves.
func (db *DB) RebasePaths(oldPrefix, newPrefix models.NodePath) error {
	// substr is 1-indexed and counts characters, not bytes.
	cut := utf8.RuneCountInString(oldPrefix.String()) + 1
	_, err := db.conn.Exec(`
		UPDATE nodes SET path = ? || substr(path, ?)
		WHERE path = ? OR path LIKE ? ESCAPE '\'
	`, newPrefix.String(), cut, oldPrefix.String(), likePrefix(oldPrefix))
	if err != nil {
		return apperr.Storage("rebase paths", err)
	}
	return nil
}

// TouchNode updates the modified timestamp of one node.
func (db *DB) TouchNode(id uuid.UUID, modified int64) error {
	_, err := db.conn.Exec(`UPDATE nodes SET modified_time = ? WHERE uuid = ?`, modified, id.String())
	if err != nil {
		return apperr.Storage("touch node", err)
	}
	return nil
}

// DeleteNode removes a node row. Attributes and edges cascade. Deleting
// an absent node is a no-op.
func (db *DB) DeleteNode(id uuid.UUID) error {
	if _, err := db.conn.Exec(`DELETE FROM nodes WHERE uuid = ?`, id.String()); err != nil {
		return apperr.Storage("delete node", err)
	}
	return nil
}

// listNodes runs a node query and an attribute query with the same args
// and stitches the results together.
func (db *DB) listNodes(nodeQuery, attrQuery string, args ...any) ([]models.DataNode, error) {
	rows, err := db.conn.Query(nodeQuery, args...)
	if err != nil {
		return nil, apperr.Storage("list nodes", err)
	}
	defer rows.Close()

	var out []models.DataNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, apperr.Storage("list nodes", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list nodes", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	attrRows, err := db.conn.Query(attrQuery, args...)
	if err != nil {
		return nil, apperr.Storage("list nodes", err)
	}
	defer attrRows.Close()

	byNode := make(map[uuid.UUID][]models.Attribute)
	for attrRows.Next() {
		var (
			idStr, name, kind string
			str               sql.NullString
			num               sql.NullFloat64
			i                 sql.NullInt64
			blob              []byte
		)
		if err := attrRows.Scan(&idStr, &name, &kind, &str, &num, &i, &blob); err != nil {
			return nil, apperr.Storage("list nodes", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, apperr.Storage("list nodes", err)
		}
		v, err := attrValue(kind, str, num, i, blob)
		if err != nil {
			return nil, apperr.Storage("list nodes", err)
		}
		byNode[id] = append(byNode[id], models.Attribute{Name: name, Value: v})
	}
	if err := attrRows.Err(); err != nil {
		return nil, apperr.Storage("list nodes", err)
	}
	for idx := range out {
		out[idx].Attributes = byNode[out[idx].UUID]
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (models.DataNode, error) {
	var (
		idStr, pathStr, ntypeStr string
		created, modified        int64
	)
	if err := r.Scan(&idStr, &pathStr, &ntypeStr, &created, &modified); err != nil {
		return models.DataNode{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return models.DataNode{}, fmt.Errorf("parse uuid %q: %w", idStr, err)
	}
	nt, err := models.ParseNodeType(ntypeStr)
	if err != nil {
		return models.DataNode{}, fmt.Errorf("parse ntype %q: %w", ntypeStr, err)
	}
	return models.DataNode{
		UUID:         id,
		Path:         models.NodePath(pathStr),
		NType:        nt,
		CreatedTime:  created,
		ModifiedTime: modified,
	}, nil
}

// likePrefix builds a LIKE pattern matching the strict descendants of p,
// escaping LIKE metacharacters that may appear in file names.
func likePrefix(p models.NodePath) string {
	if p.IsRoot() {
		return "/%"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(p.String())
	return escaped + "/%"
}
