package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/models"
)

// attrColumns spreads a typed value across the kind-specific columns.
// Columns not matching the kind stay NULL.
func attrColumns(v models.AttrValue) (str sql.NullString, num sql.NullFloat64, i sql.NullInt64, blob []byte) {
	switch v.Kind {
	case models.AttrString:
		str = sql.NullString{String: v.Str, Valid: true}
	case models.AttrF32:
		num = sql.NullFloat64{Float64: float64(v.F32), Valid: true}
	case models.AttrF64:
		num = sql.NullFloat64{Float64: v.F64, Valid: true}
	case models.AttrI64:
		i = sql.NullInt64{Int64: v.I64, Valid: true}
	case models.AttrBytes:
		blob = v.Bytes
	}
	return str, num, i, blob
}

// attrValue rebuilds a typed value from its row representation.
func attrValue(kind string, str sql.NullString, num sql.NullFloat64, i sql.NullInt64, blob []byte) (models.AttrValue, error) {
	switch models.AttrKind(kind) {
	case models.AttrString:
		return models.StringValue(str.String), nil
	case models.AttrF32:
		return models.F32Value(float32(num.Float64)), nil
	case models.AttrF64:
		return models.F64Value(num.Float64), nil
	case models.AttrI64:
		return models.I64Value(i.Int64), nil
	case models.AttrBytes:
		return models.BytesValue(blob), nil
	default:
		return models.AttrValue{}, fmt.Errorf("unknown attribute kind %q", kind)
	}
}

// replaceNodeAttrs deletes and re-inserts the attribute rows of a node.
func replaceNodeAttrs(tx *sql.Tx, id uuid.UUID, attrs []models.Attribute) error {
	if _, err := tx.Exec(`DELETE FROM node_attrs WHERE node_uuid = ?`, id.String()); err != nil {
		return fmt.Errorf("clear node attrs: %w", err)
	}
	if len(attrs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO node_attrs (node_uuid, name, kind, str_val, num_val, int_val, blob_val)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare attr insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range attrs {
		str, num, i, blob := attrColumns(a.Value)
		if _, err := stmt.Exec(id.String(), a.Name, string(a.Value.Kind), str, num, i, blob); err != nil {
			return fmt.Errorf("insert node attr %q: %w", a.Name, err)
		}
	}
	return nil
}

// replaceEdgeAttrs deletes and re-inserts the attribute rows of an edge.
func replaceEdgeAttrs(tx *sql.Tx, source, target uuid.UUID, attrs []models.Attribute) error {
	if _, err := tx.Exec(`DELETE FROM edge_attrs WHERE source = ? AND target = ?`, source.String(), target.String()); err != nil {
		return fmt.Errorf("clear edge attrs: %w", err)
	}
	if len(attrs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO edge_attrs (source, target, name, kind, str_val, num_val, int_val, blob_val)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare attr insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range attrs {
		str, num, i, blob := attrColumns(a.Value)
		if _, err := stmt.Exec(source.String(), target.String(), a.Name, string(a.Value.Kind), str, num, i, blob); err != nil {
			return fmt.Errorf("insert edge attr %q: %w", a.Name, err)
		}
	}
	return nil
}

// nodeAttrs loads the attribute list of one node.
func (db *DB) nodeAttrs(id uuid.UUID) ([]models.Attribute, error) {
	rows, err := db.conn.Query(`
		SELECT name, kind, str_val, num_val, int_val, blob_val
		FROM node_attrs WHERE node_uuid = ? ORDER BY name
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("node attrs: %w", err)
	}
	defer rows.Close()
	return scanAttrs(rows)
}

// edgeAttrs loads the attribute list of one edge.
func (db *DB) edgeAttrs(source, target uuid.UUID) ([]models.Attribute, error) {
	rows, err := db.conn.Query(`
		SELECT name, kind, str_val, num_val, int_val, blob_val
		FROM edge_attrs WHERE source = ? AND target = ? ORDER BY name
	`, source.String(), target.String())
	if err != nil {
		return nil, fmt.Errorf("edge attrs: %w", err)
	}
	defer rows.Close()
	return scanAttrs(rows)
}

func scanAttrs(rows *sql.Rows) ([]models.Attribute, error) {
	var out []models.Attribute
	for rows.Next() {
		var (
			name, kind string
			str        sql.NullString
			num        sql.NullFloat64
			i          sql.NullInt64
			blob       []byte
		)
		if err := rows.Scan(&name, &kind, &str, &num, &i, &blob); err != nil {
			return nil, err
		}
		v, err := attrValue(kind, str, num, i, blob)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Attribute{Name: name, Value: v})
	}
	return out, rows.Err()
}
