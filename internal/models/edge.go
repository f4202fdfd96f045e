package models

import (
	"time"

	"github.com/google/uuid"
)

// EdgeType discriminates edge semantics. Contains edges form the parent
// tree and are system-owned; base edges are ordinary user relationships.
// Further types are free-form strings for extensibility.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeBase     EdgeType = "base"
)

// Edge is a directed, typed relationship. At most one edge may exist per
// ordered (source, target) pair.
type Edge struct {
	Source       uuid.UUID   `json:"source"`
	Target       uuid.UUID   `json:"target"`
	EType        EdgeType    `json:"etype"`
	CreatedTime  int64       `json:"created_time"`
	ModifiedTime int64       `json:"modified_time"`
	Attributes   []Attribute `json:"attributes"`
}

// NewEdge builds an edge stamped now.
func NewEdge(source, target uuid.UUID, t EdgeType) Edge {
	now := time.Now().Unix()
	return Edge{
		Source:       source,
		Target:       target,
		EType:        t,
		CreatedTime:  now,
		ModifiedTime: now,
	}
}

// IsContains reports whether the edge belongs to the system-owned parent tree.
func (e *Edge) IsContains() bool { return e.EType == EdgeContains }

// Touches reports whether id is either endpoint.
func (e *Edge) Touches(id uuid.UUID) bool {
	return e.Source == id || e.Target == id
}

// Clone deep-copies the edge, including its attribute list.
func (e *Edge) Clone() Edge {
	out := *e
	out.Attributes = CloneAttrs(e.Attributes)
	return out
}

// EdgePair identifies an edge by its ordered endpoints.
type EdgePair struct {
	Source uuid.UUID `json:"source"`
	Target uuid.UUID `json:"target"`
}
