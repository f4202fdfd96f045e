// Package models defines the graph element types shared across the server:
// nodes, edges, typed attributes, canonical paths, and the per-context view
// documents. The packages above it (store, graph, commands, service) all
// speak in these types.
package models

import (
	"time"

	"github.com/google/uuid"
)

// KartaVersion tags persisted documents (contexts, settings) with the schema
// generation that wrote them.
const KartaVersion = "0.4.0"

// DataNode is one durable graph node. Identity is the UUID; the path is a
// mutable location that rename and move rewrite. The UUID never changes.
type DataNode struct {
	UUID         uuid.UUID   `json:"uuid"`
	Path         NodePath    `json:"path"`
	NType        NodeType    `json:"ntype"`
	CreatedTime  int64       `json:"created_time"`
	ModifiedTime int64       `json:"modified_time"`
	Attributes   []Attribute `json:"attributes"`
}

// NewDataNode builds a node with a fresh UUID, stamping both timestamps now.
func NewDataNode(p NodePath, t NodeType) DataNode {
	now := time.Now().Unix()
	return DataNode{
		UUID:         uuid.New(),
		Path:         p,
		NType:        t,
		CreatedTime:  now,
		ModifiedTime: now,
	}
}

// Name returns the node's final path segment ("" for the root).
func (n *DataNode) Name() string { return n.Path.Name() }

// IsRoot reports whether this is the vault root node.
func (n *DataNode) IsRoot() bool { return n.Path.IsRoot() }

// Attr returns the named attribute value, if present.
func (n *DataNode) Attr(name string) (AttrValue, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return AttrValue{}, false
}

// Clone deep-copies the node, including its attribute list.
func (n *DataNode) Clone() DataNode {
	out := *n
	out.Attributes = CloneAttrs(n.Attributes)
	return out
}
