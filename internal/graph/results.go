package graph

import (
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/models"
)

// NodeSpec describes one node to insert.
type NodeSpec struct {
	Path       models.NodePath
	NType      models.NodeType
	Attributes []models.Attribute
}

// CreatedAncestor is a directory node auto-created during an insert.
// MadeEntry marks ancestors whose directory was also created on disk.
type CreatedAncestor struct {
	Node      models.DataNode
	MadeEntry bool
}

// CreateResult reports one inserted node. Ancestors lists the directory
// nodes that were auto-created to keep the parent chain gap-free,
// shallowest first. Created is false when an equivalent node already
// existed and the insert was a silent no-op. MadeEntry is true when the
// insert created a filesystem entry for the node itself.
type CreateResult struct {
	Spec      NodeSpec
	Node      *models.DataNode
	Created   bool
	MadeEntry bool
	Ancestors []CreatedAncestor
	Err       error
}

// RemovedNode snapshots one node at the moment of deletion, with enough
// state to restore it: the full node, and what was removed from disk.
type RemovedNode struct {
	Node      models.DataNode
	HadEntry  bool   // a filesystem entry was removed
	WasDir    bool   // that entry was a directory
	FileBytes []byte // contents of a removed file entry
}

// DeleteResult reports one deleted node, with the snapshot of everything
// that vanished: the node itself, cascaded descendants, and every edge
// touching any of them (deduplicated).
type DeleteResult struct {
	ID      uuid.UUID
	Removed []RemovedNode
	Edges   []models.Edge
	Err     error
}

// RenameResult reports a rename, carrying the old name for reversal.
type RenameResult struct {
	ID      uuid.UUID
	OldName string
	NewName string
	OldPath models.NodePath
	NewPath models.NodePath
	Node    *models.DataNode
}

// MoveOp re-parents one node.
type MoveOp struct {
	ID        uuid.UUID `json:"uuid"`
	NewParent uuid.UUID `json:"new_parent_uuid"`
}

// MoveResult reports one move, carrying the old parent for reversal.
// Moved is false when the node was already under the requested parent.
type MoveResult struct {
	Op        MoveOp
	OldParent uuid.UUID
	OldPath   models.NodePath
	NewPath   models.NodePath
	Moved     bool
	Err       error
}

// AttrsResult reports an attribute mutation. Before is the full node as
// it was prior to the change; restoring it reverses the operation.
type AttrsResult struct {
	ID     uuid.UUID
	Before models.DataNode
	Node   *models.DataNode
}

// EdgeResult reports one inserted edge.
type EdgeResult struct {
	Edge    *models.Edge
	Created bool
	Err     error
}

// EdgeDeleteResult reports one edge deletion. Removed is nil when no such
// edge existed.
type EdgeDeleteResult struct {
	Pair    models.EdgePair
	Removed *models.Edge
	Err     error
}

// Connections is the one-hop neighborhood of a node: every node reachable
// via a single edge, and those edges. Neighbors are sorted by path.
type Connections struct {
	Node      models.DataNode
	Neighbors []models.DataNode
	Edges     []models.Edge
}
