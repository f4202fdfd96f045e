// Package graph is the durable authority for nodes, edges, attributes and
// the contains tree. Nodes carry a dual identity: a stable UUID assigned at
// first indexing, and a vault-relative path that follows the node through
// renames and moves. Filesystem items enter the graph lazily, on first
// reference. The package does no locking of its own; the service facade
// serializes access.
package graph

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/store"
	"github.com/karta-graph/karta/internal/vaultfs"
)

// DataGraph binds the storage primitive to the vault filesystem.
type DataGraph struct {
	vault *vaultfs.Vault
	store store.GraphStore
	root  models.DataNode
}

// Open initializes the graph over an opened vault and store. The root node
// and the archetype nodes are created on first open and reused afterwards.
func Open(vault *vaultfs.Vault, st store.GraphStore) (*DataGraph, error) {
	g := &DataGraph{vault: vault, store: st}

	root, err := st.NodeByPath(models.RootPath)
	if err != nil {
		return nil, err
	}
	if root == nil {
		n := models.NewDataNode(models.RootPath, models.NewNodeType(models.TypeRoot))
		if err := st.PutNode(n); err != nil {
			return nil, err
		}
		root = &n
	}
	g.root = *root

	for _, name := range models.Archetypes {
		p, err := models.JoinPath(models.RootPath, name)
		if err != nil {
			return nil, err
		}
		existing, err := st.NodeByPath(p)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		n := models.NewDataNode(p, models.ArchetypeType(name))
		if err := st.PutNode(n); err != nil {
			return nil, err
		}
		if err := st.PutEdge(models.NewEdge(root.UUID, n.UUID, models.EdgeContains)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Root returns the vault root node.
func (g *DataGraph) Root() models.DataNode { return g.root }

// Vault returns the underlying vault filesystem.
func (g *DataGraph) Vault() *vaultfs.Vault { return g.vault }

// AllUUIDs returns the set of every indexed node id.
func (g *DataGraph) AllUUIDs() (map[uuid.UUID]struct{}, error) {
	return g.store.AllUUIDs()
}

// OpenNodeByUUID returns the node with the given id.
func (g *DataGraph) OpenNodeByUUID(id uuid.UUID) (*models.DataNode, error) {
	n, err := g.store.NodeByUUID(id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperr.NotFoundf("no node with uuid %s", id)
	}
	return n, nil
}

// LookupPath returns the indexed node at p without touching the
// filesystem, or nil when the path was never indexed.
func (g *DataGraph) LookupPath(p models.NodePath) (*models.DataNode, error) {
	return g.store.NodeByPath(p)
}

// OpenNodeByPath returns the node at the given path, lazily indexing the
// filesystem entry there (and its ancestor chain) when one exists.
func (g *DataGraph) OpenNodeByPath(p models.NodePath) (*models.DataNode, error) {
	n, err := g.store.NodeByPath(p)
	if err != nil {
		return nil, err
	}
	if n != nil {
		return n, nil
	}
	if _, err := g.vault.Stat(p); err != nil {
		return nil, apperr.NotFoundf("no node at %s", p)
	}
	return g.indexEntry(p)
}

// OpenNodeConnections resolves a node like OpenNodeByPath, indexes the
// children of directory nodes, and returns the one-hop neighborhood.
func (g *DataGraph) OpenNodeConnections(n *models.DataNode) (*Connections, error) {
	if n.NType.IsDir() && g.vault.Exists(n.Path) {
		entries, err := g.vault.List(n.Path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, err := g.ensureIndexed(e.Path); err != nil {
				return nil, err
			}
		}
	}

	edges, err := g.store.EdgesTouching(n.UUID)
	if err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]struct{}{n.UUID: {}}
	var neighbors []models.DataNode
	for _, e := range edges {
		other := e.Source
		if other == n.UUID {
			other = e.Target
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		nb, err := g.store.NodeByUUID(other)
		if err != nil {
			return nil, err
		}
		if nb == nil {
			continue
		}
		neighbors = append(neighbors, *nb)
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Path < neighbors[j].Path })

	return &Connections{Node: *n, Neighbors: neighbors, Edges: edges}, nil
}

// isPhysical reports whether a node is backed by a real filesystem entry.
func (g *DataGraph) isPhysical(n *models.DataNode) bool {
	return n.NType.IsFilesystem() && g.vault.Exists(n.Path)
}

func now() int64 { return time.Now().Unix() }
