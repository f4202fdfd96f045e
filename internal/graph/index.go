package graph

import (
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/models"
)

// ensureIndexed returns the node at p, indexing the filesystem entry there
// if the graph does not know it yet.
func (g *DataGraph) ensureIndexed(p models.NodePath) (*models.DataNode, error) {
	n, err := g.store.NodeByPath(p)
	if err != nil {
		return nil, err
	}
	if n != nil {
		return n, nil
	}
	return g.indexEntry(p)
}

// indexEntry creates a node for the filesystem entry at p, walking up the
// ancestor chain first so that every new node hangs off an indexed parent
// through a contains edge. Timestamps come from the entry's mtime.
func (g *DataGraph) indexEntry(p models.NodePath) (*models.DataNode, error) {
	e, err := g.vault.Stat(p)
	if err != nil {
		return nil, err
	}

	parentPath, ok := p.Parent()
	if !ok {
		// The root is created at Open and found by ensureIndexed.
		return &g.root, nil
	}
	parent, err := g.ensureIndexed(parentPath)
	if err != nil {
		return nil, err
	}

	n := models.DataNode{
		UUID:         uuid.New(),
		Path:         p,
		NType:        models.TypeForEntry(p, e.IsDir),
		CreatedTime:  e.ModTime,
		ModifiedTime: e.ModTime,
	}
	if err := g.store.PutNode(n); err != nil {
		return nil, err
	}
	if err := g.store.PutEdge(models.NewEdge(parent.UUID, n.UUID, models.EdgeContains)); err != nil {
		return nil, err
	}
	return &n, nil
}
