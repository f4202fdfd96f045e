package store

import (
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/models"
)

// GraphStore defines the interface for graph persistence operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
//
// Lookups return (nil, nil) when the row is absent; the layer above decides
// whether absence is an error.
type GraphStore interface {
	PutNode(n models.DataNode) error
	NodeByUUID(id uuid.UUID) (*models.DataNode, error)
	NodeByPath(p models.NodePath) (*models.DataNode, error)
	AllNodes() ([]models.DataNode, error)
	AllUUIDs() (map[uuid.UUID]struct{}, error)
	NodesUnder(prefix models.NodePath) ([]models.DataNode, error)
	RebasePaths(oldPrefix, newPrefix models.NodePath) error
	TouchNode(id uuid.UUID, modified int64) error
	DeleteNode(id uuid.UUID) error

	PutEdge(e models.Edge) error
	GetEdge(source, target uuid.UUID) (*models.Edge, error)
	EdgesTouching(id uuid.UUID) ([]models.Edge, error)
	ParentOf(id uuid.UUID) (*models.Edge, error)
	ChildrenOf(id uuid.UUID) ([]models.Edge, error)
	ReconnectEdge(oldSource, oldTarget, newSource, newTarget uuid.UUID, modified int64) error
	DeleteEdge(source, target uuid.UUID) error

	Close() error
}

// Verify *DB satisfies GraphStore at compile time.
var _ GraphStore = (*DB)(nil)
