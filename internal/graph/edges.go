package graph

import (
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

// EdgeSpec describes one edge to insert.
type EdgeSpec struct {
	Source     uuid.UUID
	Target     uuid.UUID
	EType      models.EdgeType
	Attributes []models.Attribute
}

// InsertEdges inserts a batch of edges, one result per spec. Contains
// edges are system-owned and rejected here; so are self-edges, duplicated
// ordered pairs, and edges with a missing endpoint.
func (g *DataGraph) InsertEdges(specs []EdgeSpec) []EdgeResult {
	out := make([]EdgeResult, 0, len(specs))
	for _, s := range specs {
		out = append(out, g.insertEdge(s))
	}
	return out
}

func (g *DataGraph) insertEdge(spec EdgeSpec) EdgeResult {
	var res EdgeResult
	if spec.EType == models.EdgeContains {
		res.Err = apperr.Rejectedf("contains edges are system-owned")
		return res
	}
	if spec.EType == "" {
		spec.EType = models.EdgeBase
	}
	if spec.Source == spec.Target {
		res.Err = apperr.Rejectedf("self-edges are not allowed")
		return res
	}
	for _, a := range spec.Attributes {
		if err := models.ValidateEdgeAttrName(a.Name); err != nil {
			res.Err = err
			return res
		}
	}
	for _, id := range []uuid.UUID{spec.Source, spec.Target} {
		n, err := g.store.NodeByUUID(id)
		if err != nil {
			res.Err = err
			return res
		}
		if n == nil {
			res.Err = apperr.NotFoundf("no node with uuid %s", id)
			return res
		}
	}
	existing, err := g.store.GetEdge(spec.Source, spec.Target)
	if err != nil {
		res.Err = err
		return res
	}
	if existing != nil {
		res.Err = apperr.AlreadyExistsf("edge %s -> %s already exists", spec.Source, spec.Target)
		return res
	}

	e := models.NewEdge(spec.Source, spec.Target, spec.EType)
	e.Attributes = models.CloneAttrs(spec.Attributes)
	if err := g.store.PutEdge(e); err != nil {
		res.Err = err
		return res
	}
	res.Edge = &e
	res.Created = true
	return res
}

// DeleteEdges deletes a batch of edges by ordered pair, one result per
// pair. Absent edges are ignored; contains edges are rejected.
func (g *DataGraph) DeleteEdges(pairs []models.EdgePair) []EdgeDeleteResult {
	out := make([]EdgeDeleteResult, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, g.deleteEdge(p))
	}
	return out
}

func (g *DataGraph) deleteEdge(pair models.EdgePair) EdgeDeleteResult {
	res := EdgeDeleteResult{Pair: pair}
	e, err := g.store.GetEdge(pair.Source, pair.Target)
	if err != nil {
		res.Err = err
		return res
	}
	if e == nil {
		// Deleting what is already gone succeeds silently.
		return res
	}
	if e.IsContains() {
		res.Err = apperr.Rejectedf("contains edges are system-owned")
		return res
	}
	if err := g.store.DeleteEdge(pair.Source, pair.Target); err != nil {
		res.Err = err
		return res
	}
	res.Removed = e
	return res
}

// ReconnectEdge atomically moves the edge at oldPair to newPair, keeping
// its type and attributes.
func (g *DataGraph) ReconnectEdge(oldPair, newPair models.EdgePair) (*models.Edge, error) {
	e, err := g.store.GetEdge(oldPair.Source, oldPair.Target)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFoundf("no edge %s -> %s", oldPair.Source, oldPair.Target)
	}
	if e.IsContains() {
		return nil, apperr.Rejectedf("contains edges are system-owned")
	}
	if newPair.Source == newPair.Target {
		return nil, apperr.Rejectedf("self-edges are not allowed")
	}
	if newPair == oldPair {
		return e, nil
	}
	for _, id := range []uuid.UUID{newPair.Source, newPair.Target} {
		n, err := g.store.NodeByUUID(id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, apperr.NotFoundf("no node with uuid %s", id)
		}
	}
	if taken, err := g.store.GetEdge(newPair.Source, newPair.Target); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, apperr.AlreadyExistsf("edge %s -> %s already exists", newPair.Source, newPair.Target)
	}

	if err := g.store.ReconnectEdge(oldPair.Source, oldPair.Target, newPair.Source, newPair.Target, now()); err != nil {
		return nil, err
	}
	return g.store.GetEdge(newPair.Source, newPair.Target)
}
