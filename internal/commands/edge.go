package commands

import (
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/models"
)

// CreateEdges inserts user edges; undo deletes exactly the edges that
// were created.
type CreateEdges struct {
	Specs []graph.EdgeSpec

	Results []graph.EdgeResult
}

func (c *CreateEdges) Kind() string { return "create_edges" }

func (c *CreateEdges) Apply(env *Env) error {
	c.Results = env.Graph.InsertEdges(c.Specs)

	var firstErr error
	applied := false
	for _, r := range c.Results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		applied = true
	}
	return batchOutcome(applied, firstErr)
}

func (c *CreateEdges) Undo(env *Env) error {
	for i := len(c.Results) - 1; i >= 0; i-- {
		r := c.Results[i]
		if r.Err != nil || !r.Created {
			continue
		}
		pair := models.EdgePair{Source: r.Edge.Source, Target: r.Edge.Target}
		if res := env.Graph.DeleteEdges([]models.EdgePair{pair}); res[0].Err != nil {
			return res[0].Err
		}
	}
	return nil
}

func (c *CreateEdges) Redo(env *Env) error { return c.Apply(env) }

// DeleteEdges removes user edges; undo recreates each removed edge with
// its original attributes and timestamps.
type DeleteEdges struct {
	Pairs []models.EdgePair

	Results []graph.EdgeDeleteResult
}

func (c *DeleteEdges) Kind() string { return "delete_edges" }

func (c *DeleteEdges) Apply(env *Env) error {
	c.Results = env.Graph.DeleteEdges(c.Pairs)

	var firstErr error
	applied := false
	for _, r := range c.Results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		applied = true
	}
	return batchOutcome(applied, firstErr)
}

func (c *DeleteEdges) Undo(env *Env) error {
	for i := len(c.Results) - 1; i >= 0; i-- {
		r := c.Results[i]
		if r.Err != nil || r.Removed == nil {
			continue
		}
		if err := env.Graph.RestoreEdge(*r.Removed); err != nil {
			return err
		}
	}
	return nil
}

func (c *DeleteEdges) Redo(env *Env) error { return c.Apply(env) }

// ReconnectEdge moves an edge onto new endpoints; undo moves it back.
type ReconnectEdge struct {
	Old models.EdgePair
	New models.EdgePair

	Edge *models.Edge
}

func (c *ReconnectEdge) Kind() string { return "reconnect_edge" }

func (c *ReconnectEdge) Apply(env *Env) error {
	e, err := env.Graph.ReconnectEdge(c.Old, c.New)
	if err != nil {
		return err
	}
	c.Edge = e
	return nil
}

func (c *ReconnectEdge) Undo(env *Env) error {
	_, err := env.Graph.ReconnectEdge(c.New, c.Old)
	return err
}

func (c *ReconnectEdge) Redo(env *Env) error {
	_, err := env.Graph.ReconnectEdge(c.Old, c.New)
	return err
}
