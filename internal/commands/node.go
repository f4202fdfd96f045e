package commands

import (
	"errors"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/models"
)

// CreateNodes inserts a batch of nodes, auto-creating missing ancestor
// directories. Undo deletes the nodes that were actually created, plus
// every recorded ancestor left without children once they are gone.
type CreateNodes struct {
	Specs []graph.NodeSpec

	Results []graph.CreateResult

	// undone holds the delete snapshots taken while undoing, so Redo can
	// reinstate the same rows, entries and edges with the same UUIDs.
	undone []graph.DeleteResult
}

func (c *CreateNodes) Kind() string { return "create_nodes" }

func (c *CreateNodes) Apply(env *Env) error {
	c.Results = env.Graph.InsertNodes(c.Specs)
	c.undone = nil

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

func (c *CreateNodes) Undo(env *Env) error {
	for i := len(c.Results) - 1; i >= 0; i-- {
		r := c.Results[i]
		if r.Err != nil || !r.Created {
			continue
		}
		// A created directory that picked up children since (indexed or
		// inserted) cannot be deleted without cascading; that error
		// surfaces and the command stays on the undo stack.
		dr := env.Graph.DeleteNodes([]uuid.UUID{r.Node.UUID}, false, r.MadeEntry)[0]
		if dr.Err != nil {
			return dr.Err
		}
		if len(dr.Removed) > 0 {
			c.undone = append(c.undone, dr)
		}
		// Ancestors were recorded shallowest first; remove deepest first
		// and stop at the first one that still has children.
		for j := len(r.Ancestors) - 1; j >= 0; j-- {
			anc := r.Ancestors[j]
			has, err := env.Graph.HasDescendants(anc.Node.Path)
			if err != nil {
				return err
			}
			if has {
				break
			}
			adr := env.Graph.DeleteNodes([]uuid.UUID{anc.Node.UUID}, false, anc.MadeEntry)[0]
			if adr.Err != nil {
				return adr.Err
			}
			if len(adr.Removed) > 0 {
				c.undone = append(c.undone, adr)
			}
		}
	}
	return nil
}

func (c *CreateNodes) Redo(env *Env) error {
	if err := restoreDeleted(env, c.undone); err != nil {
		return err
	}
	c.undone = nil
	return nil
}

// Undone returns the delete snapshots recorded by the last Undo: exactly
// the nodes that were removed, including ancestors that went with them.
func (c *CreateNodes) Undone() []graph.DeleteResult { return c.undone }

// DeleteNodes removes nodes and, with Cascade, their descendants. Each
// removed node's context document is deleted along with it; undo
// restores rows, filesystem entries, edges and context documents from
// the apply-time snapshots.
type DeleteNodes struct {
	IDs          []uuid.UUID
	Cascade      bool
	DeleteFromFS bool

	Results []graph.DeleteResult

	ctxDocs map[uuid.UUID][]byte
}

func (c *DeleteNodes) Kind() string { return "delete_nodes" }

func (c *DeleteNodes) Apply(env *Env) error {
	c.Results = env.Graph.DeleteNodes(c.IDs, c.Cascade, c.DeleteFromFS)
	c.ctxDocs = make(map[uuid.UUID][]byte)

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
		for _, rn := range r.Removed {
			id := rn.Node.UUID
			doc, err := env.Contexts.Raw(id)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return c.rollback(env, err)
			}
			if err := env.Contexts.Delete(id); err != nil {
				return c.rollback(env, err)
			}
			c.ctxDocs[id] = doc
		}
	}
	return batchOutcome(applied, firstErr)
}

// rollback puts back everything this apply removed so far and surfaces
// the error that interrupted it.
func (c *DeleteNodes) rollback(env *Env, cause error) error {
	_ = c.Undo(env)
	c.Results = nil
	c.ctxDocs = nil
	return cause
}

func (c *DeleteNodes) Undo(env *Env) error {
	if err := restoreDeleted(env, c.Results); err != nil {
		return err
	}
	for id, doc := range c.ctxDocs {
		if err := env.Contexts.SaveRaw(id, doc); err != nil {
			return err
		}
	}
	return nil
}

func (c *DeleteNodes) Redo(env *Env) error { return c.Apply(env) }

// RenameNode renames one node; undo renames it back.
type RenameNode struct {
	ID      uuid.UUID
	NewName string

	Result *graph.RenameResult
}

func (c *RenameNode) Kind() string { return "rename_node" }

func (c *RenameNode) Apply(env *Env) error {
	res, err := env.Graph.RenameNode(c.ID, c.NewName)
	if err != nil {
		return err
	}
	c.Result = res
	return nil
}

func (c *RenameNode) Undo(env *Env) error {
	_, err := env.Graph.RenameNode(c.ID, c.Result.OldName)
	return err
}

func (c *RenameNode) Redo(env *Env) error {
	_, err := env.Graph.RenameNode(c.ID, c.NewName)
	return err
}

// MoveNodes re-parents a batch of nodes; undo moves each one back under
// its original parent, in reverse order.
type MoveNodes struct {
	Ops []graph.MoveOp

	Results []graph.MoveResult
}

func (c *MoveNodes) Kind() string { return "move_nodes" }

func (c *MoveNodes) Apply(env *Env) error {
	c.Results = env.Graph.MoveNodes(c.Ops)

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

func (c *MoveNodes) Undo(env *Env) error {
	for i := len(c.Results) - 1; i >= 0; i-- {
		r := c.Results[i]
		if r.Err != nil || !r.Moved {
			continue
		}
		back := env.Graph.MoveNodes([]graph.MoveOp{{ID: r.Op.ID, NewParent: r.OldParent}})
		if back[0].Err != nil {
			return back[0].Err
		}
	}
	return nil
}

func (c *MoveNodes) Redo(env *Env) error { return c.Apply(env) }

// UpsertAttributes merges attribute values into one node; undo restores
// the node exactly as it was before.
type UpsertAttributes struct {
	ID    uuid.UUID
	Attrs []models.Attribute

	Result *graph.AttrsResult
}

func (c *UpsertAttributes) Kind() string { return "upsert_attributes" }

func (c *UpsertAttributes) Apply(env *Env) error {
	res, err := env.Graph.UpsertAttributes(c.ID, c.Attrs)
	if err != nil {
		return err
	}
	c.Result = res
	return nil
}

func (c *UpsertAttributes) Undo(env *Env) error {
	return env.Graph.RestoreNode(c.Result.Before)
}

func (c *UpsertAttributes) Redo(env *Env) error { return c.Apply(env) }

// DeleteAttributes removes named attributes from one node; undo restores
// the node exactly as it was before.
type DeleteAttributes struct {
	ID    uuid.UUID
	Names []string

	Result *graph.AttrsResult
}

func (c *DeleteAttributes) Kind() string { return "delete_attributes" }

func (c *DeleteAttributes) Apply(env *Env) error {
	res, err := env.Graph.DeleteAttributes(c.ID, c.Names)
	if err != nil {
		return err
	}
	c.Result = res
	return nil
}

func (c *DeleteAttributes) Undo(env *Env) error {
	return env.Graph.RestoreNode(c.Result.Before)
}

func (c *DeleteAttributes) Redo(env *Env) error { return c.Apply(env) }
