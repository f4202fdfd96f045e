// Package commands makes graph mutations reversible. Each mutation is a
// command value that captures, at apply time, whatever inverse state is
// needed to undo itself: deleted nodes arrive as full snapshots, created
// ancestors are recorded, attribute edits keep the prior node. A Manager
// holds the undo and redo stacks; the service facade routes every
// mutation through one.
package commands

import (
	"sort"

	"github.com/karta-graph/karta/internal/contexts"
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/models"
)

// Env bundles the state commands operate on. Commands receive it per
// call and hold no reference to it, so command structs stay plain data.
type Env struct {
	Graph    *graph.DataGraph
	Contexts *contexts.Store
}

// Command is one reversible mutation.
//
// Apply returns an error only when nothing changed; batch commands apply
// what they can and record per-item outcomes in their result fields.
// Undo reverses exactly what Apply recorded. Redo reinstates an undone
// command, reusing the UUIDs captured at apply time so later history
// entries keep pointing at live nodes.
type Command interface {
	Kind() string
	Apply(env *Env) error
	Undo(env *Env) error
	Redo(env *Env) error
}

// batchOutcome folds per-item errors into an Apply return value: nil as
// long as any item went through, the first error when none did.
func batchOutcome(applied bool, firstErr error) error {
	if !applied && firstErr != nil {
		return firstErr
	}
	return nil
}

// restoreDeleted reverses delete snapshots. Node rows come back first,
// in path order so parents precede children, together with their
// filesystem entries; edges follow once every endpoint row exists again.
func restoreDeleted(env *Env, results []graph.DeleteResult) error {
	var nodes []graph.RemovedNode
	var edges []models.Edge
	for _, r := range results {
		nodes = append(nodes, r.Removed...)
		edges = append(edges, r.Edges...)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Node.Path < nodes[j].Node.Path })

	for i := range nodes {
		rn := &nodes[i]
		if err := env.Graph.RestoreNode(rn.Node); err != nil {
			return err
		}
		if !rn.HadEntry {
			continue
		}
		if rn.WasDir {
			if err := env.Graph.Vault().Mkdir(rn.Node.Path); err != nil {
				return err
			}
		} else if err := env.Graph.Vault().Write(rn.Node.Path, rn.FileBytes); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if err := env.Graph.RestoreEdge(e); err != nil {
			return err
		}
	}
	return nil
}
