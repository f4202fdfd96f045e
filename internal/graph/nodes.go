package graph

import (
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

// InsertNodes inserts a batch of nodes, one result per spec. Items fail
// independently; the batch never aborts early.
func (g *DataGraph) InsertNodes(specs []NodeSpec) []CreateResult {
	out := make([]CreateResult, 0, len(specs))
	for _, s := range specs {
		out = append(out, g.insertNode(s))
	}
	return out
}

// InsertNode inserts a single node.
func (g *DataGraph) InsertNode(spec NodeSpec) CreateResult {
	return g.insertNode(spec)
}

func (g *DataGraph) insertNode(spec NodeSpec) CreateResult {
	res := CreateResult{Spec: spec}
	p := spec.Path
	if p.IsRoot() {
		res.Err = apperr.Rejectedf("cannot create the vault root")
		return res
	}
	if err := models.ValidateName(p.Name()); err != nil {
		res.Err = err
		return res
	}
	for _, a := range spec.Attributes {
		if err := models.ValidateNodeAttrName(a.Name); err != nil {
			res.Err = err
			return res
		}
	}

	existing, err := g.store.NodeByPath(p)
	if err != nil {
		res.Err = err
		return res
	}
	if existing != nil {
		if existing.NType.TypePath == spec.NType.TypePath {
			// Creating what already exists succeeds silently.
			res.Node = existing
			return res
		}
		res.Err = apperr.AlreadyExistsf("node already at %s with type %s", p, existing.NType.TypePath)
		return res
	}

	ntype := spec.NType
	physical := ntype.IsFilesystem()
	entry, statErr := g.vault.Stat(p)
	entryExists := statErr == nil
	if physical && entryExists {
		// An entry is already on disk. Adopt it when the kinds agree,
		// normalizing the type to what indexing would have assigned.
		if entry.IsDir != ntype.IsDir() {
			res.Err = apperr.AlreadyExistsf("a different kind of entry is already at %s", p)
			return res
		}
		ntype = models.TypeForEntry(p, entry.IsDir)
	}

	rollback := func(ancestors []CreatedAncestor) {
		for i := len(ancestors) - 1; i >= 0; i-- {
			_ = g.store.DeleteNode(ancestors[i].Node.UUID)
			if ancestors[i].MadeEntry {
				_ = g.vault.Remove(ancestors[i].Node.Path)
			}
		}
	}

	ancestors, err := g.ensureAncestors(p, physical)
	if err != nil {
		rollback(ancestors)
		res.Err = err
		return res
	}
	res.Ancestors = ancestors

	ts := now()
	if physical && entryExists {
		// The adopted entry keeps its own mtime.
		ts = entry.ModTime
	}
	if physical && !entryExists {
		if ntype.IsDir() {
			err = g.vault.Mkdir(p)
		} else {
			err = g.vault.Write(p, nil)
		}
		if err != nil {
			rollback(ancestors)
			res.Ancestors = nil
			res.Err = err
			return res
		}
		res.MadeEntry = true
	}

	undoAll := func() {
		if res.MadeEntry {
			_ = g.vault.Remove(p)
			res.MadeEntry = false
		}
		rollback(ancestors)
		res.Ancestors = nil
	}

	parent := g.root
	if pp, ok := p.Parent(); ok && !pp.IsRoot() {
		pn, err := g.store.NodeByPath(pp)
		if err != nil || pn == nil {
			undoAll()
			if err == nil {
				err = apperr.Invariantf("parent %s vanished during insert", pp)
			}
			res.Err = err
			return res
		}
		parent = *pn
	}

	n := models.DataNode{
		UUID:         uuid.New(),
		Path:         p,
		NType:        ntype,
		CreatedTime:  ts,
		ModifiedTime: ts,
		Attributes:   models.CloneAttrs(spec.Attributes),
	}
	if err := g.store.PutNode(n); err != nil {
		undoAll()
		res.Err = err
		return res
	}
	if err := g.store.PutEdge(models.NewEdge(parent.UUID, n.UUID, models.EdgeContains)); err != nil {
		_ = g.store.DeleteNode(n.UUID)
		undoAll()
		res.Err = err
		return res
	}
	res.Node = &n
	res.Created = true
	return res
}

// ensureAncestors creates directory nodes for every missing ancestor of p,
// shallowest first, each hung off its parent with a contains edge. For
// physical inserts the directories are created on disk as well.
func (g *DataGraph) ensureAncestors(p models.NodePath, physical bool) ([]CreatedAncestor, error) {
	var missing []models.NodePath
	for _, ap := range p.Ancestors() {
		if ap.IsRoot() {
			break
		}
		n, err := g.store.NodeByPath(ap)
		if err != nil {
			return nil, err
		}
		if n != nil {
			// The chain is gap-free above any indexed node.
			break
		}
		missing = append(missing, ap)
	}

	var created []CreatedAncestor
	for i := len(missing) - 1; i >= 0; i-- {
		ap := missing[i]
		ca := CreatedAncestor{}
		ts := now()
		if e, err := g.vault.Stat(ap); err == nil {
			if !e.IsDir {
				return created, apperr.Rejectedf("ancestor %s is a file", ap)
			}
			ts = e.ModTime
		} else if physical {
			if err := g.vault.Mkdir(ap); err != nil {
				return created, err
			}
			ca.MadeEntry = true
		}

		parent := g.root
		if pp, ok := ap.Parent(); ok && !pp.IsRoot() {
			pn, err := g.store.NodeByPath(pp)
			if err != nil {
				return created, err
			}
			if pn == nil {
				return created, apperr.Invariantf("ancestor chain broken at %s", pp)
			}
			parent = *pn
		}

		n := models.DataNode{
			UUID:         uuid.New(),
			Path:         ap,
			NType:        models.NewNodeType(models.TypeDir),
			CreatedTime:  ts,
			ModifiedTime: ts,
		}
		if err := g.store.PutNode(n); err != nil {
			return created, err
		}
		if err := g.store.PutEdge(models.NewEdge(parent.UUID, n.UUID, models.EdgeContains)); err != nil {
			return created, err
		}
		ca.Node = n
		created = append(created, ca)
	}
	return created, nil
}

// DeleteNodes deletes a batch of nodes, one result per id. Each result
// snapshots everything that vanished so the caller can reverse it.
func (g *DataGraph) DeleteNodes(ids []uuid.UUID, cascade, deleteFromFS bool) []DeleteResult {
	out := make([]DeleteResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.deleteNode(id, cascade, deleteFromFS))
	}
	return out
}

func (g *DataGraph) deleteNode(id uuid.UUID, cascade, deleteFromFS bool) DeleteResult {
	res := DeleteResult{ID: id}
	n, err := g.store.NodeByUUID(id)
	if err != nil {
		res.Err = err
		return res
	}
	if n == nil {
		// Deleting what is already gone succeeds silently.
		return res
	}
	if n.IsRoot() {
		res.Err = apperr.Rejectedf("the vault root cannot be deleted")
		return res
	}

	descendants, err := g.store.NodesUnder(n.Path)
	if err != nil {
		res.Err = err
		return res
	}
	if !cascade && len(descendants) > 0 {
		res.Err = apperr.Invariantf("%s has %d descendants; delete requires cascade", n.Path, len(descendants))
		return res
	}

	// Parents come before children in path order, which is the order
	// restoration needs.
	targets := append([]models.DataNode{*n}, descendants...)

	edgeSet := make(map[models.EdgePair]models.Edge)
	for _, t := range targets {
		touching, err := g.store.EdgesTouching(t.UUID)
		if err != nil {
			res.Err = err
			return res
		}
		for _, e := range touching {
			edgeSet[models.EdgePair{Source: e.Source, Target: e.Target}] = e
		}
	}
	for _, e := range edgeSet {
		res.Edges = append(res.Edges, e)
	}

	removeEntry := deleteFromFS && g.isPhysical(n)
	for _, t := range targets {
		rm := RemovedNode{Node: t}
		if removeEntry && t.NType.IsFilesystem() {
			if e, err := g.vault.Stat(t.Path); err == nil {
				rm.HadEntry = true
				rm.WasDir = e.IsDir
				if !e.IsDir {
					data, err := g.vault.Read(t.Path)
					if err != nil {
						res.Err = err
						return res
					}
					rm.FileBytes = data
				}
			}
		}
		res.Removed = append(res.Removed, rm)
	}

	for _, t := range targets {
		if err := g.store.DeleteNode(t.UUID); err != nil {
			res.Err = err
			return res
		}
	}
	if removeEntry {
		if err := g.vault.RemoveAll(n.Path); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

// RenameNode changes the final path segment of a node, renames the
// filesystem entry for physical nodes, and rewrites every descendant path.
// UUIDs never change.
func (g *DataGraph) RenameNode(id uuid.UUID, newName string) (*RenameResult, error) {
	n, err := g.OpenNodeByUUID(id)
	if err != nil {
		return nil, err
	}
	if n.IsRoot() {
		return nil, apperr.Rejectedf("the vault root cannot be renamed")
	}
	if err := models.ValidateName(newName); err != nil {
		return nil, err
	}

	oldPath := n.Path
	parentPath, _ := oldPath.Parent()
	newPath, err := models.JoinPath(parentPath, newName)
	if err != nil {
		return nil, err
	}
	res := &RenameResult{ID: id, OldName: oldPath.Name(), NewName: newName, OldPath: oldPath, NewPath: newPath}
	if newPath == oldPath {
		res.Node = n
		return res, nil
	}
	if err := g.checkTargetFree(newPath); err != nil {
		return nil, err
	}

	physical := g.isPhysical(n)
	if err := g.store.RebasePaths(oldPath, newPath); err != nil {
		return nil, err
	}
	if err := g.store.TouchNode(id, now()); err != nil {
		return nil, err
	}
	if physical {
		if err := g.vault.Move(oldPath, newPath); err != nil {
			_ = g.store.RebasePaths(newPath, oldPath)
			_ = g.store.TouchNode(id, n.ModifiedTime)
			return nil, err
		}
	}

	updated, err := g.OpenNodeByUUID(id)
	if err != nil {
		return nil, err
	}
	res.Node = updated
	return res, nil
}

// MoveNodes re-parents a batch of nodes, one result per operation.
func (g *DataGraph) MoveNodes(ops []MoveOp) []MoveResult {
	out := make([]MoveResult, 0, len(ops))
	for _, op := range ops {
		out = append(out, g.moveNode(op))
	}
	return out
}

func (g *DataGraph) moveNode(op MoveOp) MoveResult {
	res := MoveResult{Op: op}
	n, err := g.store.NodeByUUID(op.ID)
	if err != nil {
		res.Err = err
		return res
	}
	if n == nil {
		res.Err = apperr.NotFoundf("no node with uuid %s", op.ID)
		return res
	}
	if n.IsRoot() {
		res.Err = apperr.Rejectedf("the vault root cannot be moved")
		return res
	}
	parent, err := g.store.NodeByUUID(op.NewParent)
	if err != nil {
		res.Err = err
		return res
	}
	if parent == nil {
		res.Err = apperr.NotFoundf("no parent with uuid %s", op.NewParent)
		return res
	}
	if parent.NType.IsFilesystem() && !parent.NType.IsDir() {
		res.Err = apperr.Rejectedf("move target %s is a file", parent.Path)
		return res
	}
	if parent.UUID == n.UUID {
		res.Err = apperr.Rejectedf("cannot move a node into itself")
		return res
	}
	if parent.Path.IsDescendantOf(n.Path) {
		res.Err = apperr.Rejectedf("cannot move %s into its own descendant %s", n.Path, parent.Path)
		return res
	}

	physical := g.isPhysical(n)
	if physical && !(parent.NType.IsDir() && g.vault.Exists(parent.Path)) {
		res.Err = apperr.Rejectedf("physical node %s needs an on-disk directory parent", n.Path)
		return res
	}

	newPath, err := models.JoinPath(parent.Path, n.Name())
	if err != nil {
		res.Err = err
		return res
	}
	res.OldPath = n.Path
	res.NewPath = newPath

	oldEdge, err := g.store.ParentOf(n.UUID)
	if err != nil {
		res.Err = err
		return res
	}
	if oldEdge == nil {
		res.Err = apperr.Invariantf("%s has no parent edge", n.Path)
		return res
	}
	res.OldParent = oldEdge.Source

	if newPath == n.Path {
		return res
	}
	if err := g.checkTargetFree(newPath); err != nil {
		res.Err = err
		return res
	}

	if err := g.store.RebasePaths(n.Path, newPath); err != nil {
		res.Err = err
		return res
	}
	if err := g.store.ReconnectEdge(oldEdge.Source, n.UUID, parent.UUID, n.UUID, now()); err != nil {
		_ = g.store.RebasePaths(newPath, n.Path)
		res.Err = err
		return res
	}
	if err := g.store.TouchNode(n.UUID, now()); err != nil {
		res.Err = err
		return res
	}
	if physical {
		if err := g.vault.Move(n.Path, newPath); err != nil {
			_ = g.store.ReconnectEdge(parent.UUID, n.UUID, oldEdge.Source, n.UUID, oldEdge.ModifiedTime)
			_ = g.store.RebasePaths(newPath, n.Path)
			_ = g.store.TouchNode(n.UUID, n.ModifiedTime)
			res.Err = err
			return res
		}
	}
	res.Moved = true
	return res
}

// checkTargetFree rejects a destination path that is taken, either by an
// indexed node or by an unindexed filesystem entry.
func (g *DataGraph) checkTargetFree(p models.NodePath) error {
	if n, err := g.store.NodeByPath(p); err != nil {
		return err
	} else if n != nil {
		return apperr.AlreadyExistsf("a node is already at %s", p)
	}
	if g.vault.Exists(p) {
		return apperr.AlreadyExistsf("a filesystem entry is already at %s", p)
	}
	return nil
}

// UpsertAttributes sets the named attributes on a node, replacing values
// for names that already exist.
func (g *DataGraph) UpsertAttributes(id uuid.UUID, attrs []models.Attribute) (*AttrsResult, error) {
	n, err := g.OpenNodeByUUID(id)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if err := models.ValidateNodeAttrName(a.Name); err != nil {
			return nil, err
		}
	}
	before := n.Clone()

	for _, a := range attrs {
		replaced := false
		for i := range n.Attributes {
			if n.Attributes[i].Name == a.Name {
				n.Attributes[i].Value = a.Value
				replaced = true
				break
			}
		}
		if !replaced {
			n.Attributes = append(n.Attributes, a)
		}
	}
	n.ModifiedTime = now()
	if err := g.store.PutNode(*n); err != nil {
		return nil, err
	}
	return &AttrsResult{ID: id, Before: before, Node: n}, nil
}

// DeleteAttributes removes the named attributes from a node. Names not
// present are ignored.
func (g *DataGraph) DeleteAttributes(id uuid.UUID, names []string) (*AttrsResult, error) {
	n, err := g.OpenNodeByUUID(id)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := models.ValidateNodeAttrName(name); err != nil {
			return nil, err
		}
	}
	before := n.Clone()

	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	kept := n.Attributes[:0]
	for _, a := range n.Attributes {
		if _, ok := drop[a.Name]; !ok {
			kept = append(kept, a)
		}
	}
	n.Attributes = kept
	n.ModifiedTime = now()
	if err := g.store.PutNode(*n); err != nil {
		return nil, err
	}
	return &AttrsResult{ID: id, Before: before, Node: n}, nil
}

// RestoreNode reinserts a node exactly as snapshotted, timestamps and
// attributes included. Only undo paths call this.
func (g *DataGraph) RestoreNode(n models.DataNode) error {
	return g.store.PutNode(n)
}

// RestoreEdge reinserts an edge exactly as snapshotted. Unlike the public
// edge operations this accepts contains edges; only undo paths call this.
func (g *DataGraph) RestoreEdge(e models.Edge) error {
	return g.store.PutEdge(e)
}

// HasDescendants reports whether any node lives strictly under p.
func (g *DataGraph) HasDescendants(p models.NodePath) (bool, error) {
	under, err := g.store.NodesUnder(p)
	if err != nil {
		return false, err
	}
	return len(under) > 0, nil
}
