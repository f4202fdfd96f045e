// Package service is the single entry point for everything that reads or
// mutates the vault. It binds the data graph, the context store, the
// settings store and the command history behind one read-write lock:
// mutations and lazily-indexing reads take the write side, pure lookups
// take the read side. Change events are published before the lock is
// released, so subscribers observe mutations in commit order.
package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/checksum"
	"github.com/karta-graph/karta/internal/commands"
	"github.com/karta-graph/karta/internal/contexts"
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/settings"
)

// Service coordinates graph, context and settings operations.
type Service struct {
	mu       sync.RWMutex
	graph    *graph.DataGraph
	contexts *contexts.Store
	settings *settings.Store
	manager  *commands.Manager
	pub      Publisher
}

// New creates a service over an opened graph and its stores. pub may be
// nil, in which case events are dropped.
func New(g *graph.DataGraph, ctxs *contexts.Store, set *settings.Store, pub Publisher) *Service {
	env := &commands.Env{Graph: g, Contexts: ctxs}
	return &Service{
		graph:    g,
		contexts: ctxs,
		settings: set,
		manager:  commands.NewManager(env),
		pub:      pub,
	}
}

// resolveHandle splits a node handle into its two accepted forms: a UUID
// string, or a vault-relative path.
func resolveHandle(handle string) (uuid.UUID, models.NodePath, bool, error) {
	if id, err := uuid.Parse(handle); err == nil {
		return id, "", true, nil
	}
	p, err := models.ParsePath(handle)
	if err != nil {
		return uuid.Nil, "", false, err
	}
	return uuid.Nil, p, false, nil
}

// OpenNodeByID looks up a node by UUID. Never touches the filesystem.
func (s *Service) OpenNodeByID(_ context.Context, id uuid.UUID) (*models.DataNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.OpenNodeByUUID(id)
}

// OpenNode resolves a handle (UUID or path) to a node. Path handles may
// lazily index filesystem entries, so that branch takes the write lock.
func (s *Service) OpenNode(ctx context.Context, handle string) (*models.DataNode, error) {
	id, p, isID, err := resolveHandle(handle)
	if err != nil {
		return nil, err
	}
	if isID {
		return s.OpenNodeByID(ctx, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.OpenNodeByPath(p)
}

// OpenConnections resolves a handle and returns the node's one-hop
// neighborhood. Directory children are indexed on the way.
func (s *Service) OpenConnections(_ context.Context, handle string) (*graph.Connections, error) {
	id, p, isID, err := resolveHandle(handle)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n *models.DataNode
	if isID {
		n, err = s.graph.OpenNodeByUUID(id)
	} else {
		n, err = s.graph.OpenNodeByPath(p)
	}
	if err != nil {
		return nil, err
	}
	return s.graph.OpenNodeConnections(n)
}

// Search fuzzy-matches query against indexed nodes and unindexed
// filesystem paths. Read-only; never indexes.
func (s *Service) Search(_ context.Context, query string, limit int, minScore float64) ([]graph.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Search(query, limit, minScore)
}

// CreateNodeRequest describes one node to create under an existing parent.
// An empty NType creates a virtual node.
type CreateNodeRequest struct {
	Name       string             `json:"name"`
	NType      string             `json:"ntype"`
	ParentPath string             `json:"parent_path"`
	Attributes []models.Attribute `json:"attributes,omitempty"`
}

// CreateNodes creates a batch of nodes through the command history.
// Malformed requests (bad name, bad path, bad type, reserved attribute)
// reject the whole call before anything mutates; graph-level conflicts
// are reported per item in the result list.
func (s *Service) CreateNodes(_ context.Context, reqs []CreateNodeRequest) ([]graph.CreateResult, error) {
	if len(reqs) == 0 {
		return nil, apperr.Rejectedf("no nodes to create")
	}
	specs := make([]graph.NodeSpec, 0, len(reqs))
	for _, req := range reqs {
		parent, err := models.ParsePath(req.ParentPath)
		if err != nil {
			return nil, err
		}
		p, err := models.JoinPath(parent, req.Name)
		if err != nil {
			return nil, err
		}
		nt := models.NewNodeType(models.TypeVirtualGeneric)
		if req.NType != "" {
			nt, err = models.ParseNodeType(req.NType)
			if err != nil {
				return nil, err
			}
		}
		for _, a := range req.Attributes {
			if err := models.ValidateNodeAttrName(a.Name); err != nil {
				return nil, err
			}
		}
		specs = append(specs, graph.NodeSpec{Path: p, NType: nt, Attributes: req.Attributes})
	}

	cmd := &commands.CreateNodes{Specs: specs}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return cmd.Results, err
	}
	s.publishApplied(cmd)
	return cmd.Results, nil
}

// DeleteNodes deletes a batch of nodes through the command history.
// Context documents keyed by the removed UUIDs go with them; undo brings
// both back.
func (s *Service) DeleteNodes(_ context.Context, ids []uuid.UUID, cascade, deleteFromFS bool) ([]graph.DeleteResult, error) {
	if len(ids) == 0 {
		return nil, apperr.Rejectedf("no nodes to delete")
	}
	cmd := &commands.DeleteNodes{IDs: ids, Cascade: cascade, DeleteFromFS: deleteFromFS}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return cmd.Results, err
	}
	s.publishApplied(cmd)
	return cmd.Results, nil
}

// RenameNode changes a node's final path segment, propagating the path
// change to descendants and the filesystem entry when one exists.
func (s *Service) RenameNode(_ context.Context, id uuid.UUID, newName string) (*graph.RenameResult, error) {
	if err := models.ValidateName(newName); err != nil {
		return nil, err
	}
	cmd := &commands.RenameNode{ID: id, NewName: newName}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return nil, err
	}
	s.publishApplied(cmd)
	return cmd.Result, nil
}

// MoveNodes re-parents a batch of nodes through the command history.
func (s *Service) MoveNodes(_ context.Context, ops []graph.MoveOp) ([]graph.MoveResult, error) {
	if len(ops) == 0 {
		return nil, apperr.Rejectedf("no nodes to move")
	}
	cmd := &commands.MoveNodes{Ops: ops}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return cmd.Results, err
	}
	s.publishApplied(cmd)
	return cmd.Results, nil
}

// UpsertAttributes merges attribute values into a node and returns the
// updated node.
func (s *Service) UpsertAttributes(_ context.Context, id uuid.UUID, attrs []models.Attribute) (*models.DataNode, error) {
	if len(attrs) == 0 {
		return nil, apperr.Rejectedf("no attributes to set")
	}
	for _, a := range attrs {
		if err := models.ValidateNodeAttrName(a.Name); err != nil {
			return nil, err
		}
	}
	cmd := &commands.UpsertAttributes{ID: id, Attrs: attrs}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return nil, err
	}
	s.publishApplied(cmd)
	return cmd.Result.Node, nil
}

// DeleteAttributes removes named attributes from a node and returns the
// updated node. Absent names are ignored.
func (s *Service) DeleteAttributes(_ context.Context, id uuid.UUID, names []string) (*models.DataNode, error) {
	if len(names) == 0 {
		return nil, apperr.Rejectedf("no attributes to delete")
	}
	for _, name := range names {
		if err := models.ValidateNodeAttrName(name); err != nil {
			return nil, err
		}
	}
	cmd := &commands.DeleteAttributes{ID: id, Names: names}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return nil, err
	}
	s.publishApplied(cmd)
	return cmd.Result.Node, nil
}

// EdgeRequest describes one edge to create. An empty EType means a base
// edge; "contains" is never accepted from callers.
type EdgeRequest struct {
	Source     uuid.UUID          `json:"source"`
	Target     uuid.UUID          `json:"target"`
	EType      string             `json:"etype"`
	Attributes []models.Attribute `json:"attributes,omitempty"`
}

// CreateEdges creates a batch of user edges through the command history.
func (s *Service) CreateEdges(_ context.Context, reqs []EdgeRequest) ([]graph.EdgeResult, error) {
	if len(reqs) == 0 {
		return nil, apperr.Rejectedf("no edges to create")
	}
	specs := make([]graph.EdgeSpec, 0, len(reqs))
	for _, req := range reqs {
		et := models.EdgeBase
		if req.EType != "" {
			et = models.EdgeType(req.EType)
		}
		if et == models.EdgeContains {
			return nil, apperr.Rejectedf("contains edges are system-owned")
		}
		for _, a := range req.Attributes {
			if err := models.ValidateEdgeAttrName(a.Name); err != nil {
				return nil, err
			}
		}
		specs = append(specs, graph.EdgeSpec{
			Source:     req.Source,
			Target:     req.Target,
			EType:      et,
			Attributes: req.Attributes,
		})
	}

	cmd := &commands.CreateEdges{Specs: specs}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return cmd.Results, err
	}
	s.publishApplied(cmd)
	return cmd.Results, nil
}

// DeleteEdges removes a batch of user edges through the command history.
// Absent edges are silent no-ops.
func (s *Service) DeleteEdges(_ context.Context, pairs []models.EdgePair) ([]graph.EdgeDeleteResult, error) {
	if len(pairs) == 0 {
		return nil, apperr.Rejectedf("no edges to delete")
	}
	cmd := &commands.DeleteEdges{Pairs: pairs}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return cmd.Results, err
	}
	s.publishApplied(cmd)
	return cmd.Results, nil
}

// ReconnectEdge moves a user edge onto new endpoints through the command
// history.
func (s *Service) ReconnectEdge(_ context.Context, oldPair, newPair models.EdgePair) (*models.Edge, error) {
	cmd := &commands.ReconnectEdge{Old: oldPair, New: newPair}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.Execute(cmd); err != nil {
		return nil, err
	}
	s.publishApplied(cmd)
	return cmd.Edge, nil
}

// Undo reverses the most recent command and returns its kind. Events for
// the inverse mutation are published.
func (s *Service) Undo(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, err := s.manager.Undo()
	if err != nil {
		return "", err
	}
	s.publishUndone(cmd)
	return cmd.Kind(), nil
}

// Redo re-applies the most recently undone command and returns its kind.
func (s *Service) Redo(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, err := s.manager.Redo()
	if err != nil {
		return "", err
	}
	s.publishApplied(cmd)
	return cmd.Kind(), nil
}

// History reports the command kinds on the undo and redo stacks, most
// recent first.
func (s *Service) History(_ context.Context) (undo, redo []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manager.History()
}

// Settings returns the current settings.
func (s *Service) Settings(_ context.Context) settings.Settings {
	return s.settings.Get()
}

// UpdateSettings persists new settings and broadcasts the change.
func (s *Service) UpdateSettings(_ context.Context, v settings.Settings) (settings.Settings, error) {
	cur, err := s.settings.Set(v)
	if err != nil {
		return settings.Settings{}, err
	}
	s.publish(EventSettingsChanged, cur)
	return cur, nil
}

// NotifySettingsChanged broadcasts settings picked up outside the API,
// such as an external edit detected by the reload watcher.
func (s *Service) NotifySettingsChanged(v settings.Settings) {
	s.publish(EventSettingsChanged, v)
}

// SaveAsset writes an uploaded file into the vault under parentPath and
// indexes it, stamping the node with a sha256 content digest. Asset
// uploads bypass the command history: the write is not undoable.
func (s *Service) SaveAsset(_ context.Context, parentPath, name string, data []byte) (*models.DataNode, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}
	parent, err := models.ParsePath(parentPath)
	if err != nil {
		return nil, err
	}
	p, err := models.JoinPath(parent, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parentNode, err := s.graph.OpenNodeByPath(parent)
	if err != nil {
		return nil, err
	}
	if !parentNode.NType.IsDir() {
		return nil, apperr.Rejectedf("parent %s is not a directory", parent)
	}
	if existing, err := s.graph.LookupPath(p); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperr.AlreadyExistsf("node already at %s", p)
	}
	if s.graph.Vault().Exists(p) {
		return nil, apperr.AlreadyExistsf("file already at %s", p)
	}

	if err := s.graph.Vault().Write(p, data); err != nil {
		return nil, err
	}
	n, err := s.graph.OpenNodeByPath(p)
	if err != nil {
		return nil, err
	}
	// Uploads are the one place asset bytes pass through memory, so stamp
	// the content digest here. Lazily indexed files are never read and
	// carry no digest.
	res, err := s.graph.UpsertAttributes(n.UUID, []models.Attribute{checksum.Attribute(data)})
	if err != nil {
		return nil, err
	}
	s.publishNodeCreated(*res.Node)
	return res.Node, nil
}

// AssetPath resolves a vault-relative path to the absolute file path for
// serving raw bytes. Directories are not servable. Read-only; the entry
// is not indexed.
func (s *Service) AssetPath(_ context.Context, raw string) (string, models.NodePath, error) {
	p, err := models.ParsePath(raw)
	if err != nil {
		return "", "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, err := s.graph.Vault().Stat(p)
	if err != nil {
		return "", "", err
	}
	if entry.IsDir {
		return "", "", apperr.Rejectedf("%s is a directory, not an asset", p)
	}
	abs, err := s.graph.Vault().Abs(p)
	if err != nil {
		return "", "", err
	}
	return abs, p, nil
}

// SweepOrphanedContexts deletes context documents whose focal node is no
// longer in the graph and returns how many were removed. Run at startup:
// with a fresh undo history nothing can bring those focals back, so the
// documents are unreachable for good.
func (s *Service) SweepOrphanedContexts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep, err := s.graph.AllUUIDs()
	if err != nil {
		return 0, err
	}
	removed, err := s.contexts.Prune(keep)
	return len(removed), err
}
