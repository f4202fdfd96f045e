package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

// ContextView is an opened context: the focal node, the data nodes that
// appear in the view, the edges among them, and the view document with
// per-node placement. The focal's placement is implicit at the origin and
// never listed in View.Nodes.
type ContextView struct {
	Focal models.DataNode   `json:"focal"`
	Nodes []models.DataNode `json:"nodes"`
	Edges []models.Edge     `json:"edges"`
	View  models.Context    `json:"view"`
}

// OpenContext resolves a handle to a focal node and assembles its context:
// the graph's one-hop neighborhood merged with the saved view document.
// Saved placements win for nodes still connected; new neighbors get
// generated defaults; saved entries whose node no longer exists are
// dropped. Never-saved contexts come back with defaults throughout.
func (s *Service) OpenContext(_ context.Context, handle string) (*ContextView, error) {
	id, p, isID, err := resolveHandle(handle)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var focal *models.DataNode
	if isID {
		focal, err = s.graph.OpenNodeByUUID(id)
	} else {
		focal, err = s.graph.OpenNodeByPath(p)
	}
	if err != nil {
		return nil, err
	}

	conns, err := s.graph.OpenNodeConnections(focal)
	if err != nil {
		return nil, err
	}

	saved, err := s.contexts.Get(focal.UUID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		saved = models.NewContext(focal.UUID)
	}

	view := models.Context{
		KartaVersion: models.KartaVersion,
		Focal:        focal.UUID,
		Settings:     saved.Settings,
	}

	nodes := make([]models.DataNode, 0, len(conns.Neighbors))
	seen := make(map[uuid.UUID]struct{}, len(conns.Neighbors)+1)
	seen[focal.UUID] = struct{}{}
	for _, nb := range conns.Neighbors {
		vn, ok := saved.ViewNodeFor(nb.UUID)
		if !ok {
			vn = models.DefaultViewNode(nb.UUID)
		}
		vn.Path = ""
		view.Nodes = append(view.Nodes, vn)
		nodes = append(nodes, nb)
		seen[nb.UUID] = struct{}{}
	}

	// Saved entries beyond the current neighborhood stay in the view as
	// long as their node still exists; the rest are orphans and vanish.
	type extra struct {
		vn   models.ViewNode
		node models.DataNode
	}
	extras := make([]extra, 0)
	for _, vn := range saved.Nodes {
		if _, ok := seen[vn.UUID]; ok {
			continue
		}
		n, err := s.graph.OpenNodeByUUID(vn.UUID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return nil, err
		}
		vn.Path = ""
		extras = append(extras, extra{vn: vn, node: *n})
		seen[vn.UUID] = struct{}{}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i].node.Path < extras[j].node.Path })
	for _, e := range extras {
		view.Nodes = append(view.Nodes, e.vn)
		nodes = append(nodes, e.node)
	}

	view.Nodes = nonNilSlice(view.Nodes)

	if s.settings != nil && s.settings.Get().SaveLastViewedContext {
		cur := s.settings.Get()
		focalID := focal.UUID
		cur.LastViewedContextID = &focalID
		if _, err := s.settings.Set(cur); err != nil {
			return nil, err
		}
	}

	return &ContextView{
		Focal: *focal,
		Nodes: nodes,
		Edges: nonNilSlice(conns.Edges),
		View:  view,
	}, nil
}

// SaveContext persists the view document for the focal node id. Entries
// with generated status are dropped. Entries whose UUID is not a data
// node are promoted through their path: the path is indexed and the
// entry's UUID rewritten to the indexed node's. A save whose entries
// cannot all resolve is rejected whole.
func (s *Service) SaveContext(_ context.Context, id uuid.UUID, doc models.Context) (*models.Context, error) {
	if doc.Focal != uuid.Nil && doc.Focal != id {
		return nil, apperr.Rejectedf("document focal %s does not match context %s", doc.Focal, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.graph.OpenNodeByUUID(id); err != nil {
		return nil, err
	}

	out := models.Context{
		KartaVersion: models.KartaVersion,
		Focal:        id,
		Settings:     doc.Settings,
	}
	seen := map[uuid.UUID]struct{}{id: {}}
	for _, vn := range doc.Nodes {
		if vn.Status == models.ViewGenerated {
			continue
		}
		if _, err := s.graph.OpenNodeByUUID(vn.UUID); err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return nil, err
			}
			if vn.Path == "" {
				return nil, apperr.Rejectedf("view node %s resolves to no node and carries no path", vn.UUID)
			}
			p, perr := models.ParsePath(string(vn.Path))
			if perr != nil {
				return nil, perr
			}
			n, perr := s.graph.OpenNodeByPath(p)
			if perr != nil {
				return nil, perr
			}
			vn.UUID = n.UUID
		}
		if _, dup := seen[vn.UUID]; dup {
			continue
		}
		seen[vn.UUID] = struct{}{}
		vn.Path = ""
		out.Nodes = append(out.Nodes, vn)
	}
	out.Nodes = nonNilSlice(out.Nodes)

	if err := s.contexts.Save(out); err != nil {
		return nil, err
	}
	s.publish(EventContextSaved, map[string]any{"focal": id})
	return &out, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
