package service

import (
	"github.com/karta-graph/karta/internal/commands"
	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/sse"
)

// Event types published on the broadcast channel.
const (
	EventNodeCreated     = "node.created"
	EventNodeDeleted     = "node.deleted"
	EventNodeRenamed     = "node.renamed"
	EventNodeMoved       = "node.moved"
	EventAttrsChanged    = "attributes.changed"
	EventEdgeCreated     = "edge.created"
	EventEdgeDeleted     = "edge.deleted"
	EventEdgeReconnected = "edge.reconnected"
	EventContextSaved    = "context.saved"
	EventSettingsChanged = "settings.changed"
)

// Publisher fans change events out to stream subscribers. *sse.Broker
// satisfies it; tests plug in a recorder.
type Publisher interface {
	Publish(event sse.Event)
}

func (s *Service) publish(eventType string, data any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(sse.Event{Type: eventType, Data: data})
}

func (s *Service) publishNodeCreated(n models.DataNode) {
	s.publish(EventNodeCreated, map[string]any{
		"uuid":  n.UUID,
		"path":  n.Path,
		"ntype": n.NType.String(),
	})
}

func (s *Service) publishNodeDeleted(n models.DataNode) {
	s.publish(EventNodeDeleted, map[string]any{"uuid": n.UUID, "path": n.Path})
}

// publishApplied emits the events for a command that just applied (or
// re-applied via redo). Items that errored inside a batch emit nothing.
func (s *Service) publishApplied(cmd commands.Command) {
	switch c := cmd.(type) {
	case *commands.CreateNodes:
		for _, r := range c.Results {
			if r.Err != nil || !r.Created {
				continue
			}
			for _, anc := range r.Ancestors {
				s.publishNodeCreated(anc.Node)
			}
			s.publishNodeCreated(*r.Node)
		}
	case *commands.DeleteNodes:
		for _, r := range c.Results {
			if r.Err != nil {
				continue
			}
			for _, rn := range r.Removed {
				s.publishNodeDeleted(rn.Node)
			}
		}
	case *commands.RenameNode:
		r := c.Result
		s.publish(EventNodeRenamed, map[string]any{
			"uuid":     r.ID,
			"old_path": r.OldPath,
			"new_path": r.NewPath,
			"new_name": r.NewName,
		})
	case *commands.MoveNodes:
		for _, r := range c.Results {
			if r.Err != nil || !r.Moved {
				continue
			}
			s.publish(EventNodeMoved, map[string]any{
				"uuid":     r.Op.ID,
				"old_path": r.OldPath,
				"new_path": r.NewPath,
			})
		}
	case *commands.UpsertAttributes:
		s.publish(EventAttrsChanged, map[string]any{"uuid": c.ID})
	case *commands.DeleteAttributes:
		s.publish(EventAttrsChanged, map[string]any{"uuid": c.ID})
	case *commands.CreateEdges:
		for _, r := range c.Results {
			if r.Err != nil || !r.Created {
				continue
			}
			s.publish(EventEdgeCreated, map[string]any{
				"source": r.Edge.Source,
				"target": r.Edge.Target,
				"etype":  r.Edge.EType,
			})
		}
	case *commands.DeleteEdges:
		for _, r := range c.Results {
			if r.Err != nil || r.Removed == nil {
				continue
			}
			s.publish(EventEdgeDeleted, map[string]any{
				"source": r.Pair.Source,
				"target": r.Pair.Target,
			})
		}
	case *commands.ReconnectEdge:
		s.publish(EventEdgeReconnected, map[string]any{"old": c.Old, "new": c.New})
	case *commands.Composite:
		for _, p := range c.Parts {
			s.publishApplied(p)
		}
	}
}

// publishUndone emits the inverse events after a command was undone: an
// undone delete announces the nodes as created again, and so on.
func (s *Service) publishUndone(cmd commands.Command) {
	switch c := cmd.(type) {
	case *commands.CreateNodes:
		for _, dr := range c.Undone() {
			for _, rn := range dr.Removed {
				s.publishNodeDeleted(rn.Node)
			}
		}
	case *commands.DeleteNodes:
		for _, r := range c.Results {
			if r.Err != nil {
				continue
			}
			for _, rn := range r.Removed {
				s.publishNodeCreated(rn.Node)
			}
		}
	case *commands.RenameNode:
		r := c.Result
		s.publish(EventNodeRenamed, map[string]any{
			"uuid":     r.ID,
			"old_path": r.NewPath,
			"new_path": r.OldPath,
			"new_name": r.OldName,
		})
	case *commands.MoveNodes:
		for _, r := range c.Results {
			if r.Err != nil || !r.Moved {
				continue
			}
			s.publish(EventNodeMoved, map[string]any{
				"uuid":     r.Op.ID,
				"old_path": r.NewPath,
				"new_path": r.OldPath,
			})
		}
	case *commands.UpsertAttributes:
		s.publish(EventAttrsChanged, map[string]any{"uuid": c.ID})
	case *commands.DeleteAttributes:
		s.publish(EventAttrsChanged, map[string]any{"uuid": c.ID})
	case *commands.CreateEdges:
		for _, r := range c.Results {
			if r.Err != nil || !r.Created {
				continue
			}
			s.publish(EventEdgeDeleted, map[string]any{
				"source": r.Edge.Source,
				"target": r.Edge.Target,
			})
		}
	case *commands.DeleteEdges:
		for _, r := range c.Results {
			if r.Err != nil || r.Removed == nil {
				continue
			}
			s.publish(EventEdgeCreated, map[string]any{
				"source": r.Removed.Source,
				"target": r.Removed.Target,
				"etype":  r.Removed.EType,
			})
		}
	case *commands.ReconnectEdge:
		s.publish(EventEdgeReconnected, map[string]any{"old": c.New, "new": c.Old})
	case *commands.Composite:
		for i := len(c.Parts) - 1; i >= 0; i-- {
			s.publishUndone(c.Parts[i])
		}
	}
}
