package models

import "github.com/google/uuid"

// ViewNodeStatus records whether a view node was produced by graph indexing
// or edited by the user. Only modified entries must survive a context save.
type ViewNodeStatus string

const (
	ViewGenerated ViewNodeStatus = "generated"
	ViewModified  ViewNodeStatus = "modified"
)

// ViewNode is the per-context presentation record for one node: where it
// sits relative to the focal node and how it is drawn. It references a
// DataNode by UUID but owns none of the node's data.
//
// Path is only meaningful on inbound save payloads: when the UUID is not yet
// a DataNode, the path is what gets promoted (indexed) and the UUID is then
// rewritten to the assigned one.
type ViewNode struct {
	UUID          uuid.UUID      `json:"uuid"`
	Path          NodePath       `json:"path,omitempty"`
	Status        ViewNodeStatus `json:"status"`
	RelX          float32        `json:"rel_x"`
	RelY          float32        `json:"rel_y"`
	Width         float32        `json:"width"`
	Height        float32        `json:"height"`
	RelScale      float32        `json:"rel_scale"`
	Rotation      float32        `json:"rotation"`
	IsNameVisible bool           `json:"is_name_visible"`
	Attributes    []Attribute    `json:"attributes,omitempty"`
}

// DefaultViewNode builds a generated view entry with neutral placement.
func DefaultViewNode(id uuid.UUID) ViewNode {
	return ViewNode{
		UUID:          id,
		Status:        ViewGenerated,
		Width:         120,
		Height:        40,
		RelScale:      1,
		IsNameVisible: true,
	}
}

// ContextSettings is the viewport state saved with a context.
type ContextSettings struct {
	ZoomScale   float32 `json:"zoom_scale"`
	ViewRelPosX float32 `json:"view_rel_pos_x"`
	ViewRelPosY float32 `json:"view_rel_pos_y"`
}

// DefaultContextSettings is the viewport for a never-saved context.
func DefaultContextSettings() ContextSettings {
	return ContextSettings{ZoomScale: 1}
}

// Context is the persisted view document for one focal node. The focal
// itself is not listed in Nodes; its placement is implicit at the origin.
type Context struct {
	KartaVersion string          `json:"karta_version"`
	Focal        uuid.UUID       `json:"focal"`
	Nodes        []ViewNode      `json:"nodes"`
	Settings     ContextSettings `json:"settings"`
}

// NewContext builds an empty context for a focal node.
func NewContext(focal uuid.UUID) *Context {
	return &Context{
		KartaVersion: KartaVersion,
		Focal:        focal,
		Settings:     DefaultContextSettings(),
	}
}

// ViewNodeFor returns the entry for id, if present.
func (c *Context) ViewNodeFor(id uuid.UUID) (ViewNode, bool) {
	for _, vn := range c.Nodes {
		if vn.UUID == id {
			return vn, true
		}
	}
	return ViewNode{}, false
}
