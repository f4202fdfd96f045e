package models

import (
	"path/filepath"
	"strings"

	"github.com/karta-graph/karta/internal/apperr"
)

// TypeVersion is the version tag stamped on every built-in node type.
const TypeVersion = "0.1.0"

// Built-in type paths.
const (
	TypeRoot           = "core/root"
	TypeDir            = "core/fs/dir"
	TypeFile           = "core/fs/file"
	TypeImage          = "core/image"
	TypeVirtualGeneric = "core/virtual_generic"

	// ArchetypeNamespace prefixes the types of the built-in virtual nodes
	// created at vault initialization (e.g. core/archetype/vault).
	ArchetypeNamespace = "core/archetype"
)

// NodeType identifies what kind of thing a node is, rendered as
// "<type_path>@<version>", e.g. "core/fs/dir@0.1.0".
type NodeType struct {
	TypePath string `json:"type_path"`
	Version  string `json:"version"`
}

func NewNodeType(typePath string) NodeType {
	return NodeType{TypePath: typePath, Version: TypeVersion}
}

// ParseNodeType parses "core/fs/file@0.1.0". A missing version defaults to
// the current TypeVersion.
func ParseNodeType(s string) (NodeType, error) {
	if s == "" {
		return NodeType{}, apperr.Rejectedf("empty node type")
	}
	tp, ver, found := strings.Cut(s, "@")
	if tp == "" {
		return NodeType{}, apperr.Rejectedf("malformed node type %q", s)
	}
	if !found || ver == "" {
		ver = TypeVersion
	}
	return NodeType{TypePath: tp, Version: ver}, nil
}

func (t NodeType) String() string { return t.TypePath + "@" + t.Version }

// IsDir reports whether the type denotes a directory-like node (root or dir).
func (t NodeType) IsDir() bool {
	return t.TypePath == TypeDir || t.TypePath == TypeRoot
}

// IsFilesystem reports whether nodes of this type mirror a filesystem entry,
// i.e. creating one also creates the entry on disk.
func (t NodeType) IsFilesystem() bool {
	switch t.TypePath {
	case TypeRoot, TypeDir, TypeFile, TypeImage:
		return true
	}
	return false
}

// IsArchetype reports whether the type belongs to the archetype namespace.
func (t NodeType) IsArchetype() bool {
	return strings.HasPrefix(t.TypePath, ArchetypeNamespace+"/")
}

// imageExts are the extensions indexed as core/image rather than core/fs/file.
var imageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
}

// TypeForEntry derives the node type for a filesystem entry from its kind
// and extension.
func TypeForEntry(p NodePath, isDir bool) NodeType {
	if p.IsRoot() {
		return NewNodeType(TypeRoot)
	}
	if isDir {
		return NewNodeType(TypeDir)
	}
	ext := strings.ToLower(filepath.Ext(p.Name()))
	if _, ok := imageExts[ext]; ok {
		return NewNodeType(TypeImage)
	}
	return NewNodeType(TypeFile)
}

// ArchetypeType builds the node type for a built-in archetype node.
func ArchetypeType(name string) NodeType {
	return NewNodeType(ArchetypeNamespace + "/" + name)
}

// Archetypes is the fixed list of virtual root-level nodes created at vault
// initialization, alongside the root node itself.
var Archetypes = []string{"vault"}
