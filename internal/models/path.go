package models

import (
	"path"
	"strings"

	"github.com/karta-graph/karta/internal/apperr"
)

// NodePath is a canonical vault-relative path: forward slashes, a leading
// slash, no trailing slash, no "." or ".." segments. The vault root is "/".
type NodePath string

// RootPath is the path of the vault root node.
const RootPath NodePath = "/"

// aliasPrefix keys nodes inside the storage primitive. The root node's alias
// is the bare prefix; every other alias is the prefix plus the node path.
const aliasPrefix = "root"

// ParsePath normalizes raw into a NodePath. Accepted inputs are "" or "/"
// for the root, and any slash-separated relative or /-prefixed path.
// Backslashes are treated as separators so Windows-style client input
// normalizes too. Traversal segments are rejected rather than collapsed.
func ParsePath(raw string) (NodePath, error) {
	s := strings.ReplaceAll(raw, `\`, "/")
	if s == "" || s == "/" {
		return RootPath, nil
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	for _, seg := range strings.Split(strings.TrimPrefix(s, "/"), "/") {
		if seg == "." || seg == ".." {
			return "", apperr.Rejectedf("path %q contains traversal segment", raw)
		}
	}
	cleaned := path.Clean(s)
	if cleaned == "." || cleaned == "/" {
		return RootPath, nil
	}
	if strings.Contains(cleaned, "\x00") {
		return "", apperr.Rejectedf("path %q contains NUL", raw)
	}
	return NodePath(cleaned), nil
}

// JoinPath builds a child path from a parent and a single name segment.
// The name must be legal per ValidateName.
func JoinPath(parent NodePath, name string) (NodePath, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if parent.IsRoot() {
		return NodePath("/" + name), nil
	}
	return NodePath(string(parent) + "/" + name), nil
}

// ValidateName checks a single path segment: non-empty, no separators,
// not "." or "..", no NUL bytes.
func ValidateName(name string) error {
	switch {
	case name == "":
		return apperr.Rejectedf("name is empty")
	case name == "." || name == "..":
		return apperr.Rejectedf("name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return apperr.Rejectedf("name %q contains a path separator", name)
	case strings.Contains(name, "\x00"):
		return apperr.Rejectedf("name contains NUL")
	}
	return nil
}

func (p NodePath) String() string { return string(p) }

// IsRoot reports whether p is the vault root.
func (p NodePath) IsRoot() bool { return p == RootPath }

// Name returns the final path segment, or "" for the root.
func (p NodePath) Name() string {
	if p.IsRoot() {
		return ""
	}
	return path.Base(string(p))
}

// Parent returns the containing directory path. The root's parent is the
// root itself with ok=false.
func (p NodePath) Parent() (NodePath, bool) {
	if p.IsRoot() {
		return RootPath, false
	}
	dir := path.Dir(string(p))
	if dir == "/" || dir == "." {
		return RootPath, true
	}
	return NodePath(dir), true
}

// Ancestors lists every ancestor from the immediate parent up to and
// including the root, nearest first.
func (p NodePath) Ancestors() []NodePath {
	var out []NodePath
	cur := p
	for {
		parent, ok := cur.Parent()
		if !ok {
			return out
		}
		out = append(out, parent)
		cur = parent
	}
}

// IsDescendantOf reports whether p sits strictly below other.
func (p NodePath) IsDescendantOf(other NodePath) bool {
	if other.IsRoot() {
		return !p.IsRoot()
	}
	return strings.HasPrefix(string(p), string(other)+"/")
}

// Rebase rewrites p from under oldPrefix to under newPrefix. p must equal
// oldPrefix or be a descendant of it.
func (p NodePath) Rebase(oldPrefix, newPrefix NodePath) NodePath {
	if p == oldPrefix {
		return newPrefix
	}
	rest := strings.TrimPrefix(string(p), string(oldPrefix))
	if newPrefix.IsRoot() {
		return NodePath(rest)
	}
	return NodePath(string(newPrefix) + rest)
}

// Alias is the deterministic key used for lookups inside the storage
// primitive: "root" for the vault root, "root/a/b" for "/a/b".
func (p NodePath) Alias() string {
	if p.IsRoot() {
		return aliasPrefix
	}
	return aliasPrefix + string(p)
}

// PathFromAlias inverts Alias.
func PathFromAlias(alias string) (NodePath, error) {
	if alias == aliasPrefix {
		return RootPath, nil
	}
	if !strings.HasPrefix(alias, aliasPrefix+"/") {
		return "", apperr.Rejectedf("malformed alias %q", alias)
	}
	return ParsePath(strings.TrimPrefix(alias, aliasPrefix))
}
