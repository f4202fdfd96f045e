package mcpserver

// GraphModelContract describes the Karta graph model for LLM consumers.
// Tools accept and return the terms defined here.
const GraphModelContract = `# Karta Graph Model

Karta maps a directory tree (the vault) onto a graph. Every file and
directory is a node; virtual nodes exist only in the graph.

## Handles

Tools that take a ` + "`" + `handle` + "`" + ` accept either form:

- a node UUID, e.g. ` + "`" + `7a1f...` + "`" + `
- a vault path, absolute from the vault root: ` + "`" + `/projects/karta/notes.md` + "`" + `

` + "`" + `/` + "`" + ` (or an empty path) is the vault root. Paths use forward slashes and
never contain ` + "`" + `.` + "`" + ` or ` + "`" + `..` + "`" + ` segments.

## Node types

| type_path            | meaning                                      |
|----------------------|----------------------------------------------|
| core/root            | the vault root (exactly one)                 |
| core/fs/dir          | a directory on disk                          |
| core/fs/file         | a file on disk                               |
| core/image           | an image file (png, jpg, jpeg, gif)          |
| core/virtual_generic | a graph-only node with no filesystem entry   |

Creating a filesystem-typed node also creates the entry on disk.
Omitting ` + "`" + `ntype` + "`" + ` on create yields ` + "`" + `core/virtual_generic` + "`" + `.

## Names and attributes

Node names must not contain ` + "`" + `/` + "`" + ` or ` + "`" + `\` + "`" + ` and must not be ` + "`" + `.` + "`" + ` or ` + "`" + `..` + "`" + `.
The ` + "`" + `.karta` + "`" + ` directory at the vault root holds Karta state and is out of
bounds. The attribute names ` + "`" + `path` + "`" + `, ` + "`" + `uuid` + "`" + `, ` + "`" + `ntype` + "`" + `, ` + "`" + `created_time` + "`" + `
and ` + "`" + `modified_time` + "`" + ` are reserved for built-in fields.

## Edges

Every node except the root has exactly one inbound ` + "`" + `contains` + "`" + ` edge from
its parent. Contains edges are system-owned: they move when nodes move
and cannot be created or deleted directly. All other edges are plain
user connections created with ` + "`" + `connect_nodes` + "`" + `.

## Contexts

A context is the saved spatial arrangement around one focal node:
per-node positions and sizes plus the viewport. ` + "`" + `open_context` + "`" + ` returns
the focal node, its neighbors, the edges among them, and the saved
placements (generated defaults for nodes never placed by hand).
`
