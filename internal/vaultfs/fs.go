// Package vaultfs is the file-system boundary of the vault. Every access to
// user content goes through a Vault, which resolves logical node paths
// against the vault root and refuses anything that escapes it. The .karta
// directory is app state, not vault content, and is invisible here.
package vaultfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

// KartaDirName is the vault subdirectory holding the database, settings
// and saved contexts.
const KartaDirName = ".karta"

const tmpPrefix = ".karta-tmp-"

// Entry describes one file-system entry inside the vault.
type Entry struct {
	Path    models.NodePath
	Name    string
	IsDir   bool
	Size    int64
	ModTime int64
}

// Vault exposes file operations rooted at a single vault directory.
type Vault struct {
	root string // absolute path to the vault directory
}

// Open anchors a Vault at root. The directory must already exist; the
// .karta state directory is created if missing.
func Open(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vaultfs: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vaultfs: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vaultfs: root is not a directory: %s", abs)
	}
	if err := os.MkdirAll(filepath.Join(abs, KartaDirName), 0o755); err != nil {
		return nil, fmt.Errorf("vaultfs: create state dir: %w", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute path of the vault directory.
func (v *Vault) Root() string { return v.root }

// KartaDir returns the absolute path of the .karta state directory.
func (v *Vault) KartaDir() string { return filepath.Join(v.root, KartaDirName) }

// abs resolves a logical node path to an absolute path and rejects any
// result that escapes the vault root or reaches into .karta.
func (v *Vault) abs(p models.NodePath) (string, error) {
	rel := strings.TrimPrefix(p.String(), "/")
	if rel == "" {
		return v.root, nil
	}
	if rel == KartaDirName || strings.HasPrefix(rel, KartaDirName+"/") {
		return "", apperr.Rejectedf("path is reserved: %s", p)
	}
	joined := filepath.Join(v.root, filepath.FromSlash(rel))
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", apperr.Filesystem("resolve path", err)
	}
	if !strings.HasPrefix(abs, v.root+string(os.PathSeparator)) && abs != v.root {
		return "", apperr.Rejectedf("path escapes vault root: %s", p)
	}
	return abs, nil
}

// Abs resolves p for callers that need a real file path, such as asset
// serving. The containment rules of abs apply.
func (v *Vault) Abs(p models.NodePath) (string, error) {
	return v.abs(p)
}

// Stat returns the entry at p, or ErrNotFound when nothing is there.
func (v *Vault) Stat(p models.NodePath) (Entry, error) {
	abs, err := v.abs(p)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, apperr.NotFoundf("no entry at %s", p)
		}
		return Entry{}, apperr.Filesystem("stat "+p.String(), err)
	}
	return entryFor(p, info), nil
}

// Exists reports whether an entry is present at p.
func (v *Vault) Exists(p models.NodePath) bool {
	_, err := v.Stat(p)
	return err == nil
}

// List returns the direct children of the directory at p, sorted by name.
// The .karta directory and in-flight temp files are never listed.
func (v *Vault) List(p models.NodePath) ([]Entry, error) {
	abs, err := v.abs(p)
	if err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFoundf("no directory at %s", p)
		}
		return nil, apperr.Filesystem("list "+p.String(), err)
	}
	out := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if name == KartaDirName || strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		child, err := models.JoinPath(p, name)
		if err != nil {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, apperr.Filesystem("list "+p.String(), err)
		}
		out = append(out, entryFor(child, info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Walk visits every entry under the vault root in lexical order, except
// the root itself and the .karta directory.
func (v *Vault) Walk(fn func(Entry) error) error {
	kartaDir := v.KartaDir()
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == v.root {
			return nil
		}
		if p == kartaDir {
			return filepath.SkipDir
		}
		if strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		np, err := models.ParsePath(filepath.ToSlash(rel))
		if err != nil {
			// Entries the path grammar cannot express are invisible.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(entryFor(np, info))
	})
	if err != nil {
		return apperr.Filesystem("walk", err)
	}
	return nil
}

// Read returns the raw bytes of the file at p.
func (v *Vault) Read(p models.NodePath) ([]byte, error) {
	abs, err := v.abs(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFoundf("no file at %s", p)
		}
		return nil, apperr.Filesystem("read "+p.String(), err)
	}
	return data, nil
}

// Write atomically writes content to p: tmp file, fsync, rename. Parent
// directories are created as needed.
func (v *Vault) Write(p models.NodePath, content []byte) error {
	abs, err := v.abs(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Filesystem("mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return apperr.Filesystem("create temp", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.Filesystem("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Filesystem("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Filesystem("close temp", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return apperr.Filesystem("rename", err)
	}
	success = true
	return nil
}

// Mkdir creates the directory at p, along with any missing parents.
func (v *Vault) Mkdir(p models.NodePath) error {
	abs, err := v.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return apperr.Filesystem("mkdir "+p.String(), err)
	}
	return nil
}

// Move renames the entry at oldPath to newPath, creating the target's
// parent directories as needed. Callers check for collisions first; on
// POSIX a rename over an existing file replaces it.
func (v *Vault) Move(oldPath, newPath models.NodePath) error {
	absOld, err := v.abs(oldPath)
	if err != nil {
		return err
	}
	absNew, err := v.abs(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return apperr.Filesystem("mkdir for move", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.NotFoundf("no entry at %s", oldPath)
		}
		return apperr.Filesystem("move "+oldPath.String(), err)
	}
	return nil
}

// Remove deletes the file or empty directory at p.
func (v *Vault) Remove(p models.NodePath) error {
	abs, err := v.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.NotFoundf("no entry at %s", p)
		}
		return apperr.Filesystem("remove "+p.String(), err)
	}
	return nil
}

// RemoveAll deletes the entry at p and, for directories, everything below.
func (v *Vault) RemoveAll(p models.NodePath) error {
	abs, err := v.abs(p)
	if err != nil {
		return err
	}
	if abs == v.root {
		return apperr.Rejectedf("refusing to remove vault root")
	}
	if err := os.RemoveAll(abs); err != nil {
		return apperr.Filesystem("remove all "+p.String(), err)
	}
	return nil
}

func entryFor(p models.NodePath, info fs.FileInfo) Entry {
	return Entry{
		Path:    p,
		Name:    p.Name(),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
	}
}
