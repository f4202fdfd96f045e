// Package contexts persists one view document per focal node: positions,
// sizes and visibility flags for the nodes shown when the user focuses a
// given node. Documents live as pretty-printed JSON in one .ctx file per
// focal UUID. Pure storage; the only graph knowledge here is the UUID key.
package contexts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
	"github.com/karta-graph/karta/internal/models"
)

const fileExt = ".ctx"

const tmpPrefix = ".ctx-tmp-"

// Store reads and writes context documents under a single directory.
type Store struct {
	dir string
}

// NewStore opens a context store rooted at dir, creating it if missing.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("contexts: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) file(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+fileExt)
}

// Get returns the context focused on id, or ErrNotFound when none was
// ever saved.
func (s *Store) Get(id uuid.UUID) (*models.Context, error) {
	data, err := s.Raw(id)
	if err != nil {
		return nil, err
	}
	var ctx models.Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, apperr.Serialization("decode context "+id.String(), err)
	}
	return &ctx, nil
}

// Raw returns the stored document for id exactly as it is on disk. Undo
// snapshots go through Raw and SaveRaw so a restored document stays
// byte-identical.
func (s *Store) Raw(id uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(s.file(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFoundf("no context for %s", id)
		}
		return nil, apperr.Filesystem("read context", err)
	}
	return data, nil
}

// Exists reports whether a context document is on disk for id.
func (s *Store) Exists(id uuid.UUID) bool {
	_, err := os.Stat(s.file(id))
	return err == nil
}

// Save writes the context atomically: tmp file, fsync, rename. Any prior
// document for the same focal is overwritten.
func (s *Store) Save(ctx models.Context) error {
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return apperr.Serialization("encode context "+ctx.Focal.String(), err)
	}
	return s.SaveRaw(ctx.Focal, append(data, '\n'))
}

// SaveRaw writes a document for id verbatim, with the same atomic rename
// as Save.
func (s *Store) SaveRaw(id uuid.UUID, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return apperr.Filesystem("create temp", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return apperr.Filesystem("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Filesystem("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Filesystem("close temp", err)
	}
	if err := os.Rename(tmpName, s.file(id)); err != nil {
		return apperr.Filesystem("rename", err)
	}
	success = true
	return nil
}

// Delete removes the context document for id. Absent documents are a
// no-op.
func (s *Store) Delete(id uuid.UUID) error {
	if err := os.Remove(s.file(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Filesystem("delete context", err)
	}
	return nil
}

// List returns the focal UUID of every stored context.
func (s *Store) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperr.Filesystem("list contexts", err)
	}
	var out []uuid.UUID
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// Prune deletes every context whose focal is not in keep and returns the
// removed focal ids.
func (s *Store) Prune(keep map[uuid.UUID]struct{}) ([]uuid.UUID, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	var removed []uuid.UUID
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := s.Delete(id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}
