package mappingcache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists one JSON file per page key under a directory. Writes go
// through a temp file and rename so a crash never leaves a half-written
// entry behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("mappingcache: store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mappingcache: create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

const entrySuffix = ".mapping.json"

// fileName keeps a readable slug of the key for debuggability and an fnv
// hash for uniqueness, since sanitizing can collide distinct keys.
func (s *FileStore) fileName(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	slug := sanitizeKey(key)
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%016x%s", slug, h.Sum64(), entrySuffix))
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.fileName(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mappingcache: read entry: %w", err)
	}
	return data, true, nil
}

func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	target := s.fileName(key)
	tmp, err := os.CreateTemp(s.dir, ".mapping-*.tmp")
	if err != nil {
		return fmt.Errorf("mappingcache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("mappingcache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("mappingcache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("mappingcache: commit entry: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.fileName(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("mappingcache: delete entry: %w", err)
	}
	return nil
}

// Clear removes every persisted entry but leaves unrelated files in the
// directory alone.
func (s *FileStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("mappingcache: list store directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), entrySuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("mappingcache: remove entry: %w", err)
		}
	}
	return nil
}
