// Package valuestore loads the site value records (profiles) that fill
// execution draws from.
package valuestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/formscout/formscout/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound reports a missing profile. The engine surfaces it as a hard
// error before any page interaction starts.
var ErrNotFound = errors.New("valuestore: profile not found")

// Provider is the read port the engine consumes.
type Provider interface {
	Get(ctx context.Context, id string) (*schemas.SiteValueRecord, error)
	List(ctx context.Context) ([]schemas.SiteValueRecord, error)
}

// FileStore reads one JSON profile per file from a directory. The file name
// (minus extension) is the profile ID unless the record carries its own.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("valuestore: profile directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("valuestore: create profile directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger.Named("valuestore")}, nil
}

const profileExt = ".json"

// Get loads one profile by ID.
func (s *FileStore) Get(_ context.Context, id string) (*schemas.SiteValueRecord, error) {
	if id == "" || strings.ContainsAny(id, "/\\") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id+profileExt))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("valuestore: read profile %q: %w", id, err)
	}

	var record schemas.SiteValueRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("valuestore: decode profile %q: %w", id, err)
	}
	if record.ID == "" {
		record.ID = id
	}
	return &record, nil
}

// List returns every readable profile sorted by ID. Corrupt files are logged
// and skipped so one bad profile never hides the rest.
func (s *FileStore) List(_ context.Context) ([]schemas.SiteValueRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("valuestore: list profile directory: %w", err)
	}

	var records []schemas.SiteValueRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), profileExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), profileExt)
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable profile", zap.String("id", id), zap.Error(err))
			continue
		}
		var record schemas.SiteValueRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Warn("skipping corrupt profile", zap.String("id", id), zap.Error(err))
			continue
		}
		if record.ID == "" {
			record.ID = id
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Put writes a profile, creating or overwriting its file atomically.
func (s *FileStore) Put(_ context.Context, record *schemas.SiteValueRecord) error {
	if record == nil || record.ID == "" || strings.ContainsAny(record.ID, "/\\") {
		return fmt.Errorf("valuestore: a profile needs a plain ID")
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("valuestore: encode profile %q: %w", record.ID, err)
	}

	target := filepath.Join(s.dir, record.ID+profileExt)
	tmp, err := os.CreateTemp(s.dir, ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("valuestore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("valuestore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("valuestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("valuestore: commit profile %q: %w", record.ID, err)
	}
	return nil
}

// FilePayload is a decoded image ready to hand to a file input.
type FilePayload struct {
	Name string
	MIME string
	Data []byte
}

// DecodeDataURL splits a data URL into its MIME type and raw bytes. Only
// base64-encoded payloads are supported; that is the only form the profiles
// carry.
func DecodeDataURL(dataURL string) (*FilePayload, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, fmt.Errorf("valuestore: not a data URL")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("valuestore: malformed data URL")
	}

	mime, b64 := meta, false
	if m, found := strings.CutSuffix(meta, ";base64"); found {
		mime, b64 = m, true
	}
	if !b64 {
		return nil, fmt.Errorf("valuestore: only base64 data URLs are supported")
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("valuestore: decode data URL payload: %w", err)
	}

	return &FilePayload{
		Name: "upload" + extensionForMIME(mime),
		MIME: mime,
		Data: data,
	}, nil
}

func extensionForMIME(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
