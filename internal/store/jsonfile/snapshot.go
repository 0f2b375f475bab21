// Package jsonfile persists application state as indented JSON files.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNotFound is returned by Load when the requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

const (
	latestSuffix    = "-latest.json"
	timestampFormat = "20060102T150405.000Z"
)

// Snapshots stores successive versions of a JSON document under a common
// prefix. Every Save writes a timestamped file and overwrites the
// "<prefix>-latest.json" pointer.
type Snapshots struct {
	dir    string
	prefix string
	mu     sync.RWMutex

	now func() time.Time
}

// NewSnapshots creates a snapshot store rooted at dir. prefix may contain a
// slash-separated subdirectory, e.g. "filemeta/file-metadata".
func NewSnapshots(dir, prefix string) *Snapshots {
	return &Snapshots{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
	}
}

// LatestPath is the path of the latest pointer file.
func (s *Snapshots) LatestPath() string {
	return filepath.Join(s.dir, filepath.FromSlash(s.prefix)+latestSuffix)
}

// Save writes v as a new timestamped snapshot and as the latest snapshot.
// It returns the timestamped path.
func (s *Snapshots) Save(ctx context.Context, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", s.prefix, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamped := filepath.Join(s.dir, fmt.Sprintf("%s-%s.json",
		filepath.FromSlash(s.prefix), s.now().UTC().Format(timestampFormat)))

	if err := writeAtomic(stamped, data); err != nil {
		return "", err
	}

	if err := writeAtomic(s.LatestPath(), data); err != nil {
		return "", err
	}

	return stamped, nil
}

// Load decodes a snapshot into v. An empty name loads the latest snapshot;
// otherwise name is a file name as returned by List.
func (s *Snapshots) Load(ctx context.Context, name string, v any) error {
	path := s.LatestPath()
	if name != "" {
		path = filepath.Join(s.dir, filepath.FromSlash(name))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

// List returns the timestamped snapshots, newest first, as paths relative to
// the store directory. The latest pointer is not included.
func (s *Snapshots) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(s.dir), s.prefix+"-*.json")
	if err != nil {
		return nil, fmt.Errorf("list %s snapshots: %w", s.prefix, err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasSuffix(m, latestSuffix) {
			continue
		}
		names = append(names, m)
	}

	slices.Sort(names)
	slices.Reverse(names)

	return names, nil
}

// writeAtomic writes data to path through a temporary file and rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
