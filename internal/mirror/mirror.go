package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotImplemented = errors.New("not implemented")

// Mirror stores state fragments as independently keyed JSON values. Load
// reports false for a key that is absent or holds a value that no longer
// decodes; corrupt persisted data reads as never written.
type Mirror interface {
	Save(key string, value any) error
	Load(key string, out any) bool
	Clear(keys ...string) error
}

// DirectoryMirror keeps one JSON file per fragment under a directory.
// Writes go through a temp file and rename so a crash mid-write leaves the
// previous value intact.
type DirectoryMirror struct {
	Dir string
}

func NewDirectoryMirror(dir string) *DirectoryMirror {
	return &DirectoryMirror{Dir: strings.TrimSpace(dir)}
}

func (m *DirectoryMirror) path(key string) string {
	return filepath.Join(m.Dir, key+".json")
}

func (m *DirectoryMirror) Save(key string, value any) error {
	if m == nil || m.Dir == "" || strings.TrimSpace(key) == "" {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return err
	}
	target := m.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

func (m *DirectoryMirror) Load(key string, out any) bool {
	if m == nil || m.Dir == "" || strings.TrimSpace(key) == "" {
		return false
	}
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (m *DirectoryMirror) Clear(keys ...string) error {
	if m == nil || m.Dir == "" {
		return nil
	}
	var firstErr error
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := os.Remove(m.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// MemoryMirror holds fragments in process memory. Values round-trip through
// JSON so callers observe the same decode behavior as the durable backends.
type MemoryMirror struct {
	mu        sync.Mutex
	fragments map[string][]byte
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{fragments: map[string][]byte{}}
}

func (m *MemoryMirror) Save(key string, value any) error {
	if m == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.fragments[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryMirror) Load(key string, out any) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	data, ok := m.fragments[key]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (m *MemoryMirror) Clear(keys ...string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	for _, key := range keys {
		delete(m.fragments, key)
	}
	m.mu.Unlock()
	return nil
}

// BuildMirrorFromDSN selects a backend by scheme: file (a directory of JSON
// fragments), mem, redis, or postgres. An empty DSN gets the in-memory
// backend.
func BuildMirrorFromDSN(dsn string) (Mirror, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryMirror(), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	switch scheme {
	case "", "file":
		dir, dirErr := dsnDir(parsed, dsn)
		if dirErr != nil {
			return nil, dirErr
		}
		return NewDirectoryMirror(dir), nil
	case "memory", "mem", "inmem":
		return NewMemoryMirror(), nil
	case "redis", "rediss":
		return NewRedisMirror(dsn)
	case "postgres", "postgresql":
		return NewPostgresMirror(dsn)
	case "mysql", "sqlite":
		return nil, fmt.Errorf("%w: mirror backend %s", ErrNotImplemented, scheme)
	default:
		return nil, fmt.Errorf("unsupported mirror scheme: %s", scheme)
	}
}

func dsnDir(parsed *url.URL, raw string) (string, error) {
	if parsed.Scheme == "" {
		return filepath.Clean(raw), nil
	}
	dir := parsed.Path
	if parsed.Host != "" {
		dir = filepath.Join(parsed.Host, dir)
	}
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("file mirror dsn has no path: %s", raw)
	}
	return filepath.Clean(dir), nil
}
