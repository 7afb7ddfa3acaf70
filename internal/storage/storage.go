package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// KV is the durable key-value capability backing an actor instance. Reads
// observe the actor's own prior writes; contents survive restarts. Errors
// from any method mean the authoritative store is unavailable and must be
// surfaced to the caller.
type KV interface {
	Get(key string, out any) (bool, error)
	Put(key string, value any) error
	Delete(key string) error
	List(prefix string) (map[string]json.RawMessage, error)
}

// FileKV stores one JSON file per key under a namespace directory. Each
// actor instance owns its own directory; nothing else writes there.
type FileKV struct {
	dir string
}

func OpenFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	return &FileKV{dir: dir}, nil
}

func (s *FileKV) path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+".json")
}

func (s *FileKV) Get(key string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: read %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

func (s *FileKV) Put(key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	data = append(data, '\n')

	path := s.path(key)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename %q: %w", key, err)
	}
	return nil
}

func (s *FileKV) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	return nil
}

func (s *FileKV) List(prefix string) (map[string]json.RawMessage, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}

	result := make(map[string]json.RawMessage)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key, err := url.QueryUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("storage: read %q: %w", key, err)
		}
		result[key] = json.RawMessage(data)
	}
	return result, nil
}
