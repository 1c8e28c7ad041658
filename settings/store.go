package settings

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mbocsi/kiosk/proto"
	"gopkg.in/yaml.v2"
)

// Keys the maintenance screen persists.
const (
	KeyHost = "museum_ip_address"
	KeyPort = "museum_port"
)

// Defaults used until the maintenance screen saves an endpoint.
const (
	DefaultHost = "192.168.1.100"
	DefaultPort = "8080"
)

// Store is the key-value configuration store.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// BatchStore writes several keys at once: either all are stored or none.
type BatchStore interface {
	Store
	SetMany(values map[string]string) error
}

// Endpoint reads the destination from store, falling back to defaults for
// missing keys.
func Endpoint(store Store, defaults proto.Endpoint) proto.Endpoint {
	ep := defaults
	if host, ok := store.Get(KeyHost); ok && host != "" {
		ep.Host = host
	}
	if port, ok := store.Get(KeyPort); ok && port != "" {
		ep.Port = port
	}
	return ep
}

// SaveEndpoint validates ep and writes both keys. A failed write never leaves
// the new host next to the old port.
func SaveEndpoint(store Store, ep proto.Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	if bs, ok := store.(BatchStore); ok {
		return bs.SetMany(map[string]string{KeyHost: ep.Host, KeyPort: ep.Port})
	}

	prevHost, hadHost := store.Get(KeyHost)
	if err := store.Set(KeyHost, ep.Host); err != nil {
		return err
	}
	if err := store.Set(KeyPort, ep.Port); err != nil {
		if hadHost {
			if rerr := store.Set(KeyHost, prevHost); rerr != nil {
				slog.Error("Failed to restore previous host", "error", rerr)
			}
		}
		return err
	}
	return nil
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) SetMany(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

// FileStore persists values as a flat YAML mapping. Every Set rewrites the
// file through a temp file and rename.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// OpenFileStore loads path. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("Settings file not found, starting empty", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	return s.SetMany(map[string]string{key: value})
}

// SetMany stores values with a single flush. On failure the previous values
// are kept.
func (s *FileStore) SetMany(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[string]string, len(s.values))
	for k, v := range s.values {
		prev[k] = v
	}
	for k, v := range values {
		s.values[k] = v
	}
	if err := s.flush(); err != nil {
		s.values = prev
		return err
	}
	for k := range values {
		slog.Debug("Setting saved", "key", k, "path", s.path)
	}
	return nil
}

// flush writes the map to disk. Caller holds s.mu.
func (s *FileStore) flush() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
