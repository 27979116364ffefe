// Package session persists the client's state that survives a browsing
// session: the last-used base URI and auth token, each under a fixed
// storage key. Storage is an injectable interface so the client can be
// unit-tested without a real session store, and values can optionally be
// sealed at rest (see Sealer).
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Fixed storage keys. Setting a key to the empty string removes it.
const (
	KeyBaseURI = "ship-base-uri"
	KeyToken   = "ship-auth-token"
)

// Storage is the persistence boundary. Get returns the empty string for
// missing keys.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Memory is an in-process Storage, the default for clients constructed
// without persistence. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *Memory) Set(key, value string) error {
	if value == "" {
		return m.Remove(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// File is a Storage backed by a single JSON file, used by the CLI to
// carry the session across invocations. Every operation reads and
// rewrites the whole file; the value set is two small strings, so this
// is deliberately unsophisticated.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed storage at path. The file is created on
// first Set.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (f *File) Set(key, value string) error {
	if value == "" {
		return f.Remove(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	delete(values, key)
	return f.write(values)
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", f.path, err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("session: parsing %s: %w", f.path, err)
	}
	return values, nil
}

func (f *File) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("session: writing %s: %w", f.path, err)
	}
	return nil
}
