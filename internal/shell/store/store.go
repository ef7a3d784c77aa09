// Package store persists environment state documents. This is part of the
// Imperative Shell - it owns all filesystem I/O for environment records.
//
// Each environment is one JSON document keyed by name. Writes go through a
// temporary file in the same directory followed by an atomic rename, so a
// crash never leaves a half-written record. Records carry a schema version;
// a mismatch fails the load rather than guessing.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"trackerdeploy/internal/core/environment"
)

// SchemaVersion is the persisted record format version.
const SchemaVersion = 1

// Store errors
var (
	ErrNotFound        = errors.New("environment record not found")
	ErrVersionMismatch = errors.New("unsupported record schema version")
)

// record is the on-disk document shape.
type record struct {
	SchemaVersion int                      `json:"schema_version"`
	Environment   *environment.Environment `json:"environment"`
}

// FileStore stores one JSON record per environment under a base directory.
// Environments are independent documents; concurrent operations on distinct
// names never share state. Concurrent writers of the same name are
// last-writer-wins, which matches the single-operator-per-environment model.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the base directory of the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save persists the environment atomically: marshal, write to a temporary
// file in the store directory, fsync, rename over the record path.
func (s *FileStore) Save(env *environment.Environment) error {
	data, err := json.MarshalIndent(record{
		SchemaVersion: SchemaVersion,
		Environment:   env,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal environment %q: %w", env.Name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "."+env.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(env.Name)); err != nil {
		return fmt.Errorf("commit environment %q: %w", env.Name, err)
	}
	return nil
}

// Load reads the environment record for a name. Returns ErrNotFound when no
// record exists and ErrVersionMismatch when the schema version differs.
func (s *FileStore) Load(name string) (*environment.Environment, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read environment %q: %w", name, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse environment %q: %w", name, err)
	}
	if rec.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: record has version %d, this build supports %d",
			ErrVersionMismatch, rec.SchemaVersion, SchemaVersion)
	}
	if rec.Environment == nil {
		return nil, fmt.Errorf("parse environment %q: record has no environment", name)
	}
	return rec.Environment, nil
}

// Exists reports whether a record exists for the name.
func (s *FileStore) Exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat environment %q: %w", name, err)
}

// Delete removes the record entirely. Returns ErrNotFound when absent.
func (s *FileStore) Delete(name string) error {
	err := os.Remove(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fmt.Errorf("delete environment %q: %w", name, err)
	}
	return nil
}

// List returns the names of all stored environments, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list state directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
