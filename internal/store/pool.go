// Package store persists the operator's provider credential and chosen
// model pool in a local key-value file. The debate core never touches it;
// values are loaded at startup and written on change.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhouzirui/debate-arena/backend/internal/model/catalog"
)

const (
	fileName      = "pool.json"
	keyCredential = "provider.credential"
	keyModels     = "model.pool"
)

// Store is a file-backed key-value store with fixed keys.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
}

// Open loads the store file from dir, starting empty when none exists.
func Open(dir string) (*Store, error) {
	s := &Store{
		path: filepath.Join(dir, fileName),
		data: make(map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parsing store file %s: %w", s.path, err)
	}
	return s, nil
}

// Credential returns the persisted provider credential, if any.
func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key string
	if raw, ok := s.data[keyCredential]; ok {
		_ = json.Unmarshal(raw, &key)
	}
	return key
}

// SetCredential persists the provider credential.
func (s *Store) SetCredential(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	s.data[keyCredential] = raw
	return s.persist()
}

// Models returns the persisted model pool as a JSON-array-shaped list.
func (s *Store) Models() []catalog.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelsLocked()
}

func (s *Store) modelsLocked() []catalog.Model {
	var models []catalog.Model
	if raw, ok := s.data[keyModels]; ok {
		_ = json.Unmarshal(raw, &models)
	}
	return models
}

// SetModels replaces the persisted model pool.
func (s *Store) SetModels(models []catalog.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setModelsLocked(models)
}

func (s *Store) setModelsLocked(models []catalog.Model) error {
	raw, err := json.Marshal(models)
	if err != nil {
		return err
	}
	s.data[keyModels] = raw
	return s.persist()
}

// Import merges the given descriptors into the pool by model id; existing
// ids are kept as-is, never duplicated. The merged pool is persisted and
// returned.
func (s *Store) Import(extra []catalog.Model) ([]catalog.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := catalog.Merge(s.modelsLocked(), extra)
	if err := s.setModelsLocked(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// persist writes the store file. Callers hold the mutex.
func (s *Store) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	return nil
}
