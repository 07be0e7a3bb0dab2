// Package catalog persists the product catalog as a single JSON file.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store reads and writes the catalog file. The catalog is an arbitrary JSON
// object keyed by barcode; the bridge never interprets the entries, it only
// hands them to the browser UI. The file is rewritten whole on every save.
type Store struct {
	filePath string
	mu       sync.Mutex
}

// New creates a Store backed by filePath. The file does not need to exist
// yet; a missing file reads as an empty catalog.
func New(filePath string) *Store {
	return &Store{filePath: filePath}
}

// Load returns the current catalog. A missing file yields an empty object,
// not an error.
func (s *Store) Load() (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	catalog := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return catalog, nil
}

// Save overwrites the catalog file with obj. The lock covers the whole
// write so two saves cannot interleave into a torn file.
func (s *Store) Save(obj map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	return nil
}
