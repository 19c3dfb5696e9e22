package unit

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// Load reads a JSON array of records from path.
func Load[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return items, nil
}

// LoadOrEmpty reads a JSON array, treating a missing or corrupted file as an
// empty list. Ledger files can be truncated mid-write on a hard kill; starting
// that artifact fresh is preferable to aborting the run.
func LoadOrEmpty[T any](path string) []T {
	data, err := os.ReadFile(path)
	if err != nil {
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn("Corrupted JSON in %s, treating as empty: %v", path, err)
		return []T{}
	}
	return items
}

// Save writes records as pretty-printed UTF-8 JSON.
func Save[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a working file is present on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
