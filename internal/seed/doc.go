// Package seed holds the shared pieces of the portable seed-document
// format: the version envelope, file helpers, and the natural-key
// resolver used by importers.
package seed

import (
	"encoding/json"
	"fmt"
	"os"
)

// CurrentVersion is the seed document version this build writes and the
// highest major version it accepts.
const CurrentVersion = 3

// Meta is the document envelope.
type Meta struct {
	Version int    `json:"version"`
	Notes   string `json:"notes,omitempty"`
}

// CheckVersion rejects documents newer than this build understands. A
// zero version is accepted for hand-authored documents.
func (m Meta) CheckVersion() error {
	if m.Version > CurrentVersion {
		return fmt.Errorf("seed document version %d is newer than supported version %d", m.Version, CurrentVersion)
	}
	return nil
}

// ReadFile loads a JSON seed document into v.
func ReadFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse seed %s: %w", path, err)
	}
	return nil
}

// WriteFile writes v as JSON, optionally indented.
func WriteFile(path string, v interface{}, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode seed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write seed %s: %w", path, err)
	}
	return nil
}
