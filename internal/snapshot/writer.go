package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Encode writes the snapshot to w as block-style YAML
func Encode(w io.Writer, snap *Snapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to serialize to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to flush YAML: %w", err)
	}
	return nil
}

// WriteFile writes the snapshot to path, truncating any existing content.
// The parent directory must already exist.
func WriteFile(path string, snap *Snapshot) (err error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	return Encode(file, snap)
}

// Decode parses a snapshot previously produced by Encode
func Decode(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &snap, nil
}

// ReadFile parses a snapshot file written by WriteFile
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}
