// Package manifest stores the descriptors of generated types between runs.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/dbre/reconcile"
)

// CurrentVersion is the manifest layout written by Save.
const CurrentVersion = 1

// Manifest lists the managed types of a project.
type Manifest struct {
	Version int                     `yaml:"version"`
	Types   []*reconcile.Descriptor `yaml:"types"`
}

// Load reads the manifest at path. A missing file is an empty manifest.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Version > CurrentVersion {
		return nil, fmt.Errorf("manifest %s: version %d is newer than supported version %d", path, m.Version, CurrentVersion)
	}
	for i, d := range m.Types {
		if d == nil || d.Type == "" || d.TableName == "" {
			return nil, fmt.Errorf("manifest %s: entry %d needs type and table", path, i)
		}
	}
	return &m, nil
}

// Save writes m to path, creating the directory as needed.
func Save(fs afero.Fs, path string, m *Manifest) error {
	m.Version = CurrentVersion
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Managed returns the entries as managed types, in file order.
func (m *Manifest) Managed() []reconcile.ManagedType {
	out := make([]reconcile.ManagedType, len(m.Types))
	for i, d := range m.Types {
		out[i] = d
	}
	return out
}
