package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/satishbabariya/dbre/model"
)

// DefaultPath is the snapshot location relative to the project root.
const DefaultPath = ".dbre/dbre.xml"

// Store persists a single database snapshot.
type Store struct {
	Fs   afero.Fs
	Path string
}

// NewStore returns a store writing to path on fs. A nil fs means the OS
// filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultPath
	}
	return &Store{Fs: fs, Path: path}
}

// Load reads the stored snapshot.
func (s *Store) Load() (*model.Database, error) {
	data, err := afero.ReadFile(s.Fs, s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, s.Path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	db, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return db, nil
}

// Save replaces the stored snapshot with db. The file is written next to
// the target and renamed into place.
func (s *Store) Save(db *model.Database) error {
	var buf bytes.Buffer
	if err := Encode(&buf, db); err != nil {
		return err
	}
	if err := s.Fs.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := afero.WriteFile(s.Fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := s.Fs.Rename(tmp, s.Path); err != nil {
		_ = s.Fs.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
