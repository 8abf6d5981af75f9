// Package storage persists whole-state snapshots to a local file.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// Snapshot reads and writes one document on disk. Writes go to a
// temporary file that is renamed into place.
type Snapshot struct {
	mu   sync.Mutex
	path string
}

func NewSnapshot(dir, filename string) (*Snapshot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Snapshot{path: filepath.Join(dir, filename)}, nil
}

func (s *Snapshot) Path() string {
	return s.path
}

// Read returns the raw snapshot, or nil when none has been written yet.
func (s *Snapshot) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

func (s *Snapshot) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load decodes a JSON snapshot into v. A missing file leaves v untouched
// and reports false.
func (s *Snapshot) Load(v interface{}) (bool, error) {
	b, err := s.Read()
	if err != nil || b == nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Snapshot) Save(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.Write(b)
}
