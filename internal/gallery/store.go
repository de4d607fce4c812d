// Package gallery persists registered students and their face embeddings
// as a single JSON document (students.json).
package gallery

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrInvalidIdentity is returned when a student has no id, name or embedding.
var ErrInvalidIdentity = errors.New("invalid student record")

// Store reads and writes the gallery file. The whole file is rewritten on every
// change; concurrent writers within the process are serialized.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the gallery file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads all students in file order. A missing file is an empty gallery.
func (s *Store) Load() ([]facematch.KnownIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() ([]facematch.KnownIdentity, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading gallery %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var identities []facematch.KnownIdentity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("parsing gallery %s: %w", s.path, err)
	}
	return identities, nil
}

// Save replaces the gallery file with identities.
func (s *Store) Save(identities []facematch.KnownIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(identities)
}

func (s *Store) save(identities []facematch.KnownIdentity) error {
	if identities == nil {
		identities = []facematch.KnownIdentity{}
	}
	data, err := json.MarshalIndent(identities, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding gallery: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating gallery directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing gallery %s: %w", s.path, err)
	}
	return nil
}

// Upsert adds a student or replaces the existing record with the same id,
// keeping its position in the gallery. Returns the updated gallery and whether
// an existing record was replaced.
func (s *Store) Upsert(identity facematch.KnownIdentity) ([]facematch.KnownIdentity, bool, error) {
	if err := validate(identity); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load()
	if err != nil {
		return nil, false, err
	}

	replaced := false
	for i := range identities {
		if identities[i].ID == identity.ID {
			identities[i] = identity
			replaced = true
			break
		}
	}
	if !replaced {
		identities = append(identities, identity)
	}

	if err := s.save(identities); err != nil {
		return nil, false, err
	}
	return identities, replaced, nil
}

// Remove deletes the student with id. Returns false if no such student exists.
func (s *Store) Remove(id string) ([]facematch.KnownIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities, err := s.load()
	if err != nil {
		return nil, false, err
	}

	kept := identities[:0]
	removed := false
	for _, identity := range identities {
		if identity.ID == id {
			removed = true
			continue
		}
		kept = append(kept, identity)
	}
	if !removed {
		return identities, false, nil
	}
	if err := s.save(kept); err != nil {
		return nil, false, err
	}
	return kept, true, nil
}

func validate(identity facematch.KnownIdentity) error {
	if identity.ID == "" || identity.DisplayName == "" || len(identity.Embedding) == 0 {
		return ErrInvalidIdentity
	}
	return nil
}
