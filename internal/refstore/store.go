package refstore

import (
	"fmt"
	"os"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Store memoizes LoadReferences and EncodeReferences for one directory.
// Results stay cached until Invalidate is called; changes made to the directory
// behind the store's back are not noticed.
type Store struct {
	dir        string
	engine     facematch.Engine
	references cmap.ConcurrentMap[string, []Reference]
	known      cmap.ConcurrentMap[string, []facematch.Known]
	fillMu     sync.Mutex // serializes cache fills and invalidation
}

// NewStore creates a store for dir that encodes references with engine.
func NewStore(dir string, engine facematch.Engine) *Store {
	return &Store{
		dir:        dir,
		engine:     engine,
		references: cmap.New[[]Reference](),
		known:      cmap.New[[]facematch.Known](),
	}
}

// Dir returns the reference directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the reference directory if it does not exist.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating reference directory: %w", err)
	}
	return nil
}

// References returns the decoded reference photos, reading the directory on a cache miss.
func (s *Store) References() ([]Reference, error) {
	if refs, ok := s.references.Get(s.dir); ok {
		return refs, nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.referencesLocked()
}

func (s *Store) referencesLocked() ([]Reference, error) {
	if refs, ok := s.references.Get(s.dir); ok {
		return refs, nil
	}
	refs, err := LoadReferences(s.dir)
	if err != nil {
		return nil, err
	}
	s.references.Set(s.dir, refs)
	return refs, nil
}

// Known returns the known-descriptor set, encoding the references on a cache miss.
func (s *Store) Known() ([]facematch.Known, error) {
	if known, ok := s.known.Get(s.dir); ok {
		return known, nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	if known, ok := s.known.Get(s.dir); ok {
		return known, nil
	}
	refs, err := s.referencesLocked()
	if err != nil {
		return nil, err
	}
	known := EncodeReferences(s.engine, refs)
	s.known.Set(s.dir, known)
	return known, nil
}

// Identities returns the identity of every loaded reference photo.
func (s *Store) Identities() ([]string, error) {
	refs, err := s.References()
	if err != nil {
		return nil, err
	}
	identities := make([]string, len(refs))
	for i, ref := range refs {
		identities[i] = ref.Identity
	}
	return identities, nil
}

// Invalidate drops both cached references and descriptors so the next read
// reflects the directory as it is now.
func (s *Store) Invalidate() {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.references.Remove(s.dir)
	s.known.Remove(s.dir)
}
