package store

import (
	"path/filepath"
	"sort"
	"sync"

	"ledgerlink/internal/domain"
)

const sessionsFilename = "sessions.json"

// SessionFileStore persists session metadata to disk, keyed by session id.
type SessionFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{dir: dir}
}

// Get returns the metadata for id and whether it was present.
func (s *SessionFileStore) Get(id domain.SessionID) (domain.SessionMetadata, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return domain.SessionMetadata{}, false, err
	}
	md, ok := sessions[id]
	return md, ok, nil
}

// Put stores or replaces the metadata for md.SessionID.
func (s *SessionFileStore) Put(md domain.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	sessions[md.SessionID] = md
	return writeJSON(s.path(), sessions, 0o600)
}

// Delete removes the metadata for id. Deleting an unknown id is a no-op.
func (s *SessionFileStore) Delete(id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := sessions[id]; !ok {
		return nil
	}
	delete(sessions, id)
	return writeJSON(s.path(), sessions, 0o600)
}

// List returns every stored record ordered by session id.
func (s *SessionFileStore) List() ([]domain.SessionMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedMetadata(sessions), nil
}

func (s *SessionFileStore) path() string { return filepath.Join(s.dir, sessionsFilename) }

func (s *SessionFileStore) load() (map[domain.SessionID]domain.SessionMetadata, error) {
	sessions := map[domain.SessionID]domain.SessionMetadata{}
	if err := readJSON(s.path(), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// MemorySessionStore keeps session metadata in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]domain.SessionMetadata
}

// NewMemorySessionStore returns an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[domain.SessionID]domain.SessionMetadata)}
}

func (s *MemorySessionStore) Get(id domain.SessionID) (domain.SessionMetadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.sessions[id]
	return md, ok, nil
}

func (s *MemorySessionStore) Put(md domain.SessionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[md.SessionID] = md
	return nil
}

func (s *MemorySessionStore) Delete(id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) List() ([]domain.SessionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMetadata(s.sessions), nil
}

func sortedMetadata(m map[domain.SessionID]domain.SessionMetadata) []domain.SessionMetadata {
	out := make([]domain.SessionMetadata, 0, len(m))
	for _, md := range m {
		out = append(out, md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Compile-time assertions that both stores implement domain.SessionMetadataStore.
var (
	_ domain.SessionMetadataStore = (*SessionFileStore)(nil)
	_ domain.SessionMetadataStore = (*MemorySessionStore)(nil)
)
