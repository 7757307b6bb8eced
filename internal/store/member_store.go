package store

import (
	"path/filepath"
	"sort"
	"sync"

	"ledgerlink/internal/domain"
)

const membersFilename = "members.json"

// MemberFileStore caches directory records fetched from the relay.
type MemberFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewMemberFileStore returns a MemberFileStore rooted at dir.
func NewMemberFileStore(dir string) *MemberFileStore {
	return &MemberFileStore{dir: dir}
}

// SaveMember stores or updates rec.
func (s *MemberFileStore) SaveMember(rec domain.MemberRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, membersFilename)
	members := map[string]domain.MemberRecord{}
	if err := readJSON(path, &members); err != nil {
		return err
	}
	members[rec.Identity.String()] = rec
	return writeJSON(path, members, 0o600)
}

// LoadMember returns the cached record for id.
func (s *MemberFileStore) LoadMember(id domain.HoldingIdentity) (domain.MemberRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := map[string]domain.MemberRecord{}
	if err := readJSON(filepath.Join(s.dir, membersFilename), &members); err != nil {
		return domain.MemberRecord{}, false, err
	}
	rec, ok := members[id.String()]
	return rec, ok, nil
}

// ListMembers returns every cached record ordered by identity.
func (s *MemberFileStore) ListMembers() ([]domain.MemberRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := map[string]domain.MemberRecord{}
	if err := readJSON(filepath.Join(s.dir, membersFilename), &members); err != nil {
		return nil, err
	}
	out := make([]domain.MemberRecord, 0, len(members))
	for _, rec := range members {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.String() < out[j].Identity.String() })
	return out, nil
}

// Compile-time assertion that MemberFileStore implements domain.MemberStore.
var _ domain.MemberStore = (*MemberFileStore)(nil)
