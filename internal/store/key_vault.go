package store

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"ledgerlink/internal/crypto"
	"ledgerlink/internal/domain"
)

const (
	vaultFilename = "session_keys.json"
	vaultCheck    = "ledgerlink session key vault"
)

type vaultRecord struct {
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// vaultFile is the on-disk layout: KDF parameters, a check value sealed
// under the key-encryption key, and one sealed record per session key.
type vaultFile struct {
	V       int                    `json:"v"`
	Salt    []byte                 `json:"salt"`
	KDF     argon2Params           `json:"argon2id"`
	Check   vaultRecord            `json:"check"`
	Records map[string]vaultRecord `json:"records"`
}

// KeyVaultFileStore keeps session keys encrypted at rest. The key-encryption
// key is derived from the passphrase once per process and held until Close.
type KeyVaultFileStore struct {
	dir        string
	passphrase string
	params     argon2Params

	mu  sync.Mutex
	kek []byte
}

// NewKeyVaultFileStore returns a vault rooted at dir unlocked by passphrase.
func NewKeyVaultFileStore(dir, passphrase string) *KeyVaultFileStore {
	return &KeyVaultFileStore{dir: dir, passphrase: passphrase, params: argon2ParamsDefault()}
}

// PutSessionKey seals rec under (tenant, keyID), replacing any previous value.
func (s *KeyVaultFileStore) PutSessionKey(tenant, keyID string, rec domain.SessionKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.open()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	defer crypto.Wipe(raw)

	name := vaultName(tenant, keyID)
	nonce, ct, err := sealRecord(s.kek, raw, []byte(name))
	if err != nil {
		return err
	}
	vf.Records[name] = vaultRecord{Nonce: nonce, Cipher: ct}
	return writeJSON(s.path(), vf, 0o600)
}

// GetSessionKey opens the record stored under (tenant, keyID).
func (s *KeyVaultFileStore) GetSessionKey(tenant, keyID string) (domain.SessionKeyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.open()
	if err != nil {
		return domain.SessionKeyRecord{}, false, err
	}
	name := vaultName(tenant, keyID)
	r, ok := vf.Records[name]
	if !ok {
		return domain.SessionKeyRecord{}, false, nil
	}
	raw, err := openRecord(s.kek, r.Nonce, r.Cipher, []byte(name))
	if err != nil {
		return domain.SessionKeyRecord{}, false, err
	}
	defer crypto.Wipe(raw)

	var rec domain.SessionKeyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SessionKeyRecord{}, false, err
	}
	return rec, true, nil
}

// DeleteSessionKey removes the record under (tenant, keyID).
func (s *KeyVaultFileStore) DeleteSessionKey(tenant, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, err := s.open()
	if err != nil {
		return err
	}
	name := vaultName(tenant, keyID)
	if _, ok := vf.Records[name]; !ok {
		return nil
	}
	delete(vf.Records, name)
	return writeJSON(s.path(), vf, 0o600)
}

// Close wipes the cached key-encryption key.
func (s *KeyVaultFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	crypto.Wipe(s.kek)
	s.kek = nil
	return nil
}

func (s *KeyVaultFileStore) path() string { return filepath.Join(s.dir, vaultFilename) }

// open loads the vault, creating it on first use, and unlocks the KEK.
func (s *KeyVaultFileStore) open() (*vaultFile, error) {
	vf := &vaultFile{}
	if err := readJSON(s.path(), vf); err != nil {
		return nil, err
	}
	if vf.Records == nil {
		vf.Records = map[string]vaultRecord{}
	}

	if vf.V == 0 {
		// 1) Fresh vault: new salt and check value.
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		crypto.Wipe(s.kek)
		s.kek = deriveKEK(s.passphrase, salt, s.params)
		nonce, ct, err := sealRecord(s.kek, []byte(vaultCheck), salt)
		if err != nil {
			return nil, err
		}
		vf.V, vf.Salt, vf.KDF = keystoreFormatVersion, salt, s.params
		vf.Check = vaultRecord{Nonce: nonce, Cipher: ct}
		return vf, writeJSON(s.path(), vf, 0o600)
	}
	if vf.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported key vault version %d", vf.V)
	}

	// 2) Existing vault: derive once, then verify against the check value.
	if s.kek == nil {
		s.kek = deriveKEK(s.passphrase, vf.Salt, vf.KDF)
	}
	check, err := openRecord(s.kek, vf.Check.Nonce, vf.Check.Cipher, vf.Salt)
	if err != nil || !bytes.Equal(check, []byte(vaultCheck)) {
		crypto.Wipe(s.kek)
		s.kek = nil
		return nil, ErrWrongPassphrase
	}
	return vf, nil
}

func vaultName(tenant, keyID string) string { return tenant + "/" + keyID }

// MemoryKeyStore keeps session key records in process memory.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]domain.SessionKeyRecord
}

// NewMemoryKeyStore returns an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]domain.SessionKeyRecord)}
}

func (s *MemoryKeyStore) PutSessionKey(tenant, keyID string, rec domain.SessionKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.SessionKey = append([]byte(nil), rec.SessionKey...)
	s.keys[vaultName(tenant, keyID)] = rec
	return nil
}

func (s *MemoryKeyStore) GetSessionKey(tenant, keyID string) (domain.SessionKeyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.keys[vaultName(tenant, keyID)]
	rec.SessionKey = append([]byte(nil), rec.SessionKey...)
	return rec, ok, nil
}

func (s *MemoryKeyStore) DeleteSessionKey(tenant, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := vaultName(tenant, keyID)
	if rec, ok := s.keys[name]; ok {
		crypto.Wipe(rec.SessionKey)
		delete(s.keys, name)
	}
	return nil
}

// Len reports how many records are held.
func (s *MemoryKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Compile-time assertions that both stores implement domain.SessionKeyStore.
var (
	_ domain.SessionKeyStore = (*KeyVaultFileStore)(nil)
	_ domain.SessionKeyStore = (*MemoryKeyStore)(nil)
)
