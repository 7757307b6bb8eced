package store_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
	"ledgerlink/internal/store"
)

var (
	partyA = domaintypes.HoldingIdentity{X500Name: "O=PartyA, L=London, C=GB", GroupID: "group-1"}
	partyB = domaintypes.HoldingIdentity{X500Name: "O=PartyB, L=New York, C=US", GroupID: "group-1"}
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	var ids domain.IdentityStore = store.NewIdentityFileStore(home)

	id := domaintypes.LocalIdentity{
		Identity:  partyA,
		Algorithm: domaintypes.SignatureEd25519,
		Public:    []byte{1, 2, 3},
		Private:   []byte{4, 5, 6},
	}
	if err := ids.SaveIdentity("pass", id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	got, err := ids.LoadIdentity("pass")
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got.Identity != id.Identity || !bytes.Equal(got.Private, id.Private) {
		t.Fatalf("mismatch after load")
	}

	raw, err := os.ReadFile(filepath.Join(home, "identity.json.enc"))
	if err != nil {
		t.Fatalf("read identity file: %v", err)
	}
	if bytes.Contains(raw, []byte("PartyA")) {
		t.Fatal("identity stored in the clear")
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())
	if err := ids.SaveIdentity("correct", domaintypes.LocalIdentity{Identity: partyA}); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ids.LoadIdentity("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func metadata(id domaintypes.SessionID, now time.Time) domaintypes.SessionMetadata {
	md := domaintypes.NewSessionMetadata(id, partyA, partyB, domaintypes.StatusSentInitiatorHello, now)
	md.EncryptionKeyID = string(id)
	md.EncryptionKeyTenant = partyA.String()
	return md
}

func TestSessionFileStore_PutGetDelete(t *testing.T) {
	home := t.TempDir()
	var s domain.SessionMetadataStore = store.NewSessionFileStore(home)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Put(metadata("s-2", now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(metadata("s-1", now)); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.Get("s-1")
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if got.Source != partyA || got.Destination != partyB || !got.Expiry.Equal(now.Add(domaintypes.SessionLifetime)) {
		t.Fatalf("unexpected record %+v", got)
	}

	// A second store over the same directory sees the same data.
	list, err := store.NewSessionFileStore(home).List()
	if err != nil || len(list) != 2 || list[0].SessionID != "s-1" {
		t.Fatalf("list: %+v %v", list, err)
	}

	if err := s.Delete("s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get("s-1"); ok {
		t.Fatal("record survived delete")
	}
	if err := s.Delete("missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestSessionFileStore_PersistedKeys(t *testing.T) {
	home := t.TempDir()
	s := store.NewSessionFileStore(home)
	if err := s.Put(metadata("s-1", time.Now())); err != nil {
		t.Fatalf("put: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(home, "sessions.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk map[string]map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rec := onDisk["s-1"]
	for _, k := range []string{
		"sessionId", "sourceVnode", "destinationVnode", "groupId", "lastSendTimestamp",
		"encryptionKeyId", "encryptionTenant", "status", "expiry",
	} {
		if _, ok := rec[k]; !ok {
			t.Fatalf("missing key %q in %v", k, rec)
		}
	}
	if len(rec) != 9 {
		t.Fatalf("unexpected extra keys: %v", rec)
	}
	if rec["status"] != "SentInitiatorHello" {
		t.Fatalf("status = %v", rec["status"])
	}
}

func TestMemorySessionStore(t *testing.T) {
	var s domain.SessionMetadataStore = store.NewMemorySessionStore()
	if err := s.Put(metadata("s-1", time.Now())); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := s.Get("s-1"); !ok {
		t.Fatal("record missing")
	}
	_ = s.Delete("s-1")
	if list, _ := s.List(); len(list) != 0 {
		t.Fatalf("list after delete: %v", list)
	}
}

func keyRecord() domaintypes.SessionKeyRecord {
	return domaintypes.SessionKeyRecord{
		SessionID:      "s-1",
		Role:           domaintypes.RoleInitiator,
		Mode:           domaintypes.ModeAuthenticatedEncryption,
		Local:          partyA,
		Peer:           partyB,
		SessionKey:     bytes.Repeat([]byte{0x42}, 32),
		TranscriptHash: bytes.Repeat([]byte{0x17}, 32),
		Epoch:          3,
		RecvEpoch:      2,
		RecvNext:       17,
	}
}

func TestKeyVault_PutGetDelete(t *testing.T) {
	home := t.TempDir()
	var v domain.SessionKeyStore = store.NewKeyVaultFileStore(home, "vault-pass")
	rec := keyRecord()

	if err := v.PutSessionKey("tenant-a", "s-1", rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	// A fresh instance derives the same key from the passphrase.
	reopened := store.NewKeyVaultFileStore(home, "vault-pass")
	got, ok, err := reopened.GetSessionKey("tenant-a", "s-1")
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	if !bytes.Equal(got.SessionKey, rec.SessionKey) || got.Epoch != 3 || got.Peer != partyB ||
		got.RecvEpoch != 2 || got.RecvNext != 17 {
		t.Fatalf("record mismatch: %+v", got)
	}
	if _, ok, _ := reopened.GetSessionKey("tenant-b", "s-1"); ok {
		t.Fatal("record visible under another tenant")
	}

	raw, err := os.ReadFile(filepath.Join(home, "session_keys.json"))
	if err != nil {
		t.Fatalf("read vault: %v", err)
	}
	if bytes.Contains(raw, []byte("PartyB")) {
		t.Fatal("session key record stored in the clear")
	}

	if err := reopened.DeleteSessionKey("tenant-a", "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := v.GetSessionKey("tenant-a", "s-1"); ok {
		t.Fatal("record survived delete")
	}
}

func TestKeyVault_WrongPassphrase(t *testing.T) {
	home := t.TempDir()
	if err := store.NewKeyVaultFileStore(home, "right").PutSessionKey("t", "k", keyRecord()); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, _, err := store.NewKeyVaultFileStore(home, "wrong").GetSessionKey("t", "k")
	if !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestMemberFileStore(t *testing.T) {
	var s domain.MemberStore = store.NewMemberFileStore(t.TempDir())
	rec := domaintypes.MemberRecord{
		Identity:  partyB,
		PublicKey: domaintypes.PublicKey{Algorithm: domaintypes.SignatureEd25519, Raw: []byte{9}},
		Updated:   100,
	}
	if err := s.SaveMember(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadMember(partyB)
	if err != nil || !ok || got.Updated != 100 {
		t.Fatalf("load: %+v %v %v", got, ok, err)
	}
	if _, ok, _ := s.LoadMember(partyA); ok {
		t.Fatal("unexpected member")
	}
	list, err := s.ListMembers()
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
}
