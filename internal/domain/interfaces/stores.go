package interfaces

import domaintypes "ledgerlink/internal/domain/types"

// IdentityStore persists the local signing identity.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.LocalIdentity) error
	LoadIdentity(passphrase string) (domaintypes.LocalIdentity, error)
}

// SessionMetadataStore is a plain key/value store for session metadata. It
// performs no validation; callers serialise writers per session id.
type SessionMetadataStore interface {
	Get(id domaintypes.SessionID) (domaintypes.SessionMetadata, bool, error)
	Put(md domaintypes.SessionMetadata) error
	Delete(id domaintypes.SessionID) error
	List() ([]domaintypes.SessionMetadata, error)
}

// SessionKeyStore holds negotiated session keys on behalf of a
// key-management service, addressed by tenant and key id.
type SessionKeyStore interface {
	PutSessionKey(tenant, keyID string, rec domaintypes.SessionKeyRecord) error
	GetSessionKey(tenant, keyID string) (domaintypes.SessionKeyRecord, bool, error)
	DeleteSessionKey(tenant, keyID string) error
}

// MemberStore caches directory records fetched from the relay.
type MemberStore interface {
	SaveMember(rec domaintypes.MemberRecord) error
	LoadMember(id domaintypes.HoldingIdentity) (domaintypes.MemberRecord, bool, error)
	ListMembers() ([]domaintypes.MemberRecord, error)
}
