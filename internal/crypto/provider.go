package crypto

import (
	"errors"
	"sync"

	"ledgerlink/internal/domain"
	domaintypes "ledgerlink/internal/domain/types"
)

// ErrNoSigningKey is returned when no identity key is held for an identity.
var ErrNoSigningKey = errors.New("no signing key for identity")

// SoftwareProvider keeps identity keys in process memory.
type SoftwareProvider struct {
	mu   sync.RWMutex
	keys map[domaintypes.HoldingIdentity]domaintypes.LocalIdentity
}

var _ domain.CryptoProvider = (*SoftwareProvider)(nil)

// NewSoftwareProvider returns a provider holding the given identities.
func NewSoftwareProvider(ids ...domaintypes.LocalIdentity) *SoftwareProvider {
	p := &SoftwareProvider{keys: make(map[domaintypes.HoldingIdentity]domaintypes.LocalIdentity)}
	for _, id := range ids {
		p.AddIdentity(id)
	}
	return p
}

// AddIdentity registers (or replaces) the signing key of a local identity.
func (p *SoftwareProvider) AddIdentity(id domaintypes.LocalIdentity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.keys[id.Identity]; ok {
		Wipe(old.Private)
	}
	p.keys[id.Identity] = domaintypes.LocalIdentity{
		Identity:  id.Identity,
		Algorithm: id.Algorithm,
		Public:    append([]byte(nil), id.Public...),
		Private:   append([]byte(nil), id.Private...),
	}
}

func (p *SoftwareProvider) GenerateEphemeralKeyPair(scheme domaintypes.Scheme) (domaintypes.EphemeralKeyPair, error) {
	return GenerateEphemeral(scheme)
}

func (p *SoftwareProvider) DeriveSharedSecret(scheme domaintypes.Scheme, private, peerPublic []byte) ([]byte, error) {
	return SharedSecret(scheme, private, peerPublic)
}

func (p *SoftwareProvider) IdentityKey(identity domaintypes.HoldingIdentity) (domaintypes.PublicKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.keys[identity]
	if !ok {
		return domaintypes.PublicKey{}, ErrNoSigningKey
	}
	return id.PublicKey(), nil
}

func (p *SoftwareProvider) Sign(identity domaintypes.HoldingIdentity, data []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.keys[identity]
	if !ok {
		return nil, ErrNoSigningKey
	}
	return Sign(id.Algorithm, id.Private, data)
}

func (p *SoftwareProvider) Verify(signature, data []byte, key domaintypes.PublicKey) bool {
	return Verify(key, data, signature)
}
