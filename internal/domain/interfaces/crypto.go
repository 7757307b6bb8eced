package interfaces

import (
	"context"

	domaintypes "ledgerlink/internal/domain/types"
)

// CryptoProvider is the signing and key-agreement capability the handshake
// consumes. Signing keys are referenced by the identity that owns them and
// never leave the provider.
type CryptoProvider interface {
	GenerateEphemeralKeyPair(scheme domaintypes.Scheme) (domaintypes.EphemeralKeyPair, error)
	DeriveSharedSecret(
		scheme domaintypes.Scheme,
		private []byte,
		peerPublic []byte,
	) ([]byte, error)

	IdentityKey(identity domaintypes.HoldingIdentity) (domaintypes.PublicKey, error)
	Sign(identity domaintypes.HoldingIdentity, data []byte) ([]byte, error)
	Verify(signature, data []byte, key domaintypes.PublicKey) bool
}

// IdentityResolver maps a holding identity to its stable verification key.
type IdentityResolver interface {
	ResolvePublicKey(
		ctx context.Context,
		identity domaintypes.HoldingIdentity,
	) (domaintypes.PublicKey, error)
}
